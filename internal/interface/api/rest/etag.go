package rest

import "strings"

// quoteETag turns a backend revision tag into a strong entity tag.
func quoteETag(tag string) string {
	if tag == "" {
		return ""
	}
	return `"` + tag + `"`
}

// ifNoneMatch reports whether an If-None-Match header matches etag. Weak
// validators compare equal to their strong form for GET.
func ifNoneMatch(header, etag string) bool {
	if header == "" || etag == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
