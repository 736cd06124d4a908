package storage

import (
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var knownTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".jpe":  "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".log":  "text/plain",
	".csv":  "text/csv",
	".json": "application/json",
	".zip":  "application/zip",
	".mp4":  "video/mp4",
}

// NormalizeContentType lowercases, drops parameters and folds known aliases.
func NormalizeContentType(ct string) string {
	ct = strings.TrimSpace(ct)
	if ct == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mt
	} else if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.ToLower(strings.TrimSpace(ct))
	switch ct {
	case "image/jpg", "image/pjpeg":
		return "image/jpeg"
	case "image/x-png":
		return "image/png"
	case "image/x-ms-bmp":
		return "image/bmp"
	}
	return ct
}

// TypeByExtension infers a content type from a key or file name, falling
// back to OctetStream. Only the built-in table is consulted so the answer
// does not depend on the host's MIME configuration.
func TypeByExtension(name string) string {
	if ct, ok := knownTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return OctetStream
}

// ResolveContentType keeps a declared type unless it is empty or generic.
func ResolveContentType(declared, name string) string {
	ct := NormalizeContentType(declared)
	if ct == "" || ct == OctetStream {
		return TypeByExtension(name)
	}
	return ct
}

// ExtensionsForType lists the file extensions consistent with a content
// type: the built-in table first, then the mimetype registry.
func ExtensionsForType(ct string) []string {
	ct = NormalizeContentType(ct)
	var out []string
	for ext, t := range knownTypes {
		if t == ct {
			out = append(out, ext)
		}
	}
	if len(out) > 0 {
		return out
	}
	if m := mimetype.Lookup(ct); m != nil && m.Extension() != "" {
		return []string{m.Extension()}
	}
	return nil
}
