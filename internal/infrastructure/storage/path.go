package storage

import (
	"fmt"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxBaseNameLen = 100
	maxPathLen     = 1024
)

var windowsReserved = map[string]struct{}{
	"con": {}, "prn": {}, "aux": {}, "nul": {},
	"com1": {}, "com2": {}, "com3": {}, "com4": {}, "com5": {}, "com6": {}, "com7": {}, "com8": {}, "com9": {},
	"lpt1": {}, "lpt2": {}, "lpt3": {}, "lpt4": {}, "lpt5": {}, "lpt6": {}, "lpt7": {}, "lpt8": {}, "lpt9": {},
}

// ValidatePath accepts relative, forward-slash keys without empty, "." or
// ".." segments, schemes, backslashes or control characters.
func ValidatePath(p string) error {
	switch {
	case p == "":
		return fmt.Errorf("%w: empty", ErrInvalidPath)
	case len(p) > maxPathLen:
		return fmt.Errorf("%w: too long", ErrInvalidPath)
	case strings.HasPrefix(p, "/"):
		return fmt.Errorf("%w: leading slash", ErrInvalidPath)
	case strings.Contains(p, "://") || hasScheme(p):
		return fmt.Errorf("%w: scheme not allowed", ErrInvalidPath)
	case strings.ContainsRune(p, '\\'):
		return fmt.Errorf("%w: backslash not allowed", ErrInvalidPath)
	}
	for _, r := range p {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: control character", ErrInvalidPath)
		}
	}
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "":
			return fmt.Errorf("%w: empty segment", ErrInvalidPath)
		case ".", "..":
			return fmt.Errorf("%w: relative segment %q", ErrInvalidPath, seg)
		}
	}
	return nil
}

// hasScheme catches "c:foo", "data:..." style prefixes in the first segment.
func hasScheme(p string) bool {
	first, _, _ := strings.Cut(p, "/")
	i := strings.IndexByte(first, ':')
	if i <= 0 {
		return false
	}
	for _, r := range first[:i] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.') {
			return false
		}
	}
	return true
}

// ParentPrefix: "<collection>/<parent-id>"
func ParentPrefix(collection string, parentID uuid.UUID) string {
	return collection + "/" + parentID.String()
}

// BuildPath derives the storage key "<prefix>/<attachment-id>/<safe-file-name>".
func BuildPath(prefix string, attachmentID uuid.UUID, fileName string) (string, error) {
	if attachmentID == uuid.Nil {
		return "", fmt.Errorf("%w: attachment id is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(fileName) == "" {
		return "", fmt.Errorf("%w: file name is required", ErrInvalidArgument)
	}
	if err := ValidatePath(prefix); err != nil {
		return "", err
	}

	p := prefix + "/" + attachmentID.String() + "/" + SanitizeFileName(fileName)
	if err := ValidatePath(p); err != nil {
		return "", err
	}
	return p, nil
}

// SanitizeFileName make file name ASCII standard
func SanitizeFileName(original string) string {
	if original == "" {
		return "file"
	}

	s := strings.TrimSpace(original)
	s = strings.ReplaceAll(s, "\\", "/")
	s = path.Base(s)

	if s == "." || s == ".." || s == "" || s == "/" {
		return "file"
	}

	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn), norm.NFC)
	s, _, _ = transform.String(t, s)

	rawExt := path.Ext(s)
	ext := strings.ToLower(rawExt)
	base := strings.TrimSuffix(s, rawExt)
	if !isSafeExt(ext) {
		ext, base = "", s
	}

	var b strings.Builder
	b.Grow(len(base))
	prevDash := false
	for _, r := range base {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z':
			b.WriteRune(r)
			prevDash = false
		case r >= 'A' && r <= 'Z':
			b.WriteRune(unicode.ToLower(r))
			prevDash = false
		case r == '-' || r == '_' || r == '.' || unicode.IsSpace(r):
			if !prevDash {
				b.WriteRune('-')
				prevDash = true
			}
		default:
		}
	}
	base = strings.Trim(b.String(), "-")

	if base == "" {
		base = "file"
	}
	if _, bad := windowsReserved[base]; bad {
		base = "_" + base
	}

	for utf8.RuneCountInString(base)+len(ext) > maxBaseNameLen {
		_, size := utf8.DecodeLastRuneInString(base)
		if size <= 0 || size > len(base) {
			break
		}
		base = base[:len(base)-size]
	}

	return base + ext
}

func isSafeExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 11 {
		return false
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

func isMn(r rune) bool { return unicode.Is(unicode.Mn, r) }
