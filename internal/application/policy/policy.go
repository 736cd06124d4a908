// Package policy decides which uploads are accepted.
package policy

import (
	"path"
	"slices"
	"strings"

	"attachment-api/internal/domain/attachment"
	"attachment-api/internal/infrastructure/storage"
)

type Config struct {
	AllowedContentTypes []string
	AllowedExtensions   []string
	MaxSizeBytes        int64
	DefaultTTLMinutes   int
	MaxTTLMinutes       int
}

type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Reason: reason} }

type Policy struct {
	types []string
	exts  []string
	cfg   Config
}

func New(cfg Config) *Policy {
	p := &Policy{cfg: cfg}
	for _, ct := range cfg.AllowedContentTypes {
		if ct = storage.NormalizeContentType(ct); ct != "" && !slices.Contains(p.types, ct) {
			p.types = append(p.types, ct)
		}
	}
	for _, ext := range cfg.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if !slices.Contains(p.exts, ext) {
			p.exts = append(p.exts, ext)
		}
	}
	if p.cfg.MaxTTLMinutes <= 0 {
		p.cfg.MaxTTLMinutes = 1440
	}
	if p.cfg.DefaultTTLMinutes <= 0 || p.cfg.DefaultTTLMinutes > p.cfg.MaxTTLMinutes {
		p.cfg.DefaultTTLMinutes = min(15, p.cfg.MaxTTLMinutes)
	}
	return p
}

// Evaluate checks, in order: the content type is allowed, the extension is
// allowed, and the extension matches the content type. A generic
// octet-stream type skips the last check.
func (p *Policy) Evaluate(contentType, fileName string) Decision {
	ct := storage.NormalizeContentType(contentType)
	if ct == "" {
		return deny("content type is required")
	}
	if strings.TrimSpace(fileName) == "" {
		return deny("file name is required")
	}
	if !slices.Contains(p.types, ct) {
		return deny("content type " + ct + " is not allowed")
	}

	ext := strings.ToLower(path.Ext(fileName))
	if ext == "" {
		return deny("file name has no extension")
	}
	if !slices.Contains(p.exts, ext) {
		return deny("extension " + ext + " is not allowed")
	}

	if ct == storage.OctetStream {
		return allow()
	}
	if known := storage.ExtensionsForType(ct); len(known) > 0 && !slices.Contains(known, ext) {
		return deny("extension " + ext + " does not match content type " + ct)
	}
	return allow()
}

// Validate is Evaluate as an error.
func (p *Policy) Validate(contentType, fileName string) error {
	if d := p.Evaluate(contentType, fileName); !d.Allowed {
		return &attachment.ValidationError{Reason: d.Reason}
	}
	return nil
}

func (p *Policy) MaxSizeBytes() int64 { return p.cfg.MaxSizeBytes }

// CheckSize applies the size cap once the stored length is known. A
// non-positive cap disables it.
func (p *Policy) CheckSize(n int64) Decision {
	if p.cfg.MaxSizeBytes > 0 && n > p.cfg.MaxSizeBytes {
		return deny("file exceeds the maximum size")
	}
	return allow()
}

// ValidateTTL accepts 1..MaxTTLMinutes.
func (p *Policy) ValidateTTL(minutes int) error {
	if minutes <= 0 {
		return attachment.NewValidationError("ttl_minutes must be positive")
	}
	if minutes > p.cfg.MaxTTLMinutes {
		return attachment.NewValidationError("ttl_minutes must not exceed %d", p.cfg.MaxTTLMinutes)
	}
	return nil
}

func (p *Policy) DefaultTTLMinutes() int { return p.cfg.DefaultTTLMinutes }

func (p *Policy) Constraints() attachment.Constraints {
	return attachment.Constraints{
		AllowedContentTypes: slices.Clone(p.types),
		AllowedExtensions:   slices.Clone(p.exts),
		MaxSizeBytes:        p.cfg.MaxSizeBytes,
		DefaultTTLMinutes:   p.cfg.DefaultTTLMinutes,
		MaxTTLMinutes:       p.cfg.MaxTTLMinutes,
	}
}
