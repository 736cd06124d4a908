// Package sanitizer rewrites uploaded raster images without their embedded
// metadata.
package sanitizer

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"attachment-api/internal/application/ports"
	"attachment-api/internal/infrastructure/storage"
)

// Store is the part of a storage backend the sanitizer needs.
type Store interface {
	OpenRead(ctx context.Context, storagePath string) (io.ReadCloser, error)
	Overwrite(ctx context.Context, storagePath string, content io.Reader, contentType string) error
}

var errTooLarge = errors.New("image exceeds the size limit")

// GIF and WebP are left alone: imaging flattens animations and has no WebP
// encoder.
var formats = map[string]imaging.Format{
	"image/jpeg": imaging.JPEG,
	"image/png":  imaging.PNG,
	"image/bmp":  imaging.BMP,
	"image/tiff": imaging.TIFF,
}

type Sanitizer struct {
	store       Store
	maxBytes    int64
	jpegQuality int
	logger      *zap.Logger
}

func New(store Store, maxBytes int64, jpegQuality int, logger *zap.Logger) ports.Sanitizer {
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = 90
	}
	return &Sanitizer{
		store:       store,
		maxBytes:    maxBytes,
		jpegQuality: jpegQuality,
		logger:      logger,
	}
}

func (s *Sanitizer) Supports(contentType string) bool {
	_, ok := formats[storage.NormalizeContentType(contentType)]
	return ok
}

func (s *Sanitizer) TrySanitize(ctx context.Context, storagePath, contentType string) ports.SanitizeResult {
	ct := storage.NormalizeContentType(contentType)
	format, ok := formats[ct]
	if !ok {
		return ports.SanitizeResult{}
	}
	log := s.logger.With(zap.String("content_type", ct))

	data, err := s.read(ctx, storagePath)
	if err != nil {
		log.Warn("sanitize: read failed", zap.Error(err))
		return ports.SanitizeResult{}
	}
	if detected := mimetype.Detect(data); !detected.Is(ct) {
		log.Info("sanitize: detected type differs, skipping", zap.String("detected", detected.String()))
		return ports.SanitizeResult{}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		log.Warn("sanitize: decode failed", zap.Error(err))
		return ports.SanitizeResult{}
	}

	var buf bytes.Buffer
	if err = imaging.Encode(&buf, img, format, imaging.JPEGQuality(s.jpegQuality)); err != nil {
		log.Warn("sanitize: encode failed", zap.Error(err))
		return ports.SanitizeResult{}
	}
	if ctx.Err() != nil {
		return ports.SanitizeResult{}
	}

	if err = s.store.Overwrite(ctx, storagePath, bytes.NewReader(buf.Bytes()), ct); err != nil {
		log.Warn("sanitize: overwrite failed, original kept", zap.Error(err))
		return ports.SanitizeResult{}
	}

	return ports.SanitizeResult{
		Changed:        true,
		NewLength:      int64(buf.Len()),
		NewContentType: ct,
	}
}

func (s *Sanitizer) read(ctx context.Context, storagePath string) ([]byte, error) {
	rc, err := s.store.OpenRead(ctx, storagePath)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r := io.Reader(rc)
	if s.maxBytes > 0 {
		r = io.LimitReader(rc, s.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, errTooLarge
	}
	return data, nil
}
