package ports

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"attachment-api/internal/infrastructure/storage"
)

type StorageBackend interface {
	CreateUploadSlot(ctx context.Context, parentPrefix string, attachmentID uuid.UUID, fileName, contentType string) (*storage.UploadSlot, error)
	// TryGetUploaded returns nil properties and no error while nothing has
	// been uploaded at storagePath.
	TryGetUploaded(ctx context.Context, storagePath string) (*storage.ObjectProperties, error)
	OpenRead(ctx context.Context, storagePath string) (io.ReadCloser, error)
	Delete(ctx context.Context, storagePath string) error
	Overwrite(ctx context.Context, storagePath string, content io.Reader, contentType string) error
}

// ObjectReceiver accepts bytes pushed through the service itself (loopback).
type ObjectReceiver interface {
	Receive(ctx context.Context, storagePath string, content io.Reader, contentType string) (*storage.ObjectProperties, error)
}

// DirectDownloader is implemented by backends able to hand out their own
// time-limited read URLs.
type DirectDownloader interface {
	DownloadURL(ctx context.Context, storagePath string, expiresAt time.Time) (string, error)
}
