// Package memory is an in-process storage backend for tests and local runs.
package memory

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"attachment-api/internal/infrastructure/storage"
)

type object struct {
	data        []byte
	contentType string
	tag         string
}

type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
	ttl     time.Duration
	now     func() time.Time
}

func New(slotTTL time.Duration) *Backend {
	if slotTTL <= 0 {
		slotTTL = 15 * time.Minute
	}
	return &Backend{
		objects: make(map[string]object),
		ttl:     slotTTL,
		now:     time.Now,
	}
}

func (b *Backend) CreateUploadSlot(
	_ context.Context,
	parentPrefix string,
	attachmentID uuid.UUID,
	fileName, contentType string,
) (*storage.UploadSlot, error) {
	if strings.TrimSpace(contentType) == "" {
		return nil, fmt.Errorf("%w: content type is required", storage.ErrInvalidArgument)
	}
	p, err := storage.BuildPath(parentPrefix, attachmentID, fileName)
	if err != nil {
		return nil, err
	}

	return &storage.UploadSlot{
		StoragePath: p,
		UploadURL:   "memory://" + p,
		Method:      http.MethodPut,
		Headers:     map[string]string{},
		ExpiresAt:   b.now().Add(b.ttl),
	}, nil
}

func (b *Backend) TryGetUploaded(_ context.Context, storagePath string) (*storage.ObjectProperties, error) {
	if err := storage.ValidatePath(storagePath); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	o, ok := b.objects[storagePath]
	if !ok {
		return nil, nil
	}
	return &storage.ObjectProperties{
		Size:        int64(len(o.data)),
		ContentType: o.contentType,
		RevisionTag: o.tag,
	}, nil
}

func (b *Backend) OpenRead(_ context.Context, storagePath string) (io.ReadCloser, error) {
	if err := storage.ValidatePath(storagePath); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	o, ok := b.objects[storagePath]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(o.data)), nil
}

func (b *Backend) Delete(_ context.Context, storagePath string) error {
	if err := storage.ValidatePath(storagePath); err != nil {
		return err
	}
	b.mu.Lock()
	delete(b.objects, storagePath)
	b.mu.Unlock()
	return nil
}

func (b *Backend) Overwrite(ctx context.Context, storagePath string, content io.Reader, contentType string) error {
	o, err := b.read(ctx, storagePath, content, contentType)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[storagePath]; !ok {
		return storage.ErrObjectNotFound
	}
	b.objects[storagePath] = o
	return nil
}

// Receive stores a new object and refuses to replace an existing one.
func (b *Backend) Receive(ctx context.Context, storagePath string, content io.Reader, contentType string) (*storage.ObjectProperties, error) {
	o, err := b.read(ctx, storagePath, content, contentType)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[storagePath]; ok {
		return nil, storage.ErrObjectExists
	}
	b.objects[storagePath] = o
	return &storage.ObjectProperties{Size: int64(len(o.data)), ContentType: o.contentType, RevisionTag: o.tag}, nil
}

// Put replaces whatever is stored at storagePath, the way a client PUT to a
// signed URL would.
func (b *Backend) Put(ctx context.Context, storagePath string, data []byte, contentType string) error {
	o, err := b.read(ctx, storagePath, bytes.NewReader(data), contentType)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.objects[storagePath] = o
	b.mu.Unlock()
	return nil
}

// Bytes returns a copy of the stored payload.
func (b *Backend) Bytes(storagePath string) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.objects[storagePath]
	return append([]byte(nil), o.data...), ok
}

// read buffers the whole payload before anything becomes visible, so a
// cancelled transfer leaves the previous state untouched.
func (b *Backend) read(ctx context.Context, storagePath string, content io.Reader, contentType string) (object, error) {
	if err := storage.ValidatePath(storagePath); err != nil {
		return object{}, err
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return object{}, err
	}
	if err = ctx.Err(); err != nil {
		return object{}, err
	}

	sum := sha256.Sum256(data)
	return object{
		data:        data,
		contentType: storage.ResolveContentType(contentType, storagePath),
		tag:         hex.EncodeToString(sum[:16]),
	}, nil
}
