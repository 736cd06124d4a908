// Package loopback stores attachments on the local disk and accepts uploads
// through the service's own raw upload endpoint. It exists for development.
package loopback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"attachment-api/internal/infrastructure/storage"
)

const UploadRoute = "/api/v1/storage/loopback/"

type Config struct {
	Root            string
	PublicBaseURL   string
	AllowedPrefixes []string
	SlotTTL         time.Duration
}

type Backend struct {
	objectsDir string
	metaDir    string
	publicBase string
	prefixes   []string
	ttl        time.Duration
	now        func() time.Time

	// writers hold it exclusively; stat and open take it shared
	mu sync.RWMutex
}

type sidecar struct {
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	WrittenAt   time.Time `json:"written_at"`
}

func New(cfg Config) (*Backend, error) {
	if cfg.Root == "" {
		return nil, errors.New("loopback: root directory is required")
	}
	if cfg.PublicBaseURL == "" {
		return nil, errors.New("loopback: public base url is required")
	}
	if cfg.SlotTTL <= 0 {
		cfg.SlotTTL = 15 * time.Minute
	}

	b := &Backend{
		objectsDir: filepath.Join(cfg.Root, "objects"),
		metaDir:    filepath.Join(cfg.Root, "meta"),
		publicBase: strings.TrimRight(cfg.PublicBaseURL, "/"),
		prefixes:   cfg.AllowedPrefixes,
		ttl:        cfg.SlotTTL,
		now:        time.Now,
	}
	for _, dir := range []string{b.objectsDir, b.metaDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("loopback: create %s: %w", dir, err)
		}
	}
	return b, nil
}

// Allowed reports whether p lives under one of the configured prefixes.
// An empty allow-list admits nothing.
func (b *Backend) Allowed(p string) bool {
	for _, prefix := range b.prefixes {
		if prefix != "" && strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
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
	if !b.Allowed(p) {
		return nil, fmt.Errorf("%w: prefix %q is not accepted by the loopback endpoint", storage.ErrInvalidArgument, parentPrefix)
	}

	// The expiry is informational, the raw endpoint accepts each path once.
	return &storage.UploadSlot{
		StoragePath: p,
		UploadURL:   b.publicBase + UploadRoute + p,
		Method:      http.MethodPut,
		Headers:     map[string]string{},
		ExpiresAt:   b.now().Add(b.ttl),
	}, nil
}

// TryGetUploaded reads the payload and sidecar under the read lock, so it
// never pairs one write's size with another write's timestamp.
func (b *Backend) TryGetUploaded(_ context.Context, storagePath string) (*storage.ObjectProperties, error) {
	if err := storage.ValidatePath(storagePath); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	fi, err := os.Stat(b.objectFile(storagePath))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loopback: stat: %w", err)
	}

	meta, err := b.readMeta(storagePath)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		// dropped in by hand, no sidecar
		meta = &sidecar{
			ContentType: storage.ResolveContentType("", storagePath),
			WrittenAt:   fi.ModTime(),
		}
	}

	return &storage.ObjectProperties{
		Size:        fi.Size(),
		ContentType: meta.ContentType,
		RevisionTag: revisionTag(fi.Size(), meta.WrittenAt),
	}, nil
}

func (b *Backend) OpenRead(_ context.Context, storagePath string) (io.ReadCloser, error) {
	if err := storage.ValidatePath(storagePath); err != nil {
		return nil, err
	}
	b.mu.RLock()
	f, err := os.Open(b.objectFile(storagePath))
	b.mu.RUnlock()
	if errors.Is(err, os.ErrNotExist) {
		return nil, storage.ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loopback: open: %w", err)
	}
	return f, nil
}

func (b *Backend) Delete(_ context.Context, storagePath string) error {
	if err := storage.ValidatePath(storagePath); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, name := range []string{b.objectFile(storagePath), b.metaFile(storagePath)} {
		if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loopback: delete: %w", err)
		}
	}
	return nil
}

func (b *Backend) Overwrite(ctx context.Context, storagePath string, content io.Reader, contentType string) error {
	if err := storage.ValidatePath(storagePath); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := os.Stat(b.objectFile(storagePath)); errors.Is(err, os.ErrNotExist) {
		return storage.ErrObjectNotFound
	}
	_, err := b.write(ctx, storagePath, content, contentType)
	return err
}

// Receive stores the body of a raw upload. An object that is already present
// is never replaced.
func (b *Backend) Receive(ctx context.Context, storagePath string, content io.Reader, contentType string) (*storage.ObjectProperties, error) {
	if err := storage.ValidatePath(storagePath); err != nil {
		return nil, err
	}
	if !b.Allowed(storagePath) {
		return nil, fmt.Errorf("%w: %q is outside the allowed prefixes", storage.ErrInvalidPath, storagePath)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := os.Stat(b.objectFile(storagePath)); err == nil {
		return nil, storage.ErrObjectExists
	}
	return b.write(ctx, storagePath, content, contentType)
}

// write lands the sidecar first and the payload second, each through a
// temp file and rename. A failed payload write restores the previous sidecar.
func (b *Backend) write(ctx context.Context, storagePath string, content io.Reader, contentType string) (*storage.ObjectProperties, error) {
	dst := b.objectFile(storagePath)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, fmt.Errorf("loopback: ensure dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("loopback: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: content})
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("loopback: write: %w", err)
	}

	meta := sidecar{
		ContentType: storage.ResolveContentType(contentType, storagePath),
		Size:        size,
		WrittenAt:   b.now().UTC(),
	}
	previous, _ := os.ReadFile(b.metaFile(storagePath))
	if err = b.writeMeta(storagePath, meta); err != nil {
		return nil, err
	}
	if err = os.Rename(tmp.Name(), dst); err != nil {
		b.restoreMeta(storagePath, previous)
		return nil, fmt.Errorf("loopback: rename: %w", err)
	}

	return &storage.ObjectProperties{
		Size:        size,
		ContentType: meta.ContentType,
		RevisionTag: revisionTag(size, meta.WrittenAt),
	}, nil
}

func (b *Backend) readMeta(storagePath string) (*sidecar, error) {
	data, err := os.ReadFile(b.metaFile(storagePath))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loopback: read meta: %w", err)
	}
	var m sidecar
	if err = json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("loopback: decode meta: %w", err)
	}
	return &m, nil
}

func (b *Backend) writeMeta(storagePath string, m sidecar) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return atomicWrite(b.metaFile(storagePath), data)
}

func (b *Backend) restoreMeta(storagePath string, previous []byte) {
	if previous == nil {
		_ = os.Remove(b.metaFile(storagePath))
		return
	}
	_ = atomicWrite(b.metaFile(storagePath), previous)
}

func (b *Backend) objectFile(p string) string {
	return filepath.Join(b.objectsDir, filepath.FromSlash(p))
}

func (b *Backend) metaFile(p string) string {
	return filepath.Join(b.metaDir, filepath.FromSlash(p)+".json")
}

func atomicWrite(name string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(name), ".meta-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err = tmp.Write(data); err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), name)
}

func revisionTag(size int64, writtenAt time.Time) string {
	return fmt.Sprintf("%x-%x", size, writtenAt.UnixNano())
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
