// Package gcs is the production storage backend on Google Cloud Storage.
// Clients move bytes through V4 signed URLs; the service only inspects,
// reads and rewrites objects.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gstorage "cloud.google.com/go/storage"
	backoff "github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"attachment-api/internal/infrastructure/storage"
)

type Config struct {
	Endpoint   string
	AccessID   string
	Bucket     string
	PrivateKey []byte
	SlotTTL    time.Duration

	ClientOptions []option.ClientOption
}

type Backend struct {
	client   *gstorage.Client
	bucket   string
	accessID string
	key      []byte
	ttl      time.Duration
	hostname string
	insecure bool
	now      func() time.Time

	buildBackoff func() backoff.BackOff
}

func New(ctx context.Context, cfg Config) (*Backend, error) {
	switch {
	case strings.TrimSpace(cfg.Endpoint) == "":
		return nil, errors.New("gcs: endpoint is required")
	case strings.TrimSpace(cfg.AccessID) == "":
		return nil, errors.New("gcs: access id is required")
	case strings.TrimSpace(cfg.Bucket) == "":
		return nil, errors.New("gcs: bucket is required")
	case len(cfg.PrivateKey) == 0:
		return nil, errors.New("gcs: private key is required")
	case cfg.SlotTTL <= 0:
		return nil, errors.New("gcs: upload slot ttl must be positive")
	}

	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("gcs: invalid endpoint %q", cfg.Endpoint)
	}

	opts := append([]option.ClientOption{
		option.WithEndpoint(strings.TrimRight(cfg.Endpoint, "/") + "/storage/v1/"),
	}, cfg.ClientOptions...)
	client, err := gstorage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs: new client: %w", err)
	}

	return &Backend{
		client:   client,
		bucket:   cfg.Bucket,
		accessID: cfg.AccessID,
		key:      cfg.PrivateKey,
		ttl:      cfg.SlotTTL,
		hostname: u.Host,
		insecure: u.Scheme == "http",
		now:      time.Now,
		buildBackoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxElapsedTime = 3 * time.Second
			return b
		},
	}, nil
}

func (b *Backend) Close() error { return b.client.Close() }

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

	expires := b.now().Add(b.ttl)
	u, err := b.sign(p, http.MethodPut, contentType, expires)
	if err != nil {
		return nil, err
	}

	return &storage.UploadSlot{
		StoragePath: p,
		UploadURL:   u,
		Method:      http.MethodPut,
		Headers:     map[string]string{"Content-Type": contentType},
		ExpiresAt:   expires,
	}, nil
}

// DownloadURL signs a GET for a verified anonymous download.
func (b *Backend) DownloadURL(_ context.Context, storagePath string, expiresAt time.Time) (string, error) {
	if err := storage.ValidatePath(storagePath); err != nil {
		return "", err
	}
	if !expiresAt.After(b.now()) {
		return "", fmt.Errorf("%w: expiry is in the past", storage.ErrInvalidArgument)
	}
	return b.sign(storagePath, http.MethodGet, "", expiresAt)
}

func (b *Backend) sign(object, method, contentType string, expires time.Time) (string, error) {
	u, err := gstorage.SignedURL(b.bucket, object, &gstorage.SignedURLOptions{
		GoogleAccessID: b.accessID,
		PrivateKey:     b.key,
		Method:         method,
		Expires:        expires,
		ContentType:    contentType,
		Scheme:         gstorage.SigningSchemeV4,
		Hostname:       b.hostname,
		Insecure:       b.insecure,
		Style:          gstorage.PathStyle(),
	})
	if err != nil {
		return "", fmt.Errorf("gcs: sign url: %w", err)
	}
	return u, nil
}

func (b *Backend) TryGetUploaded(ctx context.Context, storagePath string) (*storage.ObjectProperties, error) {
	if err := storage.ValidatePath(storagePath); err != nil {
		return nil, err
	}

	attrs, err := b.client.Bucket(b.bucket).Object(storagePath).Attrs(ctx)
	if errors.Is(err, gstorage.ErrObjectNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("attrs", err)
	}
	return properties(attrs), nil
}

func (b *Backend) OpenRead(ctx context.Context, storagePath string) (io.ReadCloser, error) {
	if err := storage.ValidatePath(storagePath); err != nil {
		return nil, err
	}
	r, err := b.client.Bucket(b.bucket).Object(storagePath).NewReader(ctx)
	if errors.Is(err, gstorage.ErrObjectNotExist) {
		return nil, storage.ErrObjectNotFound
	}
	if err != nil {
		return nil, unavailable("read", err)
	}
	return r, nil
}

func (b *Backend) Delete(ctx context.Context, storagePath string) error {
	if err := storage.ValidatePath(storagePath); err != nil {
		return err
	}
	obj := b.client.Bucket(b.bucket).Object(storagePath)

	err := backoff.Retry(func() error {
		err := obj.Delete(ctx)
		switch {
		case err == nil, errors.Is(err, gstorage.ErrObjectNotExist):
			return nil
		case transient(err):
			return err
		default:
			return backoff.Permanent(err)
		}
	}, backoff.WithContext(b.buildBackoff(), ctx))
	if err != nil {
		return unavailable("delete", err)
	}
	return nil
}

// Overwrite replaces the object only if it is still at the generation that
// was inspected. The new generation becomes visible when the writer closes,
// so a failed copy leaves the original untouched.
func (b *Backend) Overwrite(ctx context.Context, storagePath string, content io.Reader, contentType string) error {
	if err := storage.ValidatePath(storagePath); err != nil {
		return err
	}
	obj := b.client.Bucket(b.bucket).Object(storagePath)

	attrs, err := obj.Attrs(ctx)
	if errors.Is(err, gstorage.ErrObjectNotExist) {
		return storage.ErrObjectNotFound
	}
	if err != nil {
		return unavailable("attrs", err)
	}

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := obj.If(gstorage.Conditions{GenerationMatch: attrs.Generation}).NewWriter(wctx)
	w.ContentType = storage.ResolveContentType(contentType, storagePath)
	if _, err = io.Copy(w, content); err != nil {
		cancel()
		_ = w.Close()
		return unavailable("write", err)
	}
	if err = w.Close(); err != nil {
		return unavailable("write", err)
	}
	return nil
}

func properties(attrs *gstorage.ObjectAttrs) *storage.ObjectProperties {
	tag := attrs.Etag
	if tag == "" {
		tag = fmt.Sprintf("%x", attrs.Generation)
	}
	ct := attrs.ContentType
	if ct == "" {
		ct = storage.ResolveContentType("", attrs.Name)
	}
	return &storage.ObjectProperties{
		Size:        attrs.Size,
		ContentType: ct,
		RevisionTag: tag,
	}
}

func transient(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
	}
	return false
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: gcs %s: %v", storage.ErrUnavailable, op, err)
}
