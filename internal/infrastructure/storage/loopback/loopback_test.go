package loopback

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attachment-api/internal/infrastructure/storage"
)

func newBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New(Config{
		Root:            t.TempDir(),
		PublicBaseURL:   "http://localhost:8080/",
		AllowedPrefixes: []string{"incidents/", "comments/"},
		SlotTTL:         10 * time.Minute,
	})
	require.NoError(t, err)

	tick := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return b
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{PublicBaseURL: "http://x"})
	require.Error(t, err)

	_, err = New(Config{Root: t.TempDir()})
	require.Error(t, err)
}

func TestCreateUploadSlot(t *testing.T) {
	b := newBackend(t)
	id := uuid.New()
	parent := uuid.New()

	slot, err := b.CreateUploadSlot(context.Background(), storage.ParentPrefix("incidents", parent), id, "photo.png", "image/png")
	require.NoError(t, err)

	wantPath := "incidents/" + parent.String() + "/" + id.String() + "/photo.png"
	assert.Equal(t, wantPath, slot.StoragePath)
	assert.Equal(t, "http://localhost:8080/api/v1/storage/loopback/"+wantPath, slot.UploadURL)
	assert.Equal(t, "PUT", slot.Method)
	assert.Empty(t, slot.Headers)
	assert.True(t, slot.ExpiresAt.After(time.Date(2026, 1, 2, 3, 10, 0, 0, time.UTC)))
}

func TestCreateUploadSlot_Rejects(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		prefix string
		id     uuid.UUID
		file   string
		ct     string
	}{
		{"empty content type", "incidents/x", uuid.New(), "a.png", ""},
		{"empty file name", "incidents/x", uuid.New(), "  ", "image/png"},
		{"nil id", "incidents/x", uuid.Nil, "a.png", "image/png"},
		{"prefix not allowed", "users/x", uuid.New(), "a.png", "image/png"},
		{"traversal prefix", "incidents/../etc", uuid.New(), "a.png", "image/png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.CreateUploadSlot(ctx, tt.prefix, tt.id, tt.file, tt.ct)
			require.Error(t, err)
		})
	}
}

func TestReceive_ThenRead(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	p := "incidents/a/b/report.pdf"

	props, err := b.TryGetUploaded(ctx, p)
	require.NoError(t, err)
	assert.Nil(t, props, "nothing uploaded yet")

	got, err := b.Receive(ctx, p, strings.NewReader("%PDF-1.4 body"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, int64(13), got.Size)

	props, err = b.TryGetUploaded(ctx, p)
	require.NoError(t, err)
	require.NotNil(t, props)
	assert.Equal(t, int64(13), props.Size)
	assert.Equal(t, "application/pdf", props.ContentType)
	assert.Equal(t, got.RevisionTag, props.RevisionTag)

	rc, err := b.OpenRead(ctx, p)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body", string(body))
}

func TestReceive_InfersContentTypeFromExtension(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()

	props, err := b.Receive(ctx, "comments/c/1/shot.jpg", bytes.NewReader([]byte{0xff, 0xd8}), storage.OctetStream)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", props.ContentType)
}

func TestReceive_RejectsOverwriteAndForeignPrefix(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	p := "incidents/a/b/note.txt"

	_, err := b.Receive(ctx, p, strings.NewReader("one"), "text/plain")
	require.NoError(t, err)

	_, err = b.Receive(ctx, p, strings.NewReader("two"), "text/plain")
	require.ErrorIs(t, err, storage.ErrObjectExists)

	_, err = b.Receive(ctx, "users/a/b/note.txt", strings.NewReader("x"), "text/plain")
	require.ErrorIs(t, err, storage.ErrInvalidPath)

	_, err = b.Receive(ctx, "../escape.txt", strings.NewReader("x"), "text/plain")
	require.ErrorIs(t, err, storage.ErrInvalidPath)
}

func TestReceive_CancelledLeavesNothing(t *testing.T) {
	b := newBackend(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := "incidents/a/b/big.txt"

	_, err := b.Receive(ctx, p, strings.NewReader("partial"), "text/plain")
	require.Error(t, err)

	props, err := b.TryGetUploaded(context.Background(), p)
	require.NoError(t, err)
	assert.Nil(t, props)

	entries, err := os.ReadDir(filepath.Dir(b.objectFile(p)))
	require.NoError(t, err)
	assert.Empty(t, entries, "temp files must be cleaned up")
}

func TestOverwrite(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	p := "incidents/a/b/pic.png"

	err := b.Overwrite(ctx, p, strings.NewReader("x"), "image/png")
	require.ErrorIs(t, err, storage.ErrObjectNotFound)

	first, err := b.Receive(ctx, p, strings.NewReader("original"), "image/png")
	require.NoError(t, err)

	require.NoError(t, b.Overwrite(ctx, p, strings.NewReader("clean"), "image/png"))

	props, err := b.TryGetUploaded(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, int64(5), props.Size)
	assert.NotEqual(t, first.RevisionTag, props.RevisionTag)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	require.Error(t, b.Overwrite(cctx, p, strings.NewReader("never"), "image/png"))

	after, err := b.TryGetUploaded(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, props, after, "failed overwrite keeps the previous object")
}

func TestRevisionTag_StableForUnchangedObject(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	p := "incidents/a/b/x.txt"

	_, err := b.Receive(ctx, p, strings.NewReader("hello"), "text/plain")
	require.NoError(t, err)

	one, err := b.TryGetUploaded(ctx, p)
	require.NoError(t, err)
	two, err := b.TryGetUploaded(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, one.RevisionTag, two.RevisionTag)
}

func TestDelete_Idempotent(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	p := "incidents/a/b/x.txt"

	require.NoError(t, b.Delete(ctx, p))

	_, err := b.Receive(ctx, p, strings.NewReader("hello"), "text/plain")
	require.NoError(t, err)
	require.NoError(t, b.Delete(ctx, p))
	require.NoError(t, b.Delete(ctx, p))

	_, err = b.OpenRead(ctx, p)
	require.ErrorIs(t, err, storage.ErrObjectNotFound)

	require.ErrorIs(t, b.Delete(ctx, "/abs"), storage.ErrInvalidPath)
}

// gatedReader blocks its first Read until release is closed.
type gatedReader struct {
	started chan struct{}
	release chan struct{}
	once    bool
	r       io.Reader
}

func (g *gatedReader) Read(p []byte) (int, error) {
	if !g.once {
		g.once = true
		close(g.started)
		<-g.release
	}
	return g.r.Read(p)
}

func TestTryGetUploaded_WaitsForInFlightWrite(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	const p = "incidents/a/b/photo.png"

	_, err := b.Receive(ctx, p, strings.NewReader("first"), "image/png")
	require.NoError(t, err)

	gate := &gatedReader{
		started: make(chan struct{}),
		release: make(chan struct{}),
		r:       strings.NewReader("second version"),
	}
	done := make(chan error, 1)
	go func() { done <- b.Overwrite(ctx, p, gate, "image/png") }()
	<-gate.started

	got := make(chan *storage.ObjectProperties, 1)
	go func() {
		props, _ := b.TryGetUploaded(ctx, p)
		got <- props
	}()

	select {
	case <-got:
		t.Fatal("properties returned while a write was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate.release)
	require.NoError(t, <-done)

	props := <-got
	require.NotNil(t, props)
	assert.Equal(t, int64(len("second version")), props.Size)

	settled, err := b.TryGetUploaded(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, settled.RevisionTag, props.RevisionTag)
}
