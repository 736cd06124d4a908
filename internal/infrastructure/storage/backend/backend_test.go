package backend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attachment-api/config"
	"attachment-api/internal/application/ports"
	"attachment-api/internal/infrastructure/storage/loopback"
	"attachment-api/internal/infrastructure/storage/memory"
)

func TestNew(t *testing.T) {
	base := config.Config{
		App: config.APP{PublicBaseURL: "http://localhost:8080"},
		Storage: config.Storage{
			LoopbackRoot:            t.TempDir(),
			LoopbackAllowedPrefixes: []string{"incidents/"},
			UploadSlotTTL:           time.Minute,
		},
	}

	tests := []struct {
		name    string
		kind    string
		wantErr bool
		check   func(t *testing.T, b ports.StorageBackend)
	}{
		{
			name: "memory",
			kind: "memory",
			check: func(t *testing.T, b ports.StorageBackend) {
				assert.IsType(t, &memory.Backend{}, b)
			},
		},
		{
			name: "loopback",
			kind: "loopback",
			check: func(t *testing.T, b ports.StorageBackend) {
				_, ok := b.(ports.ObjectReceiver)
				assert.True(t, ok, "loopback accepts raw uploads")
				assert.IsType(t, &loopback.Backend{}, b)
			},
		},
		{name: "gcs without key file", kind: "gcs", wantErr: true},
		{name: "unknown", kind: "s3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.Storage.Backend = tt.kind

			b, closeFn, err := New(context.Background(), cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer closeFn()
			tt.check(t, b)
		})
	}
}
