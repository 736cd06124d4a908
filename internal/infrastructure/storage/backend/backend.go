// Package backend picks the storage implementation named in configuration.
package backend

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/api/option"

	"attachment-api/config"
	"attachment-api/internal/application/ports"
	"attachment-api/internal/infrastructure/storage"
	"attachment-api/internal/infrastructure/storage/gcs"
	"attachment-api/internal/infrastructure/storage/loopback"
	"attachment-api/internal/infrastructure/storage/memory"
)

// New returns the configured backend and a func releasing its resources.
func New(ctx context.Context, cfg config.Config) (ports.StorageBackend, func() error, error) {
	kind, err := storage.ParseKind(cfg.Storage.Backend)
	if err != nil {
		return nil, nil, err
	}
	noop := func() error { return nil }

	switch kind {
	case storage.KindMemory:
		return memory.New(cfg.Storage.UploadSlotTTL), noop, nil

	case storage.KindLoopback:
		b, err := loopback.New(loopback.Config{
			Root:            cfg.Storage.LoopbackRoot,
			PublicBaseURL:   cfg.App.PublicBaseURL,
			AllowedPrefixes: cfg.Storage.LoopbackAllowedPrefixes,
			SlotTTL:         cfg.Storage.UploadSlotTTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return b, noop, nil

	case storage.KindGCS:
		if cfg.Storage.GCSPrivateKeyFile == "" {
			return nil, nil, fmt.Errorf("gcs: STORAGE_GCS_PRIVATE_KEY_FILE is required")
		}
		key, err := os.ReadFile(cfg.Storage.GCSPrivateKeyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("gcs: read private key: %w", err)
		}
		var opts []option.ClientOption
		if cfg.Storage.GCSCredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.Storage.GCSCredentialsFile))
		}

		b, err := gcs.New(ctx, gcs.Config{
			Endpoint:      cfg.Storage.GCSEndpoint,
			AccessID:      cfg.Storage.GCSAccessID,
			Bucket:        cfg.Storage.GCSBucket,
			PrivateKey:    key,
			SlotTTL:       cfg.Storage.UploadSlotTTL,
			ClientOptions: opts,
		})
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	}

	return nil, nil, fmt.Errorf("storage backend %q not wired", kind)
}
