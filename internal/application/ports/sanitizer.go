package ports

import "context"

type SanitizeResult struct {
	Changed        bool
	NewLength      int64
	NewContentType string
}

type Sanitizer interface {
	Supports(contentType string) bool
	// TrySanitize never fails: any problem is reported as Changed == false.
	TrySanitize(ctx context.Context, storagePath, contentType string) SanitizeResult
}
