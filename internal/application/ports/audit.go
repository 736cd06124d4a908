package ports

import (
	"context"

	"github.com/google/uuid"
)

type AuditSink interface {
	AttachmentCompleted(ctx context.Context, attachmentID uuid.UUID)
}
