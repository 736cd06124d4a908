package ports

import (
	"context"

	"github.com/google/uuid"

	"attachment-api/internal/domain/attachment"
)

type AttachmentService interface {
	StartUpload(ctx context.Context, req attachment.StartUpload) (*attachment.UploadTicket, error)
	CompleteUpload(ctx context.Context, id attachment.ID) (*attachment.Attachment, error)
	GetStatus(ctx context.Context, id attachment.ID) (*attachment.StatusReport, error)
	GetMetadata(ctx context.Context, id attachment.ID) (*attachment.Attachment, error)
	ListByParent(ctx context.Context, parentType attachment.ParentType, parentID uuid.UUID) (attachment.Attachments, error)
	OpenStream(ctx context.Context, id attachment.ID) (*attachment.Stream, error)
	IssueSignedURL(ctx context.Context, id attachment.ID, ttlMinutes int) (*attachment.SignedURL, error)
	OpenSignedStream(ctx context.Context, storagePath, expires, sig string) (*attachment.Stream, error)
	Constraints() attachment.Constraints
}
