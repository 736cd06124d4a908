package attachment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrConcurrentUpdate is returned by MarkCompleted when the stored
	// version moved on or the row is no longer pending.
	ErrConcurrentUpdate     = errors.New("attachment modified concurrently")
	ErrDuplicateStoragePath = fmt.Errorf("%w: storage path already in use", ErrConflict)
)

type Repository interface {
	CreateAttachment(ctx context.Context, a *Attachment) (*Attachment, error)
	FetchAttachment(ctx context.Context, id ID) (*Attachment, error)
	FetchByStoragePath(ctx context.Context, storagePath string) (*Attachment, error)
	FetchByParent(ctx context.Context, parentType ParentType, parentID uuid.UUID) (Attachments, error)
	// MarkCompleted persists the completed state only if the stored version
	// still equals expectedVersion.
	MarkCompleted(ctx context.Context, a *Attachment, expectedVersion int) (*Attachment, error)
}

type ParentRepository interface {
	ParentExists(ctx context.Context, parentType ParentType, parentID uuid.UUID) (bool, error)
}
