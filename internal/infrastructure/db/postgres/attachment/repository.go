package attachment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"attachment-api/internal/domain/attachment"
	"attachment-api/internal/infrastructure/db/postgres"
)

type Repository struct {
	db postgres.DB
}

func NewRepository(db postgres.DB) attachment.Repository {
	return &Repository{db: db}
}

func scan(row pgx.Row, a *Attachment) error {
	return row.Scan(
		&a.ID,
		&a.ParentType,
		&a.ParentID,

		&a.FileName,
		&a.ContentType,
		&a.SizeBytes,
		&a.Status,
		&a.StoragePath,
		&a.UploadedBy,

		&a.HasThumbnail,
		&a.Version,

		&a.CreatedAt,
		&a.CompletedAt,
	)
}

func (r *Repository) CreateAttachment(ctx context.Context, req *attachment.Attachment) (*attachment.Attachment, error) {
	a := new(Attachment)

	err := scan(r.db.QueryRow(
		ctx,
		InsertAttachment,
		req.ID.String(), string(req.ParentType), req.ParentID.String(), req.FileName, req.ContentType, req.StoragePath, req.UploadedBy,
	), a)
	if err != nil {
		if postgres.IsPgUniqueViolation(err) {
			return nil, attachment.ErrDuplicateStoragePath
		}
		return nil, err
	}

	return fromDBModel(a)
}

func (r *Repository) FetchAttachment(ctx context.Context, id attachment.ID) (*attachment.Attachment, error) {
	return r.fetchOne(ctx, SelectAttachmentByID, id.String())
}

func (r *Repository) FetchByStoragePath(ctx context.Context, storagePath string) (*attachment.Attachment, error) {
	return r.fetchOne(ctx, SelectAttachmentByStoragePath, storagePath)
}

func (r *Repository) fetchOne(ctx context.Context, query string, arg string) (*attachment.Attachment, error) {
	a := new(Attachment)
	if err := scan(r.db.QueryRow(ctx, query, arg), a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return fromDBModel(a)
}

func (r *Repository) FetchByParent(ctx context.Context, parentType attachment.ParentType, parentID uuid.UUID) (attachment.Attachments, error) {
	rows, err := r.db.Query(ctx, SelectAttachmentsByParent, string(parentType), parentID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var as Attachments
	for rows.Next() {
		a := new(Attachment)
		if err = scan(rows, a); err != nil {
			return nil, err
		}

		as = append(as, a)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return fromDBModels(&as)
}

func (r *Repository) MarkCompleted(ctx context.Context, req *attachment.Attachment, expectedVersion int) (*attachment.Attachment, error) {
	a := new(Attachment)

	err := scan(r.db.QueryRow(
		ctx,
		CompleteAttachment,
		req.ID.String(), expectedVersion, req.ContentType, req.Size, req.CompletedAt,
	), a)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, attachment.ErrConcurrentUpdate
		}
		return nil, err
	}

	return fromDBModel(a)
}
