package parent

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"attachment-api/internal/domain/attachment"
	"attachment-api/internal/infrastructure/db/postgres"
)

type Repository struct {
	db postgres.DB
}

func NewRepository(db postgres.DB) attachment.ParentRepository {
	return &Repository{db: db}
}

func (r *Repository) ParentExists(ctx context.Context, parentType attachment.ParentType, parentID uuid.UUID) (bool, error) {
	var query string
	switch parentType {
	case attachment.ParentIncident:
		query = IncidentExists
	case attachment.ParentComment:
		query = CommentExists
	default:
		return false, fmt.Errorf("unknown parent type %q", parentType)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, query, parentID.String()).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
