package attachment

import (
	"fmt"

	"github.com/google/uuid"

	domain "attachment-api/internal/domain/attachment"
)

func fromDBModel(model *Attachment) (*domain.Attachment, error) {
	id, err := uuid.Parse(model.ID)
	if err != nil {
		return nil, fmt.Errorf("attachment id %q: %w", model.ID, err)
	}
	parentID, err := uuid.Parse(model.ParentID)
	if err != nil {
		return nil, fmt.Errorf("attachment %s parent id %q: %w", model.ID, model.ParentID, err)
	}

	var a = &domain.Attachment{
		ID:         id,
		ParentType: domain.ParentType(model.ParentType),
		ParentID:   parentID,

		FileName:    model.FileName,
		ContentType: model.ContentType,
		Size:        model.SizeBytes,
		Status:      domain.Status(model.Status),
		StoragePath: model.StoragePath,
		UploadedBy:  model.UploadedBy,

		HasThumbnail: model.HasThumbnail,
		Version:      model.Version,

		CreatedAt:   model.CreatedAt,
		CompletedAt: model.CompletedAt,
	}

	return a, nil
}

func fromDBModels(models *Attachments) (domain.Attachments, error) {
	as := make(domain.Attachments, len(*models))
	for idx, m := range *models {
		a, err := fromDBModel(m)
		if err != nil {
			return nil, err
		}
		as[idx] = a
	}

	return as, nil
}
