package attachment

import "time"

type (
	Attachment struct {
		ID         string
		ParentType string
		ParentID   string

		FileName    string
		ContentType string
		SizeBytes   *int64
		Status      string
		StoragePath string
		UploadedBy  string

		HasThumbnail bool
		Version      int

		CreatedAt   time.Time
		CompletedAt *time.Time
	}
	Attachments []*Attachment
)
