package attachment

import (
	"time"

	"github.com/google/uuid"
)

type (
	ID         = uuid.UUID
	ParentType string
	Status     string

	Attachment struct {
		ID         ID
		ParentType ParentType
		ParentID   uuid.UUID

		FileName    string
		ContentType string
		Size        *int64
		Status      Status
		StoragePath string
		UploadedBy  string

		HasThumbnail bool
		// Version is the optimistic concurrency token, bumped on every write.
		Version int

		CreatedAt   time.Time
		CompletedAt *time.Time
	}
	Attachments []*Attachment
)

const (
	ParentIncident ParentType = "incident"
	ParentComment  ParentType = "comment"

	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

func (p ParentType) Valid() bool {
	return p == ParentIncident || p == ParentComment
}

// Collection is the plural name used for routes and storage prefixes.
func (p ParentType) Collection() string {
	switch p {
	case ParentIncident:
		return "incidents"
	case ParentComment:
		return "comments"
	}
	return ""
}

func ParentTypeFromCollection(s string) (ParentType, bool) {
	switch s {
	case "incidents":
		return ParentIncident, true
	case "comments":
		return ParentComment, true
	}
	return "", false
}

func (a *Attachment) IsCompleted() bool { return a.Status == StatusCompleted }
