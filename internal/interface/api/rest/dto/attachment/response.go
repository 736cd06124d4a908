package attachment

import (
	"time"

	"github.com/google/uuid"
)

type (
	// StartResponse is the only read model that carries the storage path.
	StartResponse struct {
		AttachmentID uuid.UUID         `json:"attachment_id"`
		StoragePath  string            `json:"storage_path"`
		UploadURL    string            `json:"upload_url"`
		Method       string            `json:"method"`
		Headers      map[string]string `json:"headers"`
		ExpiresAt    time.Time         `json:"expires_at"`
	}

	Attachment struct {
		ID           uuid.UUID  `json:"id"`
		ParentType   string     `json:"parent_type"`
		ParentID     uuid.UUID  `json:"parent_id"`
		FileName     string     `json:"file_name"`
		ContentType  string     `json:"content_type"`
		SizeBytes    *int64     `json:"size_bytes"`
		Status       string     `json:"status"`
		UploadedBy   string     `json:"uploaded_by"`
		HasThumbnail bool       `json:"has_thumbnail"`
		CreatedAt    time.Time  `json:"created_at"`
		CompletedAt  *time.Time `json:"completed_at,omitempty"`
	}
	Attachments  []Attachment
	ResponseData struct {
		Data Attachments `json:"data"`
	}

	Status struct {
		Status          string `json:"status"`
		SizeBytes       *int64 `json:"size_bytes"`
		ExistsInStorage bool   `json:"exists_in_storage"`
		ContentType     string `json:"content_type"`
	}

	SignedURL struct {
		URL       string    `json:"url"`
		ExpiresAt time.Time `json:"expires_at"`
	}

	Constraints struct {
		AllowedContentTypes []string `json:"allowed_content_types"`
		AllowedExtensions   []string `json:"allowed_extensions"`
		MaxSizeBytes        int64    `json:"max_size_bytes"`
		DefaultTTLMinutes   int      `json:"default_ttl_minutes"`
		MaxTTLMinutes       int      `json:"max_ttl_minutes"`
	}

	Uploaded struct {
		SizeBytes int64  `json:"size_bytes"`
		ETag      string `json:"etag"`
	}
)
