package attachment

import (
	"io"
	"time"

	"github.com/google/uuid"
)

type (
	StartUpload struct {
		ParentType  ParentType
		ParentID    uuid.UUID
		FileName    string
		ContentType string
		ActingUser  string
	}

	// UploadTicket tells the client where and how to send the bytes.
	UploadTicket struct {
		AttachmentID ID
		StoragePath  string
		UploadURL    string
		Method       string
		Headers      map[string]string
		ExpiresAt    time.Time
	}

	StatusReport struct {
		Status          Status
		Size            *int64
		ExistsInStorage bool
		ContentType     string
	}

	Stream struct {
		Body        io.ReadCloser
		ContentType string
		FileName    string
		Size        int64
		RevisionTag string
		// RedirectURL is set instead of Body when the backend serves the
		// bytes itself.
		RedirectURL string
	}

	SignedURL struct {
		URL       string
		ExpiresAt time.Time
	}

	Constraints struct {
		AllowedContentTypes []string
		AllowedExtensions   []string
		MaxSizeBytes        int64
		DefaultTTLMinutes   int
		MaxTTLMinutes       int
	}
)
