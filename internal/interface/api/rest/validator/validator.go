package validator

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"attachment-api/internal/interface/api/rest/dto/attachment"
)

const (
	maxFileNameLen    = 255
	maxContentTypeLen = 127
)

func IsUUID(s string) (bool, uuid.UUID) {
	id, err := uuid.Parse(s)
	return err == nil && id != uuid.Nil, id
}

// ValidateStart checks request shape only; content rules belong to the
// upload policy.
func ValidateStart(r attachment.StartRequest) map[string]string {
	errs := make(map[string]string)

	name := strings.TrimSpace(r.FileName)
	ct := strings.TrimSpace(r.ContentType)

	if name == "" {
		errs["file_name"] = "file_name is required"
	} else if !utf8.ValidString(name) {
		errs["file_name"] = "file_name must be valid UTF-8"
	} else if utf8.RuneCountInString(name) > maxFileNameLen {
		errs["file_name"] = "file_name must be at most 255 characters"
	}

	if ct == "" {
		errs["content_type"] = "content_type is required"
	} else if len(ct) > maxContentTypeLen || !strings.Contains(ct, "/") {
		errs["content_type"] = "content_type must look like type/subtype"
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func ValidateSignedURL(r attachment.SignedURLRequest) map[string]string {
	if r.TTLMinutes != nil && *r.TTLMinutes <= 0 {
		return map[string]string{"ttl_minutes": "ttl_minutes must be positive"}
	}
	return nil
}
