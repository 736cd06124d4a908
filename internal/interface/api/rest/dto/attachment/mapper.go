package attachment

import (
	"attachment-api/internal/domain/attachment"
	"attachment-api/internal/infrastructure/storage"
)

func ToStartResponse(t attachment.UploadTicket) StartResponse {
	headers := t.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	return StartResponse{
		AttachmentID: t.AttachmentID,
		StoragePath:  t.StoragePath,
		UploadURL:    t.UploadURL,
		Method:       t.Method,
		Headers:      headers,
		ExpiresAt:    t.ExpiresAt,
	}
}

func ToResponseAttachment(aDomain attachment.Attachment) Attachment {
	var a = Attachment{
		ID:           aDomain.ID,
		ParentType:   string(aDomain.ParentType),
		ParentID:     aDomain.ParentID,
		FileName:     aDomain.FileName,
		ContentType:  aDomain.ContentType,
		SizeBytes:    aDomain.Size,
		Status:       string(aDomain.Status),
		UploadedBy:   aDomain.UploadedBy,
		HasThumbnail: aDomain.HasThumbnail,
		CreatedAt:    aDomain.CreatedAt,
		CompletedAt:  aDomain.CompletedAt,
	}

	return a
}

func ToResponseAttachments(asDomain attachment.Attachments) Attachments {
	as := make(Attachments, len(asDomain))
	for idx, a := range asDomain {
		as[idx] = ToResponseAttachment(*a)
	}

	return as
}

func ToResponseStatus(s attachment.StatusReport) Status {
	return Status{
		Status:          string(s.Status),
		SizeBytes:       s.Size,
		ExistsInStorage: s.ExistsInStorage,
		ContentType:     s.ContentType,
	}
}

func ToResponseSignedURL(s attachment.SignedURL) SignedURL {
	return SignedURL{URL: s.URL, ExpiresAt: s.ExpiresAt}
}

func ToResponseConstraints(c attachment.Constraints) Constraints {
	return Constraints{
		AllowedContentTypes: c.AllowedContentTypes,
		AllowedExtensions:   c.AllowedExtensions,
		MaxSizeBytes:        c.MaxSizeBytes,
		DefaultTTLMinutes:   c.DefaultTTLMinutes,
		MaxTTLMinutes:       c.MaxTTLMinutes,
	}
}

func ToResponseUploaded(p storage.ObjectProperties) Uploaded {
	return Uploaded{SizeBytes: p.Size, ETag: p.RevisionTag}
}
