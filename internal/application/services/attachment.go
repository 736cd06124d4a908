package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"attachment-api/internal/application/policy"
	"attachment-api/internal/application/ports"
	domain "attachment-api/internal/domain/attachment"
	"attachment-api/internal/infrastructure/metrics"
	"attachment-api/internal/infrastructure/storage"
)

type AttachmentDeps struct {
	Repository domain.Repository
	Parents    domain.ParentRepository
	Storage    ports.StorageBackend
	Policy     *policy.Policy
	// Sanitizer may be nil; Sanitize gates it either way.
	Sanitizer ports.Sanitizer
	Sanitize  bool
	Signer    ports.URLSigner
	Audit     ports.AuditSink
	MCounter  *prometheus.CounterVec
	Logger    *zap.Logger
	Now       func() time.Time
}

type AttachmentService struct {
	repository domain.Repository
	parents    domain.ParentRepository
	storage    ports.StorageBackend
	policy     *policy.Policy
	sanitizer  ports.Sanitizer
	sanitize   bool
	signer     ports.URLSigner
	audit      ports.AuditSink
	mCounter   *prometheus.CounterVec
	logger     *zap.Logger
	now        func() time.Time

	completing *keyedMutex
}

func NewAttachmentService(d AttachmentDeps) ports.AttachmentService {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &AttachmentService{
		repository: d.Repository,
		parents:    d.Parents,
		storage:    d.Storage,
		policy:     d.Policy,
		sanitizer:  d.Sanitizer,
		sanitize:   d.Sanitize && d.Sanitizer != nil,
		signer:     d.Signer,
		audit:      d.Audit,
		mCounter:   d.MCounter,
		logger:     d.Logger,
		now:        now,
		completing: newKeyedMutex(),
	}
}

func (as *AttachmentService) StartUpload(ctx context.Context, req domain.StartUpload) (*domain.UploadTicket, error) {
	if !req.ParentType.Valid() {
		return nil, domain.NewValidationError("unknown parent type %q", req.ParentType)
	}
	if req.ParentID == uuid.Nil {
		return nil, domain.NewValidationError("parent id is required")
	}
	fileName := strings.TrimSpace(req.FileName)
	contentType := storage.NormalizeContentType(req.ContentType)
	if err := as.policy.Validate(contentType, fileName); err != nil {
		return nil, err
	}

	exists, err := as.parents.ParentExists(ctx, req.ParentType, req.ParentID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrParentNotFound
	}

	id := uuid.New()
	slot, err := as.storage.CreateUploadSlot(
		ctx,
		storage.ParentPrefix(req.ParentType.Collection(), req.ParentID),
		id,
		fileName,
		contentType,
	)
	if err != nil {
		return nil, storageErr(err)
	}

	a, err := as.repository.CreateAttachment(ctx, &domain.Attachment{
		ID:          id,
		ParentType:  req.ParentType,
		ParentID:    req.ParentID,
		FileName:    fileName,
		ContentType: contentType,
		Status:      domain.StatusPending,
		StoragePath: slot.StoragePath,
		UploadedBy:  req.ActingUser,
		Version:     1,
		CreatedAt:   as.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	as.mCounter.WithLabelValues(metrics.UploadStarted).Inc()

	return &domain.UploadTicket{
		AttachmentID: a.ID,
		StoragePath:  a.StoragePath,
		UploadURL:    slot.UploadURL,
		Method:       slot.Method,
		Headers:      slot.Headers,
		ExpiresAt:    slot.ExpiresAt,
	}, nil
}

func (as *AttachmentService) CompleteUpload(ctx context.Context, id domain.ID) (*domain.Attachment, error) {
	unlock := as.completing.Lock(id)
	defer unlock()

	a, err := as.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.IsCompleted() {
		return nil, as.conflict(domain.ErrAlreadyCompleted)
	}

	props, err := as.storage.TryGetUploaded(ctx, a.StoragePath)
	if err != nil {
		return nil, storageErr(err)
	}
	if props == nil {
		return nil, as.conflict(domain.ErrNotUploaded)
	}

	contentType := storage.NormalizeContentType(a.ContentType)
	reported := storage.NormalizeContentType(props.ContentType)
	switch {
	case contentType == storage.OctetStream && reported != "":
		contentType = reported
	case reported != contentType:
		return nil, as.conflict(domain.ErrContentTypeMismatch)
	}

	if d := as.policy.CheckSize(props.Size); !d.Allowed {
		// Drop the oversized object so the client can upload again.
		if derr := as.storage.Delete(ctx, a.StoragePath); derr != nil {
			as.logger.Warn("failed to delete oversized object", zap.Stringer("attachment_id", id), zap.Error(derr))
		}
		return nil, domain.NewValidationError("%s: %d bytes, limit %d", d.Reason, props.Size, as.policy.MaxSizeBytes())
	}

	size := props.Size
	if as.sanitize && as.sanitizer.Supports(contentType) {
		if res := as.sanitizer.TrySanitize(ctx, a.StoragePath, contentType); res.Changed {
			size = res.NewLength
			contentType = res.NewContentType
			as.mCounter.WithLabelValues(metrics.Sanitized).Inc()
		}
	}

	completedAt := as.now().UTC()
	next := *a
	next.Status = domain.StatusCompleted
	next.ContentType = contentType
	next.Size = &size
	next.CompletedAt = &completedAt

	saved, err := as.repository.MarkCompleted(ctx, &next, a.Version)
	if err != nil {
		if errors.Is(err, domain.ErrConcurrentUpdate) {
			return nil, as.conflict(domain.ErrAlreadyCompleted)
		}
		return nil, err
	}

	as.mCounter.WithLabelValues(metrics.UploadCompleted).Inc()
	as.audit.AttachmentCompleted(ctx, saved.ID)

	return saved, nil
}

func (as *AttachmentService) GetStatus(ctx context.Context, id domain.ID) (*domain.StatusReport, error) {
	a, err := as.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	props, err := as.storage.TryGetUploaded(ctx, a.StoragePath)
	if err != nil {
		return nil, storageErr(err)
	}

	return &domain.StatusReport{
		Status:          a.Status,
		Size:            a.Size,
		ExistsInStorage: props != nil,
		ContentType:     a.ContentType,
	}, nil
}

func (as *AttachmentService) GetMetadata(ctx context.Context, id domain.ID) (*domain.Attachment, error) {
	return as.fetch(ctx, id)
}

func (as *AttachmentService) ListByParent(ctx context.Context, parentType domain.ParentType, parentID uuid.UUID) (domain.Attachments, error) {
	if !parentType.Valid() {
		return nil, domain.NewValidationError("unknown parent type %q", parentType)
	}
	exists, err := as.parents.ParentExists(ctx, parentType, parentID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrParentNotFound
	}

	return as.repository.FetchByParent(ctx, parentType, parentID)
}

func (as *AttachmentService) OpenStream(ctx context.Context, id domain.ID) (*domain.Stream, error) {
	a, err := as.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.IsCompleted() {
		return nil, domain.ErrNotCompleted
	}

	return as.openCompleted(ctx, a)
}

func (as *AttachmentService) IssueSignedURL(ctx context.Context, id domain.ID, ttlMinutes int) (*domain.SignedURL, error) {
	if err := as.policy.ValidateTTL(ttlMinutes); err != nil {
		return nil, err
	}
	a, err := as.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.IsCompleted() {
		return nil, domain.ErrNotCompleted
	}

	u, expiresAt, err := as.signer.SignedURL(a.StoragePath, time.Duration(ttlMinutes)*time.Minute)
	if err != nil {
		return nil, err
	}

	as.mCounter.WithLabelValues(metrics.SignedURLIssued).Inc()

	return &domain.SignedURL{URL: u, ExpiresAt: expiresAt}, nil
}

// OpenSignedStream serves an anonymous download once the signature checks
// out. Backends that sign their own URLs get a redirect instead of a body.
func (as *AttachmentService) OpenSignedStream(ctx context.Context, storagePath, expires, sig string) (*domain.Stream, error) {
	if err := as.signer.Verify(storagePath, expires, sig); err != nil {
		as.mCounter.WithLabelValues(metrics.SignedURLDenied).Inc()
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	a, err := as.repository.FetchByStoragePath(ctx, storagePath)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, domain.ErrNotFound
	}
	if !a.IsCompleted() {
		return nil, domain.ErrNotCompleted
	}

	dd, ok := as.storage.(ports.DirectDownloader)
	if !ok {
		return as.openCompleted(ctx, a)
	}

	props, err := as.present(ctx, a)
	if err != nil {
		return nil, err
	}
	expiresUnix, _ := strconv.ParseInt(expires, 10, 64)
	u, err := dd.DownloadURL(ctx, a.StoragePath, time.Unix(expiresUnix, 0))
	if err != nil {
		return nil, storageErr(err)
	}

	return &domain.Stream{
		ContentType: a.ContentType,
		FileName:    a.FileName,
		Size:        props.Size,
		RevisionTag: props.RevisionTag,
		RedirectURL: u,
	}, nil
}

func (as *AttachmentService) Constraints() domain.Constraints {
	return as.policy.Constraints()
}

func (as *AttachmentService) fetch(ctx context.Context, id domain.ID) (*domain.Attachment, error) {
	a, err := as.repository.FetchAttachment(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

func (as *AttachmentService) openCompleted(ctx context.Context, a *domain.Attachment) (*domain.Stream, error) {
	props, err := as.present(ctx, a)
	if err != nil {
		return nil, err
	}

	body, err := as.storage.OpenRead(ctx, a.StoragePath)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, as.dataLoss(a)
	}
	if err != nil {
		return nil, storageErr(err)
	}

	return &domain.Stream{
		Body:        body,
		ContentType: a.ContentType,
		FileName:    a.FileName,
		Size:        props.Size,
		RevisionTag: props.RevisionTag,
	}, nil
}

// present returns the properties of a completed attachment's object and
// reports data loss when it is gone.
func (as *AttachmentService) present(ctx context.Context, a *domain.Attachment) (*storage.ObjectProperties, error) {
	props, err := as.storage.TryGetUploaded(ctx, a.StoragePath)
	if err != nil {
		return nil, storageErr(err)
	}
	if props == nil {
		return nil, as.dataLoss(a)
	}
	return props, nil
}

func (as *AttachmentService) dataLoss(a *domain.Attachment) error {
	as.mCounter.WithLabelValues(metrics.StorageDataLoss).Inc()
	as.logger.Error("storage data loss: completed attachment has no object",
		zap.Stringer("attachment_id", a.ID),
		zap.String("parent_type", string(a.ParentType)),
		zap.Stringer("parent_id", a.ParentID),
		zap.String("storage_path", a.StoragePath),
	)
	return domain.ErrDataLoss
}

func (as *AttachmentService) conflict(err error) error {
	as.mCounter.WithLabelValues(metrics.UploadConflict).Inc()
	return err
}

// storageErr turns argument problems into validation errors and passes
// everything else through.
func storageErr(err error) error {
	if errors.Is(err, storage.ErrInvalidPath) || errors.Is(err, storage.ErrInvalidArgument) {
		return &domain.ValidationError{Reason: err.Error()}
	}
	return err
}
