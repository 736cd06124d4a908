package rest

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"attachment-api/internal/application/ports"
	domain "attachment-api/internal/domain/attachment"
	"attachment-api/internal/infrastructure/jwt"
	"attachment-api/internal/interface/api/rest/dto/attachment"
	"attachment-api/internal/interface/api/rest/middleware"
	"attachment-api/internal/interface/api/rest/validator"
)

const cacheControl = "private, max-age=300"

type AttachmentController struct {
	attachmentService ports.AttachmentService
	defaultTTLMinutes int
	logger            *zap.Logger
}

func NewAttachmentController(
	r *gin.Engine,
	attachmentService ports.AttachmentService,
	logger *zap.Logger,
	jwtService *jwt.Service,
) *AttachmentController {
	ac := &AttachmentController{
		attachmentService: attachmentService,
		defaultTTLMinutes: attachmentService.Constraints().DefaultTTLMinutes,
		logger:            logger,
	}
	auth := middleware.AuthMiddleware(jwtService)

	r.POST(RouteIncidentAttachments, auth, ac.StartUploadHandler(domain.ParentIncident))
	r.GET(RouteIncidentAttachments, auth, ac.ListHandler(domain.ParentIncident))
	r.POST(RouteCommentAttachments, auth, ac.StartUploadHandler(domain.ParentComment))
	r.GET(RouteCommentAttachments, auth, ac.ListHandler(domain.ParentComment))

	r.GET(RouteAttachmentConstraint, ac.ConstraintsHandler)
	r.GET(RouteAttachmentDownload, ac.SignedDownloadHandler)

	r.GET(RouteAttachment, auth, ac.GetMetadataHandler)
	r.POST(RouteAttachmentComplete, auth, ac.CompleteUploadHandler)
	r.GET(RouteAttachmentStatus, auth, ac.GetStatusHandler)
	r.GET(RouteAttachmentContent, auth, ac.ContentHandler)
	r.POST(RouteAttachmentSignedURL, auth, ac.IssueSignedURLHandler)

	return ac
}

func (ac *AttachmentController) StartUploadHandler(parentType domain.ParentType) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, parentID := validator.IsUUID(c.Param("parent_id"))
		if !ok {
			c.JSON(
				http.StatusBadRequest,
				gin.H{"error": "parent_id must be a valid UUID"},
			)
			return
		}

		var req attachment.StartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(
				http.StatusBadRequest,
				gin.H{"error": "invalid request body", "details": err.Error()},
			)
			return
		}
		if errs := validator.ValidateStart(req); errs != nil {
			c.JSON(
				http.StatusBadRequest,
				gin.H{"error": "invalid request body", "details": errs},
			)
			return
		}

		ticket, err := ac.attachmentService.StartUpload(c.Request.Context(), domain.StartUpload{
			ParentType:  parentType,
			ParentID:    parentID,
			FileName:    req.FileName,
			ContentType: req.ContentType,
			ActingUser:  c.GetString(middleware.CtxUserID),
		})
		if err != nil {
			respondError(c, ac.logger, "StartUpload()", "failed to start upload", err)
			return
		}

		c.JSON(http.StatusCreated, attachment.ToStartResponse(*ticket))
	}
}

func (ac *AttachmentController) ListHandler(parentType domain.ParentType) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, parentID := validator.IsUUID(c.Param("parent_id"))
		if !ok {
			c.JSON(
				http.StatusBadRequest,
				gin.H{"error": "parent_id must be a valid UUID"},
			)
			return
		}

		as, err := ac.attachmentService.ListByParent(c.Request.Context(), parentType, parentID)
		if err != nil {
			respondError(c, ac.logger, "ListByParent()", "failed to get attachments", err)
			return
		}

		c.JSON(http.StatusOK, attachment.ResponseData{
			Data: attachment.ToResponseAttachments(as),
		})
	}
}

func (ac *AttachmentController) CompleteUploadHandler(c *gin.Context) {
	id, ok := ac.attachmentID(c)
	if !ok {
		return
	}

	a, err := ac.attachmentService.CompleteUpload(c.Request.Context(), id)
	if err != nil {
		respondError(c, ac.logger, "CompleteUpload()", "failed to complete upload", err)
		return
	}

	c.JSON(http.StatusOK, attachment.ToResponseAttachment(*a))
}

func (ac *AttachmentController) GetMetadataHandler(c *gin.Context) {
	id, ok := ac.attachmentID(c)
	if !ok {
		return
	}

	a, err := ac.attachmentService.GetMetadata(c.Request.Context(), id)
	if err != nil {
		respondError(c, ac.logger, "GetMetadata()", "failed to get attachment", err)
		return
	}

	c.JSON(http.StatusOK, attachment.ToResponseAttachment(*a))
}

func (ac *AttachmentController) GetStatusHandler(c *gin.Context) {
	id, ok := ac.attachmentID(c)
	if !ok {
		return
	}

	s, err := ac.attachmentService.GetStatus(c.Request.Context(), id)
	if err != nil {
		respondError(c, ac.logger, "GetStatus()", "failed to get status", err)
		return
	}

	c.JSON(http.StatusOK, attachment.ToResponseStatus(*s))
}

func (ac *AttachmentController) ContentHandler(c *gin.Context) {
	id, ok := ac.attachmentID(c)
	if !ok {
		return
	}

	s, err := ac.attachmentService.OpenStream(c.Request.Context(), id)
	if err != nil {
		respondError(c, ac.logger, "OpenStream()", "failed to open attachment", err)
		return
	}

	ac.serve(c, s)
}

func (ac *AttachmentController) IssueSignedURLHandler(c *gin.Context) {
	id, ok := ac.attachmentID(c)
	if !ok {
		return
	}

	var req attachment.SignedURLRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(
			http.StatusBadRequest,
			gin.H{"error": "invalid request body", "details": err.Error()},
		)
		return
	}
	if errs := validator.ValidateSignedURL(req); errs != nil {
		c.JSON(
			http.StatusBadRequest,
			gin.H{"error": "invalid request body", "details": errs},
		)
		return
	}
	ttl := ac.defaultTTLMinutes
	if req.TTLMinutes != nil {
		ttl = *req.TTLMinutes
	}

	u, err := ac.attachmentService.IssueSignedURL(c.Request.Context(), id, ttl)
	if err != nil {
		respondError(c, ac.logger, "IssueSignedURL()", "failed to issue signed url", err)
		return
	}

	c.JSON(http.StatusOK, attachment.ToResponseSignedURL(*u))
}

// SignedDownloadHandler needs no bearer token; the signature is the
// credential.
func (ac *AttachmentController) SignedDownloadHandler(c *gin.Context) {
	p, expires, sig := c.Query("path"), c.Query("expires"), c.Query("sig")
	if p == "" || expires == "" || sig == "" {
		c.JSON(
			http.StatusUnauthorized,
			gin.H{"error": "invalid or expired link"},
		)
		return
	}

	s, err := ac.attachmentService.OpenSignedStream(c.Request.Context(), p, expires, sig)
	if err != nil {
		respondError(c, ac.logger, "OpenSignedStream()", "failed to open attachment", err)
		return
	}

	ac.serve(c, s)
}

func (ac *AttachmentController) ConstraintsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, attachment.ToResponseConstraints(ac.attachmentService.Constraints()))
}

func (ac *AttachmentController) attachmentID(c *gin.Context) (domain.ID, bool) {
	ok, id := validator.IsUUID(c.Param("attachment_id"))
	if !ok {
		c.JSON(
			http.StatusBadRequest,
			gin.H{"error": "attachment_id must be a valid UUID"},
		)
	}
	return id, ok
}

// serve writes a stream, honouring If-None-Match. The body is always closed.
func (ac *AttachmentController) serve(c *gin.Context, s *domain.Stream) {
	if s.Body != nil {
		defer s.Body.Close()
	}

	etag := quoteETag(s.RevisionTag)
	if etag != "" {
		c.Header("ETag", etag)
	}
	c.Header("Cache-Control", cacheControl)

	if ifNoneMatch(c.GetHeader("If-None-Match"), etag) {
		c.Status(http.StatusNotModified)
		return
	}

	if s.RedirectURL != "" {
		c.Redirect(http.StatusFound, s.RedirectURL)
		return
	}

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": s.FileName})
	if disposition == "" {
		disposition = "attachment"
	}

	c.DataFromReader(http.StatusOK, s.Size, s.ContentType, s.Body, map[string]string{
		"Content-Disposition":    disposition,
		"X-Content-Type-Options": "nosniff",
	})
}
