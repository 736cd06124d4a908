package rest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"attachment-api/internal/application/ports"
	"attachment-api/internal/infrastructure/storage"
	"attachment-api/internal/interface/api/rest/dto/attachment"
)

// LoopbackController accepts the raw uploads the loopback backend hands
// out slots for. It is only mounted when that backend is active.
type LoopbackController struct {
	receiver ports.ObjectReceiver
	maxBytes int64
	logger   *zap.Logger
}

func NewLoopbackController(
	r *gin.Engine,
	receiver ports.ObjectReceiver,
	maxBytes int64,
	logger *zap.Logger,
) *LoopbackController {
	lc := &LoopbackController{
		receiver: receiver,
		maxBytes: maxBytes,
		logger:   logger,
	}

	r.PUT(RouteLoopbackUpload, lc.UploadHandler)

	return lc
}

func (lc *LoopbackController) UploadHandler(c *gin.Context) {
	p := strings.TrimPrefix(c.Param("path"), "/")
	if err := storage.ValidatePath(p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if lc.maxBytes > 0 && c.Request.ContentLength > lc.maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	ct := c.ContentType()
	if ct == "" {
		ct = storage.OctetStream
	}
	body := c.Request.Body
	if lc.maxBytes > 0 {
		body = http.MaxBytesReader(c.Writer, body, lc.maxBytes)
	}

	props, err := lc.receiver.Receive(c.Request.Context(), p, body, ct)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		case errors.Is(err, storage.ErrInvalidPath):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			respondError(c, lc.logger, "Receive()", "failed to store upload", err)
		}
		return
	}

	c.Header("ETag", quoteETag(props.RevisionTag))
	c.JSON(http.StatusCreated, attachment.ToResponseUploaded(*props))
}
