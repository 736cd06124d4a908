package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"attachment-api/internal/domain/attachment"
	"attachment-api/internal/infrastructure/storage"
)

// statusFor maps service errors onto HTTP statuses and client messages.
// ok is false for errors the client should only see as a 500.
func statusFor(err error) (status int, msg string, ok bool) {
	var ve *attachment.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Reason, true
	case errors.Is(err, attachment.ErrValidation):
		return http.StatusBadRequest, err.Error(), true
	case errors.Is(err, attachment.ErrParentNotFound):
		return http.StatusNotFound, "parent not found", true
	case errors.Is(err, attachment.ErrNotFound), errors.Is(err, attachment.ErrDataLoss):
		return http.StatusNotFound, "attachment not found", true
	case errors.Is(err, attachment.ErrUnauthorized):
		return http.StatusUnauthorized, "invalid or expired link", true
	case errors.Is(err, storage.ErrObjectExists):
		return http.StatusConflict, "object already exists", true
	case errors.Is(err, attachment.ErrConflict), errors.Is(err, attachment.ErrInvalidOperation):
		return http.StatusConflict, err.Error(), true
	case errors.Is(err, storage.ErrUnavailable):
		return http.StatusServiceUnavailable, "storage temporarily unavailable", true
	}
	return http.StatusInternalServerError, "", false
}

func respondError(c *gin.Context, logger *zap.Logger, op, fallback string, err error) {
	status, msg, ok := statusFor(err)
	if !ok {
		msg = fallback
		logger.Error(op+" error", zap.Error(err))
	} else if status == http.StatusServiceUnavailable {
		logger.Warn(op+" storage unavailable", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": msg})
}
