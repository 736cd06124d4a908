package mq

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"attachment-api/internal/application/ports"
)

// LogSink records audit events in the service log when no broker is set up.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(logger *zap.Logger) ports.AuditSink {
	return &LogSink{log: logger}
}

func (s *LogSink) AttachmentCompleted(_ context.Context, attachmentID uuid.UUID) {
	e := newEvent(ActionAttachmentCompleted, attachmentID, time.Now())
	s.log.Info("audit",
		zap.String("event_action", e.Action),
		zap.Stringer("event_id", e.Id),
		zap.Stringer("attachment_id", e.AttachmentID),
	)
}
