package mq

import (
	"time"

	"github.com/google/uuid"
)

const ActionAttachmentCompleted = "attachment.completed"

type Event struct {
	Id           uuid.UUID `json:"event_id"`
	TS           time.Time `json:"time_stamp"`
	Action       string    `json:"event_action"`
	AttachmentID uuid.UUID `json:"attachment_id"`
}

func newEvent(action string, attachmentID uuid.UUID, now time.Time) Event {
	return Event{
		Id:           uuid.New(),
		TS:           now.UTC(),
		Action:       action,
		AttachmentID: attachmentID,
	}
}
