package payloads

import (
	"time"

	"github.com/angelmondragon/chatwoot-scheduler/pkg/enums"
	"github.com/google/uuid"
)

// ScheduleCreatedEvent is emitted when an operator queues a new message.
type ScheduleCreatedEvent struct {
	ScheduleID     uuid.UUID            `json:"schedule_id"`
	ContactID      int64                `json:"contact_id"`
	ConversationID int64                `json:"conversation_id"`
	ScheduledAt    time.Time            `json:"scheduled_at"`
	ScheduledFor   string               `json:"scheduled_for"`
	Status         enums.ScheduleStatus `json:"status"`
	EditID         uuid.UUID            `json:"edit_id"`
	Alert          bool                 `json:"alert"`
	Attachments    int                  `json:"attachment_count"`
}

// ScheduleEditedEvent carries the edit lineage of a changed schedule.
type ScheduleEditedEvent struct {
	ScheduleID      uuid.UUID            `json:"schedule_id"`
	ContactID       int64                `json:"contact_id"`
	ConversationID  int64                `json:"conversation_id"`
	ScheduledAt     time.Time            `json:"scheduled_at"`
	ScheduledFor    string               `json:"scheduled_for"`
	Status          enums.ScheduleStatus `json:"status"`
	EditID          uuid.UUID            `json:"edit_id"`
	PreviousEditIDs []uuid.UUID          `json:"previous_edit_ids"`
	ChangedFields   []string             `json:"changed_fields"`
}

// ScheduleCancelledEvent is emitted on soft cancellation.
type ScheduleCancelledEvent struct {
	ScheduleID     uuid.UUID            `json:"schedule_id"`
	ContactID      int64                `json:"contact_id"`
	ConversationID int64                `json:"conversation_id"`
	ExcID          uuid.UUID            `json:"exc_id"`
	PreviousStatus enums.ScheduleStatus `json:"previous_status"`
}

// ScheduleDeliveryReportedEvent records the outcome reported by the automation engine.
type ScheduleDeliveryReportedEvent struct {
	ScheduleID     uuid.UUID            `json:"schedule_id"`
	ContactID      int64                `json:"contact_id"`
	ConversationID int64                `json:"conversation_id"`
	Status         enums.ScheduleStatus `json:"status"`
	Reason         string               `json:"reason,omitempty"`
	MessageID      string               `json:"message_id,omitempty"`
	ReportedAt     time.Time            `json:"reported_at"`
}
