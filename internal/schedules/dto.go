package schedules

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/angelmondragon/chatwoot-scheduler/pkg/db/types"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/enums"
)

// CallerRecord is the shape the Chatwoot widget and n8n read and write.
// Every field is always present; absent values are empty strings or slices.
type CallerRecord struct {
	ID              string               `json:"id"`
	Datetime        string               `json:"datetime"`
	ScheduledFor    string               `json:"scheduled_for"`
	Message         string               `json:"message"`
	Attachments     []dbtypes.Attachment `json:"attachments"`
	Status          enums.ScheduleStatus `json:"status"`
	ContactID       int64                `json:"contactId"`
	ConversationID  int64                `json:"conversationId"`
	HasAlert        bool                 `json:"hasAlert"`
	AlertAt         string               `json:"alertAt"`
	Comment         string               `json:"comment"`
	EditID          string               `json:"edit_id"`
	PreviousEditIDs []string             `json:"previous_edit_ids"`
	ExcID           string               `json:"exc_id"`
	LastUpdate      string               `json:"lastUpdate"`
	LastUpdateUTC   string               `json:"lastUpdateUTC"`
	CreatedAt       string               `json:"createdAt"`
	UpdatedAt       string               `json:"updatedAt"`
}

// CreateInput is a new schedule as submitted by the widget.
type CreateInput struct {
	ScheduledAt    string
	Message        string
	Attachments    []dbtypes.Attachment
	Alert          bool
	AlertAt        string
	Comment        string
	ContactID      int64
	ConversationID int64
	Contact        map[string]any
	Conversation   map[string]any
	Meta           map[string]any
	RequestID      string
}

// EditInput changes an active schedule. Nil fields keep their stored value.
type EditInput struct {
	ScheduledAt    *string
	Message        *string
	Attachments    *[]dbtypes.Attachment
	Alert          *bool
	AlertAt        *string
	Comment        *string
	ContactID      *int64
	ConversationID *int64
	Contact        map[string]any
	Conversation   map[string]any
	Meta           map[string]any
	ExpectedEditID *uuid.UUID
	RequestID      string
}

// CancelInput carries the caller's context for a cancellation.
type CancelInput struct {
	RequestID string
}

// DeliveryReport is the automation engine telling us what happened to a message.
type DeliveryReport struct {
	Status     enums.ScheduleStatus
	Reason     string
	MessageID  string
	ReportedAt time.Time
	RequestID  string
}

// RecentParams configures the operator listing.
type RecentParams struct {
	Status string
	Limit  int
	Cursor string
}

// NotificationOutcome is the advisory result for one webhook target.
type NotificationOutcome struct {
	Delivered bool   `json:"delivered"`
	Skipped   bool   `json:"skipped"`
	Endpoint  string `json:"endpoint,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Notification summarizes webhook delivery after a write. Warning is set when
// any attempted target failed; the record is persisted either way.
type Notification struct {
	Primary NotificationOutcome `json:"primary"`
	Alert   NotificationOutcome `json:"alert"`
	Warning bool                `json:"warning"`
}

// Result wraps a single schedule.
type Result struct {
	Schedule     *CallerRecord `json:"schedule"`
	Notification *Notification `json:"notification,omitempty"`
	Degraded     bool          `json:"degraded,omitempty"`
	Reason       string        `json:"reason,omitempty"`
}

// ListResult wraps the schedules of a contact.
type ListResult struct {
	Items    []CallerRecord `json:"items"`
	Degraded bool           `json:"degraded,omitempty"`
	Reason   string         `json:"reason,omitempty"`
}

// RecentResult is a cursor page of recent schedules.
type RecentResult struct {
	Items    []CallerRecord `json:"items"`
	Cursor   string         `json:"cursor"`
	Degraded bool           `json:"degraded,omitempty"`
	Reason   string         `json:"reason,omitempty"`
}

// webhookSchedule is the schedule object n8n receives. The outer fields win
// over the embedded record's fields with the same JSON name.
type webhookSchedule struct {
	CallerRecord
	DatetimeLocal string `json:"datetime_sao_paulo"`
	LastUpdate    string `json:"lastUpdate"`
	LastUpdateUTC string `json:"lastUpdateUTC"`
	Timestamp     string `json:"timestamp"`
}
