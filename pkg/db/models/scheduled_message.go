package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/angelmondragon/chatwoot-scheduler/pkg/db/types"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/enums"
)

// ScheduledMessage is one outbound message queued against a Chatwoot
// contact/conversation. Snapshots are denormalized copies taken at write time.
type ScheduledMessage struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	ScheduledAt    time.Time            `gorm:"column:datetime;not null"`
	ScheduledFor   string               `gorm:"column:scheduled_for;not null"`
	Message        string               `gorm:"column:message;not null"`
	Attachments    dbtypes.Attachments  `gorm:"column:attachments;type:jsonb;not null"`
	Status         enums.ScheduleStatus `gorm:"column:status;type:text;not null"`
	ContactID      int64                `gorm:"column:contactid;not null"`
	ConversationID int64                `gorm:"column:conversationid;not null"`
	Alert          bool                 `gorm:"column:alert;not null"`
	AlertAt        *time.Time           `gorm:"column:alert_at"`
	Comment        *string              `gorm:"column:comment"`

	EditID          *uuid.UUID       `gorm:"column:edit_id;type:uuid"`
	PreviousEditIDs dbtypes.UUIDList `gorm:"column:previous_edit_ids;type:jsonb;not null"`
	ExcID           *uuid.UUID       `gorm:"column:exc_id;type:uuid"`

	LastUpdate    string    `gorm:"column:lastupdate;not null"`
	LastUpdateUTC time.Time `gorm:"column:lastupdateutc;not null"`
	Timestamp     string    `gorm:"column:timestamp;not null"`

	ContactSnapshot      dbtypes.JSONMap `gorm:"column:contact_snapshot;type:jsonb"`
	ConversationSnapshot dbtypes.JSONMap `gorm:"column:conversation_snapshot;type:jsonb"`
	MetaSnapshot         dbtypes.JSONMap `gorm:"column:meta_snapshot;type:jsonb"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ScheduledMessage) TableName() string { return "schedule_msg" }
