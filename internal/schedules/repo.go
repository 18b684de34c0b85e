package schedules

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/chatwoot-scheduler/pkg/db/models"
	dbtypes "github.com/angelmondragon/chatwoot-scheduler/pkg/db/types"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/enums"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/pagination"
)

var (
	// ErrEditConflict means the stored edit_id no longer matches the expected one.
	ErrEditConflict = errors.New("edit id mismatch")
	// ErrStatusChanged means the record left the active states before the write landed.
	ErrStatusChanged = errors.New("schedule is no longer active")
)

// Repository persists scheduled messages.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, schedule *models.ScheduledMessage) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ScheduledMessage, error)
	ListByContact(ctx context.Context, contactID int64, filter ListFilter) ([]models.ScheduledMessage, error)
	Update(ctx context.Context, id uuid.UUID, patch Patch) (*models.ScheduledMessage, error)
	Cancel(ctx context.Context, id, excID uuid.UUID, stamp Stamp) (*models.ScheduledMessage, error)
	SetStatus(ctx context.Context, id uuid.UUID, status enums.ScheduleStatus, stamp Stamp) (*models.ScheduledMessage, error)
	ListRecent(ctx context.Context, filter RecentFilter) ([]models.ScheduledMessage, *pagination.Cursor, error)
	CountOverdue(ctx context.Context, cutoff time.Time) (int64, error)
}

// ListFilter narrows ListByContact.
type ListFilter struct {
	IncludeInactive bool
}

// RecentFilter configures ListRecent.
type RecentFilter struct {
	Status *enums.ScheduleStatus
	Limit  int
	Cursor *pagination.Cursor
}

// Patch is a partial update. Nil fields keep their stored values.
type Patch struct {
	ScheduledAt     *time.Time
	ScheduledFor    *string
	Message         *string
	Attachments     *dbtypes.Attachments
	Alert           *bool
	AlertAt         *time.Time
	ClearAlertAt    bool
	Comment         *string
	Status          *enums.ScheduleStatus
	EditID          *uuid.UUID
	PreviousEditIDs *dbtypes.UUIDList

	ContactSnapshot      dbtypes.JSONMap
	ConversationSnapshot dbtypes.JSONMap
	MetaSnapshot         dbtypes.JSONMap

	// ExpectedEditID turns the write into a compare-and-swap on edit_id.
	ExpectedEditID *uuid.UUID
	RequireActive  bool
	Stamp          Stamp
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a schedules repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, schedule *models.ScheduledMessage) error {
	if schedule.Attachments == nil {
		schedule.Attachments = dbtypes.Attachments{}
	}
	if schedule.PreviousEditIDs == nil {
		schedule.PreviousEditIDs = dbtypes.UUIDList{}
	}
	schedule.ScheduledAt = schedule.ScheduledAt.UTC()
	schedule.LastUpdateUTC = schedule.LastUpdateUTC.UTC()
	if schedule.AlertAt != nil {
		alertAt := schedule.AlertAt.UTC()
		schedule.AlertAt = &alertAt
	}
	return r.db.WithContext(ctx).Create(schedule).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.ScheduledMessage, error) {
	var schedule models.ScheduledMessage
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&schedule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &schedule, nil
}

func (r *repositoryImpl) ListByContact(ctx context.Context, contactID int64, filter ListFilter) ([]models.ScheduledMessage, error) {
	query := r.db.WithContext(ctx).Model(&models.ScheduledMessage{}).Where("contactid = ?", contactID)
	if !filter.IncludeInactive {
		query = query.Where("status IN ?", enums.ActiveScheduleStatuses)
	}
	var rows []models.ScheduledMessage
	if err := query.Order("datetime ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repositoryImpl) Update(ctx context.Context, id uuid.UUID, patch Patch) (*models.ScheduledMessage, error) {
	updates := stampUpdates(patch.Stamp)
	if patch.ScheduledAt != nil {
		updates["datetime"] = patch.ScheduledAt.UTC()
	}
	if patch.ScheduledFor != nil {
		updates["scheduled_for"] = *patch.ScheduledFor
	}
	if patch.Message != nil {
		updates["message"] = *patch.Message
	}
	if patch.Attachments != nil {
		updates["attachments"] = *patch.Attachments
	}
	if patch.Alert != nil {
		updates["alert"] = *patch.Alert
	}
	if patch.AlertAt != nil {
		updates["alert_at"] = patch.AlertAt.UTC()
	} else if patch.ClearAlertAt {
		updates["alert_at"] = nil
	}
	if patch.Comment != nil {
		updates["comment"] = *patch.Comment
	}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.EditID != nil {
		updates["edit_id"] = *patch.EditID
	}
	if patch.PreviousEditIDs != nil {
		updates["previous_edit_ids"] = *patch.PreviousEditIDs
	}
	if patch.ContactSnapshot != nil {
		updates["contact_snapshot"] = patch.ContactSnapshot
	}
	if patch.ConversationSnapshot != nil {
		updates["conversation_snapshot"] = patch.ConversationSnapshot
	}
	if patch.MetaSnapshot != nil {
		updates["meta_snapshot"] = patch.MetaSnapshot
	}

	query := r.db.WithContext(ctx).Model(&models.ScheduledMessage{}).Where("id = ?", id)
	if patch.RequireActive {
		query = query.Where("status IN ?", enums.ActiveScheduleStatuses)
	}
	if patch.ExpectedEditID != nil {
		query = query.Where("edit_id = ?", *patch.ExpectedEditID)
	}
	result := query.Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return r.explainMiss(ctx, id, patch.RequireActive, patch.ExpectedEditID)
	}
	return r.FindByID(ctx, id)
}

func (r *repositoryImpl) Cancel(ctx context.Context, id, excID uuid.UUID, stamp Stamp) (*models.ScheduledMessage, error) {
	updates := stampUpdates(stamp)
	updates["status"] = enums.ScheduleStatusCancelled
	updates["exc_id"] = excID
	return r.guardedStatusWrite(ctx, id, updates)
}

func (r *repositoryImpl) SetStatus(ctx context.Context, id uuid.UUID, status enums.ScheduleStatus, stamp Stamp) (*models.ScheduledMessage, error) {
	updates := stampUpdates(stamp)
	updates["status"] = status
	return r.guardedStatusWrite(ctx, id, updates)
}

func (r *repositoryImpl) guardedStatusWrite(ctx context.Context, id uuid.UUID, updates map[string]any) (*models.ScheduledMessage, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ScheduledMessage{}).
		Where("id = ? AND status IN ?", id, enums.ActiveScheduleStatuses).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return r.explainMiss(ctx, id, true, nil)
	}
	return r.FindByID(ctx, id)
}

// explainMiss turns a zero-row update into not-found (nil, nil) or the guard that rejected it.
func (r *repositoryImpl) explainMiss(ctx context.Context, id uuid.UUID, requireActive bool, expectedEditID *uuid.UUID) (*models.ScheduledMessage, error) {
	current, err := r.FindByID(ctx, id)
	if err != nil || current == nil {
		return nil, err
	}
	if requireActive && !current.Status.IsActive() {
		return current, ErrStatusChanged
	}
	if expectedEditID != nil && (current.EditID == nil || *current.EditID != *expectedEditID) {
		return current, ErrEditConflict
	}
	return current, nil
}

func (r *repositoryImpl) ListRecent(ctx context.Context, filter RecentFilter) ([]models.ScheduledMessage, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.ScheduledMessage{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var rows []models.ScheduledMessage
	err := query.Scopes(pagination.NewestFirst(filter.Cursor)).
		Limit(pagination.LimitWithBuffer(filter.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}
	page, next := pagination.NextCursor(rows, filter.Limit, func(m models.ScheduledMessage) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	return page, next, nil
}

func (r *repositoryImpl) CountOverdue(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ScheduledMessage{}).
		Where("status IN ? AND datetime < ?", enums.ActiveScheduleStatuses, cutoff.UTC()).
		Count(&count).Error
	return count, err
}

func stampUpdates(stamp Stamp) map[string]any {
	return map[string]any{
		"lastupdate":    stamp.Local,
		"lastupdateutc": stamp.UTC.UTC(),
		"updated_at":    stamp.UTC.UTC(),
	}
}
