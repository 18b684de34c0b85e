package schedules

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/chatwoot-scheduler/pkg/db/models"
	dbtypes "github.com/angelmondragon/chatwoot-scheduler/pkg/db/types"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/enums"
	pkgerrors "github.com/angelmondragon/chatwoot-scheduler/pkg/errors"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/timeutil"
)

const maxEditIDAttempts = 3

// Stamp is the last-update time written with every mutation.
type Stamp struct {
	Local string
	UTC   time.Time
}

func newStamp(now time.Time, loc *time.Location) Stamp {
	return Stamp{Local: timeutil.FormatWallClock(now, loc), UTC: now.UTC()}
}

// initialState puts a freshly reconciled row into the scheduled state.
func initialState(m *models.ScheduledMessage, id, editID uuid.UUID, stamp Stamp, loc *time.Location) {
	m.ID = id
	m.Status = enums.ScheduleStatusScheduled
	m.EditID = &editID
	m.PreviousEditIDs = dbtypes.UUIDList{}
	m.ExcID = nil
	m.LastUpdate = stamp.Local
	m.LastUpdateUTC = stamp.UTC
	m.Timestamp = timeutil.FormatLocalISO(stamp.UTC, loc)
	m.CreatedAt = stamp.UTC
	m.UpdatedAt = stamp.UTC
}

type editPlan struct {
	Status          enums.ScheduleStatus
	EditID          uuid.UUID
	PreviousEditIDs dbtypes.UUIDList
}

// planEdit moves an active record to edited with a fresh edit id and the
// prior one appended to the lineage.
func planEdit(current *models.ScheduledMessage, newID func() uuid.UUID) (editPlan, error) {
	if !current.Status.IsActive() {
		return editPlan{}, invalidTransition(current.Status, "edit")
	}

	lineage := make(dbtypes.UUIDList, 0, len(current.PreviousEditIDs)+1)
	lineage = append(lineage, current.PreviousEditIDs...)
	if current.EditID != nil && *current.EditID != uuid.Nil && !lineage.Contains(*current.EditID) {
		lineage = lineage.Append(*current.EditID)
	}

	for i := 0; i < maxEditIDAttempts; i++ {
		candidate := newID()
		if candidate == uuid.Nil || lineage.Contains(candidate) {
			continue
		}
		if current.EditID != nil && *current.EditID == candidate {
			continue
		}
		return editPlan{
			Status:          enums.ScheduleStatusEdited,
			EditID:          candidate,
			PreviousEditIDs: lineage,
		}, nil
	}
	return editPlan{}, pkgerrors.New(pkgerrors.CodeInternal, "could not allocate a distinct edit id")
}

// planCancel validates a cancellation; the record keeps its data and only
// changes status.
func planCancel(current *models.ScheduledMessage) error {
	if !current.Status.IsActive() {
		return invalidTransition(current.Status, "cancel")
	}
	return nil
}

// planDelivery accepts an externally reported outcome for an active record.
func planDelivery(current *models.ScheduledMessage, status enums.ScheduleStatus) error {
	if !status.IsDeliveryOutcome() {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery status must be sent or error").
			WithDetails(map[string]any{"status": status})
	}
	if !current.Status.IsActive() {
		return invalidTransition(current.Status, "report delivery for")
	}
	return nil
}

func invalidTransition(status enums.ScheduleStatus, action string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot %s a %s schedule", action, status)).
		WithDetails(map[string]any{"status": status})
}
