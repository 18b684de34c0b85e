package schedules

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/chatwoot-scheduler/pkg/db/models"
	dbtypes "github.com/angelmondragon/chatwoot-scheduler/pkg/db/types"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/enums"
	pkgerrors "github.com/angelmondragon/chatwoot-scheduler/pkg/errors"
)

func sequentialIDs(ids ...uuid.UUID) func() uuid.UUID {
	i := 0
	return func() uuid.UUID {
		if i >= len(ids) {
			return uuid.Nil
		}
		id := ids[i]
		i++
		return id
	}
}

func TestInitialState(t *testing.T) {
	id, editID := uuid.New(), uuid.New()
	row := models.ScheduledMessage{Status: enums.ScheduleStatusSent, PreviousEditIDs: dbtypes.UUIDList{uuid.New()}}

	initialState(&row, id, editID, newStamp(fixedNow, saoPaulo), saoPaulo)

	assert.Equal(t, id, row.ID)
	assert.Equal(t, enums.ScheduleStatusScheduled, row.Status)
	require.NotNil(t, row.EditID)
	assert.Equal(t, editID, *row.EditID)
	assert.Empty(t, row.PreviousEditIDs)
	assert.Nil(t, row.ExcID)
	assert.Equal(t, "2025-03-01 12:00:00", row.LastUpdate)
	assert.Equal(t, "2025-03-01T12:00:00", row.Timestamp)
	assert.True(t, row.LastUpdateUTC.Equal(fixedNow))
	assert.True(t, row.CreatedAt.Equal(fixedNow))
}

func TestPlanEditAppendsLineage(t *testing.T) {
	first, second, next := uuid.New(), uuid.New(), uuid.New()
	current := &models.ScheduledMessage{
		Status:          enums.ScheduleStatusEdited,
		EditID:          &second,
		PreviousEditIDs: dbtypes.UUIDList{first},
	}

	plan, err := planEdit(current, sequentialIDs(next))
	require.NoError(t, err)

	assert.Equal(t, enums.ScheduleStatusEdited, plan.Status)
	assert.Equal(t, next, plan.EditID)
	assert.Equal(t, dbtypes.UUIDList{first, second}, plan.PreviousEditIDs)
	assert.Equal(t, dbtypes.UUIDList{first}, current.PreviousEditIDs, "current lineage must not be mutated")
}

func TestPlanEditSkipsCollidingIDs(t *testing.T) {
	editID, fresh := uuid.New(), uuid.New()
	current := &models.ScheduledMessage{Status: enums.ScheduleStatusScheduled, EditID: &editID}

	plan, err := planEdit(current, sequentialIDs(editID, uuid.Nil, fresh))
	require.NoError(t, err)
	assert.Equal(t, fresh, plan.EditID)
}

func TestPlanEditGivesUpAfterRepeatedCollisions(t *testing.T) {
	editID := uuid.New()
	current := &models.ScheduledMessage{Status: enums.ScheduleStatusScheduled, EditID: &editID}

	_, err := planEdit(current, func() uuid.UUID { return editID })
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
}

func TestTerminalStatusesRejectTransitions(t *testing.T) {
	for _, status := range []enums.ScheduleStatus{
		enums.ScheduleStatusSent,
		enums.ScheduleStatusCancelled,
		enums.ScheduleStatusError,
	} {
		t.Run(string(status), func(t *testing.T) {
			current := &models.ScheduledMessage{Status: status}

			_, err := planEdit(current, uuid.New)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

			err = planCancel(current)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

			err = planDelivery(current, enums.ScheduleStatusSent)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
		})
	}
}

func TestPlanDeliveryRequiresOutcomeStatus(t *testing.T) {
	current := &models.ScheduledMessage{Status: enums.ScheduleStatusScheduled}

	err := planDelivery(current, enums.ScheduleStatusCancelled)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	assert.NoError(t, planDelivery(current, enums.ScheduleStatusError))
	assert.NoError(t, planCancel(current))
}

func TestInvalidTransitionCarriesStatus(t *testing.T) {
	err := invalidTransition(enums.ScheduleStatusCancelled, "edit")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	assert.Equal(t, map[string]any{"status": enums.ScheduleStatusCancelled}, typed.Details())
	assert.Contains(t, typed.Message(), "cannot edit a cancelled schedule")
}
