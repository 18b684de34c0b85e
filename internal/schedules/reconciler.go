package schedules

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/chatwoot-scheduler/pkg/db/models"
	dbtypes "github.com/angelmondragon/chatwoot-scheduler/pkg/db/types"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/enums"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/timeutil"
)

// reconcilerVersion is bumped whenever the storage/caller mapping changes.
const reconcilerVersion = 2

// Anomaly records a caller value that could not be mapped and was defaulted.
type Anomaly struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Reconciler maps between the schedule_msg row and the caller shape.
//
//	storage                       caller
//	id                            id
//	datetime                      datetime (RFC3339, reference zone)
//	scheduled_for                 scheduled_for (derived from datetime)
//	message                       message
//	attachments                   attachments
//	status                        status
//	contactid / conversationid    contactId / conversationId
//	alert / alert_at              hasAlert / alertAt
//	comment                       comment
//	edit_id / previous_edit_ids   edit_id / previous_edit_ids
//	exc_id                        exc_id
//	lastupdate / lastupdateutc    lastUpdate / lastUpdateUTC
//	created_at / updated_at       createdAt / updatedAt
type Reconciler struct {
	loc *time.Location
	now func() time.Time
}

// NewReconciler builds a reconciler for the reference zone.
func NewReconciler(loc *time.Location, now func() time.Time) *Reconciler {
	if loc == nil {
		loc = timeutil.MustLoadZone(timeutil.DefaultZone)
	}
	if now == nil {
		now = time.Now
	}
	return &Reconciler{loc: loc, now: now}
}

// Version reports the mapping table version.
func (r *Reconciler) Version() int {
	return reconcilerVersion
}

// Location is the reference zone.
func (r *Reconciler) Location() *time.Location {
	return r.loc
}

// ParseSchedulingTime accepts RFC3339 or zone-less wall clock in the reference zone.
func (r *Reconciler) ParseSchedulingTime(raw string) (time.Time, error) {
	t, err := timeutil.Parse(raw, r.loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(r.loc), nil
}

// ToStorage maps a caller record to a row. Values that cannot be parsed are
// defaulted and reported as anomalies instead of failing the mapping. Write
// stamps (lastupdate, timestamp of a new row) are left to the caller.
func (r *Reconciler) ToStorage(in CallerRecord) (models.ScheduledMessage, []Anomaly) {
	var anomalies []Anomaly
	note := func(field, reason string) {
		anomalies = append(anomalies, Anomaly{Field: field, Reason: reason})
	}

	out := models.ScheduledMessage{
		Message:        in.Message,
		ContactID:      in.ContactID,
		ConversationID: in.ConversationID,
		Alert:          in.HasAlert,
		Attachments:    dbtypes.Attachments(copyAttachments(in.Attachments)),
	}

	if id, ok := parseOptionalUUID(in.ID); ok {
		if id != nil {
			out.ID = *id
		}
	} else {
		note("id", "invalid uuid")
	}

	scheduledAt, err := r.ParseSchedulingTime(in.Datetime)
	if err != nil {
		scheduledAt = r.now().In(r.loc)
		note("datetime", err.Error())
	}
	out.ScheduledAt = scheduledAt
	out.ScheduledFor = timeutil.FormatWallClock(scheduledAt, r.loc)

	out.Status = enums.ScheduleStatusScheduled
	if strings.TrimSpace(string(in.Status)) != "" {
		status, err := enums.ParseScheduleStatus(string(in.Status))
		if err != nil {
			note("status", err.Error())
		} else {
			out.Status = status
		}
	}

	if strings.TrimSpace(in.AlertAt) != "" {
		alertAt, err := r.ParseSchedulingTime(in.AlertAt)
		if err != nil {
			note("alertAt", err.Error())
		} else {
			out.AlertAt = &alertAt
		}
	}

	if in.Comment != "" {
		comment := in.Comment
		out.Comment = &comment
	}

	if id, ok := parseOptionalUUID(in.EditID); ok {
		out.EditID = id
	} else {
		note("edit_id", "invalid uuid")
	}
	if id, ok := parseOptionalUUID(in.ExcID); ok {
		out.ExcID = id
	} else {
		note("exc_id", "invalid uuid")
	}

	out.PreviousEditIDs = dbtypes.UUIDList{}
	for _, raw := range in.PreviousEditIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			note("previous_edit_ids", fmt.Sprintf("invalid uuid %q", raw))
			continue
		}
		out.PreviousEditIDs = out.PreviousEditIDs.Append(id)
	}

	out.LastUpdate = in.LastUpdate
	if in.LastUpdateUTC != "" {
		if t, err := time.Parse(time.RFC3339Nano, in.LastUpdateUTC); err == nil {
			out.LastUpdateUTC = t.UTC()
		} else {
			note("lastUpdateUTC", err.Error())
		}
	}

	out.CreatedAt = parseInstant(in.CreatedAt)
	out.UpdatedAt = parseInstant(in.UpdatedAt)
	if !out.CreatedAt.IsZero() {
		out.Timestamp = timeutil.FormatLocalISO(out.CreatedAt, r.loc)
	}

	return out, anomalies
}

// ToCaller maps a row to the caller shape.
func (r *Reconciler) ToCaller(m models.ScheduledMessage) CallerRecord {
	out := CallerRecord{
		ID:              uuidString(m.ID),
		Message:         m.Message,
		Attachments:     copyAttachments(m.Attachments),
		Status:          m.Status,
		ContactID:       m.ContactID,
		ConversationID:  m.ConversationID,
		HasAlert:        m.Alert,
		PreviousEditIDs: make([]string, 0, len(m.PreviousEditIDs)),
		LastUpdate:      m.LastUpdate,
		LastUpdateUTC:   formatInstant(m.LastUpdateUTC),
		CreatedAt:       formatInstant(m.CreatedAt),
		UpdatedAt:       formatInstant(m.UpdatedAt),
	}
	if out.Status == "" {
		out.Status = enums.ScheduleStatusScheduled
	}
	if !m.ScheduledAt.IsZero() {
		out.Datetime = m.ScheduledAt.In(r.loc).Format(time.RFC3339)
		out.ScheduledFor = timeutil.FormatWallClock(m.ScheduledAt, r.loc)
	}
	if m.AlertAt != nil && !m.AlertAt.IsZero() {
		out.AlertAt = m.AlertAt.In(r.loc).Format(time.RFC3339)
	}
	if m.Comment != nil {
		out.Comment = *m.Comment
	}
	if m.EditID != nil {
		out.EditID = uuidString(*m.EditID)
	}
	if m.ExcID != nil {
		out.ExcID = uuidString(*m.ExcID)
	}
	for _, id := range m.PreviousEditIDs {
		out.PreviousEditIDs = append(out.PreviousEditIDs, id.String())
	}
	return out
}

// webhookPayloadSchedule decorates a caller record with the wall-clock fields
// the automation engine reads. Write stamps come from the persisted row.
func (r *Reconciler) webhookPayloadSchedule(m models.ScheduledMessage) webhookSchedule {
	timestamp := m.Timestamp
	if timestamp == "" && !m.CreatedAt.IsZero() {
		timestamp = timeutil.FormatLocalISO(m.CreatedAt, r.loc)
	}
	return webhookSchedule{
		CallerRecord:  r.ToCaller(m),
		DatetimeLocal: timeutil.FormatLocalISO(m.ScheduledAt, r.loc),
		LastUpdate:    m.LastUpdate,
		LastUpdateUTC: formatInstant(m.LastUpdateUTC),
		Timestamp:     timestamp,
	}
}

func copyAttachments(in []dbtypes.Attachment) []dbtypes.Attachment {
	out := make([]dbtypes.Attachment, len(in))
	copy(out, in)
	return out
}

func parseOptionalUUID(raw string) (*uuid.UUID, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, false
	}
	return &id, true
}

func uuidString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

func formatInstant(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseInstant(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
