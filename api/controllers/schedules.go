package controllers

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/chatwoot-scheduler/api/middleware"
	"github.com/angelmondragon/chatwoot-scheduler/api/responses"
	"github.com/angelmondragon/chatwoot-scheduler/api/validators"
	"github.com/angelmondragon/chatwoot-scheduler/internal/schedules"
	dbtypes "github.com/angelmondragon/chatwoot-scheduler/pkg/db/types"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/enums"
	pkgerrors "github.com/angelmondragon/chatwoot-scheduler/pkg/errors"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/logger"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/pagination"
)

const maxDeliveryReasonLength = 1000

type attachmentRequest struct {
	Name    string `json:"name" validate:"max=255"`
	Type    string `json:"type" validate:"max=255"`
	Content string `json:"content" validate:"notblank"`
	Base64  bool   `json:"base64"`
}

// scheduleDataRequest is the widget's scheduleData object. scheduled_at may
// also arrive as datetime or schedule_from.
type scheduleDataRequest struct {
	ScheduledAt  *string              `json:"scheduled_at"`
	Datetime     *string              `json:"datetime"`
	ScheduleFrom *string              `json:"schedule_from"`
	Message      *string              `json:"message" validate:"omitempty,max=10000"`
	Attachments  *[]attachmentRequest `json:"attachments" validate:"omitempty,dive"`
	HasAlert     *bool                `json:"hasAlert"`
	Alert        *bool                `json:"alert"`
	AlertAt      *string              `json:"alertAt"`
	Comment      *string              `json:"comment" validate:"omitempty,max=2000"`
}

type createScheduleRequest struct {
	ScheduleData *scheduleDataRequest `json:"scheduleData"`
	Contact      map[string]any       `json:"contact"`
	Conversation map[string]any       `json:"conversation"`
	Meta         map[string]any       `json:"meta"`
}

type editScheduleRequest struct {
	ScheduleData   *scheduleDataRequest `json:"scheduleData"`
	Contact        map[string]any       `json:"contact"`
	Conversation   map[string]any       `json:"conversation"`
	Meta           map[string]any       `json:"meta"`
	ExpectedEditID *string              `json:"expectedEditId" validate:"omitempty,uuid"`
}

type deliveryReportRequest struct {
	Status     string     `json:"status" validate:"required,oneof=sent error"`
	Reason     string     `json:"reason"`
	MessageID  string     `json:"messageId" validate:"max=255"`
	ReportedAt *time.Time `json:"reportedAt"`
}

// ScheduleListByContact returns the active schedules of a contact; inactive
// ones are included with ?includeInactive=true.
func ScheduleListByContact(svc schedules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "schedules service unavailable"))
			return
		}
		contactID, err := validators.ParsePositiveID(chi.URLParam(r, "contactId"), "contactId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		includeInactive, err := validators.ParseQueryBool(r, "includeInactive")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.ListByContact(r.Context(), contactID, includeInactive)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

// ScheduleGet returns a single schedule.
func ScheduleGet(svc schedules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "schedules service unavailable"))
			return
		}
		id, err := parseScheduleID(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

// ScheduleCreate stores a new schedule and notifies the automation engine.
func ScheduleCreate(svc schedules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "schedules service unavailable"))
			return
		}
		var req createScheduleRequest
		if err := validators.DecodeWidgetBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		data := req.ScheduleData
		if data == nil {
			data = &scheduleDataRequest{}
		}

		input := schedules.CreateInput{
			ScheduledAt:  data.scheduledAt(),
			Message:      deref(data.Message),
			Attachments:  toAttachments(data.Attachments),
			Alert:        data.alert(),
			AlertAt:      deref(data.AlertAt),
			Comment:      deref(data.Comment),
			Contact:      req.Contact,
			Conversation: req.Conversation,
			Meta:         req.Meta,
			RequestID:    middleware.RequestIDFromContext(r.Context()),
		}
		input.ContactID, _ = refID(req.Contact)
		input.ConversationID, _ = refID(req.Conversation)

		resp, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, resp)
	}
}

// ScheduleEdit changes an active schedule.
func ScheduleEdit(svc schedules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "schedules service unavailable"))
			return
		}
		id, err := parseScheduleID(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req editScheduleRequest
		if err := validators.DecodeWidgetBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		data := req.ScheduleData
		if data == nil {
			data = &scheduleDataRequest{}
		}

		input := schedules.EditInput{
			Message:      data.Message,
			AlertAt:      data.AlertAt,
			Comment:      data.Comment,
			Contact:      req.Contact,
			Conversation: req.Conversation,
			Meta:         req.Meta,
			RequestID:    middleware.RequestIDFromContext(r.Context()),
		}
		if scheduledAt := data.scheduledAt(); scheduledAt != "" {
			input.ScheduledAt = &scheduledAt
		}
		if data.Attachments != nil {
			attachments := toAttachments(data.Attachments)
			input.Attachments = &attachments
		}
		if data.HasAlert != nil || data.Alert != nil {
			alert := data.alert()
			input.Alert = &alert
		}
		if contactID, ok := refID(req.Contact); ok {
			input.ContactID = &contactID
		}
		if conversationID, ok := refID(req.Conversation); ok {
			input.ConversationID = &conversationID
		}
		if req.ExpectedEditID != nil && strings.TrimSpace(*req.ExpectedEditID) != "" {
			expected, err := uuid.Parse(strings.TrimSpace(*req.ExpectedEditID))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid expectedEditId"))
				return
			}
			input.ExpectedEditID = &expected
		}

		resp, err := svc.Edit(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

// ScheduleCancel soft-cancels a schedule. Cancelling an already-cancelled
// schedule answers with the stored record.
func ScheduleCancel(svc schedules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "schedules service unavailable"))
			return
		}
		id, err := parseScheduleID(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		resp, err := svc.Cancel(ctx, id, schedules.CancelInput{RequestID: middleware.RequestIDFromContext(ctx)})
		if err != nil {
			if alreadyCancelled(err) {
				current, getErr := svc.Get(ctx, id)
				if getErr == nil && current.Schedule != nil {
					responses.WriteSuccess(w, current)
					return
				}
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

// ScheduleReportDelivery records a sent/error outcome reported by the automation engine.
func ScheduleReportDelivery(svc schedules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "schedules service unavailable"))
			return
		}
		id, err := parseScheduleID(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req deliveryReportRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report := schedules.DeliveryReport{
			Status:    enums.ScheduleStatus(req.Status),
			Reason:    validators.SanitizeString(req.Reason, maxDeliveryReasonLength),
			MessageID: strings.TrimSpace(req.MessageID),
			RequestID: middleware.RequestIDFromContext(r.Context()),
		}
		if req.ReportedAt != nil {
			report.ReportedAt = *req.ReportedAt
		}

		resp, err := svc.ReportDelivery(r.Context(), id, report)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

// ScheduleListRecent pages through recent schedules, newest first.
func ScheduleListRecent(svc schedules.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "schedules service unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.ListRecent(r.Context(), schedules.RecentParams{
			Status: strings.TrimSpace(r.URL.Query().Get("status")),
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

func parseScheduleID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid schedule id").WithDetail("field", "id")
	}
	return id, nil
}

func alreadyCancelled(err error) bool {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		return false
	}
	status, _ := typed.Details()["status"].(enums.ScheduleStatus)
	return status == enums.ScheduleStatusCancelled
}

func (d *scheduleDataRequest) scheduledAt() string {
	return validators.FirstNonEmpty(deref(d.ScheduledAt), deref(d.Datetime), deref(d.ScheduleFrom))
}

// alert prefers hasAlert, the widget's field, over the storage name.
func (d *scheduleDataRequest) alert() bool {
	if d.HasAlert != nil {
		return *d.HasAlert
	}
	return d.Alert != nil && *d.Alert
}

func toAttachments(in *[]attachmentRequest) []dbtypes.Attachment {
	if in == nil {
		return []dbtypes.Attachment{}
	}
	out := make([]dbtypes.Attachment, 0, len(*in))
	for _, a := range *in {
		out = append(out, dbtypes.Attachment{
			Name:    strings.TrimSpace(a.Name),
			Type:    strings.TrimSpace(a.Type),
			Content: a.Content,
			Base64:  a.Base64,
		})
	}
	return out
}

// refID reads the numeric id of a Chatwoot contact or conversation object.
// The widget sends it as a number, older callers as a string.
func refID(ref map[string]any) (int64, bool) {
	raw, ok := ref["id"]
	if !ok || raw == nil {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
