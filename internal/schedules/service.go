package schedules

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/chatwoot-scheduler/internal/delivery"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/db"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/db/models"
	dbtypes "github.com/angelmondragon/chatwoot-scheduler/pkg/db/types"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/enums"
	pkgerrors "github.com/angelmondragon/chatwoot-scheduler/pkg/errors"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/logger"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/metrics"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/outbox"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/outbox/payloads"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/pagination"
)

const (
	defaultStoreTimeout = 5 * time.Second
	degradedReason      = "schedule store unavailable"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Notifier delivers schedule payloads to the automation engine.
type Notifier interface {
	Notify(ctx context.Context, payload delivery.Payload, target enums.NotificationTarget) delivery.Outcome
}

// Service drives the scheduled message lifecycle.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*Result, error)
	Edit(ctx context.Context, id uuid.UUID, input EditInput) (*Result, error)
	Cancel(ctx context.Context, id uuid.UUID, input CancelInput) (*Result, error)
	Get(ctx context.Context, id uuid.UUID) (*Result, error)
	ListByContact(ctx context.Context, contactID int64, includeInactive bool) (*ListResult, error)
	ListRecent(ctx context.Context, params RecentParams) (*RecentResult, error)
	ReportDelivery(ctx context.Context, id uuid.UUID, report DeliveryReport) (*Result, error)
}

// ServiceParams wires the schedules service.
type ServiceParams struct {
	Repository   Repository
	DB           txRunner
	Outbox       outboxPublisher
	Notifier     Notifier
	Reconciler   *Reconciler
	Logger       *logger.Logger
	Metrics      *metrics.ScheduleMetrics
	StoreTimeout time.Duration
	Now          func() time.Time
	NewID        func() uuid.UUID
}

type service struct {
	repo         Repository
	tx           txRunner
	outbox       outboxPublisher
	notifier     Notifier
	reconciler   *Reconciler
	logg         *logger.Logger
	metrics      *metrics.ScheduleMetrics
	storeTimeout time.Duration
	now          func() time.Time
	newID        func() uuid.UUID
}

// NewService validates dependencies and builds the lifecycle service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "schedules repository required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox publisher required")
	}
	if params.Notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "delivery notifier required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	reconciler := params.Reconciler
	if reconciler == nil {
		reconciler = NewReconciler(nil, params.Now)
	}
	timeout := params.StoreTimeout
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	newID := params.NewID
	if newID == nil {
		newID = uuid.New
	}
	return &service{
		repo:         params.Repository,
		tx:           params.DB,
		outbox:       params.Outbox,
		notifier:     params.Notifier,
		reconciler:   reconciler,
		logg:         params.Logger,
		metrics:      params.Metrics,
		storeTimeout: timeout,
		now:          now,
		newID:        newID,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*Result, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}
	if _, err := s.reconciler.ParseSchedulingTime(input.ScheduledAt); err != nil {
		return nil, fieldError("scheduled_at", err)
	}
	if strings.TrimSpace(input.AlertAt) != "" {
		if _, err := s.reconciler.ParseSchedulingTime(input.AlertAt); err != nil {
			return nil, fieldError("alertAt", err)
		}
	}

	record, anomalies := s.reconciler.ToStorage(CallerRecord{
		Datetime:       input.ScheduledAt,
		Message:        input.Message,
		Attachments:    input.Attachments,
		ContactID:      input.ContactID,
		ConversationID: input.ConversationID,
		HasAlert:       input.Alert,
		AlertAt:        input.AlertAt,
		Comment:        input.Comment,
	})
	s.logAnomalies(ctx, anomalies)

	loc := s.reconciler.Location()
	initialState(&record, s.newID(), s.newID(), newStamp(s.now(), loc), loc)
	record.ContactSnapshot = snapshot(input.Contact)
	record.ConversationSnapshot = snapshot(input.Conversation)
	record.MetaSnapshot = snapshot(input.Meta)

	err := s.withStore(ctx, "create schedule", func(ctx context.Context, tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, &record); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventScheduleCreated,
			AggregateType: enums.AggregateScheduledMessage,
			AggregateID:   record.ID,
			Actor:         &outbox.ActorRef{Source: outbox.ActorAPI, RequestID: input.RequestID},
			Data: payloads.ScheduleCreatedEvent{
				ScheduleID:     record.ID,
				ContactID:      record.ContactID,
				ConversationID: record.ConversationID,
				ScheduledAt:    record.ScheduledAt.UTC(),
				ScheduledFor:   record.ScheduledFor,
				Status:         record.Status,
				EditID:         *record.EditID,
				Alert:          record.Alert,
				Attachments:    len(record.Attachments),
			},
			OccurredAt: record.CreatedAt,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition("create", string(record.Status))
	logCtx := s.scheduleContext(ctx, record)
	s.logg.Info(logCtx, "schedule created")

	caller := s.reconciler.ToCaller(record)
	return &Result{Schedule: &caller, Notification: s.notify(logCtx, record)}, nil
}

func (s *service) Edit(ctx context.Context, id uuid.UUID, input EditInput) (*Result, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "schedule id required")
	}

	patch := Patch{RequireActive: true, ExpectedEditID: input.ExpectedEditID}
	if input.ScheduledAt != nil {
		scheduledAt, err := s.reconciler.ParseSchedulingTime(*input.ScheduledAt)
		if err != nil {
			return nil, fieldError("scheduled_at", err)
		}
		scheduledFor := s.reconciler.ToCaller(models.ScheduledMessage{ScheduledAt: scheduledAt}).ScheduledFor
		patch.ScheduledAt = &scheduledAt
		patch.ScheduledFor = &scheduledFor
	}
	if input.AlertAt != nil {
		if strings.TrimSpace(*input.AlertAt) == "" {
			patch.ClearAlertAt = true
		} else {
			alertAt, err := s.reconciler.ParseSchedulingTime(*input.AlertAt)
			if err != nil {
				return nil, fieldError("alertAt", err)
			}
			patch.AlertAt = &alertAt
		}
	}
	patch.Message = input.Message
	patch.Alert = input.Alert
	patch.Comment = input.Comment
	if input.Attachments != nil {
		attachments := dbtypes.Attachments(copyAttachments(*input.Attachments))
		patch.Attachments = &attachments
	}
	patch.ContactSnapshot = snapshot(input.Contact)
	patch.ConversationSnapshot = snapshot(input.Conversation)
	patch.MetaSnapshot = snapshot(input.Meta)

	var updated *models.ScheduledMessage
	err := s.withStore(ctx, "edit schedule", func(ctx context.Context, tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return notFound(id)
		}
		plan, err := planEdit(current, s.newID)
		if err != nil {
			return err
		}
		if err := checkImmutableRefs(current, input); err != nil {
			return err
		}
		if input.ExpectedEditID != nil && (current.EditID == nil || *current.EditID != *input.ExpectedEditID) {
			return editConflict(current)
		}
		if err := checkContent(current, patch); err != nil {
			return err
		}

		patch.Status = &plan.Status
		patch.EditID = &plan.EditID
		patch.PreviousEditIDs = &plan.PreviousEditIDs
		patch.Stamp = newStamp(s.now(), s.reconciler.Location())

		row, err := repo.Update(ctx, id, patch)
		switch {
		case errors.Is(err, ErrEditConflict):
			return editConflict(row)
		case errors.Is(err, ErrStatusChanged):
			return invalidTransition(row.Status, "edit")
		case err != nil:
			return err
		case row == nil:
			return notFound(id)
		}
		updated = row

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventScheduleEdited,
			AggregateType: enums.AggregateScheduledMessage,
			AggregateID:   row.ID,
			Actor:         &outbox.ActorRef{Source: outbox.ActorAPI, RequestID: input.RequestID},
			Data: payloads.ScheduleEditedEvent{
				ScheduleID:      row.ID,
				ContactID:       row.ContactID,
				ConversationID:  row.ConversationID,
				ScheduledAt:     row.ScheduledAt.UTC(),
				ScheduledFor:    row.ScheduledFor,
				Status:          row.Status,
				EditID:          plan.EditID,
				PreviousEditIDs: []uuid.UUID(plan.PreviousEditIDs),
				ChangedFields:   changedFields(current, patch),
			},
			OccurredAt: patch.Stamp.UTC,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition("edit", string(updated.Status))
	logCtx := s.scheduleContext(ctx, *updated)
	s.logg.Info(logCtx, "schedule edited")

	caller := s.reconciler.ToCaller(*updated)
	return &Result{Schedule: &caller, Notification: s.notify(logCtx, *updated)}, nil
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID, input CancelInput) (*Result, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "schedule id required")
	}

	var cancelled *models.ScheduledMessage
	err := s.withStore(ctx, "cancel schedule", func(ctx context.Context, tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return notFound(id)
		}
		if err := planCancel(current); err != nil {
			return err
		}

		excID := s.newID()
		row, err := repo.Cancel(ctx, id, excID, newStamp(s.now(), s.reconciler.Location()))
		switch {
		case errors.Is(err, ErrStatusChanged):
			return invalidTransition(row.Status, "cancel")
		case err != nil:
			return err
		case row == nil:
			return notFound(id)
		}
		cancelled = row

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventScheduleCancelled,
			AggregateType: enums.AggregateScheduledMessage,
			AggregateID:   row.ID,
			Actor:         &outbox.ActorRef{Source: outbox.ActorAPI, RequestID: input.RequestID},
			Data: payloads.ScheduleCancelledEvent{
				ScheduleID:     row.ID,
				ContactID:      row.ContactID,
				ConversationID: row.ConversationID,
				ExcID:          excID,
				PreviousStatus: current.Status,
			},
			OccurredAt: row.LastUpdateUTC,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition("cancel", string(cancelled.Status))
	s.logg.Info(s.scheduleContext(ctx, *cancelled), "schedule cancelled")

	caller := s.reconciler.ToCaller(*cancelled)
	return &Result{Schedule: &caller}, nil
}

func (s *service) ReportDelivery(ctx context.Context, id uuid.UUID, report DeliveryReport) (*Result, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "schedule id required")
	}
	if !report.Status.IsDeliveryOutcome() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery status must be sent or error").
			WithDetails(map[string]any{"status": report.Status})
	}
	reportedAt := report.ReportedAt
	if reportedAt.IsZero() {
		reportedAt = s.now()
	}

	var row *models.ScheduledMessage
	replayed := false
	err := s.withStore(ctx, "report delivery", func(ctx context.Context, tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return notFound(id)
		}
		if current.Status == report.Status {
			row = current
			replayed = true
			return nil
		}
		if err := planDelivery(current, report.Status); err != nil {
			return err
		}

		updated, err := repo.SetStatus(ctx, id, report.Status, newStamp(s.now(), s.reconciler.Location()))
		switch {
		case errors.Is(err, ErrStatusChanged):
			return invalidTransition(updated.Status, "report delivery for")
		case err != nil:
			return err
		case updated == nil:
			return notFound(id)
		}
		row = updated

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventScheduleDeliveryReported,
			AggregateType: enums.AggregateScheduledMessage,
			AggregateID:   updated.ID,
			Actor:         &outbox.ActorRef{Source: outbox.ActorDelivery, RequestID: report.RequestID},
			Data: payloads.ScheduleDeliveryReportedEvent{
				ScheduleID:     updated.ID,
				ContactID:      updated.ContactID,
				ConversationID: updated.ConversationID,
				Status:         report.Status,
				Reason:         report.Reason,
				MessageID:      report.MessageID,
				ReportedAt:     reportedAt.UTC(),
			},
			OccurredAt: reportedAt,
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.scheduleContext(ctx, *row)
	if replayed {
		s.logg.Debug(logCtx, "delivery report already applied")
	} else {
		s.metrics.RecordTransition("delivery", string(row.Status))
		logCtx = s.logg.WithField(logCtx, "delivery_status", string(report.Status))
		s.logg.Info(logCtx, "schedule delivery reported")
	}

	caller := s.reconciler.ToCaller(*row)
	return &Result{Schedule: &caller}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Result, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "schedule id required")
	}
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	row, err := s.repo.FindByID(storeCtx, id)
	if err != nil {
		if db.IsConnectivity(err) {
			s.warnDegraded(ctx, err)
			return &Result{Degraded: true, Reason: degradedReason}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load schedule")
	}
	if row == nil {
		return nil, notFound(id)
	}
	caller := s.reconciler.ToCaller(*row)
	return &Result{Schedule: &caller}, nil
}

func (s *service) ListByContact(ctx context.Context, contactID int64, includeInactive bool) (*ListResult, error) {
	if contactID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contact id must be a positive integer")
	}
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	rows, err := s.repo.ListByContact(storeCtx, contactID, ListFilter{IncludeInactive: includeInactive})
	if err != nil {
		if db.IsConnectivity(err) {
			s.warnDegraded(ctx, err)
			return &ListResult{Items: []CallerRecord{}, Degraded: true, Reason: degradedReason}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list schedules")
	}
	return &ListResult{Items: s.toCallerList(rows)}, nil
}

func (s *service) ListRecent(ctx context.Context, params RecentParams) (*RecentResult, error) {
	filter := RecentFilter{Limit: params.Limit}
	if strings.TrimSpace(params.Status) != "" {
		status, err := enums.ParseScheduleStatus(params.Status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		filter.Status = &status
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		filter.Cursor = cursor
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	rows, next, err := s.repo.ListRecent(storeCtx, filter)
	if err != nil {
		if db.IsConnectivity(err) {
			s.warnDegraded(ctx, err)
			return &RecentResult{Items: []CallerRecord{}, Degraded: true, Reason: degradedReason}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list recent schedules")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &RecentResult{Items: s.toCallerList(rows), Cursor: cursor}, nil
}

// withStore runs fn in a transaction bounded by the store timeout and maps
// storage failures onto the error taxonomy. Typed errors from fn pass through.
func (s *service) withStore(ctx context.Context, action string, fn func(ctx context.Context, tx *gorm.DB) error) error {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	err := s.tx.WithTx(storeCtx, func(tx *gorm.DB) error {
		return fn(storeCtx, tx)
	})
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	if db.IsConnectivity(err) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action+": store unavailable")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, action)
}

func (s *service) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

// notify runs after commit on a context detached from request cancellation.
// Failures are advisory and never touch the stored record.
func (s *service) notify(ctx context.Context, record models.ScheduledMessage) *Notification {
	payload := delivery.Payload{
		ScheduleID:   record.ID.String(),
		Schedule:     s.reconciler.webhookPayloadSchedule(record),
		Contact:      map[string]any(record.ContactSnapshot),
		Conversation: map[string]any(record.ConversationSnapshot),
	}
	notifyCtx := context.WithoutCancel(ctx)

	primary := s.notifier.Notify(notifyCtx, payload, enums.NotificationTargetPrimary)
	alert := delivery.Outcome{Target: enums.NotificationTargetAlert, Skipped: true}
	if record.Alert {
		alert = s.notifier.Notify(notifyCtx, payload, enums.NotificationTargetAlert)
	}

	result := &Notification{Primary: toNotificationOutcome(primary), Alert: toNotificationOutcome(alert)}
	if primary.Failed() || alert.Failed() {
		result.Warning = true
		logCtx := ctx
		if err := multierr.Combine(primary.Err, alert.Err); err != nil {
			logCtx = s.logg.WithField(ctx, "webhook_error", err.Error())
		}
		s.logg.Warn(logCtx, "schedule webhook notification failed")
	}
	return result
}

func toNotificationOutcome(outcome delivery.Outcome) NotificationOutcome {
	out := NotificationOutcome{
		Delivered: outcome.Delivered,
		Skipped:   outcome.Skipped,
		Endpoint:  outcome.Endpoint,
	}
	if outcome.Err != nil {
		out.Error = outcome.Err.Error()
	}
	return out
}

func (s *service) toCallerList(rows []models.ScheduledMessage) []CallerRecord {
	out := make([]CallerRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.reconciler.ToCaller(row))
	}
	return out
}

func (s *service) scheduleContext(ctx context.Context, record models.ScheduledMessage) context.Context {
	ctx = s.logg.WithScheduleID(ctx, record.ID.String())
	ctx = s.logg.WithContactID(ctx, record.ContactID)
	return s.logg.WithConversationID(ctx, record.ConversationID)
}

func (s *service) logAnomalies(ctx context.Context, anomalies []Anomaly) {
	for _, anomaly := range anomalies {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"field":              anomaly.Field,
			"reason":             anomaly.Reason,
			"reconciler_version": s.reconciler.Version(),
		})
		s.logg.Warn(logCtx, "schedule field defaulted during reconciliation")
	}
}

func (s *service) warnDegraded(ctx context.Context, err error) {
	s.logg.Warn(s.logg.WithField(ctx, "cause", err.Error()), "serving degraded schedule read")
}

func validateCreate(input CreateInput) error {
	missing := []string{}
	if strings.TrimSpace(input.Message) == "" && len(input.Attachments) == 0 {
		missing = append(missing, "message")
	}
	if strings.TrimSpace(input.ScheduledAt) == "" {
		missing = append(missing, "scheduled_at")
	}
	if input.ContactID <= 0 {
		missing = append(missing, "contact.id")
	}
	if input.ConversationID <= 0 {
		missing = append(missing, "conversation.id")
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "missing required fields").
			WithDetails(map[string]any{"fields": missing})
	}
	return nil
}

func checkImmutableRefs(current *models.ScheduledMessage, input EditInput) error {
	if input.ContactID != nil && *input.ContactID != current.ContactID {
		return pkgerrors.New(pkgerrors.CodeValidation, "contact cannot be changed on an existing schedule").
			WithDetails(map[string]any{"field": "contact.id"})
	}
	if input.ConversationID != nil && *input.ConversationID != current.ConversationID {
		return pkgerrors.New(pkgerrors.CodeValidation, "conversation cannot be changed on an existing schedule").
			WithDetails(map[string]any{"field": "conversation.id"})
	}
	return nil
}

// checkContent rejects edits that would leave neither text nor attachments.
func checkContent(current *models.ScheduledMessage, patch Patch) error {
	message := current.Message
	if patch.Message != nil {
		message = *patch.Message
	}
	attachments := len(current.Attachments)
	if patch.Attachments != nil {
		attachments = len(*patch.Attachments)
	}
	if strings.TrimSpace(message) == "" && attachments == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "message or attachments required").
			WithDetails(map[string]any{"fields": []string{"message"}})
	}
	return nil
}

func changedFields(current *models.ScheduledMessage, patch Patch) []string {
	fields := []string{}
	if patch.ScheduledAt != nil && !patch.ScheduledAt.Equal(current.ScheduledAt) {
		fields = append(fields, "datetime")
	}
	if patch.Message != nil && *patch.Message != current.Message {
		fields = append(fields, "message")
	}
	if patch.Attachments != nil {
		fields = append(fields, "attachments")
	}
	if patch.Alert != nil && *patch.Alert != current.Alert {
		fields = append(fields, "alert")
	}
	if patch.AlertAt != nil || patch.ClearAlertAt {
		fields = append(fields, "alert_at")
	}
	if patch.Comment != nil && (current.Comment == nil || *patch.Comment != *current.Comment) {
		fields = append(fields, "comment")
	}
	return fields
}

func snapshot(values map[string]any) dbtypes.JSONMap {
	if values == nil {
		return nil
	}
	return dbtypes.JSONMap(values)
}

func fieldError(field string, err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field).
		WithDetails(map[string]any{"field": field})
}

func notFound(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "schedule not found").WithDetail("id", id.String())
}

func editConflict(current *models.ScheduledMessage) error {
	err := pkgerrors.New(pkgerrors.CodeConflict, "schedule was edited concurrently")
	if current != nil && current.EditID != nil {
		err.WithDetail("current_edit_id", current.EditID.String())
	}
	return err
}
