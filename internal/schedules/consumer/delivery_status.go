package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/chatwoot-scheduler/internal/schedules"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/enums"
	pkgerrors "github.com/angelmondragon/chatwoot-scheduler/pkg/errors"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/logger"
)

// ConsumerName scopes the processed-message markers in redis.
const ConsumerName = "delivery-status"

const maxReasonLength = 1000

type reporter interface {
	ReportDelivery(ctx context.Context, id uuid.UUID, report schedules.DeliveryReport) (*schedules.Result, error)
}

// ProcessedGuard remembers which messages were already applied.
type ProcessedGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Delete(ctx context.Context, consumer, eventID string) error
}

type subscriber interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// deliveryStatusMessage is what the automation engine publishes after it
// tried to send a scheduled message through Chatwoot.
type deliveryStatusMessage struct {
	ScheduleID string     `json:"scheduleId"`
	Status     string     `json:"status"`
	Reason     string     `json:"reason"`
	MessageID  string     `json:"messageId"`
	ReportedAt *time.Time `json:"reportedAt"`
}

// DeliveryStatusConsumer applies delivery reports received over Pub/Sub.
// Malformed messages and terminal conflicts are acked; store outages are
// nacked so Pub/Sub redelivers them.
type DeliveryStatusConsumer struct {
	svc          reporter
	guard        ProcessedGuard
	subscription subscriber
	logg         *logger.Logger
}

func NewDeliveryStatusConsumer(svc reporter, guard ProcessedGuard, subscription subscriber, logg *logger.Logger) (*DeliveryStatusConsumer, error) {
	if svc == nil {
		return nil, errors.New("schedules service is required")
	}
	if subscription == nil {
		return nil, errors.New("delivery status subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &DeliveryStatusConsumer{
		svc:          svc,
		guard:        guard,
		subscription: subscription,
		logg:         logg,
	}, nil
}

// Run processes messages until the context is canceled or the subscription errors.
func (c *DeliveryStatusConsumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	nack bool
}

var (
	ack  = processResult{}
	nack = processResult{nack: true}
)

func (c *DeliveryStatusConsumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	logCtx := c.logg.WithField(ctx, "pubsub_message_id", msg.ID)

	var payload deliveryStatusMessage
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		logCtx = c.logg.WithField(logCtx, "payload_len", len(msg.Data))
		c.logg.Error(logCtx, "failed to decode delivery status", err)
		return ack
	}

	id, err := uuid.Parse(strings.TrimSpace(payload.ScheduleID))
	if err != nil {
		c.logg.Error(c.logg.WithField(logCtx, "schedule_id", payload.ScheduleID), "delivery status has invalid schedule id", err)
		return ack
	}
	logCtx = c.logg.WithScheduleID(logCtx, id.String())

	status := enums.ScheduleStatus(strings.ToLower(strings.TrimSpace(payload.Status)))
	if !status.IsDeliveryOutcome() {
		c.logg.Warn(c.logg.WithField(logCtx, "status", payload.Status), "delivery status is not an outcome")
		return ack
	}
	logCtx = c.logg.WithField(logCtx, "delivery_status", string(status))

	dedupeKey := firstNonEmpty(msg.ID, payload.MessageID)
	if c.guard != nil && dedupeKey != "" {
		processed, err := c.guard.CheckAndMarkProcessed(logCtx, ConsumerName, dedupeKey)
		switch {
		case err != nil:
			// reports replay safely, so a redis outage only costs the shortcut
			c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "delivery status dedupe unavailable")
		case processed:
			c.logg.Info(logCtx, "delivery status already processed")
			return ack
		}
	}

	report := schedules.DeliveryReport{
		Status:    status,
		Reason:    truncate(strings.TrimSpace(payload.Reason), maxReasonLength),
		MessageID: strings.TrimSpace(payload.MessageID),
	}
	if payload.ReportedAt != nil {
		report.ReportedAt = *payload.ReportedAt
	}

	if _, err := c.svc.ReportDelivery(logCtx, id, report); err != nil {
		return c.handleReportError(logCtx, dedupeKey, err)
	}
	c.logg.Info(logCtx, "delivery status applied")
	return ack
}

func (c *DeliveryStatusConsumer) handleReportError(ctx context.Context, dedupeKey string, err error) processResult {
	if !pkgerrors.Retryable(err) && pkgerrors.As(err) != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "delivery status rejected")
		return ack
	}

	c.logg.Error(ctx, "delivery status not applied, will retry", err)
	if c.guard != nil && dedupeKey != "" {
		if delErr := c.guard.Delete(ctx, ConsumerName, dedupeKey); delErr != nil {
			c.logg.Error(ctx, "failed to clear delivery status marker", delErr)
		}
	}
	return nack
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
