package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/chatwoot-scheduler/pkg/db/models"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/enums"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/metrics"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/outbox"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/outbox/registry"
)

type verdict int

const (
	verdictPublished verdict = iota
	verdictRetry
	verdictDeadLetter
)

// dispatch publishes one claimed row and records the outcome on it. Publish
// failures are bookkept on the row; only bookkeeping failures are returned,
// which rolls the whole batch back.
func (s *Service) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		ctx = s.logg.WithFields(ctx, eventFields(event, outbox.PayloadEnvelope{}, ""))
		return s.deadLetter(ctx, tx, event, "", enums.OutboxDLQReasonUndecodable, err)
	}

	topic := resolved.Descriptor.Topic
	ctx = s.logg.WithFields(ctx, eventFields(event, resolved.Envelope, topic))
	publishErr := s.publish(ctx, event, resolved)

	v, reason := s.judge(event, publishErr)
	switch v {
	case verdictPublished:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.IncResult(string(event.EventType), metrics.OutboxResultPublished)
		s.logg.Info(ctx, "outbox event published")
	case verdictRetry:
		ctx = s.logg.WithFields(ctx, map[string]any{"attempt_count": event.AttemptCount + 1, "error": publishErr.Error()})
		s.logg.Warn(ctx, "outbox publish failed")
		if err := s.repo.MarkFailedTx(tx, event.ID, publishErr); err != nil {
			return fmt.Errorf("mark failed %s: %w", event.ID, err)
		}
		s.metrics.IncResult(string(event.EventType), metrics.OutboxResultRetry)
	case verdictDeadLetter:
		if reason == enums.OutboxDLQReasonMaxAttempts {
			publishErr = fmt.Errorf("max publish attempts reached: %w", publishErr)
		}
		return s.deadLetter(ctx, tx, event, topic, reason, publishErr)
	}
	return nil
}

func (s *Service) judge(event models.OutboxEvent, publishErr error) (verdict, enums.OutboxDLQErrorReason) {
	var permanent registry.NonRetryableError
	switch {
	case publishErr == nil:
		return verdictPublished, ""
	case errors.As(publishErr, &permanent):
		return verdictDeadLetter, enums.OutboxDLQReasonNonRetryable
	case event.AttemptCount+1 >= s.maxAttempts:
		return verdictDeadLetter, enums.OutboxDLQReasonMaxAttempts
	default:
		return verdictRetry, ""
	}
}

// deadLetter parks the row in outbox_dlq and takes it out of the claim set.
// topic is empty when the row never resolved to one.
func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, topic string, reason enums.OutboxDLQErrorReason, cause error) error {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"error_reason": reason,
		"replayable":   reason.Replayable(),
		"error":        cause.Error(),
	})
	s.logg.Warn(ctx, "outbox event dead-lettered")

	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      s.now().UTC(),
	}
	if topic != "" {
		entry.Topic = &topic
	}
	if err := s.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	s.metrics.IncResult(string(event.EventType), metrics.OutboxResultDeadLetter)
	return nil
}

// publish sends the stored envelope bytes unchanged, keyed by schedule so a
// schedule's events reach subscribers in commit order.
func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publishers.get(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("%w for topic %s", errNoPublisher, topic))
	}

	msg := &gcppubsub.Message{
		Data:        event.Payload,
		Attributes:  messageAttributes(event, resolved.Envelope),
		OrderingKey: event.OrderingKey(),
	}

	ctx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(ctx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("nil publish result for topic %s", topic))
	}
	if _, err := result.Get(ctx); err != nil {
		// ordered publishing pauses the key after a failure
		pub.ResumePublish(msg.OrderingKey)
		return err
	}
	return nil
}

// messageAttributes let subscribers filter without decoding the payload.
// event_id equals the envelope id and the outbox row id.
func messageAttributes(event models.OutboxEvent, envelope outbox.PayloadEnvelope) map[string]string {
	scheduleID := event.AggregateID.String()
	attrs := map[string]string{
		"event_id":       envelope.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   scheduleID,
		"schedule_id":    scheduleID,
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if actor := envelope.Actor; actor != nil && actor.RequestID != "" {
		attrs["request_id"] = actor.RequestID
	}
	return attrs
}

func eventFields(event models.OutboxEvent, envelope outbox.PayloadEnvelope, topic string) map[string]any {
	fields := map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    event.EventType,
		"schedule_id":   event.AggregateID.String(),
		"attempt_count": event.AttemptCount,
	}
	if envelope.EventID != "" {
		fields["event_id"] = envelope.EventID
		fields["occurred_at"] = envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if topic != "" {
		fields["topic"] = topic
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}
