// Package registry maps outbox rows to the topic they publish on and the
// payload type their envelope carries.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/angelmondragon/chatwoot-scheduler/pkg/config"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/db/models"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/enums"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/outbox"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/outbox/payloads"
)

// scheduleEvents lists every lifecycle event with a constructor for its
// payload. All of them are keyed by the scheduled message.
var scheduleEvents = map[enums.OutboxEventType]func() any{
	enums.EventScheduleCreated:          func() any { return &payloads.ScheduleCreatedEvent{} },
	enums.EventScheduleEdited:           func() any { return &payloads.ScheduleEditedEvent{} },
	enums.EventScheduleCancelled:        func() any { return &payloads.ScheduleCancelledEvent{} },
	enums.EventScheduleDeliveryReported: func() any { return &payloads.ScheduleDeliveryReportedEvent{} },
}

type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is a decoded outbox row ready to publish.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks a row that will fail the same way on every attempt.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

func reject(format string, args ...any) NonRetryableError {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.ScheduleTopic == "" {
		return nil, errors.New("schedule topic is required")
	}
	entries := make(map[enums.OutboxEventType]EventDescriptor, len(scheduleEvents))
	for eventType, factory := range scheduleEvents {
		entries[eventType] = EventDescriptor{
			EventType:      eventType,
			AggregateType:  enums.AggregateScheduledMessage,
			Topic:          cfg.ScheduleTopic,
			PayloadFactory: factory,
		}
	}
	return &EventRegistry{entries: entries}, nil
}

// Topics returns the distinct destination topics in lexical order.
func (r *EventRegistry) Topics() []string {
	set := map[string]struct{}{}
	for _, desc := range r.entries {
		set[desc.Topic] = struct{}{}
	}
	topics := make([]string, 0, len(set))
	for topic := range set {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// Resolve checks the row against its descriptor and decodes the typed
// payload. Every failure is a NonRetryableError: the row bytes never change,
// so a retry cannot succeed.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, reject("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, reject("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, reject("missing aggregate_id")
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	if envelope.Type != "" && envelope.Type != event.EventType {
		return nil, reject("envelope type %s does not match row type %s", envelope.Type, event.EventType)
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, reject("payload missing for %s", event.EventType)
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, reject("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
