package enums

import "slices"

// OutboxAggregateType identifies the entity an outbox event belongs to.
type OutboxAggregateType string

const AggregateScheduledMessage OutboxAggregateType = "scheduled_message"

var aggregateTypes = []OutboxAggregateType{AggregateScheduledMessage}

func (a OutboxAggregateType) IsValid() bool { return slices.Contains(aggregateTypes, a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse("aggregate type", value, aggregateTypes)
}

// OutboxEventType names a lifecycle fact recorded in the outbox. The value
// is also the Pub/Sub event_type attribute.
type OutboxEventType string

const (
	EventScheduleCreated          OutboxEventType = "schedule_created"
	EventScheduleEdited           OutboxEventType = "schedule_edited"
	EventScheduleCancelled        OutboxEventType = "schedule_cancelled"
	EventScheduleDeliveryReported OutboxEventType = "schedule_delivery_reported"
)

var eventTypes = []OutboxEventType{
	EventScheduleCreated,
	EventScheduleEdited,
	EventScheduleCancelled,
	EventScheduleDeliveryReported,
}

func (e OutboxEventType) IsValid() bool { return slices.Contains(eventTypes, e) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("event type", value, eventTypes)
}
