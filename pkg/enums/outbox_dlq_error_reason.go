package enums

import "slices"

// OutboxDLQErrorReason records why the publisher parked an event.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonMaxAttempts: the topic kept failing until the attempt budget ran out.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// OutboxDLQReasonNonRetryable: Pub/Sub rejected the message or no publisher exists for its topic.
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	// OutboxDLQReasonUndecodable: the stored row could not be resolved to a known schedule event.
	OutboxDLQReasonUndecodable OutboxDLQErrorReason = "undecodable"
)

var dlqReasons = []OutboxDLQErrorReason{
	OutboxDLQReasonMaxAttempts,
	OutboxDLQReasonNonRetryable,
	OutboxDLQReasonUndecodable,
}

func (r OutboxDLQErrorReason) IsValid() bool { return slices.Contains(dlqReasons, r) }

func (r OutboxDLQErrorReason) String() string { return string(r) }

// Replayable reports whether re-queueing the event could succeed without a code change.
func (r OutboxDLQErrorReason) Replayable() bool {
	return r == OutboxDLQReasonMaxAttempts
}

func ParseOutboxDLQErrorReason(value string) (OutboxDLQErrorReason, error) {
	return parse("dlq error reason", value, dlqReasons)
}
