package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/chatwoot-scheduler/pkg/enums"
)

// EnvelopeVersion is the newest envelope layout this build writes and reads.
const EnvelopeVersion = 1

// Actor sources recorded on emitted events.
const (
	ActorAPI      = "api"
	ActorDelivery = "delivery-worker"
)

// ActorRef identifies what produced the event.
type ActorRef struct {
	Source    string `json:"source"`
	RequestID string `json:"requestId,omitempty"`
}

// PayloadEnvelope is the body published to the schedule topic. Automation
// subscribers route on Type and ScheduleID without decoding Data.
type PayloadEnvelope struct {
	Version    int                   `json:"version"`
	EventID    string                `json:"eventId"`
	Type       enums.OutboxEventType `json:"type,omitempty"`
	ScheduleID string                `json:"scheduleId,omitempty"`
	OccurredAt time.Time             `json:"occurredAt"`
	Actor      *ActorRef             `json:"actor,omitempty"`
	Data       json.RawMessage       `json:"data"`
}

// DecodeEnvelope parses a stored envelope and rejects layouts this build cannot read.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.Version < 1 || envelope.Version > EnvelopeVersion {
		return PayloadEnvelope{}, fmt.Errorf("unsupported envelope version %d", envelope.Version)
	}
	if envelope.EventID == "" {
		return PayloadEnvelope{}, errors.New("envelope event id missing")
	}
	return envelope, nil
}
