package delivery

import (
	"encoding/json"

	"github.com/angelmondragon/chatwoot-scheduler/pkg/enums"
)

// Payload is the body POSTed to the automation engine. Schedule is the
// caller-shape record already decorated with the wall-clock fields n8n reads.
type Payload struct {
	ScheduleID   string         `json:"-"`
	Schedule     any            `json:"schedule"`
	Contact      map[string]any `json:"contact"`
	Conversation map[string]any `json:"conversation"`
}

// MarshalJSON keeps contact and conversation as objects even when no snapshot was captured.
func (p Payload) MarshalJSON() ([]byte, error) {
	type wire Payload
	out := wire(p)
	if out.Contact == nil {
		out.Contact = map[string]any{}
	}
	if out.Conversation == nil {
		out.Conversation = map[string]any{}
	}
	return json.Marshal(out)
}

// Outcome reports what happened for one target. It never carries state
// that should change the persisted record.
type Outcome struct {
	Target     enums.NotificationTarget
	Delivered  bool
	Skipped    bool
	Endpoint   string
	StatusCode int
	Err        error
}

// Failed reports whether the target was attempted and no endpoint accepted it.
func (o Outcome) Failed() bool {
	return !o.Delivered && !o.Skipped
}
