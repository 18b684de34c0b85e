package enums

import (
	"fmt"
	"slices"
	"strings"
)

// ScheduleStatus is the lifecycle state of a scheduled message.
type ScheduleStatus string

const (
	ScheduleStatusScheduled ScheduleStatus = "scheduled"
	ScheduleStatusEdited    ScheduleStatus = "edited"
	ScheduleStatusSent      ScheduleStatus = "sent"
	ScheduleStatusCancelled ScheduleStatus = "cancelled"
	ScheduleStatusError     ScheduleStatus = "error"
)

var validScheduleStatuses = []ScheduleStatus{
	ScheduleStatusScheduled,
	ScheduleStatusEdited,
	ScheduleStatusSent,
	ScheduleStatusCancelled,
	ScheduleStatusError,
}

// ActiveScheduleStatuses are the states a message can still be edited or cancelled from.
var ActiveScheduleStatuses = []ScheduleStatus{
	ScheduleStatusScheduled,
	ScheduleStatusEdited,
}

func (s ScheduleStatus) String() string {
	return string(s)
}

func (s ScheduleStatus) IsValid() bool { return slices.Contains(validScheduleStatuses, s) }

// IsActive reports whether the status still accepts edits and cancellation.
func (s ScheduleStatus) IsActive() bool {
	return s == ScheduleStatusScheduled || s == ScheduleStatusEdited
}

// IsTerminal reports whether no further transition is allowed.
func (s ScheduleStatus) IsTerminal() bool {
	return s == ScheduleStatusSent || s == ScheduleStatusCancelled || s == ScheduleStatusError
}

// IsDeliveryOutcome reports whether the status can be reported by the delivery engine.
func (s ScheduleStatus) IsDeliveryOutcome() bool {
	return s == ScheduleStatusSent || s == ScheduleStatusError
}

// ParseScheduleStatus normalizes casing and accepts the legacy "canceled" spelling.
func ParseScheduleStatus(value string) (ScheduleStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "canceled" {
		normalized = string(ScheduleStatusCancelled)
	}
	status, err := parse("schedule status", normalized, validScheduleStatuses)
	if err != nil {
		return "", fmt.Errorf("invalid schedule status %q", value)
	}
	return status, nil
}
