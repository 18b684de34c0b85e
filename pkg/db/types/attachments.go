package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
)

// Attachment is one file queued alongside a scheduled message. Content holds
// either a URL or an inline payload; Base64 marks the latter.
type Attachment struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
	Base64  bool   `json:"base64,omitempty"`
}

// Attachments is persisted as a JSON array and never stored as NULL.
type Attachments []Attachment

func (a Attachments) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]Attachment(a))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (a *Attachments) Scan(value any) error {
	if value == nil {
		*a = Attachments{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	decoded := Attachments{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return err
		}
	}
	if decoded == nil {
		decoded = Attachments{}
	}
	*a = decoded
	return nil
}
