package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// UUIDList is an ordered list of ids kept in a JSON array column.
type UUIDList []uuid.UUID

func (l UUIDList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal([]uuid.UUID(l))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (l *UUIDList) Scan(value any) error {
	if value == nil {
		*l = UUIDList{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return fmt.Errorf("UUIDList: %w", err)
	}
	var decoded []uuid.UUID
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return fmt.Errorf("UUIDList: %w", err)
		}
	}
	if decoded == nil {
		decoded = []uuid.UUID{}
	}
	*l = UUIDList(decoded)
	return nil
}

// Contains reports whether id is already part of the list.
func (l UUIDList) Contains(id uuid.UUID) bool {
	for _, existing := range l {
		if existing == id {
			return true
		}
	}
	return false
}

// Append returns a copy of the list with id added at the end.
func (l UUIDList) Append(id uuid.UUID) UUIDList {
	out := make(UUIDList, 0, len(l)+1)
	out = append(out, l...)
	return append(out, id)
}
