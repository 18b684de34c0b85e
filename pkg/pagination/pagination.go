package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Page sizes for the schedule listings.
const (
	DefaultLimit = 25
	MaxLimit     = 100

	cursorSep = "|"
)

// Cursor is the (created_at, id) key of the last row on a page, newest first.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// NormalizeLimit maps a non-positive limit to DefaultLimit and clamps the
// rest to MaxLimit.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

// LimitWithBuffer is the row count to fetch so NextCursor can tell whether
// another page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// NewestFirst orders a query by created_at then id, descending, and resumes
// after cursor when one is given. Rows sharing a created_at are split by id so
// no row is skipped or repeated across pages.
func NewestFirst(cursor *Cursor) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if cursor != nil {
			db = db.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
				cursor.CreatedAt.UTC(), cursor.CreatedAt.UTC(), cursor.ID)
		}
		return db.Order("created_at DESC").Order("id DESC")
	}
}

// NextCursor trims a page fetched with LimitWithBuffer and returns the cursor
// for the following page, or nil on the last page.
func NextCursor[T any](rows []T, limit int, key func(T) Cursor) ([]T, *Cursor) {
	limit = NormalizeLimit(limit)
	if len(rows) <= limit {
		return rows, nil
	}
	page := rows[:limit]
	next := key(page[len(page)-1])
	return page, &next
}

// EncodeCursor renders cursor as unpadded base64url of "<rfc3339nano>|<uuid>".
func EncodeCursor(cursor Cursor) string {
	raw := cursor.CreatedAt.UTC().Format(time.RFC3339Nano) + cursorSep + cursor.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseCursor reverses EncodeCursor. A blank value means the first page and
// yields a nil cursor. Padded input from clients that re-encode is accepted.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimRight(strings.TrimSpace(value), "=")
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	stamp, id, ok := strings.Cut(string(raw), cursorSep)
	if !ok {
		return nil, errors.New("cursor is missing its id")
	}

	var cursor Cursor
	if cursor.CreatedAt, err = time.Parse(time.RFC3339Nano, stamp); err != nil {
		return nil, fmt.Errorf("cursor timestamp: %w", err)
	}
	if cursor.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("cursor id: %w", err)
	}
	return &cursor, nil
}
