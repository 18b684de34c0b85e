package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"
)

// DefaultTTL bounds how long a processed marker outlives its message.
// Pub/Sub stops redelivering well within a week.
const DefaultTTL = 7 * 24 * time.Hour

type markerStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Manager records which messages a consumer has already applied. Markers live
// under `cws:idempotency:processed:<consumer>:<message_id>` and hold the time
// they were written.
type Manager struct {
	store markerStore
	ttl   time.Duration
	now   func() time.Time
}

// NewManager builds a guard whose markers expire after ttl. A zero ttl uses DefaultTTL.
func NewManager(store markerStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}, nil
}

// CheckAndMarkProcessed reports true when messageID was already marked for
// consumer. Otherwise it writes the marker and reports false.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer, messageID string) (bool, error) {
	key, err := m.markerKey(consumer, messageID)
	if err != nil {
		return false, err
	}
	set, err := m.store.SetNX(ctx, key, m.now().UTC().Format(time.RFC3339), m.ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Delete forgets a marker so a redelivered message is applied again.
func (m *Manager) Delete(ctx context.Context, consumer, messageID string) error {
	key, err := m.markerKey(consumer, messageID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) markerKey(consumer, messageID string) (string, error) {
	consumer = strings.TrimSpace(consumer)
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if strings.Contains(consumer, ":") {
		return "", errors.New("consumer name must not contain ':'")
	}
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return "", errors.New("message id is required")
	}
	return m.store.IdempotencyKey("processed:"+consumer, messageID), nil
}
