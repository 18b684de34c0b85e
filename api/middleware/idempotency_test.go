package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/chatwoot-scheduler/pkg/errors"
)

type memoryIdempotencyStore struct {
	values map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryIdempotencyStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryIdempotencyStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func (m *memoryIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "test:" + scope + ":" + id
}

func postSchedule(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/schedules", strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	return req
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestReplayTTL(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		want   time.Duration
		ok     bool
	}{
		{"create schedule", http.MethodPost, "/api/schedules", createReplayTTL, true},
		{"delivery report", http.MethodPost, "/api/schedules/8f3c/delivery", deliveryReplayTTL, true},
		{"edit schedule", http.MethodPut, "/api/schedules/8f3c", 0, false},
		{"list", http.MethodGet, "/api/schedules", 0, false},
		{"unknown post", http.MethodPost, "/api/other", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ttl, ok := replayTTL(tt.method, tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, ttl)
		})
	}
}

func TestIdempotencyWithoutKeyRunsEveryTime(t *testing.T) {
	store := newMemoryIdempotencyStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, postSchedule("", `{"message":"hi"}`))
		assert.Equal(t, http.StatusCreated, rec.Code)
	}
	assert.Equal(t, 2, calls)
	assert.Empty(t, store.values)
}

func TestIdempotencyReplaysFirstResponse(t *testing.T) {
	store := newMemoryIdempotencyStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"abc"}}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, postSchedule("create-1", `{"message":"hi"}`))
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(replayedHeader))

	replay := httptest.NewRecorder()
	handler.ServeHTTP(replay, postSchedule("create-1", `{"message":"hi"}`))
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "application/json", replay.Header().Get("Content-Type"))
	assert.Equal(t, "true", replay.Header().Get(replayedHeader))
	assert.JSONEq(t, `{"data":{"id":"abc"}}`, replay.Body.String())
	assert.Equal(t, 1, calls)

	key := store.IdempotencyKey("POST|/api/schedules", "create-1")
	assert.Equal(t, createReplayTTL, store.ttls[key])
	assert.NotContains(t, store.values, store.IdempotencyKey("POST|/api/schedules|inflight", "create-1"))
}

func TestIdempotencyRejectsDifferentBody(t *testing.T) {
	store := newMemoryIdempotencyStore()
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), postSchedule("xyz", `{"message":"a"}`))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postSchedule("xyz", `{"message":"b"}`))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), decodeErrorCode(t, rec))
}

func TestIdempotencyRejectsKeyStillInFlight(t *testing.T) {
	store := newMemoryIdempotencyStore()
	store.values[store.IdempotencyKey("POST|/api/schedules|inflight", "busy")] = "other"
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postSchedule("busy", `{}`))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 0, calls)
}

func TestIdempotencyForgetsServerErrors(t *testing.T) {
	store := newMemoryIdempotencyStore()
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), postSchedule("retry-me", `{}`))
	assert.Empty(t, store.values, "5xx answers and the in-flight claim must not linger")
}

func TestIdempotencyStoreFailureIsDependencyError(t *testing.T) {
	store := newMemoryIdempotencyStore()
	store.getErr = errors.New("connection refused")
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("handler must not run when the store is unreachable")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postSchedule("k", `{}`))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeDependency), decodeErrorCode(t, rec))
}

func TestIdempotencyRejectsOversizedKey(t *testing.T) {
	handler := Idempotency(newMemoryIdempotencyStore(), nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postSchedule(strings.Repeat("k", maxIdempotencyKeyLen+1), `{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
