package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/chatwoot-scheduler/internal/schedules"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/enums"
	pkgerrors "github.com/angelmondragon/chatwoot-scheduler/pkg/errors"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/logger"
)

type stubReporter struct {
	calls  int
	id     uuid.UUID
	report schedules.DeliveryReport
	err    error
}

func (s *stubReporter) ReportDelivery(ctx context.Context, id uuid.UUID, report schedules.DeliveryReport) (*schedules.Result, error) {
	s.calls++
	s.id = id
	s.report = report
	if s.err != nil {
		return nil, s.err
	}
	return &schedules.Result{}, nil
}

type memoryGuard struct {
	seen    map[string]bool
	deleted []string
	err     error
}

func newMemoryGuard() *memoryGuard {
	return &memoryGuard{seen: map[string]bool{}}
}

func (g *memoryGuard) CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	key := consumer + ":" + eventID
	if g.seen[key] {
		return true, nil
	}
	g.seen[key] = true
	return false, nil
}

func (g *memoryGuard) Delete(ctx context.Context, consumer, eventID string) error {
	key := consumer + ":" + eventID
	delete(g.seen, key)
	g.deleted = append(g.deleted, key)
	return nil
}

type noopSubscriber struct{}

func (noopSubscriber) Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error {
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "delivery-worker-test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func newTestConsumer(t *testing.T, svc reporter, guard ProcessedGuard) *DeliveryStatusConsumer {
	t.Helper()
	c, err := NewDeliveryStatusConsumer(svc, guard, noopSubscriber{}, testLogger())
	require.NoError(t, err)
	return c
}

func statusMessage(t *testing.T, id string, payload map[string]any) *pubsub.Message {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return &pubsub.Message{ID: id, Data: data}
}

func TestDeliveryStatusAppliesReport(t *testing.T) {
	t.Parallel()

	scheduleID := uuid.New()
	reportedAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := &stubReporter{}
	c := newTestConsumer(t, svc, newMemoryGuard())

	result := c.process(context.Background(), statusMessage(t, "msg-1", map[string]any{
		"scheduleId": scheduleID.String(),
		"status":     " SENT ",
		"messageId":  " cw-991 ",
		"reportedAt": reportedAt,
	}))

	assert.False(t, result.nack)
	require.Equal(t, 1, svc.calls)
	assert.Equal(t, scheduleID, svc.id)
	assert.Equal(t, enums.ScheduleStatusSent, svc.report.Status)
	assert.Equal(t, "cw-991", svc.report.MessageID)
	assert.True(t, reportedAt.Equal(svc.report.ReportedAt))
}

func TestDeliveryStatusAcksMalformedMessages(t *testing.T) {
	t.Parallel()

	cases := map[string]*pubsub.Message{
		"invalid json":  {ID: "a", Data: []byte("{")},
		"invalid id":    statusMessage(t, "b", map[string]any{"scheduleId": "nope", "status": "sent"}),
		"not outcome":   statusMessage(t, "c", map[string]any{"scheduleId": uuid.NewString(), "status": "cancelled"}),
		"unknown state": statusMessage(t, "d", map[string]any{"scheduleId": uuid.NewString(), "status": "delivered"}),
	}

	for name, msg := range cases {
		msg := msg
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			svc := &stubReporter{}
			c := newTestConsumer(t, svc, newMemoryGuard())

			result := c.process(context.Background(), msg)

			assert.False(t, result.nack)
			assert.Zero(t, svc.calls)
		})
	}
}

func TestDeliveryStatusSkipsDuplicates(t *testing.T) {
	t.Parallel()

	svc := &stubReporter{}
	c := newTestConsumer(t, svc, newMemoryGuard())
	msg := statusMessage(t, "msg-dup", map[string]any{"scheduleId": uuid.NewString(), "status": "error", "reason": "timeout"})

	require.False(t, c.process(context.Background(), msg).nack)
	require.False(t, c.process(context.Background(), msg).nack)

	assert.Equal(t, 1, svc.calls)
	assert.Equal(t, "timeout", svc.report.Reason)
}

func TestDeliveryStatusContinuesWhenDedupeUnavailable(t *testing.T) {
	t.Parallel()

	svc := &stubReporter{}
	guard := newMemoryGuard()
	guard.err = errors.New("redis down")
	c := newTestConsumer(t, svc, guard)

	result := c.process(context.Background(), statusMessage(t, "msg-2", map[string]any{"scheduleId": uuid.NewString(), "status": "sent"}))

	assert.False(t, result.nack)
	assert.Equal(t, 1, svc.calls)
}

func TestDeliveryStatusAcksTerminalRejections(t *testing.T) {
	t.Parallel()

	for _, code := range []pkgerrors.Code{pkgerrors.CodeNotFound, pkgerrors.CodeStateConflict, pkgerrors.CodeValidation} {
		code := code
		t.Run(string(code), func(t *testing.T) {
			t.Parallel()
			svc := &stubReporter{err: pkgerrors.New(code, "rejected")}
			guard := newMemoryGuard()
			c := newTestConsumer(t, svc, guard)

			result := c.process(context.Background(), statusMessage(t, "msg-3", map[string]any{"scheduleId": uuid.NewString(), "status": "sent"}))

			assert.False(t, result.nack)
			assert.Empty(t, guard.deleted)
		})
	}
}

func TestDeliveryStatusNacksTransientFailures(t *testing.T) {
	t.Parallel()

	cases := map[string]error{
		"dependency": pkgerrors.New(pkgerrors.CodeDependency, "store unavailable"),
		"untyped":    errors.New("connection reset"),
	}

	for name, reportErr := range cases {
		reportErr := reportErr
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			svc := &stubReporter{err: reportErr}
			guard := newMemoryGuard()
			c := newTestConsumer(t, svc, guard)

			result := c.process(context.Background(), statusMessage(t, "msg-4", map[string]any{"scheduleId": uuid.NewString(), "status": "sent"}))

			assert.True(t, result.nack)
			assert.Equal(t, []string{ConsumerName + ":msg-4"}, guard.deleted)
		})
	}
}

func TestNewDeliveryStatusConsumerRequiresDeps(t *testing.T) {
	t.Parallel()

	_, err := NewDeliveryStatusConsumer(nil, nil, noopSubscriber{}, testLogger())
	require.Error(t, err)

	_, err = NewDeliveryStatusConsumer(&stubReporter{}, nil, nil, testLogger())
	require.Error(t, err)

	c, err := NewDeliveryStatusConsumer(&stubReporter{}, nil, noopSubscriber{}, testLogger())
	require.NoError(t, err)
	assert.False(t, c.process(context.Background(), statusMessage(t, "m", map[string]any{"scheduleId": uuid.NewString(), "status": "sent"})).nack)
}
