package schedules

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/chatwoot-scheduler/internal/delivery"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/db"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/db/models"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/enums"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/logger"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/outbox"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/timeutil"
)

var saoPaulo = timeutil.MustLoadZone(timeutil.DefaultZone)

// fixedNow is 2025-03-01 12:00 in São Paulo.
var fixedNow = time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(&models.ScheduledMessage{}, &models.OutboxEvent{}, &models.OutboxDLQ{}))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

type fakeNotifier struct {
	notifyFn func(ctx context.Context, payload delivery.Payload, target enums.NotificationTarget) delivery.Outcome
	calls    []enums.NotificationTarget
	payloads []delivery.Payload
}

func (f *fakeNotifier) Notify(ctx context.Context, payload delivery.Payload, target enums.NotificationTarget) delivery.Outcome {
	f.calls = append(f.calls, target)
	f.payloads = append(f.payloads, payload)
	if f.notifyFn != nil {
		return f.notifyFn(ctx, payload, target)
	}
	return delivery.Outcome{Target: target, Delivered: true, Endpoint: "https://n8n.local/webhook/" + string(target)}
}

type testEnv struct {
	conn     *gorm.DB
	repo     Repository
	notifier *fakeNotifier
	svc      Service
	clock    *time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn := openTestDB(t)
	repo := NewRepository(conn)
	notifier := &fakeNotifier{}
	now := fixedNow
	clock := &now
	nowFn := func() time.Time { return *clock }

	svc, err := NewService(ServiceParams{
		Repository: repo,
		DB:         db.FromGorm(conn),
		Outbox:     outbox.NewService(outbox.NewRepository(conn), nil),
		Notifier:   notifier,
		Reconciler: NewReconciler(saoPaulo, nowFn),
		Logger:     logger.New(logger.Options{ServiceName: "schedules-test", Output: io.Discard}),
		Now:        nowFn,
	})
	require.NoError(t, err)
	return &testEnv{conn: conn, repo: repo, notifier: notifier, svc: svc, clock: clock}
}

func (e *testEnv) advance(d time.Duration) {
	*e.clock = e.clock.Add(d)
}

func (e *testEnv) outboxEvents(t *testing.T) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, e.conn.Order("created_at ASC").Find(&rows).Error)
	return rows
}

func helloInput() CreateInput {
	return CreateInput{
		ScheduledAt:    "2025-03-10T14:00",
		Message:        "Hello",
		ContactID:      7,
		ConversationID: 42,
		Contact:        map[string]any{"id": 7, "name": "Maria"},
		Conversation:   map[string]any{"id": 42, "inbox_id": 3},
	}
}

func strPtr(v string) *string { return &v }
