package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration file found for %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestScheduleMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_schedule_msg.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS schedule_msg",
		"contactid BIGINT NOT NULL",
		"conversationid BIGINT NOT NULL",
		"previous_edit_ids JSONB NOT NULL DEFAULT '[]'",
		"attachments JSONB NOT NULL DEFAULT '[]'",
		"CHECK (contactid > 0)",
		"CHECK (conversationid > 0)",
		"CHECK (status IN ('scheduled', 'edited', 'sent', 'cancelled', 'error'))",
		"CREATE INDEX IF NOT EXISTS idx_schedule_msg_contact_active",
		"DROP TABLE IF EXISTS schedule_msg",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOutboxMigrationsContainTables(t *testing.T) {
	events := readMigration(t, "*_create_outbox_events.sql")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS outbox_events",
		"'schedule_delivery_reported'",
		"WHERE published_at IS NULL",
		"DROP TABLE IF EXISTS outbox_events",
	} {
		if !strings.Contains(events, sub) {
			t.Errorf("outbox_events missing %q", sub)
		}
	}

	dlq := readMigration(t, "*_create_outbox_dlq.sql")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS outbox_dlq",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_outbox_dlq_event_id",
		"DROP TABLE IF EXISTS outbox_dlq",
	} {
		if !strings.Contains(dlq, sub) {
			t.Errorf("outbox_dlq missing %q", sub)
		}
	}
}
