package idempotency_test

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/chatwoot-scheduler/pkg/outbox/idempotency"
)

// exampleMarkers is a single-process stand-in for the redis client.
type exampleMarkers map[string]any

func (m exampleMarkers) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m[key]; ok {
		return false, nil
	}
	m[key] = value
	return true, nil
}

func (m exampleMarkers) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m, key)
	}
	return nil
}

func (m exampleMarkers) IdempotencyKey(scope, id string) string {
	return "cws:idempotency:" + scope + ":" + id
}

func ExampleManager_CheckAndMarkProcessed() {
	ctx := context.Background()
	manager, _ := idempotency.NewManager(exampleMarkers{}, 0)

	// n8n redelivers the same report, then a failed apply is rolled back
	for _, step := range []string{"deliver", "redeliver", "rollback", "redeliver"} {
		if step == "rollback" {
			_ = manager.Delete(ctx, "delivery-status", "msg-1001")
			fmt.Println("marker cleared")
			continue
		}
		already, _ := manager.CheckAndMarkProcessed(ctx, "delivery-status", "msg-1001")
		if already {
			fmt.Println("skipped duplicate")
			continue
		}
		fmt.Println("applied report")
	}
	// Output:
	// applied report
	// skipped duplicate
	// marker cleared
	// applied report
}
