package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestCursorRoundTripIsURLSafe(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2025, 3, 10, 17, 0, 0, 123, time.FixedZone("BRT", -3*3600)), ID: uuid.New()}
	encoded := EncodeCursor(in)
	assert.NotContains(t, encoded, "=")
	assert.False(t, strings.ContainsAny(encoded, "+/"), "cursor %q is not URL safe", encoded)

	for _, value := range []string{encoded, " " + encoded + "==", encoded + "="} {
		out, err := ParseCursor(value)
		require.NoError(t, err, value)
		assert.True(t, out.CreatedAt.Equal(in.CreatedAt))
		assert.Equal(t, in.ID, out.ID)
	}
}

func TestParseCursorRejects(t *testing.T) {
	blank, err := ParseCursor(" ")
	require.NoError(t, err)
	assert.Nil(t, blank)

	encode := func(raw string) string { return base64.RawURLEncoding.EncodeToString([]byte(raw)) }
	cases := map[string]string{
		"!!!":                                   "decode cursor",
		encode("2025-03-10T17:00:00Z"):          "cursor is missing its id",
		encode("yesterday|" + uuid.NewString()): "cursor timestamp",
		encode("2025-03-10T17:00:00Z|nope"):     "cursor id",
	}
	for value, want := range cases {
		_, err := ParseCursor(value)
		assert.ErrorContains(t, err, want, value)
	}
}

func TestLimits(t *testing.T) {
	for in, want := range map[int]int{-1: DefaultLimit, 0: DefaultLimit, 10: 10, MaxLimit: MaxLimit, 1000: MaxLimit} {
		assert.Equal(t, want, NormalizeLimit(in), in)
	}
	assert.Equal(t, 11, LimitWithBuffer(10))
}

func TestNextCursor(t *testing.T) {
	rows := []int{1, 2, 3}
	key := func(v int) Cursor { return Cursor{CreatedAt: time.Unix(int64(v), 0)} }

	page, next := NextCursor(rows, 2, key)
	assert.Equal(t, []int{1, 2}, page)
	require.NotNil(t, next)
	assert.Equal(t, int64(2), next.CreatedAt.Unix())

	page, next = NextCursor(rows, 5, key)
	assert.Equal(t, rows, page)
	assert.Nil(t, next)
}

type pageRow struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time
}

func TestNewestFirstWalksTiesWithoutGaps(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&pageRow{}))

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		// three rows share a timestamp so the id tiebreak is exercised
		created := base.Add(time.Duration(i/3) * time.Minute)
		require.NoError(t, conn.Create(&pageRow{ID: uuid.New(), CreatedAt: created}).Error)
	}

	seen := map[uuid.UUID]bool{}
	var cursor *Cursor
	for pages := 0; pages < 5; pages++ {
		var rows []pageRow
		require.NoError(t, conn.Scopes(NewestFirst(cursor)).Limit(LimitWithBuffer(2)).Find(&rows).Error)
		page, next := NextCursor(rows, 2, func(r pageRow) Cursor { return Cursor{CreatedAt: r.CreatedAt, ID: r.ID} })
		for _, row := range page {
			require.False(t, seen[row.ID], "row %s repeated", row.ID)
			seen[row.ID] = true
		}
		if next == nil {
			break
		}
		cursor = next
	}
	require.Len(t, seen, 5)
}
