package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/minidoracat/mcp-feedback-enhanced/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := database.Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLiteStore(db)
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()

	t.Run("record assigns id and round trips", func(t *testing.T) {
		st := newTestStore(t)
		created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

		rec, err := st.Record(ctx, Entry{
			SessionID:        "sess-1",
			ProjectDirectory: "/work/app",
			Summary:          "Refactored the parser",
			Feedback:         "Looks good",
			CommandLogs:      "$ go test\nok\n",
			Outcome:          OutcomeSubmitted,
			CreatedAt:        created,
			CompletedAt:      created.Add(time.Minute),
		})
		require.NoError(t, err)
		assert.NotEmpty(t, rec.ID)

		entries, err := st.List(ctx, 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, rec, entries[0])
	})

	t.Run("list returns newest first and honours limit", func(t *testing.T) {
		st := newTestStore(t)
		base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		for i, summary := range []string{"first", "second", "third"} {
			_, err := st.Record(ctx, Entry{
				SessionID:   summary,
				Summary:     summary,
				Outcome:     OutcomeTimeout,
				CreatedAt:   base,
				CompletedAt: base.Add(time.Duration(i) * time.Second),
			})
			require.NoError(t, err)
		}

		entries, err := st.List(ctx, 2)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "third", entries[0].Summary)
		assert.Equal(t, "second", entries[1].Summary)
	})

	t.Run("empty store", func(t *testing.T) {
		entries, err := newTestStore(t).List(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}
