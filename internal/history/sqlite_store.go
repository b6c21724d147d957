package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const timeFormat = "2006-01-02T15:04:05.000Z"

// DefaultListLimit is used when List is called with a non-positive limit.
const DefaultListLimit = 50

// SQLiteStore implements Store on the feedback_history table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLiteStore.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CompletedAt.IsZero() {
		e.CompletedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()
	e.CompletedAt = e.CompletedAt.UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback_history
			(id, session_id, project_directory, summary, feedback, command_logs, outcome, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.ProjectDirectory, e.Summary, e.Feedback, e.CommandLogs,
		string(e.Outcome), e.CreatedAt.Format(timeFormat), e.CompletedAt.Format(timeFormat),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("inserting history entry: %w", err)
	}
	return e, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, project_directory, summary, feedback, command_logs, outcome, created_at, completed_at
		FROM feedback_history
		ORDER BY completed_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                      Entry
			outcome                string
			createdAt, completedAt string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.ProjectDirectory, &e.Summary, &e.Feedback,
			&e.CommandLogs, &outcome, &createdAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		e.Outcome = Outcome(outcome)
		if e.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
		}
		if e.CompletedAt, err = time.Parse(timeFormat, completedAt); err != nil {
			return nil, fmt.Errorf("parsing completed_at %q: %w", completedAt, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history rows: %w", err)
	}
	return entries, nil
}
