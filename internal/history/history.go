// Package history records completed feedback sessions.
package history

import (
	"context"
	"time"
)

// Outcome describes how a feedback session ended.
type Outcome string

const (
	OutcomeSubmitted Outcome = "submitted"
	OutcomeTimeout   Outcome = "timeout"
)

// Entry is one finished feedback session.
type Entry struct {
	ID               string    `json:"id"`
	SessionID        string    `json:"session_id"`
	ProjectDirectory string    `json:"project_directory"`
	Summary          string    `json:"summary"`
	Feedback         string    `json:"feedback"`
	CommandLogs      string    `json:"command_logs"`
	Outcome          Outcome   `json:"outcome"`
	CreatedAt        time.Time `json:"created_at"`
	CompletedAt      time.Time `json:"completed_at"`
}

// Store persists history entries.
type Store interface {
	Record(ctx context.Context, e Entry) (Entry, error)
	// List returns the newest entries first.
	List(ctx context.Context, limit int) ([]Entry, error)
}
