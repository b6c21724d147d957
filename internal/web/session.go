package web

import (
	"os/exec"
	"strings"
	"sync"
	"time"
)

// CommandConfig is the per-session command settings edited from the page.
type CommandConfig struct {
	RunCommand           string `json:"run_command"`
	ExecuteAutomatically bool   `json:"execute_automatically"`
}

// Feedback is what interactive_feedback returns to the MCP client.
type Feedback struct {
	CommandLogs         string `json:"command_logs"`
	InteractiveFeedback string `json:"interactive_feedback"`
}

// Session is one feedback-collection interaction.
type Session struct {
	ID               string
	ProjectDirectory string
	Summary          string
	CreatedAt        time.Time

	mu       sync.Mutex
	config   CommandConfig
	logs     []string
	feedback string
	conn     *wsConn
	cmd      *exec.Cmd

	done     chan struct{}
	doneOnce sync.Once
}

func newSession(id, projectDir, summary string) *Session {
	return &Session{
		ID:               id,
		ProjectDirectory: projectDir,
		Summary:          summary,
		CreatedAt:        time.Now(),
		done:             make(chan struct{}),
	}
}

// Done is closed once feedback has been submitted.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Completed reports whether feedback has been submitted.
func (s *Session) Completed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// complete stores the feedback and marks the session done. Only the first
// submission wins.
func (s *Session) complete(feedback string) bool {
	first := false
	s.doneOnce.Do(func() {
		s.mu.Lock()
		s.feedback = feedback
		s.mu.Unlock()
		close(s.done)
		first = true
	})
	return first
}

// Feedback returns the collected logs and feedback text.
func (s *Session) Feedback() Feedback {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Feedback{
		CommandLogs:         strings.Join(s.logs, ""),
		InteractiveFeedback: s.feedback,
	}
}

func (s *Session) Config() CommandConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

func (s *Session) updateConfig(u configUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.RunCommand != nil {
		s.config.RunCommand = *u.RunCommand
	}
	if u.ExecuteAutomatically != nil {
		s.config.ExecuteAutomatically = *u.ExecuteAutomatically
	}
}

// Logs returns a copy of the accumulated command output.
func (s *Session) Logs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.logs...)
}

// appendLog records a line of command output and forwards it to the page.
func (s *Session) appendLog(line string) {
	s.mu.Lock()
	s.logs = append(s.logs, line)
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		_ = conn.send(outbound{Type: msgLog, Data: line})
	}
}

func (s *Session) clearLogs() {
	s.mu.Lock()
	s.logs = nil
	s.mu.Unlock()
}

// send forwards a message to the attached page, if any.
func (s *Session) send(msg outbound) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		_ = conn.send(msg)
	}
}

// attach makes c the session's connection and returns the one it replaced.
func (s *Session) attach(c *wsConn) *wsConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.conn
	s.conn = c
	return prev
}

func (s *Session) detach(c *wsConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == c {
		s.conn = nil
	}
}

func (s *Session) setCommand(cmd *exec.Cmd) {
	s.mu.Lock()
	s.cmd = cmd
	s.mu.Unlock()
}

// takeCommand detaches and returns the running command.
func (s *Session) takeCommand() *exec.Cmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmd := s.cmd
	s.cmd = nil
	return cmd
}

// releaseCommand clears cmd if it is still the running command. It reports
// false when the command was stopped or replaced in the meantime.
func (s *Session) releaseCommand(cmd *exec.Cmd) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != cmd {
		return false
	}
	s.cmd = nil
	return true
}

// CommandRunning reports whether a command started from the page is still running.
func (s *Session) CommandRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd != nil
}

type sessionInfo struct {
	ID               string    `json:"id"`
	ProjectDirectory string    `json:"project_directory"`
	Summary          string    `json:"summary"`
	CreatedAt        time.Time `json:"created_at"`
	Completed        bool      `json:"completed"`
}

func (s *Session) info() sessionInfo {
	return sessionInfo{
		ID:               s.ID,
		ProjectDirectory: s.ProjectDirectory,
		Summary:          s.Summary,
		CreatedAt:        s.CreatedAt,
		Completed:        s.Completed(),
	}
}
