package web

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Message types exchanged with the feedback page.
const (
	msgInit              = "init"
	msgLog               = "log"
	msgRunCommand        = "run_command"
	msgStopCommand       = "stop_command"
	msgProcessCompleted  = "process_completed"
	msgSubmitFeedback    = "submit_feedback"
	msgFeedbackSubmitted = "feedback_submitted"
	msgUpdateConfig      = "update_config"
	msgClearLogs         = "clear_logs"
	msgLogsCleared       = "logs_cleared"
	msgError             = "error"
)

// closeSessionNotFound is the websocket close code sent for unknown sessions.
const closeSessionNotFound = 4000

const writeWait = 10 * time.Second

type configUpdate struct {
	RunCommand           *string `json:"run_command,omitempty"`
	ExecuteAutomatically *bool   `json:"execute_automatically,omitempty"`
}

type inbound struct {
	Type     string        `json:"type"`
	Command  string        `json:"command,omitempty"`
	Feedback string        `json:"feedback,omitempty"`
	Config   *configUpdate `json:"config,omitempty"`
}

type outbound struct {
	Type             string         `json:"type"`
	Data             string         `json:"data,omitempty"`
	Message          string         `json:"message,omitempty"`
	ExitCode         *int           `json:"exit_code,omitempty"`
	ProjectDirectory string         `json:"project_directory,omitempty"`
	Summary          string         `json:"summary,omitempty"`
	Config           *CommandConfig `json:"config,omitempty"`
	Logs             []string       `json:"logs,omitempty"`
}

// wsConn serializes writes; gorilla/websocket allows one concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func newWSConn(c *websocket.Conn) *wsConn {
	return &wsConn{conn: c}
}

func (c *wsConn) send(msg outbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}

func (m *Manager) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	id := r.PathValue("id")
	s := m.session(id)
	if s == nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(closeSessionNotFound, "Session not found"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	wc := newWSConn(conn)
	if prev := s.attach(wc); prev != nil {
		_ = prev.close()
	}
	defer func() {
		s.detach(wc)
		_ = wc.close()
	}()

	m.log.Debug("websocket connected", "session_id", id)

	cfg := s.Config()
	logs := s.Logs()
	if err := wc.send(outbound{
		Type:             msgInit,
		ProjectDirectory: s.ProjectDirectory,
		Summary:          s.Summary,
		Config:           &cfg,
		Logs:             logs,
	}); err != nil {
		m.log.Warn("websocket init failed", "session_id", id, "error", err)
		return
	}

	if cfg.ExecuteAutomatically && cfg.RunCommand != "" && len(logs) == 0 {
		m.runCommand(s, cfg.RunCommand)
	}

	for {
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				m.log.Debug("websocket read ended", "session_id", id, "error", err)
			}
			return
		}
		m.handleMessage(s, msg)
	}
}

func (m *Manager) handleMessage(s *Session, msg inbound) {
	m.log.Debug("websocket message", "session_id", s.ID, "type", msg.Type)

	switch msg.Type {
	case msgRunCommand:
		m.runCommand(s, msg.Command)

	case msgStopCommand:
		m.stopCommand(s)

	case msgSubmitFeedback:
		m.completeSession(s, msg.Feedback)
		s.send(outbound{Type: msgFeedbackSubmitted, Message: "Feedback submitted successfully"})

	case msgUpdateConfig:
		if msg.Config != nil {
			s.updateConfig(*msg.Config)
		}

	case msgClearLogs:
		s.clearLogs()
		s.send(outbound{Type: msgLogsCleared})

	default:
		s.send(outbound{Type: msgError, Message: "unknown message type: " + msg.Type})
	}
}
