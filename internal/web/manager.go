// Package web serves the feedback page: it owns the feedback sessions, the
// HTTP and websocket endpoints, and the commands the operator runs from the
// page.
package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/browser"

	"github.com/minidoracat/mcp-feedback-enhanced/internal/config"
	"github.com/minidoracat/mcp-feedback-enhanced/internal/history"
	"github.com/minidoracat/mcp-feedback-enhanced/internal/logging"
	"github.com/minidoracat/mcp-feedback-enhanced/internal/metrics"
	"github.com/minidoracat/mcp-feedback-enhanced/internal/portutil"
	"github.com/minidoracat/mcp-feedback-enhanced/internal/tsnetutil"
)

var (
	// ErrSessionNotFound is returned for unknown or already finished sessions.
	ErrSessionNotFound = errors.New("session not found")
	// ErrFeedbackTimeout is returned when nobody submits feedback in time.
	ErrFeedbackTimeout = errors.New("timed out waiting for feedback")
)

// Opts configures a Manager.
type Opts struct {
	Host string
	Port int
	// PortAttempts is how many ports from Port upward StartServer tries
	// before letting the OS pick one. Values below 2 bind Port only, as
	// does a Tailscale listener.
	PortAttempts int
	Log          *slog.Logger
	// Debug logs every HTTP request and websocket message.
	Debug     bool
	Tailscale config.TailscaleConfig
	// History and Metrics are optional.
	History history.Store
	Metrics *metrics.Collector
	// OpenBrowser defaults to the system browser.
	OpenBrowser func(url string) error
}

// Manager owns the feedback sessions and the web server that serves them.
type Manager struct {
	log         *slog.Logger
	host        string
	debug       bool
	tsCfg       config.TailscaleConfig
	attempts    int
	history     history.Store
	metrics     *metrics.Collector
	openBrowser func(string) error
	templates   *template.Template
	upgrader    websocket.Upgrader

	mu         sync.Mutex
	port       int
	sessions   map[string]*Session
	started    bool
	srv        *http.Server
	ln         *tsnetutil.Listener
	tailnetURL string
	done       chan struct{}
	serveErr   error
}

var browserOnce sync.Once

func systemBrowser(url string) error {
	// stdout may carry the MCP protocol; keep the opener's chatter off it.
	browserOnce.Do(func() { browser.Stdout = os.Stderr })
	return browser.OpenURL(url)
}

// NewManager creates a Manager. The server is not started until StartServer.
func NewManager(opts Opts) *Manager {
	log := opts.Log
	if log == nil {
		log = logging.Discard()
	}
	host := opts.Host
	if host == "" {
		host = config.DefaultHost
	}
	open := opts.OpenBrowser
	if open == nil {
		open = systemBrowser
	}
	return &Manager{
		log:         log.With("subsystem", "web"),
		host:        host,
		port:        opts.Port,
		debug:       opts.Debug,
		tsCfg:       opts.Tailscale,
		attempts:    opts.PortAttempts,
		history:     opts.History,
		metrics:     opts.Metrics,
		openBrowser: open,
		templates:   parseTemplates(),
		sessions:    make(map[string]*Session),
		done:        make(chan struct{}),
	}
}

// CreateSession registers a new feedback session and returns its id.
func (m *Manager) CreateSession(projectDir, summary string) (string, error) {
	if strings.TrimSpace(projectDir) == "" {
		return "", fmt.Errorf("project directory is required")
	}
	id := uuid.NewString()

	m.mu.Lock()
	m.sessions[id] = newSession(id, projectDir, summary)
	m.mu.Unlock()

	m.metrics.SessionCreated()
	m.log.Debug("session created", "session_id", id, "project_directory", projectDir)
	return id, nil
}

func (m *Manager) session(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

// Session returns the session with the given id.
func (m *Manager) Session(id string) (*Session, bool) {
	s := m.session(id)
	return s, s != nil
}

func (m *Manager) listSessions() []*Session {
	m.mu.Lock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *Manager) removeSession(id string) *Session {
	m.mu.Lock()
	s := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if s != nil {
		m.stopCommand(s)
		m.metrics.SessionClosed()
	}
	return s
}

func (m *Manager) completeSession(s *Session, feedback string) {
	if s.complete(feedback) {
		m.log.Info("feedback submitted", "session_id", s.ID)
	}
}

// StartServer starts serving in a background goroutine. It returns once the
// listener is bound; calling it again is a no-op.
func (m *Manager) StartServer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}

	ln, err := m.listenLocked()
	if err != nil {
		return err
	}
	if ln.Port() != m.port && m.port != 0 {
		m.log.Info("web UI port in use, using another", "preferred", m.port, "port", ln.Port())
	}
	m.ln = ln
	m.port = ln.Port()

	if ln.LC != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		url, err := ln.TailnetURL(ctx)
		cancel()
		if err != nil {
			m.log.Warn("tailnet URL unavailable", "error", err)
		}
		m.tailnetURL = url
	}

	m.srv = &http.Server{
		Handler:           m.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	m.started = true

	srv, done := m.srv, m.done
	go func() {
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Error("serve error", "error", err)
			m.mu.Lock()
			m.serveErr = err
			m.mu.Unlock()
		}
		close(done)
	}()

	m.log.Info("web UI listening", "url", m.urlLocked(), "tailscale_enabled", m.tsCfg.Enabled)
	return nil
}

// listenLocked binds the first free candidate port. Binding is the check, so
// no other process can take the port between choosing and serving.
func (m *Manager) listenLocked() (*tsnetutil.Listener, error) {
	candidates := []int{m.port}
	if !m.tsCfg.Enabled {
		candidates = portutil.Candidates(m.port, m.attempts)
	}
	var err error
	for _, port := range candidates {
		addr := net.JoinHostPort(m.host, strconv.Itoa(port))
		var ln *tsnetutil.Listener
		ln, err = tsnetutil.ListenAddr(addr, m.tsCfg)
		if err == nil {
			return ln, nil
		}
		m.log.Debug("listen failed", "addr", addr, "error", err)
	}
	m.log.Error("listen failed", "host", m.host, "port", m.port, "error", err)
	return nil, err
}

// Running reports whether the server has been started and is still serving.
func (m *Manager) Running() bool {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if !started {
		return false
	}
	select {
	case <-m.done:
		return false
	default:
		return true
	}
}

// Done is closed when the server stops serving.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Err returns the error that stopped the server, if any.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.serveErr
}

// Host returns the configured bind host.
func (m *Manager) Host() string {
	return m.host
}

// Port returns the bound port once started, the configured one before.
func (m *Manager) Port() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.port
}

// URL returns the base URL of the web UI.
func (m *Manager) URL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.urlLocked()
}

func (m *Manager) urlLocked() string {
	if m.tailnetURL != "" {
		return m.tailnetURL
	}
	return "http://" + net.JoinHostPort(m.host, strconv.Itoa(m.port))
}

// SessionURL returns the feedback page URL for a session.
func (m *Manager) SessionURL(id string) string {
	return m.URL() + "/session/" + id
}

// OpenBrowser opens url in the operator's browser.
func (m *Manager) OpenBrowser(url string) error {
	if err := m.openBrowser(url); err != nil {
		return fmt.Errorf("opening browser: %w", err)
	}
	return nil
}

// Ping checks that the server answers its health endpoint.
func (m *Manager) Ping(ctx context.Context) error {
	m.mu.Lock()
	ln := m.ln
	base := m.urlLocked()
	m.mu.Unlock()
	if ln == nil {
		return fmt.Errorf("server not started")
	}

	client := http.DefaultClient
	if ln.TS != nil {
		client = ln.TS.HTTPClient()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// WaitForFeedback blocks until the session's feedback is submitted, the
// timeout elapses, or ctx is done. The session is removed in every case.
func (m *Manager) WaitForFeedback(ctx context.Context, id string, timeout time.Duration) (Feedback, error) {
	s := m.session(id)
	if s == nil {
		return Feedback{}, ErrSessionNotFound
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var (
		outcome history.Outcome
		waitErr error
	)
	select {
	case <-s.Done():
		outcome = history.OutcomeSubmitted
	case <-timer.C:
		outcome = history.OutcomeTimeout
		waitErr = fmt.Errorf("%w after %s", ErrFeedbackTimeout, timeout)
	case <-ctx.Done():
		waitErr = ctx.Err()
	}

	m.removeSession(id)
	fb := s.Feedback()

	if outcome == "" {
		m.metrics.SessionCompleted("canceled")
		return Feedback{}, waitErr
	}
	m.metrics.SessionCompleted(string(outcome))

	if m.history != nil {
		_, err := m.history.Record(context.WithoutCancel(ctx), history.Entry{
			SessionID:        s.ID,
			ProjectDirectory: s.ProjectDirectory,
			Summary:          s.Summary,
			Feedback:         fb.InteractiveFeedback,
			CommandLogs:      fb.CommandLogs,
			Outcome:          outcome,
			CreatedAt:        s.CreatedAt,
		})
		if err != nil {
			m.log.Warn("recording history failed", "session_id", id, "error", err)
		}
	}

	if waitErr != nil {
		return Feedback{}, waitErr
	}
	return fb, nil
}

// Shutdown closes every open session, disconnecting its page and stopping
// its command, then stops the server.
func (m *Manager) Shutdown(ctx context.Context) error {
	for _, s := range m.listSessions() {
		m.removeSession(s.ID)
		if c := s.attach(nil); c != nil {
			_ = c.close()
		}
	}

	m.mu.Lock()
	srv, ln, started := m.srv, m.ln, m.started
	m.mu.Unlock()
	if !started {
		return nil
	}

	err := srv.Shutdown(ctx)
	if ln.TS != nil {
		_ = ln.TS.Close()
	}

	select {
	case <-m.done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	m.log.Debug("web UI stopped")
	return err
}
