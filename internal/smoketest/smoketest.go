// Package smoketest runs the interactive web UI check behind `test --web`:
// it brings up the feedback page for a throwaway session, opens it in the
// browser and keeps serving until the operator interrupts.
package smoketest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/minidoracat/mcp-feedback-enhanced/internal/logging"
)

// SessionDescription is the summary shown on the test session's page.
const SessionDescription = "Web UI test - verify basic functionality"

const (
	DefaultReadyTimeout = 60 * time.Second
	DefaultPollInterval = 250 * time.Millisecond
	shutdownTimeout     = 5 * time.Second
)

// Manager is the part of the web UI manager the smoke test drives.
type Manager interface {
	CreateSession(projectDir, summary string) (string, error)
	StartServer() error
	Running() bool
	Ping(ctx context.Context) error
	Done() <-chan struct{}
	URL() string
	OpenBrowser(url string) error
	Shutdown(ctx context.Context) error
}

// Outcome classifies how a smoke test ended. The zero value is Unknown so
// a Result that was never filled in does not read as a pass.
type Outcome int

const (
	Unknown Outcome = iota
	Success
	SessionFailed
	ServerFailed
	UnexpectedError
)

func (o Outcome) String() string {
	switch o {
	case Unknown:
		return "unknown"
	case Success:
		return "success"
	case SessionFailed:
		return "session_failed"
	case ServerFailed:
		return "server_failed"
	case UnexpectedError:
		return "unexpected_error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is returned by Run.
type Result struct {
	Outcome Outcome
	Err     error
	// URL is set once the server was confirmed ready.
	URL string
	// WorkDir is the temporary project directory; it no longer exists when
	// Run returns.
	WorkDir string
}

// OK reports whether the test passed.
func (r Result) OK() bool {
	return r.Outcome == Success
}

// Options configures Run.
type Options struct {
	Manager Manager
	// ReadyTimeout bounds the wait for the server to answer its health check.
	ReadyTimeout time.Duration
	PollInterval time.Duration
	// Out receives the operator-facing progress lines.
	Out io.Writer
	Log *slog.Logger
}

// Run executes the smoke test. It blocks until ctx is cancelled, the server
// stops on its own, or a step fails. The manager is shut down before Run
// returns.
func Run(ctx context.Context, opts Options) (res Result) {
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = DefaultReadyTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Log == nil {
		opts.Log = logging.Discard()
	}
	log := opts.Log.With("subsystem", "smoketest")

	defer func() {
		if r := recover(); r != nil {
			log.Error("smoke test panicked", "panic", r, "stack", string(debug.Stack()))
			res.Outcome = UnexpectedError
			res.Err = fmt.Errorf("panic: %v", r)
		}
	}()

	if opts.Manager == nil {
		return Result{Outcome: UnexpectedError, Err: errors.New("no web UI manager")}
	}

	dir, err := os.MkdirTemp("", "mcp-feedback-test-")
	if err != nil {
		return Result{Outcome: UnexpectedError, Err: fmt.Errorf("creating temp dir: %w", err)}
	}
	res.WorkDir = dir
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("removing temp dir failed", "dir", dir, "error", err)
		}
	}()

	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := opts.Manager.Shutdown(sctx); err != nil {
			log.Warn("shutting down web UI failed", "error", err)
		}
	}()

	return run(ctx, opts, log, res)
}

func run(ctx context.Context, opts Options, log *slog.Logger, res Result) Result {
	m := opts.Manager
	out := opts.Out

	fmt.Fprintln(out, "Creating test session...")
	id, err := m.CreateSession(res.WorkDir, SessionDescription)
	if err != nil {
		res.Outcome, res.Err = SessionFailed, fmt.Errorf("creating session: %w", err)
		fmt.Fprintf(out, "Session creation failed: %v\n", err)
		return res
	}
	if id == "" {
		res.Outcome, res.Err = SessionFailed, errors.New("creating session: empty session id")
		fmt.Fprintln(out, "Session creation failed")
		return res
	}
	fmt.Fprintln(out, "Session created")
	log.Debug("session created", "session_id", id, "dir", res.WorkDir)

	fmt.Fprintln(out, "Starting web server...")
	if err := m.StartServer(); err != nil {
		res.Outcome, res.Err = ServerFailed, fmt.Errorf("starting server: %w", err)
		fmt.Fprintf(out, "Web server failed to start: %v\n", err)
		return res
	}
	if err := waitReady(ctx, m, opts.ReadyTimeout, opts.PollInterval); err != nil {
		res.Outcome, res.Err = ServerFailed, err
		fmt.Fprintf(out, "Web server failed to start: %v\n", err)
		return res
	}

	res.URL = m.URL()
	fmt.Fprintln(out, "Web server started")
	fmt.Fprintf(out, "Server running at: %s\n", res.URL)

	fmt.Fprintln(out, "Opening browser...")
	if err := m.OpenBrowser(res.URL); err != nil {
		log.Warn("could not open browser", "url", res.URL, "error", err)
		fmt.Fprintf(out, "Could not open browser automatically: %v\n", err)
		fmt.Fprintf(out, "Open %s manually\n", res.URL)
	} else {
		fmt.Fprintln(out, "Browser opened")
	}

	fmt.Fprintln(out, "Web UI test ready; the server keeps running so the page can be exercised")
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	select {
	case <-ctx.Done():
		fmt.Fprintln(out, "Stopping server...")
		res.Outcome = Success
	case <-m.Done():
		res.Outcome, res.Err = UnexpectedError, errors.New("web server stopped unexpectedly")
		fmt.Fprintln(out, "Web server stopped unexpectedly")
	}
	return res
}

// waitReady polls until the server reports running and answers its health
// check, or timeout elapses.
func waitReady(ctx context.Context, m Manager, timeout, interval time.Duration) error {
	deadline := time.After(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		if m.Running() {
			pctx, cancel := context.WithTimeout(ctx, interval*4)
			lastErr = m.Ping(pctx)
			cancel()
			if lastErr == nil {
				return nil
			}
		} else {
			lastErr = errors.New("server not running")
		}

		select {
		case <-deadline:
			return fmt.Errorf("server not ready after %s: %w", timeout, lastErr)
		case <-ctx.Done():
			return ctx.Err()
		case <-m.Done():
			return errors.New("server stopped before becoming ready")
		case <-ticker.C:
		}
	}
}
