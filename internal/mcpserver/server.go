// Package mcpserver exposes the feedback tools to MCP clients over stdio.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/minidoracat/mcp-feedback-enhanced/internal/envinfo"
	"github.com/minidoracat/mcp-feedback-enhanced/internal/logging"
	"github.com/minidoracat/mcp-feedback-enhanced/internal/version"
	"github.com/minidoracat/mcp-feedback-enhanced/internal/web"
)

// ImplementationName is reported to clients during the handshake.
const ImplementationName = "mcp-feedback-enhanced"

const (
	defaultProjectDirectory = "."
	defaultSummary          = "I have completed the task you requested."
	defaultFeedbackTimeout  = 600 * time.Second
)

// Deps are the collaborators of a Server.
type Deps struct {
	Manager *web.Manager
	Log     *slog.Logger
	// FeedbackTimeout is used when a call does not pass its own timeout.
	FeedbackTimeout time.Duration
	// Stdin and Stdout default to the process streams.
	Stdin  io.Reader
	Stdout io.Writer
}

// Server is the MCP stdio server.
type Server struct {
	server  *mcp.Server
	log     *slog.Logger
	manager *web.Manager
	timeout time.Duration
	stdin   io.Reader
	stdout  io.Writer

	requestFeedbackFn func(ctx context.Context, projectDir, summary string, timeout time.Duration) (web.Feedback, error)
	systemInfoFn      func() envinfo.Info
}

// New creates a Server with its tools registered.
func New(deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = logging.Discard()
	}
	timeout := deps.FeedbackTimeout
	if timeout <= 0 {
		timeout = defaultFeedbackTimeout
	}
	stdin, stdout := deps.Stdin, deps.Stdout
	if stdin == nil {
		stdin = os.Stdin
	}
	if stdout == nil {
		stdout = os.Stdout
	}

	s := &Server{
		log:          log.With("subsystem", "mcp"),
		manager:      deps.Manager,
		timeout:      timeout,
		stdin:        stdin,
		stdout:       stdout,
		systemInfoFn: envinfo.Detect,
	}
	s.requestFeedbackFn = s.requestFeedback
	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    ImplementationName,
		Version: version.Version,
	}, nil)
	s.registerTools()
	return s
}

// Run serves until the client disconnects or ctx is cancelled. Both
// newline-delimited and Content-Length framed clients are accepted.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("mcp server starting", "version", version.Version)

	bridge := newStdioBridge(s.stdin, s.stdout)
	bridge.start(s.log)

	runErr := s.server.Run(ctx, bridge.transport())
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		s.log.Error("mcp server stopped", "error", runErr)
	}
	bridge.close()

	if runErr != nil {
		return runErr
	}
	if err := bridge.err(); err != nil {
		s.log.Error("stdio bridge failed", "error", err)
		return err
	}
	return nil
}

type interactiveFeedbackArgs struct {
	ProjectDirectory string `json:"project_directory,omitempty" jsonschema:"Path of the project directory the task ran in. Defaults to the current directory."`
	Summary          string `json:"summary,omitempty" jsonschema:"Short summary of the work done, shown to the user."`
	Timeout          int    `json:"timeout,omitempty" jsonschema:"Seconds to wait for the user's feedback."`
}

type interactiveFeedbackResult struct {
	CommandLogs         string `json:"command_logs"`
	InteractiveFeedback string `json:"interactive_feedback"`
}

type systemInfoResult struct {
	Platform       string `json:"platform"`
	Arch           string `json:"arch"`
	GoVersion      string `json:"go_version"`
	IsRemote       bool   `json:"is_remote"`
	CanOpenBrowser bool   `json:"can_open_browser"`
	WebURL         string `json:"web_url"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "interactive_feedback",
		Description: "Request interactive feedback from the user for a given project directory. Opens a web page where the user can run commands and reply.",
	}, s.handleInteractiveFeedback)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_system_info",
		Description: "Report the platform, whether the server runs remotely and the feedback web UI address.",
	}, s.handleSystemInfo)
}

func (s *Server) handleInteractiveFeedback(ctx context.Context, _ *mcp.CallToolRequest, args interactiveFeedbackArgs) (*mcp.CallToolResult, interactiveFeedbackResult, error) {
	dir := firstLine(args.ProjectDirectory)
	if dir == "" {
		dir = defaultProjectDirectory
	}
	summary := firstLine(args.Summary)
	if summary == "" {
		summary = defaultSummary
	}
	timeout := s.timeout
	if args.Timeout > 0 {
		timeout = time.Duration(args.Timeout) * time.Second
	}

	s.log.Info("tool call", "tool", "interactive_feedback", "project_directory", dir, "timeout", timeout)
	fb, err := s.requestFeedbackFn(ctx, dir, summary, timeout)
	if err != nil {
		s.log.Warn("tool call failed", "tool", "interactive_feedback", "error", err)
		return nil, interactiveFeedbackResult{}, err
	}
	s.log.Info("tool call completed", "tool", "interactive_feedback")

	content := []mcp.Content{&mcp.TextContent{Text: fb.InteractiveFeedback}}
	if fb.CommandLogs != "" {
		content = append(content, &mcp.TextContent{Text: "Command logs:\n" + fb.CommandLogs})
	}
	return &mcp.CallToolResult{Content: content}, interactiveFeedbackResult{
		CommandLogs:         fb.CommandLogs,
		InteractiveFeedback: fb.InteractiveFeedback,
	}, nil
}

// requestFeedback starts the web UI if needed, creates a session and blocks
// until the user answers or timeout elapses.
func (s *Server) requestFeedback(ctx context.Context, dir, summary string, timeout time.Duration) (web.Feedback, error) {
	if s.manager == nil {
		return web.Feedback{}, errors.New("web UI is not available")
	}
	if err := s.manager.StartServer(); err != nil {
		return web.Feedback{}, fmt.Errorf("starting web UI: %w", err)
	}

	id, err := s.manager.CreateSession(dir, summary)
	if err != nil {
		return web.Feedback{}, fmt.Errorf("creating session: %w", err)
	}
	url := s.manager.SessionURL(id)

	if s.systemInfoFn().CanOpenBrowser {
		if err := s.manager.OpenBrowser(url); err != nil {
			s.log.Warn("could not open browser", "url", url, "error", err)
		}
	} else {
		s.log.Info("open the feedback page in a browser", "url", url)
	}

	return s.manager.WaitForFeedback(ctx, id, timeout)
}

func (s *Server) handleSystemInfo(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, systemInfoResult, error) {
	s.log.Debug("tool call", "tool", "get_system_info")
	info := s.systemInfoFn()
	res := systemInfoResult{
		Platform:       info.Platform,
		Arch:           info.Arch,
		GoVersion:      info.GoVersion,
		IsRemote:       info.IsRemote,
		CanOpenBrowser: info.CanOpenBrowser,
	}
	if s.manager != nil {
		res.WebURL = s.manager.URL()
	}

	text := fmt.Sprintf("Platform: %s/%s\nGo: %s\nRemote: %t\nWeb UI: %s",
		res.Platform, res.Arch, res.GoVersion, res.IsRemote, res.WebURL)
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, res, nil
}

// firstLine returns the first line of text with surrounding space removed.
func firstLine(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	return strings.TrimSpace(line)
}
