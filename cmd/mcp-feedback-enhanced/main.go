package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/minidoracat/mcp-feedback-enhanced/internal/config"
	"github.com/minidoracat/mcp-feedback-enhanced/internal/smoketest"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// ExitError makes the process exit with Code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// usageError marks bad invocations; they print the help text.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

type launcher struct {
	stdout io.Writer
	stderr io.Writer

	loadConfig func() (*config.Config, error)
	serve      func(ctx context.Context, cfg *config.Config, stderr io.Writer) error
	newManager func(cfg *config.Config, log *slog.Logger) smoketest.Manager
}

func newLauncher(stdout, stderr io.Writer) *launcher {
	return &launcher{
		stdout:     stdout,
		stderr:     stderr,
		loadConfig: config.Parse,
		serve:      serveMCP,
		newManager: newWebManager,
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return newLauncher(stdout, stderr).run(ctx, args)
}

func (l *launcher) run(ctx context.Context, args []string) int {
	if args == nil {
		// cobra falls back to os.Args for a nil slice.
		args = []string{}
	}
	root := l.rootCmd()
	root.SetArgs(args)
	root.SetOut(l.stdout)
	root.SetErr(l.stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintln(l.stderr, "Error:", exitErr.Err)
		}
		return exitErr.Code
	}

	var uerr *usageError
	if errors.As(err, &uerr) {
		fmt.Fprintln(l.stderr, "Error:", uerr.err)
		root.SetOut(l.stderr)
		_ = root.Help()
		return 1
	}

	fmt.Fprintln(l.stderr, "Error:", err)
	return 1
}

func (l *launcher) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mcp-feedback-enhanced",
		Short: "MCP server that collects interactive feedback through a web UI",
		Long: "MCP Feedback Enhanced serves the interactive_feedback tool over stdio.\n" +
			"Without a command it runs the MCP server.",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return &usageError{err: fmt.Errorf("unknown command %q", args[0])}
			}
			return nil
		},
		RunE: func(c *cobra.Command, _ []string) error {
			return l.runServer(c.Context())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})
	root.CompletionOptions.DisableDefaultCmd = true
	// Only server, test and version are verbs; "help" is rejected like any other word.
	root.SetHelpCommand(&cobra.Command{
		Use:    "help",
		Hidden: true,
		RunE: func(*cobra.Command, []string) error {
			return &usageError{err: fmt.Errorf("unknown command %q", "help")}
		},
	})

	root.AddCommand(l.serverCmd())
	root.AddCommand(l.testCmd())
	root.AddCommand(l.versionCmd())
	return root
}
