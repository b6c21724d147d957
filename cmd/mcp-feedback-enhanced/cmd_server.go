package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/minidoracat/mcp-feedback-enhanced/internal/config"
	"github.com/minidoracat/mcp-feedback-enhanced/internal/database"
	"github.com/minidoracat/mcp-feedback-enhanced/internal/history"
	"github.com/minidoracat/mcp-feedback-enhanced/internal/logging"
	"github.com/minidoracat/mcp-feedback-enhanced/internal/mcpserver"
	"github.com/minidoracat/mcp-feedback-enhanced/internal/metrics"
	"github.com/minidoracat/mcp-feedback-enhanced/internal/version"
	"github.com/minidoracat/mcp-feedback-enhanced/internal/web"
)

const (
	portAttempts    = 10
	shutdownTimeout = 5 * time.Second
)

func (l *launcher) serverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Run the MCP server over stdio (default)",
		Args:  noArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return l.runServer(c.Context())
		},
	}
}

func (l *launcher) runServer(ctx context.Context) error {
	cfg, err := l.loadConfig()
	if err != nil {
		return err
	}
	return l.serve(ctx, cfg, l.stderr)
}

// serveMCP runs the MCP server until the client disconnects or ctx is done.
// Logs go to stderr; stdout carries the protocol.
func serveMCP(ctx context.Context, cfg *config.Config, stderr io.Writer) error {
	log := logging.New(stderr, cfg.Debug, "mcp-feedback-enhanced")
	log.Info("starting", "version", version.Version, "debug", cfg.Debug)

	var store history.Store
	if cfg.History.Enabled {
		db, err := database.Open(ctx, cfg.History.DatabasePath)
		if err != nil {
			log.Warn("feedback history disabled", "path", cfg.History.DatabasePath, "error", err)
		} else {
			defer closeDB(db, log)
			store = history.NewSQLiteStore(db)
			log.Debug("database opened", "path", cfg.History.DatabasePath)
		}
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New()
	}

	manager := web.NewManager(web.Opts{
		Host:         cfg.Web.Host,
		Port:         cfg.Web.Port,
		PortAttempts: portAttempts,
		Log:          log,
		Debug:        cfg.Debug,
		Tailscale:    cfg.Web.Tailscale,
		History:      store,
		Metrics:      collector,
	})
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := manager.Shutdown(sctx); err != nil {
			log.Warn("web UI shutdown failed", "error", err)
		}
	}()

	srv := mcpserver.New(mcpserver.Deps{
		Manager:         manager,
		Log:             log,
		FeedbackTimeout: time.Duration(cfg.FeedbackTimeoutSeconds) * time.Second,
	})
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	log.Info("stopped")
	return nil
}

func closeDB(db *sql.DB, log *slog.Logger) {
	if err := db.Close(); err != nil {
		log.Warn("closing database failed", "error", err)
	}
}

func noArgs(c *cobra.Command, args []string) error {
	if len(args) > 0 {
		return &usageError{err: fmt.Errorf("%s takes no arguments, got %q", c.Name(), args)}
	}
	return nil
}
