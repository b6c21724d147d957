package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// DefaultHost is the address the web UI binds to.
	DefaultHost = "127.0.0.1"
	// DefaultPort is the fixed web UI port.
	DefaultPort = 8765
	// DefaultFeedbackTimeoutSeconds bounds how long interactive_feedback waits.
	DefaultFeedbackTimeoutSeconds = 600

	defaultConfigFile = "mcp-feedback.json"
)

// TailscaleConfig contains settings for exposing the web UI as a Tailscale / tsnet node.
type TailscaleConfig struct {
	// Enabled toggles whether the web UI should listen on the tailnet instead of a plain TCP socket.
	Enabled bool `json:"enabled"`

	// Hostname is the device name that will appear in your tailnet.
	Hostname string `json:"hostname"`

	// AuthKey is an optional Tailscale auth key used for unattended login.
	// If empty, tsnet falls back to TS_AUTHKEY / TS_AUTH_KEY env vars,
	// then prompts for interactive login on first start.
	AuthKey string `json:"authKey"`

	// Ephemeral controls whether this node is ephemeral in the tailnet.
	Ephemeral bool `json:"ephemeral"`

	// ControlURL optionally overrides the Tailscale control server URL (advanced / testing only).
	ControlURL string `json:"controlURL"`

	// Dir overrides the directory where tsnet stores its persistent state.
	Dir string `json:"dir"`

	// HTTPS enables automatic TLS via Tailscale-managed Let's Encrypt certificates.
	HTTPS bool `json:"https"`
}

// WebConfig holds the web UI listener settings.
type WebConfig struct {
	Host      string          `json:"host"`
	Port      int             `json:"port"`
	Tailscale TailscaleConfig `json:"tailscale"`
}

// HistoryConfig controls the persisted feedback history.
type HistoryConfig struct {
	Enabled      bool   `json:"enabled"`
	DatabasePath string `json:"databasePath"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `json:"enabled"`
}

// Config is the top-level configuration for mcp-feedback-enhanced.
type Config struct {
	// Debug switches logging to debug level and makes the web manager verbose.
	Debug                  bool          `json:"debug"`
	FeedbackTimeoutSeconds int           `json:"feedbackTimeoutSeconds"`
	Web                    WebConfig     `json:"web"`
	History                HistoryConfig `json:"history"`
	Metrics                MetricsConfig `json:"metrics"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		FeedbackTimeoutSeconds: DefaultFeedbackTimeoutSeconds,
		Web: WebConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		History: HistoryConfig{
			Enabled:      true,
			DatabasePath: defaultDatabasePath(),
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Parse reads a JSON config file and returns the parsed Config.
// The file path is taken from MCP_FEEDBACK_CONFIG, defaulting to "mcp-feedback.json".
// A missing default file yields the defaults; a missing explicit file is an error.
// MCP_DEBUG, MCP_WEB_HOST and MCP_WEB_PORT override the file.
func Parse() (*Config, error) {
	return parse(os.Getenv)
}

func parse(getenv func(string) string) (*Config, error) {
	path := getenv("MCP_FEEDBACK_CONFIG")
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := applyEnv(cfg, getenv); err != nil {
		return nil, err
	}
	if cfg.FeedbackTimeoutSeconds <= 0 {
		cfg.FeedbackTimeoutSeconds = DefaultFeedbackTimeoutSeconds
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("MCP_DEBUG"); v != "" {
		cfg.Debug = isTruthy(v)
	}
	if v := getenv("MCP_WEB_HOST"); v != "" {
		cfg.Web.Host = v
	}
	if v := getenv("MCP_WEB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 0 || port > 65535 {
			return fmt.Errorf("invalid MCP_WEB_PORT %q", v)
		}
		cfg.Web.Port = port
	}
	return nil
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func defaultDatabasePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "mcp-feedback-enhanced", "history.db")
}
