// Package envinfo inspects the runtime environment to decide whether a local
// browser can be opened for the feedback page.
package envinfo

import (
	"os"
	"runtime"
	"strings"
)

var sshIndicators = []string{"SSH_CONNECTION", "SSH_CLIENT", "SSH_TTY"}

// IsRemote reports whether the process appears to run in an SSH session, a
// headless Linux box, or a VS Code remote host. MCP_WEB_REMOTE forces the answer.
func IsRemote(getenv func(string) string, goos string) bool {
	switch strings.ToLower(getenv("MCP_WEB_REMOTE")) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}

	for _, k := range sshIndicators {
		if getenv(k) != "" {
			return true
		}
	}

	if goos == "linux" && getenv("DISPLAY") == "" && getenv("WAYLAND_DISPLAY") == "" {
		return true
	}

	if getenv("TERM_PROGRAM") == "vscode" && getenv("VSCODE_INJECTION") == "1" {
		return true
	}
	return false
}

// Info is a snapshot of the runtime environment.
type Info struct {
	Platform       string `json:"platform"`
	Arch           string `json:"arch"`
	GoVersion      string `json:"go_version"`
	IsRemote       bool   `json:"is_remote"`
	CanOpenBrowser bool   `json:"can_open_browser"`
}

// Detect inspects the current process environment.
func Detect() Info {
	remote := IsRemote(os.Getenv, runtime.GOOS)
	return Info{
		Platform:       runtime.GOOS,
		Arch:           runtime.GOARCH,
		GoVersion:      runtime.Version(),
		IsRemote:       remote,
		CanOpenBrowser: !remote,
	}
}
