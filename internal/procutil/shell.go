// Package procutil starts user commands for the web UI and tears down their
// whole process tree.
package procutil

import (
	"context"
	"os/exec"
	"runtime"
)

// ShellCommand builds a command that runs line through the platform shell.
func ShellCommand(ctx context.Context, line string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", line)
	}
	return exec.CommandContext(ctx, "sh", "-c", line)
}
