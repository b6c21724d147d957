//go:build unix

package procutil

import (
	"errors"
	"fmt"
	"os/exec"

	"golang.org/x/sys/unix"
)

// KillTree sends SIGKILL to the process group led by cmd. The command must
// have been started with StartWithCleanup.
func KillTree(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	if err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("kill process group %d: %w", cmd.Process.Pid, err)
	}
	return nil
}
