//go:build linux

package procutil

import (
	"os/exec"
	"syscall"
)

// StartWithCleanup places the child in its own process group so KillTree can
// reach grandchildren, arranges for it to be killed when this process dies
// (via Pdeathsig on Linux), then starts it.
func StartWithCleanup(cmd *exec.Cmd) error {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
	cmd.SysProcAttr.Pdeathsig = syscall.SIGKILL
	return cmd.Start()
}
