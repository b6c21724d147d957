//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package procutil

import (
	"os/exec"
	"syscall"
)

// StartWithCleanup starts the command in its own process group. There is no
// kernel-level mechanism like Linux's Pdeathsig here, so an ungraceful exit
// of the server leaves the command running.
func StartWithCleanup(cmd *exec.Cmd) error {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
	return cmd.Start()
}
