//go:build !windows

package cmdexec

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts the child in its own process group so a single
// SIGTERM/SIGKILL to the group also reaches anything it forked (Gradle
// daemons, npm's child processes), not just the direct child.
func setProcessGroup(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminateProcessGroup(c *exec.Cmd, sig syscall.Signal) {
	if c.Process == nil {
		return
	}
	_ = syscall.Kill(-c.Process.Pid, sig)
}
