//go:build windows

package cmdexec

import (
	"os/exec"
	"syscall"
)

func setProcessGroup(c *exec.Cmd) {}

func terminateProcessGroup(c *exec.Cmd, sig syscall.Signal) {
	if c.Process == nil {
		return
	}
	_ = c.Process.Kill()
}
