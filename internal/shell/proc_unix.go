//go:build !windows

package shell

import (
	"os/exec"
	"syscall"
)

func configureCommandProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminateCommandProcess(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	if pid <= 0 {
		return
	}
	// Setpgid makes the shell its own group leader, so -pid reaches every
	// child the agent CLI spawned.
	if err := syscall.Kill(-pid, syscall.SIGKILL); err == nil {
		return
	}
	_ = cmd.Process.Kill()
}
