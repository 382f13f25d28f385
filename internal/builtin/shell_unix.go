//go:build unix

package builtin

import (
	"os/exec"
	"syscall"
)

// isolateProcess puts the command in its own process group so that
// killProcess reaches every process it started.
func isolateProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcess(cmd *exec.Cmd) {
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
