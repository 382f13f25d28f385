//go:build !unix

package builtin

import "os/exec"

func isolateProcess(*exec.Cmd) {}

// killProcess kills the shell only; children it started may outlive it.
func killProcess(cmd *exec.Cmd) {
	_ = cmd.Process.Kill()
}
