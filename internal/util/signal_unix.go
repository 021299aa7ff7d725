//go:build !windows

package util

import (
	"os"
	"os/exec"
	"syscall"
)

// ShutdownSignals returns the signals to listen for graceful shutdown.
func ShutdownSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}

// GracefulSignal asks a child to finish its output and exit.
func GracefulSignal(p *os.Process) error {
	return p.Signal(syscall.SIGINT)
}

// Detach moves a child into its own process group, so a Ctrl+C in the
// terminal reaches only us and the child is stopped through GracefulSignal.
func Detach(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}
