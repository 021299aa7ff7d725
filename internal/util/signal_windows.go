//go:build windows

package util

import (
	"os"
	"os/exec"
)

// ShutdownSignals returns the signals to listen for graceful shutdown.
func ShutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// GracefulSignal is a no-op on Windows. Child processes are stopped by
// closing their stdin or, after WaitDelay, by a kill.
func GracefulSignal(_ *os.Process) error {
	return nil
}

// Detach is a no-op on Windows; console control events are not forwarded
// to children started without a console.
func Detach(_ *exec.Cmd) {}
