// Package ffmpeg runs FFmpeg as a filter: PCM in on stdin, a container out
// on stdout.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"time"

	"github.com/oszuidwest/zwfm-voicenote/internal/util"
)

// ShutdownTimeout is how long a process gets between the graceful signal and a kill.
const ShutdownTimeout = 3 * time.Second

// Process is a running FFmpeg child. Read and Write may be used from
// different goroutines.
type Process struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr bytes.Buffer
}

// PCMInputArgs returns the input arguments for S16LE PCM on stdin.
func PCMInputArgs(sampleRate, channels int) []string {
	return []string{
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-i", "pipe:0",
	}
}

// Start launches path with args.
func Start(path string, args []string) (*Process, error) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Process{cancel: cancel}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Cancel = func() error { return util.GracefulSignal(cmd.Process) }
	cmd.WaitDelay = ShutdownTimeout
	cmd.Stderr = &p.stderr
	util.Detach(cmd)
	p.cmd = cmd

	var err error
	if p.stdin, err = cmd.StdinPipe(); err != nil {
		cancel()
		return nil, util.WrapError("open ffmpeg stdin", err)
	}
	if p.stdout, err = cmd.StdoutPipe(); err != nil {
		cancel()
		return nil, util.WrapError("open ffmpeg stdout", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, util.WrapError("start ffmpeg", err)
	}
	return p, nil
}

// Write feeds input.
func (p *Process) Write(b []byte) (int, error) {
	return p.stdin.Write(b)
}

// Read returns output. It reports io.EOF once FFmpeg closes stdout.
func (p *Process) Read(b []byte) (int, error) {
	return p.stdout.Read(b)
}

// CloseInput signals end of input; FFmpeg then finalizes and exits.
func (p *Process) CloseInput() error {
	return p.stdin.Close()
}

// Stop asks the process to exit without waiting for it.
func (p *Process) Stop() {
	p.cancel()
}

// Wait waits for the process to exit. A failed exit carries the last line
// FFmpeg logged.
func (p *Process) Wait() error {
	defer p.cancel()
	err := p.cmd.Wait()
	if err == nil {
		return nil
	}
	if msg := util.ExtractLastError(p.stderr.String()); msg != "" {
		return fmt.Errorf("%w: %s", err, msg)
	}
	return err
}
