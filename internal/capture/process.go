// Package capture provides live input streams backed by a capture
// subprocess or, when built with the portaudio tag, by PortAudio.
package capture

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-voicenote/internal/audio"
	"github.com/oszuidwest/zwfm-voicenote/internal/media"
	"github.com/oszuidwest/zwfm-voicenote/internal/util"
)

// ShutdownTimeout is the duration to wait for graceful shutdown of the capture process.
const ShutdownTimeout = 3000 * time.Millisecond

// ErrBackendUnavailable is returned when a capture backend is not compiled in.
var ErrBackendUnavailable = errors.New("capture backend not available in this build")

// errExitedEarly is the cause reported when capture ends before producing audio.
var errExitedEarly = errors.New("capture process exited before producing audio")

// ProcessStream is a media.Stream reading PCM from a capture subprocess.
type ProcessStream struct {
	cmd      *exec.Cmd
	cancel   context.CancelFunc
	reader   *bufio.Reader
	stderr   *bytes.Buffer
	format   media.Format
	settings media.Constraints
	device   string

	// Wait closes stdout, so it runs only after a read has hit EOF
	// (drained) or Close was called (closing).
	drained   chan struct{}
	drainOnce sync.Once
	closing   chan struct{}
	done      chan struct{}
	waitErr   error
	closeOnce sync.Once
}

// Open starts the capture command and returns once the first PCM bytes have
// arrived. Failures are reported as *media.AcquisitionError.
func Open(ctx context.Context, command audio.CaptureCommand) (*ProcessStream, error) {
	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, command.Name, command.Args...)

	// Declarative graceful shutdown: signal first, kill after WaitDelay.
	cmd.Cancel = func() error {
		return util.GracefulSignal(cmd.Process)
	}
	cmd.WaitDelay = ShutdownTimeout
	util.Detach(cmd)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, &media.AcquisitionError{Device: command.Device, Err: err}
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, &media.AcquisitionError{Device: command.Device, Err: err}
	}

	s := &ProcessStream{
		cmd:    cmd,
		cancel: cancel,
		reader: bufio.NewReaderSize(stdoutPipe, 64*1024),
		stderr: &stderr,
		format: media.Format{
			SampleRate: audio.SampleRate,
			Channels:   command.Applied.ChannelCount,
		},
		settings: command.Applied,
		device:   command.Device,
		drained:  make(chan struct{}),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}

	go func() {
		select {
		case <-s.drained:
		case <-s.closing:
		}
		s.waitErr = cmd.Wait()
		close(s.done)
	}()

	if err := s.awaitAudio(ctx); err != nil {
		return nil, err
	}

	slog.Info("audio capture started", "command", command.Name, "device", command.Device,
		"channels", s.format.Channels)
	return s, nil
}

// awaitAudio blocks until the first byte of audio is buffered.
func (s *ProcessStream) awaitAudio(ctx context.Context) error {
	ready := make(chan error, 1)
	go func() {
		_, err := s.reader.Peek(1)
		if err != nil {
			s.markDrained()
		}
		ready <- err
	}()

	select {
	case err := <-ready:
		if err == nil {
			return nil
		}
		<-s.done
		cause := errExitedEarly
		if msg := util.ExtractLastError(s.stderr.String()); msg != "" {
			cause = fmt.Errorf("%w: %s", errExitedEarly, msg)
		} else if s.waitErr != nil {
			cause = fmt.Errorf("%w: %w", errExitedEarly, s.waitErr)
		}
		s.cancel()
		return &media.AcquisitionError{Device: s.device, Err: cause}
	case <-ctx.Done():
		_ = s.Close() //nolint:errcheck // The acquisition error is what the caller needs
		return &media.AcquisitionError{Device: s.device, Err: context.Cause(ctx)}
	}
}

// Read reads raw PCM from the capture process.
func (s *ProcessStream) Read(p []byte) (int, error) {
	n, err := s.reader.Read(p)
	if err != nil {
		s.markDrained()
	}
	return n, err
}

func (s *ProcessStream) markDrained() {
	s.drainOnce.Do(func() { close(s.drained) })
}

// Format returns the PCM layout of the stream.
func (s *ProcessStream) Format() media.Format {
	return s.format
}

// Settings returns the processing actually applied by the capture process.
func (s *ProcessStream) Settings() media.Constraints {
	return s.settings
}

// Done is closed once the process has exited and its output has been read
// to the end, or after Close.
func (s *ProcessStream) Done() <-chan struct{} {
	return s.done
}

// Close stops the capture process and waits for it to exit.
func (s *ProcessStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		close(s.closing)
		<-s.done
		slog.Info("audio capture stopped", "device", s.device)
	})
	return nil
}

// Err returns the process exit error after Done is closed.
func (s *ProcessStream) Err() error {
	select {
	case <-s.done:
		if s.waitErr != nil {
			if msg := util.ExtractLastError(s.stderr.String()); msg != "" {
				return errors.New(msg)
			}
		}
		return s.waitErr
	default:
		return nil
	}
}
