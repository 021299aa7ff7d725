package encoder

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-voicenote/internal/ffmpeg"
	"github.com/oszuidwest/zwfm-voicenote/internal/media"
)

// finalizeTimeout bounds how long Close waits for FFmpeg to finish the container.
const finalizeTimeout = 10 * time.Second

// FFmpeg encodes PCM by piping it through an FFmpeg process that writes a
// streamable container to stdout.
type FFmpeg struct {
	mu       sync.Mutex
	proc     *ffmpeg.Process
	out      bytes.Buffer
	mimeType string
	paused   bool
	closed   bool
	readDone chan struct{}
}

// NewFFmpeg starts an FFmpeg encoder for cfg.
func NewFFmpeg(ffmpegPath string, cfg media.EncoderConfig) (*FFmpeg, error) {
	c, ok := media.LookupContainer(cfg.MimeType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, cfg.MimeType)
	}

	proc, err := ffmpeg.Start(ffmpegPath, buildArgs(c, cfg))
	if err != nil {
		return nil, err
	}

	e := &FFmpeg{
		proc:     proc,
		mimeType: c.MimeType,
		readDone: make(chan struct{}),
	}
	go e.readOutput()

	slog.Info("encoder started", "mime_type", c.MimeType, "codec", c.Codec, "bitrate", cfg.BitsPerSecond)
	return e, nil
}

// buildArgs returns the FFmpeg arguments for encoding PCM on stdin into c on stdout.
func buildArgs(c media.Container, cfg media.EncoderConfig) []string {
	args := ffmpeg.PCMInputArgs(cfg.Format.SampleRate, cfg.Format.Channels)
	args = append(args, "-c:a", c.Codec)
	if c.MimeType != media.MimeWAV && cfg.BitsPerSecond > 0 {
		args = append(args, "-b:a", strconv.Itoa(cfg.BitsPerSecond))
	}
	if c.Muxer == "mp4" {
		// Fragmented MP4 can be written to a pipe.
		args = append(args, "-movflags", "frag_keyframe+empty_moov+default_base_moof")
	}
	return append(args,
		"-flush_packets", "1",
		"-f", c.Muxer,
		"-hide_banner",
		"-loglevel", "warning",
		"pipe:1",
	)
}

// readOutput accumulates encoded bytes until FFmpeg closes stdout.
func (e *FFmpeg) readOutput() {
	defer close(e.readDone)
	buf := make([]byte, 32*1024)
	for {
		n, err := e.proc.Read(buf)
		if n > 0 {
			e.mu.Lock()
			e.out.Write(buf[:n])
			e.mu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("encoder output closed", "error", err)
			}
			return
		}
	}
}

// MimeType returns the container mime type.
func (e *FFmpeg) MimeType() string {
	return e.mimeType
}

// Write feeds PCM to FFmpeg's stdin.
func (e *FFmpeg) Write(pcm []byte) error {
	e.mu.Lock()
	closed, paused := e.closed, e.paused
	e.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if paused {
		return nil
	}
	if _, err := e.proc.Write(pcm); err != nil {
		return fmt.Errorf("write to encoder: %w", err)
	}
	return nil
}

// Flush returns the container bytes FFmpeg produced since the previous call.
func (e *FFmpeg) Flush() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drainLocked(), nil
}

func (e *FFmpeg) drainLocked() []byte {
	if e.out.Len() == 0 {
		return nil
	}
	out := bytes.Clone(e.out.Bytes())
	e.out.Reset()
	return out
}

func (e *FFmpeg) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

func (e *FFmpeg) Resume() {
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()
}

// Close ends the input, waits for FFmpeg to finalize the container and
// returns the remaining bytes.
func (e *FFmpeg) Close() ([]byte, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, nil
	}
	e.closed = true
	e.mu.Unlock()

	if err := e.proc.CloseInput(); err != nil {
		slog.Warn("failed to close encoder stdin", "error", err)
	}

	select {
	case <-e.readDone:
	case <-time.After(finalizeTimeout):
		slog.Warn("encoder did not finish in time, forcing stop")
		e.proc.Stop()
		<-e.readDone
	}

	var errs []error
	if err := e.proc.Wait(); err != nil {
		errs = append(errs, fmt.Errorf("encoder exited: %w", err))
	}

	e.mu.Lock()
	tail := e.drainLocked()
	e.mu.Unlock()

	return tail, errors.Join(errs...)
}
