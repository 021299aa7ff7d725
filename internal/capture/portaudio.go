//go:build portaudio

package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/oszuidwest/zwfm-voicenote/internal/audio"
	"github.com/oszuidwest/zwfm-voicenote/internal/media"
)

// framesPerBuffer is 10ms at the capture sample rate.
const framesPerBuffer = audio.SampleRate / 100

// PortAudioAvailable reports whether the PortAudio backend is compiled in.
func PortAudioAvailable() bool {
	return true
}

// PortAudioStream is a media.Stream reading from the default PortAudio input.
type PortAudioStream struct {
	stream *portaudio.Stream
	in     []int16
	format media.Format

	pr *io.PipeReader
	pw *io.PipeWriter

	done      chan struct{}
	stop      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// OpenPortAudio opens the default input device through PortAudio.
// PortAudio applies no processing, so only the channel count is honoured.
func OpenPortAudio(ctx context.Context, c media.Constraints) (media.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, &media.AcquisitionError{Device: "portaudio", Err: err}
	}

	channels := c.ChannelCount
	if channels <= 0 || channels > audio.Channels {
		channels = audio.Channels
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, &media.AcquisitionError{Device: "portaudio", Err: err}
	}

	in := make([]int16, framesPerBuffer*channels)
	stream, err := portaudio.OpenDefaultStream(channels, 0, float64(audio.SampleRate), framesPerBuffer, in)
	if err != nil {
		_ = portaudio.Terminate() //nolint:errcheck // Already failing
		return nil, &media.AcquisitionError{Device: "portaudio", Err: err}
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()        //nolint:errcheck // Already failing
		_ = portaudio.Terminate() //nolint:errcheck // Already failing
		return nil, &media.AcquisitionError{Device: "portaudio", Err: err}
	}

	pr, pw := io.Pipe()
	s := &PortAudioStream{
		stream: stream,
		in:     in,
		format: media.Format{SampleRate: audio.SampleRate, Channels: channels},
		pr:     pr,
		pw:     pw,
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
	}
	go s.run()

	slog.Info("audio capture started", "backend", "portaudio", "channels", channels)
	return s, nil
}

// run moves PortAudio buffers into the pipe until stopped or failed.
func (s *PortAudioStream) run() {
	defer close(s.done)
	buf := make([]byte, len(s.in)*2)
	for {
		select {
		case <-s.stop:
			_ = s.pw.CloseWithError(io.EOF) //nolint:errcheck // Pipe close never fails
			return
		default:
		}

		if err := s.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
			_ = s.pw.CloseWithError(fmt.Errorf("portaudio read: %w", err)) //nolint:errcheck // Pipe close never fails
			return
		}
		for i, v := range s.in {
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
		}
		if _, err := s.pw.Write(buf); err != nil {
			return
		}
	}
}

func (s *PortAudioStream) Read(p []byte) (int, error) {
	return s.pr.Read(p)
}

func (s *PortAudioStream) Format() media.Format {
	return s.format
}

func (s *PortAudioStream) Settings() media.Constraints {
	return media.Constraints{ChannelCount: s.format.Channels}
}

func (s *PortAudioStream) Done() <-chan struct{} {
	return s.done
}

// Close stops the PortAudio stream and releases the library.
func (s *PortAudioStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		_ = s.pr.Close() //nolint:errcheck // Unblocks the writer
		<-s.done
		s.closeErr = errors.Join(s.stream.Stop(), s.stream.Close(), portaudio.Terminate())
		slog.Info("audio capture stopped", "backend", "portaudio")
	})
	return s.closeErr
}
