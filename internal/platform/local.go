// Package platform implements media.Platform on top of the local capture
// tools, FFmpeg and, optionally, PortAudio.
package platform

import (
	"context"
	"log/slog"
	"sync"

	"github.com/oszuidwest/zwfm-voicenote/internal/audio"
	"github.com/oszuidwest/zwfm-voicenote/internal/capture"
	"github.com/oszuidwest/zwfm-voicenote/internal/encoder"
	"github.com/oszuidwest/zwfm-voicenote/internal/media"
	"github.com/oszuidwest/zwfm-voicenote/internal/util"
)

// Capture backends.
const (
	BackendProcess   = "process"
	BackendPortAudio = "portaudio"
)

// Local is the media.Platform of the host machine.
type Local struct {
	ffmpegPath string
	backend    string

	mu     sync.RWMutex
	device string

	detectOnce sync.Once
	available bool
}

// NewLocal returns a platform capturing from device with the given backend.
// An empty ffmpegPath restricts encoding to WAV and capture to the native tool.
func NewLocal(ffmpegPath, device, backend string) *Local {
	if backend == "" {
		backend = BackendProcess
	}
	return &Local{ffmpegPath: ffmpegPath, device: device, backend: backend}
}

// Available reports whether a capture facility exists. Detection runs once.
func (p *Local) Available() bool {
	p.detectOnce.Do(func() {
		switch {
		case p.backend == BackendPortAudio:
			p.available = capture.PortAudioAvailable()
		case p.ffmpegPath != "":
			p.available = true
		default:
			p.available = util.LookupBinary("", audio.CaptureCommandName()) != ""
		}
		slog.Info("capture detected", "backend", p.backend, "available", p.available, "ffmpeg", p.ffmpegPath != "")
	})
	return p.available
}

// IsTypeSupported reports whether the platform can encode mimeType.
func (p *Local) IsTypeSupported(mimeType string) bool {
	return encoder.Supported(p.ffmpegPath, mimeType)
}

// Device returns the configured input device, "" for auto-detect.
func (p *Local) Device() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.device
}

// SetDevice selects the input device used by the next Acquire.
func (p *Local) SetDevice(id string) {
	p.mu.Lock()
	p.device = id
	p.mu.Unlock()
}

// Acquire opens the configured input device.
func (p *Local) Acquire(ctx context.Context, c media.Constraints) (media.Stream, error) {
	if !p.Available() {
		return nil, media.ErrUnsupportedEnvironment
	}
	device := p.Device()

	if p.backend == BackendPortAudio {
		return capture.OpenPortAudio(ctx, c)
	}

	cmd, err := audio.BuildCaptureCommand(audio.CaptureRequest{
		Device:           device,
		Channels:         c.ChannelCount,
		AutoGainControl:  c.AutoGainControl,
		NoiseSuppression: c.NoiseSuppression,
	}, p.ffmpegPath)
	if err != nil {
		return nil, &media.AcquisitionError{Device: device, Err: err}
	}
	if c.EchoCancellation {
		slog.Debug("echo cancellation requested but not available", "device", cmd.Device)
	}
	return capture.Open(ctx, cmd)
}

// NewEncoder builds an encoder for cfg.
func (p *Local) NewEncoder(cfg media.EncoderConfig) (media.Encoder, error) {
	return encoder.New(p.ffmpegPath, cfg)
}

// Devices lists input devices.
func (p *Local) Devices() []media.Device {
	return audio.Devices()
}
