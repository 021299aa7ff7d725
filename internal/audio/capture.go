package audio

import (
	"errors"
	"strings"

	"github.com/oszuidwest/zwfm-voicenote/internal/media"
)

// ErrNoAudioDevice is returned when no audio input device is available.
var ErrNoAudioDevice = errors.New("no audio input device found")

// Capture format produced by every backend.
const (
	SampleRate = 48000
	Channels   = 2
)

// CaptureRequest describes the capture process to launch.
type CaptureRequest struct {
	Device           string
	Channels         int
	AutoGainControl  bool
	NoiseSuppression bool
}

// CaptureConfig defines platform-specific audio capture configuration.
type CaptureConfig struct {
	// Command is the native capture executable (e.g., "arecord", "ffmpeg").
	Command string

	// DefaultDevice is used when no device is configured.
	DefaultDevice string

	// UsesFFmpeg indicates if Command is FFmpeg.
	UsesFFmpeg bool

	// BuildArgs returns the command arguments for audio capture.
	BuildArgs func(req CaptureRequest) []string
}

// CaptureCommand is a resolved capture invocation.
type CaptureCommand struct {
	Name    string
	Args    []string
	Device  string
	Applied media.Constraints
}

// BuildCaptureCommand resolves the command for req. If req.Device is empty
// the platform default or the first detected device is used. When
// ffmpegPath is set, FFmpeg handles capture and applies the processing
// filters; otherwise the native tool captures unprocessed audio.
func BuildCaptureCommand(req CaptureRequest, ffmpegPath string) (CaptureCommand, error) {
	cfg := getPlatformConfig(ffmpegPath != "")

	if req.Channels <= 0 || req.Channels > Channels {
		req.Channels = Channels
	}
	if req.Device == "" {
		req.Device = cfg.DefaultDevice
	}

	// Auto-detect if still empty (Windows has no safe default).
	if req.Device == "" {
		devices := Devices()
		if len(devices) == 0 {
			return CaptureCommand{}, ErrNoAudioDevice
		}
		req.Device = devices[0].ID
	}

	command := cfg.Command
	applied := media.Constraints{ChannelCount: req.Channels}
	if cfg.UsesFFmpeg {
		if ffmpegPath != "" {
			command = ffmpegPath
		}
		applied.AutoGainControl = req.AutoGainControl
		applied.NoiseSuppression = req.NoiseSuppression
	} else {
		req.AutoGainControl = false
		req.NoiseSuppression = false
	}

	return CaptureCommand{
		Name:    command,
		Args:    cfg.BuildArgs(req),
		Device:  req.Device,
		Applied: applied,
	}, nil
}

// filterChain returns the FFmpeg -af value for the requested processing.
func filterChain(req CaptureRequest) string {
	var filters []string
	if req.NoiseSuppression {
		filters = append(filters, "afftdn")
	}
	if req.AutoGainControl {
		filters = append(filters, "dynaudnorm")
	}
	return strings.Join(filters, ",")
}
