// Package recorder manages the lifecycle of a voice note recording session:
// acquiring an input stream, encoding it into timesliced chunks and
// assembling those chunks into artifacts on pause, stop and reset.
package recorder

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oszuidwest/zwfm-voicenote/internal/analysis"
	"github.com/oszuidwest/zwfm-voicenote/internal/blob"
	"github.com/oszuidwest/zwfm-voicenote/internal/media"
)

// ErrSessionActive is returned when options are changed during a session.
var ErrSessionActive = errors.New("recording session is active")

// Status is the lifecycle state of a Manager.
type Status string

const (
	// StatusStopped is the initial and terminal state.
	StatusStopped Status = "stopped"
	// StatusRecording means chunks are being captured.
	StatusRecording Status = "recording"
	// StatusPaused means the stream is held open but nothing is captured.
	StatusPaused Status = "paused"
)

// Termination tells who ended a session.
type Termination string

const (
	// TerminationHost marks transitions requested by the caller.
	TerminationHost Termination = ""
	// TerminationDevice marks a stop caused by the input ending.
	TerminationDevice Termination = "device"
)

// Defaults for Options.
const (
	DefaultAudioBitsPerSecond = 128000
	DefaultTimeslice          = 10 * time.Millisecond
)

// Options configure a recording session.
type Options struct {
	// MimeType is the requested container. Empty means auto-negotiate.
	MimeType           string            `json:"mime_type"`
	AudioBitsPerSecond int               `json:"audio_bits_per_second"`
	Constraints        media.Constraints `json:"constraints"`
	Timeslice          time.Duration     `json:"-"` // encoded as timeslice_ms
	FFTSize            int               `json:"fft_size"`
}

// DefaultOptions returns options with every default applied.
func DefaultOptions() Options {
	return Options{
		AudioBitsPerSecond: DefaultAudioBitsPerSecond,
		Constraints:        media.DefaultConstraints(),
		Timeslice:          DefaultTimeslice,
		FFTSize:            analysis.DefaultFFTSize,
	}
}

type plainOptions Options

// MarshalJSON encodes Timeslice as whole milliseconds under "timeslice_ms",
// matching the configuration file.
func (o Options) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		plainOptions
		TimesliceMs int64 `json:"timeslice_ms"`
	}{plainOptions(o), o.Timeslice.Milliseconds()})
}

// UnmarshalJSON reads the form written by MarshalJSON.
func (o *Options) UnmarshalJSON(b []byte) error {
	aux := struct {
		*plainOptions
		TimesliceMs int64 `json:"timeslice_ms"`
	}{plainOptions: (*plainOptions)(o)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	o.Timeslice = time.Duration(aux.TimesliceMs) * time.Millisecond
	return nil
}

// normalize fills zero values with defaults and validates the rest.
func (o Options) normalize() (Options, error) {
	if o.AudioBitsPerSecond == 0 {
		o.AudioBitsPerSecond = DefaultAudioBitsPerSecond
	}
	if o.Timeslice == 0 {
		o.Timeslice = DefaultTimeslice
	}
	if o.FFTSize == 0 {
		o.FFTSize = analysis.DefaultFFTSize
	}
	if o.Constraints.ChannelCount == 0 {
		o.Constraints.ChannelCount = media.DefaultChannelCount
	}

	switch {
	case o.AudioBitsPerSecond < 0:
		return o, fmt.Errorf("audio bits per second must be positive: %d", o.AudioBitsPerSecond)
	case o.Timeslice < 0:
		return o, fmt.Errorf("timeslice must be positive: %s", o.Timeslice)
	case !analysis.ValidFFTSize(o.FFTSize):
		return o, analysis.ErrInvalidFFTSize
	case o.Constraints.ChannelCount < 1 || o.Constraints.ChannelCount > 2:
		return o, fmt.Errorf("channel count must be 1 or 2: %d", o.Constraints.ChannelCount)
	}
	return o, nil
}

// Artifact is the immutable result of a pause, stop or reset. A reset
// artifact has a nil Blob and an empty URL.
//
// The URL stays resolvable until the receiver revokes it; the manager never
// revokes a URL it handed out.
type Artifact struct {
	Blob        *blob.Blob
	URL         string
	StartTime   time.Time
	StopTime    time.Time
	Options     Options
	Termination Termination
}

// Empty reports whether the artifact carries no payload.
func (a *Artifact) Empty() bool {
	return a.Blob == nil
}

// Callbacks receive session events. Every field is optional.
//
// Callbacks run synchronously, in transition order, on the goroutine that
// caused the transition. OnData runs on the capture goroutine. Callbacks must
// not call control operations of the same Manager synchronously.
type Callbacks struct {
	OnStart      func()
	OnChange     func(a *Artifact)
	OnStop       func(a *Artifact)
	OnPause      func(a *Artifact)
	OnData       func(chunk []byte)
	HandleStatus func(s Status)
}
