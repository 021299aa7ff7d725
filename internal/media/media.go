// Package media defines the capture and encoding abstractions a recording
// session is built on: input streams, encoders, containers and the platform
// that hands them out.
package media

import (
	"context"
	"io"
)

// Format describes interleaved signed 16-bit little-endian PCM.
type Format struct {
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
}

// BytesPerFrame returns the size of one interleaved sample frame.
func (f Format) BytesPerFrame() int {
	return f.Channels * 2
}

// Device represents an available audio input device.
type Device struct {
	// ID is the device identifier.
	ID string `json:"id"`
	// Name is the device display name.
	Name string `json:"name"`
}

// Stream is a live audio input. Reads return raw PCM in the stream's Format.
type Stream interface {
	io.Reader

	// Format returns the PCM layout produced by Read.
	Format() Format

	// Settings reports the processing constraints actually applied, which can
	// differ from the requested ones.
	Settings() Constraints

	// Done is closed when the underlying track ends for any reason.
	Done() <-chan struct{}

	// Close releases every track of the stream. It is safe to call more than once.
	Close() error
}

// EncoderConfig holds the parameters used to construct an Encoder.
type EncoderConfig struct {
	MimeType      string
	BitsPerSecond int
	Format        Format
}

// Encoder turns PCM into an encoded container bitstream.
type Encoder interface {
	// MimeType returns the mime type of the produced container.
	MimeType() string

	// Write feeds PCM into the encoder. Paused encoders discard it.
	Write(pcm []byte) error

	// Flush returns the encoded bytes produced since the previous call.
	Flush() ([]byte, error)

	Pause()
	Resume()

	// Close finalizes the bitstream and returns any trailing bytes.
	// It is safe to call more than once.
	Close() ([]byte, error)
}

// Platform exposes capture and encoding facilities.
type Platform interface {
	// Available reports whether any capture facility exists at all.
	Available() bool

	// IsTypeSupported reports whether NewEncoder can produce mimeType.
	IsTypeSupported(mimeType string) bool

	// Acquire opens an input stream. It returns once audio is flowing.
	Acquire(ctx context.Context, c Constraints) (Stream, error)

	// NewEncoder builds an encoder for cfg.
	NewEncoder(cfg EncoderConfig) (Encoder, error)

	// Devices lists the input devices the platform can open.
	Devices() []Device
}
