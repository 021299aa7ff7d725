// Package encoder provides the platform encoders that turn captured PCM into
// a streamable container: FFmpeg for compressed formats and a native
// streaming WAV writer that needs no external tools.
package encoder

import (
	"errors"
	"fmt"

	"github.com/oszuidwest/zwfm-voicenote/internal/media"
)

// Sentinel errors for encoder operations.
var (
	ErrUnsupportedType = errors.New("unsupported container type")
	ErrClosed          = errors.New("encoder closed")
)

// Supported reports whether an encoder for mimeType can be built.
// WAV is always available; everything else requires FFmpeg.
func Supported(ffmpegPath, mimeType string) bool {
	c, ok := media.LookupContainer(mimeType)
	if !ok {
		return false
	}
	return c.MimeType == media.MimeWAV || ffmpegPath != ""
}

// New builds the encoder for cfg.MimeType.
func New(ffmpegPath string, cfg media.EncoderConfig) (media.Encoder, error) {
	c, ok := media.LookupContainer(cfg.MimeType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, cfg.MimeType)
	}
	if c.MimeType == media.MimeWAV {
		return NewWAV(cfg.Format)
	}
	if ffmpegPath == "" {
		return nil, fmt.Errorf("%w: %s requires FFmpeg", ErrUnsupportedType, c.MimeType)
	}
	return NewFFmpeg(ffmpegPath, cfg)
}
