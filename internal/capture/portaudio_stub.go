//go:build !portaudio

package capture

import (
	"context"

	"github.com/oszuidwest/zwfm-voicenote/internal/media"
)

// PortAudioAvailable reports whether the PortAudio backend is compiled in.
func PortAudioAvailable() bool {
	return false
}

// OpenPortAudio always fails in builds without the portaudio tag.
func OpenPortAudio(context.Context, media.Constraints) (media.Stream, error) {
	return nil, ErrBackendUnavailable
}
