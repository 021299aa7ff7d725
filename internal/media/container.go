package media

import "strings"

// Container describes an encoded audio container the platform can produce.
type Container struct {
	MimeType  string
	Extension string
	Muxer     string // FFmpeg muxer name
	Codec     string // FFmpeg audio codec
}

// Supported mime types.
const (
	MimeMP4  = "audio/mp4"
	MimeWebM = "audio/webm"
	MimeOgg  = "audio/ogg"
	MimeMPEG = "audio/mpeg"
	MimeWAV  = "audio/wav"
)

var containers = []Container{
	{MimeType: MimeMP4, Extension: "mp4", Muxer: "mp4", Codec: "aac"},
	{MimeType: MimeWebM, Extension: "webm", Muxer: "webm", Codec: "libopus"},
	{MimeType: MimeOgg, Extension: "ogg", Muxer: "ogg", Codec: "libopus"},
	{MimeType: MimeMPEG, Extension: "mp3", Muxer: "mp3", Codec: "libmp3lame"},
	{MimeType: MimeWAV, Extension: "wav", Muxer: "wav", Codec: "pcm_s16le"},
}

// PreferenceOrder is the order containers are tried in when none is requested.
var PreferenceOrder = []string{MimeMP4, MimeWebM, MimeOgg, MimeWAV}

// BaseType strips parameters such as ";codecs=opus" and lowercases the type.
func BaseType(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

// LookupContainer returns the container for mimeType, ignoring parameters.
func LookupContainer(mimeType string) (Container, bool) {
	base := BaseType(mimeType)
	if base == "audio/x-wav" || base == "audio/wave" {
		base = MimeWAV
	}
	for _, c := range containers {
		if c.MimeType == base {
			return c, true
		}
	}
	return Container{}, false
}

// Extension returns the canonical file extension for mimeType, or "" if unknown.
func Extension(mimeType string) string {
	c, ok := LookupContainer(mimeType)
	if !ok {
		return ""
	}
	return c.Extension
}

// MimeTypes returns every known container mime type.
func MimeTypes() []string {
	out := make([]string, len(containers))
	for i, c := range containers {
		out[i] = c.MimeType
	}
	return out
}
