//go:build windows

package audio

import (
	"regexp"
	"strings"

	"github.com/oszuidwest/zwfm-voicenote/internal/media"
)

func getPlatformConfig(bool) CaptureConfig {
	return CaptureConfig{
		Command:       "ffmpeg",
		DefaultDevice: "", // Auto-detect, no safe default on Windows
		UsesFFmpeg:    true,
		BuildArgs: func(req CaptureRequest) []string {
			return buildFFmpegCaptureArgs("dshow", req)
		},
	}
}

func platformLister() *deviceLister {
	return &deviceLister{
		argv: []string{"ffmpeg", "-hide_banner", "-f", "dshow", "-list_devices", "true", "-i", "dummy"},
		// Newer builds print one section per device with an "(audio)" suffix.
		pattern: regexp.MustCompile(`\[dshow[^\]]*\]\s*"([^"]+)"\s*\(audio\)`),
		device: func(m []string) (media.Device, bool) {
			name := strings.TrimSpace(m[1])
			return media.Device{ID: "audio=" + name, Name: name}, name != ""
		},
	}
}

// CaptureCommandName returns the native capture tool used without FFmpeg.
func CaptureCommandName() string {
	return "ffmpeg"
}
