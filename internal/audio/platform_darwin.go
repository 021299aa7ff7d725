//go:build darwin

package audio

import (
	"regexp"
	"strings"

	"github.com/oszuidwest/zwfm-voicenote/internal/media"
)

func getPlatformConfig(bool) CaptureConfig {
	return CaptureConfig{
		Command:       "ffmpeg",
		DefaultDevice: ":0",
		UsesFFmpeg:    true,
		BuildArgs: func(req CaptureRequest) []string {
			return buildFFmpegCaptureArgs("avfoundation", req)
		},
	}
}

func platformLister() *deviceLister {
	return &deviceLister{
		argv:    []string{"ffmpeg", "-hide_banner", "-f", "avfoundation", "-list_devices", "true", "-i", ""},
		begin:   "AVFoundation audio devices:",
		end:     "AVFoundation video devices:",
		pattern: regexp.MustCompile(`\[AVFoundation[^\]]*\]\s*\[(\d+)\]\s*(.+)`),
		device: func(m []string) (media.Device, bool) {
			return media.Device{ID: ":" + m[1], Name: strings.TrimSpace(m[2])}, true
		},
	}
}

// CaptureCommandName returns the native capture tool used without FFmpeg.
func CaptureCommandName() string {
	return "ffmpeg"
}
