//go:build linux

package audio

import (
	"regexp"
	"strconv"

	"github.com/oszuidwest/zwfm-voicenote/internal/media"
)

func getPlatformConfig(withFFmpeg bool) CaptureConfig {
	if withFFmpeg {
		return CaptureConfig{
			Command:       "ffmpeg",
			DefaultDevice: "default",
			UsesFFmpeg:    true,
			BuildArgs: func(req CaptureRequest) []string {
				return buildFFmpegCaptureArgs("alsa", req)
			},
		}
	}
	return CaptureConfig{
		Command:       "arecord",
		DefaultDevice: "default",
		BuildArgs:     buildArecordArgs,
	}
}

func buildArecordArgs(req CaptureRequest) []string {
	return []string{
		"-D", req.Device,
		"-f", "S16_LE",
		"-r", strconv.Itoa(SampleRate),
		"-c", strconv.Itoa(req.Channels),
		"-t", "raw",
		"-q",
		"-",
	}
}

// arecordCard matches "card 1: Headset [USB Headset], device 0: ...".
var arecordCard = regexp.MustCompile(`card\s+(\d+):\s+(\w+)\s+\[([^\]]+)\]`)

func platformLister() *deviceLister {
	return &deviceLister{
		argv:    []string{"arecord", "-l"},
		pattern: arecordCard,
		device: func(m []string) (media.Device, bool) {
			return media.Device{ID: "default:CARD=" + m[2], Name: m[3]}, true
		},
		fallback: []media.Device{{ID: "default", Name: "System default"}},
	}
}

// CaptureCommandName returns the native capture tool used without FFmpeg.
func CaptureCommandName() string {
	return "arecord"
}
