package audio

import (
	"context"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/oszuidwest/zwfm-voicenote/internal/media"
)

// listTimeout bounds a device listing; some drivers hang while probing.
const listTimeout = 5 * time.Second

// Devices returns the input devices of the current platform.
func Devices() []media.Device {
	ctx, cancel := context.WithTimeout(context.Background(), listTimeout)
	defer cancel()
	return platformLister().list(ctx)
}

// deviceLister scrapes devices from the text a listing tool prints. Lines
// outside [begin, end) are ignored; an empty begin starts the section at
// the top and an empty end runs it to the bottom.
type deviceLister struct {
	argv       []string
	begin, end string
	pattern    *regexp.Regexp
	device     func(m []string) (media.Device, bool)
	fallback   []media.Device
}

func (dl *deviceLister) list(ctx context.Context) []media.Device {
	if len(dl.argv) == 0 {
		return dl.fallback
	}
	// Listing tools exit non-zero after printing (ffmpeg -i ""), so only
	// an empty output counts as failure.
	out, err := exec.CommandContext(ctx, dl.argv[0], dl.argv[1:]...).CombinedOutput()
	if err != nil && len(out) == 0 {
		slog.Warn("failed to list audio devices", "command", dl.argv[0], "error", err)
		return dl.fallback
	}
	return dl.parse(string(out))
}

func (dl *deviceLister) parse(out string) []media.Device {
	var devices []media.Device
	inside := dl.begin == ""
	for line := range strings.SplitSeq(out, "\n") {
		switch {
		case dl.begin != "" && strings.Contains(line, dl.begin):
			inside = true
			continue
		case dl.end != "" && strings.Contains(line, dl.end):
			inside = false
			continue
		case !inside, strings.Contains(line, "Alternative name"):
			continue
		}
		m := dl.pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if d, ok := dl.device(m); ok {
			devices = append(devices, d)
		}
	}
	if len(devices) == 0 {
		return dl.fallback
	}
	return devices
}
