package util

import (
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// maxErrorLineLength is the maximum length for extracted error messages.
const maxErrorLineLength = 200

// ffmpegLogPrefix matches the "[alsa @ 0x55d0c8]" context ffmpeg prepends to log lines.
var ffmpegLogPrefix = regexp.MustCompile(`^\[[^\]]+ @ 0x[0-9a-f]+\]\s*`)

// WrapError wraps an error with a descriptive operation context.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: %w", operation, err)
}

// ExtractLastError returns the last non-empty line of a subprocess's stderr,
// without ffmpeg's component prefix and truncated for display.
func ExtractLastError(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(ffmpegLogPrefix.ReplaceAllString(strings.TrimSpace(lines[i]), ""))
		if line == "" {
			continue
		}
		if len(line) > maxErrorLineLength {
			return line[:maxErrorLineLength] + "..."
		}
		return line
	}
	return ""
}

// LookupBinary returns the executable to run for name. A configured path
// must itself be executable; otherwise name is searched in PATH.
// Returns "" when nothing usable is found.
func LookupBinary(configured, name string) string {
	if configured != "" {
		name = configured
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return ""
	}
	if configured != "" {
		return configured
	}
	return path
}

// ResolveFFmpegPath returns the FFmpeg binary, honouring a configured path.
func ResolveFFmpegPath(customPath string) string {
	return LookupBinary(customPath, "ffmpeg")
}
