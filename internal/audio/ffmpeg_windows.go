//go:build windows

package audio

import "strconv"

// buildFFmpegCaptureArgs constructs FFmpeg arguments for audio capture on Windows.
// Note: -nostdin is NOT used on Windows to allow graceful shutdown via 'q' command.
func buildFFmpegCaptureArgs(inputFormat string, req CaptureRequest) []string {
	args := []string{
		"-f", inputFormat,
		"-i", req.Device,
		"-hide_banner",
		"-loglevel", "warning",
		"-vn",
	}
	if chain := filterChain(req); chain != "" {
		args = append(args, "-af", chain)
	}
	return append(args,
		"-f", "s16le",
		"-ac", strconv.Itoa(req.Channels),
		"-ar", strconv.Itoa(SampleRate),
		"pipe:1",
	)
}
