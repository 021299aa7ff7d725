//go:build !windows

package audio

import "strconv"

// buildFFmpegCaptureArgs constructs FFmpeg arguments for audio capture.
func buildFFmpegCaptureArgs(inputFormat string, req CaptureRequest) []string {
	args := []string{
		"-f", inputFormat,
		"-i", req.Device,
		"-nostdin",
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
