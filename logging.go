package main

import (
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/oszuidwest/zwfm-voicenote/internal/config"
)

// nopCloser is returned when logging goes to stderr only.
type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// setupLogging installs the default slog logger. When a log file is
// configured, output is duplicated into a size-rotated file. The returned
// closer releases that file.
func setupLogging(lc config.LogConfig, stderr io.Writer) (io.Closer, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", lc.Level, err)
	}

	w := stderr
	var closer io.Closer = nopCloser{}
	if lc.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   lc.File,
			MaxSize:    lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			Compress:   true,
		}
		w = io.MultiWriter(stderr, rotated)
		closer = rotated
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if lc.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))

	return closer, nil
}
