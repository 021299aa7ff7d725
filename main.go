// Package main provides a voice note recorder that captures audio from a
// local input device and offers recordings through a web interface.
//
// Usage:
//
//	voicenote [--config path/to/config.json] [serve|record|devices|version]
//
// If --config is not specified, voicenote looks for config.json in the same
// directory as the binary. Without a subcommand the web interface is served.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/oszuidwest/zwfm-voicenote/internal/config"
	"github.com/oszuidwest/zwfm-voicenote/internal/eventlog"
	"github.com/oszuidwest/zwfm-voicenote/internal/platform"
	"github.com/oszuidwest/zwfm-voicenote/internal/util"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds state shared by every subcommand.
type app struct {
	configPath string
	cfg        *config.Config
	logCloser  io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:               "voicenote",
		Short:             "Record voice notes from a local audio input",
		Long:              "voicenote captures audio from a local input device, encodes it to a\nbrowser-playable container and serves the recordings through a web interface.",
		SilenceUsage:      true,
		PersistentPreRunE: func(*cobra.Command, []string) error { return a.init() },
		PersistentPostRun: func(*cobra.Command, []string) { a.close() },
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(versionString() + "\n")
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config file (default: config.json next to binary)")

	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newRecordCmd(a))
	rootCmd.AddCommand(newDevicesCmd(a))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the web interface (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// Skips config loading from the root command.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		PersistentPostRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionString())
		},
	}
}

// init resolves and loads the configuration, then installs the logger.
func (a *app) init() error {
	if a.configPath == "" {
		execPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}
		a.configPath = filepath.Join(filepath.Dir(execPath), "config.json")
	}

	a.cfg = config.New(a.configPath)
	if err := a.cfg.Load(); err != nil {
		slog.Error("failed to load config", "path", a.configPath, "error", err)
		return err
	}

	snap := a.cfg.Snapshot()
	closer, err := setupLogging(snap.Log, os.Stderr)
	if err != nil {
		return err
	}
	a.logCloser = closer

	slog.Info("using config file", "path", a.configPath)
	return nil
}

func (a *app) close() {
	if a.logCloser != nil {
		if err := a.logCloser.Close(); err != nil {
			fmt.Fprintln(os.Stderr, "failed to close log file:", err)
		}
	}
}

// newPlatform builds the capture platform and reports whether FFmpeg was found.
func (a *app) newPlatform() (*platform.Local, bool) {
	snap := a.cfg.Snapshot()

	ffmpegPath := util.ResolveFFmpegPath(a.cfg.FFmpegPath())
	ffmpegAvailable := ffmpegPath != ""
	if !ffmpegAvailable {
		slog.Warn("FFmpeg not found - only WAV recordings are available",
			"configured_path", a.cfg.FFmpegPath())
	} else {
		slog.Info("FFmpeg found", "path", ffmpegPath)
	}

	return platform.NewLocal(ffmpegPath, snap.AudioInput, snap.AudioBackend), ffmpegAvailable
}

// serve runs the web interface until a shutdown signal arrives.
func (a *app) serve(ctx context.Context) error {
	p, ffmpegAvailable := a.newPlatform()
	snap := a.cfg.Snapshot()

	var events *eventlog.Logger
	if snap.HasEventLog() {
		var err error
		events, err = eventlog.NewLogger(snap.EventLogPath())
		if err != nil {
			slog.Error("failed to open session event log", "path", snap.EventLogPath(), "error", err)
		} else {
			slog.Info("session event log enabled", "path", events.Path())
		}
	}

	srv, err := NewServer(a.cfg, p, events, ffmpegAvailable)
	if err != nil {
		return err
	}

	// Start web server.
	httpServer := srv.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, util.ShutdownSignals()...)
	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	slog.Info("shutting down")

	// Shut down HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	srv.Close()

	slog.Info("shutdown complete")
	return nil
}
