package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/oszuidwest/zwfm-voicenote/internal/media"
	"github.com/oszuidwest/zwfm-voicenote/internal/recorder"
	"github.com/oszuidwest/zwfm-voicenote/internal/util"
	"github.com/oszuidwest/zwfm-voicenote/internal/waveform"
)

// recordFlags holds the options of the record subcommand.
type recordFlags struct {
	duration time.Duration
	out      string
	mimeType string
	waveform string
}

func newRecordCmd(a *app) *cobra.Command {
	var f recordFlags

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a single voice note to a file",
		Long:  "Record from the configured input until --duration elapses, Ctrl+C is pressed\nor the device goes away. The file extension follows the negotiated container.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), util.ShutdownSignals()...)
			defer stop()
			return a.record(ctx, cmd.OutOrStdout(), f)
		},
	}

	cmd.Flags().DurationVarP(&f.duration, "duration", "d", 0, "Stop after this long (0 = until interrupted)")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Output path without extension (default: voicenote-<timestamp>)")
	cmd.Flags().StringVar(&f.mimeType, "mime", "", "Requested container mime type (default: from config)")
	cmd.Flags().StringVar(&f.waveform, "waveform", "", "Write the last waveform frame as PNG to this path")

	return cmd
}

// record runs one session and writes its artifact.
func (a *app) record(ctx context.Context, out io.Writer, f recordFlags) error {
	p, _ := a.newPlatform()
	snap := a.cfg.Snapshot()

	opts := snap.RecorderOptions()
	if f.mimeType != "" {
		opts.MimeType = f.mimeType
	}

	var final *recorder.Artifact
	rec, err := recorder.New(p, nil, opts, recorder.Callbacks{
		OnStop: func(art *recorder.Artifact) { final = art },
	})
	if err != nil {
		return err
	}

	if err := rec.Start(ctx); err != nil {
		return err
	}
	effective, _ := rec.SessionOptions()
	fmt.Fprintf(out, "Recording %s from %q, press Ctrl+C to stop\n", effective.MimeType, snap.AudioInput)

	waitCtx := ctx
	if f.duration > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, f.duration)
		defer cancel()
	}
	// Returns nil only when the device ended the session on its own.
	if err := rec.WaitStatus(waitCtx, recorder.StatusStopped); err == nil {
		slog.Warn("input device ended the recording")
	}

	if f.waveform != "" {
		if err := writeWaveform(rec, snap.WaveformOptions(), f.waveform); err != nil {
			slog.Warn("failed to write waveform", "error", err)
		}
	}

	if err := rec.Stop(); err != nil {
		return err
	}
	if final == nil || final.Empty() {
		return errors.New("no audio was recorded")
	}

	path := f.out
	if path == "" {
		path = "voicenote-" + util.FileTimestamp(final.StartTime)
	}
	path += "." + rec.FileExtension()

	if err := os.WriteFile(path, final.Blob.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write recording: %w", err)
	}

	dur := final.StopTime.Sub(final.StartTime)
	fmt.Fprintf(out, "Wrote %s (%d bytes, %s)\n", path, final.Blob.Size(), util.FormatDuration(dur))
	return nil
}

// writeWaveform renders the analyser's current frame to a PNG file.
func writeWaveform(rec *recorder.Manager, opts waveform.Options, path string) error {
	an := rec.Analyser()
	if an == nil {
		return errors.New("no active session")
	}

	img := waveform.NewImage(opts.Width, opts.Height)
	r, err := waveform.New(img, an, opts)
	if err != nil {
		return err
	}
	r.Draw()

	data, err := waveform.EncodePNG(img)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func newDevicesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio input devices and supported containers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, _ := a.newPlatform()
			return printDevices(cmd.OutOrStdout(), p)
		},
	}
}

// printDevices writes the device and container tables.
func printDevices(out io.Writer, p media.Platform) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME")
	for _, d := range p.Devices() {
		fmt.Fprintf(tw, "%s\t%s\n", d.ID, d.Name)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Supported containers:")
	mimes := supportedMimeTypes(p)
	if len(mimes) == 0 {
		fmt.Fprintln(out, "  none (capture is not available)")
	}
	for _, m := range mimes {
		fmt.Fprintf(out, "  %s (.%s)\n", m, media.Extension(m))
	}
	return nil
}
