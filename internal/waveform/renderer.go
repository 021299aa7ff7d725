// Package waveform draws the live time-domain waveform of an analyser onto a
// 2D surface, one frame per tick while a recording is active.
package waveform

import (
	"context"
	"fmt"
	"image/color"
	"time"

	"github.com/oszuidwest/zwfm-voicenote/internal/util"
)

// Defaults for the waveform surface.
const (
	DefaultWidth           = 640
	DefaultHeight          = 100
	DefaultBackgroundColor = "rgba(255, 255, 255, 0.5)"
	DefaultStrokeColor     = "#000000"
	DefaultFrameInterval   = time.Second / 60
	lineWidth              = 2
)

// Surface is a 2D drawing target. *gg.Context satisfies it.
type Surface interface {
	SetColor(c color.Color)
	Clear()
	DrawRectangle(x, y, w, h float64)
	Fill()
	SetLineWidth(lineWidth float64)
	MoveTo(x, y float64)
	LineTo(x, y float64)
	Stroke()
}

// Source provides the samples to draw.
type Source interface {
	FFTSize() int
	ByteTimeDomainData(dst []byte)
	Done() <-chan struct{}
}

// Options configures a Renderer.
type Options struct {
	Width           int
	Height          int
	BackgroundColor string
	StrokeColor     string
}

// DefaultOptions returns the default surface size and colors.
func DefaultOptions() Options {
	return Options{
		Width:           DefaultWidth,
		Height:          DefaultHeight,
		BackgroundColor: DefaultBackgroundColor,
		StrokeColor:     DefaultStrokeColor,
	}
}

// Renderer draws frames of a Source onto a Surface.
type Renderer struct {
	surface    Surface
	source     Source
	width      float64
	height     float64
	background color.Color
	stroke     color.Color
	data       []byte
}

// New creates a renderer. Empty option fields take their defaults.
func New(surface Surface, source Source, opts Options) (*Renderer, error) {
	def := DefaultOptions()
	if opts.Width <= 0 {
		opts.Width = def.Width
	}
	if opts.Height <= 0 {
		opts.Height = def.Height
	}
	if opts.BackgroundColor == "" {
		opts.BackgroundColor = def.BackgroundColor
	}
	if opts.StrokeColor == "" {
		opts.StrokeColor = def.StrokeColor
	}

	bg, err := util.ParseColor(opts.BackgroundColor)
	if err != nil {
		return nil, fmt.Errorf("background color: %w", err)
	}
	fg, err := util.ParseColor(opts.StrokeColor)
	if err != nil {
		return nil, fmt.Errorf("stroke color: %w", err)
	}

	return &Renderer{
		surface:    surface,
		source:     source,
		width:      float64(opts.Width),
		height:     float64(opts.Height),
		background: bg,
		stroke:     fg,
		data:       make([]byte, source.FFTSize()),
	}, nil
}

// Draw renders one frame from the current contents of the source.
func (r *Renderer) Draw() {
	r.source.ByteTimeDomainData(r.data)

	s := r.surface
	s.SetColor(color.Transparent)
	s.Clear()
	s.SetColor(r.background)
	s.DrawRectangle(0, 0, r.width, r.height)
	s.Fill()

	s.SetLineWidth(lineWidth)
	s.SetColor(r.stroke)

	slice := r.width / float64(len(r.data))
	x := 0.0
	for i, b := range r.data {
		y := float64(b) / 128 * r.height / 2
		if i == 0 {
			s.MoveTo(x, y)
		} else {
			s.LineTo(x, y)
		}
		x += slice
	}
	s.LineTo(r.width, r.height/2)
	s.Stroke()
}

// Run draws a frame every interval until active reports false, the source is
// done, or ctx ends. onFrame, if set, is called after each drawn frame.
// The active check happens before each frame so a frame never follows a stop.
func (r *Renderer) Run(ctx context.Context, active func() bool, interval time.Duration, onFrame func()) error {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if !active() {
			return nil
		}
		r.Draw()
		if onFrame != nil {
			onFrame()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.source.Done():
			return nil
		case <-ticker.C:
		}
	}
}
