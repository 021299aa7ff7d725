// Package analysis provides a live analysis context and analyser nodes that
// expose time-domain samples and meter levels of a captured stream.
package analysis

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-voicenote/internal/media"
)

// ErrClosed is returned when operating on a closed context.
var ErrClosed = errors.New("analysis context closed")

// State is the lifecycle state of a Context.
type State string

const (
	// StateSuspended means the clock is halted and input is dropped.
	StateSuspended State = "suspended"
	// StateRunning means input is analysed and the clock advances.
	StateRunning State = "running"
	// StateClosed is terminal.
	StateClosed State = "closed"
)

// Context owns the analysers of one session. A new Context starts suspended.
// It is safe for concurrent use.
type Context struct {
	mu        sync.Mutex
	state     State
	format    media.Format
	analysers []*Analyser
	partial   []byte
	frames    int64
	done      chan struct{}
}

// NewContext creates a suspended context for PCM in format.
func NewContext(format media.Format) *Context {
	if format.Channels < 1 {
		format.Channels = 1
	}
	return &Context{
		state:  StateSuspended,
		format: format,
		done:   make(chan struct{}),
	}
}

// NewAnalyser attaches an analyser with the given FFT size.
func (c *Context) NewAnalyser(fftSize int) (*Analyser, error) {
	if !ValidFFTSize(fftSize) {
		return nil, ErrInvalidFFTSize
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return nil, ErrClosed
	}
	a := newAnalyser(fftSize, c.format, c.done)
	c.analysers = append(c.analysers, a)
	return a, nil
}

// Resume starts the clock. A ctx that has already ended leaves the state
// unchanged and returns its error.
func (c *Context) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateClosed:
		return ErrClosed
	case StateSuspended:
		c.state = StateRunning
	}
	return nil
}

// Suspend halts the clock. Input written while suspended is dropped.
func (c *Context) Suspend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning {
		return
	}
	c.state = StateSuspended
	c.partial = nil
}

// Close releases the context and every analyser attached to it.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return nil
	}
	c.state = StateClosed
	c.analysers = nil
	close(c.done)
	return nil
}

// State returns the current state.
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed when the context is closed.
func (c *Context) Done() <-chan struct{} {
	return c.done
}

// CurrentTime returns how much audio has been analysed while running.
func (c *Context) CurrentTime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.format.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.frames) * time.Second / time.Duration(c.format.SampleRate)
}

// Write feeds interleaved S16LE PCM to every analyser while running.
func (c *Context) Write(pcm []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning {
		return
	}

	data := pcm
	if len(c.partial) > 0 {
		data = append(c.partial, pcm...)
		c.partial = nil
	}
	frame := c.format.BytesPerFrame()
	whole := len(data) - len(data)%frame
	if whole < len(data) {
		c.partial = bytes.Clone(data[whole:])
	}
	if whole == 0 {
		return
	}

	c.frames += int64(whole / frame)
	for _, a := range c.analysers {
		a.write(data[:whole])
	}
}
