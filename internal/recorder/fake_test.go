package recorder

import (
	"context"
	"io"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/oszuidwest/zwfm-voicenote/internal/media"
)

type fakeStream struct {
	format    media.Format
	settings  media.Constraints
	data      chan []byte
	done      chan struct{}
	ended     chan struct{}
	closeOnce sync.Once
	endOnce   sync.Once
	closed    atomic.Bool
}

func newFakeStream(c media.Constraints) *fakeStream {
	return &fakeStream{
		format:   media.Format{SampleRate: 1000, Channels: c.ChannelCount},
		settings: c,
		data:     make(chan []byte, 16),
		done:     make(chan struct{}),
		ended:    make(chan struct{}),
	}
}

func (s *fakeStream) Read(p []byte) (int, error) {
	select {
	case b := <-s.data:
		return copy(p, b), nil
	case <-s.ended:
		return 0, io.EOF
	case <-s.done:
		return 0, io.ErrClosedPipe
	}
}

func (s *fakeStream) Format() media.Format        { return s.format }
func (s *fakeStream) Settings() media.Constraints { return s.settings }
func (s *fakeStream) Done() <-chan struct{}       { return s.done }
func (s *fakeStream) end()                        { s.endOnce.Do(func() { close(s.ended) }) }

func (s *fakeStream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
	})
	return nil
}

// fakeEncoder passes emitted bytes through as encoded output.
type fakeEncoder struct {
	mu      sync.Mutex
	mime    string
	pending []byte
	written int
	paused  bool
	closed  bool
	trailer []byte
}

func (e *fakeEncoder) MimeType() string { return e.mime }

func (e *fakeEncoder) Write(pcm []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.paused {
		e.written += len(pcm)
	}
	return nil
}

func (e *fakeEncoder) emit(b string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = append(e.pending, b...)
}

func (e *fakeEncoder) Flush() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.pending
	e.pending = nil
	return out, nil
}

func (e *fakeEncoder) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

func (e *fakeEncoder) Resume() {
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()
}

func (e *fakeEncoder) Close() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, nil
	}
	e.closed = true
	out := append(e.pending, e.trailer...)
	e.pending = nil
	return out, nil
}

func (e *fakeEncoder) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

type fakePlatform struct {
	mu          sync.Mutex
	unavailable bool
	supported   []string
	acquireErr  error
	acquires    int
	streams     []*fakeStream
	encoders    []*fakeEncoder
}

func newFakePlatform(supported ...string) *fakePlatform {
	return &fakePlatform{supported: supported}
}

func (p *fakePlatform) Available() bool { return !p.unavailable }

func (p *fakePlatform) IsTypeSupported(mime string) bool {
	return slices.Contains(p.supported, media.BaseType(mime))
}

func (p *fakePlatform) Acquire(_ context.Context, c media.Constraints) (media.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acquires++
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	s := newFakeStream(c)
	p.streams = append(p.streams, s)
	return s, nil
}

func (p *fakePlatform) NewEncoder(cfg media.EncoderConfig) (media.Encoder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := &fakeEncoder{mime: cfg.MimeType}
	p.encoders = append(p.encoders, e)
	return e, nil
}

func (p *fakePlatform) Devices() []media.Device { return nil }

func (p *fakePlatform) acquireCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquires
}

func (p *fakePlatform) stream(i int) *fakeStream {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streams[i]
}

func (p *fakePlatform) encoder(i int) *fakeEncoder {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoders[i]
}

// events records callback invocations.
type events struct {
	mu       sync.Mutex
	starts   int
	statuses []Status
	changes  []*Artifact
	stops    []*Artifact
	pauses   []*Artifact
	chunks   chan []byte
}

func newEvents() *events {
	return &events{chunks: make(chan []byte, 64)}
}

func (e *events) callbacks() Callbacks {
	return Callbacks{
		OnStart: func() {
			e.mu.Lock()
			e.starts++
			e.mu.Unlock()
		},
		OnChange: func(a *Artifact) {
			e.mu.Lock()
			e.changes = append(e.changes, a)
			e.mu.Unlock()
		},
		OnStop: func(a *Artifact) {
			e.mu.Lock()
			e.stops = append(e.stops, a)
			e.mu.Unlock()
		},
		OnPause: func(a *Artifact) {
			e.mu.Lock()
			e.pauses = append(e.pauses, a)
			e.mu.Unlock()
		},
		OnData: func(chunk []byte) {
			e.chunks <- chunk
		},
		HandleStatus: func(s Status) {
			e.mu.Lock()
			e.statuses = append(e.statuses, s)
			e.mu.Unlock()
		},
	}
}

func (e *events) snapshot() (statuses []Status, changes, stops, pauses []*Artifact, starts int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.statuses), slices.Clone(e.changes), slices.Clone(e.stops), slices.Clone(e.pauses), e.starts
}
