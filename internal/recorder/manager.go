package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-voicenote/internal/analysis"
	"github.com/oszuidwest/zwfm-voicenote/internal/blob"
	"github.com/oszuidwest/zwfm-voicenote/internal/media"
)

// Manager owns at most one recording session at a time. It is safe for
// concurrent use; control operations are serialized.
type Manager struct {
	platform media.Platform
	blobs    *blob.Store
	cb       Callbacks

	// opMu serializes Start, Pause, Resume, Stop, Reset and device-end handling.
	opMu sync.Mutex

	mu         sync.RWMutex
	opts       Options
	status     Status
	changed    chan struct{}
	session    *session
	extension  string
	generation uint64
}

// New creates a stopped manager. Artifact payloads are registered in blobs.
func New(platform media.Platform, blobs *blob.Store, opts Options, cb Callbacks) (*Manager, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	if blobs == nil {
		blobs = blob.NewStore()
	}
	return &Manager{
		platform: platform,
		blobs:    blobs,
		cb:       cb,
		opts:     opts,
		status:   StatusStopped,
		changed:  make(chan struct{}),
	}, nil
}

// Status returns the current status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// IsRecording reports whether chunks are currently being captured.
func (m *Manager) IsRecording() bool {
	return m.Status() == StatusRecording
}

// Options returns the configured options.
func (m *Manager) Options() Options {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.opts
}

// SessionOptions returns the options in effect for the active session:
// the negotiated mime type and the constraints the device applied.
func (m *Manager) SessionOptions() (Options, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return Options{}, false
	}
	return m.session.opts, true
}

// SetOptions replaces the options used by the next session.
func (m *Manager) SetOptions(opts Options) error {
	opts, err := opts.normalize()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusStopped {
		return ErrSessionActive
	}
	m.opts = opts
	return nil
}

// FileExtension returns the extension of the negotiated container, or ""
// before the first successful start.
func (m *Manager) FileExtension() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.extension
}

// Analyser returns the analysis node of the active session, or nil.
func (m *Manager) Analyser() *analysis.Analyser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil
	}
	return m.session.analyser
}

// StartTime returns when the active session started, or the zero time.
func (m *Manager) StartTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return time.Time{}
	}
	return m.session.startTime
}

// WaitStatus blocks until the status equals want or ctx ends.
func (m *Manager) WaitStatus(ctx context.Context, want Status) error {
	for {
		m.mu.RLock()
		status, changed := m.status, m.changed
		m.mu.RUnlock()
		if status == want {
			return nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// setStatusLocked must be called with mu held.
func (m *Manager) setStatusLocked(s Status) {
	if m.status == s {
		return
	}
	m.status = s
	close(m.changed)
	m.changed = make(chan struct{})
}

// Start begins a session, or resumes a paused one. While recording it does
// nothing. It returns once audio is flowing into the encoder.
func (m *Manager) Start(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	switch m.Status() {
	case StatusRecording:
		slog.Debug("start ignored, already recording")
		return nil
	case StatusPaused:
		return m.resumeLocked(ctx)
	}

	s, err := m.open(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.generation++
	s.id = m.generation
	m.session = s
	m.extension = s.container.Extension
	m.setStatusLocked(StatusRecording)
	m.mu.Unlock()

	s.run(m.deviceEnded)
	slog.Info("recording started", "session", s.id, "mime_type", s.container.MimeType, "channels", s.stream.Format().Channels)

	if m.cb.OnStart != nil {
		m.cb.OnStart()
	}
	m.emitStatus(StatusRecording)
	return nil
}

// open acquires everything a session needs. On error nothing stays open.
func (m *Manager) open(ctx context.Context) (*session, error) {
	if !m.platform.Available() {
		return nil, media.ErrUnsupportedEnvironment
	}

	opts := m.Options()
	container, err := negotiate(m.platform, opts.MimeType)
	if err != nil {
		return nil, err
	}

	stream, err := m.platform.Acquire(ctx, opts.Constraints)
	if err != nil {
		var acqErr *media.AcquisitionError
		if errors.As(err, &acqErr) || errors.Is(err, media.ErrUnsupportedEnvironment) {
			return nil, err
		}
		return nil, &media.AcquisitionError{Err: err}
	}

	enc, err := m.platform.NewEncoder(media.EncoderConfig{
		MimeType:      container.MimeType,
		BitsPerSecond: opts.AudioBitsPerSecond,
		Format:        stream.Format(),
	})
	if err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("create encoder: %w", err)
	}

	actx := analysis.NewContext(stream.Format())
	analyser, err := actx.NewAnalyser(opts.FFTSize)
	if err == nil {
		err = actx.Resume(ctx)
	}
	if err != nil {
		_ = actx.Close()
		_, _ = enc.Close()
		_ = stream.Close()
		return nil, fmt.Errorf("start analysis: %w", err)
	}

	opts.MimeType = container.MimeType
	opts.Constraints = stream.Settings()

	return &session{
		stream:    stream,
		encoder:   enc,
		actx:      actx,
		analyser:  analyser,
		container: container,
		opts:      opts,
		startTime: time.Now(),
		onData:    m.cb.OnData,
	}, nil
}

// negotiate picks the requested container if supported, otherwise the first
// supported one in preference order.
func negotiate(p media.Platform, requested string) (media.Container, error) {
	if requested != "" && p.IsTypeSupported(requested) {
		if c, ok := media.LookupContainer(requested); ok {
			return c, nil
		}
	}
	if requested != "" {
		slog.Info("requested container not supported, falling back", "mime_type", requested)
	}
	for _, mime := range media.PreferenceOrder {
		if p.IsTypeSupported(mime) {
			c, _ := media.LookupContainer(mime)
			return c, nil
		}
	}
	return media.Container{}, media.ErrUnsupportedEnvironment
}

// Pause holds a recording session and emits an artifact of everything
// captured so far. Buffered chunks are kept, so the artifact after a later
// stop covers the whole session. Outside recording it does nothing.
func (m *Manager) Pause() {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	s, status := m.session, m.status
	m.mu.RUnlock()
	if status != StatusRecording {
		return
	}

	s.setPaused(true)
	s.encoder.Pause()
	s.actx.Suspend()

	a := m.artifact(s, s.snapshot(), TerminationHost)

	m.mu.Lock()
	m.setStatusLocked(StatusPaused)
	m.mu.Unlock()
	slog.Info("recording paused", "session", s.id, "size", a.Blob.Size())

	if m.cb.OnPause != nil {
		m.cb.OnPause(a)
	}
	m.emitChange(a)
	m.emitStatus(StatusPaused)
}

// Resume continues a paused session on the same stream. Outside paused it
// does nothing.
func (m *Manager) Resume(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.Status() != StatusPaused {
		return nil
	}
	return m.resumeLocked(ctx)
}

func (m *Manager) resumeLocked(ctx context.Context) error {
	m.mu.RLock()
	s := m.session
	m.mu.RUnlock()

	if err := s.actx.Resume(ctx); err != nil {
		s.actx.Suspend()
		return fmt.Errorf("resume analysis: %w", err)
	}
	s.encoder.Resume()
	s.setPaused(false)

	m.mu.Lock()
	m.setStatusLocked(StatusRecording)
	m.mu.Unlock()
	slog.Info("recording resumed", "session", s.id)

	m.emitStatus(StatusRecording)
	return nil
}

// Stop ends the session, releases the input and emits the final artifact.
// When already stopped it does nothing.
func (m *Manager) Stop() error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.stopLocked(TerminationHost)
	return nil
}

func (m *Manager) stopLocked(term Termination) {
	m.mu.RLock()
	s := m.session
	m.mu.RUnlock()
	if s == nil {
		return
	}

	chunks := s.teardown(true)
	a := m.artifact(s, chunks, term)

	m.mu.Lock()
	m.session = nil
	m.setStatusLocked(StatusStopped)
	m.mu.Unlock()
	slog.Info("recording stopped", "session", s.id, "size", a.Blob.Size(), "termination", string(term))

	if m.cb.OnStop != nil {
		m.cb.OnStop(a)
	}
	m.emitChange(a)
	m.emitStatus(StatusStopped)
}

// Reset discards everything buffered, emits an empty artifact and releases
// the input. It is valid in every state.
func (m *Manager) Reset() error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	s := m.session
	opts := m.opts
	m.mu.RUnlock()

	a := &Artifact{StopTime: time.Now(), Options: opts}
	if s != nil {
		s.teardown(false)
		a.StartTime = s.startTime
		a.Options = s.opts
	}

	m.mu.Lock()
	m.session = nil
	changed := m.status != StatusStopped
	m.setStatusLocked(StatusStopped)
	m.mu.Unlock()
	if s != nil {
		slog.Info("recording reset", "session", s.id)
	}

	m.emitChange(a)
	if changed {
		m.emitStatus(StatusStopped)
	}
	return nil
}

// deviceEnded stops session id after its input ended on its own.
func (m *Manager) deviceEnded(id uint64, err error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	current := m.session
	m.mu.RUnlock()
	if current == nil || current.id != id {
		return
	}

	if err != nil {
		slog.Warn("audio input failed", "session", id, "error", err)
	} else {
		slog.Warn("audio input ended", "session", id)
	}
	m.stopLocked(TerminationDevice)
}

// artifact assembles chunks into a blob and registers its URL.
func (m *Manager) artifact(s *session, chunks [][]byte, term Termination) *Artifact {
	b := blob.New(chunks, s.container.MimeType)
	return &Artifact{
		Blob:        b,
		URL:         m.blobs.CreateObjectURL(b),
		StartTime:   s.startTime,
		StopTime:    time.Now(),
		Options:     s.opts,
		Termination: term,
	}
}

func (m *Manager) emitChange(a *Artifact) {
	if m.cb.OnChange != nil {
		m.cb.OnChange(a)
	}
}

func (m *Manager) emitStatus(s Status) {
	if m.cb.HandleStatus != nil {
		m.cb.HandleStatus(s)
	}
}
