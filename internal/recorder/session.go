package recorder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-voicenote/internal/analysis"
	"github.com/oszuidwest/zwfm-voicenote/internal/media"
)

// readBufferSize holds roughly 10ms of 48kHz stereo PCM.
const readBufferSize = 1920

// session is the state owned by one recording attempt.
type session struct {
	id        uint64
	stream    media.Stream
	encoder   media.Encoder
	actx      *analysis.Context
	analyser  *analysis.Analyser
	container media.Container
	opts      Options
	startTime time.Time
	onData    func([]byte)

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// deliverMu orders encoder flushes with chunk appends and OnData calls.
	deliverMu sync.Mutex
	chunks    [][]byte
	paused    bool
}

// run starts the capture pump and the chunker. onEnd is called once, from
// its own goroutine, when the input ends without being stopped.
func (s *session) run(onEnd func(id uint64, err error)) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		err := s.pump(ctx)
		if ctx.Err() == nil {
			go onEnd(s.id, err)
		}
	}()
	go func() {
		defer s.wg.Done()
		s.chunker(ctx)
	}()
}

// pump fans PCM from the stream out to the encoder and the analysis context.
// It returns when the stream ends or fails.
func (s *session) pump(ctx context.Context) error {
	buf := make([]byte, readBufferSize)
	for {
		n, err := s.stream.Read(buf)
		if n > 0 && ctx.Err() == nil {
			pcm := buf[:n]
			if werr := s.encoder.Write(pcm); werr != nil {
				return werr
			}
			s.actx.Write(pcm)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// chunker flushes the encoder every timeslice.
func (s *session) chunker(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Timeslice)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.deliver(false)
		}
	}
}

// deliver moves encoded bytes into the chunk list and forwards them to
// OnData. Nothing is taken while paused unless force is set.
func (s *session) deliver(force bool) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if s.paused && !force {
		return
	}

	data, err := s.encoder.Flush()
	if err != nil {
		slog.Warn("encoder flush failed", "session", s.id, "error", err)
	}
	s.appendLocked(data)
}

func (s *session) appendLocked(data []byte) {
	if len(data) == 0 {
		return
	}
	s.chunks = append(s.chunks, data)
	if s.onData != nil {
		s.onData(data)
	}
}

// setPaused flushes pending output, then holds or releases the chunker.
func (s *session) setPaused(paused bool) {
	if paused {
		s.deliver(false)
	}
	s.deliverMu.Lock()
	s.paused = paused
	s.deliverMu.Unlock()
}

// snapshot returns the buffered chunks without clearing them.
func (s *session) snapshot() [][]byte {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	return append([][]byte(nil), s.chunks...)
}

// teardown stops both goroutines and releases the stream, the encoder and
// the analysis context. With keep set, trailing encoder bytes are appended
// and the chunks are returned; otherwise they are dropped.
func (s *session) teardown(keep bool) [][]byte {
	if s.cancel != nil {
		s.cancel()
	}
	if err := s.stream.Close(); err != nil {
		slog.Warn("failed to release input stream", "session", s.id, "error", err)
	}
	s.wg.Wait()

	tail, err := s.encoder.Close()
	if err != nil {
		slog.Warn("encoder did not finish cleanly", "session", s.id, "error", err)
	}
	if err := s.actx.Close(); err != nil {
		slog.Warn("failed to close analysis context", "session", s.id, "error", err)
	}

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if !keep {
		s.chunks = nil
		return nil
	}
	s.appendLocked(tail)
	chunks := s.chunks
	s.chunks = nil
	return chunks
}
