package encoder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/youpy/go-wav"

	"github.com/oszuidwest/zwfm-voicenote/internal/media"
)

const wavHeaderSize = 44

// WAV is a native streaming WAV encoder. The RIFF header declares the
// maximal length so the stream can be cut at any chunk boundary.
type WAV struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	writer  *wav.Writer
	format  media.Format
	partial []byte
	paused  bool
	closed  bool
}

// NewWAV creates a WAV encoder for 16-bit PCM in format.
// The header is buffered immediately and returned by the first Flush.
func NewWAV(format media.Format) (*WAV, error) {
	if format.Channels < 1 || format.Channels > 2 {
		return nil, fmt.Errorf("%w: wav supports 1 or 2 channels, got %d", ErrUnsupportedType, format.Channels)
	}
	if format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: invalid sample rate %d", ErrUnsupportedType, format.SampleRate)
	}

	e := &WAV{format: format}
	blockAlign := uint32(format.BytesPerFrame())
	numSamples := (math.MaxUint32 - (wavHeaderSize - 8)) / blockAlign
	e.writer = wav.NewWriter(&e.buf, numSamples, uint16(format.Channels), uint32(format.SampleRate), 16)
	return e, nil
}

// MimeType returns audio/wav.
func (e *WAV) MimeType() string {
	return media.MimeWAV
}

// Write appends whole PCM frames; a trailing partial frame is kept for the next call.
func (e *WAV) Write(pcm []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.paused {
		return nil
	}

	data := pcm
	if len(e.partial) > 0 {
		data = append(e.partial, pcm...)
		e.partial = nil
	}

	frame := e.format.BytesPerFrame()
	whole := len(data) - len(data)%frame
	if whole < len(data) {
		e.partial = bytes.Clone(data[whole:])
	}

	samples := make([]wav.Sample, whole/frame)
	for i := range samples {
		off := i * frame
		for ch := range e.format.Channels {
			samples[i].Values[ch] = int(int16(binary.LittleEndian.Uint16(data[off+ch*2:])))
		}
	}
	return e.writer.WriteSamples(samples)
}

// Flush returns the bytes encoded since the previous call.
func (e *WAV) Flush() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drainLocked(), nil
}

func (e *WAV) drainLocked() []byte {
	if e.buf.Len() == 0 {
		return nil
	}
	out := bytes.Clone(e.buf.Bytes())
	e.buf.Reset()
	return out
}

func (e *WAV) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

func (e *WAV) Resume() {
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()
}

// Close drops any partial frame and returns the remaining bytes.
func (e *WAV) Close() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, nil
	}
	e.closed = true
	e.partial = nil
	return e.drainLocked(), nil
}
