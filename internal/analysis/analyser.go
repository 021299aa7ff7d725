package analysis

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-voicenote/internal/audio"
	"github.com/oszuidwest/zwfm-voicenote/internal/media"
)

// FFT size bounds and default.
const (
	MinFFTSize     = 32
	MaxFFTSize     = 32768
	DefaultFFTSize = 512
)

// ErrInvalidFFTSize is returned for FFT sizes that are not a power of two in range.
var ErrInvalidFFTSize = errors.New("fft size must be a power of two between 32 and 32768")

// ValidFFTSize reports whether n is a power of two within the allowed range.
func ValidFFTSize(n int) bool {
	return n >= MinFFTSize && n <= MaxFFTSize && n&(n-1) == 0
}

// Analyser keeps the most recent fftSize mono samples of its context and
// meters levels every 100ms of audio. It is safe for concurrent use.
type Analyser struct {
	mu       sync.Mutex
	ring     []float32
	pos      int
	format   media.Format
	meter    audio.Meter
	interval int
	peaks    *audio.PeakHolder
	levels   audio.AudioLevels
	done     <-chan struct{}
}

func newAnalyser(fftSize int, format media.Format, done <-chan struct{}) *Analyser {
	return &Analyser{
		ring:     make([]float32, fftSize),
		format:   format,
		interval: max(format.SampleRate/10, 1),
		peaks:    audio.NewPeakHolder(audio.DefaultPeakHoldDuration),
		levels:   audio.SilentLevels(),
		done:     done,
	}
}

// FFTSize returns the number of samples exposed by the time-domain getters.
func (a *Analyser) FFTSize() int {
	return len(a.ring)
}

// Done is closed when the owning context is closed.
func (a *Analyser) Done() <-chan struct{} {
	return a.done
}

// FloatTimeDomainData copies the most recent samples, oldest first, in [-1, 1).
func (a *Analyser) FloatTimeDomainData(dst []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := min(len(dst), len(a.ring))
	start := a.pos + len(a.ring) - n
	for i := range n {
		dst[i] = a.ring[(start+i)%len(a.ring)]
	}
}

// ByteTimeDomainData copies the most recent samples as unsigned bytes where
// 128 is silence.
func (a *Analyser) ByteTimeDomainData(dst []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := min(len(dst), len(a.ring))
	start := a.pos + len(a.ring) - n
	for i := range n {
		dst[i] = toByte(a.ring[(start+i)%len(a.ring)])
	}
}

// toByte maps [-1, 1] onto [0, 255].
func toByte(x float32) byte {
	v := math.Floor(128 * (float64(x) + 1))
	return byte(max(0, min(255, v)))
}

// Levels returns the most recent meter reading.
func (a *Analyser) Levels() audio.AudioLevels {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.levels
}

// write consumes whole interleaved frames.
func (a *Analyser) write(pcm []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	channels := a.format.Channels
	frame := channels * 2
	for off := 0; off+frame <= len(pcm); off += frame {
		var sum float32
		for ch := range channels {
			sum += float32(int16(binary.LittleEndian.Uint16(pcm[off+ch*2:])))
		}
		a.ring[a.pos] = sum / float32(channels) / audio.MaxSampleValue
		a.pos = (a.pos + 1) % len(a.ring)
	}

	a.meter.Write(pcm, channels)
	if a.meter.Frames() >= a.interval {
		l := a.meter.Flush()
		l.PeakLeft, l.PeakRight = a.peaks.Update(l.PeakLeft, l.PeakRight, time.Now())
		a.levels = l
	}
}
