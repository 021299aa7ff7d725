package audio

import (
	"sync"
	"time"
)

// DefaultPeakHoldDuration is how long a peak is held before it may fall.
const DefaultPeakHoldDuration = 1500 * time.Millisecond

// PeakHolder tracks peak-hold state for VU meters.
// It is safe for concurrent use.
type PeakHolder struct {
	mu    sync.Mutex
	hold  time.Duration
	peaks [2]float64
	since [2]time.Time
}

// NewPeakHolder creates a peak holder at the metering floor.
func NewPeakHolder(hold time.Duration) *PeakHolder {
	if hold <= 0 {
		hold = DefaultPeakHoldDuration
	}
	return &PeakHolder{hold: hold, peaks: [2]float64{MinDB, MinDB}}
}

// Update folds new peak values in and returns the held peaks.
func (p *PeakHolder) Update(peakL, peakR float64, now time.Time) (heldL, heldR float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, v := range [2]float64{peakL, peakR} {
		if v >= p.peaks[i] || now.Sub(p.since[i]) > p.hold {
			p.peaks[i] = v
			p.since[i] = now
		}
	}
	return p.peaks[0], p.peaks[1]
}

// Reset clears held peak values to the metering floor.
func (p *PeakHolder) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.peaks = [2]float64{MinDB, MinDB}
	p.since = [2]time.Time{}
}
