// Package audio builds platform capture commands, lists input devices and
// meters S16LE PCM.
package audio

import (
	"encoding/binary"
	"math"
)

const (
	// MinDB is the metering floor.
	MinDB = -60.0
	// MaxSampleValue is full scale for signed 16-bit samples.
	MaxSampleValue = 32768.0
	// ClipThreshold counts samples within a few LSB of full scale as clipped.
	ClipThreshold int16 = 32760
)

// AudioLevels is one meter reading in dBFS.
type AudioLevels struct {
	Left      float64 `json:"left"`  // RMS
	Right     float64 `json:"right"` // RMS
	PeakLeft  float64 `json:"peak_left"`
	PeakRight float64 `json:"peak_right"`
	ClipLeft  int     `json:"clip_left,omitzero"`
	ClipRight int     `json:"clip_right,omitzero"`
}

// SilentLevels returns a reading at the floor on both sides.
func SilentLevels() AudioLevels {
	return AudioLevels{Left: MinDB, Right: MinDB, PeakLeft: MinDB, PeakRight: MinDB}
}

// dBFS converts a linear amplitude to dBFS, clamped to MinDB.
func dBFS(amplitude float64) float64 {
	if amplitude <= 0 {
		return MinDB
	}
	return max(20*math.Log10(amplitude/MaxSampleValue), MinDB)
}

type side struct {
	sumSquares float64
	peak       float64
	clips      int
}

func (s *side) add(v int16) {
	f := float64(v)
	s.sumSquares += f * f
	s.peak = max(s.peak, math.Abs(f))
	if v >= ClipThreshold || v <= -ClipThreshold {
		s.clips++
	}
}

// Meter accumulates a window of interleaved S16LE frames. Mono input is
// metered on both sides; channels past the second are ignored.
// The zero value is ready to use.
type Meter struct {
	sides  [2]side
	frames int
}

// Write meters every whole frame in pcm. A trailing partial frame is dropped.
func (m *Meter) Write(pcm []byte, channels int) {
	channels = max(channels, 1)
	size := channels * 2
	for off := 0; off+size <= len(pcm); off += size {
		left := int16(binary.LittleEndian.Uint16(pcm[off:]))
		right := left
		if channels > 1 {
			right = int16(binary.LittleEndian.Uint16(pcm[off+2:]))
		}
		m.sides[0].add(left)
		m.sides[1].add(right)
		m.frames++
	}
}

// Frames returns the number of frames in the current window.
func (m *Meter) Frames() int {
	return m.frames
}

// Flush returns the window's levels and starts a new window. Peaks are
// instantaneous; hold is applied by PeakHolder.
func (m *Meter) Flush() AudioLevels {
	if m.frames == 0 {
		return SilentLevels()
	}
	n := float64(m.frames)
	l, r := m.sides[0], m.sides[1]
	*m = Meter{}
	return AudioLevels{
		Left:      dBFS(math.Sqrt(l.sumSquares / n)),
		Right:     dBFS(math.Sqrt(r.sumSquares / n)),
		PeakLeft:  dBFS(l.peak),
		PeakRight: dBFS(r.peak),
		ClipLeft:  l.clips,
		ClipRight: r.clips,
	}
}
