package audio

import (
	"context"
	"encoding/binary"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oszuidwest/zwfm-voicenote/internal/media"
)

func pcm(samples ...int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func TestMeterStereo(t *testing.T) {
	var m Meter
	m.Write(pcm(16384, -32768, -16384, 0), 2)
	assert.Equal(t, 2, m.Frames())

	levels := m.Flush()
	assert.InDelta(t, -6.02, levels.PeakLeft, 0.01)
	assert.InDelta(t, 0, levels.PeakRight, 0.01)
	assert.InDelta(t, -6.02, levels.Left, 0.01)
	assert.Equal(t, 1, levels.ClipRight)
	assert.Zero(t, levels.ClipLeft)
	assert.Zero(t, m.Frames(), "flush starts a new window")
}

func TestMeterMonoMetersBothSides(t *testing.T) {
	var m Meter
	m.Write(pcm(8192, 8192, 8192), 1)
	assert.Equal(t, 3, m.Frames())

	levels := m.Flush()
	assert.Equal(t, levels.Left, levels.Right)
	assert.InDelta(t, -12.04, levels.Left, 0.01)
}

func TestMeterDropsPartialFrame(t *testing.T) {
	var m Meter
	m.Write(pcm(100, 100, 100), 2)
	assert.Equal(t, 1, m.Frames())
}

func TestMeterEmptyIsFloor(t *testing.T) {
	var m Meter
	assert.Equal(t, SilentLevels(), m.Flush())

	m.Write(pcm(0, 0), 1)
	levels := m.Flush()
	assert.Equal(t, MinDB, levels.Left)
	assert.Equal(t, MinDB, levels.PeakRight)
}

func TestPeakHolderHoldsThenFalls(t *testing.T) {
	p := NewPeakHolder(time.Second)
	now := time.Now()

	l, r := p.Update(-10, -20, now)
	assert.Equal(t, -10.0, l)
	assert.Equal(t, -20.0, r)

	l, _ = p.Update(-30, -30, now.Add(500*time.Millisecond))
	assert.Equal(t, -10.0, l)

	l, _ = p.Update(-30, -30, now.Add(2*time.Second))
	assert.Equal(t, -30.0, l)

	p.Reset()
	l, r = p.Update(MinDB, MinDB, now)
	assert.Equal(t, MinDB, l)
	assert.Equal(t, MinDB, r)
}

func TestFilterChain(t *testing.T) {
	assert.Equal(t, "", filterChain(CaptureRequest{}))
	assert.Equal(t, "afftdn,dynaudnorm", filterChain(CaptureRequest{AutoGainControl: true, NoiseSuppression: true}))
	assert.Equal(t, "dynaudnorm", filterChain(CaptureRequest{AutoGainControl: true}))
}

func TestBuildCaptureCommandWithFFmpeg(t *testing.T) {
	cmd, err := BuildCaptureCommand(CaptureRequest{
		Device:           "hw:1",
		Channels:         1,
		AutoGainControl:  true,
		NoiseSuppression: true,
	}, "/opt/ffmpeg")
	require.NoError(t, err)

	assert.Equal(t, "/opt/ffmpeg", cmd.Name)
	assert.Equal(t, "hw:1", cmd.Device)
	assert.Contains(t, cmd.Args, "afftdn,dynaudnorm")
	assert.Contains(t, cmd.Args, "pipe:1")
	assert.Equal(t, media.Constraints{AutoGainControl: true, NoiseSuppression: true, ChannelCount: 1}, cmd.Applied)
	assert.False(t, cmd.Applied.EchoCancellation)
}

func TestBuildCaptureCommandClampsChannels(t *testing.T) {
	cmd, err := BuildCaptureCommand(CaptureRequest{Device: "hw:0", Channels: 8}, "/opt/ffmpeg")
	require.NoError(t, err)
	assert.Equal(t, Channels, cmd.Applied.ChannelCount)
}

func TestDeviceListerParse(t *testing.T) {
	dl := &deviceLister{
		pattern: regexp.MustCompile(`card\s+(\d+):\s+(\w+)\s+\[([^\]]+)\]`),
		device: func(m []string) (media.Device, bool) {
			return media.Device{ID: "default:CARD=" + m[2], Name: m[3]}, true
		},
		fallback: []media.Device{{ID: "default"}},
	}
	out := "**** List of CAPTURE Hardware Devices ****\n" +
		"card 1: Headset [USB Headset], device 0: USB Audio [USB Audio]\n" +
		"  Subdevices: 1/1\n"
	assert.Equal(t, []media.Device{{ID: "default:CARD=Headset", Name: "USB Headset"}}, dl.parse(out))
	assert.Equal(t, []media.Device{{ID: "default"}}, dl.parse("nothing here"))
}

func TestDeviceListerSection(t *testing.T) {
	dl := &deviceLister{
		begin:   "audio devices:",
		end:     "video devices:",
		pattern: regexp.MustCompile(`\[(\d+)\]\s*(.+)`),
		device: func(m []string) (media.Device, bool) {
			return media.Device{ID: ":" + m[1], Name: m[2]}, true
		},
	}
	out := "[0] Camera\naudio devices:\n[0] Built-in Microphone\nvideo devices:\n[1] Screen\n"
	assert.Equal(t, []media.Device{{ID: ":0", Name: "Built-in Microphone"}}, dl.parse(out))
}

func TestDeviceListerWithoutCommandFallsBack(t *testing.T) {
	dl := &deviceLister{fallback: []media.Device{{ID: "default"}}}
	assert.Equal(t, []media.Device{{ID: "default"}}, dl.list(context.Background()))
}
