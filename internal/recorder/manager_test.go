package recorder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oszuidwest/zwfm-voicenote/internal/analysis"
	"github.com/oszuidwest/zwfm-voicenote/internal/blob"
	"github.com/oszuidwest/zwfm-voicenote/internal/media"
)

const waitTimeout = 2 * time.Second

func testOptions() Options {
	opts := DefaultOptions()
	opts.Timeslice = time.Millisecond
	opts.FFTSize = 32
	return opts
}

func newTestManager(t *testing.T, p *fakePlatform) (*Manager, *events, *blob.Store) {
	t.Helper()
	ev := newEvents()
	store := blob.NewStore()
	m, err := New(p, store, testOptions(), ev.callbacks())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Reset() })
	return m, ev, store
}

func waitChunk(t *testing.T, ev *events) []byte {
	t.Helper()
	select {
	case c := <-ev.chunks:
		return c
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for chunk")
		return nil
	}
}

func TestStartStopEndToEnd(t *testing.T) {
	p := newFakePlatform(media.MimeWebM, media.MimeWAV)
	m, ev, store := newTestManager(t, p)

	require.NoError(t, m.Start(context.Background()))
	enc := p.encoder(0)
	for _, c := range []string{"A", "B", "C"} {
		enc.emit(c)
		assert.Equal(t, []byte(c), waitChunk(t, ev))
	}
	require.NoError(t, m.Stop())

	statuses, changes, stops, pauses, starts := ev.snapshot()
	assert.Equal(t, []Status{StatusRecording, StatusStopped}, statuses)
	assert.Equal(t, 1, starts)
	assert.Empty(t, pauses)
	require.Len(t, stops, 1)
	require.Len(t, changes, 1)
	assert.Same(t, stops[0], changes[0])

	a := stops[0]
	require.False(t, a.Empty())
	assert.Equal(t, []byte("ABC"), a.Blob.Bytes())
	assert.Equal(t, media.MimeWebM, a.Blob.Type)
	assert.Equal(t, media.MimeWebM, a.Options.MimeType)
	assert.Equal(t, TerminationHost, a.Termination)
	assert.False(t, a.StopTime.Before(a.StartTime))

	resolved, ok := store.Resolve(a.URL)
	require.True(t, ok)
	assert.Same(t, a.Blob, resolved)
}

func TestChunksKeepArrivalOrderWithTrailer(t *testing.T) {
	p := newFakePlatform(media.MimeWAV)
	m, ev, _ := newTestManager(t, p)

	require.NoError(t, m.Start(context.Background()))
	enc := p.encoder(0)
	enc.trailer = []byte("!")
	enc.emit("one-")
	waitChunk(t, ev)
	enc.emit("two")
	require.NoError(t, m.Stop())

	_, _, stops, _, _ := ev.snapshot()
	require.Len(t, stops, 1)
	assert.Equal(t, "one-two!", string(stops[0].Blob.Bytes()))
}

func TestPauseResumeReusesStream(t *testing.T) {
	p := newFakePlatform(media.MimeWAV)
	m, ev, _ := newTestManager(t, p)

	require.NoError(t, m.Start(context.Background()))
	p.encoder(0).emit("A")
	waitChunk(t, ev)

	m.Pause()
	assert.Equal(t, StatusPaused, m.Status())
	_, changes, _, pauses, _ := ev.snapshot()
	require.Len(t, pauses, 1)
	require.Len(t, changes, 1)
	assert.Equal(t, []byte("A"), pauses[0].Blob.Bytes())
	assert.NotEmpty(t, pauses[0].URL)

	require.NoError(t, m.Resume(context.Background()))
	assert.Equal(t, StatusRecording, m.Status())
	assert.Equal(t, 1, p.acquireCount())
	assert.False(t, p.stream(0).closed.Load())

	statuses, _, _, _, starts := ev.snapshot()
	assert.Equal(t, []Status{StatusRecording, StatusPaused, StatusRecording}, statuses)
	assert.Equal(t, 1, starts)
}

func TestResumeWithEndedContextStaysPaused(t *testing.T) {
	p := newFakePlatform(media.MimeWAV)
	m, ev, _ := newTestManager(t, p)

	require.NoError(t, m.Start(context.Background()))
	m.Pause()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for range 20 {
		require.ErrorIs(t, m.Resume(ctx), context.Canceled)
		assert.Equal(t, StatusPaused, m.Status())
		m.mu.RLock()
		actx := m.session.actx
		m.mu.RUnlock()
		assert.Equal(t, analysis.StateSuspended, actx.State())
	}

	statuses, _, _, _, _ := ev.snapshot()
	assert.Equal(t, []Status{StatusRecording, StatusPaused}, statuses)

	require.NoError(t, m.Resume(context.Background()))
	assert.Equal(t, StatusRecording, m.Status())
	require.NoError(t, m.Stop())
}

func TestPauseKeepsBufferedChunks(t *testing.T) {
	p := newFakePlatform(media.MimeWAV)
	m, ev, _ := newTestManager(t, p)

	require.NoError(t, m.Start(context.Background()))
	enc := p.encoder(0)
	enc.emit("A")
	waitChunk(t, ev)
	m.Pause()

	require.NoError(t, m.Start(context.Background()))
	enc.emit("B")
	waitChunk(t, ev)
	require.NoError(t, m.Stop())

	_, _, stops, _, _ := ev.snapshot()
	require.Len(t, stops, 1)
	assert.Equal(t, []byte("AB"), stops[0].Blob.Bytes())
}

func TestResetEmitsEmptyArtifact(t *testing.T) {
	p := newFakePlatform(media.MimeWAV)
	m, ev, _ := newTestManager(t, p)

	require.NoError(t, m.Start(context.Background()))
	analyser := m.Analyser()
	require.NotNil(t, analyser)
	p.encoder(0).emit("discard me")
	waitChunk(t, ev)

	require.NoError(t, m.Reset())

	statuses, changes, stops, _, _ := ev.snapshot()
	assert.Equal(t, []Status{StatusRecording, StatusStopped}, statuses)
	assert.Empty(t, stops)
	require.Len(t, changes, 1)
	assert.True(t, changes[0].Empty())
	assert.Nil(t, changes[0].Blob)
	assert.Empty(t, changes[0].URL)

	assert.True(t, p.stream(0).closed.Load())
	assert.True(t, p.encoder(0).isClosed())
	assert.Nil(t, m.Analyser())
	select {
	case <-analyser.Done():
	default:
		t.Fatal("analysis context still open after reset")
	}
}

func TestResetWhileStopped(t *testing.T) {
	p := newFakePlatform(media.MimeWAV)
	m, ev, _ := newTestManager(t, p)

	require.NoError(t, m.Reset())

	statuses, changes, _, _, _ := ev.snapshot()
	assert.Empty(t, statuses)
	require.Len(t, changes, 1)
	assert.True(t, changes[0].Empty())
	assert.Equal(t, StatusStopped, m.Status())
}

func TestStopReleasesAndRestartAcquiresFresh(t *testing.T) {
	p := newFakePlatform(media.MimeWAV)
	m, _, _ := newTestManager(t, p)

	require.NoError(t, m.Start(context.Background()))
	analyser := m.Analyser()
	require.NoError(t, m.Stop())

	assert.True(t, p.stream(0).closed.Load())
	assert.True(t, p.encoder(0).isClosed())
	assert.Nil(t, m.Analyser())
	assert.True(t, m.StartTime().IsZero())
	select {
	case <-analyser.Done():
	default:
		t.Fatal("analysis context still open after stop")
	}

	require.NoError(t, m.Stop())

	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, 2, p.acquireCount())
	assert.NotSame(t, p.stream(0), p.stream(1))
}

func TestFileExtensionFollowsNegotiation(t *testing.T) {
	p := newFakePlatform(media.MimeWAV)
	m, ev, _ := newTestManager(t, p)
	assert.Empty(t, m.FileExtension())

	opts := testOptions()
	opts.MimeType = "audio/webm;codecs=opus"
	require.NoError(t, m.SetOptions(opts))
	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, "wav", m.FileExtension())
	require.NoError(t, m.Stop())

	assert.Equal(t, "wav", m.FileExtension())
	_, _, stops, _, _ := ev.snapshot()
	require.Len(t, stops, 1)
	assert.Equal(t, media.MimeWAV, stops[0].Options.MimeType)
	assert.Equal(t, media.MimeWAV, stops[0].Blob.Type)
}

func TestRequestedContainerHonoured(t *testing.T) {
	p := newFakePlatform(media.MimeMP4, media.MimeOgg)
	m, _, _ := newTestManager(t, p)

	opts := testOptions()
	opts.MimeType = media.MimeOgg
	require.NoError(t, m.SetOptions(opts))
	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, "ogg", m.FileExtension())
}

func TestPreferenceOrderWithoutRequest(t *testing.T) {
	p := newFakePlatform(media.MimeWAV, media.MimeMP4)
	m, _, _ := newTestManager(t, p)

	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, "mp4", m.FileExtension())
}

func TestInvalidTransitionsAreNoops(t *testing.T) {
	p := newFakePlatform(media.MimeWAV)
	m, ev, _ := newTestManager(t, p)

	m.Pause()
	require.NoError(t, m.Resume(context.Background()))
	require.NoError(t, m.Stop())
	assert.Equal(t, StatusStopped, m.Status())

	require.NoError(t, m.Start(context.Background()))
	p.encoder(0).emit("A")
	waitChunk(t, ev)
	require.NoError(t, m.Resume(context.Background()))
	assert.Equal(t, StatusRecording, m.Status())

	require.NoError(t, m.Stop())
	statuses, changes, _, _, _ := ev.snapshot()
	assert.Equal(t, []Status{StatusRecording, StatusStopped}, statuses)
	require.Len(t, changes, 1)
	assert.Equal(t, []byte("A"), changes[0].Blob.Bytes())
}

func TestStartWhileRecordingIgnored(t *testing.T) {
	p := newFakePlatform(media.MimeWAV)
	m, ev, _ := newTestManager(t, p)

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Start(context.Background()))

	assert.Equal(t, 1, p.acquireCount())
	assert.Equal(t, StatusRecording, m.Status())
	statuses, _, _, _, starts := ev.snapshot()
	assert.Equal(t, []Status{StatusRecording}, statuses)
	assert.Equal(t, 1, starts)
}

func TestStartErrors(t *testing.T) {
	denied := errors.New("permission denied")

	tests := []struct {
		name     string
		platform *fakePlatform
		check    func(t *testing.T, err error)
	}{
		{
			name:     "no capture facility",
			platform: &fakePlatform{unavailable: true, supported: []string{media.MimeWAV}},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, media.ErrUnsupportedEnvironment)
			},
		},
		{
			name:     "no supported container",
			platform: newFakePlatform(),
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, media.ErrUnsupportedEnvironment)
			},
		},
		{
			name:     "device error passes through",
			platform: &fakePlatform{supported: []string{media.MimeWAV}, acquireErr: &media.AcquisitionError{Device: "hw:1", Err: denied}},
			check: func(t *testing.T, err error) {
				var acqErr *media.AcquisitionError
				require.ErrorAs(t, err, &acqErr)
				assert.Equal(t, "hw:1", acqErr.Device)
				assert.ErrorIs(t, err, denied)
			},
		},
		{
			name:     "plain error becomes acquisition error",
			platform: &fakePlatform{supported: []string{media.MimeWAV}, acquireErr: denied},
			check: func(t *testing.T, err error) {
				var acqErr *media.AcquisitionError
				require.ErrorAs(t, err, &acqErr)
				assert.ErrorIs(t, err, denied)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ev, _ := newTestManager(t, tt.platform)

			err := m.Start(context.Background())
			require.Error(t, err)
			tt.check(t, err)

			assert.Equal(t, StatusStopped, m.Status())
			assert.Empty(t, m.FileExtension())
			statuses, _, _, _, starts := ev.snapshot()
			assert.Empty(t, statuses)
			assert.Zero(t, starts)
		})
	}
}

func TestDeviceEndStopsSession(t *testing.T) {
	p := newFakePlatform(media.MimeWAV)
	m, ev, _ := newTestManager(t, p)

	require.NoError(t, m.Start(context.Background()))
	p.encoder(0).emit("tail")
	waitChunk(t, ev)

	p.stream(0).end()

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, m.WaitStatus(ctx, StatusStopped))

	require.Eventually(t, func() bool {
		_, _, stops, _, _ := ev.snapshot()
		return len(stops) == 1
	}, waitTimeout, time.Millisecond)

	statuses, changes, stops, _, _ := ev.snapshot()
	assert.Equal(t, TerminationDevice, stops[0].Termination)
	assert.Equal(t, []byte("tail"), stops[0].Blob.Bytes())
	require.Len(t, changes, 1)
	assert.Equal(t, []Status{StatusRecording, StatusStopped}, statuses)
	assert.True(t, p.stream(0).closed.Load())
}

func TestStatusCallbackMatchesState(t *testing.T) {
	p := newFakePlatform(media.MimeWAV)
	var m *Manager
	var mismatches []string

	cb := Callbacks{HandleStatus: func(s Status) {
		if got := m.Status(); got != s {
			mismatches = append(mismatches, string(s)+"!="+string(got))
		}
	}}
	m, err := New(p, nil, testOptions(), cb)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	m.Pause()
	require.NoError(t, m.Resume(ctx))
	m.Pause()
	require.NoError(t, m.Stop())
	require.NoError(t, m.Start(ctx))
	require.NoError(t, m.Reset())

	assert.Empty(t, mismatches)
}

func TestStreamFeedsAnalyser(t *testing.T) {
	p := newFakePlatform(media.MimeWAV)
	m, _, _ := newTestManager(t, p)

	require.NoError(t, m.Start(context.Background()))
	frame := []byte{0x00, 0x40, 0x00, 0x40} // stereo, both channels 16384
	p.stream(0).data <- frame

	analyser := m.Analyser()
	require.Eventually(t, func() bool {
		out := make([]float32, 1)
		analyser.FloatTimeDomainData(out)
		return out[0] == 0.5
	}, waitTimeout, time.Millisecond)
}

func TestSetOptions(t *testing.T) {
	p := newFakePlatform(media.MimeWAV)
	m, _, _ := newTestManager(t, p)

	bad := testOptions()
	bad.FFTSize = 100
	assert.Error(t, m.SetOptions(bad))

	bad = testOptions()
	bad.Constraints.ChannelCount = 6
	assert.Error(t, m.SetOptions(bad))

	require.NoError(t, m.Start(context.Background()))
	assert.ErrorIs(t, m.SetOptions(testOptions()), ErrSessionActive)
}

func TestNewAppliesDefaults(t *testing.T) {
	m, err := New(newFakePlatform(media.MimeWAV), nil, Options{}, Callbacks{})
	require.NoError(t, err)

	opts := m.Options()
	assert.Equal(t, DefaultAudioBitsPerSecond, opts.AudioBitsPerSecond)
	assert.Equal(t, DefaultTimeslice, opts.Timeslice)
	assert.Equal(t, 512, opts.FFTSize)
	assert.Equal(t, 2, opts.Constraints.ChannelCount)
}

func TestSessionOptionsReportNegotiation(t *testing.T) {
	p := newFakePlatform(media.MimeWAV)
	m, _, _ := newTestManager(t, p)

	_, ok := m.SessionOptions()
	assert.False(t, ok)

	require.NoError(t, m.Start(context.Background()))
	opts, ok := m.SessionOptions()
	require.True(t, ok)
	assert.Equal(t, media.MimeWAV, opts.MimeType)
	assert.Empty(t, m.Options().MimeType)

	require.NoError(t, m.Stop())
	_, ok = m.SessionOptions()
	assert.False(t, ok)
}
