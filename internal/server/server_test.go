package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oszuidwest/zwfm-voicenote/internal/blob"
	"github.com/oszuidwest/zwfm-voicenote/internal/config"
	"github.com/oszuidwest/zwfm-voicenote/internal/media"
	"github.com/oszuidwest/zwfm-voicenote/internal/recorder"
	"github.com/oszuidwest/zwfm-voicenote/internal/types"
)

// stubPlatform has no working capture device.
type stubPlatform struct {
	available bool

	mu     sync.Mutex
	device string
}

func (p *stubPlatform) Available() bool                 { return p.available }
func (p *stubPlatform) IsTypeSupported(mime string) bool { return mime == "audio/wav" }

func (p *stubPlatform) Acquire(context.Context, media.Constraints) (media.Stream, error) {
	return nil, errors.New("no such device")
}

func (p *stubPlatform) NewEncoder(media.EncoderConfig) (media.Encoder, error) {
	return nil, errors.New("unsupported")
}

func (p *stubPlatform) Devices() []media.Device {
	return []media.Device{{ID: "hw:0", Name: "Built-in"}}
}

func (p *stubPlatform) SetDevice(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.device = id
}

type fixture struct {
	cfg      *config.Config
	platform *stubPlatform
	blobs    *blob.Store
	recorder *recorder.Manager
	handler  *CommandHandler
	send     chan any
}

func newFixture(t *testing.T, available bool) *fixture {
	t.Helper()

	cfg := config.New(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, cfg.Load())

	p := &stubPlatform{available: available}
	blobs := blob.NewStore()
	rec, err := recorder.New(p, blobs, recorder.DefaultOptions(), recorder.Callbacks{})
	require.NoError(t, err)

	return &fixture{
		cfg:      cfg,
		platform: p,
		blobs:    blobs,
		recorder: rec,
		handler:  NewCommandHandler(cfg, rec, blobs, p, nil, false),
		send:     make(chan any, 8),
	}
}

func (f *fixture) do(t *testing.T, cmdType string, data string) any {
	t.Helper()
	cmd := WSCommand{Type: cmdType}
	if data != "" {
		cmd.Data = json.RawMessage(data)
	}
	f.handler.Handle(cmd, f.send, func() {})

	select {
	case msg := <-f.send:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("no response to %s", cmdType)
		return nil
	}
}

func requireSuccess(t *testing.T, msg any) types.WSCommandResult {
	t.Helper()
	res, ok := msg.(types.WSCommandResult)
	require.True(t, ok, "unexpected response %#v", msg)
	require.True(t, res.Success)
	return res
}

func requireFailure(t *testing.T, msg any) string {
	t.Helper()
	res, ok := msg.(commandError)
	require.True(t, ok, "unexpected response %#v", msg)
	assert.False(t, res.Success)
	assert.True(t, strings.HasSuffix(res.Type, "_result"))
	return res.Error
}

func TestExtensionBeforeStart(t *testing.T) {
	f := newFixture(t, true)

	res := requireSuccess(t, f.do(t, "recorder/extension", ""))
	assert.Equal(t, map[string]string{"extension": ""}, res.Data)
	assert.Equal(t, "recorder/extension_result", res.Type)
}

func TestStartUnsupportedEnvironment(t *testing.T) {
	f := newFixture(t, false)

	msg := requireFailure(t, f.do(t, "recorder/start", ""))
	assert.Equal(t, media.ErrUnsupportedEnvironment.Error(), msg)
	assert.Equal(t, media.ErrUnsupportedEnvironment.Error(), f.handler.LastError())
	assert.Equal(t, recorder.StatusStopped, f.recorder.Status())
}

func TestStartAcquisitionFailure(t *testing.T) {
	f := newFixture(t, true)

	err := f.handler.StartRecorder(context.Background())
	var acqErr *media.AcquisitionError
	require.ErrorAs(t, err, &acqErr)
	assert.NotEmpty(t, f.handler.LastError())
	assert.Equal(t, recorder.StatusStopped, f.handler.SessionStatus().Status)
}

func TestControlWhileStoppedIsNoop(t *testing.T) {
	f := newFixture(t, true)

	for _, cmd := range []string{"recorder/pause", "recorder/stop", "recorder/reset"} {
		res := requireSuccess(t, f.do(t, cmd, ""))
		status, ok := res.Data.(types.SessionStatus)
		require.True(t, ok)
		assert.Equal(t, recorder.StatusStopped, status.Status, cmd)
	}
}

func TestRecorderSettings(t *testing.T) {
	f := newFixture(t, true)

	res := requireSuccess(t, f.do(t, "recorder/settings", `{"mime_type":"audio/wav","audio_bits_per_second":64000,"noise_suppression":false}`))
	opts, ok := res.Data.(recorder.Options)
	require.True(t, ok)
	assert.Equal(t, "audio/wav", opts.MimeType)
	assert.Equal(t, 64000, opts.AudioBitsPerSecond)
	assert.False(t, opts.Constraints.NoiseSuppression)
	assert.True(t, opts.Constraints.EchoCancellation)

	snap := f.cfg.Snapshot()
	assert.Equal(t, "audio/wav", snap.Recorder.MimeType)
	assert.Equal(t, 64000, snap.Recorder.AudioBitsPerSecond)
}

func TestRecorderSettingsValidation(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		field string
	}{
		{"channel count", `{"channel_count":3}`, "channel_count"},
		{"bitrate", `{"audio_bits_per_second":100}`, "audio_bits_per_second"},
		{"mime type", `{"mime_type":"video/mp4"}`, "mime_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)

			res, ok := f.do(t, "recorder/settings", tt.data).(types.WSCommandResult)
			require.True(t, ok)
			assert.False(t, res.Success)
			require.NotNil(t, res.Error)
			require.Len(t, res.Error.Errors, 1)
			assert.Equal(t, tt.field, res.Error.Errors[0].Field)
		})
	}
}

func TestRecorderSettingsMalformedJSON(t *testing.T) {
	f := newFixture(t, true)
	msg := requireFailure(t, f.do(t, "recorder/settings", `{"mime_type":`))
	assert.Contains(t, msg, "invalid JSON")
}

func TestBlobRevoke(t *testing.T) {
	f := newFixture(t, true)
	url := f.blobs.CreateObjectURL(blob.New([][]byte{[]byte("abc")}, "audio/wav"))

	requireSuccess(t, f.do(t, "blobs/revoke", `{"url":"`+url+`"}`))
	_, ok := f.blobs.Resolve(url)
	assert.False(t, ok)

	msg := requireFailure(t, f.do(t, "blobs/revoke", `{"url":"`+url+`"}`))
	assert.Equal(t, errUnknownBlob.Error(), msg)

	res, ok := f.do(t, "blobs/revoke", `{"url":"http://example.com"}`).(types.WSCommandResult)
	require.True(t, ok)
	require.NotNil(t, res.Error)
	assert.Equal(t, "url", res.Error.Errors[0].Field)
}

func TestDevicesAndAudioUpdate(t *testing.T) {
	f := newFixture(t, true)

	res := requireSuccess(t, f.do(t, "devices/list", ""))
	assert.Equal(t, f.platform.Devices(), res.Data)

	requireSuccess(t, f.do(t, "audio/update", `{"input":"hw:1"}`))
	assert.Equal(t, "hw:1", f.cfg.AudioInput())
	f.platform.mu.Lock()
	assert.Equal(t, "hw:1", f.platform.device)
	f.platform.mu.Unlock()
}

func TestRegenerateAPIKey(t *testing.T) {
	f := newFixture(t, true)

	res := requireSuccess(t, f.do(t, "system/regenerate-key", ""))
	data, ok := res.Data.(map[string]string)
	require.True(t, ok)
	assert.Len(t, data["api_key"], 32)
	assert.Equal(t, data["api_key"], f.cfg.APIKey())
}

func TestUnknownCommandTriggersStatus(t *testing.T) {
	f := newFixture(t, true)
	called := false
	f.handler.Handle(WSCommand{Type: "bogus/thing"}, f.send, func() { called = true })
	assert.True(t, called)
	assert.Empty(t, f.send)
}

func TestArtifactInfo(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	b := blob.New([][]byte{[]byte("ABC")}, "audio/wav")
	a := &recorder.Artifact{
		Blob:      b,
		URL:       "blob:1234",
		StartTime: start,
		StopTime:  start.Add(1500 * time.Millisecond),
	}

	info := ArtifactInfo(a)
	assert.Equal(t, "/blobs/1234", info.Href)
	assert.Equal(t, "wav", info.Extension)
	assert.Equal(t, 3, info.Size)
	assert.Equal(t, int64(1500), info.DurationMs)

	reset := ArtifactInfo(&recorder.Artifact{StopTime: start})
	assert.Empty(t, reset.URL)
	assert.Empty(t, reset.Href)
	assert.Zero(t, reset.Size)
	assert.Empty(t, reset.StartTime)
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		origin string
		host   string
		want   bool
	}{
		{"", "example.com", true},
		{"http://localhost:3000", "example.com", true},
		{"http://192.168.1.10", "example.com", true},
		{"https://example.com", "example.com:8080", true},
		{"https://evil.example", "example.com", false},
		{"://bad", "example.com", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.Host = tt.host
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, checkOrigin(r), tt.origin)
	}
}

func TestSessionLoginLogout(t *testing.T) {
	sm := NewSessionManager()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/login", nil)
	assert.False(t, sm.Login(w, r, "admin", "wrong", "admin", "secret"))
	assert.True(t, sm.Login(w, r, "admin", "secret", "admin", "secret"))
	assert.Equal(t, 1, sm.Count())

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookieName, cookies[0].Name)
	assert.True(t, sm.Validate(cookies[0].Value))

	protected := sm.AuthMiddleware()(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec := httptest.NewRecorder()
	protected(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	sm.Logout(httptest.NewRecorder(), req)
	assert.False(t, sm.Validate(cookies[0].Value))

	rec = httptest.NewRecorder()
	protected(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestCSRFTokenSingleUse(t *testing.T) {
	sm := NewSessionManager()
	token := sm.CreateCSRFToken()
	require.NotEmpty(t, token)
	assert.True(t, sm.ValidateCSRFToken(token))
	assert.False(t, sm.ValidateCSRFToken(token))
	assert.False(t, sm.ValidateCSRFToken(""))
}

func TestTokenSetExpiry(t *testing.T) {
	ts := newTokenSet(time.Minute)
	now := time.Now()
	ts.add("old", now)
	assert.True(t, ts.live("old", now.Add(30*time.Second)))
	assert.False(t, ts.live("old", now.Add(2*time.Minute)))
	assert.NotContains(t, ts.expires, "old")

	ts.add("a", now)
	ts.add("b", now.Add(2*time.Minute))
	assert.NotContains(t, ts.expires, "a", "expired tokens are swept on add")
	assert.Contains(t, ts.expires, "b")
}

func TestCredentialsMatch(t *testing.T) {
	assert.True(t, credentialsMatch("admin", "pw", "admin", "pw"))
	assert.False(t, credentialsMatch("admin", "x", "admin", "pw"))
	assert.False(t, credentialsMatch("root", "pw", "admin", "pw"))
	assert.False(t, credentialsMatch("", "", "admin", "pw"))
}
