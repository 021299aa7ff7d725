package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oszuidwest/zwfm-voicenote/internal/audio"
	"github.com/oszuidwest/zwfm-voicenote/internal/blob"
	"github.com/oszuidwest/zwfm-voicenote/internal/config"
	"github.com/oszuidwest/zwfm-voicenote/internal/eventlog"
	"github.com/oszuidwest/zwfm-voicenote/internal/media"
	"github.com/oszuidwest/zwfm-voicenote/internal/recorder"
	"github.com/oszuidwest/zwfm-voicenote/internal/server"
	"github.com/oszuidwest/zwfm-voicenote/internal/types"
	"github.com/oszuidwest/zwfm-voicenote/internal/waveform"
)

// Server is an HTTP server that provides the web interface for the recorder.
type Server struct {
	config          *config.Config
	platform        media.Platform
	blobs           *blob.Store
	recorder        *recorder.Manager
	events          *eventlog.Logger
	sessions        *server.SessionManager
	commands        *server.CommandHandler
	hub             *hub
	version         *VersionChecker
	ffmpegAvailable bool

	// Bytes buffered by the current session, for chunk pushes.
	buffered atomic.Int64

	mu           sync.RWMutex
	lastArtifact *recorder.Artifact
	lastStatus   recorder.Status

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer returns a new Server recording from p. events may be nil.
func NewServer(cfg *config.Config, p media.Platform, events *eventlog.Logger, ffmpegAvailable bool) (*Server, error) {
	s := &Server{
		config:          cfg,
		platform:        p,
		blobs:           blob.NewStore(),
		events:          events,
		sessions:        server.NewSessionManager(),
		hub:             newHub(),
		version:         NewVersionChecker(),
		ffmpegAvailable: ffmpegAvailable,
		lastStatus:      recorder.StatusStopped,
	}

	snap := cfg.Snapshot()
	rec, err := recorder.New(p, s.blobs, snap.RecorderOptions(), s.recorderCallbacks())
	if err != nil {
		return nil, fmt.Errorf("create recorder: %w", err)
	}
	s.recorder = rec
	s.commands = server.NewCommandHandler(cfg, rec, s.blobs, p, events, ffmpegAvailable)
	return s, nil
}

// recorderCallbacks pushes session events to clients and the event log.
// They run serialized by the recorder, except OnData.
func (s *Server) recorderCallbacks() recorder.Callbacks {
	return recorder.Callbacks{
		OnStart: func() {
			s.buffered.Store(0)
			opts, _ := s.recorder.SessionOptions()
			s.logEvent(eventlog.SessionStarted, "Recording started", &eventlog.SessionDetails{
				MimeType: opts.MimeType,
				Device:   s.config.AudioInput(),
			})
		},
		OnPause: func(a *recorder.Artifact) {
			s.hub.broadcast(server.NewArtifactResponse("pause", a))
			s.logEvent(eventlog.SessionPaused, "Recording paused", artifactDetails(a))
		},
		OnStop: func(a *recorder.Artifact) {
			s.hub.broadcast(server.NewArtifactResponse("stop", a))
			if a.Termination == recorder.TerminationDevice {
				s.logEvent(eventlog.SessionDeviceEnded, "Input device ended", artifactDetails(a))
			} else {
				s.logEvent(eventlog.SessionStopped, "Recording stopped", artifactDetails(a))
			}
			s.buffered.Store(0)
		},
		OnChange: func(a *recorder.Artifact) {
			s.mu.Lock()
			s.lastArtifact = a
			s.mu.Unlock()

			if a.Empty() {
				s.hub.broadcast(server.NewArtifactResponse("reset", a))
				s.logEvent(eventlog.SessionReset, "Recording discarded", nil)
				s.buffered.Store(0)
			}
		},
		OnData: func(chunk []byte) {
			total := s.buffered.Add(int64(len(chunk)))
			s.hub.broadcast(types.WSChunkResponse{Type: "chunk", Size: len(chunk), Total: int(total)})
		},
		HandleStatus: func(st recorder.Status) {
			s.mu.Lock()
			prev := s.lastStatus
			s.lastStatus = st
			s.mu.Unlock()

			if prev == recorder.StatusPaused && st == recorder.StatusRecording {
				s.logEvent(eventlog.SessionResumed, "Recording resumed", nil)
			}
			s.hub.notifyStatus()
		},
	}
}

// artifactDetails summarizes an artifact for the event log.
func artifactDetails(a *recorder.Artifact) *eventlog.SessionDetails {
	info := server.ArtifactInfo(a)
	return &eventlog.SessionDetails{
		MimeType:   info.MimeType,
		SizeBytes:  info.Size,
		DurationMs: info.DurationMs,
		URL:        info.URL,
	}
}

func (s *Server) logEvent(t eventlog.EventType, msg string, details *eventlog.SessionDetails) {
	if s.events == nil {
		return
	}
	if err := s.events.LogSession(t, msg, details); err != nil {
		slog.Warn("failed to write session event", "type", t, "error", err)
	}
}

// LastArtifact returns the artifact of the most recent pause, stop or reset.
func (s *Server) LastArtifact() *recorder.Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastArtifact
}

// currentLevels reads the analyser of the active session.
func (s *Server) currentLevels() audio.AudioLevels {
	if a := s.recorder.Analyser(); a != nil {
		return a.Levels()
	}
	return audio.SilentLevels()
}

// buildWSStatus returns the current WebSocket status response.
func (s *Server) buildWSStatus() types.WSStatusResponse {
	cfg := s.config.Snapshot()

	return types.WSStatusResponse{
		Type:            "status",
		FFmpegAvailable: s.ffmpegAvailable,
		Supported:       s.platform.Available(),
		Recorder:        s.commands.SessionStatus(),
		MimeTypes:       supportedMimeTypes(s.platform),
		Devices:         s.platform.Devices(),
		BlobCount:       s.blobs.Len(),
		Settings: types.WSSettings{
			AudioInput: cfg.AudioInput,
			Platform:   runtime.GOOS,
			Recorder:   s.recorder.Options(),
			APIKey:     cfg.APIKey,
		},
		Version: s.version.Info(),
	}
}

// supportedMimeTypes lists the containers p can produce, in preference order.
func supportedMimeTypes(p media.Platform) []string {
	var out []string
	for _, m := range media.MimeTypes() {
		if p.IsTypeSupported(m) {
			out = append(out, m)
		}
	}
	return out
}

// runWaveform renders waveform frames while a session records and at least
// one client is connected.
func (s *Server) runWaveform(ctx context.Context) {
	defer s.wg.Done()

	snap := s.config.Snapshot()
	opts := snap.WaveformOptions()
	interval := snap.FrameInterval()
	img := waveform.NewImage(opts.Width, opts.Height)

	active := func() bool {
		return s.recorder.Status() == recorder.StatusRecording && s.hub.count() > 0
	}

	for {
		if err := s.recorder.WaitStatus(ctx, recorder.StatusRecording); err != nil {
			return
		}

		if a := s.recorder.Analyser(); a != nil {
			r, err := waveform.New(img, a, opts)
			if err != nil {
				slog.Error("waveform renderer unavailable", "error", err)
				return
			}
			err = r.Run(ctx, active, interval, func() {
				url, err := waveform.DataURL(img)
				if err != nil {
					slog.Warn("failed to encode waveform frame", "error", err)
					return
				}
				s.hub.broadcast(types.WSWaveformResponse{Type: "waveform", Image: url})
			})
			if errors.Is(err, context.Canceled) {
				return
			}
		}

		// Idle until the next check; a session may still be recording
		// without clients.
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// SetupRoutes returns the application's HTTP handler. The REST API checks
// the API key; browser pages require a login session.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()
	auth := s.sessions.AuthMiddleware()

	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)
	mux.Handle("GET /style.css", staticAssets)
	mux.HandleFunc("GET /favicon.svg", s.handleFavicon)

	mux.HandleFunc("GET /api/recorder/status", s.apiKeyAuth(s.handleAPIStatus))
	mux.HandleFunc("POST /api/recorder/{action}", s.apiKeyAuth(s.handleAPIRecorder))
	mux.HandleFunc("GET /api/blobs/{id}", s.apiKeyAuth(s.handleBlob))
	mux.HandleFunc("DELETE /api/blobs/{id}", s.apiKeyAuth(s.handleAPIRevokeBlob))
	mux.HandleFunc("GET /api/events", s.apiKeyAuth(s.handleAPIEvents))

	mux.HandleFunc("/ws", auth(s.handleWebSocket))
	mux.HandleFunc("GET "+server.BlobPath+"{id}", auth(s.handleBlob))
	mux.HandleFunc("GET /app.js", auth(staticAssets.ServeHTTP))
	mux.HandleFunc("/", auth(s.handleIndex))

	return securityHeaders(mux)
}

// Start begins the HTTP server and the background workers.
// Returns an *http.Server that can be used for graceful shutdown.
func (s *Server) Start(ctx context.Context) *http.Server {
	ctx, s.cancel = context.WithCancel(ctx)
	s.version.Start(ctx)
	s.wg.Add(1)
	go s.runWaveform(ctx)

	addr := fmt.Sprintf(":%d", s.config.Snapshot().WebPort)
	slog.Info("starting web server", "addr", addr)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	return srv
}

// Close stops the background workers, finalizes an active session and
// closes the event log.
func (s *Server) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.version.Stop()

	if s.recorder.Status() != recorder.StatusStopped {
		if err := s.recorder.Stop(); err != nil {
			slog.Error("error stopping recorder", "error", err)
		}
	}

	if s.events != nil {
		if err := s.events.Close(); err != nil {
			slog.Error("error closing event log", "error", err)
		}
	}
}
