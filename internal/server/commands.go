package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-voicenote/internal/blob"
	"github.com/oszuidwest/zwfm-voicenote/internal/config"
	"github.com/oszuidwest/zwfm-voicenote/internal/eventlog"
	"github.com/oszuidwest/zwfm-voicenote/internal/media"
	"github.com/oszuidwest/zwfm-voicenote/internal/recorder"
	"github.com/oszuidwest/zwfm-voicenote/internal/types"
	"github.com/oszuidwest/zwfm-voicenote/internal/util"
)

// WSCommand is a command received from a WebSocket client.
type WSCommand struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// DeviceSelector is implemented by platforms whose input device can change at runtime.
type DeviceSelector interface {
	SetDevice(id string)
}

// CommandHandler processes WebSocket commands.
type CommandHandler struct {
	cfg             *config.Config
	recorder        *recorder.Manager
	blobs           *blob.Store
	platform        media.Platform
	events          *eventlog.Logger
	ffmpegAvailable bool

	mu      sync.RWMutex
	lastErr string
}

// NewCommandHandler creates a new command handler. events may be nil.
func NewCommandHandler(cfg *config.Config, rec *recorder.Manager, blobs *blob.Store, platform media.Platform, events *eventlog.Logger, ffmpegAvailable bool) *CommandHandler {
	return &CommandHandler{
		cfg:             cfg,
		recorder:        rec,
		blobs:           blobs,
		platform:        platform,
		events:          events,
		ffmpegAvailable: ffmpegAvailable,
	}
}

// Handle processes a WebSocket command and performs the requested action.
// Commands use slash-style format: namespace/action (e.g., "recorder/start", "audio/update")
func (h *CommandHandler) Handle(cmd WSCommand, send chan<- any, triggerStatusUpdate func()) {
	namespace, action, _ := strings.Cut(cmd.Type, "/")

	switch namespace {
	case "recorder":
		h.handleRecorder(action, cmd, send)
	case "blobs":
		h.handleBlobs(action, cmd, send)
	case "devices":
		h.handleDevices(action, cmd, send)
	case "audio":
		h.handleAudio(action, cmd, send)
	case "system":
		h.handleSystem(action, cmd, send)
	case "status":
		h.handleStatus(action, send)
	default:
		slog.Warn("unknown WebSocket command", "type", cmd.Type)
	}

	triggerStatusUpdate()
}

// --- Namespace handlers ---

// handleRecorder routes recorder/* commands
func (h *CommandHandler) handleRecorder(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "start":
		h.handleStart(cmd, send)
	case "pause":
		h.handlePause(cmd, send)
	case "resume":
		h.handleResume(cmd, send)
	case "stop":
		h.handleStop(cmd, send)
	case "reset":
		h.handleReset(cmd, send)
	case "extension":
		SendSuccess(send, cmd.Type, map[string]string{"extension": h.recorder.FileExtension()})
	case "status":
		SendSuccess(send, cmd.Type, h.SessionStatus())
	case "settings":
		h.handleRecorderSettings(cmd, send)
	default:
		slog.Warn("unknown recorder action", "action", action)
	}
}

// handleBlobs routes blobs/* commands
func (h *CommandHandler) handleBlobs(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "revoke":
		h.handleBlobRevoke(cmd, send)
	default:
		slog.Warn("unknown blobs action", "action", action)
	}
}

// handleDevices routes devices/* commands
func (h *CommandHandler) handleDevices(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "list":
		SendSuccess(send, cmd.Type, h.platform.Devices())
	default:
		slog.Warn("unknown devices action", "action", action)
	}
}

// handleAudio routes audio/* commands
func (h *CommandHandler) handleAudio(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "update":
		h.handleAudioUpdate(cmd, send)
	default:
		slog.Warn("unknown audio action", "action", action)
	}
}

// handleSystem routes system/* commands
func (h *CommandHandler) handleSystem(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "regenerate-key":
		h.handleRegenerateAPIKey(cmd, send)
	default:
		slog.Warn("unknown system action", "action", action)
	}
}

// handleStatus routes status/* commands
func (h *CommandHandler) handleStatus(action string, send chan<- any) {
	switch action {
	case "get":
		// Status is sent automatically, but explicit get triggers immediate update
		slog.Debug("status/get received, status update will be triggered")
	default:
		slog.Warn("unknown status action", "action", action)
	}
}

// --- Shared recorder operations ---

// StartRecorder starts or resumes a session and remembers the failure, if any.
func (h *CommandHandler) StartRecorder(ctx context.Context) error {
	err := h.recorder.Start(ctx)

	h.mu.Lock()
	if err != nil {
		h.lastErr = err.Error()
	} else {
		h.lastErr = ""
	}
	h.mu.Unlock()

	if err != nil {
		slog.Error("failed to start recording", "error", err)
		h.logEvent(eventlog.SessionStartFailed, "Start failed", &eventlog.SessionDetails{
			MimeType: h.recorder.Options().MimeType,
			Error:    startErrorKind(err),
		})
	}
	return err
}

// LastError returns the most recent start failure, or an empty string.
func (h *CommandHandler) LastError() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastErr
}

// SessionStatus summarizes the recorder for clients.
func (h *CommandHandler) SessionStatus() types.SessionStatus {
	st := types.SessionStatus{
		Status:    h.recorder.Status(),
		Extension: h.recorder.FileExtension(),
		Error:     h.LastError(),
	}
	if start := h.recorder.StartTime(); !start.IsZero() {
		st.StartedAt = start.Format(time.RFC3339)
		st.Uptime = util.FormatDuration(time.Since(start))
	}
	return st
}

// logEvent writes to the session event log when one is configured.
func (h *CommandHandler) logEvent(t eventlog.EventType, msg string, details *eventlog.SessionDetails) {
	if h.events == nil {
		return
	}
	if err := h.events.LogSession(t, msg, details); err != nil {
		slog.Warn("failed to write session event", "type", t, "error", err)
	}
}

// startErrorKind renders a start failure for the event log.
func startErrorKind(err error) string {
	var acqErr *media.AcquisitionError
	switch {
	case errors.Is(err, media.ErrUnsupportedEnvironment):
		return "unsupported: " + err.Error()
	case errors.As(err, &acqErr):
		return "acquisition: " + err.Error()
	default:
		return err.Error()
	}
}
