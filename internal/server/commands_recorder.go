package server

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oszuidwest/zwfm-voicenote/internal/recorder"
)

// --- Session control handlers ---

// handleStart processes a recorder/start command. Acquisition can block until
// the device delivers audio, so the command runs asynchronously.
func (h *CommandHandler) handleStart(cmd WSCommand, send chan<- any) {
	HandleActionAsync(cmd, send, func() (any, error) {
		if err := h.StartRecorder(context.Background()); err != nil {
			return nil, err
		}
		return h.SessionStatus(), nil
	}, nil)
}

// handlePause processes a recorder/pause command.
func (h *CommandHandler) handlePause(cmd WSCommand, send chan<- any) {
	h.recorder.Pause()
	SendSuccess(send, cmd.Type, h.SessionStatus())
}

// handleResume processes a recorder/resume command.
func (h *CommandHandler) handleResume(cmd WSCommand, send chan<- any) {
	HandleActionAsync(cmd, send, func() (any, error) {
		if err := h.recorder.Resume(context.Background()); err != nil {
			return nil, err
		}
		return h.SessionStatus(), nil
	}, nil)
}

// handleStop processes a recorder/stop command.
func (h *CommandHandler) handleStop(cmd WSCommand, send chan<- any) {
	if err := h.recorder.Stop(); err != nil {
		SendError(send, cmd.Type, err)
		return
	}
	SendSuccess(send, cmd.Type, h.SessionStatus())
}

// handleReset processes a recorder/reset command.
func (h *CommandHandler) handleReset(cmd WSCommand, send chan<- any) {
	if err := h.recorder.Reset(); err != nil {
		SendError(send, cmd.Type, err)
		return
	}
	SendSuccess(send, cmd.Type, h.SessionStatus())
}

// --- Blob handlers ---

// errUnknownBlob is returned when a revoke names a handle that is not live.
var errUnknownBlob = errors.New("unknown blob url")

// handleBlobRevoke processes a blobs/revoke command.
func (h *CommandHandler) handleBlobRevoke(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *BlobRevokeRequest) (any, error) {
		if _, ok := h.blobs.Resolve(req.URL); !ok {
			return nil, errUnknownBlob
		}
		h.blobs.RevokeObjectURL(req.URL)
		slog.Debug("blob revoked", "url", req.URL)
		return nil, nil
	})
}

// --- Recorder settings ---

// handleRecorderSettings processes a recorder/settings command. Options are
// fixed for the life of a session, so changes are refused while one is active.
func (h *CommandHandler) handleRecorderSettings(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *RecorderSettingsRequest) (any, error) {
		if h.recorder.Status() != recorder.StatusStopped {
			return nil, recorder.ErrSessionActive
		}

		snap := h.cfg.Snapshot()
		rc := snap.Recorder
		req.apply(&rc)
		if err := h.cfg.SetRecorder(rc); err != nil {
			return nil, err
		}

		snap = h.cfg.Snapshot()
		if err := h.recorder.SetOptions(snap.RecorderOptions()); err != nil {
			return nil, err
		}
		slog.Info("recorder settings updated", "mime_type", rc.MimeType, "bps", rc.AudioBitsPerSecond)
		return h.recorder.Options(), nil
	})
}
