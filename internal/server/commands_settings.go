package server

import (
	"log/slog"

	"github.com/oszuidwest/zwfm-voicenote/internal/config"
)

// handleAudioUpdate selects the input device for the next session. A
// running session keeps the stream it opened.
func (h *CommandHandler) handleAudioUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *AudioUpdateRequest) (any, error) {
		if req.Input == "" {
			return nil, nil
		}
		if err := h.cfg.SetAudioInput(req.Input); err != nil {
			return nil, err
		}
		if sel, ok := h.platform.(DeviceSelector); ok {
			sel.SetDevice(req.Input)
		}
		slog.Info("audio input changed", "input", req.Input)
		return map[string]string{"input": req.Input}, nil
	})
}

// handleRegenerateAPIKey replaces the REST API key. Clients holding the old
// key are rejected from then on.
func (h *CommandHandler) handleRegenerateAPIKey(cmd WSCommand, send chan<- any) {
	HandleActionAsync(cmd, send, func() (any, error) {
		key, err := config.GenerateAPIKey()
		if err == nil {
			err = h.cfg.SetAPIKey(key)
		}
		if err != nil {
			return nil, err
		}
		slog.Info("API key regenerated")
		return map[string]string{"api_key": key}, nil
	}, nil)
}
