package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/oszuidwest/zwfm-voicenote/internal/blob"
	"github.com/oszuidwest/zwfm-voicenote/internal/eventlog"
	"github.com/oszuidwest/zwfm-voicenote/internal/media"
	"github.com/oszuidwest/zwfm-voicenote/internal/recorder"
	"github.com/oszuidwest/zwfm-voicenote/internal/server"
	"github.com/oszuidwest/zwfm-voicenote/internal/types"
	"github.com/oszuidwest/zwfm-voicenote/internal/util"
)

// defaultEventLimit is the page size of the event log endpoint.
const defaultEventLimit = 50

// API response helpers

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// recorderResponse is returned by every recorder API call.
type recorderResponse struct {
	Recorder types.SessionStatus `json:"recorder"`
	Artifact *types.Artifact     `json:"artifact,omitempty"`
}

// handleAPIStatus returns the session status.
// GET /api/recorder/status
func (s *Server) handleAPIStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, recorderResponse{Recorder: s.commands.SessionStatus()})
}

// handleAPIRecorder runs a control operation.
// POST /api/recorder/{start,pause,resume,stop,reset}
func (s *Server) handleAPIRecorder(w http.ResponseWriter, r *http.Request) {
	action := r.PathValue("action")

	// OnChange runs before the control call returns, so a new last artifact
	// means this call produced it. No-op transitions report none.
	before := s.LastArtifact()

	var err error
	switch action {
	case "start":
		err = s.commands.StartRecorder(r.Context())
	case "resume":
		err = s.recorder.Resume(r.Context())
	case "pause":
		s.recorder.Pause()
	case "stop":
		err = s.recorder.Stop()
	case "reset":
		err = s.recorder.Reset()
	default:
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown action %q", action))
		return
	}
	if err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}

	resp := recorderResponse{Recorder: s.commands.SessionStatus()}
	if a := s.LastArtifact(); a != nil && a != before {
		info := server.ArtifactInfo(a)
		resp.Artifact = &info
	}
	s.hub.notifyStatus()
	s.writeJSON(w, http.StatusOK, resp)
}

// statusForError maps recorder failures to HTTP status codes.
func statusForError(err error) int {
	var acqErr *media.AcquisitionError
	switch {
	case errors.Is(err, media.ErrUnsupportedEnvironment):
		return http.StatusNotImplemented
	case errors.As(err, &acqErr):
		return http.StatusServiceUnavailable
	case errors.Is(err, recorder.ErrSessionActive):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// handleBlob serves the payload behind a blob handle. With ?download=1 the
// browser saves it under a generated file name.
// GET /blobs/{id}, GET /api/blobs/{id}
func (s *Server) handleBlob(w http.ResponseWriter, r *http.Request) {
	b, ok := s.blobs.Resolve(blob.URLPrefix + r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", b.Type)
	w.Header().Set("Cache-Control", "no-store")
	if r.URL.Query().Get("download") == "1" {
		name := "voicenote-" + util.FileTimestamp(time.Now())
		if ext := media.Extension(b.Type); ext != "" {
			name += "." + ext
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	}
	http.ServeContent(w, r, "", time.Time{}, b.NewReader())
}

// handleAPIRevokeBlob releases a blob handle.
// DELETE /api/blobs/{id}
func (s *Server) handleAPIRevokeBlob(w http.ResponseWriter, r *http.Request) {
	url := blob.URLPrefix + r.PathValue("id")
	if _, ok := s.blobs.Resolve(url); !ok {
		s.writeError(w, http.StatusNotFound, "unknown blob")
		return
	}
	s.blobs.RevokeObjectURL(url)
	w.WriteHeader(http.StatusNoContent)
}

// handleAPIEvents returns recent session events, newest first.
// GET /api/events?limit=50&offset=0
func (s *Server) handleAPIEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		s.writeError(w, http.StatusNotFound, "session event log not configured")
		return
	}

	limit, err := queryInt(r, "limit", defaultEventLimit)
	if err != nil || limit < 1 || limit > eventlog.MaxReadLimit {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", eventlog.MaxReadLimit))
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		s.writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	events, more, err := eventlog.ReadLast(s.events.Path(), limit, offset)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"more":   more,
	})
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
