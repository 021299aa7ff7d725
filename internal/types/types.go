// Package types provides shared type definitions for the web interface.
package types

import (
	"github.com/oszuidwest/zwfm-voicenote/internal/audio"
	"github.com/oszuidwest/zwfm-voicenote/internal/media"
	"github.com/oszuidwest/zwfm-voicenote/internal/recorder"
)

// SessionStatus summarizes the recorder for clients.
type SessionStatus struct {
	Status    recorder.Status `json:"status"`              // stopped, recording or paused
	Extension string          `json:"extension,omitempty"` // Negotiated container extension
	StartedAt string          `json:"started_at,omitzero"` // RFC3339 start time of the active session
	Uptime    string          `json:"uptime,omitzero"`     // Time since start
	Error     string          `json:"error,omitzero"`      // Most recent start error
}

// Artifact describes a finalized artifact for clients.
type Artifact struct {
	URL         string           `json:"url,omitempty"`       // blob: handle, empty for reset
	Href        string           `json:"href,omitempty"`      // HTTP path that dereferences the handle
	MimeType    string           `json:"mime_type,omitempty"` // Container mime type
	Extension   string           `json:"extension,omitempty"` // File extension for downloads
	Size        int              `json:"size"`                // Payload size in bytes
	StartTime   string           `json:"start_time,omitzero"` // RFC3339
	StopTime    string           `json:"stop_time"`           // RFC3339
	DurationMs  int64            `json:"duration_ms"`         // Stop minus start
	Termination string           `json:"termination,omitempty"`
	Options     recorder.Options `json:"options"` // Options actually used
}

// WSStatusResponse is sent to clients with the full recorder status.
type WSStatusResponse struct {
	Type            string         `json:"type"`             // Message type identifier
	FFmpegAvailable bool           `json:"ffmpeg_available"` // FFmpeg binary is available
	Supported       bool           `json:"supported"`        // Capture facility exists
	Recorder        SessionStatus  `json:"recorder"`         // Session status
	MimeTypes       []string       `json:"mime_types"`       // Containers the platform can produce
	Devices         []media.Device `json:"devices"`          // Available audio devices
	BlobCount       int            `json:"blob_count"`       // Handles not yet revoked
	Settings        WSSettings     `json:"settings"`         // Current settings
	Version         VersionInfo    `json:"version"`          // Version information
}

// WSSettings contains the settings sub-object in status responses.
type WSSettings struct {
	AudioInput string           `json:"audio_input"` // Selected audio input device
	Platform   string           `json:"platform"`    // Operating system platform
	Recorder   recorder.Options `json:"recorder"`    // Options for the next session
	APIKey     string           `json:"api_key"`     // API key for REST control
}

// WSLevelsResponse is sent to clients with audio level updates.
type WSLevelsResponse struct {
	Type   string            `json:"type"`   // Message type identifier
	Levels audio.AudioLevels `json:"levels"` // Current audio levels
}

// WSArtifactResponse is pushed after every pause, stop and reset.
type WSArtifactResponse struct {
	Type     string   `json:"type"`     // "artifact"
	Event    string   `json:"event"`    // pause, stop or reset
	Artifact Artifact `json:"artifact"` // The artifact
}

// WSChunkResponse is pushed for every encoded chunk.
type WSChunkResponse struct {
	Type  string `json:"type"`  // "chunk"
	Size  int    `json:"size"`  // Chunk size in bytes
	Total int    `json:"total"` // Bytes buffered in the session
}

// WSWaveformResponse carries one rendered waveform frame.
type WSWaveformResponse struct {
	Type  string `json:"type"`  // "waveform"
	Image string `json:"image"` // PNG data URL
}

// VersionInfo contains version comparison data.
type VersionInfo struct {
	Current     string `json:"current"`              // Current version
	Latest      string `json:"latest,omitempty"`     // Latest available version
	UpdateAvail bool   `json:"update_available"`     // Update is available
	Commit      string `json:"commit,omitempty"`     // Git commit hash
	BuildTime   string `json:"build_time,omitempty"` // Build timestamp
}
