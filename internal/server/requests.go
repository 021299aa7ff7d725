package server

import "github.com/oszuidwest/zwfm-voicenote/internal/config"

// Request types for WebSocket commands with validation tags.
// These types define the expected input for each command and use
// go-playground/validator struct tags for automatic validation.

// --- Audio settings ---

// AudioUpdateRequest is the request body for audio/update.
type AudioUpdateRequest struct {
	Input string `json:"input" validate:"omitempty,max=256"`
}

// --- Recorder settings ---

// RecorderSettingsRequest is the request body for recorder/settings.
// Omitted fields keep their current value.
type RecorderSettingsRequest struct {
	MimeType           *string `json:"mime_type" validate:"omitempty,container"`
	AudioBitsPerSecond *int    `json:"audio_bits_per_second" validate:"omitempty,gte=8000,lte=512000"`
	EchoCancellation   *bool   `json:"echo_cancellation"`
	AutoGainControl    *bool   `json:"auto_gain_control"`
	NoiseSuppression   *bool   `json:"noise_suppression"`
	ChannelCount       *int    `json:"channel_count" validate:"omitempty,oneof=1 2"`
	TimesliceMs        *int    `json:"timeslice_ms" validate:"omitempty,gte=1,lte=10000"`
}

// apply merges the request into rc.
func (r *RecorderSettingsRequest) apply(rc *config.RecorderConfig) {
	if r.MimeType != nil {
		rc.MimeType = *r.MimeType
	}
	if r.AudioBitsPerSecond != nil {
		rc.AudioBitsPerSecond = *r.AudioBitsPerSecond
	}
	if r.EchoCancellation != nil {
		rc.EchoCancellation = r.EchoCancellation
	}
	if r.AutoGainControl != nil {
		rc.AutoGainControl = r.AutoGainControl
	}
	if r.NoiseSuppression != nil {
		rc.NoiseSuppression = r.NoiseSuppression
	}
	if r.ChannelCount != nil {
		rc.ChannelCount = *r.ChannelCount
	}
	if r.TimesliceMs != nil {
		rc.TimesliceMs = *r.TimesliceMs
	}
}

// --- Blobs ---

// BlobRevokeRequest is the request body for blobs/revoke.
type BlobRevokeRequest struct {
	URL string `json:"url" validate:"required,startswith=blob:,max=128"`
}
