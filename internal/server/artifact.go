package server

import (
	"time"

	"github.com/oszuidwest/zwfm-voicenote/internal/blob"
	"github.com/oszuidwest/zwfm-voicenote/internal/media"
	"github.com/oszuidwest/zwfm-voicenote/internal/recorder"
	"github.com/oszuidwest/zwfm-voicenote/internal/types"
)

// BlobPath is the HTTP prefix under which blob handles are served.
const BlobPath = "/blobs/"

// BlobHref returns the HTTP path that serves the payload behind url.
func BlobHref(url string) string {
	if url == "" {
		return ""
	}
	return BlobPath + blob.ID(url)
}

// ArtifactInfo describes an artifact for clients.
func ArtifactInfo(a *recorder.Artifact) types.Artifact {
	info := types.Artifact{
		URL:         a.URL,
		Href:        BlobHref(a.URL),
		StopTime:    a.StopTime.Format(time.RFC3339),
		Termination: string(a.Termination),
		Options:     a.Options,
	}
	if !a.StartTime.IsZero() {
		info.StartTime = a.StartTime.Format(time.RFC3339)
		info.DurationMs = a.StopTime.Sub(a.StartTime).Milliseconds()
	}
	if !a.Empty() {
		info.MimeType = a.Blob.Type
		info.Extension = media.Extension(a.Blob.Type)
		info.Size = a.Blob.Size()
	}
	return info
}

// NewArtifactResponse wraps an artifact in a push message.
func NewArtifactResponse(event string, a *recorder.Artifact) types.WSArtifactResponse {
	return types.WSArtifactResponse{
		Type:     "artifact",
		Event:    event,
		Artifact: ArtifactInfo(a),
	}
}
