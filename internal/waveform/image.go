package waveform

import (
	"bytes"
	"encoding/base64"

	"github.com/fogleman/gg"
)

// NewImage returns an RGBA surface of the given size.
func NewImage(width, height int) *gg.Context {
	return gg.NewContext(width, height)
}

// EncodePNG encodes the surface as PNG.
func EncodePNG(dc *gg.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DataURL encodes the surface as a base64 PNG data URL.
func DataURL(dc *gg.Context) (string, error) {
	data, err := EncodePNG(dc)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}
