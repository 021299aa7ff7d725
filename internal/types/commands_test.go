package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationErrorMessage(t *testing.T) {
	verr := NewValidationError()
	assert.Empty(t, verr.Error())

	verr.Add("mime_type", "unsupported container", "audio/x-foo")
	verr.Add("", "request body is malformed", nil)
	assert.Equal(t, "mime_type: unsupported container; request body is malformed", verr.Error())
}

func TestCommandResultEncoding(t *testing.T) {
	raw, err := json.Marshal(WSCommandResult{Type: "recorder/settings_result", Error: NewValidationError()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"recorder/settings_result","success":false,"error":{"errors":[]}}`, string(raw))

	raw, err = json.Marshal(WSCommandResult{Type: "recorder/stop_result", Success: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"recorder/stop_result","success":true}`, string(raw))
}
