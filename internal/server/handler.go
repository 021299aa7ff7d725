// Package server provides HTTP and WebSocket handlers for the voice note web interface.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/oszuidwest/zwfm-voicenote/internal/config"
	"github.com/oszuidwest/zwfm-voicenote/internal/types"
)

// validate reports JSON field names and knows the pow2, csscolor and
// container rules.
var validate = config.Validator()

// commandError answers a command that failed outside validation.
type commandError struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func resultType(cmdType string) string {
	return cmdType + "_result"
}

// DecodeAndValidate fills data from the command payload. A missing payload
// decodes as an empty object. On failure the error reply has already been
// queued and false is returned.
func DecodeAndValidate[T any](cmd WSCommand, send chan<- any, data *T) bool {
	raw := cmd.Data
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, data); err != nil {
		SendError(send, cmd.Type, fmt.Errorf("invalid JSON: %w", err))
		return false
	}
	if err := validate.Struct(data); err != nil {
		SendValidationErrors(send, cmd.Type, err)
		return false
	}
	return true
}

// HandleCommand decodes the payload into a T and replies with what
// process returns.
func HandleCommand[T any](cmd WSCommand, send chan<- any, process func(*T) (any, error)) {
	var req T
	if !DecodeAndValidate(cmd, send, &req) {
		return
	}
	data, err := process(&req)
	reply(send, cmd.Type, data, err)
}

// HandleActionAsync runs action on its own goroutine and replies when it
// returns. done, if set, runs after the reply was queued, also after a panic.
func HandleActionAsync(cmd WSCommand, send chan<- any, action func() (any, error), done func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in async handler", "command", cmd.Type, "panic", r)
				SendError(send, cmd.Type, errors.New("internal error"))
			}
			if done != nil {
				done()
			}
		}()
		data, err := action()
		reply(send, cmd.Type, data, err)
	}()
}

func reply(send chan<- any, cmdType string, data any, err error) {
	if err != nil {
		SendError(send, cmdType, err)
		return
	}
	SendSuccess(send, cmdType, data)
}

// SendSuccess queues a successful result.
func SendSuccess(send chan<- any, cmdType string, data any) {
	trySend(send, cmdType, types.WSCommandResult{Type: resultType(cmdType), Success: true, Data: data})
}

// SendError queues a failed result carrying err's message.
func SendError(send chan<- any, cmdType string, err error) {
	trySend(send, cmdType, commandError{Type: resultType(cmdType), Error: err.Error()})
}

// SendValidationErrors queues a failed result listing each rejected field.
func SendValidationErrors(send chan<- any, cmdType string, err error) {
	verr := types.NewValidationError()
	var fields validator.ValidationErrors
	if errors.As(err, &fields) {
		for _, fe := range fields {
			verr.Add(fe.Field(), validationMessage(fe), fe.Value())
		}
	} else {
		verr.Add("", err.Error(), nil)
	}
	trySend(send, cmdType, types.WSCommandResult{Type: resultType(cmdType), Error: verr})
}

// trySend queues msg without blocking. Async results can outlive their
// connection, so a send on a closed channel is dropped.
func trySend(send chan<- any, cmdType string, msg any) {
	defer func() {
		if recover() != nil {
			slog.Debug("dropped response for closed connection", "type", cmdType)
		}
	}()
	select {
	case send <- msg:
	default:
		slog.Warn("failed to send response: channel full", "type", cmdType)
	}
}

// validationMessages maps validator tags to messages; %s is the tag parameter.
var validationMessages = map[string]string{
	"required":   "is required",
	"min":        "must be at least %s",
	"max":        "must be at most %s",
	"gte":        "must be greater than or equal to %s",
	"lte":        "must be less than or equal to %s",
	"oneof":      "must be one of: %s",
	"startswith": "must start with %q",
	"pow2":       "must be a power of two between 32 and 32768",
	"csscolor":   "must be a CSS color (#RRGGBB or rgba())",
	"container":  "must be a supported audio mime type",
}

func validationMessage(fe validator.FieldError) string {
	format, ok := validationMessages[fe.Tag()]
	if !ok {
		return fmt.Sprintf("failed validation '%s'", fe.Tag())
	}
	if fe.Param() == "" {
		return format
	}
	return fmt.Sprintf(format, fe.Param())
}
