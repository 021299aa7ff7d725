package types

import "strings"

// WSCommandResult answers a WebSocket command. Type is the command type
// with "_result" appended.
type WSCommandResult struct {
	Type    string           `json:"type"`
	Success bool             `json:"success"`
	Error   *ValidationError `json:"error,omitempty"`
	Data    any              `json:"data,omitempty"`
}

// FieldError is one rejected request field. Field is the JSON name,
// e.g. "mime_type".
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value"`
}

// ValidationError lists every field a command rejected.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

// NewValidationError returns a ValidationError whose Errors encode as []
// rather than null.
func NewValidationError() *ValidationError {
	return &ValidationError{Errors: []FieldError{}}
}

// Add records a rejected field.
func (v *ValidationError) Add(field, message string, value any) {
	v.Errors = append(v.Errors, FieldError{Field: field, Message: message, Value: value})
}

func (v *ValidationError) Error() string {
	msgs := make([]string, 0, len(v.Errors))
	for _, fe := range v.Errors {
		if fe.Field == "" {
			msgs = append(msgs, fe.Message)
			continue
		}
		msgs = append(msgs, fe.Field+": "+fe.Message)
	}
	return strings.Join(msgs, "; ")
}
