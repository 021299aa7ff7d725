package media

import (
	"errors"
	"fmt"
)

// ErrUnsupportedEnvironment is returned when the platform has no capture
// facility or cannot produce any supported container.
var ErrUnsupportedEnvironment = errors.New("audio recording is not supported in this environment")

// AcquisitionError reports that an input device could not be opened.
type AcquisitionError struct {
	Device string
	Err    error
}

func (e *AcquisitionError) Error() string {
	if e.Device == "" {
		return fmt.Sprintf("acquire audio input: %v", e.Err)
	}
	return fmt.Sprintf("acquire audio input %q: %v", e.Device, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}
