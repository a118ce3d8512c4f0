package pipeline

import (
	"fmt"
)

// CaptureConfigurationError is returned by Start when the camera source could not be set up.
// The pipeline stays stopped and does not retry.
type CaptureConfigurationError struct {
	Err error
}

func (e *CaptureConfigurationError) Error() string {
	return fmt.Sprintf("cannot start capture: %v", e.Err)
}

func (e *CaptureConfigurationError) Unwrap() error {
	return e.Err
}
