package facedetection

import (
	"fmt"
)

// DetectionError reports that the detector failed on one frame.
type DetectionError struct {
	Seq uint64
	Err error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("face detection failed for frame %d: %v", e.Seq, e.Err)
}

func (e *DetectionError) Unwrap() error {
	return e.Err
}
