package inject

import (
	"context"

	"go.viam.com/facebox/components/camera"
	"go.viam.com/facebox/vision/facedetection"
)

// Detector is an injected face detector.
type Detector struct {
	facedetection.Detector
	DetectFunc func(ctx context.Context, frame camera.Frame, req facedetection.Request) ([]facedetection.Observation, error)
}

// Detect calls the injected Detect or the real version.
func (d *Detector) Detect(ctx context.Context, frame camera.Frame, req facedetection.Request) ([]facedetection.Observation, error) {
	if d.DetectFunc == nil {
		return d.Detector.Detect(ctx, frame, req)
	}
	return d.DetectFunc(ctx, frame, req)
}
