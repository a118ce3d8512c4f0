// Package fake implements a face detector that always reports the configured faces.
package fake

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/facebox/components/camera"
	"go.viam.com/facebox/logging"
	"go.viam.com/facebox/resource"
	"go.viam.com/facebox/vision/facedetection"
)

// Model is the name of the fake detector.
const Model = "fake"

func init() {
	facedetection.RegisterDetector(Model, resource.Registration[facedetection.Detector, *Config]{
		Constructor: func(ctx context.Context, conf *Config, logger logging.Logger) (facedetection.Detector, error) {
			return NewDetector(conf), nil
		},
	})
}

const epsilon = 1e-9

// Box is one configured face.
type Box struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Config are the attributes of the fake detector.
type Config struct {
	Boxes []Box `json:"boxes,omitempty"`
	// Fail, when set, is returned as the error of every detection.
	Fail  string        `json:"fail,omitempty"`
	Delay time.Duration `json:"delay,omitempty"`
}

// Validate checks that every box lies within the unit square.
func (cfg *Config) Validate(path string) error {
	for i, b := range cfg.Boxes {
		if b.X < 0 || b.Y < 0 || b.Width < 0 || b.Height < 0 || b.X+b.Width > 1+epsilon || b.Y+b.Height > 1+epsilon {
			return errors.Errorf("%s.boxes.%d: box %+v is not within the unit square", path, i, b)
		}
	}
	if cfg.Delay < 0 {
		return errors.Errorf("%s.delay: cannot be negative", path)
	}
	return nil
}

// Detector reports the same faces for every frame.
type Detector struct {
	observations []facedetection.Observation
	fail         error
	delay        time.Duration
}

// NewDetector returns a detector reporting the configured boxes.
func NewDetector(conf *Config) *Detector {
	det := &Detector{delay: conf.Delay}
	for _, b := range conf.Boxes {
		confidence := b.Confidence
		if confidence == 0 {
			confidence = 1
		}
		det.observations = append(det.observations, facedetection.Observation{
			BoundingBox: facedetection.NormalizedBox{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height},
			Confidence:  confidence,
		})
	}
	if conf.Fail != "" {
		det.fail = errors.New(conf.Fail)
	}
	return det
}

// Detect waits for the configured delay and returns the configured faces.
func (d *Detector) Detect(ctx context.Context, frame camera.Frame, req facedetection.Request) ([]facedetection.Observation, error) {
	if d.delay > 0 {
		timer := time.NewTimer(d.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if d.fail != nil {
		return nil, d.fail
	}
	return append([]facedetection.Observation(nil), d.observations...), nil
}
