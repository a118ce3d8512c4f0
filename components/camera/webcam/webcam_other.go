//go:build !linux

package webcam

import (
	"context"
	"runtime"

	"github.com/pkg/errors"

	"go.viam.com/facebox/components/camera"
	"go.viam.com/facebox/logging"
)

// Source is unavailable outside of linux; starting it always fails.
type Source struct {
	conf *Config
}

// NewSource returns a webcam source.
func NewSource(conf *Config, logger logging.Logger) *Source {
	return &Source{conf: conf}
}

// StartDelivering always fails on this platform.
func (s *Source) StartDelivering(ctx context.Context, onFrame func(camera.Frame)) error {
	return errors.Errorf("webcam source is not supported on %s", runtime.GOOS)
}

// StopDelivering does nothing.
func (s *Source) StopDelivering() error {
	return nil
}

// Err always returns nil on this platform.
func (s *Source) Err() error {
	return nil
}
