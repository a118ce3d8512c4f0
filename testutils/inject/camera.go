package inject

import (
	"context"

	"go.viam.com/facebox/components/camera"
)

// Source is an injected camera source.
type Source struct {
	camera.Source
	StartDeliveringFunc func(ctx context.Context, onFrame func(camera.Frame)) error
	StopDeliveringFunc  func() error
}

// StartDelivering calls the injected StartDelivering or the real version.
func (s *Source) StartDelivering(ctx context.Context, onFrame func(camera.Frame)) error {
	if s.StartDeliveringFunc == nil {
		return s.Source.StartDelivering(ctx, onFrame)
	}
	return s.StartDeliveringFunc(ctx, onFrame)
}

// StopDelivering calls the injected StopDelivering or the real version.
func (s *Source) StopDelivering() error {
	if s.StopDeliveringFunc == nil {
		return s.Source.StopDelivering()
	}
	return s.StopDeliveringFunc()
}
