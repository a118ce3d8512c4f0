// Package webcam implements a camera source reading a V4L2 video device.
package webcam

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/facebox/components/camera"
	"go.viam.com/facebox/logging"
	"go.viam.com/facebox/resource"
	"go.viam.com/facebox/rimage/transform"
	"go.viam.com/facebox/utils"
)

// Model is the name of the webcam source.
const Model = "webcam"

// maxProbedDevice bounds the /dev/videoN devices probed when no path is configured.
const maxProbedDevice = 20

func init() {
	camera.RegisterSource(Model, resource.Registration[camera.Source, *Config]{
		Constructor: func(ctx context.Context, conf *Config, logger logging.Logger) (camera.Source, error) {
			return NewSource(conf, logger), nil
		},
	})
}

// Config is the attribute struct for webcams.
type Config struct {
	Path       string                             `json:"path,omitempty"`
	Width      int                                `json:"width,omitempty"`
	Height     int                                `json:"height,omitempty"`
	Mirror     bool                               `json:"mirror,omitempty"`
	Intrinsics *transform.PinholeCameraIntrinsics `json:"intrinsic_parameters,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate(path string) error {
	if c.Width < 0 || c.Height < 0 {
		return errors.Errorf(
			"%s: got illegal negative dimensions for width and height (%d, %d) fields set for webcam camera",
			path, c.Width, c.Height)
	}
	if (c.Width == 0) != (c.Height == 0) {
		return errors.Errorf("%s: width and height must be set together, got (%d, %d)", path, c.Width, c.Height)
	}
	if c.Intrinsics != nil {
		if err := c.Intrinsics.CheckValid(); err != nil {
			return utils.NewConfigValidationError(path+".intrinsic_parameters", err)
		}
	}
	return nil
}
