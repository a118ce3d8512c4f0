// Package camera defines a source of video frames and the frames it delivers.
package camera

import (
	"context"
	"image"
	"time"

	"go.viam.com/facebox/logging"
	"go.viam.com/facebox/resource"
	"go.viam.com/facebox/rimage"
	"go.viam.com/facebox/rimage/transform"
)

// A Frame is one captured image together with its capture metadata. A frame is never modified
// after it has been delivered; consumers may share it by reference.
type Frame struct {
	Data   []byte
	Format rimage.PixelFormat
	Width  int
	Height int
	// Intrinsics is nil when the source has no calibration for this frame. They describe the
	// sensor image, before any mirroring; see ImageIntrinsics.
	Intrinsics *transform.PinholeCameraIntrinsics
	CapturedAt time.Time
	Seq        uint64
	// Mirrored frames come from a front facing camera and are presented flipped horizontally.
	Mirrored bool
}

// Image decodes the frame into an image, flipping it when the frame is mirrored.
// Failures are *rimage.FrameConversionError.
func (f Frame) Image() (image.Image, error) {
	img, err := rimage.DecodeFrame(f.Data, f.Format, f.Width, f.Height)
	if err != nil {
		return nil, err
	}
	if f.Mirrored {
		return rimage.FlipHorizontal(img), nil
	}
	return img, nil
}

// ImageIntrinsics returns the intrinsics matching the image returned by Image.
func (f Frame) ImageIntrinsics() *transform.PinholeCameraIntrinsics {
	if f.Mirrored {
		return f.Intrinsics.Mirrored()
	}
	return f.Intrinsics
}

// NewRGBAFrame copies img into an RGBA frame.
func NewRGBAFrame(img image.Image, seq uint64, capturedAt time.Time) Frame {
	rgba := rimage.ToRGBA(img)
	return Frame{
		Data:       rgba.Pix,
		Format:     rimage.PixelFormatRGBA,
		Width:      rgba.Rect.Dx(),
		Height:     rgba.Rect.Dy(),
		CapturedAt: capturedAt,
		Seq:        seq,
	}
}

// A Source delivers frames until it is told to stop.
//
// StartDelivering returns once the device is configured and delivering, or with the error that
// prevented it; ctx only bounds that start up. onFrame is called serially from a single
// goroutine with nondecreasing capture times. StopDelivering returns after the last onFrame call
// has returned, so it must not be called from within onFrame. Both are safe to call more than
// once.
type Source interface {
	StartDelivering(ctx context.Context, onFrame func(Frame)) error
	StopDelivering() error
}

var registry = resource.NewRegistry[Source]("camera")

// RegisterSource registers a camera source model.
func RegisterSource[ConfigT resource.ConfigValidator](model string, registration resource.Registration[Source, ConfigT]) {
	resource.Register(registry, model, registration)
}

// NewSource constructs the camera source described by conf.
func NewSource(ctx context.Context, conf resource.Config, logger logging.Logger) (Source, error) {
	return registry.Build(ctx, conf, "camera", logger)
}

// ValidateConfig checks conf against the model's attribute schema. The path prefixes errors.
func ValidateConfig(conf resource.Config, path string) error {
	return registry.Validate(conf, path)
}

// Models returns the registered camera source models.
func Models() []string {
	return registry.Models()
}
