// Package facedetection runs a face detector over camera frames and reports the faces it finds as
// normalized, bottom-left origin bounding boxes.
package facedetection

import (
	"context"
	"image"
	"math"

	"go.viam.com/facebox/components/camera"
	"go.viam.com/facebox/rimage/transform"
)

// NormalizedBox is a rectangle in [0,1] image coordinates with its origin at the bottom-left of
// the image. X and Y locate the bottom-left corner of the box.
type NormalizedBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns the fraction of the image covered by the box.
func (b NormalizedBox) Area() float64 {
	return b.Width * b.Height
}

// NormalizedBoxFromPixels converts a pixel rectangle (top-left origin) within bounds into a
// normalized box. The rectangle is clipped to bounds first.
func NormalizedBoxFromPixels(rect, bounds image.Rectangle) NormalizedBox {
	rect = rect.Intersect(bounds)
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	if rect.Empty() || w == 0 || h == 0 {
		return NormalizedBox{}
	}
	return NormalizedBox{
		X:      clamp01(float64(rect.Min.X-bounds.Min.X) / w),
		Y:      clamp01(float64(bounds.Max.Y-rect.Max.Y) / h),
		Width:  clamp01(float64(rect.Dx()) / w),
		Height: clamp01(float64(rect.Dy()) / h),
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// An Observation is one detected face.
type Observation struct {
	BoundingBox NormalizedBox `json:"bounding_box"`
	Confidence  float64       `json:"confidence"`
}

// Orientation tells the detector which way is up in the frame.
type Orientation int

// The orientations a detector may be hinted with.
const (
	OrientationUp Orientation = iota
	OrientationUpMirrored
	OrientationDown
	OrientationLeft
	OrientationRight
)

func (o Orientation) String() string {
	switch o {
	case OrientationUp:
		return "up"
	case OrientationUpMirrored:
		return "up_mirrored"
	case OrientationDown:
		return "down"
	case OrientationLeft:
		return "left"
	case OrientationRight:
		return "right"
	default:
		return "unknown"
	}
}

// A Request carries the per-frame hints given to a detector alongside the frame.
type Request struct {
	Orientation Orientation
	// Intrinsics is nil when the frame carried no calibration.
	Intrinsics *transform.PinholeCameraIntrinsics
}

// A Detector finds faces in a frame. Detect may be called concurrently. The returned
// observations are in the detector's own order; the first one is the primary face.
type Detector interface {
	Detect(ctx context.Context, frame camera.Frame, req Request) ([]Observation, error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(ctx context.Context, frame camera.Frame, req Request) ([]Observation, error)

// Detect calls f.
func (f DetectorFunc) Detect(ctx context.Context, frame camera.Frame, req Request) ([]Observation, error) {
	return f(ctx, frame, req)
}
