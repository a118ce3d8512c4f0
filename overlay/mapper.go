// Package overlay keeps the face box on the display in step with the latest detection result.
package overlay

import (
	"go.viam.com/facebox/display"
	"go.viam.com/facebox/vision/facedetection"
)

// MapToDisplay places a normalized, bottom-left origin box inside target, which is in the
// display's top-left origin units. Boxes outside the unit square give undefined results.
func MapToDisplay(box facedetection.NormalizedBox, target display.Rect) display.Rect {
	height := box.Height * target.Height
	return display.Rect{
		X:      target.X + box.X*target.Width,
		Y:      target.Y + target.Height - box.Y*target.Height - height,
		Width:  box.Width * target.Width,
		Height: height,
	}
}
