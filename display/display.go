// Package display defines the surface frames and the face box are shown on, and the single lane
// that is allowed to touch it.
package display

import (
	"fmt"
	"image"
)

// Rect is a rectangle in a surface's own units with its origin at the top-left.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RectFromImage converts an integer rectangle.
func RectFromImage(r image.Rectangle) Rect {
	return Rect{X: float64(r.Min.X), Y: float64(r.Min.Y), Width: float64(r.Dx()), Height: float64(r.Dy())}
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

func (r Rect) String() string {
	return fmt.Sprintf("(%.1f,%.1f %.1fx%.1f)", r.X, r.Y, r.Width, r.Height)
}

// A Surface shows frames and a single overlay box. Its methods are only ever called from the
// display lane, so implementations need no locking of their own for these calls.
type Surface interface {
	ShowFrame(img image.Image)
	ShowBox(rect Rect)
	HideBox()
	// CurrentBounds is the area the current frame occupies on the surface.
	CurrentBounds() Rect
}
