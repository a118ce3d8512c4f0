package display

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"go.viam.com/facebox/rimage"
)

// ImageSurface is an in-memory Surface. Frames are fitted into a fixed size canvas preserving
// their aspect ratio, so CurrentBounds is the letterboxed area the frame occupies. Snapshot may be
// called from any goroutine.
type ImageSurface struct {
	width, height int
	boxColor      color.Color
	boxWidth      float64
	label         bool

	mu      sync.Mutex
	canvas  *image.RGBA
	bounds  Rect
	box     Rect
	showBox bool
	frames  uint64
	version uint64
}

// ImageSurfaceOption configures an ImageSurface.
type ImageSurfaceOption func(*ImageSurface)

// WithBoxStyle sets the color and stroke width of the face box.
func WithBoxStyle(c color.Color, width float64) ImageSurfaceOption {
	return func(s *ImageSurface) {
		s.boxColor = c
		s.boxWidth = width
	}
}

// WithFrameLabel stamps the frame count into the top-left corner of snapshots.
func WithFrameLabel() ImageSurfaceOption {
	return func(s *ImageSurface) {
		s.label = true
	}
}

// NewImageSurface returns a black width x height surface with the box hidden.
func NewImageSurface(width, height int, opts ...ImageSurfaceOption) *ImageSurface {
	s := &ImageSurface{
		width:    width,
		height:   height,
		boxColor: color.RGBA{R: 255, A: 255},
		boxWidth: 3,
		canvas:   newBlackCanvas(width, height),
		bounds:   Rect{Width: float64(width), Height: float64(height)},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newBlackCanvas(width, height int) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	return canvas
}

// Fit returns the largest rectangle with the aspect ratio of src centered within a
// width x height canvas.
func Fit(src image.Rectangle, width, height int) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	if sw <= 0 || sh <= 0 || width <= 0 || height <= 0 {
		return image.Rectangle{}
	}
	fw, fh := width, sh*width/sw
	if fh > height {
		fw, fh = sw*height/sh, height
	}
	x0, y0 := (width-fw)/2, (height-fh)/2
	return image.Rect(x0, y0, x0+fw, y0+fh)
}

// ShowFrame letterboxes img onto the canvas.
func (s *ImageSurface) ShowFrame(img image.Image) {
	area := Fit(img.Bounds(), s.width, s.height)
	canvas := newBlackCanvas(s.width, s.height)
	if !area.Empty() {
		scaled := image.Image(img)
		if area.Dx() != img.Bounds().Dx() || area.Dy() != img.Bounds().Dy() {
			scaled = imaging.Resize(img, area.Dx(), area.Dy(), imaging.Linear)
		}
		draw.Draw(canvas, area, scaled, scaled.Bounds().Min, draw.Src)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.canvas = canvas
	s.bounds = RectFromImage(area)
	s.frames++
	s.version++
}

// ShowBox shows the face box at rect.
func (s *ImageSurface) ShowBox(rect Rect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.box = rect
	s.showBox = true
	s.version++
}

// HideBox hides the face box.
func (s *ImageSurface) HideBox() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showBox = false
	s.version++
}

// CurrentBounds returns the letterboxed area of the current frame, or the whole canvas before
// the first frame.
func (s *ImageSurface) CurrentBounds() Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bounds
}

// Box returns the face box and whether it is shown.
func (s *ImageSurface) Box() (Rect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.box, s.showBox
}

// Version changes whenever what Snapshot would return changes.
func (s *ImageSurface) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Snapshot composes the current frame and box into a new image.
func (s *ImageSurface) Snapshot() *image.RGBA {
	s.mu.Lock()
	out := image.NewRGBA(s.canvas.Rect)
	copy(out.Pix, s.canvas.Pix)
	box, showBox, frames := s.box, s.showBox, s.frames
	s.mu.Unlock()

	if !showBox && !s.label {
		return out
	}
	dc := gg.NewContextForRGBA(out)
	if showBox {
		rimage.DrawRectangleEmpty(dc, box.X, box.Y, box.Width, box.Height, s.boxColor, s.boxWidth)
	}
	if s.label {
		rimage.DrawString(dc, fmt.Sprintf("frame %d", frames), image.Point{X: 8, Y: 8}, color.White, 14)
	}
	return out
}
