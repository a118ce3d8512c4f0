package inject

import (
	"image"

	"go.viam.com/facebox/display"
)

// Surface is an injected display surface.
type Surface struct {
	display.Surface
	ShowFrameFunc     func(img image.Image)
	ShowBoxFunc       func(rect display.Rect)
	HideBoxFunc       func()
	CurrentBoundsFunc func() display.Rect
}

// ShowFrame calls the injected ShowFrame or the real version.
func (s *Surface) ShowFrame(img image.Image) {
	if s.ShowFrameFunc == nil {
		s.Surface.ShowFrame(img)
		return
	}
	s.ShowFrameFunc(img)
}

// ShowBox calls the injected ShowBox or the real version.
func (s *Surface) ShowBox(rect display.Rect) {
	if s.ShowBoxFunc == nil {
		s.Surface.ShowBox(rect)
		return
	}
	s.ShowBoxFunc(rect)
}

// HideBox calls the injected HideBox or the real version.
func (s *Surface) HideBox() {
	if s.HideBoxFunc == nil {
		s.Surface.HideBox()
		return
	}
	s.HideBoxFunc()
}

// CurrentBounds calls the injected CurrentBounds or the real version.
func (s *Surface) CurrentBounds() display.Rect {
	if s.CurrentBoundsFunc == nil {
		return s.Surface.CurrentBounds()
	}
	return s.CurrentBoundsFunc()
}
