package display

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"go.viam.com/test"
)

func TestFit(t *testing.T) {
	for _, tc := range []struct {
		name          string
		src           image.Rectangle
		width, height int
		exp           image.Rectangle
	}{
		{"same aspect", image.Rect(0, 0, 1280, 720), 640, 360, image.Rect(0, 0, 640, 360)},
		{"pillarbox", image.Rect(0, 0, 400, 400), 800, 400, image.Rect(200, 0, 600, 400)},
		{"letterbox", image.Rect(0, 0, 800, 200), 400, 400, image.Rect(0, 150, 400, 250)},
		{"empty", image.Rectangle{}, 400, 400, image.Rectangle{}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			test.That(t, Fit(tc.src, tc.width, tc.height), test.ShouldResemble, tc.exp)
		})
	}
}

func TestImageSurface(t *testing.T) {
	s := NewImageSurface(200, 100, WithBoxStyle(color.RGBA{G: 255, A: 255}, 2))
	test.That(t, s.CurrentBounds(), test.ShouldResemble, Rect{Width: 200, Height: 100})
	v0 := s.Version()

	frame := image.NewRGBA(image.Rect(0, 0, 50, 50))
	draw.Draw(frame, frame.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	s.ShowFrame(frame)
	test.That(t, s.CurrentBounds(), test.ShouldResemble, Rect{X: 50, Y: 0, Width: 100, Height: 100})
	test.That(t, s.Version(), test.ShouldBeGreaterThan, v0)

	snap := s.Snapshot()
	test.That(t, snap.Bounds(), test.ShouldResemble, image.Rect(0, 0, 200, 100))
	// outside the letterbox is black, inside is the frame
	test.That(t, snap.RGBAAt(10, 50), test.ShouldResemble, color.RGBA{A: 255})
	test.That(t, snap.RGBAAt(100, 50), test.ShouldResemble, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	_, shown := s.Box()
	test.That(t, shown, test.ShouldBeFalse)
	s.ShowBox(Rect{X: 60, Y: 20, Width: 40, Height: 40})
	box, shown := s.Box()
	test.That(t, shown, test.ShouldBeTrue)
	test.That(t, box, test.ShouldResemble, Rect{X: 60, Y: 20, Width: 40, Height: 40})
	snap = s.Snapshot()
	test.That(t, snap.RGBAAt(60, 40).G, test.ShouldEqual, uint8(255))
	test.That(t, snap.RGBAAt(60, 40).R, test.ShouldBeLessThan, uint8(255))

	s.HideBox()
	_, shown = s.Box()
	test.That(t, shown, test.ShouldBeFalse)
	snap = s.Snapshot()
	test.That(t, snap.RGBAAt(60, 40), test.ShouldResemble, color.RGBA{R: 255, G: 255, B: 255, A: 255})
}

func TestImageSurfaceLabel(t *testing.T) {
	s := NewImageSurface(120, 60, WithFrameLabel())
	s.ShowFrame(image.NewRGBA(image.Rect(0, 0, 120, 60)))
	snap := s.Snapshot()
	lit := false
	for y := 0; y < 30 && !lit; y++ {
		for x := 0; x < 80; x++ {
			if snap.RGBAAt(x, y).R > 128 {
				lit = true
				break
			}
		}
	}
	test.That(t, lit, test.ShouldBeTrue)
}
