// Package fake implements synthetic camera sources: a rendered test pattern and a replay of image
// files from a directory.
package fake

import (
	"context"
	"image"
	"image/color"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fogleman/gg"
	"github.com/pkg/errors"

	"go.viam.com/facebox/components/camera"
	"go.viam.com/facebox/logging"
	"go.viam.com/facebox/resource"
	"go.viam.com/facebox/rimage"
	"go.viam.com/facebox/rimage/transform"
)

// Model is the name of the rendered test pattern source.
const Model = "fake"

const (
	initialWidth  = 1280
	initialHeight = 720
	defaultFPS    = 15
)

func init() {
	camera.RegisterSource(Model, resource.Registration[camera.Source, *Config]{
		Constructor: func(ctx context.Context, conf *Config, logger logging.Logger) (camera.Source, error) {
			return NewCamera(conf, clock.New(), logger), nil
		},
	})
}

// Config are the attributes of the fake camera config.
type Config struct {
	Width  int     `json:"width,omitempty"`
	Height int     `json:"height,omitempty"`
	FPS    float64 `json:"fps,omitempty"`
	Mirror bool    `json:"mirror,omitempty"`
}

// Validate checks that the config attributes are valid for a fake camera.
func (conf *Config) Validate(path string) error {
	if conf.Width < 0 || conf.Height < 0 {
		return errors.Errorf("%s: resolution cannot be negative, got %dx%d", path, conf.Width, conf.Height)
	}
	if conf.Height%2 != 0 {
		return errors.Errorf("%s: odd-number resolutions cannot be rendered, cannot use a height of %d", path, conf.Height)
	}
	if conf.Width%2 != 0 {
		return errors.Errorf("%s: odd-number resolutions cannot be rendered, cannot use a width of %d", path, conf.Width)
	}
	if conf.FPS < 0 {
		return errors.Errorf("%s.fps: must be positive, got %v", path, conf.FPS)
	}
	return nil
}

var fakeIntrinsics = &transform.PinholeCameraIntrinsics{
	Width:  1024,
	Height: 768,
	Fx:     821.32642889,
	Fy:     821.68607359,
	Ppx:    494.95941428,
	Ppy:    370.70529534,
}

// resolution fills in an unspecified side keeping the 16:9 aspect ratio.
func resolution(width, height int) (int, int) {
	switch {
	case width > 0 && height > 0:
		return width, height
	case width > 0:
		newHeight := width * initialHeight / initialWidth
		if newHeight%2 != 0 {
			newHeight++
		}
		return width, newHeight
	case height > 0:
		newWidth := height * initialWidth / initialHeight
		if newWidth%2 != 0 {
			newWidth++
		}
		return newWidth, height
	default:
		return initialWidth, initialHeight
	}
}

// Camera renders a yellow to blue gradient with a dark disc sweeping across it, so that a
// detector has something that moves.
type Camera struct {
	*tickingSource
	Width      int
	Height     int
	Intrinsics *transform.PinholeCameraIntrinsics
	mirror     bool
	background *image.RGBA
}

// NewCamera returns a new fake camera ticking on the given clock.
func NewCamera(conf *Config, clk clock.Clock, logger logging.Logger) *Camera {
	width, height := resolution(conf.Width, conf.Height)
	fps := conf.FPS
	if fps == 0 {
		fps = defaultFPS
	}
	cam := &Camera{
		Width:      width,
		Height:     height,
		Intrinsics: fakeIntrinsics.Scaled(width, height),
		mirror:     conf.Mirror,
		background: renderGradient(width, height),
	}
	cam.tickingSource = newTickingSource(clk, fps, cam.render, logger)
	return cam
}

func renderGradient(width, height int) *image.RGBA {
	dc := gg.NewContext(width, height)
	grad := gg.NewLinearGradient(0, 0, float64(width), float64(height))
	grad.AddColorStop(0, color.RGBA{255, 255, 0, 255})
	grad.AddColorStop(1, color.RGBA{0, 0, 255, 255})
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, float64(width), float64(height))
	dc.Fill()
	return rimage.ToRGBA(dc.Image())
}

// discCenter is where the disc is drawn in frame seq.
func (c *Camera) discCenter(seq uint64) (float64, float64) {
	step := uint64(c.Width / 60)
	if step == 0 {
		step = 1
	}
	return float64((seq * step) % uint64(c.Width)), float64(c.Height) / 2
}

func (c *Camera) render(seq uint64, now time.Time) (camera.Frame, bool) {
	img := image.NewRGBA(c.background.Rect)
	copy(img.Pix, c.background.Pix)
	dc := gg.NewContextForRGBA(img)
	x, y := c.discCenter(seq)
	dc.DrawCircle(x, y, float64(c.Height)/6)
	dc.SetColor(color.RGBA{40, 30, 30, 255})
	dc.Fill()

	return camera.Frame{
		Data:       img.Pix,
		Format:     rimage.PixelFormatRGBA,
		Width:      c.Width,
		Height:     c.Height,
		Intrinsics: c.Intrinsics,
		CapturedAt: now,
		Seq:        seq,
		Mirrored:   c.mirror,
	}, true
}
