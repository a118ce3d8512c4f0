// Package config reads and validates the facebox configuration file.
package config

import (
	"image/color"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/facebox/components/camera"
	"go.viam.com/facebox/display"
	"go.viam.com/facebox/display/mjpeg"
	"go.viam.com/facebox/logging"
	"go.viam.com/facebox/pipeline"
	"go.viam.com/facebox/resource"
	"go.viam.com/facebox/rimage"
	"go.viam.com/facebox/utils"
	"go.viam.com/facebox/vision/facedetection"
)

const (
	defaultDisplayWidth  = 1280
	defaultDisplayHeight = 720
	defaultBoxColor      = "#ff0000"
	defaultBoxWidth      = 3
)

// A Config describes a complete facebox setup.
type Config struct {
	ConfigFilePath string `json:"-"`

	Camera   resource.Config `json:"camera"`
	Detector resource.Config `json:"detector"`
	Pipeline Pipeline        `json:"pipeline"`
	Display  Display         `json:"display"`
	Log      Log             `json:"log"`
}

// Validate ensures all parts of the config are valid. The path prefixes errors and may be empty.
func (c *Config) Validate(path string) error {
	if err := validateModel(c.Camera, join(path, "camera"), camera.ValidateConfig); err != nil {
		return err
	}
	if err := validateModel(c.Detector, join(path, "detector"), facedetection.ValidateConfig); err != nil {
		return err
	}
	if err := c.Pipeline.Validate(join(path, "pipeline")); err != nil {
		return err
	}
	if err := c.Display.Validate(join(path, "display")); err != nil {
		return err
	}
	return c.Log.Validate(join(path, "log"))
}

func validateModel(conf resource.Config, path string, validate func(resource.Config, string) error) error {
	if conf.Model == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "model")
	}
	return validate(conf, path)
}

func join(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}

// Pipeline configures how frames flow to the detector.
type Pipeline struct {
	Policy        string  `json:"policy,omitempty"`
	DetectTimeout string  `json:"detect_timeout,omitempty"`
	MinFaceArea   float64 `json:"min_face_area,omitempty"`
	MinConfidence float64 `json:"min_confidence,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (p *Pipeline) Validate(path string) error {
	if _, err := pipeline.ParsePolicy(p.Policy); err != nil {
		return utils.NewConfigValidationError(path+".policy", err)
	}
	if _, err := p.Timeout(); err != nil {
		return utils.NewConfigValidationError(path+".detect_timeout", err)
	}
	if p.MinFaceArea < 0 || p.MinFaceArea > 1 {
		return errors.Errorf("%s.min_face_area: must be between 0 and 1, got %v", path, p.MinFaceArea)
	}
	if p.MinConfidence < 0 {
		return errors.Errorf("%s.min_confidence: cannot be negative, got %v", path, p.MinConfidence)
	}
	return nil
}

// Timeout returns the detect timeout, zero when unset.
func (p *Pipeline) Timeout() (time.Duration, error) {
	if p.DetectTimeout == "" {
		return 0, nil
	}
	timeout, err := time.ParseDuration(p.DetectTimeout)
	if err != nil {
		return 0, err
	}
	if timeout < 0 {
		return 0, errors.Errorf("must not be negative, got %s", p.DetectTimeout)
	}
	return timeout, nil
}

// Postprocessors returns the result filters the pipeline settings ask for.
func (p *Pipeline) Postprocessors() []facedetection.Postprocessor {
	var pps []facedetection.Postprocessor
	if p.MinFaceArea > 0 {
		pps = append(pps, facedetection.NewAreaFilter(p.MinFaceArea))
	}
	if p.MinConfidence > 0 {
		pps = append(pps, facedetection.NewScoreFilter(p.MinConfidence))
	}
	return pps
}

// Display configures the composed output.
type Display struct {
	Width      int           `json:"width,omitempty"`
	Height     int           `json:"height,omitempty"`
	BoxColor   string        `json:"box_color,omitempty"`
	BoxWidth   float64       `json:"box_width,omitempty"`
	FrameLabel bool          `json:"frame_label,omitempty"`
	Stream     *mjpeg.Config `json:"stream,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (d *Display) Validate(path string) error {
	if d.Width < 0 || d.Height < 0 {
		return errors.Errorf("%s: size cannot be negative, got %dx%d", path, d.Width, d.Height)
	}
	if _, err := d.Color(); err != nil {
		return utils.NewConfigValidationError(path+".box_color", err)
	}
	if d.BoxWidth < 0 {
		return errors.Errorf("%s.box_width: cannot be negative, got %v", path, d.BoxWidth)
	}
	if d.Stream != nil {
		if err := d.Stream.Validate(path + ".stream"); err != nil {
			return err
		}
	}
	return nil
}

// Size returns the canvas size, defaulting to 1280x720.
func (d *Display) Size() (int, int) {
	width, height := d.Width, d.Height
	if width == 0 {
		width = defaultDisplayWidth
	}
	if height == 0 {
		height = defaultDisplayHeight
	}
	return width, height
}

// Color returns the box color, red when unset.
func (d *Display) Color() (color.Color, error) {
	if d.BoxColor == "" {
		return rimage.ParseHexColor(defaultBoxColor)
	}
	return rimage.ParseHexColor(d.BoxColor)
}

// SurfaceOptions returns the ImageSurface options for these settings. The config must be valid.
func (d *Display) SurfaceOptions() []display.ImageSurfaceOption {
	c, err := d.Color()
	if err != nil {
		c = color.RGBA{R: 255, A: 255}
	}
	width := d.BoxWidth
	if width == 0 {
		width = defaultBoxWidth
	}
	opts := []display.ImageSurfaceOption{display.WithBoxStyle(c, width)}
	if d.FrameLabel {
		opts = append(opts, display.WithFrameLabel())
	}
	return opts
}

// Log configures logging.
type Log struct {
	Level logging.Level       `json:"level"`
	File  *logging.FileConfig `json:"file,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (l *Log) Validate(path string) error {
	if l.File != nil {
		return l.File.Validate(path + ".file")
	}
	return nil
}
