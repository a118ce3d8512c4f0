// Package pigo implements a face detector on top of the pigo pixel intensity comparison cascade.
package pigo

import (
	"context"
	"image"
	"os"
	"sort"

	pigo "github.com/esimov/pigo/core"
	"github.com/pkg/errors"

	"go.viam.com/facebox/components/camera"
	"go.viam.com/facebox/logging"
	"go.viam.com/facebox/resource"
	"go.viam.com/facebox/utils"
	"go.viam.com/facebox/vision/facedetection"
)

// Model is the name of the pigo detector.
const Model = "pigo"

const (
	defaultMinSize      = 60
	defaultMaxSize      = 1000
	defaultShiftFactor  = 0.1
	defaultScaleFactor  = 1.1
	defaultIoUThreshold = 0.2
	defaultMinQuality   = 5.0
)

func init() {
	facedetection.RegisterDetector(Model, resource.Registration[facedetection.Detector, *Config]{
		Constructor: func(ctx context.Context, conf *Config, logger logging.Logger) (facedetection.Detector, error) {
			return NewDetector(conf, logger)
		},
	})
}

// Config are the attributes of the pigo detector.
type Config struct {
	CascadePath  string  `json:"cascade_path"`
	MinSize      int     `json:"min_size,omitempty"`
	MaxSize      int     `json:"max_size,omitempty"`
	ShiftFactor  float64 `json:"shift_factor,omitempty"`
	ScaleFactor  float64 `json:"scale_factor,omitempty"`
	IoUThreshold float64 `json:"iou_threshold,omitempty"`
	MinQuality   float64 `json:"min_quality,omitempty"`
	// Angle rotates the cascade, as a fraction of a full turn.
	Angle float64 `json:"angle,omitempty"`
}

// Validate checks the attributes and fills in defaults.
func (cfg *Config) Validate(path string) error {
	if cfg.CascadePath == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "cascade_path")
	}
	if cfg.MinSize < 0 || cfg.MaxSize < 0 {
		return errors.Errorf("%s: min_size and max_size cannot be negative", path)
	}
	if cfg.MaxSize != 0 && cfg.MinSize > cfg.MaxSize {
		return errors.Errorf("%s: min_size %d is larger than max_size %d", path, cfg.MinSize, cfg.MaxSize)
	}
	if cfg.ShiftFactor < 0 || cfg.ShiftFactor > 1 {
		return errors.Errorf("%s.shift_factor: must be in [0, 1], got %v", path, cfg.ShiftFactor)
	}
	if cfg.ScaleFactor != 0 && cfg.ScaleFactor <= 1 {
		return errors.Errorf("%s.scale_factor: must be greater than 1, got %v", path, cfg.ScaleFactor)
	}
	if cfg.IoUThreshold < 0 || cfg.IoUThreshold > 1 {
		return errors.Errorf("%s.iou_threshold: must be in [0, 1], got %v", path, cfg.IoUThreshold)
	}
	return nil
}

func (cfg *Config) withDefaults() Config {
	out := *cfg
	if out.MinSize == 0 {
		out.MinSize = defaultMinSize
	}
	if out.MaxSize == 0 {
		out.MaxSize = defaultMaxSize
	}
	if out.ShiftFactor == 0 {
		out.ShiftFactor = defaultShiftFactor
	}
	if out.ScaleFactor == 0 {
		out.ScaleFactor = defaultScaleFactor
	}
	if out.IoUThreshold == 0 {
		out.IoUThreshold = defaultIoUThreshold
	}
	if out.MinQuality == 0 {
		out.MinQuality = defaultMinQuality
	}
	return out
}

// Detector finds faces with a pigo cascade. The unpacked cascade is read only, so Detect is safe
// for concurrent use.
type Detector struct {
	conf       Config
	classifier *pigo.Pigo
	logger     logging.Logger
}

// NewDetector loads the cascade named in conf.
func NewDetector(conf *Config, logger logging.Logger) (*Detector, error) {
	//nolint:gosec
	cascade, err := os.ReadFile(conf.CascadePath)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read face cascade")
	}
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot unpack face cascade %s", conf.CascadePath)
	}
	return &Detector{conf: conf.withDefaults(), classifier: classifier, logger: logger}, nil
}

// Detect runs the cascade on the grayscale frame. Observations are ordered by decreasing quality.
func (d *Detector) Detect(ctx context.Context, frame camera.Frame, req facedetection.Request) ([]facedetection.Observation, error) {
	img, err := frame.Image()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	params := pigo.CascadeParams{
		MinSize:     d.conf.MinSize,
		MaxSize:     d.conf.MaxSize,
		ShiftFactor: d.conf.ShiftFactor,
		ScaleFactor: d.conf.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(img),
			Rows:   bounds.Dy(),
			Cols:   bounds.Dx(),
			Dim:    bounds.Dx(),
		},
	}
	dets := d.classifier.RunCascade(params, d.conf.Angle)
	dets = d.classifier.ClusterDetections(dets, d.conf.IoUThreshold)
	return toObservations(dets, image.Rect(0, 0, bounds.Dx(), bounds.Dy()), d.conf.MinQuality), nil
}

// toObservations converts pigo's pixel centered squares into normalized boxes, dropping those
// below minQuality.
func toObservations(dets []pigo.Detection, bounds image.Rectangle, minQuality float64) []facedetection.Observation {
	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Q > dets[j].Q
	})
	out := make([]facedetection.Observation, 0, len(dets))
	for _, det := range dets {
		if float64(det.Q) < minQuality {
			continue
		}
		half := det.Scale / 2
		rect := image.Rect(det.Col-half, det.Row-half, det.Col-half+det.Scale, det.Row-half+det.Scale)
		if !rect.Overlaps(bounds) {
			continue
		}
		out = append(out, facedetection.Observation{
			BoundingBox: facedetection.NormalizedBoxFromPixels(rect, bounds),
			Confidence:  float64(det.Q),
		})
	}
	return out
}
