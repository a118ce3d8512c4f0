// Package simple implements a face detector for local testing that reports dark blobs. It pairs
// with the fake camera, whose moving disc it finds.
package simple

import (
	"context"
	"image"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	"go.viam.com/facebox/components/camera"
	"go.viam.com/facebox/logging"
	"go.viam.com/facebox/resource"
	"go.viam.com/facebox/vision/facedetection"
)

// Model is the name of the simple detector.
const Model = "simple"

const (
	defaultThreshold = 64
	defaultMinArea   = 0.001
)

func init() {
	facedetection.RegisterDetector(Model, resource.Registration[facedetection.Detector, *Config]{
		Constructor: func(ctx context.Context, conf *Config, logger logging.Logger) (facedetection.Detector, error) {
			return NewDetector(conf), nil
		},
	})
}

// Config are the attributes of the simple detector.
type Config struct {
	// Threshold is the luminance, between 0 and 256, below which a pixel is dark.
	Threshold float64 `json:"threshold,omitempty"`
	// MinArea is the smallest fraction of the image a blob's bounding box must cover.
	MinArea float64 `json:"min_area,omitempty"`
}

// Validate checks the threshold and area ranges.
func (cfg *Config) Validate(path string) error {
	if cfg.Threshold < 0 || cfg.Threshold > 256 {
		return errors.Errorf("%s.threshold: must be in [0, 256], got %v", path, cfg.Threshold)
	}
	if cfg.MinArea < 0 || cfg.MinArea > 1 {
		return errors.Errorf("%s.min_area: must be in [0, 1], got %v", path, cfg.MinArea)
	}
	return nil
}

// Detector converts a frame to gray and then finds the connected components with values below a
// luminance threshold. Bigger components come first.
type Detector struct {
	threshold float64
	minArea   float64
}

// NewDetector returns a simple detector.
func NewDetector(conf *Config) *Detector {
	det := &Detector{threshold: conf.Threshold, minArea: conf.MinArea}
	if det.threshold == 0 {
		det.threshold = defaultThreshold
	}
	if det.minArea == 0 {
		det.minArea = defaultMinArea
	}
	return det
}

type blob struct {
	rect   image.Rectangle
	pixels int
}

// Detect returns one observation per dark blob. Confidence is the fraction of the blob's bounding
// box that is dark.
func (d *Detector) Detect(ctx context.Context, frame camera.Frame, req facedetection.Request) ([]facedetection.Observation, error) {
	img, err := frame.Image()
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)

	blobs := d.findBlobs(gray)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(blobs, func(i, j int) bool {
		return blobs[i].rect.Dx()*blobs[i].rect.Dy() > blobs[j].rect.Dx()*blobs[j].rect.Dy()
	})

	out := make([]facedetection.Observation, 0, len(blobs))
	for _, bl := range blobs {
		box := facedetection.NormalizedBoxFromPixels(bl.rect, gray.Bounds())
		if box.Area() < d.minArea {
			continue
		}
		out = append(out, facedetection.Observation{
			BoundingBox: box,
			Confidence:  float64(bl.pixels) / float64(bl.rect.Dx()*bl.rect.Dy()),
		})
	}
	return out, nil
}

func (d *Detector) pass(gray *image.Gray, idx int) bool {
	return float64(gray.Pix[idx]) < d.threshold
}

func (d *Detector) findBlobs(gray *image.Gray) []blob {
	width, height := gray.Rect.Dx(), gray.Rect.Dy()
	seen := make([]bool, width*height)
	var blobs []blob
	var queue []image.Point
	for j := 0; j < height; j++ {
		for i := 0; i < width; i++ {
			indx := j*width + i
			if seen[indx] {
				continue
			}
			seen[indx] = true
			if !d.pass(gray, j*gray.Stride+i) {
				continue
			}
			queue = append(queue[:0], image.Point{i, j})
			x0, y0, x1, y1 := i, j, i, j // the bounding box of the segment
			pixels := 0
			for len(queue) != 0 {
				pt := queue[len(queue)-1]
				queue = queue[:len(queue)-1]
				pixels++
				x0, y0 = min(x0, pt.X), min(y0, pt.Y)
				x1, y1 = max(x1, pt.X), max(y1, pt.Y)
				neighbors := [4]image.Point{{pt.X, pt.Y - 1}, {pt.X, pt.Y + 1}, {pt.X - 1, pt.Y}, {pt.X + 1, pt.Y}}
				for _, n := range neighbors {
					if n.X < 0 || n.Y < 0 || n.X >= width || n.Y >= height {
						continue
					}
					nIndx := n.Y*width + n.X
					if seen[nIndx] {
						continue
					}
					seen[nIndx] = true
					if d.pass(gray, n.Y*gray.Stride+n.X) {
						queue = append(queue, n)
					}
				}
			}
			blobs = append(blobs, blob{rect: image.Rect(x0, y0, x1+1, y1+1), pixels: pixels})
		}
	}
	return blobs
}
