package simple

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/facebox/components/camera"
	"go.viam.com/facebox/vision/facedetection"
)

func TestSimpleDetector(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 50))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)
	// big blob at top-left, small blob at bottom-right
	draw.Draw(img, image.Rect(10, 5, 30, 25), &image.Uniform{color.Black}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(80, 40, 85, 45), &image.Uniform{color.Black}, image.Point{}, draw.Src)

	det := NewDetector(&Config{})
	obs, err := det.Detect(context.Background(), camera.NewRGBAFrame(img, 1, time.Now()), facedetection.Request{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, obs, test.ShouldHaveLength, 2)
	test.That(t, obs[0].BoundingBox, test.ShouldResemble, facedetection.NormalizedBox{
		X: 0.1, Y: 0.5, Width: 0.2, Height: 0.4,
	})
	test.That(t, obs[0].Confidence, test.ShouldEqual, 1.0)
	test.That(t, obs[1].BoundingBox.Width, test.ShouldAlmostEqual, 0.05)

	det = NewDetector(&Config{MinArea: 0.05})
	obs, err = det.Detect(context.Background(), camera.NewRGBAFrame(img, 2, time.Now()), facedetection.Request{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, obs, test.ShouldHaveLength, 1)
}

func TestSimpleDetectorBadFrame(t *testing.T) {
	_, err := NewDetector(&Config{}).Detect(context.Background(), camera.Frame{}, facedetection.Request{})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSimpleConfig(t *testing.T) {
	test.That(t, (&Config{Threshold: 300}).Validate("d"), test.ShouldNotBeNil)
	test.That(t, (&Config{MinArea: 2}).Validate("d"), test.ShouldNotBeNil)
	test.That(t, (&Config{Threshold: 100, MinArea: 0.1}).Validate("d"), test.ShouldBeNil)
}
