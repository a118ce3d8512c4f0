package camera_test

import (
	"context"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/facebox/components/camera"
	_ "go.viam.com/facebox/components/camera/fake"
	"go.viam.com/facebox/logging"
	"go.viam.com/facebox/resource"
	"go.viam.com/facebox/rimage"
	"go.viam.com/facebox/rimage/transform"
)

func TestFrameImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	now := time.Now()

	frame := camera.NewRGBAFrame(img, 7, now)
	test.That(t, frame.Seq, test.ShouldEqual, uint64(7))
	test.That(t, frame.CapturedAt, test.ShouldEqual, now)
	test.That(t, frame.Width, test.ShouldEqual, 4)
	test.That(t, frame.Height, test.ShouldEqual, 2)
	test.That(t, frame.Format, test.ShouldEqual, rimage.PixelFormatRGBA)

	decoded, err := frame.Image()
	test.That(t, err, test.ShouldBeNil)
	r, _, _, _ := decoded.At(0, 0).RGBA()
	test.That(t, r, test.ShouldEqual, uint32(0xffff))

	frame.Mirrored = true
	mirrored, err := frame.Image()
	test.That(t, err, test.ShouldBeNil)
	r, _, _, _ = mirrored.At(3, 0).RGBA()
	test.That(t, r, test.ShouldEqual, uint32(0xffff))
	r, _, _, _ = mirrored.At(0, 0).RGBA()
	test.That(t, r, test.ShouldEqual, uint32(0))
}

func TestFrameImageIntrinsics(t *testing.T) {
	intrinsics := &transform.PinholeCameraIntrinsics{Width: 100, Height: 50, Fx: 80, Fy: 80, Ppx: 40, Ppy: 25}
	test.That(t, camera.Frame{Intrinsics: intrinsics}.ImageIntrinsics(), test.ShouldEqual, intrinsics)
	test.That(t, camera.Frame{Mirrored: true}.ImageIntrinsics(), test.ShouldBeNil)

	mirrored := camera.Frame{Intrinsics: intrinsics, Mirrored: true}.ImageIntrinsics()
	test.That(t, mirrored.Ppx, test.ShouldEqual, 60.0)
	test.That(t, mirrored.Ppy, test.ShouldEqual, 25.0)
	test.That(t, intrinsics.Ppx, test.ShouldEqual, 40.0)
}

func TestFrameImageConversionError(t *testing.T) {
	frame := camera.Frame{Data: []byte("garbage"), Format: rimage.PixelFormatJPEG, Mirrored: true}
	img, err := frame.Image()
	test.That(t, img, test.ShouldBeNil)
	var convErr *rimage.FrameConversionError
	test.That(t, errors.As(err, &convErr), test.ShouldBeTrue)
}

func TestNewSource(t *testing.T) {
	logger := logging.NewTestLogger(t)
	test.That(t, camera.Models(), test.ShouldContain, "fake")
	test.That(t, camera.Models(), test.ShouldContain, "image_file")

	src, err := camera.NewSource(context.Background(), resource.Config{
		Model:      "fake",
		Attributes: resource.AttributeMap{"width": 64, "height": 36},
	}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, src, test.ShouldNotBeNil)
	test.That(t, src.StopDelivering(), test.ShouldBeNil)

	_, err = camera.NewSource(context.Background(), resource.Config{
		Model:      "fake",
		Attributes: resource.AttributeMap{"width": 63},
	}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "camera.attributes")

	err = camera.ValidateConfig(resource.Config{Model: "fake", Attributes: resource.AttributeMap{"fps": -1}}, "camera")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "camera.attributes.fps")

	_, err = camera.NewSource(context.Background(), resource.Config{Model: "kinect"}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `unknown camera model "kinect"`)
}
