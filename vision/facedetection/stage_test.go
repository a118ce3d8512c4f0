package facedetection_test

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/facebox/components/camera"
	"go.viam.com/facebox/logging"
	"go.viam.com/facebox/rimage/transform"
	"go.viam.com/facebox/testutils/inject"
	"go.viam.com/facebox/vision/facedetection"
)

func TestNewStage(t *testing.T) {
	_, err := facedetection.NewStage(nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "must have a Detector")
}

func TestStageRequest(t *testing.T) {
	intrinsics := &transform.PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 500, Fy: 500, Ppx: 300, Ppy: 240}
	var got []facedetection.Request
	det := &inject.Detector{}
	det.DetectFunc = func(ctx context.Context, frame camera.Frame, req facedetection.Request) ([]facedetection.Observation, error) {
		got = append(got, req)
		return nil, nil
	}
	stage, err := facedetection.NewStage(det, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	now := time.Now()
	res := stage.Detect(context.Background(), camera.Frame{Seq: 4, CapturedAt: now, Intrinsics: intrinsics})
	test.That(t, res.Seq, test.ShouldEqual, uint64(4))
	test.That(t, res.CapturedAt, test.ShouldEqual, now)
	test.That(t, res.Err, test.ShouldBeNil)
	test.That(t, res.Observations, test.ShouldBeEmpty)
	_, ok := res.Primary()
	test.That(t, ok, test.ShouldBeFalse)

	stage.Detect(context.Background(), camera.Frame{Seq: 5})
	stage.Detect(context.Background(), camera.Frame{Seq: 6, Intrinsics: intrinsics, Mirrored: true})
	test.That(t, got, test.ShouldHaveLength, 3)
	test.That(t, got[0].Orientation, test.ShouldEqual, facedetection.OrientationUp)
	test.That(t, got[0].Intrinsics, test.ShouldEqual, intrinsics)
	test.That(t, got[1].Intrinsics, test.ShouldBeNil)
	// the detector sees the flipped image, so the principal point is flipped too.
	test.That(t, got[2].Intrinsics, test.ShouldResemble, intrinsics.Mirrored())
	test.That(t, got[2].Intrinsics.Ppx, test.ShouldEqual, 340.0)
}

func TestStageFirstObservationIsPrimary(t *testing.T) {
	a := facedetection.Observation{BoundingBox: facedetection.NormalizedBox{X: 0.1, Y: 0.1, Width: 0.1, Height: 0.1}, Confidence: 0.2}
	b := facedetection.Observation{BoundingBox: facedetection.NormalizedBox{X: 0.5, Y: 0.5, Width: 0.4, Height: 0.4}, Confidence: 0.9}
	stage, err := facedetection.NewStage(facedetection.DetectorFunc(
		func(ctx context.Context, frame camera.Frame, req facedetection.Request) ([]facedetection.Observation, error) {
			return []facedetection.Observation{a, b}, nil
		}), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	res := stage.Detect(context.Background(), camera.Frame{Seq: 1})
	primary, ok := res.Primary()
	test.That(t, ok, test.ShouldBeTrue)
	// first returned wins, not most confident
	test.That(t, primary, test.ShouldResemble, a)
	test.That(t, res.Observations, test.ShouldHaveLength, 2)
}

func TestStageDetectionError(t *testing.T) {
	cause := errors.New("model not loaded")
	det := &inject.Detector{}
	det.DetectFunc = func(ctx context.Context, frame camera.Frame, req facedetection.Request) ([]facedetection.Observation, error) {
		return []facedetection.Observation{{Confidence: 1}}, cause
	}
	logger, logs := logging.NewObservedTestLogger(t)
	stage, err := facedetection.NewStage(det, logger)
	test.That(t, err, test.ShouldBeNil)

	res := stage.Detect(context.Background(), camera.Frame{Seq: 9})
	test.That(t, res.Observations, test.ShouldBeEmpty)
	var detErr *facedetection.DetectionError
	test.That(t, errors.As(res.Err, &detErr), test.ShouldBeTrue)
	test.That(t, detErr.Seq, test.ShouldEqual, uint64(9))
	test.That(t, errors.Is(res.Err, cause), test.ShouldBeTrue)
	test.That(t, res.Err.Error(), test.ShouldContainSubstring, "model not loaded")
	test.That(t, logs.FilterMessage("detection failed").Len(), test.ShouldEqual, 1)
}

func TestStageTimeout(t *testing.T) {
	det := &inject.Detector{}
	det.DetectFunc = func(ctx context.Context, frame camera.Frame, req facedetection.Request) ([]facedetection.Observation, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	stage, err := facedetection.NewStage(det, logging.NewTestLogger(t), facedetection.WithTimeout(10*time.Millisecond))
	test.That(t, err, test.ShouldBeNil)

	res := stage.Detect(context.Background(), camera.Frame{Seq: 1})
	test.That(t, errors.Is(res.Err, context.DeadlineExceeded), test.ShouldBeTrue)
}

func TestStagePostprocessors(t *testing.T) {
	obs := []facedetection.Observation{
		{BoundingBox: facedetection.NormalizedBox{Width: 0.05, Height: 0.05}, Confidence: 0.9},
		{BoundingBox: facedetection.NormalizedBox{Width: 0.5, Height: 0.5}, Confidence: 0.3},
		{BoundingBox: facedetection.NormalizedBox{Width: 0.5, Height: 0.5}, Confidence: 0.8},
	}
	det := facedetection.DetectorFunc(
		func(ctx context.Context, frame camera.Frame, req facedetection.Request) ([]facedetection.Observation, error) {
			return obs, nil
		})
	stage, err := facedetection.NewStage(det, logging.NewTestLogger(t), facedetection.WithPostprocessors(
		facedetection.NewAreaFilter(0.01),
		facedetection.NewScoreFilter(0.5),
	))
	test.That(t, err, test.ShouldBeNil)

	res := stage.Detect(context.Background(), camera.Frame{Seq: 1})
	test.That(t, res.Observations, test.ShouldResemble, obs[2:])
}

func TestNormalizedBoxFromPixels(t *testing.T) {
	bounds := image.Rect(0, 0, 200, 100)
	test.That(t, facedetection.NormalizedBoxFromPixels(image.Rect(20, 10, 60, 50), bounds), test.ShouldResemble,
		facedetection.NormalizedBox{X: 0.1, Y: 0.5, Width: 0.2, Height: 0.4})
	// clipped to the image
	test.That(t, facedetection.NormalizedBoxFromPixels(image.Rect(180, 80, 240, 120), bounds), test.ShouldResemble,
		facedetection.NormalizedBox{X: 0.9, Y: 0, Width: 0.1, Height: 0.2})
	test.That(t, facedetection.NormalizedBoxFromPixels(image.Rect(300, 300, 310, 310), bounds), test.ShouldResemble,
		facedetection.NormalizedBox{})
}
