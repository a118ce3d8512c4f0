package facedetection

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/facebox/components/camera"
	"go.viam.com/facebox/logging"
)

// Result is the outcome of running the detector on one frame. Err is a *DetectionError when the
// detector failed, in which case there are no observations.
type Result struct {
	Seq          uint64
	CapturedAt   time.Time
	Observations []Observation
	Err          error
}

// Primary returns the primary face, the first observation, if there is one.
func (r Result) Primary() (Observation, bool) {
	if r.Err != nil || len(r.Observations) == 0 {
		return Observation{}, false
	}
	return r.Observations[0], true
}

// A Stage turns frames into detection results. It keeps no state between calls, so Detect may
// run concurrently for different frames.
type Stage struct {
	detector       Detector
	postprocessors []Postprocessor
	timeout        time.Duration
	logger         logging.Logger
}

// A StageOption configures a Stage.
type StageOption func(*Stage)

// WithPostprocessors runs the given postprocessors, in order, on every successful result.
func WithPostprocessors(pps ...Postprocessor) StageOption {
	return func(s *Stage) {
		s.postprocessors = append(s.postprocessors, pps...)
	}
}

// WithTimeout bounds each detector call. Zero means no bound.
func WithTimeout(timeout time.Duration) StageOption {
	return func(s *Stage) {
		s.timeout = timeout
	}
}

// NewStage returns a Stage running det.
func NewStage(det Detector, logger logging.Logger, opts ...StageOption) (*Stage, error) {
	if det == nil {
		return nil, errors.New("detection stage must have a Detector")
	}
	s := &Stage{detector: det, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Detect runs the detector on frame. The orientation hint is always OrientationUp; the device's
// physical orientation is not consulted.
func (s *Stage) Detect(ctx context.Context, frame camera.Frame) Result {
	res := Result{Seq: frame.Seq, CapturedAt: frame.CapturedAt}
	req := Request{Orientation: OrientationUp, Intrinsics: frame.ImageIntrinsics()}

	if s.timeout > 0 {
		var cancel func()
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	observations, err := s.detector.Detect(ctx, frame, req)
	if err != nil {
		res.Err = &DetectionError{Seq: frame.Seq, Err: err}
		s.logger.CDebugw(ctx, "detection failed", "seq", frame.Seq, "error", err)
		return res
	}
	for _, pp := range s.postprocessors {
		observations = pp(observations)
	}
	res.Observations = observations
	s.logger.CDebugw(ctx, "detection done",
		"seq", frame.Seq, "faces", len(observations), "took", time.Since(start))
	return res
}
