package pipeline

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"go.viam.com/facebox/components/camera"
	"go.viam.com/facebox/display"
	"go.viam.com/facebox/logging"
	"go.viam.com/facebox/overlay"
	"go.viam.com/facebox/rimage"
	"go.viam.com/facebox/testutils/inject"
	"go.viam.com/facebox/vision/facedetection"
)

var testBounds = display.Rect{Width: 200, Height: 100}

// gatedDetector answers with preset observations per frame. Frames with a gate block until the
// gate is closed or their context is done.
type gatedDetector struct {
	mu    sync.Mutex
	seen  []uint64
	boxes map[uint64]facedetection.NormalizedBox
	gates map[uint64]chan struct{}
	fail  map[uint64]bool
}

func newGatedDetector() *gatedDetector {
	return &gatedDetector{
		boxes: map[uint64]facedetection.NormalizedBox{},
		gates: map[uint64]chan struct{}{},
		fail:  map[uint64]bool{},
	}
}

func (d *gatedDetector) gate(seq uint64) func() {
	ch := make(chan struct{})
	d.mu.Lock()
	d.gates[seq] = ch
	d.mu.Unlock()
	return func() { close(ch) }
}

func (d *gatedDetector) detect(
	ctx context.Context, frame camera.Frame, req facedetection.Request,
) ([]facedetection.Observation, error) {
	d.mu.Lock()
	d.seen = append(d.seen, frame.Seq)
	gate := d.gates[frame.Seq]
	box, hasBox := d.boxes[frame.Seq]
	fail := d.fail[frame.Seq]
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("detector exploded")
	}
	if !hasBox {
		return nil, nil
	}
	return []facedetection.Observation{{BoundingBox: box, Confidence: 1}}, nil
}

func (d *gatedDetector) Seen() []uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uint64(nil), d.seen...)
}

type surfaceCall struct {
	op   string
	rect display.Rect
}

type harness struct {
	p        *Pipeline
	det      *gatedDetector
	source   *inject.Source
	starts   int
	stops    int
	mu       sync.Mutex
	onFrame  func(camera.Frame)
	calls    []surfaceCall
	startErr error
}

func newHarness(t *testing.T, policy Policy, lane *display.Lane) *harness {
	t.Helper()
	logger := logging.NewTestLogger(t)
	return newHarnessWithLogger(t, policy, lane, logger)
}

func newHarnessWithLogger(t *testing.T, policy Policy, lane *display.Lane, logger logging.Logger) *harness {
	t.Helper()
	h := &harness{det: newGatedDetector()}

	h.source = &inject.Source{}
	h.source.StartDeliveringFunc = func(ctx context.Context, onFrame func(camera.Frame)) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.starts++
		if h.startErr != nil {
			return h.startErr
		}
		h.onFrame = onFrame
		return nil
	}
	h.source.StopDeliveringFunc = func() error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.stops++
		h.onFrame = nil
		return nil
	}

	surface := &inject.Surface{}
	surface.ShowFrameFunc = func(img image.Image) { h.record(surfaceCall{op: "frame"}) }
	surface.ShowBoxFunc = func(rect display.Rect) { h.record(surfaceCall{op: "show", rect: rect}) }
	surface.HideBoxFunc = func() { h.record(surfaceCall{op: "hide"}) }
	surface.CurrentBoundsFunc = func() display.Rect { return testBounds }

	stage, err := facedetection.NewStage(&inject.Detector{DetectFunc: h.det.detect}, logger)
	test.That(t, err, test.ShouldBeNil)

	h.p, err = New(Config{
		Source:  h.source,
		Stage:   stage,
		Surface: surface,
		Lane:    lane,
		Policy:  policy,
		Logger:  logger,
	})
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, h.p.Close(), test.ShouldBeNil)
	})
	return h
}

func (h *harness) record(c surfaceCall) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, c)
}

// overlayCalls returns the box calls made after the initial hide.
func (h *harness) overlayCalls() []surfaceCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []surfaceCall
	for _, c := range h.calls {
		if c.op != "frame" {
			out = append(out, c)
		}
	}
	if len(out) > 0 && out[0].op == "hide" {
		out = out[1:]
	}
	return out
}

func (h *harness) counts() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.starts, h.stops
}

// deliver hands frame to the pipeline as the source's delivery goroutine would.
func (h *harness) deliver(t *testing.T, frame camera.Frame) {
	t.Helper()
	h.mu.Lock()
	onFrame := h.onFrame
	h.mu.Unlock()
	test.That(t, onFrame, test.ShouldNotBeNil)
	onFrame(frame)
}

func (h *harness) waitApplied(t *testing.T, n uint64) {
	t.Helper()
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, h.p.Stats().ResultsApplied, test.ShouldEqual, n)
	})
	test.That(t, h.p.Lane().Flush(context.Background()), test.ShouldBeNil)
}

func (h *harness) waitIdle(t *testing.T) {
	t.Helper()
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		h.p.detectMu.Lock()
		defer h.p.detectMu.Unlock()
		test.That(tb, h.p.inFlight, test.ShouldEqual, 0)
	})
}

func testFrame(seq uint64) camera.Frame {
	return camera.NewRGBAFrame(image.NewRGBA(image.Rect(0, 0, 200, 100)), seq, time.Now())
}

func shown(box facedetection.NormalizedBox) surfaceCall {
	return surfaceCall{op: "show", rect: overlay.MapToDisplay(box, testBounds)}
}

func TestNewRequiresParts(t *testing.T) {
	logger := logging.NewTestLogger(t)
	stage, err := facedetection.NewStage(&inject.Detector{}, logger)
	test.That(t, err, test.ShouldBeNil)

	_, err = New(Config{Stage: stage, Surface: &inject.Surface{}, Logger: logger})
	test.That(t, err, test.ShouldBeError, errors.New("pipeline must have a camera source"))
	_, err = New(Config{Source: &inject.Source{}, Surface: &inject.Surface{}, Logger: logger})
	test.That(t, err, test.ShouldBeError, errors.New("pipeline must have a detection stage"))
	_, err = New(Config{Source: &inject.Source{}, Stage: stage, Logger: logger})
	test.That(t, err, test.ShouldBeError, errors.New("pipeline must have a display surface"))
	_, err = New(Config{
		Source: &inject.Source{}, Stage: stage, Surface: &inject.Surface{}, Policy: "newest", Logger: logger,
	})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestStartIsIdempotent(t *testing.T) {
	h := newHarness(t, PolicyOverlap, nil)
	test.That(t, h.p.Running(), test.ShouldBeFalse)

	test.That(t, h.p.Start(context.Background()), test.ShouldBeNil)
	test.That(t, h.p.Start(context.Background()), test.ShouldBeNil)
	test.That(t, h.p.Running(), test.ShouldBeTrue)
	starts, stops := h.counts()
	test.That(t, starts, test.ShouldEqual, 1)
	test.That(t, stops, test.ShouldEqual, 0)

	test.That(t, h.p.Stop(), test.ShouldBeNil)
	test.That(t, h.p.Stop(), test.ShouldBeNil)
	test.That(t, h.p.Running(), test.ShouldBeFalse)
	_, stops = h.counts()
	test.That(t, stops, test.ShouldEqual, 1)

	test.That(t, h.p.Start(context.Background()), test.ShouldBeNil)
	starts, _ = h.counts()
	test.That(t, starts, test.ShouldEqual, 2)
}

func TestStartFailure(t *testing.T) {
	h := newHarness(t, PolicyOverlap, nil)
	h.startErr = errors.New("no camera attached")

	err := h.p.Start(context.Background())
	var captureErr *CaptureConfigurationError
	test.That(t, errors.As(err, &captureErr), test.ShouldBeTrue)
	test.That(t, captureErr.Err, test.ShouldBeError, h.startErr)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no camera attached")
	test.That(t, h.p.Running(), test.ShouldBeFalse)

	// no retry on its own, and stopping a pipeline that never started is harmless.
	test.That(t, h.p.Stop(), test.ShouldBeNil)
	starts, stops := h.counts()
	test.That(t, starts, test.ShouldEqual, 1)
	test.That(t, stops, test.ShouldEqual, 0)
}

func TestStartAfterClose(t *testing.T) {
	h := newHarness(t, PolicyOverlap, nil)
	test.That(t, h.p.Close(), test.ShouldBeNil)
	test.That(t, h.p.Start(context.Background()), test.ShouldBeError, errors.New("pipeline is closed"))
}

func TestThreeFrameScenario(t *testing.T) {
	h := newHarness(t, PolicyOverlap, nil)
	box1 := facedetection.NormalizedBox{X: 0.1, Y: 0.1, Width: 0.3, Height: 0.3}
	box3 := facedetection.NormalizedBox{X: 0.5, Y: 0.5, Width: 0.2, Height: 0.2}
	h.det.boxes[1] = box1
	h.det.boxes[3] = box3

	test.That(t, h.p.Start(context.Background()), test.ShouldBeNil)
	for seq := uint64(1); seq <= 3; seq++ {
		h.deliver(t, testFrame(seq))
		h.waitApplied(t, seq)
	}

	test.That(t, h.overlayCalls(), test.ShouldResemble, []surfaceCall{
		shown(box1),
		{op: "hide"},
		shown(box3),
	})
	test.That(t, h.p.Controller().State(), test.ShouldResemble,
		overlay.State{Shown: true, Rect: display.Rect{X: 100, Y: 30, Width: 40, Height: 20}})

	stats := h.p.Stats()
	test.That(t, stats.FramesReceived, test.ShouldEqual, 3)
	test.That(t, stats.FramesDisplayed, test.ShouldEqual, 3)
	test.That(t, stats.DetectionsSubmitted, test.ShouldEqual, 3)
	test.That(t, stats.ResultsDiscarded, test.ShouldEqual, 0)
	test.That(t, stats.DetectionLatencyP95, test.ShouldBeGreaterThanOrEqualTo, stats.DetectionLatencyP50)
}

func TestConversionFailureSkipsOnlyThatFrame(t *testing.T) {
	h := newHarness(t, PolicyOverlap, nil)
	box := facedetection.NormalizedBox{X: 0.2, Y: 0.2, Width: 0.4, Height: 0.4}
	h.det.boxes[2] = box
	test.That(t, h.p.Start(context.Background()), test.ShouldBeNil)

	h.deliver(t, camera.Frame{Data: []byte("not a jpeg"), Format: rimage.PixelFormatJPEG, Seq: 1})
	h.waitApplied(t, 1)
	h.deliver(t, testFrame(2))
	h.waitApplied(t, 2)

	stats := h.p.Stats()
	test.That(t, stats.FramesReceived, test.ShouldEqual, 2)
	test.That(t, stats.ConversionFailures, test.ShouldEqual, 1)
	test.That(t, stats.FramesDisplayed, test.ShouldEqual, 1)
	test.That(t, stats.DetectionsSubmitted, test.ShouldEqual, 2)
	test.That(t, h.overlayCalls(), test.ShouldResemble, []surfaceCall{{op: "hide"}, shown(box)})
}

func TestLatestCompletedResultWins(t *testing.T) {
	h := newHarness(t, PolicyOverlap, nil)
	box1 := facedetection.NormalizedBox{X: 0.1, Y: 0.1, Width: 0.2, Height: 0.2}
	box2 := facedetection.NormalizedBox{X: 0.6, Y: 0.6, Width: 0.2, Height: 0.2}
	h.det.boxes[1] = box1
	h.det.boxes[2] = box2
	release1 := h.det.gate(1)
	test.That(t, h.p.Start(context.Background()), test.ShouldBeNil)

	h.deliver(t, testFrame(1))
	h.deliver(t, testFrame(2))
	h.waitApplied(t, 1)
	test.That(t, h.overlayCalls(), test.ShouldResemble, []surfaceCall{shown(box2)})

	// the older frame completes last, so it is what stays on screen.
	release1()
	h.waitApplied(t, 2)
	test.That(t, h.overlayCalls(), test.ShouldResemble, []surfaceCall{shown(box2), shown(box1)})
	test.That(t, h.p.Controller().State().Rect, test.ShouldResemble, overlay.MapToDisplay(box1, testBounds))
}

func TestStopDiscardsInFlightResults(t *testing.T) {
	h := newHarness(t, PolicyOverlap, nil)
	h.det.boxes[1] = facedetection.NormalizedBox{X: 0.1, Y: 0.1, Width: 0.2, Height: 0.2}
	release := h.det.gate(1)
	test.That(t, h.p.Start(context.Background()), test.ShouldBeNil)

	h.deliver(t, testFrame(1))
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, h.det.Seen(), test.ShouldResemble, []uint64{1})
	})
	test.That(t, h.p.Stop(), test.ShouldBeNil)
	release()

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, h.p.Stats().ResultsDiscarded, test.ShouldEqual, 1)
	})
	test.That(t, h.p.Lane().Flush(context.Background()), test.ShouldBeNil)
	test.That(t, h.overlayCalls(), test.ShouldBeEmpty)
	test.That(t, h.p.Controller().State(), test.ShouldResemble, overlay.Hidden)
	test.That(t, h.p.Stats().ResultsApplied, test.ShouldEqual, 0)
}

func TestStaleResultAfterRestartIsDiscarded(t *testing.T) {
	h := newHarness(t, PolicyOverlap, nil)
	box2 := facedetection.NormalizedBox{X: 0.3, Y: 0.3, Width: 0.2, Height: 0.2}
	h.det.boxes[1] = facedetection.NormalizedBox{X: 0.1, Y: 0.1, Width: 0.2, Height: 0.2}
	h.det.boxes[2] = box2
	release := h.det.gate(1)

	test.That(t, h.p.Start(context.Background()), test.ShouldBeNil)
	h.deliver(t, testFrame(1))
	test.That(t, h.p.Stop(), test.ShouldBeNil)
	test.That(t, h.p.Start(context.Background()), test.ShouldBeNil)
	h.deliver(t, testFrame(2))
	h.waitApplied(t, 1)

	release()
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, h.p.Stats().ResultsDiscarded, test.ShouldEqual, 1)
	})
	test.That(t, h.p.Lane().Flush(context.Background()), test.ShouldBeNil)
	test.That(t, h.overlayCalls(), test.ShouldResemble, []surfaceCall{shown(box2)})
}

func TestDetectionFailureHidesAndWarns(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	h := newHarnessWithLogger(t, PolicyOverlap, nil, logger)
	box := facedetection.NormalizedBox{X: 0.1, Y: 0.1, Width: 0.2, Height: 0.2}
	h.det.boxes[1] = box
	h.det.fail[2] = true
	test.That(t, h.p.Start(context.Background()), test.ShouldBeNil)

	h.deliver(t, testFrame(1))
	h.waitApplied(t, 1)
	h.deliver(t, testFrame(2))
	h.waitApplied(t, 2)

	test.That(t, h.overlayCalls(), test.ShouldResemble, []surfaceCall{shown(box), {op: "hide"}})
	test.That(t, h.p.Stats().DetectionsFailed, test.ShouldEqual, 1)
	test.That(t, logs.FilterMessage("face detection failed").Len(), test.ShouldEqual, 1)
}

func TestPolicyDrop(t *testing.T) {
	h := newHarness(t, PolicyDrop, nil)
	release := h.det.gate(1)
	test.That(t, h.p.Start(context.Background()), test.ShouldBeNil)

	h.deliver(t, testFrame(1))
	h.deliver(t, testFrame(2))
	h.deliver(t, testFrame(3))
	stats := h.p.Stats()
	test.That(t, stats.DetectionsSubmitted, test.ShouldEqual, 1)
	test.That(t, stats.DetectionsSkipped, test.ShouldEqual, 2)

	release()
	h.waitApplied(t, 1)
	h.waitIdle(t)

	h.deliver(t, testFrame(4))
	h.waitApplied(t, 2)
	test.That(t, h.det.Seen(), test.ShouldResemble, []uint64{1, 4})
	test.That(t, h.p.Stats().FramesDisplayed, test.ShouldEqual, 4)
}

func TestPolicyCoalesce(t *testing.T) {
	h := newHarness(t, PolicyCoalesce, nil)
	box3 := facedetection.NormalizedBox{X: 0.4, Y: 0.4, Width: 0.1, Height: 0.1}
	h.det.boxes[3] = box3
	release := h.det.gate(1)
	test.That(t, h.p.Start(context.Background()), test.ShouldBeNil)

	h.deliver(t, testFrame(1))
	h.deliver(t, testFrame(2))
	h.deliver(t, testFrame(3))
	test.That(t, h.p.Stats().DetectionsSkipped, test.ShouldEqual, 1)

	release()
	h.waitApplied(t, 2)
	h.waitIdle(t)
	test.That(t, h.det.Seen(), test.ShouldResemble, []uint64{1, 3})
	test.That(t, h.p.Stats().DetectionsSubmitted, test.ShouldEqual, 2)
	test.That(t, h.overlayCalls(), test.ShouldResemble, []surfaceCall{{op: "hide"}, shown(box3)})
}

func TestDisplayDropsWhenLaneIsFull(t *testing.T) {
	logger := logging.NewTestLogger(t)
	lane := display.NewLane(1, logger)
	defer lane.Close()
	h := newHarness(t, PolicyOverlap, lane)
	test.That(t, lane.Flush(context.Background()), test.ShouldBeNil)

	started := make(chan struct{})
	unblock := make(chan struct{})
	test.That(t, lane.Post(context.Background(), func() {
		close(started)
		<-unblock
	}), test.ShouldBeNil)
	<-started

	test.That(t, h.p.Start(context.Background()), test.ShouldBeNil)
	h.deliver(t, testFrame(1))
	h.deliver(t, testFrame(2))
	test.That(t, h.p.Stats().DisplayDrops, test.ShouldEqual, 1)
	test.That(t, h.p.Stats().DetectionsSubmitted, test.ShouldEqual, 2)

	close(unblock)
	h.waitApplied(t, 2)
	test.That(t, h.p.Stats().FramesDisplayed, test.ShouldEqual, 1)
}

func TestCloseCancelsDetections(t *testing.T) {
	h := newHarness(t, PolicyOverlap, nil)
	h.det.gate(1)
	test.That(t, h.p.Start(context.Background()), test.ShouldBeNil)
	h.deliver(t, testFrame(1))
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, h.det.Seen(), test.ShouldResemble, []uint64{1})
	})

	test.That(t, h.p.Close(), test.ShouldBeNil)
	test.That(t, h.p.Running(), test.ShouldBeFalse)
	stats := h.p.Stats()
	test.That(t, stats.DetectionsFailed, test.ShouldEqual, 1)
	test.That(t, stats.ResultsDiscarded, test.ShouldEqual, 1)
}
