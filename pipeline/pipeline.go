// Package pipeline connects a camera source to the display and the face detector.
//
// Every delivered frame is shown on the display lane and, depending on the Policy, submitted for
// detection. Detection results are applied to the overlay in the order they complete, as long as
// the pipeline is still running the session the frame came from.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"go.viam.com/facebox/components/camera"
	"go.viam.com/facebox/display"
	"go.viam.com/facebox/logging"
	"go.viam.com/facebox/overlay"
	"go.viam.com/facebox/utils"
	"go.viam.com/facebox/vision/facedetection"
)

// Config are the parts a Pipeline is built from. Source, Stage and Surface are required.
// When Lane is nil the pipeline starts its own and closes it on Close.
type Config struct {
	Source  camera.Source
	Stage   *facedetection.Stage
	Surface display.Surface
	Lane    *display.Lane
	Policy  Policy
	Logger  logging.Logger
}

// A Pipeline runs frames from a source through display and detection.
type Pipeline struct {
	source     camera.Source
	stage      *facedetection.Stage
	surface    display.Surface
	lane       *display.Lane
	ownsLane   bool
	controller *overlay.Controller
	policy     Policy
	logger     logging.Logger

	// warnLimiter keeps a failing detector from flooding the log.
	warnLimiter *rate.Limiter

	// session changes on every Start and Stop; a result is applied only while it still equals
	// the session its frame was captured in.
	session atomic.Uint64
	workers utils.StoppableWorkers
	counters

	mu      sync.Mutex
	running bool
	closed  bool

	detectMu       sync.Mutex
	inFlight       int
	pending        *camera.Frame
	pendingSession uint64
}

// New returns a stopped pipeline. The overlay is hidden as part of construction.
func New(conf Config) (*Pipeline, error) {
	if conf.Source == nil {
		return nil, errors.New("pipeline must have a camera source")
	}
	if conf.Stage == nil {
		return nil, errors.New("pipeline must have a detection stage")
	}
	if conf.Surface == nil {
		return nil, errors.New("pipeline must have a display surface")
	}
	policy, err := ParsePolicy(string(conf.Policy))
	if err != nil {
		return nil, err
	}
	logger := conf.Logger
	if logger == nil {
		logger = logging.Global().Sublogger("pipeline")
	}

	p := &Pipeline{
		source:      conf.Source,
		stage:       conf.Stage,
		surface:     conf.Surface,
		lane:        conf.Lane,
		policy:      policy,
		logger:      logger,
		warnLimiter: rate.NewLimiter(rate.Every(time.Second), 5),
		workers:     utils.NewStoppableWorkers(),
	}
	if p.lane == nil {
		p.lane = display.NewLane(display.DefaultLaneCapacity, logger.Sublogger("display"))
		p.ownsLane = true
	}
	p.controller, err = overlay.NewController(context.Background(), p.lane, p.surface, logger.Sublogger("overlay"))
	if err != nil {
		p.workers.Stop()
		if p.ownsLane {
			p.lane.Close()
		}
		return nil, errors.Wrap(err, "cannot create overlay controller")
	}
	return p, nil
}

// Start subscribes to the camera source. Starting a running pipeline does nothing. When the
// source cannot be started the error is a *CaptureConfigurationError and the pipeline stays
// stopped.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("pipeline is closed")
	}
	if p.running {
		return nil
	}
	session := p.session.Inc()
	if err := p.source.StartDelivering(ctx, func(frame camera.Frame) {
		p.onFrame(session, frame)
	}); err != nil {
		p.session.Inc()
		p.logger.Errorw("cannot start camera source", "error", err)
		return &CaptureConfigurationError{Err: err}
	}
	p.running = true
	p.logger.Infow("pipeline started", "policy", p.policy)
	return nil
}

// Stop releases the camera source. Detections still running complete, but their results are
// discarded and the overlay keeps whatever it last showed. Stopping a stopped pipeline does
// nothing.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return nil
	}
	p.running = false
	p.session.Inc()

	p.detectMu.Lock()
	if p.pending != nil {
		p.detectionsSkipped.Inc()
		p.pending = nil
	}
	p.detectMu.Unlock()

	err := p.source.StopDelivering()
	p.logger.Infow("pipeline stopped")
	return err
}

// Close stops the pipeline, cancels running detections and waits for them to return.
func (p *Pipeline) Close() error {
	err := p.Stop()
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return err
	}
	p.closed = true
	p.mu.Unlock()

	p.workers.Stop()
	if p.ownsLane {
		p.lane.Close()
	}
	return err
}

// Running reports whether the pipeline is subscribed to its source.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Controller returns the overlay controller the pipeline applies results to.
func (p *Pipeline) Controller() *overlay.Controller {
	return p.controller
}

// Lane returns the display lane.
func (p *Pipeline) Lane() *display.Lane {
	return p.lane
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return p.snapshot()
}

func (p *Pipeline) current(session uint64) bool {
	return p.session.Load() == session
}

// onFrame runs on the source's delivery goroutine and must not block.
func (p *Pipeline) onFrame(session uint64, frame camera.Frame) {
	if !p.current(session) {
		return
	}
	p.framesReceived.Inc()

	img, err := frame.Image()
	if err != nil {
		p.conversionFailures.Inc()
		p.logger.Debugw("skipping display of frame", "seq", frame.Seq, "error", err)
	} else if !p.lane.TryPost(func() {
		p.surface.ShowFrame(img)
		p.framesDisplayed.Inc()
	}) {
		p.displayDrops.Inc()
	}

	p.submit(session, frame)
}

func (p *Pipeline) submit(session uint64, frame camera.Frame) {
	if p.policy != PolicyOverlap {
		p.detectMu.Lock()
		if p.inFlight > 0 {
			if p.policy == PolicyCoalesce {
				if p.pending != nil {
					p.detectionsSkipped.Inc()
				}
				p.pending = &frame
				p.pendingSession = session
			} else {
				p.detectionsSkipped.Inc()
			}
			p.detectMu.Unlock()
			return
		}
		p.inFlight++
		p.detectMu.Unlock()
	}

	if !p.workers.AddWorkers(func(ctx context.Context) {
		p.detectLoop(ctx, session, frame)
	}) {
		p.logger.Debugw("pipeline closed, not detecting", "seq", frame.Seq)
		if p.policy != PolicyOverlap {
			p.detectMu.Lock()
			p.inFlight--
			p.detectMu.Unlock()
		}
		return
	}
	p.detectionsSubmitted.Inc()
}

// detectLoop detects frame and, under PolicyCoalesce, whatever frame became pending meanwhile.
func (p *Pipeline) detectLoop(ctx context.Context, session uint64, frame camera.Frame) {
	for {
		p.detect(ctx, session, frame)
		if p.policy == PolicyOverlap {
			return
		}

		p.detectMu.Lock()
		if p.pending == nil || ctx.Err() != nil {
			p.pending = nil
			p.inFlight--
			p.detectMu.Unlock()
			return
		}
		frame, session = *p.pending, p.pendingSession
		p.pending = nil
		p.detectMu.Unlock()
		p.detectionsSubmitted.Inc()
	}
}

func (p *Pipeline) detect(ctx context.Context, session uint64, frame camera.Frame) {
	start := time.Now()
	res := p.stage.Detect(ctx, frame)
	p.recordLatency(time.Since(start))

	if res.Err != nil {
		p.detectionsFailed.Inc()
		if p.warnLimiter.Allow() {
			p.logger.Warnw("face detection failed", "seq", res.Seq, "error", res.Err)
		}
	}
	if !p.current(session) {
		p.resultsDiscarded.Inc()
		return
	}
	guard := func() bool {
		if !p.current(session) {
			p.resultsDiscarded.Inc()
			return false
		}
		p.resultsApplied.Inc()
		return true
	}
	if err := p.controller.Apply(ctx, res, guard); err != nil {
		p.resultsDiscarded.Inc()
		p.logger.Debugw("cannot apply detection result", "seq", res.Seq, "error", err)
	}
}
