// Package runner builds and runs everything a facebox config describes.
package runner

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/facebox/components/camera"
	"go.viam.com/facebox/config"
	"go.viam.com/facebox/display"
	"go.viam.com/facebox/display/mjpeg"
	"go.viam.com/facebox/logging"
	"go.viam.com/facebox/overlay"
	"go.viam.com/facebox/pipeline"
	"go.viam.com/facebox/vision/facedetection"
)

// A Runner owns the camera, detector, display and optional stream server built from one config.
type Runner struct {
	conf     *config.Config
	logger   logging.Logger
	lane     *display.Lane
	surface  *display.ImageSurface
	pipeline *pipeline.Pipeline
	stream   *mjpeg.Server
}

// New builds the parts described by conf. Nothing runs until Start.
func New(ctx context.Context, conf *config.Config, logger logging.Logger) (*Runner, error) {
	source, err := camera.NewSource(ctx, conf.Camera, logger.Sublogger("camera"))
	if err != nil {
		return nil, err
	}
	detector, err := facedetection.NewDetector(ctx, conf.Detector, logger.Sublogger("detection"))
	if err != nil {
		return nil, err
	}
	timeout, err := conf.Pipeline.Timeout()
	if err != nil {
		return nil, err
	}
	stage, err := facedetection.NewStage(detector, logger.Sublogger("detection"),
		facedetection.WithTimeout(timeout),
		facedetection.WithPostprocessors(conf.Pipeline.Postprocessors()...))
	if err != nil {
		return nil, err
	}

	width, height := conf.Display.Size()
	r := &Runner{
		conf:    conf,
		logger:  logger,
		lane:    display.NewLane(display.DefaultLaneCapacity, logger.Sublogger("display")),
		surface: display.NewImageSurface(width, height, conf.Display.SurfaceOptions()...),
	}
	r.pipeline, err = pipeline.New(pipeline.Config{
		Source:  source,
		Stage:   stage,
		Surface: r.surface,
		Lane:    r.lane,
		Policy:  pipeline.Policy(conf.Pipeline.Policy),
		Logger:  logger.Sublogger("pipeline"),
	})
	if err != nil {
		r.lane.Close()
		return nil, err
	}
	if conf.Display.Stream != nil {
		r.stream = mjpeg.NewServer(r.surface, *conf.Display.Stream, logger.Sublogger("stream"))
	}
	return r, nil
}

// Start starts the pipeline and then the stream server, if one is configured.
func (r *Runner) Start(ctx context.Context) error {
	if err := r.pipeline.Start(ctx); err != nil {
		return err
	}
	if r.stream != nil {
		if err := r.stream.Start(ctx); err != nil {
			return multierr.Combine(errors.Wrap(err, "cannot start display stream"), r.pipeline.Stop())
		}
	}
	return nil
}

// Config returns the config the runner was built from.
func (r *Runner) Config() *config.Config {
	return r.conf
}

// Stats returns the pipeline counters.
func (r *Runner) Stats() pipeline.Stats {
	return r.pipeline.Stats()
}

// Overlay returns the overlay state.
func (r *Runner) Overlay() overlay.State {
	return r.pipeline.Controller().State()
}

// Surface returns the composed display.
func (r *Runner) Surface() *display.ImageSurface {
	return r.surface
}

// StreamAddress returns the address the stream server listens on, or "" without one.
func (r *Runner) StreamAddress() string {
	if r.stream == nil {
		return ""
	}
	return r.stream.Addr()
}

// Close stops and releases everything.
func (r *Runner) Close() error {
	var err error
	if r.stream != nil {
		err = multierr.Combine(err, r.stream.Close())
	}
	err = multierr.Combine(err, r.pipeline.Close())
	r.lane.Close()
	return err
}
