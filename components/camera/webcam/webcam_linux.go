//go:build linux

package webcam

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/blackjack/webcam"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"go.viam.com/facebox/components/camera"
	"go.viam.com/facebox/logging"
	"go.viam.com/facebox/rimage"
	"go.viam.com/facebox/utils"
)

const (
	// from https://github.com/blackjack/webcam/blob/master/examples/http_mjpeg_streamer/webcam.go
	v4l2PixFmtYuyv = webcam.PixelFormat(0x56595559)
	jpegVideo      = webcam.PixelFormat(1196444237)

	// frameWaitSeconds bounds each wait so that a stop request is noticed.
	frameWaitSeconds = 1
)

var goodFormats = []webcam.PixelFormat{v4l2PixFmtYuyv, jpegVideo}

// device is the part of *webcam.Webcam used once streaming has started.
type device interface {
	WaitForFrame(timeout uint32) error
	ReadFrame() ([]byte, error)
	StopStreaming() error
	Close() error
}

// Source streams frames from a V4L2 device.
type Source struct {
	conf   *Config
	logger logging.Logger

	mu      sync.Mutex
	cam     device
	format  rimage.PixelFormat
	width   int
	height  int
	workers utils.StoppableWorkers
	seq     uint64

	// streamErr is set when the device stopped delivering on its own.
	streamErr atomic.Error
}

// NewSource returns a webcam source. The device is opened by StartDelivering.
func NewSource(conf *Config, logger logging.Logger) *Source {
	return &Source{conf: conf, logger: logger}
}

// StartDelivering opens the configured device, or the first usable /dev/videoN, and streams.
func (s *Source) StartDelivering(ctx context.Context, onFrame func(camera.Frame)) error {
	if onFrame == nil {
		return errors.New("no frame callback given")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workers != nil {
		streamErr := s.streamErr.Load()
		if streamErr == nil {
			return nil
		}
		s.logger.Infow("reopening webcam after stream failure", "error", streamErr)
		if err := s.release(); err != nil {
			s.logger.Warnw("error releasing failed webcam", "error", err)
		}
		s.streamErr.Store(nil)
	}

	if err := s.open(ctx); err != nil {
		return err
	}
	cam := s.cam
	s.workers = utils.NewStoppableWorkers(func(ctx context.Context) {
		s.streamLoop(ctx, cam, onFrame)
	})
	return nil
}

// Err returns the error that ended streaming on its own, or nil while the device is healthy or
// stopped. The next StartDelivering reopens the device.
func (s *Source) Err() error {
	return s.streamErr.Load()
}

func (s *Source) open(ctx context.Context) error {
	if s.conf.Path != "" {
		return s.tryOpen(s.conf.Path)
	}
	var errs error
	for i := 0; i <= maxProbedDevice; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := fmt.Sprintf("/dev/video%d", i)
		err := s.tryOpen(path)
		if err == nil {
			s.logger.Debugf("found webcam %s", path)
			return nil
		}
		errs = multierr.Append(errs, err)
	}
	return errors.Wrap(errs, "could find no webcams")
}

func (s *Source) tryOpen(path string) (err error) {
	cam, err := webcam.Open(path)
	if err != nil {
		return errors.Wrapf(err, "cannot open webcam [%s]", path)
	}
	defer func() {
		if err != nil {
			err = multierr.Combine(err, cam.Close())
		}
	}()

	formats := cam.GetSupportedFormats()
	format := webcam.PixelFormat(0)
	for _, f := range goodFormats {
		if _, ok := formats[f]; !ok {
			continue
		}
		if len(cam.GetSupportedFrameSizes(f)) == 0 {
			continue
		}
		format = f
		break
	}
	if format == 0 {
		return errors.Errorf("no supported format for %s, supported ones: %v", path, formats)
	}

	width, height := uint32(s.conf.Width), uint32(s.conf.Height)
	if width == 0 || height == 0 {
		sizes := cam.GetSupportedFrameSizes(format)
		bestSize := 0
		for idx, size := range sizes {
			if size.MaxWidth > sizes[bestSize].MaxWidth {
				bestSize = idx
			}
		}
		width, height = sizes[bestSize].MaxWidth, sizes[bestSize].MaxHeight
	}

	format, w, h, err := cam.SetImageFormat(format, width, height)
	if err != nil {
		return errors.Wrapf(err, "cannot set image format for %s", path)
	}
	if err := cam.SetBufferCount(2); err != nil {
		return errors.Wrapf(err, "cannot SetBufferCount stream for %s", path)
	}
	if err := cam.StartStreaming(); err != nil {
		return errors.Wrapf(err, "cannot start webcam stream for %s", path)
	}

	s.cam = cam
	s.width, s.height = int(w), int(h)
	if format == jpegVideo {
		s.format = rimage.PixelFormatJPEG
	} else {
		s.format = rimage.PixelFormatYUYV
	}
	s.logger.Infow("webcam streaming", "path", path, "format", s.format, "width", w, "height", h)
	return nil
}

func (s *Source) streamLoop(ctx context.Context, cam device, onFrame func(camera.Frame)) {
	intrinsics := s.conf.Intrinsics
	if intrinsics != nil && (intrinsics.Width != s.width || intrinsics.Height != s.height) {
		intrinsics = intrinsics.Scaled(s.width, s.height)
	}
	for ctx.Err() == nil {
		err := cam.WaitForFrame(frameWaitSeconds)
		var timeout *webcam.Timeout
		if errors.As(err, &timeout) {
			continue
		}
		if err != nil {
			s.logger.Errorw("couldn't get webcam frame, stopping", "error", err)
			s.streamErr.Store(errors.Wrap(err, "webcam stopped delivering"))
			return
		}

		data, err := cam.ReadFrame()
		if err != nil {
			s.logger.Warnw("couldn't read webcam frame", "error", err)
			continue
		}
		if len(data) == 0 {
			continue
		}
		s.seq++
		// the device buffer is reused by the next read.
		onFrame(camera.Frame{
			Data:       append([]byte(nil), data...),
			Format:     s.format,
			Width:      s.width,
			Height:     s.height,
			Intrinsics: intrinsics,
			CapturedAt: time.Now(),
			Seq:        s.seq,
			Mirrored:   s.conf.Mirror,
		})
	}
}

// StopDelivering stops streaming and releases the device.
func (s *Source) StopDelivering() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workers == nil {
		return nil
	}
	err := s.release()
	s.streamErr.Store(nil)
	return err
}

// release stops the stream loop and closes the device. s.mu must be held.
func (s *Source) release() error {
	s.workers.Stop()
	s.workers = nil
	err := multierr.Combine(s.cam.StopStreaming(), s.cam.Close())
	s.cam = nil
	return err
}
