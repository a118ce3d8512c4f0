package fake

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/facebox/components/camera"
	"go.viam.com/facebox/logging"
	"go.viam.com/facebox/utils"
)

// produceFunc renders the next frame. Returning false ends delivery.
type produceFunc func(seq uint64, now time.Time) (camera.Frame, bool)

// tickingSource delivers one produced frame per clock tick. It is the delivery loop shared by the
// fake and image_file models.
type tickingSource struct {
	clock    clock.Clock
	interval time.Duration
	produce  produceFunc
	logger   logging.Logger

	mu      sync.Mutex
	workers utils.StoppableWorkers
	seq     uint64
}

func newTickingSource(clk clock.Clock, fps float64, produce produceFunc, logger logging.Logger) *tickingSource {
	return &tickingSource{
		clock:    clk,
		interval: time.Duration(float64(time.Second) / fps),
		produce:  produce,
		logger:   logger,
	}
}

func (ts *tickingSource) StartDelivering(ctx context.Context, onFrame func(camera.Frame)) error {
	if onFrame == nil {
		return errors.New("no frame callback given")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.workers != nil {
		return nil
	}

	// the ticker exists before StartDelivering returns so that no tick is missed.
	ticker := ts.clock.Ticker(ts.interval)
	ts.workers = utils.NewStoppableWorkers(func(ctx context.Context) {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			ts.mu.Lock()
			ts.seq++
			seq := ts.seq
			ts.mu.Unlock()

			frame, ok := ts.produce(seq, ts.clock.Now())
			if !ok {
				ts.logger.Debugw("frame source exhausted", "seq", seq)
				return
			}
			onFrame(frame)
		}
	})
	return nil
}

func (ts *tickingSource) StopDelivering() error {
	ts.mu.Lock()
	workers := ts.workers
	ts.workers = nil
	ts.mu.Unlock()
	if workers != nil {
		workers.Stop()
	}
	return nil
}
