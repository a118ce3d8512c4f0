package display

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/facebox/logging"
	"go.viam.com/facebox/utils"
)

// DefaultLaneCapacity is the number of tasks a lane queues before TryPost starts dropping.
const DefaultLaneCapacity = 8

// ErrLaneClosed is returned when posting to a closed lane.
var ErrLaneClosed = errors.New("display lane is closed")

// A Lane runs tasks one at a time, in the order they were posted, on a single goroutine. All
// Surface calls go through it.
type Lane struct {
	tasks   chan func()
	workers utils.StoppableWorkers
	logger  logging.Logger
	dropped atomic.Uint64
}

// NewLane starts a lane queueing up to capacity tasks.
func NewLane(capacity int, logger logging.Logger) *Lane {
	if capacity <= 0 {
		capacity = DefaultLaneCapacity
	}
	l := &Lane{tasks: make(chan func(), capacity), logger: logger}
	l.workers = utils.NewStoppableWorkers(l.run)
	return l
}

func (l *Lane) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-l.tasks:
			l.runTask(task)
		}
	}
}

func (l *Lane) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Errorw("display task panicked", "panic", fmt.Sprint(r))
		}
	}()
	task()
}

// Post queues task, waiting for room if the lane is full.
func (l *Lane) Post(ctx context.Context, task func()) error {
	closed := l.workers.Context()
	if closed.Err() != nil {
		return ErrLaneClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-closed.Done():
		return ErrLaneClosed
	case l.tasks <- task:
		return nil
	}
}

// TryPost queues task unless the lane is full or closed. It never blocks.
func (l *Lane) TryPost(task func()) bool {
	if l.workers.Context().Err() != nil {
		return false
	}
	select {
	case l.tasks <- task:
		return true
	default:
		l.dropped.Inc()
		return false
	}
}

// Flush waits until every task posted before it has run.
func (l *Lane) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if err := l.Post(ctx, func() { close(done) }); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.workers.Context().Done():
		return ErrLaneClosed
	case <-done:
		return nil
	}
}

// Dropped returns how many tasks TryPost turned away because the lane was full.
func (l *Lane) Dropped() uint64 {
	return l.dropped.Load()
}

// Close stops the lane. Queued tasks that have not started are discarded.
func (l *Lane) Close() {
	l.workers.Stop()
}
