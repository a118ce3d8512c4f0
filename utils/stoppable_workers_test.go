package utils

import (
	"context"
	"testing"

	"go.uber.org/atomic"
	"go.viam.com/test"
)

func TestStoppableWorkers(t *testing.T) {
	started := make(chan struct{})
	var stopped atomic.Bool
	sw := NewStoppableWorkers(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		stopped.Store(true)
	})
	<-started
	test.That(t, sw.Context().Err(), test.ShouldBeNil)

	sw.Stop()
	test.That(t, stopped.Load(), test.ShouldBeTrue)
	test.That(t, sw.Context().Err(), test.ShouldNotBeNil)

	// Workers added after Stop never run.
	var ran atomic.Bool
	test.That(t, sw.AddWorkers(func(context.Context) { ran.Store(true) }), test.ShouldBeFalse)
	sw.Stop()
	test.That(t, ran.Load(), test.ShouldBeFalse)
}

func TestStoppableWorkersParentContext(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	sw := NewStoppableWorkersWithContext(parent, func(ctx context.Context) {
		<-ctx.Done()
		close(done)
	})
	cancel()
	<-done
	sw.Stop()
}

func TestStoppableWorkersPanic(t *testing.T) {
	sw := NewStoppableWorkers(func(context.Context) {
		panic("worker blew up")
	})
	// The panic is captured and logged; Stop still returns.
	sw.Stop()
}
