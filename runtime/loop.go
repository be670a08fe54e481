// Package runtime handles event production, propagation and scheduling.
// It orchestrates the system without containing business logic or domain rules.
package runtime

import (
	"chat-sync/errors"
	"context"
	"log/slog"
	"sync"
)

type Task = func()

// EventLoop runs tasks one at a time on a single goroutine.
// Store callbacks, timers and user operations all go through it,
// so the state they touch needs no lock.
type EventLoop struct {
	log     *slog.Logger
	tasks   chan Task
	stopped chan struct{}
	once    sync.Once
}

func NewEventLoop(log *slog.Logger, bufferSize int) *EventLoop {
	return &EventLoop{
		log:     log,
		tasks:   make(chan Task, bufferSize),
		stopped: make(chan struct{}),
	}
}

// Run drains the queue until ctx is done or Close is called.
// A panicking task escapes Run so a supervisor can restart it; queued tasks are kept.
func (l *EventLoop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.log.Debug("Context done, stopping event loop")
			l.Close()
			return nil
		case <-l.stopped:
			return nil
		case task := <-l.tasks:
			task()
		}
	}
}

// Post enqueues a task without waiting for it to run.
// It returns false once the loop is stopped.
func (l *EventLoop) Post(task Task) bool {
	select {
	case <-l.stopped:
		return false
	default:
	}
	select {
	case l.tasks <- task:
		return true
	case <-l.stopped:
		return false
	}
}

// Do runs fn on the loop and waits for it.
// It must not be called from a task, the loop would wait on itself.
func (l *EventLoop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn()
	}
	select {
	case l.tasks <- task:
	case <-l.stopped:
		return errors.ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-l.stopped:
		return errors.ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the loop. Tasks still queued are dropped.
func (l *EventLoop) Close() {
	l.once.Do(func() {
		close(l.stopped)
	})
}

func (l *EventLoop) Done() <-chan struct{} {
	return l.stopped
}
