package paint

import (
	"context"
	"errors"
	"log/slog"
)

// ErrQueueStopped is returned once the render worker has exited.
var ErrQueueStopped = errors.New("paint: queue stopped")

type batch struct {
	ops  []Op
	done chan error
}

// Queue runs recorded ops against a Backend on its own goroutine, in the
// order they were submitted.
type Queue struct {
	backend Backend
	logger  *slog.Logger
	batches chan batch
	stopped chan struct{}
}

// NewQueue returns a queue holding up to depth pending batches.
func NewQueue(backend Backend, depth int, logger *slog.Logger) *Queue {
	if depth <= 0 {
		depth = 16
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		backend: backend,
		logger:  logger,
		batches: make(chan batch, depth),
		stopped: make(chan struct{}),
	}
}

// Backend returns the backend the queue renders into.
func (q *Queue) Backend() Backend { return q.backend }

// Run processes batches until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) error {
	defer close(q.stopped)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b := <-q.batches:
			err := q.render(b.ops)
			if err != nil {
				q.logger.Warn("render flush failed", "error", err)
			}
			if b.done != nil {
				b.done <- err
			}
		}
	}
}

func (q *Queue) render(ops []Op) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("render panic", "panic", r, "ops", len(ops))
			err = errors.New("paint: render panic")
		}
	}()
	for _, op := range ops {
		op.Apply(q.backend)
	}
	return q.backend.Flush()
}

// Submit enqueues ops without waiting for them to be drawn. It blocks only
// while the queue is full.
func (q *Queue) Submit(ctx context.Context, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}
	select {
	case q.batches <- batch{ops: ops}:
		return nil
	case <-q.stopped:
		return ErrQueueStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sync waits until everything submitted before it has been drawn and
// flushed.
func (q *Queue) Sync(ctx context.Context) error {
	done := make(chan error, 1)
	select {
	case q.batches <- batch{done: done}:
	case <-q.stopped:
		return ErrQueueStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-q.stopped:
		return ErrQueueStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
