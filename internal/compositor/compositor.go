// Package compositor owns the scene graph. A single goroutine runs the
// command loop; sessions and input sources submit closures through Do and
// never touch the tree directly. Pixel operations recorded while a batch
// runs are handed to a paint.Queue so backend I/O stays off the loop.
package compositor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/1broseidon/layerd/internal/decorator"
	"github.com/1broseidon/layerd/internal/paint"
	"github.com/1broseidon/layerd/internal/region"
	"github.com/1broseidon/layerd/internal/scene"
)

var (
	// ErrClosed is returned once the command loop has stopped.
	ErrClosed = errors.New("compositor: closed")
	// ErrUnknownWindow is returned for window IDs that were never issued or
	// have been destroyed.
	ErrUnknownWindow = errors.New("compositor: unknown window")
)

// maxBatch bounds how many queued commands run before an update cycle.
const maxBatch = 64

type command struct {
	fn   func(*State) error
	done chan error
	// flushed is closed once the batch holding the command has been
	// handed to the renderer.
	flushed chan struct{}
}

// Compositor serializes access to a State.
type Compositor struct {
	state  *State
	queue  *paint.Queue
	logger *slog.Logger

	cmds    chan command
	stopped chan struct{}
	once    sync.Once
}

// New returns a compositor drawing into backend. Run must be called before
// any command completes.
func New(backend paint.Backend, opts Options) *Compositor {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Screen.Empty() && backend != nil {
		opts.Screen = backend.Bounds()
	}
	c := &Compositor{
		state:   NewState(opts),
		logger:  opts.Logger,
		cmds:    make(chan command, maxBatch),
		stopped: make(chan struct{}),
	}
	if backend != nil {
		c.queue = paint.NewQueue(backend, opts.QueueDepth, opts.Logger.With("component", "render"))
	}
	return c
}

// Run processes commands until ctx is cancelled.
func (c *Compositor) Run(ctx context.Context) error {
	defer c.once.Do(func() { close(c.stopped) })

	renderCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup
	if c.queue != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.queue.Run(renderCtx)
		}()
	}
	defer wg.Wait()

	c.logger.Info("compositor started", "screen", c.state.Screen().String())
	c.flush(ctx)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("compositor stopped")
			return ctx.Err()
		case cmd := <-c.cmds:
			var waiters []chan struct{}
			waiters = c.exec(cmd, waiters)
		batch:
			for n := 1; n < maxBatch; n++ {
				select {
				case next := <-c.cmds:
					waiters = c.exec(next, waiters)
				default:
					break batch
				}
			}
			c.flush(ctx)
			for _, w := range waiters {
				close(w)
			}
		}
	}
}

func (c *Compositor) exec(cmd command, waiters []chan struct{}) []chan struct{} {
	err := c.safe(cmd.fn)
	if cmd.done != nil {
		cmd.done <- err
	}
	if cmd.flushed != nil {
		waiters = append(waiters, cmd.flushed)
	}
	return waiters
}

func (c *Compositor) safe(fn func(*State) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("command panic", "panic", r)
			err = fmt.Errorf("compositor: command panic: %v", r)
		}
	}()
	return fn(c.state)
}

// flush runs one update cycle for the batch and hands its pixel work to
// the renderer.
func (c *Compositor) flush(ctx context.Context) {
	if err := c.safe(func(s *State) error { return s.Update() }); err != nil {
		c.logger.Warn("update cycle failed", "error", err)
	}
	ops := c.state.TakeOps()
	if c.queue == nil || len(ops) == 0 {
		return
	}
	if err := c.queue.Submit(ctx, ops); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Warn("render submit failed", "error", err)
	}
}

// Do runs fn on the command loop and returns its error.
func (c *Compositor) Do(ctx context.Context, fn func(*State) error) error {
	done := make(chan error, 1)
	select {
	case c.cmds <- command{fn: fn, done: done}:
	case <-c.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-c.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Post queues fn without waiting for it. Input sources use it so a slow
// batch never stalls event delivery.
func (c *Compositor) Post(fn func(*State) error) error {
	select {
	case c.cmds <- command{fn: fn}:
		return nil
	case <-c.stopped:
		return ErrClosed
	}
}

// Sync waits until every op recorded so far has reached the backend.
func (c *Compositor) Sync(ctx context.Context) error {
	flushed := make(chan struct{})
	select {
	case c.cmds <- command{fn: func(*State) error { return nil }, flushed: flushed}:
	case <-c.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-flushed:
	case <-c.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	if c.queue == nil {
		return nil
	}
	return c.queue.Sync(ctx)
}

// CreateWindow adds a decorated window owned by client.
func (c *Compositor) CreateWindow(ctx context.Context, client Client, spec WindowSpec) (WindowID, error) {
	var id WindowID
	err := c.Do(ctx, func(s *State) error {
		var err error
		id, err = s.CreateWindow(client, spec)
		return err
	})
	return id, err
}

// DestroyWindow removes a window.
func (c *Compositor) DestroyWindow(ctx context.Context, id WindowID) error {
	return c.Do(ctx, func(s *State) error { return s.DestroyWindow(id) })
}

// DestroyClient removes every window owned by client.
func (c *Compositor) DestroyClient(ctx context.Context, client Client) error {
	return c.Do(ctx, func(s *State) error {
		s.DestroyClient(client)
		return nil
	})
}

// SetWindowFrame moves and resizes a window's content area. It returns the
// frame actually applied after limits and alignment.
func (c *Compositor) SetWindowFrame(ctx context.Context, id WindowID, r image.Rectangle) (image.Rectangle, error) {
	var applied image.Rectangle
	err := c.Do(ctx, func(s *State) error {
		var err error
		applied, err = s.SetWindowFrame(id, r)
		return err
	})
	return applied, err
}

// ScrollWindow scrolls a window's content.
func (c *Compositor) ScrollWindow(ctx context.Context, id WindowID, dx, dy float64) error {
	return c.Do(ctx, func(s *State) error { return s.ScrollWindow(id, dx, dy) })
}

// ShowWindow undoes one HideWindow.
func (c *Compositor) ShowWindow(ctx context.Context, id WindowID) error {
	return c.Do(ctx, func(s *State) error { return s.ShowWindow(id) })
}

// HideWindow hides a window.
func (c *Compositor) HideWindow(ctx context.Context, id WindowID) error {
	return c.Do(ctx, func(s *State) error { return s.HideWindow(id) })
}

// InvalidateWindow damages r in content coordinates, or all of the content
// when r is empty.
func (c *Compositor) InvalidateWindow(ctx context.Context, id WindowID, r image.Rectangle) error {
	return c.Do(ctx, func(s *State) error { return s.InvalidateWindow(id, r) })
}

// BeginUpdate starts a client repaint and returns the clip in content
// coordinates.
func (c *Compositor) BeginUpdate(ctx context.Context, id WindowID) (region.Region, error) {
	var clip region.Region
	err := c.Do(ctx, func(s *State) error {
		var err error
		clip, err = s.BeginUpdate(id)
		return err
	})
	return clip, err
}

// EndUpdate paints fills inside the clip of the repaint in flight and
// completes it.
func (c *Compositor) EndUpdate(ctx context.Context, id WindowID, fills []Fill) error {
	return c.Do(ctx, func(s *State) error { return s.EndUpdate(id, fills) })
}

// MoveReply acknowledges a geometry-change notification.
func (c *Compositor) MoveReply(ctx context.Context, id WindowID) error {
	return c.Do(ctx, func(s *State) error { return s.MoveReply(id) })
}

// SetTitle renames a window.
func (c *Compositor) SetTitle(ctx context.Context, id WindowID, title string) error {
	return c.Do(ctx, func(s *State) error { return s.SetTitle(id, title) })
}

// Focus raises a window and gives it the focus look.
func (c *Compositor) Focus(ctx context.Context, id WindowID) error {
	return c.Do(ctx, func(s *State) error { return s.Focus(id) })
}

// Redraw damages the whole screen.
func (c *Compositor) Redraw(ctx context.Context) error {
	return c.Do(ctx, func(s *State) error { return s.Redraw() })
}

// Snapshot returns the scene graph.
func (c *Compositor) Snapshot(ctx context.Context) (scene.NodeInfo, error) {
	var info scene.NodeInfo
	err := c.Do(ctx, func(s *State) error {
		var err error
		info, err = s.Snapshot()
		return err
	})
	return info, err
}

// Status returns counters for status displays.
func (c *Compositor) Status(ctx context.Context) (Status, error) {
	var st Status
	err := c.Do(ctx, func(s *State) error {
		st = s.Status()
		return nil
	})
	return st, err
}

// PointerDown queues a press in screen coordinates.
func (c *Compositor) PointerDown(pt image.Point, buttons decorator.Buttons) error {
	return c.Post(func(s *State) error {
		s.PointerDown(pt, buttons)
		return nil
	})
}

// PointerMoved queues pointer motion.
func (c *Compositor) PointerMoved(pt image.Point, buttons decorator.Buttons) error {
	return c.Post(func(s *State) error {
		s.PointerMoved(pt, buttons)
		return nil
	})
}

// PointerUp queues a release.
func (c *Compositor) PointerUp(pt image.Point) error {
	return c.Post(func(s *State) error {
		s.PointerUp(pt)
		return nil
	})
}
