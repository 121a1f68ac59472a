package compositor

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/1broseidon/layerd/internal/decorator"
	"github.com/1broseidon/layerd/internal/paint"
	"github.com/1broseidon/layerd/internal/region"
	"github.com/1broseidon/layerd/internal/scene"
	"github.com/1broseidon/layerd/internal/winborder"
)

type fakeClient struct {
	draws  []region.Region
	moves  []image.Rectangle
	closes []WindowID
}

func (c *fakeClient) Draw(_ WindowID, d region.Region, _ bool) { c.draws = append(c.draws, d) }
func (c *fakeClient) Moved(_ WindowID, r image.Rectangle) { c.moves = append(c.moves, r) }
func (c *fakeClient) CloseRequested(id WindowID) { c.closes = append(c.closes, id) }

var red = color.RGBA{R: 255, A: 255}

func newState(t *testing.T) *State {
	t.Helper()
	return NewState(Options{Screen: image.Rect(0, 0, 800, 600), AuditInvariants: true})
}

func mustCreate(t *testing.T, s *State, c Client, r image.Rectangle, title string) WindowID {
	t.Helper()
	id, err := s.CreateWindow(c, WindowSpec{Title: title, Frame: r, Look: decorator.Titled})
	if err != nil {
		t.Fatalf("CreateWindow(%q) error = %v", title, err)
	}
	return id
}

func mustUpdate(t *testing.T, s *State) {
	t.Helper()
	if err := s.Update(); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := s.CheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

func TestCreateWindowRequestsDraw(t *testing.T) {
	s := newState(t)
	c := &fakeClient{}
	id := mustCreate(t, s, c, image.Rect(100, 100, 300, 250), "one")
	mustUpdate(t, s)

	if s.Focused() != id {
		t.Fatalf("new window not focused")
	}
	if len(c.draws) != 1 || !c.draws[0].Equal(region.FromRect(image.Rect(0, 0, 200, 150))) {
		t.Fatalf("draw requests = %v", c.draws)
	}
	ops := s.TakeOps()
	sawContentFill := false
	for _, op := range ops {
		if op.Kind == paint.OpFillRegion && op.Color == defaultWindowBackground {
			sawContentFill = op.Region.Equal(region.FromRect(image.Rect(100, 100, 300, 250)))
		}
	}
	if !sawContentFill {
		t.Fatalf("content not filled with the window background")
	}

	clip, err := s.BeginUpdate(id)
	if err != nil {
		t.Fatalf("BeginUpdate() error = %v", err)
	}
	if clip.Area() != 200*150 {
		t.Fatalf("clip area = %d", clip.Area())
	}
	if err := s.EndUpdate(id, []Fill{{Rect: image.Rect(-10, -10, 10, 10), Color: red}}); err != nil {
		t.Fatalf("EndUpdate() error = %v", err)
	}
	fills := paint.Recorder{Ops: s.TakeOps()}
	got := fills.OfKind(paint.OpFillRect)
	if len(got) != 1 || got[0].Rect != image.Rect(90, 90, 110, 110) {
		t.Fatalf("client fill = %+v", got)
	}
	if !got[0].Clip.Equal(region.FromRect(image.Rect(100, 100, 300, 250))) {
		t.Fatalf("client fill clip = %v", got[0].Clip)
	}
}

func TestPointerDragIsThrottled(t *testing.T) {
	s := newState(t)
	c := &fakeClient{}
	id := mustCreate(t, s, c, image.Rect(100, 100, 300, 250), "drag")
	mustUpdate(t, s)

	s.PointerDown(image.Pt(150, 85), decorator.Primary)
	if s.Grab() != id {
		t.Fatalf("press on tab did not grab")
	}
	s.PointerMoved(image.Pt(160, 95), decorator.Primary)
	s.PointerMoved(image.Pt(170, 105), decorator.Primary)
	mustUpdate(t, s)
	if len(c.moves) != 1 {
		t.Fatalf("moves before reply = %d, want 1", len(c.moves))
	}
	if err := s.MoveReply(id); err != nil {
		t.Fatalf("MoveReply() error = %v", err)
	}
	if len(c.moves) != 2 || c.moves[1] != image.Rect(120, 120, 320, 270) {
		t.Fatalf("coalesced move = %v", c.moves)
	}
	s.PointerUp(image.Pt(170, 105))
	if s.Grab() != 0 {
		t.Fatalf("grab kept after release")
	}
	mustUpdate(t, s)
}

func TestCloseButtonRequestsClose(t *testing.T) {
	s := newState(t)
	c := &fakeClient{}
	id := mustCreate(t, s, c, image.Rect(100, 100, 300, 250), "close")
	mustUpdate(t, s)
	b, _ := s.Border(id)
	on := b.Decorator().CloseRect().Min.Add(image.Pt(1, 1))

	s.PointerDown(on, decorator.Primary)
	s.PointerUp(on)
	if len(c.closes) != 1 || c.closes[0] != id {
		t.Fatalf("close requests = %v", c.closes)
	}
	if _, err := s.Border(id); err != nil {
		t.Fatalf("window destroyed without client consent")
	}
}

func TestClicksFocusAndRaise(t *testing.T) {
	s := newState(t)
	a := mustCreate(t, s, nil, image.Rect(100, 100, 300, 250), "a")
	b := mustCreate(t, s, nil, image.Rect(200, 150, 400, 300), "b")
	mustUpdate(t, s)
	if s.Focused() != b {
		t.Fatalf("focused = %v, want %v", s.Focused(), b)
	}

	s.PointerDown(image.Pt(120, 120), decorator.Primary)
	s.PointerUp(image.Pt(120, 120))
	mustUpdate(t, s)
	if s.Focused() != a || s.windowAt(image.Pt(250, 200)) != a {
		t.Fatalf("click did not raise a: focused=%v", s.Focused())
	}

	if got := s.CycleFocus(); got != b {
		t.Fatalf("CycleFocus() = %v, want %v", got, b)
	}
	mustUpdate(t, s)
}

func TestDestroyFocusesNext(t *testing.T) {
	s := newState(t)
	c := &fakeClient{}
	a := mustCreate(t, s, c, image.Rect(100, 100, 300, 250), "a")
	b := mustCreate(t, s, c, image.Rect(200, 150, 400, 300), "b")
	other := mustCreate(t, s, nil, image.Rect(500, 400, 600, 500), "other")
	mustUpdate(t, s)

	if err := s.DestroyWindow(other); err != nil {
		t.Fatalf("DestroyWindow() error = %v", err)
	}
	if s.Focused() != b {
		t.Fatalf("focus after destroy = %v, want %v", s.Focused(), b)
	}
	mustUpdate(t, s)

	if n := s.DestroyClient(c); n != 2 {
		t.Fatalf("DestroyClient() = %d, want 2", n)
	}
	if s.Focused() != 0 || len(s.windows) != 0 {
		t.Fatalf("windows left: %v", s.WindowIDs())
	}
	mustUpdate(t, s)
	if err := s.DestroyWindow(a); !errors.Is(err, ErrUnknownWindow) {
		t.Fatalf("DestroyWindow(stale) = %v, want ErrUnknownWindow", err)
	}
}

func TestUnknownWindows(t *testing.T) {
	s := newState(t)
	checks := map[string]func() error{
		"frame":  func() error { _, err := s.SetWindowFrame(7, image.Rect(0, 0, 10, 10)); return err },
		"scroll": func() error { return s.ScrollWindow(7, 0, 1) },
		"show":   func() error { return s.ShowWindow(7) },
		"hide":   func() error { return s.HideWindow(7) },
		"begin":  func() error { _, err := s.BeginUpdate(7); return err },
		"end":    func() error { return s.EndUpdate(7, nil) },
		"reply":  func() error { return s.MoveReply(7) },
		"title":  func() error { return s.SetTitle(7, "x") },
		"focus":  func() error { return s.Focus(7) },
	}
	for name, fn := range checks {
		if err := fn(); !errors.Is(err, ErrUnknownWindow) {
			t.Errorf("%s: err = %v, want ErrUnknownWindow", name, err)
		}
	}
}

func TestExpireUpdates(t *testing.T) {
	s := newState(t)
	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }
	c := &fakeClient{}
	id := mustCreate(t, s, c, image.Rect(100, 100, 300, 250), "slow")
	mustUpdate(t, s)

	if n := s.ExpireUpdates(time.Second); n != 0 {
		t.Fatalf("expired %d fresh updates", n)
	}
	now = now.Add(2 * time.Second)
	if n := s.ExpireUpdates(time.Second); n != 1 {
		t.Fatalf("ExpireUpdates() = %d, want 1", n)
	}
	b, _ := s.Border(id)
	if s.Tree().Phase(b.Content()) != scene.Idle {
		t.Fatalf("content still repainting after expiry")
	}
}

func TestHiddenWindowIsNotHit(t *testing.T) {
	s := newState(t)
	id, err := s.CreateWindow(nil, WindowSpec{Frame: image.Rect(100, 100, 300, 250), Hidden: true})
	if err != nil {
		t.Fatalf("CreateWindow() error = %v", err)
	}
	mustUpdate(t, s)
	if s.windowAt(image.Pt(150, 150)) != 0 || s.Focused() != 0 {
		t.Fatalf("hidden window reachable")
	}
	if err := s.ShowWindow(id); err != nil {
		t.Fatalf("ShowWindow() error = %v", err)
	}
	mustUpdate(t, s)
	if s.windowAt(image.Pt(150, 150)) != id {
		t.Fatalf("shown window not hit")
	}
}

func TestRunRendersThroughQueue(t *testing.T) {
	sw := paint.NewSoftware(image.Rect(0, 0, 400, 300))
	c := New(sw, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx) }()

	id, err := c.CreateWindow(ctx, nil, WindowSpec{Frame: image.Rect(50, 50, 250, 200), Background: red})
	if err != nil {
		t.Fatalf("CreateWindow() error = %v", err)
	}
	if id == 0 {
		t.Fatalf("zero window id")
	}
	if err := c.Sync(ctx); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if got := sw.At(150, 120); got != red {
		t.Fatalf("content pixel = %v, want red", got)
	}
	var bg color.RGBA
	c.Do(ctx, func(s *State) error {
		bg = s.Tree().Background()
		return nil
	})
	if got := sw.At(5, 5); got != bg {
		t.Fatalf("background pixel = %v, want %v", got, bg)
	}

	st, err := c.Status(ctx)
	if err != nil || st.Windows != 1 || st.Focused != id {
		t.Fatalf("Status() = %+v, %v", st, err)
	}

	cancel()
	<-errc
	if err := c.Do(context.Background(), func(*State) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Fatalf("Do() after stop = %v, want ErrClosed", err)
	}
}

func TestDoRecoversPanics(t *testing.T) {
	c := New(nil, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go c.Run(ctx)
	err := c.Do(ctx, func(*State) error { panic("boom") })
	if err == nil {
		t.Fatalf("panic not reported")
	}
	if err := c.Redraw(ctx); err != nil {
		t.Fatalf("loop dead after panic: %v", err)
	}
}

func TestHidingGrabbedWindowCancelsPress(t *testing.T) {
	s := newState(t)
	c := &fakeClient{}
	id := mustCreate(t, s, c, image.Rect(100, 100, 300, 250), "drag")
	mustUpdate(t, s)
	b, _ := s.Border(id)

	s.PointerDown(image.Pt(150, 85), decorator.Primary)
	if err := s.HideWindow(id); err != nil {
		t.Fatalf("HideWindow() error = %v", err)
	}
	if err := s.ShowWindow(id); err != nil {
		t.Fatalf("ShowWindow() error = %v", err)
	}
	mustUpdate(t, s)
	if s.Grab() != 0 || b.State() != winborder.Idle {
		t.Fatalf("after hide grab = %v, border state = %v", s.Grab(), b.State())
	}
	s.PointerMoved(image.Pt(150, 130), decorator.Primary)
	if b.ContentFrame() != image.Rect(100, 100, 300, 250) {
		t.Fatalf("stale drag moved content to %v", b.ContentFrame())
	}

	on := b.Decorator().CloseRect().Min.Add(image.Pt(1, 1))
	s.PointerDown(on, decorator.Primary)
	if b.State() != winborder.CloseArmed || s.Grab() != id {
		t.Fatalf("close press after hide: state = %v, grab = %v", b.State(), s.Grab())
	}
	if err := s.DestroyWindow(id); err != nil {
		t.Fatalf("DestroyWindow() error = %v", err)
	}
	if s.Grab() != 0 || b.State() != winborder.Idle {
		t.Fatalf("after destroy grab = %v, border state = %v", s.Grab(), b.State())
	}
	mustUpdate(t, s)
}
