package compositor

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"sort"
	"time"

	"github.com/1broseidon/layerd/internal/decorator"
	"github.com/1broseidon/layerd/internal/paint"
	"github.com/1broseidon/layerd/internal/region"
	"github.com/1broseidon/layerd/internal/scene"
	"github.com/1broseidon/layerd/internal/winborder"
)

// WindowID names a window for its whole lifetime. IDs are never reused.
type WindowID uint64

// String returns the string representation of the window ID
func (id WindowID) String() string { return fmt.Sprintf("w%d", uint64(id)) }

// Client receives the notifications for the windows it owns. Methods are
// called on the command loop and must not block or call back into the
// compositor synchronously.
type Client interface {
	// Draw asks for damage (content coordinates) to be repainted inside a
	// BeginUpdate/EndUpdate bracket.
	Draw(id WindowID, damage region.Region, updatePass bool)
	// Moved reports a new content frame in screen coordinates. The client
	// acknowledges with MoveReply.
	Moved(id WindowID, frame image.Rectangle)
	// CloseRequested reports a click on the close button.
	CloseRequested(id WindowID)
}

// WindowSpec describes a new window.
type WindowSpec struct {
	// Frame is the content area in screen coordinates. An empty frame
	// places a window of Options.DefaultSize.
	Frame      image.Rectangle
	Title      string
	Look       decorator.Look
	Feel       decorator.Feel
	Flags      decorator.Flags
	MinSize    image.Point
	MaxSize    image.Point
	Alignment  winborder.Alignment
	Background color.RGBA
	Hidden     bool
}

// Fill is a solid rectangle a client paints during EndUpdate, in content
// coordinates.
type Fill struct {
	Rect  image.Rectangle
	Color color.RGBA
}

// Options configure a State.
type Options struct {
	Screen             image.Rectangle
	Background         color.RGBA
	Decorator          decorator.Factory
	FullUpdateOnResize bool
	Limits             winborder.Limits
	Alignment          winborder.Alignment
	DefaultSize        image.Point
	AuditInvariants    bool
	QueueDepth         int
	Logger             *slog.Logger
}

var defaultWindowBackground = color.RGBA{R: 216, G: 216, B: 216, A: 255}

type window struct {
	id         WindowID
	client     Client
	border     *winborder.Border
	background color.RGBA
	created    time.Time
	clip       region.Region
	// drawSince is when the client was last asked to draw and has not yet
	// ended the update.
	drawSince time.Time
}

// State is the compositor's data. It is only ever used from the command
// loop, or directly by tests.
type State struct {
	opts   Options
	logger *slog.Logger
	tree   *scene.Tree
	root   scene.Handle
	rec    *paint.Recorder

	windows map[WindowID]*window
	byLayer map[scene.Handle]WindowID
	nextID  WindowID
	focused WindowID
	grab    WindowID

	cycles  uint64
	started time.Time
	now     func() time.Time
}

// NewState builds an empty screen.
func NewState(opts Options) *State {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Screen.Empty() {
		opts.Screen = image.Rect(0, 0, 1024, 768)
	}
	if opts.DefaultSize.X <= 0 || opts.DefaultSize.Y <= 0 {
		opts.DefaultSize = image.Pt(480, 320)
	}
	tr := scene.NewTree()
	if opts.Background.A != 0 {
		tr.SetBackground(opts.Background)
	}
	s := &State{
		opts:    opts,
		logger:  opts.Logger,
		tree:    tr,
		root:    tr.NewRoot(opts.Screen),
		rec:     &paint.Recorder{},
		windows: make(map[WindowID]*window),
		byLayer: make(map[scene.Handle]WindowID),
		now:     time.Now,
	}
	s.started = s.now()
	return s
}

// Tree exposes the scene graph.
func (s *State) Tree() *scene.Tree { return s.tree }

// Root returns the screen layer.
func (s *State) Root() scene.Handle { return s.root }

// Screen returns the screen rectangle.
func (s *State) Screen() image.Rectangle { return s.opts.Screen }

// Update runs one update cycle and, if enabled, audits the region
// invariants afterwards.
func (s *State) Update() error {
	if err := s.tree.UpdateRegions(s.root, false, s.rec); err != nil {
		return err
	}
	s.cycles++
	if s.opts.AuditInvariants {
		if err := s.tree.CheckInvariants(s.root); err != nil {
			s.logger.Warn("region invariants violated", "error", err)
		}
	}
	return nil
}

// CheckInvariants verifies the region invariants of the whole screen.
func (s *State) CheckInvariants() error { return s.tree.CheckInvariants(s.root) }

// TakeOps returns and clears the recorded pixel operations.
func (s *State) TakeOps() []paint.Op { return s.rec.Take() }

func (s *State) window(id WindowID, op string) (*window, error) {
	w, ok := s.windows[id]
	if !ok {
		s.logger.Debug("stale window", "op", op, "window", id.String())
		return nil, fmt.Errorf("%s %s: %w", op, id, ErrUnknownWindow)
	}
	return w, nil
}

func (s *State) placement() image.Rectangle {
	n := len(s.windows) % 10
	at := s.opts.Screen.Min.Add(image.Pt(40+24*n, 40+24*n))
	return image.Rectangle{Min: at, Max: at.Add(s.opts.DefaultSize)}
}

// CreateWindow adds a window in front of the others and focuses it unless
// it starts hidden.
func (s *State) CreateWindow(client Client, spec WindowSpec) (WindowID, error) {
	frame := spec.Frame.Canon()
	if frame.Empty() {
		frame = s.placement()
	}
	limits := s.opts.Limits
	if limits == (winborder.Limits{}) {
		limits = winborder.DefaultLimits()
	}
	if spec.MinSize != (image.Point{}) {
		limits.Min = spec.MinSize
	}
	if spec.MaxSize != (image.Point{}) {
		limits.Max = spec.MaxSize
	}
	bg := spec.Background
	if bg.A == 0 {
		bg = defaultWindowBackground
	}

	id := s.nextID + 1
	w := &window{id: id, client: client, background: bg, created: s.now()}
	b, err := winborder.New(winborder.Config{
		Tree:    s.tree,
		Parent:  s.root,
		Content: frame,
		Title:   spec.Title,
		Look:    spec.Look,
		Feel:    spec.Feel,
		Flags:   spec.Flags,
		Factory: s.opts.Decorator,
		Notifier: winborder.NotifierFunc(func(r image.Rectangle) {
			if w.client != nil {
				w.client.Moved(w.id, r)
			}
		}),
		Painter: s.rec,
		Limits:  limits,
		Logger:  s.logger.With("window", id.String()),
	})
	if err != nil {
		return 0, fmt.Errorf("create window: %w", err)
	}
	s.nextID = id
	w.border = b

	align := spec.Alignment
	if align == (winborder.Alignment{}) {
		align = s.opts.Alignment
	}
	if align != (winborder.Alignment{}) {
		b.SetAlignment(align)
	}
	if s.opts.FullUpdateOnResize {
		s.tree.SetFlags(b.Content(), s.tree.Flags(b.Content())|scene.FullUpdateOnResize)
	}
	if err := s.tree.SetOwner(b.Content(), s.contentOwner(w)); err != nil {
		b.Destroy()
		return 0, fmt.Errorf("create window: %w", err)
	}

	s.windows[id] = w
	s.byLayer[b.Layer()] = id
	s.byLayer[b.Content()] = id
	s.logger.Debug("window created", "window", id.String(), "title", spec.Title, "frame", b.ContentFrame().String())

	if spec.Hidden {
		s.tree.Hide(b.Layer())
		return id, nil
	}
	s.Focus(id)
	return id, nil
}

// contentOwner fills new damage with the window background at once, then
// asks the client to draw on top of it.
func (s *State) contentOwner(w *window) scene.Owner {
	return scene.OwnerFunc(func(h scene.Handle, damage region.Region, updatePass bool) {
		origin := s.tree.ConvertToRoot(h, image.Point{})
		s.rec.FillRegion(damage.Translated(origin), w.background)
		if w.client == nil {
			s.tree.BeginUpdate(h)
			s.tree.EndUpdate(h)
			return
		}
		if w.drawSince.IsZero() {
			w.drawSince = s.now()
		}
		w.client.Draw(w.id, damage, updatePass)
	})
}

// DestroyWindow removes a window and focuses the next one in front.
func (s *State) DestroyWindow(id WindowID) error {
	w, err := s.window(id, "destroy")
	if err != nil {
		return err
	}
	delete(s.windows, id)
	delete(s.byLayer, w.border.Layer())
	delete(s.byLayer, w.border.Content())
	if s.grab == id {
		w.border.Cancel()
		s.grab = 0
	}
	if err := w.border.Destroy(); err != nil {
		return fmt.Errorf("destroy %s: %w", id, err)
	}
	s.logger.Debug("window destroyed", "window", id.String())
	if s.focused == id {
		s.focused = 0
		if next := s.topmost(); next != 0 {
			s.Focus(next)
		}
	}
	return nil
}

// DestroyClient removes every window owned by c.
func (s *State) DestroyClient(c Client) int {
	n := 0
	for _, id := range s.WindowIDs() {
		if s.windows[id].client == c {
			s.DestroyWindow(id)
			n++
		}
	}
	return n
}

// SetWindowFrame applies a client-requested content frame.
func (s *State) SetWindowFrame(id WindowID, r image.Rectangle) (image.Rectangle, error) {
	w, err := s.window(id, "set frame")
	if err != nil {
		return image.Rectangle{}, err
	}
	return w.border.SetContentFrame(r.Canon()), nil
}

// ScrollWindow scrolls the window content by (dx, dy).
func (s *State) ScrollWindow(id WindowID, dx, dy float64) error {
	w, err := s.window(id, "scroll")
	if err != nil {
		return err
	}
	return s.tree.ScrollBy(w.border.Content(), dx, dy)
}

// ShowWindow undoes one HideWindow.
func (s *State) ShowWindow(id WindowID) error {
	w, err := s.window(id, "show")
	if err != nil {
		return err
	}
	return s.tree.Show(w.border.Layer())
}

// HideWindow hides the window. Hides nest.
func (s *State) HideWindow(id WindowID) error {
	w, err := s.window(id, "hide")
	if err != nil {
		return err
	}
	if err := s.tree.Hide(w.border.Layer()); err != nil {
		return err
	}
	if s.grab == id {
		w.border.Cancel()
		s.grab = 0
	}
	return nil
}

// InvalidateWindow damages r (content coordinates), or the whole content
// when r is empty.
func (s *State) InvalidateWindow(id WindowID, r image.Rectangle) error {
	w, err := s.window(id, "invalidate")
	if err != nil {
		return err
	}
	if r.Empty() {
		return s.tree.InvalidateAll(w.border.Content(), false)
	}
	return s.tree.Invalidate(w.border.Content(), r)
}

// BeginUpdate returns the region the client should repaint, in content
// coordinates.
func (s *State) BeginUpdate(id WindowID) (region.Region, error) {
	w, err := s.window(id, "begin update")
	if err != nil {
		return region.Region{}, err
	}
	clip, err := s.tree.BeginUpdate(w.border.Content())
	if err != nil {
		return region.Region{}, err
	}
	w.clip = clip
	return clip.Clone(), nil
}

// EndUpdate paints fills clipped to the BeginUpdate region and completes
// the repaint.
func (s *State) EndUpdate(id WindowID, fills []Fill) error {
	w, err := s.window(id, "end update")
	if err != nil {
		return err
	}
	h := w.border.Content()
	if len(fills) > 0 {
		clip := w.clip
		if clip.IsEmpty() {
			clip = s.tree.VisibleRegion(h)
		}
		origin := s.tree.ConvertToRoot(h, image.Point{})
		screenClip := clip.Translated(origin)
		for _, f := range fills {
			s.rec.FillRect(f.Rect.Add(origin), f.Color, screenClip)
		}
	}
	w.clip = region.Region{}
	w.drawSince = time.Time{}
	return s.tree.EndUpdate(h)
}

// ExpireUpdates ends repaints that clients have left open longer than
// maxAge, so their later damage is not held back forever. It returns how
// many were ended.
func (s *State) ExpireUpdates(maxAge time.Duration) int {
	n := 0
	now := s.now()
	for _, id := range s.WindowIDs() {
		w := s.windows[id]
		if w.drawSince.IsZero() || now.Sub(w.drawSince) < maxAge {
			continue
		}
		s.logger.Warn("client repaint timed out", "window", id.String(), "age", now.Sub(w.drawSince).String())
		s.EndUpdate(id, nil)
		n++
	}
	return n
}

// MoveReply acknowledges the window's geometry-change notification.
func (s *State) MoveReply(id WindowID) error {
	w, err := s.window(id, "move reply")
	if err != nil {
		return err
	}
	w.border.MoveReply()
	return nil
}

// SetTitle renames the window.
func (s *State) SetTitle(id WindowID, title string) error {
	w, err := s.window(id, "set title")
	if err != nil {
		return err
	}
	w.border.SetTitle(title)
	return nil
}

// Redraw damages every layer on screen.
func (s *State) Redraw() error {
	return s.tree.InvalidateAll(s.root, true)
}

// Border returns the window's frame.
func (s *State) Border(id WindowID) (*winborder.Border, error) {
	w, err := s.window(id, "border")
	if err != nil {
		return nil, err
	}
	return w.border, nil
}

// WindowIDs returns live windows in creation order.
func (s *State) WindowIDs() []WindowID {
	ids := make([]WindowID, 0, len(s.windows))
	for id := range s.windows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Snapshot returns the whole scene graph.
func (s *State) Snapshot() (scene.NodeInfo, error) {
	return s.tree.Snapshot(s.root)
}

// WindowInfo summarizes one window.
type WindowInfo struct {
	ID      WindowID        `json:"id"`
	Title   string          `json:"title"`
	Frame   image.Rectangle `json:"frame"`
	Content image.Rectangle `json:"content"`
	Hidden  bool            `json:"hidden"`
	Focused bool            `json:"focused"`
	Zoomed  bool            `json:"zoomed"`
	Pending bool            `json:"move_pending"`
	State   string          `json:"state"`
}

// Status reports counters for status displays.
type Status struct {
	Windows       int             `json:"windows"`
	Layers        int             `json:"layers"`
	Focused       WindowID        `json:"focused,omitempty"`
	Cycles        uint64          `json:"update_cycles"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Screen        image.Rectangle `json:"screen"`
	List          []WindowInfo    `json:"list,omitempty"`
}

// Windows describes every live window in creation order.
func (s *State) Windows() []WindowInfo {
	ids := s.WindowIDs()
	out := make([]WindowInfo, 0, len(ids))
	for _, id := range ids {
		b := s.windows[id].border
		out = append(out, WindowInfo{
			ID:      id,
			Title:   b.Decorator().Title(),
			Frame:   b.Frame(),
			Content: b.ContentFrame(),
			Hidden:  s.tree.IsHidden(b.Layer()),
			Focused: id == s.focused,
			Zoomed:  b.Zoomed(),
			Pending: b.Pending(),
			State:   b.State().String(),
		})
	}
	return out
}

// Status returns the current counters.
func (s *State) Status() Status {
	return Status{
		Windows:       len(s.windows),
		Layers:        s.tree.Len(),
		Focused:       s.focused,
		Cycles:        s.cycles,
		UptimeSeconds: int64(s.now().Sub(s.started).Seconds()),
		Screen:        s.opts.Screen,
		List:          s.Windows(),
	}
}
