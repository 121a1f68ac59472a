// Package winborder implements the window frame: a layer that hosts a
// client's content layer, draws its chrome through a Decorator, and turns
// pointer input into moves, resizes and button clicks.
//
// While a close or zoom button is armed only that button follows the
// pointer: it looks pressed while the pointer is over it and released
// otherwise, and no other button reacts until the press ends.
//
// Geometry changes are reported to the client through a Notifier with at
// most one notification outstanding; further changes are coalesced until
// the client acknowledges with MoveReply.
package winborder

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/1broseidon/layerd/internal/decorator"
	"github.com/1broseidon/layerd/internal/paint"
	"github.com/1broseidon/layerd/internal/region"
	"github.com/1broseidon/layerd/internal/scene"
)

// Notifier receives geometry-change notifications. The rectangle is the
// content frame in screen coordinates.
type Notifier interface {
	FrameChanged(content image.Rectangle)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(content image.Rectangle)

func (f NotifierFunc) FrameChanged(content image.Rectangle) { f(content) }

// State is the interaction state of a border.
type State int

const (
	Idle State = iota
	Dragging
	Resizing
	CloseArmed
	ZoomArmed
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Dragging:
		return "dragging"
	case Resizing:
		return "resizing"
	case CloseArmed:
		return "close-armed"
	case ZoomArmed:
		return "zoom-armed"
	default:
		return "idle"
	}
}

// Action is what the caller should do after a press or release.
type Action int

const (
	ActionNone Action = iota
	ActionClose
	ActionZoom
	ActionMoveToBack
	ActionMoveToFront
)

// Config describes a new border.
type Config struct {
	Tree   *scene.Tree
	Parent scene.Handle
	// Content is the client area in screen coordinates.
	Content  image.Rectangle
	Title    string
	Look     decorator.Look
	Feel     decorator.Feel
	Flags    decorator.Flags
	Factory  decorator.Factory
	Notifier Notifier
	Painter  paint.Painter
	Limits   Limits
	Logger   *slog.Logger
}

// Border is one decorated window.
type Border struct {
	tree    *scene.Tree
	parent  scene.Handle
	frame   scene.Handle
	content scene.Handle
	deco    decorator.Decorator
	notify  Notifier
	painter paint.Painter
	logger  *slog.Logger

	limits      Limits
	align       Alignment
	resizableH  bool
	resizableV  bool
	contentRect image.Rectangle

	state  State
	edge   decorator.HitCode
	anchor image.Point
	offset image.Point

	pending  bool
	dirty    bool
	lastSent image.Rectangle

	zoomed  bool
	restore image.Rectangle
}

// New creates the frame and content layers and attaches them in front of
// the parent's other children.
func New(cfg Config) (*Border, error) {
	if cfg.Tree == nil {
		return nil, fmt.Errorf("winborder: nil tree")
	}
	factory := cfg.Factory
	if factory == nil {
		factory = decorator.NewDefault
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limits := cfg.Limits
	if limits == (Limits{}) {
		limits = DefaultLimits()
	}
	b := &Border{
		tree:       cfg.Tree,
		parent:     cfg.Parent,
		notify:     cfg.Notifier,
		painter:    cfg.Painter,
		logger:     logger,
		limits:     limits,
		resizableH: true,
		resizableV: true,
	}
	b.deco = factory(decorator.Params{
		Content: cfg.Content,
		Look:    cfg.Look,
		Feel:    cfg.Feel,
		Flags:   cfg.Flags,
		Title:   cfg.Title,
	})
	b.contentRect = b.constrainRect(cfg.Content)
	b.deco.SetFrame(b.contentRect)

	outer := b.deco.Frame()
	po := b.parentOrigin()
	b.frame = b.tree.New("border:"+cfg.Title, outer.Sub(po), 0)
	b.content = b.tree.New("content:"+cfg.Title, b.contentRect.Sub(outer.Min), 0)
	if err := b.tree.AddChild(b.frame, b.content, true); err != nil {
		b.tree.Destroy(b.frame)
		b.tree.Destroy(b.content)
		return nil, fmt.Errorf("attach content layer: %w", err)
	}
	if err := b.tree.AddChild(cfg.Parent, b.frame, true); err != nil {
		b.tree.Destroy(b.frame)
		return nil, fmt.Errorf("attach border layer: %w", err)
	}
	if err := b.tree.SetOwner(b.frame, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Layer returns the frame layer.
func (b *Border) Layer() scene.Handle { return b.frame }

// Content returns the client's content layer.
func (b *Border) Content() scene.Handle { return b.content }

// Decorator returns the border's decorator.
func (b *Border) Decorator() decorator.Decorator { return b.deco }

// ContentFrame returns the client area in screen coordinates.
func (b *Border) ContentFrame() image.Rectangle { return b.contentRect }

// Frame returns the outer frame in screen coordinates.
func (b *Border) Frame() image.Rectangle { return b.deco.Frame() }

// State returns the interaction state.
func (b *Border) State() State { return b.state }

// Pending reports whether a notification awaits acknowledgement.
func (b *Border) Pending() bool { return b.pending }

// SetPainter sets where the chrome is drawn.
func (b *Border) SetPainter(p paint.Painter) { b.painter = p }

// Destroy removes the border and its content layer from the tree.
func (b *Border) Destroy() error { return b.tree.Destroy(b.frame) }

func (b *Border) parentOrigin() image.Point {
	return b.tree.ConvertToRoot(b.parent, image.Point{})
}

// effectiveLimits keeps the content at least large enough for the chrome.
func (b *Border) effectiveLimits() Limits {
	in := b.deco.Insets().Size()
	dm := b.deco.MinSize().Sub(in)
	lim := b.limits
	lim.Min = image.Pt(max(lim.Min.X, dm.X, 1), max(lim.Min.Y, dm.Y, 1))
	lim.Max = image.Pt(max(lim.Max.X, lim.Min.X), max(lim.Max.Y, lim.Min.Y))
	return lim
}

func (b *Border) constrainRect(r image.Rectangle) image.Rectangle {
	size := constrainSize(r.Canon().Size(), b.effectiveLimits(), b.align)
	return image.Rectangle{Min: r.Min, Max: r.Min.Add(size)}
}

// place applies a content frame to the decorator and both layers.
func (b *Border) place(content image.Rectangle) {
	b.contentRect = content
	b.deco.SetFrame(content)
	outer := b.deco.Frame()
	if err := b.tree.SetFrame(b.frame, outer.Sub(b.parentOrigin())); err != nil {
		b.logger.Debug("border frame update failed", "error", err)
		return
	}
	b.tree.SetFrame(b.content, content.Sub(outer.Min))
}

// commit places the frame and notifies the client, unless a notification
// is already outstanding, in which case the change is coalesced.
func (b *Border) commit(content image.Rectangle) {
	if content == b.contentRect {
		return
	}
	b.place(content)
	if b.notify == nil {
		return
	}
	if b.pending {
		b.dirty = true
		return
	}
	b.send()
}

func (b *Border) send() {
	b.pending = true
	b.dirty = false
	b.lastSent = b.contentRect
	b.logger.Debug("frame changed", "frame", b.contentRect.String())
	b.notify.FrameChanged(b.contentRect)
}

// MoveReply acknowledges the outstanding notification. If the frame moved
// on since it was sent, the coalesced frame is sent now.
func (b *Border) MoveReply() {
	if !b.pending {
		b.logger.Debug("move reply without pending notification")
		return
	}
	if b.dirty && b.contentRect != b.lastSent {
		b.send()
		return
	}
	b.pending = false
	b.dirty = false
}

// MouseDown handles a press at pt in screen coordinates.
func (b *Border) MouseDown(pt image.Point, buttons decorator.Buttons) Action {
	if b.state != Idle {
		return ActionNone
	}
	if pt.In(b.contentRect) {
		return ActionNone
	}
	outer := b.deco.Frame()
	hit := b.deco.Clicked(pt, buttons)
	switch {
	case hit == decorator.HitClose:
		b.state = CloseArmed
		b.setPressed(true)
	case hit == decorator.HitZoom:
		b.state = ZoomArmed
		b.setPressed(true)
	case hit == decorator.HitDrag:
		b.state = Dragging
		b.offset = pt.Sub(outer.Min)
	case hit.IsResize():
		b.state = Resizing
		b.edge = hit
		_, _, right, bottom := hit.Edges()
		moving := outer.Min
		b.anchor = outer.Max
		if right {
			moving.X, b.anchor.X = outer.Max.X, outer.Min.X
		}
		if bottom {
			moving.Y, b.anchor.Y = outer.Max.Y, outer.Min.Y
		}
		b.offset = pt.Sub(moving)
	case hit == decorator.HitMoveToBack:
		return ActionMoveToBack
	case hit == decorator.HitMoveToFront:
		return ActionMoveToFront
	}
	return ActionNone
}

// MouseMoved handles pointer motion while a press is in progress.
func (b *Border) MouseMoved(pt image.Point, _ decorator.Buttons) {
	switch b.state {
	case CloseArmed:
		b.trackButton(pt, b.deco.CloseRect(), b.deco.ClosePressed())
	case ZoomArmed:
		b.trackButton(pt, b.deco.ZoomRect(), b.deco.ZoomPressed())
	case Dragging:
		in := b.deco.Insets()
		at := pt.Sub(b.offset).Add(image.Pt(in.Left, in.Top))
		at = snapPoint(at, b.align)
		b.commit(image.Rectangle{Min: at, Max: at.Add(b.contentRect.Size())})
	case Resizing:
		b.commit(b.resizeTo(pt))
	}
}

func (b *Border) resizeTo(pt image.Point) image.Rectangle {
	in := b.deco.Insets()
	lim := b.effectiveLimits()
	outer := b.deco.Frame()
	left, top, right, bottom := b.edge.Edges()
	if !b.resizableH || b.deco.Flags()&(decorator.NotHResizable|decorator.NotResizable) != 0 {
		left, right = false, false
	}
	if !b.resizableV || b.deco.Flags()&(decorator.NotVResizable|decorator.NotResizable) != 0 {
		top, bottom = false, false
	}
	edge := pt.Sub(b.offset)
	ix, iy := in.Left+in.Right, in.Top+in.Bottom

	switch {
	case right:
		w := constrain(edge.X-b.anchor.X-ix, lim.Min.X, lim.Max.X, b.align.SizeX, b.align.SizeOffsetX)
		outer.Min.X, outer.Max.X = b.anchor.X, b.anchor.X+w+ix
	case left:
		w := constrain(b.anchor.X-edge.X-ix, lim.Min.X, lim.Max.X, b.align.SizeX, b.align.SizeOffsetX)
		outer.Min.X, outer.Max.X = b.anchor.X-w-ix, b.anchor.X
	}
	switch {
	case bottom:
		h := constrain(edge.Y-b.anchor.Y-iy, lim.Min.Y, lim.Max.Y, b.align.SizeY, b.align.SizeOffsetY)
		outer.Min.Y, outer.Max.Y = b.anchor.Y, b.anchor.Y+h+iy
	case top:
		h := constrain(b.anchor.Y-edge.Y-iy, lim.Min.Y, lim.Max.Y, b.align.SizeY, b.align.SizeOffsetY)
		outer.Min.Y, outer.Max.Y = b.anchor.Y-h-iy, b.anchor.Y
	}
	return image.Rect(outer.Min.X+in.Left, outer.Min.Y+in.Top, outer.Max.X-in.Right, outer.Max.Y-in.Bottom)
}

// trackButton toggles the pressed look of an armed button as the pointer
// enters and leaves it.
func (b *Border) trackButton(pt image.Point, r image.Rectangle, pressed bool) {
	if over := pt.In(r); over != pressed {
		b.setPressed(over)
	}
}

func (b *Border) setPressed(v bool) {
	switch b.state {
	case CloseArmed:
		b.deco.SetClosePressed(v)
		b.invalidateScreen(b.deco.CloseRect())
	case ZoomArmed:
		b.deco.SetZoomPressed(v)
		b.invalidateScreen(b.deco.ZoomRect())
	}
}

// MouseUp ends the press. Releasing over an armed button reports its
// action.
func (b *Border) MouseUp(pt image.Point) Action {
	act := ActionNone
	switch b.state {
	case CloseArmed:
		if pt.In(b.deco.CloseRect()) {
			act = ActionClose
		}
	case ZoomArmed:
		if pt.In(b.deco.ZoomRect()) {
			act = ActionZoom
		}
	}
	b.Cancel()
	return act
}

// Cancel abandons a press in progress without carrying out any action.
func (b *Border) Cancel() {
	b.setPressed(false)
	b.state = Idle
	b.edge = decorator.HitNone
}

// Zoom toggles between filling work (screen coordinates, outer frame) and
// the frame the window had before.
func (b *Border) Zoom(work image.Rectangle) {
	if b.zoomed {
		b.zoomed = false
		b.commit(b.constrainRect(b.restore))
		return
	}
	b.restore = b.contentRect
	b.zoomed = true
	b.commit(b.constrainRect(b.deco.Insets().Inset(work)))
}

// Zoomed reports whether the window is zoomed.
func (b *Border) Zoomed() bool { return b.zoomed }

// SetContentFrame moves and resizes the window on the client's behalf. The
// client is not notified of its own request.
func (b *Border) SetContentFrame(r image.Rectangle) image.Rectangle {
	c := b.constrainRect(r)
	b.place(c)
	return c
}

// SetSizeLimits bounds the content size and re-applies it.
func (b *Border) SetSizeLimits(minSize, maxSize image.Point) {
	if maxSize.X <= 0 {
		maxSize.X = MaxDimension
	}
	if maxSize.Y <= 0 {
		maxSize.Y = MaxDimension
	}
	b.limits = Limits{Min: minSize, Max: maxSize}
	b.commit(b.constrainRect(b.contentRect))
}

// SizeLimits returns the limits in effect, including the chrome minimum.
func (b *Border) SizeLimits() Limits { return b.effectiveLimits() }

// SetAlignment sets the snapping grid and re-applies the frame.
func (b *Border) SetAlignment(a Alignment) {
	b.align = a
	b.commit(b.constrainRect(b.contentRect))
}

// SetResizable enables or disables resizing per axis.
func (b *Border) SetResizable(horizontal, vertical bool) {
	b.resizableH, b.resizableV = horizontal, vertical
}

// SetTitle changes the title and repaints the tab.
func (b *Border) SetTitle(title string) {
	old := b.deco.TabRect()
	b.deco.SetTitle(title)
	b.tree.SetName(b.frame, "border:"+title)
	b.invalidateScreen(old.Union(b.deco.TabRect()))
}

// SetFocus changes the focus look and repaints the tab.
func (b *Border) SetFocus(focused bool) {
	if b.deco.Focused() == focused {
		return
	}
	b.deco.SetFocus(focused)
	tab := b.deco.TabRect()
	if tab.Empty() {
		b.tree.InvalidateAll(b.frame, false)
		return
	}
	b.invalidateScreen(tab)
}

// SetLook switches the chrome style, keeping the content frame.
func (b *Border) SetLook(l decorator.Look) {
	b.deco.SetLook(l)
	b.place(b.contentRect)
	b.tree.InvalidateAll(b.frame, false)
}

// SetFlags replaces the window flags.
func (b *Border) SetFlags(f decorator.Flags) {
	b.deco.SetFlags(f)
	b.tree.InvalidateAll(b.frame, false)
}

func (b *Border) invalidateScreen(r image.Rectangle) {
	if r.Empty() {
		return
	}
	local := r.Sub(b.tree.ConvertToRoot(b.frame, image.Point{}))
	b.tree.Invalidate(b.frame, local)
}

// RequestDraw paints the chrome for the damaged part of the frame layer.
func (b *Border) RequestDraw(h scene.Handle, _ region.Region, _ bool) {
	clip, err := b.tree.BeginUpdate(h)
	if err != nil {
		b.logger.Debug("draw request for stale layer", "error", err)
		return
	}
	if h == b.frame && b.painter != nil {
		b.deco.Draw(b.painter, clip.Translated(b.tree.ConvertToRoot(h, image.Point{})))
	}
	b.tree.EndUpdate(h)
}
