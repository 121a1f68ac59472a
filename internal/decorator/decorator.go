// Package decorator defines the window chrome strategy: it computes border
// insets, hit-tests the pointer against the title tab, buttons and frame,
// and paints the chrome. Implementations are chosen by name and may be
// loaded from Go plugins.
package decorator

import (
	"fmt"
	"image"

	"github.com/1broseidon/layerd/internal/paint"
	"github.com/1broseidon/layerd/internal/region"
)

// APIVersion is the decorator interface version plugins must report.
// Plugins with the same major version are accepted.
const APIVersion = 1.0

// Look selects the chrome style of a window.
type Look int

const (
	Titled Look = iota
	Document
	Modal
	Floating
	Bordered
	NoBorder
)

var lookNames = map[Look]string{
	Titled:   "titled",
	Document: "document",
	Modal:    "modal",
	Floating: "floating",
	Bordered: "bordered",
	NoBorder: "no-border",
}

// String returns the string representation of the look
func (l Look) String() string {
	if s, ok := lookNames[l]; ok {
		return s
	}
	return "unknown"
}

// ParseLook converts a look name into a Look.
func ParseLook(s string) (Look, bool) {
	for l, name := range lookNames {
		if name == s {
			return l, true
		}
	}
	return Titled, false
}

// Feel selects the stacking behaviour of a window.
type Feel int

const (
	Normal Feel = iota
	ModalFeel
	FloatingFeel
)

// ParseFeel converts "normal", "modal" or "floating" into a Feel.
func ParseFeel(s string) (Feel, bool) {
	switch s {
	case "", "normal":
		return Normal, true
	case "modal":
		return ModalFeel, true
	case "floating":
		return FloatingFeel, true
	}
	return Normal, false
}

// Flags restrict what the user may do with a window.
type Flags uint32

const (
	NotClosable Flags = 1 << iota
	NotZoomable
	NotResizable
	NotHResizable
	NotVResizable
	NotMovable
)

var flagNames = map[string]Flags{
	"not-closable":    NotClosable,
	"not-zoomable":    NotZoomable,
	"not-resizable":   NotResizable,
	"not-h-resizable": NotHResizable,
	"not-v-resizable": NotVResizable,
	"not-movable":     NotMovable,
}

// ParseFlags combines flag names such as "not-zoomable".
func ParseFlags(names []string) (Flags, error) {
	var f Flags
	for _, n := range names {
		v, ok := flagNames[n]
		if !ok {
			return 0, fmt.Errorf("unknown window flag %q", n)
		}
		f |= v
	}
	return f, nil
}

// Buttons is the pointer button state of an input event.
type Buttons uint32

const (
	Primary Buttons = 1 << iota
	Secondary
	Tertiary
)

// HitCode is the result of hit-testing a point against the chrome.
type HitCode int

const (
	HitNone HitCode = iota
	HitClose
	HitZoom
	HitDrag
	HitMoveToBack
	HitMoveToFront
	HitResizeL
	HitResizeR
	HitResizeT
	HitResizeB
	HitResizeTL
	HitResizeTR
	HitResizeBL
	HitResizeBR
)

var hitNames = [...]string{
	"none", "close", "zoom", "drag", "move-to-back", "move-to-front",
	"resize-l", "resize-r", "resize-t", "resize-b",
	"resize-tl", "resize-tr", "resize-bl", "resize-br",
}

// String returns the string representation of the hit code
func (h HitCode) String() string {
	if h >= 0 && int(h) < len(hitNames) {
		return hitNames[h]
	}
	return "unknown"
}

// IsResize reports whether h grabs an edge or corner.
func (h HitCode) IsResize() bool { return h >= HitResizeL && h <= HitResizeBR }

// Edges reports which edges a resize hit moves.
func (h HitCode) Edges() (left, top, right, bottom bool) {
	switch h {
	case HitResizeL:
		left = true
	case HitResizeR:
		right = true
	case HitResizeT:
		top = true
	case HitResizeB:
		bottom = true
	case HitResizeTL:
		left, top = true, true
	case HitResizeTR:
		right, top = true, true
	case HitResizeBL:
		left, bottom = true, true
	case HitResizeBR:
		right, bottom = true, true
	}
	return
}

// Insets is the chrome thickness around the content area.
type Insets struct {
	Left, Top, Right, Bottom int
}

// Outset grows a content rectangle by the insets.
func (in Insets) Outset(content image.Rectangle) image.Rectangle {
	return image.Rect(content.Min.X-in.Left, content.Min.Y-in.Top, content.Max.X+in.Right, content.Max.Y+in.Bottom)
}

// Inset shrinks an outer rectangle by the insets.
func (in Insets) Inset(outer image.Rectangle) image.Rectangle {
	r := image.Rect(outer.Min.X+in.Left, outer.Min.Y+in.Top, outer.Max.X-in.Right, outer.Max.Y-in.Bottom)
	if r.Empty() {
		return image.Rectangle{Min: r.Min, Max: r.Min}
	}
	return r
}

// Size is the total horizontal and vertical chrome.
func (in Insets) Size() image.Point {
	return image.Pt(in.Left+in.Right, in.Top+in.Bottom)
}

// Params describe the window a decorator is created for.
type Params struct {
	// Content is the client area in screen coordinates.
	Content image.Rectangle
	Look    Look
	Feel    Feel
	Flags   Flags
	Title   string
	Focused bool
}

// Decorator paints and hit-tests the chrome of one window. All coordinates
// are screen coordinates.
type Decorator interface {
	Insets() Insets
	// MinSize is the smallest outer size that fits the mandatory chrome.
	MinSize() image.Point
	Clicked(pt image.Point, buttons Buttons) HitCode
	// Draw paints the chrome inside damage.
	Draw(p paint.Painter, damage region.Region)

	SetFrame(content image.Rectangle)
	Frame() image.Rectangle
	SetClosePressed(bool)
	ClosePressed() bool
	SetZoomPressed(bool)
	ZoomPressed() bool
	SetFocus(bool)
	Focused() bool
	SetTitle(string)
	Title() string
	SetLook(Look)
	Look() Look
	SetFlags(Flags)
	Flags() Flags

	CloseRect() image.Rectangle
	ZoomRect() image.Rectangle
	TabRect() image.Rectangle
}

// Factory creates a decorator.
type Factory func(Params) Decorator
