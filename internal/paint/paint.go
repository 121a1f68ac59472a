// Package paint defines the pixel backend contract. The scene graph never
// writes pixels; it records the operations below against a Painter, and a
// Backend eventually executes them against a framebuffer.
package paint

import (
	"image"
	"image/color"
	"sort"

	"github.com/1broseidon/layerd/internal/region"
)

// Painter receives drawing operations in root (screen) coordinates.
type Painter interface {
	// FillRegion paints every pixel of r with c.
	FillRegion(r region.Region, c color.RGBA)
	// FillRect paints rect clipped to clip.
	FillRect(rect image.Rectangle, c color.RGBA, clip region.Region)
	// StrokeRect outlines rect with a one pixel line clipped to clip.
	StrokeRect(rect image.Rectangle, c color.RGBA, clip region.Region)
	// CopyRegion moves the pixels under src by delta.
	CopyRegion(src region.Region, delta image.Point)
	// DrawString renders text with its baseline starting at origin.
	DrawString(origin image.Point, text string, c color.RGBA, clip region.Region)
}

// Backend is a Painter bound to a concrete framebuffer.
type Backend interface {
	Painter
	Bounds() image.Rectangle
	Flush() error
	Close() error
}

// OpKind identifies a recorded painter call.
type OpKind int

const (
	OpFillRegion OpKind = iota
	OpFillRect
	OpStrokeRect
	OpCopy
	OpText
)

// String returns the string representation of the op kind
func (k OpKind) String() string {
	switch k {
	case OpFillRegion:
		return "fill-region"
	case OpFillRect:
		return "fill-rect"
	case OpStrokeRect:
		return "stroke-rect"
	case OpCopy:
		return "copy"
	case OpText:
		return "text"
	default:
		return "unknown"
	}
}

// Op is one recorded painter call.
type Op struct {
	Kind   OpKind
	Region region.Region
	Rect   image.Rectangle
	Clip   region.Region
	Delta  image.Point
	Origin image.Point
	Text   string
	Color  color.RGBA
}

// Apply replays the op against p.
func (o Op) Apply(p Painter) {
	switch o.Kind {
	case OpFillRegion:
		p.FillRegion(o.Region, o.Color)
	case OpFillRect:
		p.FillRect(o.Rect, o.Color, o.Clip)
	case OpStrokeRect:
		p.StrokeRect(o.Rect, o.Color, o.Clip)
	case OpCopy:
		p.CopyRegion(o.Region, o.Delta)
	case OpText:
		p.DrawString(o.Origin, o.Text, o.Color, o.Clip)
	}
}

// CopyOrder returns the rectangles of src ordered so that copying them one
// at a time by delta never reads a pixel an earlier copy already wrote.
func CopyOrder(src region.Region, delta image.Point) []image.Rectangle {
	rects := src.Rects()
	sort.SliceStable(rects, func(i, j int) bool {
		a, b := rects[i], rects[j]
		if delta.Y != 0 && a.Min.Y != b.Min.Y {
			if delta.Y > 0 {
				return a.Min.Y > b.Min.Y
			}
			return a.Min.Y < b.Min.Y
		}
		if delta.X > 0 {
			return a.Min.X > b.Min.X
		}
		return a.Min.X < b.Min.X
	})
	return rects
}

// Outline returns the one pixel border of rect.
func Outline(rect image.Rectangle) region.Region {
	var edges region.Region
	rect = rect.Canon()
	if rect.Empty() {
		return edges
	}
	edges.Include(image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+1))
	edges.Include(image.Rect(rect.Min.X, rect.Max.Y-1, rect.Max.X, rect.Max.Y))
	edges.Include(image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+1, rect.Max.Y))
	edges.Include(image.Rect(rect.Max.X-1, rect.Min.Y, rect.Max.X, rect.Max.Y))
	return edges
}

// Recorder is a Painter that keeps every call. It is used where ops are
// produced on one goroutine and executed on another, and by tests.
type Recorder struct {
	Ops []Op
}

var _ Painter = (*Recorder)(nil)

func (r *Recorder) FillRegion(rgn region.Region, c color.RGBA) {
	r.Ops = append(r.Ops, Op{Kind: OpFillRegion, Region: rgn.Clone(), Color: c})
}

func (r *Recorder) FillRect(rect image.Rectangle, c color.RGBA, clip region.Region) {
	r.Ops = append(r.Ops, Op{Kind: OpFillRect, Rect: rect, Color: c, Clip: clip.Clone()})
}

func (r *Recorder) StrokeRect(rect image.Rectangle, c color.RGBA, clip region.Region) {
	r.Ops = append(r.Ops, Op{Kind: OpStrokeRect, Rect: rect, Color: c, Clip: clip.Clone()})
}

func (r *Recorder) CopyRegion(src region.Region, delta image.Point) {
	r.Ops = append(r.Ops, Op{Kind: OpCopy, Region: src.Clone(), Delta: delta})
}

func (r *Recorder) DrawString(origin image.Point, text string, c color.RGBA, clip region.Region) {
	r.Ops = append(r.Ops, Op{Kind: OpText, Origin: origin, Text: text, Color: c, Clip: clip.Clone()})
}

// Take returns the recorded ops and resets the recorder.
func (r *Recorder) Take() []Op {
	ops := r.Ops
	r.Ops = nil
	return ops
}

// OfKind returns the recorded ops of the given kind.
func (r *Recorder) OfKind(kind OpKind) []Op {
	var out []Op
	for _, op := range r.Ops {
		if op.Kind == kind {
			out = append(out, op)
		}
	}
	return out
}
