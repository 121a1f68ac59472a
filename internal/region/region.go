// Package region implements a set-of-rectangles value type used for
// visibility, clipping and damage bookkeeping.
//
// A Region is stored as a list of pairwise disjoint, non-empty rectangles.
// Every operation allocates a fresh backing slice, so copies of a Region
// value never observe each other's mutations.
package region

import (
	"fmt"
	"image"
	"sort"
	"strings"
)

// Region is a set of pixels described by disjoint rectangles.
// The zero value is the empty region.
type Region struct {
	rects []image.Rectangle
}

// FromRect returns a region covering r.
func FromRect(r image.Rectangle) Region {
	if r.Empty() {
		return Region{}
	}
	return Region{rects: []image.Rectangle{r.Canon()}}
}

// FromRects returns the union of rs.
func FromRects(rs ...image.Rectangle) Region {
	var out Region
	for _, r := range rs {
		out.Include(r)
	}
	return out
}

// Rects returns a copy of the disjoint rectangles making up the region,
// sorted top-to-bottom then left-to-right.
func (r Region) Rects() []image.Rectangle {
	out := make([]image.Rectangle, len(r.rects))
	copy(out, r.rects)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Min.Y != out[j].Min.Y {
			return out[i].Min.Y < out[j].Min.Y
		}
		return out[i].Min.X < out[j].Min.X
	})
	return out
}

// Len returns the number of rectangles in the region.
func (r Region) Len() int { return len(r.rects) }

// IsEmpty reports whether the region covers no pixels.
func (r Region) IsEmpty() bool { return len(r.rects) == 0 }

// Clone returns an independent copy of r.
func (r Region) Clone() Region {
	if len(r.rects) == 0 {
		return Region{}
	}
	out := make([]image.Rectangle, len(r.rects))
	copy(out, r.rects)
	return Region{rects: out}
}

// Bounds returns the smallest rectangle containing the region.
func (r Region) Bounds() image.Rectangle {
	var b image.Rectangle
	for _, rect := range r.rects {
		b = b.Union(rect)
	}
	return b
}

// Area returns the number of pixels covered.
func (r Region) Area() int {
	total := 0
	for _, rect := range r.rects {
		total += rect.Dx() * rect.Dy()
	}
	return total
}

// Contains reports whether pt lies inside the region.
func (r Region) Contains(pt image.Point) bool {
	for _, rect := range r.rects {
		if pt.In(rect) {
			return true
		}
	}
	return false
}

// ContainsRect reports whether every pixel of rect lies inside the region.
// An empty rect is always contained.
func (r Region) ContainsRect(rect image.Rectangle) bool {
	if rect.Empty() {
		return true
	}
	rest := []image.Rectangle{rect.Canon()}
	for _, have := range r.rects {
		rest = subtractAll(rest, have)
		if len(rest) == 0 {
			return true
		}
	}
	return false
}

// ContainsRegion reports whether o is a subset of r.
func (r Region) ContainsRegion(o Region) bool {
	for _, rect := range o.rects {
		if !r.ContainsRect(rect) {
			return false
		}
	}
	return true
}

// Overlaps reports whether the two regions share at least one pixel.
func (r Region) Overlaps(o Region) bool {
	for _, a := range r.rects {
		for _, b := range o.rects {
			if a.Overlaps(b) {
				return true
			}
		}
	}
	return false
}

// Equal reports whether r and o cover exactly the same pixels.
func (r Region) Equal(o Region) bool {
	return r.Area() == o.Area() && r.ContainsRegion(o)
}

// Include adds rect to the region.
func (r *Region) Include(rect image.Rectangle) {
	if rect.Empty() {
		return
	}
	pieces := []image.Rectangle{rect.Canon()}
	for _, have := range r.rects {
		pieces = subtractAll(pieces, have)
		if len(pieces) == 0 {
			return
		}
	}
	out := make([]image.Rectangle, 0, len(r.rects)+len(pieces))
	out = append(out, r.rects...)
	out = append(out, pieces...)
	r.rects = out
}

// Exclude removes rect from the region.
func (r *Region) Exclude(rect image.Rectangle) {
	if rect.Empty() || len(r.rects) == 0 {
		return
	}
	r.rects = subtractAll(r.rects, rect.Canon())
}

// Union adds every pixel of o to r.
func (r *Region) Union(o Region) {
	for _, rect := range o.rects {
		r.Include(rect)
	}
}

// Subtract removes every pixel of o from r.
func (r *Region) Subtract(o Region) {
	for _, rect := range o.rects {
		if len(r.rects) == 0 {
			return
		}
		r.Exclude(rect)
	}
}

// IntersectWith restricts r to the pixels it shares with o.
func (r *Region) IntersectWith(o Region) {
	*r = r.Intersect(o)
}

// IntersectRect restricts r to rect.
func (r *Region) IntersectRect(rect image.Rectangle) {
	*r = r.Intersect(FromRect(rect))
}

// Intersect returns the pixels shared by r and o.
func (r Region) Intersect(o Region) Region {
	var out []image.Rectangle
	for _, a := range r.rects {
		for _, b := range o.rects {
			if x := a.Intersect(b); !x.Empty() {
				out = append(out, x)
			}
		}
	}
	return Region{rects: out}
}

// Minus returns r with o removed, leaving r untouched.
func (r Region) Minus(o Region) Region {
	out := r.Clone()
	out.Subtract(o)
	return out
}

// Plus returns the union of r and o, leaving r untouched.
func (r Region) Plus(o Region) Region {
	out := r.Clone()
	out.Union(o)
	return out
}

// Offset translates the region by d.
func (r *Region) Offset(d image.Point) {
	if d == (image.Point{}) || len(r.rects) == 0 {
		return
	}
	out := make([]image.Rectangle, len(r.rects))
	for i, rect := range r.rects {
		out[i] = rect.Add(d)
	}
	r.rects = out
}

// Translated returns a copy of r moved by d.
func (r Region) Translated(d image.Point) Region {
	out := r
	out.Offset(d)
	return out
}

// MakeEmpty removes every pixel from the region.
func (r *Region) MakeEmpty() {
	r.rects = nil
}

// String renders the region for logs and test failures.
func (r Region) String() string {
	if len(r.rects) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(r.rects))
	for _, rect := range r.Rects() {
		parts = append(parts, fmt.Sprintf("(%d,%d)-(%d,%d)", rect.Min.X, rect.Min.Y, rect.Max.X, rect.Max.Y))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// subtractAll removes cut from every rectangle in rs.
func subtractAll(rs []image.Rectangle, cut image.Rectangle) []image.Rectangle {
	out := make([]image.Rectangle, 0, len(rs)+3)
	for _, r := range rs {
		out = appendDifference(out, r, cut)
	}
	return out
}

// appendDifference appends r minus cut as up to four disjoint bands.
func appendDifference(dst []image.Rectangle, r, cut image.Rectangle) []image.Rectangle {
	x := r.Intersect(cut)
	if x.Empty() {
		return append(dst, r)
	}
	if r.Min.Y < x.Min.Y {
		dst = append(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, x.Min.Y))
	}
	if x.Max.Y < r.Max.Y {
		dst = append(dst, image.Rect(r.Min.X, x.Max.Y, r.Max.X, r.Max.Y))
	}
	if r.Min.X < x.Min.X {
		dst = append(dst, image.Rect(r.Min.X, x.Min.Y, x.Min.X, x.Max.Y))
	}
	if x.Max.X < r.Max.X {
		dst = append(dst, image.Rect(x.Max.X, x.Min.Y, r.Max.X, x.Max.Y))
	}
	return dst
}
