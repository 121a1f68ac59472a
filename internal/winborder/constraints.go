package winborder

import "image"

// MaxDimension bounds window sizes when no explicit limit is set.
const MaxDimension = 32768

// Limits bound the content size of a window.
type Limits struct {
	Min, Max image.Point
}

// DefaultLimits allow any size from one pixel up to MaxDimension.
func DefaultLimits() Limits {
	return Limits{Min: image.Pt(1, 1), Max: image.Pt(MaxDimension, MaxDimension)}
}

// Alignment snaps content size and position to a grid, for example the
// character cells of a terminal. A grid step of 0 or 1 disables snapping on
// that axis.
type Alignment struct {
	SizeX, SizeOffsetX int
	PosX, PosOffsetX   int
	SizeY, SizeOffsetY int
	PosY, PosOffsetY   int
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func ceilDiv(a, b int) int {
	return -floorDiv(-a, b)
}

// snapPos moves v to the nearest grid line.
func snapPos(v, grid, off int) int {
	if grid <= 1 {
		return v
	}
	return off + grid*floorDiv(v-off+grid/2, grid)
}

// constrain clamps a size to [lo, hi] and snaps it to the grid. When no
// grid value fits inside the limits, lo wins.
func constrain(v, lo, hi, grid, off int) int {
	if hi < lo {
		hi = lo
	}
	v = min(max(v, lo), hi)
	if grid <= 1 {
		return v
	}
	first := off + grid*ceilDiv(lo-off, grid)
	last := off + grid*floorDiv(hi-off, grid)
	if first > last {
		return lo
	}
	return min(max(snapPos(v, grid, off), first), last)
}

// constrainSize applies limits and alignment to a content size.
func constrainSize(size image.Point, lim Limits, a Alignment) image.Point {
	return image.Pt(
		constrain(size.X, lim.Min.X, lim.Max.X, a.SizeX, a.SizeOffsetX),
		constrain(size.Y, lim.Min.Y, lim.Max.Y, a.SizeY, a.SizeOffsetY),
	)
}

// snapPoint aligns a content origin.
func snapPoint(pt image.Point, a Alignment) image.Point {
	return image.Pt(snapPos(pt.X, a.PosX, a.PosOffsetX), snapPos(pt.Y, a.PosY, a.PosOffsetY))
}
