package scene

import (
	"image"
	"math"
)

// Frame returns the layer's rectangle in its parent's coordinates.
func (t *Tree) Frame(h Handle) image.Rectangle {
	if n, ok := t.query(h, "frame"); ok {
		return n.frame
	}
	return image.Rectangle{}
}

// Bounds returns the layer's rectangle in its own coordinates.
func (t *Tree) Bounds(h Handle) image.Rectangle {
	if n, ok := t.query(h, "bounds"); ok {
		return n.local()
	}
	return image.Rectangle{}
}

// SetFrame moves and resizes the layer. The visual effect is applied by the
// next UpdateRegions.
func (t *Tree) SetFrame(h Handle, r image.Rectangle) error {
	idx, err := t.mutate(h, "set frame")
	if err != nil {
		return err
	}
	t.setFrame(idx, r.Canon())
	return nil
}

// MoveBy offsets the layer's frame.
func (t *Tree) MoveBy(h Handle, dx, dy int) error {
	idx, err := t.mutate(h, "move by")
	if err != nil {
		return err
	}
	t.setFrame(idx, t.nodes[idx].frame.Add(image.Pt(dx, dy)))
	return nil
}

// ResizeBy grows the layer's frame from its top-left corner. Sizes never go
// below zero.
func (t *Tree) ResizeBy(h Handle, dw, dh int) error {
	idx, err := t.mutate(h, "resize by")
	if err != nil {
		return err
	}
	f := t.nodes[idx].frame
	w := max(f.Dx()+dw, 0)
	hh := max(f.Dy()+dh, 0)
	t.setFrame(idx, image.Rectangle{Min: f.Min, Max: f.Min.Add(image.Pt(w, hh))})
	return nil
}

func (t *Tree) setFrame(idx uint32, r image.Rectangle) {
	n := &t.nodes[idx]
	old := n.frame
	if old == r {
		return
	}
	n.frame = r
	if old.Size() != r.Size() {
		n.sizeChanged = true
	}
	if t.hidden(idx) {
		return
	}
	t.invalidateSubtree(idx)
	p := n.parent
	if p == 0 {
		return
	}
	t.nodes[p].regionsInvalid = true
	for s := t.nodes[p].first; s != 0; s = t.nodes[s].next {
		if s == idx {
			continue
		}
		sf := t.nodes[s].frame
		if sf.In(old) || sf.In(r) {
			t.invalidateSubtree(s)
		}
	}
}

// ScrollBy scrolls the layer's content. Fractional deltas accumulate until
// they add up to a whole pixel. Children move opposite the scroll direction.
func (t *Tree) ScrollBy(h Handle, dx, dy float64) error {
	idx, err := t.mutate(h, "scroll by")
	if err != nil {
		return err
	}
	n := &t.nodes[idx]
	n.scrollFracX += dx
	n.scrollFracY += dy
	step := image.Pt(int(math.Trunc(n.scrollFracX)), int(math.Trunc(n.scrollFracY)))
	if step == (image.Point{}) {
		return nil
	}
	n.scrollFracX -= float64(step.X)
	n.scrollFracY -= float64(step.Y)
	n.scroll = n.scroll.Add(step)
	for c := n.first; c != 0; c = t.nodes[c].next {
		t.nodes[c].frame = t.nodes[c].frame.Sub(step)
	}
	if t.hidden(idx) {
		return nil
	}
	n.scrollStep = n.scrollStep.Add(step)
	t.invalidateSubtree(idx)
	return nil
}

// ScrollOffset returns the accumulated integer scroll of the layer.
func (t *Tree) ScrollOffset(h Handle) image.Point {
	if n, ok := t.query(h, "scroll offset"); ok {
		return n.scroll
	}
	return image.Point{}
}

// Hide increments the layer's hide count. The layer is hidden while the
// count is above zero.
func (t *Tree) Hide(h Handle) error {
	idx, err := t.mutate(h, "hide")
	if err != nil {
		return err
	}
	n := &t.nodes[idx]
	n.hideCount++
	if n.hideCount == 1 {
		t.visibilityChanged(idx)
	}
	return nil
}

// Show decrements the layer's hide count.
func (t *Tree) Show(h Handle) error {
	idx, err := t.mutate(h, "show")
	if err != nil {
		return err
	}
	n := &t.nodes[idx]
	n.hideCount--
	if n.hideCount == 0 {
		t.visibilityChanged(idx)
	}
	return nil
}

func (t *Tree) visibilityChanged(idx uint32) {
	t.invalidateSubtree(idx)
	if p := t.nodes[idx].parent; p != 0 {
		t.nodes[p].regionsInvalid = true
	}
}

// IsHidden reports whether the layer or any ancestor is hidden.
func (t *Tree) IsHidden(h Handle) bool {
	idx, ok := t.lookup(h)
	if !ok {
		return true
	}
	return t.hidden(idx)
}

// HideCount returns the layer's own hide count.
func (t *Tree) HideCount(h Handle) int {
	if n, ok := t.query(h, "hide count"); ok {
		return n.hideCount
	}
	return 0
}

func (t *Tree) hidden(idx uint32) bool {
	for ; idx != 0; idx = t.nodes[idx].parent {
		if t.nodes[idx].hideCount > 0 {
			return true
		}
	}
	return false
}

// origin returns the screen position of the layer's local (0,0).
func (t *Tree) origin(idx uint32) image.Point {
	var o image.Point
	for ; idx != 0; idx = t.nodes[idx].parent {
		o = o.Add(t.nodes[idx].frame.Min)
	}
	return o
}

// ConvertToRoot maps a point in h's coordinates to screen coordinates.
func (t *Tree) ConvertToRoot(h Handle, pt image.Point) image.Point {
	idx, ok := t.lookup(h)
	if !ok {
		return pt
	}
	return pt.Add(t.origin(idx))
}

// ConvertFromRoot maps a screen point into h's coordinates.
func (t *Tree) ConvertFromRoot(h Handle, pt image.Point) image.Point {
	idx, ok := t.lookup(h)
	if !ok {
		return pt
	}
	return pt.Sub(t.origin(idx))
}

// FrameInRoot returns the layer's rectangle in screen coordinates.
func (t *Tree) FrameInRoot(h Handle) image.Rectangle {
	idx, ok := t.lookup(h)
	if !ok {
		return image.Rectangle{}
	}
	n := &t.nodes[idx]
	return n.local().Add(t.origin(idx))
}
