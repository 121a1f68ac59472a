package scene

import (
	"image"

	"github.com/1broseidon/layerd/internal/paint"
	"github.com/1broseidon/layerd/internal/region"
)

// Region model, all in the layer's local coordinates:
//
//	full    the parent's clip inside the frame, minus visible front
//	        siblings that completely contain the frame
//	clip    full minus every visible front sibling; what the subtree may
//	        paint without covering a sibling
//	visible clip minus visible children, unless DrawOnChildren is set

// FullRegion returns the layer's full region in local coordinates.
func (t *Tree) FullRegion(h Handle) region.Region {
	if n, ok := t.query(h, "full region"); ok && n.hasRegions {
		return n.full.Clone()
	}
	return region.Region{}
}

// ClipRegion returns the area the layer's subtree may paint.
func (t *Tree) ClipRegion(h Handle) region.Region {
	if n, ok := t.query(h, "clip region"); ok && n.hasRegions {
		return n.clip.Clone()
	}
	return region.Region{}
}

// VisibleRegion returns the layer's own paintable area in local coordinates.
func (t *Tree) VisibleRegion(h Handle) region.Region {
	if n, ok := t.query(h, "visible region"); ok && n.hasRegions {
		return n.visible.Clone()
	}
	return region.Region{}
}

// RegionsValid reports whether the layer's cached regions are current.
func (t *Tree) RegionsValid(h Handle) bool {
	n, ok := t.query(h, "regions valid")
	return ok && n.hasRegions && !n.regionsInvalid
}

// RebuildRegions recomputes cached regions for h and, where needed, its
// descendants. With force set every layer in the subtree is recomputed.
func (t *Tree) RebuildRegions(h Handle, force bool) error {
	idx, err := t.mutate(h, "rebuild regions")
	if err != nil {
		return err
	}
	t.rebuild(idx, force)
	return nil
}

func (t *Tree) rebuild(idx uint32, force bool) {
	n := &t.nodes[idx]
	if n.hideCount > 0 {
		t.discardRegions(idx)
		return
	}
	rebuilt := false
	if force || n.regionsInvalid || !n.hasRegions {
		if !n.stashed {
			n.prevFull, n.prevClip, n.prevVisible = n.full, n.clip, n.visible
			n.hasPrev = n.hasRegions
			n.stashed = true
		}
		t.computeRegions(idx)
		n.regionsInvalid = false
		n.rebuilt = true
		rebuilt = true
	}
	for c := n.first; c != 0; c = t.nodes[c].next {
		t.rebuild(c, rebuilt)
	}
}

func (t *Tree) computeRegions(idx uint32) {
	n := &t.nodes[idx]
	local := n.local()
	var full region.Region
	if p := n.parent; p == 0 || n.root {
		full = region.FromRect(local)
	} else {
		pn := &t.nodes[p]
		if !pn.hasRegions {
			log().Debug("parent has no regions", "layer", n.name)
		}
		full = pn.clip.Translated(n.frame.Min.Mul(-1))
		full.IntersectRect(local)
		for s := n.next; s != 0; s = t.nodes[s].next {
			sn := &t.nodes[s]
			if sn.hideCount > 0 {
				continue
			}
			if n.frame.In(sn.frame) {
				full.Exclude(sn.frame.Sub(n.frame.Min))
			}
		}
	}
	clip := full.Clone()
	for s := n.next; s != 0; s = t.nodes[s].next {
		sn := &t.nodes[s]
		if sn.hideCount > 0 {
			continue
		}
		clip.Exclude(sn.frame.Sub(n.frame.Min))
	}
	visible := clip.Clone()
	if n.flags&DrawOnChildren == 0 {
		for c := n.first; c != 0; c = t.nodes[c].next {
			if t.nodes[c].hideCount > 0 {
				continue
			}
			visible.Exclude(t.nodes[c].frame)
		}
	}
	n.full, n.clip, n.visible = full, clip, visible
	n.hasRegions = true
}

// discardRegions releases the cached regions of idx and its subtree. The
// layers will be recomputed from scratch when they next become visible.
func (t *Tree) discardRegions(idx uint32) {
	n := &t.nodes[idx]
	n.hasRegions, n.hasPrev = false, false
	n.full, n.clip, n.visible = region.Region{}, region.Region{}, region.Region{}
	n.prevFull, n.prevClip, n.prevVisible = region.Region{}, region.Region{}, region.Region{}
	n.regionsInvalid = true
	n.dmg = damage{}
	for c := n.first; c != 0; c = t.nodes[c].next {
		t.discardRegions(c)
	}
}

func (t *Tree) invalidateSubtree(idx uint32) {
	t.nodes[idx].regionsInvalid = true
	for c := t.nodes[idx].first; c != 0; c = t.nodes[c].next {
		t.invalidateSubtree(c)
	}
}

// MoveChildren blits the pixels of layers that moved since the last cycle
// and records the damage the blits could not cover. p may be nil, in which
// case moved layers are simply repainted.
func (t *Tree) MoveChildren(h Handle, p paint.Painter) error {
	idx, err := t.mutate(h, "move children")
	if err != nil {
		return err
	}
	var written region.Region
	parentOrigin := image.Point{}
	if par := t.nodes[idx].parent; par != 0 {
		parentOrigin = t.origin(par)
	}
	t.moveChildren(idx, parentOrigin, nil, p, &written)
	return nil
}

// moveChildren walks the subtree. carry is the screen offset an ancestor
// blit already applied to this layer's old pixels, or nil if none did.
func (t *Tree) moveChildren(idx uint32, parentOrigin image.Point, carry *image.Point, p paint.Painter, written *region.Region) {
	n := &t.nodes[idx]
	if !n.hasRegions {
		return
	}
	origin := parentOrigin.Add(n.frame.Min)
	var childCarry *image.Point

	if n.hasPrev && n.rebuilt {
		d := origin.Sub(n.lastOrigin)
		switch {
		case carry != nil:
			if d != *carry {
				t.markRepaintAll(idx)
				return
			}
			cc := *carry
			if n.scrollStep != (image.Point{}) {
				t.markRepaintAll(idx)
				return
			}
			childCarry = &cc
		case d != (image.Point{}) && n.scrollStep != (image.Point{}):
			t.markRepaintAll(idx)
			t.exposeOnParent(idx, origin)
			return
		case d != (image.Point{}):
			if p == nil {
				t.markRepaintAll(idx)
				t.exposeOnParent(idx, origin)
				return
			}
			t.blitSubtree(idx, d, n.lastOrigin, p, written)
			t.exposeOnParent(idx, origin)
			childCarry = &d
		case n.scrollStep != (image.Point{}):
			if p == nil {
				t.markRepaintAll(idx)
				return
			}
			t.blitScroll(idx, origin, p, written)
			back := n.scrollStep.Mul(-1)
			childCarry = &back
		default:
			if n.sizeChanged {
				t.exposeOnParent(idx, origin)
			}
		}
	}

	for c := n.first; c != 0; c = t.nodes[c].next {
		t.moveChildren(c, origin, childCarry, p, written)
	}
}

// blitSubtree copies the still-visible part of a moved layer to its new
// place. Source pixels already overwritten by an earlier blit this cycle
// are repainted instead.
func (t *Tree) blitSubtree(idx uint32, d, oldOrigin image.Point, p paint.Painter, written *region.Region) {
	n := &t.nodes[idx]
	keep := n.prevClip.Intersect(n.clip)
	src := keep.Translated(oldOrigin)
	clean := src.Minus(*written)
	if lost := src.Minus(clean); !lost.IsEmpty() {
		t.damageSubtree(idx, lost.Translated(oldOrigin.Mul(-1)))
	}
	if clean.IsEmpty() {
		return
	}
	p.CopyRegion(clean, d)
	written.Union(clean.Translated(d))
}

// blitScroll shifts the layer's content by its pending scroll step and
// damages whatever the shifted pixels do not cover with the layer's own
// previous content.
func (t *Tree) blitScroll(idx uint32, origin image.Point, p paint.Painter, written *region.Region) {
	n := &t.nodes[idx]
	step := n.scrollStep
	want := n.prevClip.Intersect(n.clip.Translated(step))
	src := want.Translated(origin)
	clean := src.Minus(*written)
	dest := clean.Translated(origin.Mul(-1).Sub(step))
	if !clean.IsEmpty() {
		p.CopyRegion(clean, step.Mul(-1))
		written.Union(clean.Translated(step.Mul(-1)))
	}
	if lost := want.Translated(step.Mul(-1)).Minus(dest); !lost.IsEmpty() {
		t.damageSubtree(idx, lost)
	}
	// Shifted pixels only show the layer's own content where they came
	// from its previous visible area; children and exposed parent don't count.
	own := dest.Intersect(n.prevVisible.Translated(step.Mul(-1)))
	t.addDamage(idx, n.visible.Minus(own))
	n.scrollDone = true
}

// exposeOnParent damages the part of the parent that the layer used to
// cover and no longer does.
func (t *Tree) exposeOnParent(idx uint32, origin image.Point) {
	n := &t.nodes[idx]
	par := n.parent
	if par == 0 || !n.hasPrev {
		return
	}
	pn := &t.nodes[par]
	if !pn.hasRegions {
		return
	}
	parentOrigin := origin.Sub(n.frame.Min)
	old := n.prevClip.Translated(n.lastOrigin)
	old.Subtract(n.clip.Translated(origin))
	if old.IsEmpty() {
		return
	}
	exposed := old.Translated(parentOrigin.Mul(-1))
	exposed.IntersectWith(pn.visible)
	t.addDamage(par, exposed)
}

// damageSubtree damages rgn, given in idx's coordinates, on idx and on every
// descendant it overlaps.
func (t *Tree) damageSubtree(idx uint32, rgn region.Region) {
	n := &t.nodes[idx]
	if !n.hasRegions || rgn.IsEmpty() {
		return
	}
	t.addDamage(idx, rgn.Intersect(n.visible))
	for c := n.first; c != 0; c = t.nodes[c].next {
		t.damageSubtree(c, rgn.Translated(t.nodes[c].frame.Min.Mul(-1)))
	}
}

func (t *Tree) markRepaintAll(idx uint32) {
	t.nodes[idx].repaintAll = true
	for c := t.nodes[idx].first; c != 0; c = t.nodes[c].next {
		t.markRepaintAll(c)
	}
}

// InvalidateNewAreas damages the parts of h's subtree that became visible
// in this cycle and were not filled by a blit.
func (t *Tree) InvalidateNewAreas(h Handle) error {
	idx, err := t.mutate(h, "invalidate new areas")
	if err != nil {
		return err
	}
	t.invalidateNewAreas(idx)
	return nil
}

func (t *Tree) invalidateNewAreas(idx uint32) {
	n := &t.nodes[idx]
	if !n.hasRegions {
		return
	}
	if n.rebuilt {
		switch {
		case n.repaintAll || !n.hasPrev:
			t.addDamage(idx, n.visible)
		case n.flags&FullUpdateOnResize != 0 && n.sizeChanged:
			t.addDamage(idx, n.visible)
		case n.scrollDone:
		default:
			t.addDamage(idx, n.visible.Minus(n.prevVisible))
		}
	}
	for c := n.first; c != 0; c = t.nodes[c].next {
		t.invalidateNewAreas(c)
	}
}

// finishCycle clears the per-cycle bookkeeping and records where every
// layer ended up on screen.
func (t *Tree) finishCycle(idx uint32, parentOrigin image.Point) {
	n := &t.nodes[idx]
	origin := parentOrigin.Add(n.frame.Min)
	n.lastOrigin = origin
	n.hasPrev = false
	n.prevFull, n.prevClip, n.prevVisible = region.Region{}, region.Region{}, region.Region{}
	n.rebuilt, n.stashed, n.sizeChanged = false, false, false
	n.repaintAll, n.scrollDone = false, false
	n.scrollStep = image.Point{}
	for c := n.first; c != 0; c = t.nodes[c].next {
		t.finishCycle(c, origin)
	}
}
