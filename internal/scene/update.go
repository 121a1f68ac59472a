package scene

import (
	"image"

	"github.com/1broseidon/layerd/internal/paint"
)

// UpdateRegions runs one update cycle over h's subtree:
//
//  1. recompute stale regions
//  2. blit moved layers through p
//  3. damage newly exposed areas
//  4. fill root damage with the background if the root has no owner
//  5. hand pending damage to the owners
//
// p may be nil, in which case nothing is blitted or filled.
func (t *Tree) UpdateRegions(h Handle, force bool, p paint.Painter) error {
	idx, err := t.mutate(h, "update regions")
	if err != nil {
		return err
	}
	var parentOrigin image.Point
	if par := t.nodes[idx].parent; par != 0 {
		parentOrigin = t.origin(par)
	}

	t.rebuild(idx, force)
	if err := t.MoveChildren(h, p); err != nil {
		return err
	}
	t.invalidateNewAreas(idx)
	if t.nodes[idx].root {
		t.paintBackground(idx, p)
	}
	reqs := t.collect(idx, false, nil)
	t.finishCycle(idx, parentOrigin)
	t.dispatch(reqs)
	return nil
}

func (t *Tree) paintBackground(idx uint32, p paint.Painter) {
	n := &t.nodes[idx]
	if n.owner != nil || p == nil || n.dmg.pending.IsEmpty() {
		return
	}
	fill := n.dmg.pending.Intersect(n.visible)
	n.dmg.pending.MakeEmpty()
	if fill.IsEmpty() {
		return
	}
	p.FillRegion(fill.Translated(n.frame.Min), t.background)
}
