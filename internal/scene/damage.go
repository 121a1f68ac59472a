package scene

import (
	"image"

	"github.com/1broseidon/layerd/internal/region"
)

// Invalidate marks rect (local coordinates) as needing a repaint. Hidden
// layers ignore invalidation.
func (t *Tree) Invalidate(h Handle, rect image.Rectangle) error {
	idx, err := t.mutate(h, "invalidate")
	if err != nil {
		return err
	}
	if t.hidden(idx) {
		return nil
	}
	t.addDamage(idx, region.FromRect(rect.Intersect(t.nodes[idx].local())))
	return nil
}

// InvalidateRegion marks rgn (local coordinates) as needing a repaint.
func (t *Tree) InvalidateRegion(h Handle, rgn region.Region) error {
	idx, err := t.mutate(h, "invalidate region")
	if err != nil {
		return err
	}
	if t.hidden(idx) {
		return nil
	}
	rgn = rgn.Clone()
	rgn.IntersectRect(t.nodes[idx].local())
	t.addDamage(idx, rgn)
	return nil
}

// InvalidateAll marks the layer's whole visible area, and with recursive
// set that of every descendant, as needing a repaint.
func (t *Tree) InvalidateAll(h Handle, recursive bool) error {
	idx, err := t.mutate(h, "invalidate all")
	if err != nil {
		return err
	}
	if t.hidden(idx) {
		return nil
	}
	t.invalidateAll(idx, recursive)
	return nil
}

func (t *Tree) invalidateAll(idx uint32, recursive bool) {
	n := &t.nodes[idx]
	if n.hasRegions {
		t.addDamage(idx, n.visible)
	} else {
		t.addDamage(idx, region.FromRect(n.local()))
	}
	if !recursive {
		return
	}
	for c := n.first; c != 0; c = t.nodes[c].next {
		if t.nodes[c].hideCount == 0 {
			t.invalidateAll(c, true)
		}
	}
}

// addDamage records rgn as dirty. While a repaint is in flight, the part
// overlapping the active region is held back so the two never intersect.
func (t *Tree) addDamage(idx uint32, rgn region.Region) {
	if rgn.IsEmpty() {
		return
	}
	d := &t.nodes[idx].dmg
	if d.phase == Repainting {
		d.redo.Union(rgn.Intersect(d.active))
		d.pending.Union(rgn.Minus(d.active))
		return
	}
	d.pending.Union(rgn)
}

// InvalidRegion returns damage not yet handed to the owner. Damage that
// overlaps a repaint in flight is not included; it is re-requested when the
// repaint ends.
func (t *Tree) InvalidRegion(h Handle) region.Region {
	if n, ok := t.query(h, "invalid region"); ok {
		return n.dmg.pending.Clone()
	}
	return region.Region{}
}

// HeldDamage returns damage that landed inside the active region during the
// repaint in flight.
func (t *Tree) HeldDamage(h Handle) region.Region {
	if n, ok := t.query(h, "held damage"); ok {
		return n.dmg.redo.Clone()
	}
	return region.Region{}
}

// ActiveDamage returns the region currently being repainted.
func (t *Tree) ActiveDamage(h Handle) region.Region {
	if n, ok := t.query(h, "active damage"); ok {
		return n.dmg.active.Clone()
	}
	return region.Region{}
}

// Phase returns the layer's repaint state.
func (t *Tree) Phase(h Handle) DamagePhase {
	if n, ok := t.query(h, "phase"); ok {
		return n.dmg.phase
	}
	return Idle
}

// BeginUpdate returns the clip the owner should paint into: the active
// damage still visible, or the whole visible area when no repaint is in
// flight.
func (t *Tree) BeginUpdate(h Handle) (region.Region, error) {
	idx, err := t.mutate(h, "begin update")
	if err != nil {
		return region.Region{}, err
	}
	n := &t.nodes[idx]
	if n.dmg.phase != Repainting {
		return n.visible.Clone(), nil
	}
	return n.dmg.active.Intersect(n.visible), nil
}

// EndUpdate completes the repaint in flight. Damage that arrived meanwhile
// is promoted at once and requested from the owner.
func (t *Tree) EndUpdate(h Handle) error {
	idx, err := t.mutate(h, "end update")
	if err != nil {
		return err
	}
	n := &t.nodes[idx]
	if n.dmg.phase != Repainting {
		return nil
	}
	next := n.dmg.pending.Plus(n.dmg.redo)
	n.dmg = damage{pending: next}
	req, ok := t.promote(idx)
	if !ok {
		return nil
	}
	owner, oh := t.effectiveOwner(idx)
	if owner == nil {
		log().Debug("damage without owner", "layer", n.name, "owner", oh.String())
		return nil
	}
	owner.RequestDraw(h, req, false)
	return nil
}

// promote moves visible pending damage into the active region.
func (t *Tree) promote(idx uint32) (region.Region, bool) {
	n := &t.nodes[idx]
	if n.dmg.phase != Idle || n.dmg.pending.IsEmpty() || !n.hasRegions {
		return region.Region{}, false
	}
	req := n.dmg.pending.Intersect(n.visible)
	n.dmg.pending = region.Region{}
	if req.IsEmpty() {
		return region.Region{}, false
	}
	n.dmg.phase = Repainting
	n.dmg.active = req
	return req.Clone(), true
}

// effectiveOwner returns the nearest owner at or above idx.
func (t *Tree) effectiveOwner(idx uint32) (Owner, Handle) {
	for ; idx != 0; idx = t.nodes[idx].parent {
		if o := t.nodes[idx].owner; o != nil {
			return o, t.handle(idx)
		}
	}
	return nil, Handle{}
}

type drawRequest struct {
	owner  Owner
	handle Handle
	damage region.Region
}

// UpdateIfNeeded hands pending damage in h's subtree to the owners. With
// force set, each layer's whole visible area is requested.
func (t *Tree) UpdateIfNeeded(h Handle, force bool) error {
	idx, err := t.mutate(h, "update if needed")
	if err != nil {
		return err
	}
	t.dispatch(t.collect(idx, force, nil))
	return nil
}

// collect walks children before parents so a window's content is requested
// ahead of its decoration.
func (t *Tree) collect(idx uint32, force bool, out []drawRequest) []drawRequest {
	n := &t.nodes[idx]
	if n.hideCount > 0 || !n.hasRegions {
		return out
	}
	for c := n.first; c != 0; c = t.nodes[c].next {
		out = t.collect(c, force, out)
	}
	if force {
		t.addDamage(idx, n.visible)
	}
	if n.dmg.phase != Idle || n.dmg.pending.IsEmpty() {
		return out
	}
	owner, _ := t.effectiveOwner(idx)
	if owner == nil {
		if !n.root {
			log().Debug("dropping damage on ownerless layer", "layer", n.name)
		}
		n.dmg.pending = region.Region{}
		return out
	}
	req, ok := t.promote(idx)
	if !ok {
		return out
	}
	return append(out, drawRequest{owner: owner, handle: t.handle(idx), damage: req})
}

func (t *Tree) dispatch(reqs []drawRequest) {
	for _, r := range reqs {
		r.owner.RequestDraw(r.handle, r.damage, true)
	}
}
