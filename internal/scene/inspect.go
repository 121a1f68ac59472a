package scene

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/1broseidon/layerd/internal/region"
)

// LayerAt returns the front-most layer whose visible region contains the
// screen point pt, searching from h downward.
func (t *Tree) LayerAt(h Handle, pt image.Point) Handle {
	idx, ok := t.lookup(h)
	if !ok {
		return Handle{}
	}
	var parentOrigin image.Point
	if par := t.nodes[idx].parent; par != 0 {
		parentOrigin = t.origin(par)
	}
	return t.handle(t.layerAt(idx, parentOrigin, pt))
}

func (t *Tree) layerAt(idx uint32, parentOrigin, pt image.Point) uint32 {
	n := &t.nodes[idx]
	if n.hideCount > 0 || !n.hasRegions {
		return 0
	}
	origin := parentOrigin.Add(n.frame.Min)
	local := pt.Sub(origin)
	if !n.clip.Contains(local) {
		return 0
	}
	for c := n.last; c != 0; c = t.nodes[c].prev {
		if hit := t.layerAt(c, origin, pt); hit != 0 {
			return hit
		}
	}
	if n.visible.Contains(local) {
		return idx
	}
	return 0
}

// CheckInvariants verifies the cached regions and damage records of h's
// subtree. It returns nil or an error describing every violation found.
func (t *Tree) CheckInvariants(h Handle) error {
	idx, ok := t.lookup(h)
	if !ok {
		return fmt.Errorf("check %s: %w", h, ErrStaleHandle)
	}
	var errs []error
	t.check(idx, &errs)
	return errors.Join(errs...)
}

func (t *Tree) check(idx uint32, errs *[]error) {
	n := &t.nodes[idx]
	if !n.hasRegions || n.hideCount > 0 {
		return
	}
	if !n.full.ContainsRegion(n.visible) {
		*errs = append(*errs, fmt.Errorf("%s: visible region escapes full region", n.name))
	}
	if !n.full.ContainsRegion(n.clip) || !n.clip.ContainsRegion(n.visible) {
		*errs = append(*errs, fmt.Errorf("%s: clip region out of order", n.name))
	}
	if n.dmg.pending.Overlaps(n.dmg.active) {
		*errs = append(*errs, fmt.Errorf("%s: invalid region overlaps active damage", n.name))
	}
	if n.dmg.phase == Idle && !n.dmg.active.IsEmpty() {
		*errs = append(*errs, fmt.Errorf("%s: idle layer has active damage", n.name))
	}
	if p := n.parent; p != 0 && !n.root {
		pn := &t.nodes[p]
		if pn.hasRegions && !pn.full.ContainsRegion(n.full.Translated(n.frame.Min)) {
			*errs = append(*errs, fmt.Errorf("%s: full region escapes parent %s", n.name, pn.name))
		}
	}

	// the visible regions of siblings, and of the parent when it does not
	// draw on its children, never overlap
	var painted region.Region
	if n.flags&DrawOnChildren == 0 {
		painted = n.visible.Clone()
	}
	for c := n.first; c != 0; c = t.nodes[c].next {
		cn := &t.nodes[c]
		if !cn.hasRegions || cn.hideCount > 0 {
			continue
		}
		v := cn.visible.Translated(cn.frame.Min)
		if painted.Overlaps(v) {
			*errs = append(*errs, fmt.Errorf("%s: visible region overlaps an earlier sibling or parent", cn.name))
		}
		painted.Union(cn.clip.Translated(cn.frame.Min))
		t.check(c, errs)
	}
}

// NodeInfo is a snapshot of one layer, with regions in screen coordinates.
type NodeInfo struct {
	ID       uint64            `json:"id"`
	Name     string            `json:"name"`
	Frame    image.Rectangle   `json:"frame"`
	Flags    string            `json:"flags,omitempty"`
	Hidden   bool              `json:"hidden,omitempty"`
	Phase    string            `json:"phase"`
	Visible  []image.Rectangle `json:"visible,omitempty"`
	Invalid  []image.Rectangle `json:"invalid,omitempty"`
	Active   []image.Rectangle `json:"active,omitempty"`
	Children []NodeInfo        `json:"children,omitempty"`
}

// Snapshot returns a copy of h's subtree for inspection tools.
func (t *Tree) Snapshot(h Handle) (NodeInfo, error) {
	idx, err := t.mutate(h, "snapshot")
	if err != nil {
		return NodeInfo{}, err
	}
	var parentOrigin image.Point
	if par := t.nodes[idx].parent; par != 0 {
		parentOrigin = t.origin(par)
	}
	return t.snapshot(idx, parentOrigin), nil
}

func (t *Tree) snapshot(idx uint32, parentOrigin image.Point) NodeInfo {
	n := &t.nodes[idx]
	origin := parentOrigin.Add(n.frame.Min)
	info := NodeInfo{
		ID:      t.handle(idx).ID(),
		Name:    n.name,
		Frame:   n.frame,
		Hidden:  n.hideCount > 0,
		Phase:   n.dmg.phase.String(),
		Visible: n.visible.Translated(origin).Rects(),
		Invalid: n.dmg.pending.Translated(origin).Rects(),
		Active:  n.dmg.active.Translated(origin).Rects(),
	}
	if n.flags != 0 {
		info.Flags = n.flags.String()
	}
	for c := n.first; c != 0; c = t.nodes[c].next {
		info.Children = append(info.Children, t.snapshot(c, origin))
	}
	return info
}

// Find returns the node with the given ID in n's subtree.
func (n *NodeInfo) Find(id uint64) (*NodeInfo, bool) {
	if n.ID == id {
		return n, true
	}
	for i := range n.Children {
		if found, ok := n.Children[i].Find(id); ok {
			return found, true
		}
	}
	return nil, false
}

// Count returns the number of nodes in n's subtree, n included.
func (n *NodeInfo) Count() int {
	total := 1
	for i := range n.Children {
		total += n.Children[i].Count()
	}
	return total
}

// LayerAt returns the path from n to the front-most node whose visible
// region contains pt, or nil. Later children are in front.
func (n *NodeInfo) LayerAt(pt image.Point) []*NodeInfo {
	if n.Hidden {
		return nil
	}
	for i := len(n.Children) - 1; i >= 0; i-- {
		if path := n.Children[i].LayerAt(pt); path != nil {
			return append([]*NodeInfo{n}, path...)
		}
	}
	for _, r := range n.Visible {
		if pt.In(r) {
			return []*NodeInfo{n}
		}
	}
	return nil
}

// Coverage summarises how the visible regions of a snapshot tile the screen.
type Coverage struct {
	// Painted is the number of pixels some layer paints.
	Painted int `json:"painted"`
	// Overdraw counts pixels claimed by more than one layer.
	Overdraw int `json:"overdraw"`
	// Pending is the area still waiting to be repainted.
	Pending int `json:"pending"`
}

// Coverage walks n's subtree. Layers with DrawOnChildren legitimately
// share pixels with their children and are left out of Overdraw.
func (n *NodeInfo) Coverage() Coverage {
	var union, pending region.Region
	var cov Coverage
	sum := 0
	n.walkCoverage(&union, &pending, &sum)
	cov.Painted = union.Area()
	cov.Overdraw = sum - cov.Painted
	cov.Pending = pending.Area()
	return cov
}

func (n *NodeInfo) walkCoverage(union, pending *region.Region, sum *int) {
	if n.Hidden {
		return
	}
	if !strings.Contains(n.Flags, DrawOnChildren.String()) {
		var v region.Region
		for _, r := range n.Visible {
			v.Include(r)
		}
		*sum += v.Area()
		union.Union(v)
	}
	for _, r := range n.Invalid {
		pending.Include(r)
	}
	for i := range n.Children {
		n.Children[i].walkCoverage(union, pending, sum)
	}
}
