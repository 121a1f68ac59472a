package scene

import "fmt"

// AddChild attaches child to parent. Children are kept back to front;
// backdrop layers always stay below ordinary ones. With topmost set the
// child goes in front of its peers, otherwise behind them.
func (t *Tree) AddChild(parent, child Handle, topmost bool) error {
	p, err := t.mutate(parent, "add child")
	if err != nil {
		return err
	}
	c, err := t.mutate(child, "add child")
	if err != nil {
		return err
	}
	cn := &t.nodes[c]
	switch {
	case cn.parent != 0:
		return fmt.Errorf("add %s to %s: already attached: %w", child, parent, ErrInvalidTopology)
	case cn.root:
		return fmt.Errorf("add root %s as child: %w", child, ErrInvalidTopology)
	case t.isAncestor(c, p):
		return fmt.Errorf("add %s to %s: would form a cycle: %w", child, parent, ErrInvalidTopology)
	}

	backdrop := cn.flags&Backdrop != 0
	boundary := t.firstOrdinary(p)
	var before uint32
	switch {
	case topmost && !backdrop:
		before = 0
	case !topmost && backdrop:
		before = t.nodes[p].first
	default:
		before = boundary
	}
	t.link(p, c, before)

	t.nodes[p].regionsInvalid = true
	t.discardRegions(c)
	t.invalidateSubtree(c)
	return nil
}

// RemoveChild detaches child from parent. The child keeps its subtree and
// may be attached again.
func (t *Tree) RemoveChild(parent, child Handle) error {
	p, err := t.mutate(parent, "remove child")
	if err != nil {
		return err
	}
	c, err := t.mutate(child, "remove child")
	if err != nil {
		return err
	}
	if t.nodes[c].parent != p {
		log().Warn("remove child: not a child", "parent", parent.String(), "child", child.String())
		return fmt.Errorf("remove %s from %s: not a child: %w", child, parent, ErrInvalidTopology)
	}
	t.unlink(c)
	t.nodes[p].regionsInvalid = true
	t.discardRegions(c)
	return nil
}

// RemoveSelf detaches h from its parent.
func (t *Tree) RemoveSelf(h Handle) error {
	idx, err := t.mutate(h, "remove self")
	if err != nil {
		return err
	}
	p := t.nodes[idx].parent
	if p == 0 {
		return fmt.Errorf("remove %s: no parent: %w", h, ErrInvalidTopology)
	}
	return t.RemoveChild(t.handle(p), h)
}

// BringToFront restacks h in front of its ordinary siblings.
func (t *Tree) BringToFront(h Handle) error { return t.restack(h, true) }

// SendToBack restacks h behind its siblings, respecting the backdrop run.
func (t *Tree) SendToBack(h Handle) error { return t.restack(h, false) }

func (t *Tree) restack(h Handle, topmost bool) error {
	idx, err := t.mutate(h, "restack")
	if err != nil {
		return err
	}
	p := t.nodes[idx].parent
	if p == 0 {
		return fmt.Errorf("restack %s: no parent: %w", h, ErrInvalidTopology)
	}
	t.unlink(idx)
	n := &t.nodes[idx]
	backdrop := n.flags&Backdrop != 0
	var before uint32
	switch {
	case topmost && !backdrop:
		before = 0
	case !topmost && backdrop:
		before = t.nodes[p].first
	default:
		before = t.firstOrdinary(p)
	}
	t.link(p, idx, before)
	t.nodes[p].regionsInvalid = true
	return nil
}

// Parent returns h's parent, or the zero handle.
func (t *Tree) Parent(h Handle) Handle {
	if n, ok := t.query(h, "parent"); ok {
		return t.handle(n.parent)
	}
	return Handle{}
}

// Children returns h's children from back to front.
func (t *Tree) Children(h Handle) []Handle {
	n, ok := t.query(h, "children")
	if !ok {
		return nil
	}
	var out []Handle
	for c := n.first; c != 0; c = t.nodes[c].next {
		out = append(out, t.handle(c))
	}
	return out
}

// Walk visits h and its descendants depth first, parents before children
// and siblings back to front. Returning false from fn skips the subtree.
func (t *Tree) Walk(h Handle, fn func(Handle) bool) {
	idx, ok := t.lookup(h)
	if !ok {
		return
	}
	t.walk(idx, fn)
}

func (t *Tree) walk(idx uint32, fn func(Handle) bool) {
	if !fn(t.handle(idx)) {
		return
	}
	for c := t.nodes[idx].first; c != 0; c = t.nodes[c].next {
		t.walk(c, fn)
	}
}

func (t *Tree) isAncestor(a, idx uint32) bool {
	for ; idx != 0; idx = t.nodes[idx].parent {
		if idx == a {
			return true
		}
	}
	return false
}

func (t *Tree) firstOrdinary(p uint32) uint32 {
	for c := t.nodes[p].first; c != 0; c = t.nodes[c].next {
		if t.nodes[c].flags&Backdrop == 0 {
			return c
		}
	}
	return 0
}

// link inserts idx into p's child list before the given sibling, or at the
// front of the stack if before is 0.
func (t *Tree) link(p, idx, before uint32) {
	n := &t.nodes[idx]
	n.parent = p
	pn := &t.nodes[p]
	if before == 0 {
		n.prev = pn.last
		n.next = 0
		if pn.last != 0 {
			t.nodes[pn.last].next = idx
		} else {
			pn.first = idx
		}
		pn.last = idx
		return
	}
	b := &t.nodes[before]
	n.next = before
	n.prev = b.prev
	if b.prev != 0 {
		t.nodes[b.prev].next = idx
	} else {
		pn.first = idx
	}
	b.prev = idx
}

func (t *Tree) unlink(idx uint32) {
	n := &t.nodes[idx]
	pn := &t.nodes[n.parent]
	if n.prev != 0 {
		t.nodes[n.prev].next = n.next
	} else {
		pn.first = n.next
	}
	if n.next != 0 {
		t.nodes[n.next].prev = n.prev
	} else {
		pn.last = n.prev
	}
	n.parent, n.prev, n.next = 0, 0, 0
}
