// Package scene implements the layer tree of the compositor: a hierarchy
// of rectangular layers, each with cached clipping regions and a two phase
// damage record. Layers live in an arena owned by a Tree and are addressed
// through generational Handles, so a handle to a destroyed layer is
// detected rather than dereferenced.
//
// A Tree is not safe for concurrent use. The compositor serialises every
// access through its command loop.
package scene

import (
	"fmt"
	"image"
	"image/color"

	"github.com/1broseidon/layerd/internal/region"
)

// Flags tune how a layer participates in clipping and damage.
type Flags uint32

const (
	// Backdrop layers stack below every ordinary sibling.
	Backdrop Flags = 1 << iota
	// DrawOnChildren keeps the children's area in the layer's visible
	// region, so the layer may paint underneath them.
	DrawOnChildren
	// FullUpdateOnResize repaints the whole layer after a size change
	// instead of only the newly exposed strips.
	FullUpdateOnResize
)

// String returns the string representation of the flag set
func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	s := ""
	add := func(name string) {
		if s != "" {
			s += "|"
		}
		s += name
	}
	if f&Backdrop != 0 {
		add("backdrop")
	}
	if f&DrawOnChildren != 0 {
		add("draw-on-children")
	}
	if f&FullUpdateOnResize != 0 {
		add("full-update-on-resize")
	}
	return s
}

// Handle addresses a layer inside a Tree. The zero Handle refers to nothing.
type Handle struct {
	index uint32
	gen   uint32
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool { return h.gen == 0 }

// String returns the string representation of the handle
func (h Handle) String() string {
	if h.IsZero() {
		return "layer(nil)"
	}
	return fmt.Sprintf("layer(%d.%d)", h.index, h.gen)
}

// ID packs the handle into a single integer for wire formats.
func (h Handle) ID() uint64 { return uint64(h.index)<<32 | uint64(h.gen) }

// HandleFromID reverses ID.
func HandleFromID(id uint64) Handle {
	return Handle{index: uint32(id >> 32), gen: uint32(id)}
}

// Owner is told when a layer has damage it should repaint. The region is in
// the layer's local coordinates. updatePass is true when the request comes
// from an update cycle and false when it follows an EndUpdate that found
// further damage.
type Owner interface {
	RequestDraw(h Handle, damage region.Region, updatePass bool)
}

// OwnerFunc adapts a function to Owner.
type OwnerFunc func(h Handle, damage region.Region, updatePass bool)

func (f OwnerFunc) RequestDraw(h Handle, damage region.Region, updatePass bool) {
	f(h, damage, updatePass)
}

// DamagePhase is the repaint state of a layer.
type DamagePhase int

const (
	// Idle layers have no repaint in flight.
	Idle DamagePhase = iota
	// Repainting layers have handed their active damage to the owner.
	Repainting
)

// String returns the string representation of the phase
func (p DamagePhase) String() string {
	if p == Repainting {
		return "repainting"
	}
	return "idle"
}

type damage struct {
	phase DamagePhase
	// pending accumulates invalidation not yet handed to the owner.
	pending region.Region
	// active is the region the owner is currently repainting.
	active region.Region
	// redo collects invalidation that landed inside active while the
	// repaint was in flight.
	redo region.Region
}

type node struct {
	gen   uint32
	alive bool

	name  string
	flags Flags
	owner Owner
	root  bool

	frame image.Rectangle

	parent, first, last, prev, next uint32

	hideCount int

	scroll      image.Point
	scrollFracX float64
	scrollFracY float64
	scrollStep  image.Point

	// per-cycle bookkeeping, cleared by finishCycle
	regionsInvalid bool
	rebuilt        bool
	stashed        bool
	sizeChanged    bool
	repaintAll     bool
	scrollDone     bool

	hasRegions bool
	full       region.Region
	clip       region.Region
	visible    region.Region

	hasPrev     bool
	prevFull    region.Region
	prevClip    region.Region
	prevVisible region.Region
	lastOrigin  image.Point

	dmg damage
}

func (n *node) local() image.Rectangle {
	return image.Rectangle{Max: n.frame.Size()}
}

// Tree is the arena holding every layer of one display.
type Tree struct {
	nodes      []node
	free       []uint32
	rootIdx    uint32
	background color.RGBA
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	// slot 0 is the nil link
	return &Tree{
		nodes:      make([]node, 1),
		background: color.RGBA{R: 0x33, G: 0x66, B: 0x98, A: 0xff},
	}
}

// SetBackground sets the colour used to fill damage on an ownerless root.
func (t *Tree) SetBackground(c color.RGBA) { t.background = c }

// Background returns the root fill colour.
func (t *Tree) Background() color.RGBA { return t.background }

// New creates a detached layer.
func (t *Tree) New(name string, frame image.Rectangle, flags Flags) Handle {
	var idx uint32
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		t.nodes = append(t.nodes, node{})
		idx = uint32(len(t.nodes) - 1)
	}
	gen := t.nodes[idx].gen + 1
	t.nodes[idx] = node{
		gen:            gen,
		alive:          true,
		name:           name,
		flags:          flags,
		frame:          frame.Canon(),
		regionsInvalid: true,
	}
	return Handle{index: idx, gen: gen}
}

// NewRoot creates the root layer covering frame. A tree has one root;
// creating another replaces the previous one as the tree's root.
func (t *Tree) NewRoot(frame image.Rectangle) Handle {
	h := t.New("root", frame, 0)
	t.nodes[h.index].root = true
	t.rootIdx = h.index
	return h
}

// Root returns the root layer, or the zero handle.
func (t *Tree) Root() Handle { return t.handle(t.rootIdx) }

// Len returns the number of live layers.
func (t *Tree) Len() int { return len(t.nodes) - 1 - len(t.free) }

// Valid reports whether h refers to a live layer.
func (t *Tree) Valid(h Handle) bool {
	_, ok := t.lookup(h)
	return ok
}

func (t *Tree) handle(idx uint32) Handle {
	if idx == 0 || !t.nodes[idx].alive {
		return Handle{}
	}
	return Handle{index: idx, gen: t.nodes[idx].gen}
}

func (t *Tree) lookup(h Handle) (uint32, bool) {
	if h.index == 0 || int(h.index) >= len(t.nodes) {
		return 0, false
	}
	n := &t.nodes[h.index]
	if !n.alive || n.gen != h.gen {
		return 0, false
	}
	return h.index, true
}

// query resolves h for a read-only accessor. Stale handles are logged and
// reported as absent.
func (t *Tree) query(h Handle, op string) (*node, bool) {
	idx, ok := t.lookup(h)
	if !ok {
		log().Debug("stale handle", "op", op, "handle", h.String())
		return nil, false
	}
	return &t.nodes[idx], true
}

// mutate resolves h for an operation that changes the tree.
func (t *Tree) mutate(h Handle, op string) (uint32, error) {
	idx, ok := t.lookup(h)
	if !ok {
		log().Debug("stale handle", "op", op, "handle", h.String())
		return 0, fmt.Errorf("%s %s: %w", op, h, ErrStaleHandle)
	}
	return idx, nil
}

// Name returns the layer's debug name.
func (t *Tree) Name(h Handle) string {
	if n, ok := t.query(h, "name"); ok {
		return n.name
	}
	return ""
}

// SetName renames the layer.
func (t *Tree) SetName(h Handle, name string) error {
	idx, err := t.mutate(h, "set name")
	if err != nil {
		return err
	}
	t.nodes[idx].name = name
	return nil
}

// Flags returns the layer's flags.
func (t *Tree) Flags(h Handle) Flags {
	if n, ok := t.query(h, "flags"); ok {
		return n.flags
	}
	return 0
}

// SetFlags replaces the layer's flags. Changing Backdrop does not restack
// the layer; it only affects later insertions.
func (t *Tree) SetFlags(h Handle, f Flags) error {
	idx, err := t.mutate(h, "set flags")
	if err != nil {
		return err
	}
	n := &t.nodes[idx]
	if n.flags == f {
		return nil
	}
	n.flags = f
	t.invalidateSubtree(idx)
	return nil
}

// SetOwner attaches the object that repaints the layer.
func (t *Tree) SetOwner(h Handle, o Owner) error {
	idx, err := t.mutate(h, "set owner")
	if err != nil {
		return err
	}
	t.nodes[idx].owner = o
	return nil
}

// Owner returns the layer's own owner, not an inherited one.
func (t *Tree) Owner(h Handle) Owner {
	if n, ok := t.query(h, "owner"); ok {
		return n.owner
	}
	return nil
}

// Destroy removes the layer and all its descendants from the tree. Their
// handles become stale.
func (t *Tree) Destroy(h Handle) error {
	idx, err := t.mutate(h, "destroy")
	if err != nil {
		return err
	}
	if p := t.nodes[idx].parent; p != 0 {
		t.unlink(idx)
		t.nodes[p].regionsInvalid = true
	}
	t.release(idx)
	return nil
}

func (t *Tree) release(idx uint32) {
	for c := t.nodes[idx].first; c != 0; {
		next := t.nodes[c].next
		t.release(c)
		c = next
	}
	if t.rootIdx == idx {
		t.rootIdx = 0
	}
	gen := t.nodes[idx].gen
	t.nodes[idx] = node{gen: gen}
	t.free = append(t.free, idx)
}
