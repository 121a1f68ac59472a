package scene

import (
	"errors"
	"image"
	"math/rand"
	"testing"

	"github.com/1broseidon/layerd/internal/paint"
	"github.com/1broseidon/layerd/internal/region"
)

type drawCall struct {
	h      Handle
	damage region.Region
	update bool
}

type drawLog struct {
	calls []drawCall
}

func (l *drawLog) RequestDraw(h Handle, d region.Region, update bool) {
	l.calls = append(l.calls, drawCall{h: h, damage: d, update: update})
}

func newScreen(t *testing.T, w, h int) (*Tree, Handle) {
	t.Helper()
	tr := NewTree()
	return tr, tr.NewRoot(image.Rect(0, 0, w, h))
}

func addLayer(t *testing.T, tr *Tree, parent Handle, name string, r image.Rectangle, flags Flags) Handle {
	t.Helper()
	h := tr.New(name, r, flags)
	if err := tr.AddChild(parent, h, true); err != nil {
		t.Fatalf("AddChild(%s) error = %v", name, err)
	}
	return h
}

func mustUpdate(t *testing.T, tr *Tree, root Handle, p paint.Painter) {
	t.Helper()
	if err := tr.UpdateRegions(root, false, p); err != nil {
		t.Fatalf("UpdateRegions() error = %v", err)
	}
	if err := tr.CheckInvariants(root); err != nil {
		t.Fatalf("CheckInvariants() = %v", err)
	}
}

func TestPartialOverlapKeepsFullRegion(t *testing.T) {
	tr, root := newScreen(t, 640, 480)
	a := addLayer(t, tr, root, "a", image.Rect(10, 10, 210, 110), 0)
	b := addLayer(t, tr, root, "b", image.Rect(100, 50, 300, 200), 0)
	mustUpdate(t, tr, root, nil)

	if got := tr.FullRegion(a).Area(); got != 200*100 {
		t.Fatalf("a full area = %d, want %d", got, 200*100)
	}
	if got := tr.VisibleRegion(a).Area(); got != 200*100-110*60 {
		t.Fatalf("a visible area = %d, want %d", got, 200*100-110*60)
	}
	if got := tr.VisibleRegion(b).Area(); got != 200*150 {
		t.Fatalf("b visible area = %d, want %d", got, 200*150)
	}
	if got := tr.VisibleRegion(root).Area(); got != 640*480-(20000+30000-6600) {
		t.Fatalf("root visible area = %d", got)
	}

	av := tr.VisibleRegion(a).Translated(tr.Frame(a).Min)
	bv := tr.VisibleRegion(b).Translated(tr.Frame(b).Min)
	if av.Overlaps(bv) {
		t.Fatalf("a and b visible regions overlap: %v / %v", av, bv)
	}
}

func TestContainingSiblingEmptiesFullRegion(t *testing.T) {
	tr, root := newScreen(t, 200, 200)
	inner := addLayer(t, tr, root, "inner", image.Rect(20, 20, 60, 60), 0)
	addLayer(t, tr, root, "outer", image.Rect(10, 10, 100, 100), 0)
	mustUpdate(t, tr, root, nil)

	if !tr.FullRegion(inner).IsEmpty() {
		t.Fatalf("inner full = %v, want empty", tr.FullRegion(inner))
	}
	if !tr.VisibleRegion(inner).IsEmpty() {
		t.Fatalf("inner visible = %v, want empty", tr.VisibleRegion(inner))
	}
}

func TestShrinkExposesLShapeOnParent(t *testing.T) {
	tr, root := newScreen(t, 400, 300)
	w := addLayer(t, tr, root, "window", image.Rect(10, 10, 210, 110), 0)
	owner := &drawLog{}
	if err := tr.SetOwner(w, owner); err != nil {
		t.Fatalf("SetOwner() error = %v", err)
	}

	rec := &paint.Recorder{}
	mustUpdate(t, tr, root, rec)
	if len(owner.calls) != 1 {
		t.Fatalf("first cycle draw requests = %d, want 1", len(owner.calls))
	}
	if err := tr.EndUpdate(w); err != nil {
		t.Fatalf("EndUpdate() error = %v", err)
	}
	rec.Take()
	owner.calls = nil

	if err := tr.SetFrame(w, image.Rect(10, 10, 160, 90)); err != nil {
		t.Fatalf("SetFrame() error = %v", err)
	}
	mustUpdate(t, tr, root, rec)

	fills := rec.OfKind(paint.OpFillRegion)
	if len(fills) != 1 {
		t.Fatalf("fill ops = %d, want 1", len(fills))
	}
	want := region.FromRects(image.Rect(160, 10, 210, 110), image.Rect(10, 90, 160, 110))
	if !fills[0].Region.Equal(want) {
		t.Fatalf("background fill = %v, want %v", fills[0].Region, want)
	}
	if len(owner.calls) != 0 {
		t.Fatalf("shrunk window asked to redraw: %v", owner.calls[0].damage)
	}
}

func TestMoveBlitsSubtreeOnce(t *testing.T) {
	tr, root := newScreen(t, 400, 300)
	w := addLayer(t, tr, root, "window", image.Rect(10, 10, 210, 110), 0)
	addLayer(t, tr, w, "content", image.Rect(5, 20, 195, 95), 0)
	owner := &drawLog{}
	tr.SetOwner(w, owner)

	rec := &paint.Recorder{}
	mustUpdate(t, tr, root, rec)
	for _, c := range owner.calls {
		tr.EndUpdate(c.h)
	}
	owner.calls = nil
	rec.Take()

	if err := tr.MoveBy(w, 40, 20); err != nil {
		t.Fatalf("MoveBy() error = %v", err)
	}
	mustUpdate(t, tr, root, rec)

	copies := rec.OfKind(paint.OpCopy)
	if len(copies) != 1 {
		t.Fatalf("copy ops = %d, want 1", len(copies))
	}
	if copies[0].Delta != image.Pt(40, 20) {
		t.Fatalf("copy delta = %v, want (40,20)", copies[0].Delta)
	}
	if !copies[0].Region.Equal(region.FromRect(image.Rect(10, 10, 210, 110))) {
		t.Fatalf("copy source = %v", copies[0].Region)
	}
	fills := rec.OfKind(paint.OpFillRegion)
	if len(fills) != 1 || fills[0].Region.Area() != 20000-160*80 {
		t.Fatalf("background fills = %+v", fills)
	}
	if len(owner.calls) != 0 {
		t.Fatalf("moved window asked to redraw %d times", len(owner.calls))
	}
}

func TestScrollBlitsAndDamagesExposedStrip(t *testing.T) {
	tr, root := newScreen(t, 400, 300)
	view := addLayer(t, tr, root, "view", image.Rect(20, 20, 120, 120), 0)
	owner := &drawLog{}
	tr.SetOwner(view, owner)
	rec := &paint.Recorder{}
	mustUpdate(t, tr, root, rec)
	tr.EndUpdate(view)
	owner.calls = nil
	rec.Take()

	if err := tr.ScrollBy(view, 0, 0.5); err != nil {
		t.Fatalf("ScrollBy() error = %v", err)
	}
	if got := tr.ScrollOffset(view); got != (image.Point{}) {
		t.Fatalf("sub-pixel scroll moved offset to %v", got)
	}
	if err := tr.ScrollBy(view, 0, 9.5); err != nil {
		t.Fatalf("ScrollBy() error = %v", err)
	}
	if got := tr.ScrollOffset(view); got != image.Pt(0, 10) {
		t.Fatalf("scroll offset = %v, want (0,10)", got)
	}
	mustUpdate(t, tr, root, rec)

	copies := rec.OfKind(paint.OpCopy)
	if len(copies) != 1 || copies[0].Delta != image.Pt(0, -10) || copies[0].Region.Area() != 100*90 {
		t.Fatalf("copy ops = %+v", copies)
	}
	if len(owner.calls) != 1 {
		t.Fatalf("draw requests = %d, want 1", len(owner.calls))
	}
	want := region.FromRect(image.Rect(0, 90, 100, 100))
	if !owner.calls[0].damage.Equal(want) {
		t.Fatalf("scroll damage = %v, want %v", owner.calls[0].damage, want)
	}
}

func TestScrollMovesChildren(t *testing.T) {
	tr, root := newScreen(t, 400, 300)
	view := addLayer(t, tr, root, "view", image.Rect(0, 0, 100, 100), 0)
	child := addLayer(t, tr, view, "doc", image.Rect(0, 0, 100, 200), 0)
	if err := tr.ScrollBy(view, 0, 1.6); err != nil {
		t.Fatalf("ScrollBy() error = %v", err)
	}
	if got := tr.Frame(child); got != image.Rect(0, -1, 100, 199) {
		t.Fatalf("child frame = %v", got)
	}
}

func TestDamageDuringRepaintIsHeldBack(t *testing.T) {
	tr, root := newScreen(t, 400, 300)
	w := addLayer(t, tr, root, "window", image.Rect(10, 10, 210, 110), 0)
	owner := &drawLog{}
	tr.SetOwner(w, owner)
	mustUpdate(t, tr, root, nil)

	if tr.Phase(w) != Repainting {
		t.Fatalf("phase = %v, want repainting", tr.Phase(w))
	}
	if err := tr.Invalidate(w, image.Rect(0, 0, 50, 50)); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if tr.InvalidRegion(w).Overlaps(tr.ActiveDamage(w)) {
		t.Fatalf("invalid region overlaps active damage")
	}
	if got := tr.HeldDamage(w).Area(); got != 2500 {
		t.Fatalf("held damage area = %d, want 2500", got)
	}

	clip, err := tr.BeginUpdate(w)
	if err != nil || clip.Area() != 200*100 {
		t.Fatalf("BeginUpdate() = %v, %v", clip, err)
	}
	owner.calls = nil
	if err := tr.EndUpdate(w); err != nil {
		t.Fatalf("EndUpdate() error = %v", err)
	}
	if len(owner.calls) != 1 {
		t.Fatalf("re-requests = %d, want 1", len(owner.calls))
	}
	if owner.calls[0].update || owner.calls[0].damage.Area() != 2500 {
		t.Fatalf("re-request = %+v", owner.calls[0])
	}
	if tr.Phase(w) != Repainting {
		t.Fatalf("phase after re-promotion = %v", tr.Phase(w))
	}
	tr.EndUpdate(w)
	if tr.Phase(w) != Idle || !tr.ActiveDamage(w).IsEmpty() {
		t.Fatalf("layer not idle after final EndUpdate")
	}
}

func TestHideShowIsCounted(t *testing.T) {
	tr, root := newScreen(t, 400, 300)
	w := addLayer(t, tr, root, "window", image.Rect(10, 10, 210, 110), 0)
	c := addLayer(t, tr, w, "content", image.Rect(5, 5, 50, 50), 0)
	mustUpdate(t, tr, root, nil)
	before := tr.VisibleRegion(w)

	tr.Hide(w)
	tr.Hide(w)
	tr.Show(w)
	mustUpdate(t, tr, root, nil)
	if !tr.IsHidden(w) || !tr.IsHidden(c) {
		t.Fatalf("window should still be hidden with count %d", tr.HideCount(w))
	}
	if !tr.VisibleRegion(w).IsEmpty() {
		t.Fatalf("hidden layer kept a visible region")
	}
	if got := tr.VisibleRegion(root).Area(); got != 400*300 {
		t.Fatalf("root visible area = %d, want full screen", got)
	}

	tr.Show(w)
	mustUpdate(t, tr, root, nil)
	if tr.IsHidden(w) {
		t.Fatalf("window still hidden")
	}
	if !tr.VisibleRegion(w).Equal(before) {
		t.Fatalf("visible after show = %v, want %v", tr.VisibleRegion(w), before)
	}
}

func TestStaleHandles(t *testing.T) {
	tr, root := newScreen(t, 100, 100)
	w := addLayer(t, tr, root, "w", image.Rect(0, 0, 10, 10), 0)
	if err := tr.Destroy(w); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if err := tr.SetFrame(w, image.Rect(0, 0, 5, 5)); !errors.Is(err, ErrStaleHandle) {
		t.Fatalf("SetFrame(stale) error = %v, want ErrStaleHandle", err)
	}
	if got := tr.Frame(w); got != (image.Rectangle{}) {
		t.Fatalf("Frame(stale) = %v", got)
	}

	fresh := tr.New("fresh", image.Rect(0, 0, 1, 1), 0)
	if fresh.index != w.index {
		t.Fatalf("slot not reused")
	}
	if tr.Valid(w) || !tr.Valid(fresh) {
		t.Fatalf("generation check failed: old=%v fresh=%v", tr.Valid(w), tr.Valid(fresh))
	}
	if HandleFromID(fresh.ID()) != fresh {
		t.Fatalf("ID round trip failed")
	}
}

func TestTopologyErrors(t *testing.T) {
	tr, root := newScreen(t, 100, 100)
	w := addLayer(t, tr, root, "w", image.Rect(0, 0, 10, 10), 0)
	x := tr.New("x", image.Rect(0, 0, 10, 10), 0)
	y := tr.New("y", image.Rect(0, 0, 5, 5), 0)
	if err := tr.AddChild(x, y, true); err != nil {
		t.Fatalf("AddChild() error = %v", err)
	}

	tests := []struct {
		name string
		err  error
	}{
		{"already attached", tr.AddChild(root, w, true)},
		{"root as child", tr.AddChild(w, root, true)},
		{"cycle", tr.AddChild(y, x, true)},
		{"not a child", tr.RemoveChild(root, y)},
		{"no parent", tr.RemoveSelf(x)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, ErrInvalidTopology) {
				t.Fatalf("error = %v, want ErrInvalidTopology", tt.err)
			}
		})
	}
}

func TestBackdropStaysBelowOrdinaryLayers(t *testing.T) {
	tr, root := newScreen(t, 100, 100)
	a := addLayer(t, tr, root, "a", image.Rect(0, 0, 10, 10), 0)
	d := addLayer(t, tr, root, "desktop", image.Rect(0, 0, 100, 100), Backdrop)
	b := tr.New("b", image.Rect(0, 0, 10, 10), 0)
	if err := tr.AddChild(root, b, false); err != nil {
		t.Fatalf("AddChild() error = %v", err)
	}

	got := tr.Children(root)
	want := []Handle{d, b, a}
	if len(got) != len(want) {
		t.Fatalf("children = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("children = %v, want %v", got, want)
		}
	}

	if err := tr.SendToBack(a); err != nil {
		t.Fatalf("SendToBack() error = %v", err)
	}
	if got := tr.Children(root); got[0] != d || got[1] != a {
		t.Fatalf("after SendToBack children = %v", got)
	}
}

func TestLayerAt(t *testing.T) {
	tr, root := newScreen(t, 640, 480)
	a := addLayer(t, tr, root, "a", image.Rect(10, 10, 210, 110), 0)
	b := addLayer(t, tr, root, "b", image.Rect(100, 50, 300, 200), 0)
	mustUpdate(t, tr, root, nil)

	tests := []struct {
		pt   image.Point
		want Handle
	}{
		{image.Pt(150, 60), b},
		{image.Pt(20, 20), a},
		{image.Pt(600, 400), root},
	}
	for _, tt := range tests {
		if got := tr.LayerAt(root, tt.pt); got != tt.want {
			t.Errorf("LayerAt(%v) = %v (%s), want %v", tt.pt, got, tr.Name(got), tt.want)
		}
	}
}

func TestRandomTreesNeverDoublePaint(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 25; round++ {
		tr, root := newScreen(t, 320, 240)
		var layers []Handle
		for i := 0; i < 10; i++ {
			parent := root
			if len(layers) > 0 && rng.Intn(3) == 0 {
				parent = layers[rng.Intn(len(layers))]
			}
			x, y := rng.Intn(300)-20, rng.Intn(220)-20
			r := image.Rect(x, y, x+1+rng.Intn(150), y+1+rng.Intn(120))
			h := tr.New("l", r, 0)
			if err := tr.AddChild(parent, h, rng.Intn(2) == 0); err != nil {
				t.Fatalf("AddChild() error = %v", err)
			}
			if rng.Intn(6) == 0 {
				tr.Hide(h)
			}
			layers = append(layers, h)
		}
		mustUpdate(t, tr, root, nil)

		var union region.Region
		total := 0
		tr.Walk(root, func(h Handle) bool {
			if tr.IsHidden(h) {
				return false
			}
			v := tr.VisibleRegion(h).Translated(tr.ConvertToRoot(h, image.Point{}))
			total += v.Area()
			union.Union(v)
			return true
		})
		if total != union.Area() {
			t.Fatalf("round %d: visible regions overlap (sum %d, union %d)", round, total, union.Area())
		}
		if union.Area() != 320*240 {
			t.Fatalf("round %d: visible regions cover %d pixels, want the whole screen", round, union.Area())
		}

		// moving layers around keeps the invariants
		for _, h := range layers {
			tr.MoveBy(h, rng.Intn(21)-10, rng.Intn(21)-10)
		}
		mustUpdate(t, tr, root, &paint.Recorder{})
	}
}

func TestSnapshotQueries(t *testing.T) {
	tr, root := newScreen(t, 640, 480)
	a := addLayer(t, tr, root, "a", image.Rect(10, 10, 210, 110), 0)
	b := addLayer(t, tr, root, "b", image.Rect(100, 50, 300, 200), 0)
	inner := addLayer(t, tr, b, "inner", image.Rect(10, 10, 50, 50), 0)
	mustUpdate(t, tr, root, nil)

	snap, err := tr.Snapshot(root)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.Count() != 4 {
		t.Fatalf("Count() = %d, want 4", snap.Count())
	}
	if n, ok := snap.Find(inner.ID()); !ok || n.Name != "inner" {
		t.Fatalf("Find(inner) = %v, %v", n, ok)
	}
	if _, ok := snap.Find(0); ok {
		t.Fatalf("Find(0) found a node")
	}

	path := snap.LayerAt(image.Pt(120, 70))
	if len(path) != 3 || path[2].ID != inner.ID() || path[1].ID != b.ID() {
		t.Fatalf("LayerAt(inner) path = %v", path)
	}
	path = snap.LayerAt(image.Pt(20, 20))
	if len(path) != 2 || path[1].ID != a.ID() {
		t.Fatalf("LayerAt(a) path = %v", path)
	}

	cov := snap.Coverage()
	if cov.Painted != 640*480 || cov.Overdraw != 0 {
		t.Fatalf("Coverage() = %+v", cov)
	}
}
