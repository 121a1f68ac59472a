package decorator

import (
	"errors"
	"image"
	"plugin"
	"testing"

	"github.com/1broseidon/layerd/internal/paint"
	"github.com/1broseidon/layerd/internal/region"
)

func newTitled(flags Flags) Decorator {
	return NewDefault(Params{
		Content: image.Rect(100, 100, 300, 250),
		Look:    Titled,
		Flags:   flags,
		Title:   "Terminal",
	})
}

func TestInsetsByLook(t *testing.T) {
	tests := []struct {
		look Look
		want Insets
	}{
		{Titled, Insets{5, 24, 5, 5}},
		{Floating, Insets{3, 18, 3, 3}},
		{Modal, Insets{5, 5, 5, 5}},
		{Bordered, Insets{1, 1, 1, 1}},
		{NoBorder, Insets{}},
	}
	for _, tt := range tests {
		t.Run(tt.look.String(), func(t *testing.T) {
			d := NewDefault(Params{Content: image.Rect(0, 0, 100, 100), Look: tt.look})
			if got := d.Insets(); got != tt.want {
				t.Fatalf("Insets() = %+v, want %+v", got, tt.want)
			}
			if got := d.Frame(); got != tt.want.Outset(image.Rect(0, 0, 100, 100)) {
				t.Fatalf("Frame() = %v", got)
			}
		})
	}
}

func TestMinSizeFitsButtons(t *testing.T) {
	d := newTitled(0)
	if got := d.MinSize(); got != image.Pt(52, 30) {
		t.Fatalf("MinSize() = %v, want (52,30)", got)
	}
	if got := NewDefault(Params{Look: NoBorder}).MinSize(); got != image.Pt(1, 1) {
		t.Fatalf("no-border MinSize() = %v", got)
	}
}

func TestClicked(t *testing.T) {
	tests := []struct {
		name    string
		flags   Flags
		pt      image.Point
		buttons Buttons
		want    HitCode
	}{
		{"close button", 0, image.Pt(100, 82), Primary, HitClose},
		{"zoom button", 0, image.Pt(190, 85), Primary, HitZoom},
		{"title tab", 0, image.Pt(150, 85), Primary, HitDrag},
		{"secondary on tab", 0, image.Pt(150, 85), Secondary, HitMoveToBack},
		{"band past tab", 0, image.Pt(250, 85), Primary, HitDrag},
		{"left edge", 0, image.Pt(96, 150), Primary, HitResizeL},
		{"right edge", 0, image.Pt(303, 150), Primary, HitResizeR},
		{"top left corner", 0, image.Pt(96, 96), Primary, HitResizeTL},
		{"bottom right corner", 0, image.Pt(304, 254), Primary, HitResizeBR},
		{"bottom edge", 0, image.Pt(200, 252), Primary, HitResizeB},
		{"content", 0, image.Pt(200, 200), Primary, HitNone},
		{"outside", 0, image.Pt(10, 10), Primary, HitNone},
		{"not resizable", NotResizable, image.Pt(96, 150), Primary, HitDrag},
		{"not h-resizable edge", NotHResizable, image.Pt(96, 150), Primary, HitDrag},
		{"not h-resizable corner", NotHResizable, image.Pt(96, 252), Primary, HitResizeB},
		{"not closable", NotClosable, image.Pt(100, 82), Primary, HitDrag},
		{"not movable", NotMovable, image.Pt(150, 85), Primary, HitMoveToFront},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTitled(tt.flags)
			if got := d.Clicked(tt.pt, tt.buttons); got != tt.want {
				t.Fatalf("Clicked(%v) = %v, want %v", tt.pt, got, tt.want)
			}
		})
	}
}

func TestTabShrinksWithTitle(t *testing.T) {
	d := newTitled(0)
	short := d.TabRect()
	d.SetTitle("A much longer window title")
	long := d.TabRect()
	if long.Dx() <= short.Dx() {
		t.Fatalf("tab did not grow: %v -> %v", short, long)
	}
	d.SetTitle("A title far too long to fit into a window that is only two hundred pixels wide")
	if got := d.TabRect(); got.Dx() != d.Frame().Dx() {
		t.Fatalf("tab width = %d, want window width %d", got.Dx(), d.Frame().Dx())
	}
}

func TestDrawStaysInsideDamage(t *testing.T) {
	d := newTitled(0)
	d.SetFocus(true)

	rec := &paint.Recorder{}
	d.Draw(rec, region.Region{})
	if len(rec.Ops) != 0 {
		t.Fatalf("empty damage produced %d ops", len(rec.Ops))
	}

	damage := region.FromRect(d.Frame())
	d.Draw(rec, damage)
	var sawTab, sawTitle bool
	for _, op := range rec.Ops {
		switch op.Kind {
		case paint.OpFillRegion:
			if !damage.ContainsRegion(op.Region) {
				t.Fatalf("fill escapes damage: %v", op.Region)
			}
		case paint.OpFillRect:
			if op.Rect == d.TabRect() && op.Color == tabFocused {
				sawTab = true
			}
		case paint.OpText:
			sawTitle = op.Text == "Terminal"
		}
	}
	if !sawTab || !sawTitle {
		t.Fatalf("missing tab (%v) or title (%v) in %d ops", sawTab, sawTitle, len(rec.Ops))
	}

	rec.Take()
	d.SetClosePressed(true)
	d.Draw(rec, region.FromRect(d.CloseRect()))
	pressed := false
	for _, op := range rec.OfKind(paint.OpFillRect) {
		if op.Rect == d.CloseRect() && op.Color == buttonPressed {
			pressed = true
		}
	}
	if !pressed {
		t.Fatalf("pressed close button not drawn")
	}
}

type fakePlugin map[string]plugin.Symbol

func (f fakePlugin) Lookup(name string) (plugin.Symbol, error) {
	if s, ok := f[name]; ok {
		return s, nil
	}
	return nil, errors.New("symbol not found")
}

func TestFactoryFromPlugin(t *testing.T) {
	good := func(p Params) Decorator { return NewDefault(p) }
	tests := []struct {
		name string
		tbl  fakePlugin
		err  error
	}{
		{"valid", fakePlugin{VersionSymbol: func() float64 { return 1.2 }, FactorySymbol: good}, nil},
		{"future major", fakePlugin{VersionSymbol: func() float64 { return 2.0 }, FactorySymbol: good}, ErrVersionMismatch},
		{"no version", fakePlugin{FactorySymbol: good}, ErrMissingSymbol},
		{"no factory", fakePlugin{VersionSymbol: func() float64 { return 1.0 }}, ErrMissingSymbol},
		{"wrong factory type", fakePlugin{VersionSymbol: func() float64 { return 1.0 }, FactorySymbol: 42}, ErrMissingSymbol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := factoryFrom(tt.tbl)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("error = %v, want %v", err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("factoryFrom() error = %v", err)
			}
			if d := f(Params{Look: Titled}); d.Insets().Top != 24 {
				t.Fatalf("factory produced insets %+v", d.Insets())
			}
		})
	}
}

func TestResolveFallsBackToDefault(t *testing.T) {
	orig := openPlugin
	defer func() { openPlugin = orig }()
	openPlugin = func(string) (symbolTable, error) {
		return fakePlugin{VersionSymbol: func() float64 { return 0.5 }}, nil
	}

	if _, err := Lookup("/usr/lib/layerd/old.so"); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("Lookup(old plugin) error = %v", err)
	}
	if _, err := Lookup("nope"); !errors.Is(err, ErrUnknown) {
		t.Fatalf("Lookup(nope) error = %v", err)
	}
	f := Resolve("/usr/lib/layerd/old.so", nil)
	if d := f(Params{Look: Titled}); d.Insets() != (Insets{5, 24, 5, 5}) {
		t.Fatalf("fallback insets = %+v", d.Insets())
	}

	Register("flat", func(p Params) Decorator {
		p.Look = Bordered
		return NewDefault(p)
	})
	if d := Resolve("flat", nil)(Params{Look: Titled}); d.Look() != Bordered {
		t.Fatalf("registered factory not used")
	}
}

func TestCompatible(t *testing.T) {
	for v, want := range map[float64]bool{1.0: true, 1.5: true, 0.9: false, 2.0: false} {
		if got := Compatible(v); got != want {
			t.Errorf("Compatible(%v) = %v, want %v", v, got, want)
		}
	}
}

func TestParseFlagsAndFeel(t *testing.T) {
	f, err := ParseFlags([]string{"not-zoomable", "not-movable"})
	if err != nil || f != NotZoomable|NotMovable {
		t.Fatalf("ParseFlags() = %v, %v", f, err)
	}
	if _, err := ParseFlags([]string{"sticky"}); err == nil {
		t.Fatalf("ParseFlags accepted an unknown flag")
	}
	if feel, ok := ParseFeel("floating"); !ok || feel != FloatingFeel {
		t.Fatalf("ParseFeel(floating) = %v, %v", feel, ok)
	}
	if _, ok := ParseFeel("sideways"); ok {
		t.Fatalf("ParseFeel accepted an unknown feel")
	}
}
