package paint

import (
	"image"
	"image/color"
	"sync"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/1broseidon/layerd/internal/region"
)

// Software is a Backend drawing into an in-memory RGBA framebuffer.
type Software struct {
	mu   sync.Mutex
	img  *image.RGBA
	face font.Face

	// OnFlush, if set, is called with the framebuffer after every Flush.
	OnFlush func(*image.RGBA) error
}

var _ Backend = (*Software)(nil)

// NewSoftware returns a framebuffer covering bounds, cleared to transparent.
func NewSoftware(bounds image.Rectangle) *Software {
	return &Software{
		img:  image.NewRGBA(bounds),
		face: basicfont.Face7x13,
	}
}

func (s *Software) Bounds() image.Rectangle { return s.img.Bounds() }

// At returns the colour of one framebuffer pixel.
func (s *Software) At(x, y int) color.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.img.RGBAAt(x, y)
}

// Snapshot returns a copy of the framebuffer.
func (s *Software) Snapshot() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := image.NewRGBA(s.img.Bounds())
	copy(out.Pix, s.img.Pix)
	return out
}

func (s *Software) FillRegion(r region.Region, c color.RGBA) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := image.NewUniform(c)
	for _, rect := range r.Rects() {
		xdraw.Draw(s.img, rect, src, image.Point{}, xdraw.Src)
	}
}

func (s *Software) FillRect(rect image.Rectangle, c color.RGBA, clip region.Region) {
	s.FillRegion(clip.Intersect(region.FromRect(rect)), c)
}

func (s *Software) StrokeRect(rect image.Rectangle, c color.RGBA, clip region.Region) {
	edges := Outline(rect)
	edges.IntersectWith(clip)
	s.FillRegion(edges, c)
}

// CopyRegion snapshots the source pixels first so overlapping moves never
// read their own output.
func (s *Software) CopyRegion(src region.Region, delta image.Point) {
	if src.IsEmpty() || delta == (image.Point{}) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b := src.Bounds().Intersect(s.img.Bounds())
	if b.Empty() {
		return
	}
	tmp := image.NewRGBA(b)
	xdraw.Copy(tmp, b.Min, s.img, b, xdraw.Src, nil)
	for _, rect := range src.Rects() {
		rect = rect.Intersect(b)
		if rect.Empty() {
			continue
		}
		xdraw.Copy(s.img, rect.Min.Add(delta), tmp, rect, xdraw.Src, nil)
	}
}

func (s *Software) DrawString(origin image.Point, text string, c color.RGBA, clip region.Region) {
	if text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rect := range clip.Rects() {
		sub, ok := s.img.SubImage(rect).(*image.RGBA)
		if !ok || sub.Bounds().Empty() {
			continue
		}
		d := &font.Drawer{
			Dst:  sub,
			Src:  image.NewUniform(c),
			Face: s.face,
			Dot:  fixed.P(origin.X, origin.Y),
		}
		d.DrawString(text)
	}
}

func (s *Software) Flush() error {
	if s.OnFlush == nil {
		return nil
	}
	return s.OnFlush(s.Snapshot())
}

func (s *Software) Close() error { return nil }
