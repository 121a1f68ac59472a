package decorator

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/1broseidon/layerd/internal/paint"
	"github.com/1broseidon/layerd/internal/region"
)

// Default decorator palette
var (
	frameColor     = color.RGBA{R: 216, G: 216, B: 216, A: 255}
	frameShadow    = color.RGBA{R: 152, G: 152, B: 152, A: 255}
	frameHighlight = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	tabFocused     = color.RGBA{R: 255, G: 203, B: 0, A: 255}
	tabUnfocused   = color.RGBA{R: 232, G: 232, B: 232, A: 255}
	buttonColor    = color.RGBA{R: 240, G: 240, B: 240, A: 255}
	buttonPressed  = color.RGBA{R: 176, G: 176, B: 176, A: 255}
	textColor      = color.RGBA{A: 255}
)

const (
	buttonMargin = 3
	buttonGap    = 4
	titlePad     = 5
	minCorner    = 12
)

var titleFace font.Face = basicfont.Face7x13

// defaultDecorator draws a title tab with close and zoom buttons above a
// bevelled frame.
type defaultDecorator struct {
	content image.Rectangle
	look    Look
	flags   Flags
	title   string
	focused bool

	closePressed bool
	zoomPressed  bool

	border, tab int
}

// NewDefault returns the built-in decorator.
func NewDefault(p Params) Decorator {
	d := &defaultDecorator{
		content: p.Content,
		flags:   p.Flags,
		title:   p.Title,
		focused: p.Focused,
	}
	d.SetLook(p.Look)
	return d
}

func (d *defaultDecorator) SetLook(l Look) {
	d.look = l
	switch l {
	case Titled, Document:
		d.border, d.tab = 5, 19
	case Modal:
		d.border, d.tab = 5, 0
	case Floating:
		d.border, d.tab = 3, 15
	case Bordered:
		d.border, d.tab = 1, 0
	default:
		d.border, d.tab = 0, 0
	}
}

func (d *defaultDecorator) Look() Look { return d.look }

func (d *defaultDecorator) Insets() Insets {
	return Insets{Left: d.border, Top: d.border + d.tab, Right: d.border, Bottom: d.border}
}

func (d *defaultDecorator) buttonSize() int {
	if d.tab == 0 {
		return 0
	}
	return d.tab - 2*buttonMargin
}

func (d *defaultDecorator) MinSize() image.Point {
	in := d.Insets()
	w := in.Left + in.Right + 1
	if d.tab > 0 {
		w = max(w, 2*(d.buttonSize()+2*buttonGap)+2*d.border)
	}
	return image.Pt(w, in.Top+in.Bottom+1)
}

func (d *defaultDecorator) SetFrame(content image.Rectangle) { d.content = content }

func (d *defaultDecorator) Frame() image.Rectangle { return d.Insets().Outset(d.content) }

func (d *defaultDecorator) SetClosePressed(v bool) { d.closePressed = v }
func (d *defaultDecorator) ClosePressed() bool     { return d.closePressed }
func (d *defaultDecorator) SetZoomPressed(v bool)  { d.zoomPressed = v }
func (d *defaultDecorator) ZoomPressed() bool      { return d.zoomPressed }
func (d *defaultDecorator) SetFocus(v bool)        { d.focused = v }
func (d *defaultDecorator) Focused() bool          { return d.focused }
func (d *defaultDecorator) SetTitle(s string)      { d.title = s }
func (d *defaultDecorator) Title() string          { return d.title }
func (d *defaultDecorator) SetFlags(f Flags)       { d.flags = f }
func (d *defaultDecorator) Flags() Flags           { return d.flags }

// band is the full-width strip above the frame that holds the tab.
func (d *defaultDecorator) band() image.Rectangle {
	outer := d.Frame()
	return image.Rect(outer.Min.X, outer.Min.Y, outer.Max.X, outer.Min.Y+d.tab)
}

// TabRect is sized to the title and buttons, never wider than the window.
func (d *defaultDecorator) TabRect() image.Rectangle {
	if d.tab == 0 {
		return image.Rectangle{}
	}
	band := d.band()
	btn := d.buttonSize() + 2*buttonGap
	w := 2*btn + titlePad*2 + font.MeasureString(titleFace, d.title).Ceil()
	if w > band.Dx() {
		w = band.Dx()
	}
	return image.Rect(band.Min.X, band.Min.Y, band.Min.X+w, band.Max.Y)
}

func (d *defaultDecorator) CloseRect() image.Rectangle {
	if d.tab == 0 || d.flags&NotClosable != 0 {
		return image.Rectangle{}
	}
	tab := d.TabRect()
	s := d.buttonSize()
	at := image.Pt(tab.Min.X+buttonGap, tab.Min.Y+buttonMargin)
	return image.Rectangle{Min: at, Max: at.Add(image.Pt(s, s))}
}

func (d *defaultDecorator) ZoomRect() image.Rectangle {
	if d.tab == 0 || d.flags&NotZoomable != 0 {
		return image.Rectangle{}
	}
	tab := d.TabRect()
	s := d.buttonSize()
	at := image.Pt(tab.Max.X-buttonGap-s, tab.Min.Y+buttonMargin)
	return image.Rectangle{Min: at, Max: at.Add(image.Pt(s, s))}
}

func (d *defaultDecorator) Clicked(pt image.Point, buttons Buttons) HitCode {
	outer := d.Frame()
	if !pt.In(outer) || pt.In(d.content) {
		return HitNone
	}
	if pt.In(d.CloseRect()) {
		return HitClose
	}
	if pt.In(d.ZoomRect()) {
		return HitZoom
	}
	if buttons&Secondary != 0 {
		return HitMoveToBack
	}
	if pt.In(d.band()) {
		return d.dragOrRaise()
	}
	if d.flags&NotResizable != 0 {
		return d.dragOrRaise()
	}

	corner := max(minCorner, 2*d.border)
	frameTop := outer.Min.Y + d.tab
	var left, right, top, bottom bool
	if d.flags&NotHResizable == 0 {
		left = pt.X < outer.Min.X+corner
		right = !left && pt.X >= outer.Max.X-corner
	}
	if d.flags&NotVResizable == 0 {
		top = pt.Y < frameTop+corner
		bottom = !top && pt.Y >= outer.Max.Y-corner
	}
	switch {
	case left && top:
		return HitResizeTL
	case right && top:
		return HitResizeTR
	case left && bottom:
		return HitResizeBL
	case right && bottom:
		return HitResizeBR
	case left:
		return HitResizeL
	case right:
		return HitResizeR
	case top:
		return HitResizeT
	case bottom:
		return HitResizeB
	}
	return d.dragOrRaise()
}

func (d *defaultDecorator) dragOrRaise() HitCode {
	if d.flags&NotMovable != 0 {
		return HitMoveToFront
	}
	return HitDrag
}

func (d *defaultDecorator) Draw(p paint.Painter, damage region.Region) {
	outer := d.Frame()
	if damage.IsEmpty() || outer.Empty() {
		return
	}

	if d.border > 0 {
		ring := region.FromRect(outer)
		ring.Exclude(d.band())
		ring.Exclude(d.content)
		ring.IntersectWith(damage)
		p.FillRegion(ring, frameColor)
		body := image.Rect(outer.Min.X, outer.Min.Y+d.tab, outer.Max.X, outer.Max.Y)
		p.StrokeRect(body, frameShadow, damage)
		if d.border > 2 {
			p.StrokeRect(body.Inset(1), frameHighlight, damage)
			p.StrokeRect(d.content.Inset(-1), frameShadow, damage)
		}
	}
	if d.tab == 0 {
		return
	}

	band := d.band()
	tab := d.TabRect()
	rest := region.FromRect(band)
	rest.Exclude(tab)
	rest.IntersectWith(damage)
	p.FillRegion(rest, frameColor)

	tabColor := tabUnfocused
	if d.focused {
		tabColor = tabFocused
	}
	p.FillRect(tab, tabColor, damage)
	p.StrokeRect(tab, frameShadow, damage)

	if r := d.CloseRect(); !r.Empty() {
		d.drawButton(p, r, d.closePressed, damage)
	}
	if r := d.ZoomRect(); !r.Empty() {
		d.drawButton(p, r, d.zoomPressed, damage)
		inner := image.Rectangle{Min: r.Min, Max: r.Min.Add(r.Size().Div(2))}.Add(image.Pt(2, 2))
		p.StrokeRect(inner, frameShadow, damage)
	}

	textMin := tab.Min.X + titlePad
	if r := d.CloseRect(); !r.Empty() {
		textMin = r.Max.X + titlePad
	}
	textMax := tab.Max.X - titlePad
	if r := d.ZoomRect(); !r.Empty() {
		textMax = r.Min.X - titlePad
	}
	if textMax <= textMin || d.title == "" {
		return
	}
	clip := damage.Intersect(region.FromRect(image.Rect(textMin, tab.Min.Y, textMax, tab.Max.Y)))
	if clip.IsEmpty() {
		return
	}
	m := titleFace.Metrics()
	baseline := tab.Min.Y + (tab.Dy()+m.Ascent.Ceil()-m.Descent.Ceil())/2
	p.DrawString(image.Pt(textMin, baseline), d.title, textColor, clip)
}

func (d *defaultDecorator) drawButton(p paint.Painter, r image.Rectangle, pressed bool, damage region.Region) {
	c := buttonColor
	if pressed {
		c = buttonPressed
	}
	p.FillRect(r, c, damage)
	p.StrokeRect(r, frameShadow, damage)
}
