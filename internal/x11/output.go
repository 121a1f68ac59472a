package x11

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xprop"
	"github.com/BurntSushi/xgbutil/xwindow"

	"github.com/1broseidon/layerd/internal/paint"
	"github.com/1broseidon/layerd/internal/region"
)

// maxTextItem is the longest string one PolyText8 item can carry.
const maxTextItem = 254

// Output is a paint.Backend drawing into an X window. Operations land in an
// off-screen pixmap; Flush copies the touched area to the window, and
// Expose events are answered from the pixmap.
type Output struct {
	conn   *Connection
	win    *xwindow.Window
	pixmap xproto.Pixmap
	gc     xproto.Gcontext
	font   xproto.Font
	bounds image.Rectangle

	mu    sync.Mutex
	dirty image.Rectangle
	fg    uint32
}

var _ paint.Backend = (*Output)(nil)

// NewOutput creates and maps a top-level window of area's size, placed at
// area.Min.
func NewOutput(conn *Connection, area image.Rectangle, title string) (*Output, error) {
	if area.Empty() {
		return nil, fmt.Errorf("output area %v is empty", area)
	}
	xu := conn.XUtil
	c := xu.Conn()

	win, err := xwindow.Generate(xu)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate output window: %w", err)
	}
	mask := uint32(xproto.EventMaskExposure | xproto.EventMaskButtonPress | xproto.EventMaskButtonRelease |
		xproto.EventMaskPointerMotion | xproto.EventMaskStructureNotify)
	if err := win.CreateChecked(conn.Root, area.Min.X, area.Min.Y, area.Dx(), area.Dy(),
		xproto.CwBackPixel|xproto.CwEventMask, 0, mask); err != nil {
		return nil, fmt.Errorf("failed to create output window: %w", err)
	}

	o := &Output{
		conn:   conn,
		win:    win,
		bounds: image.Rect(0, 0, area.Dx(), area.Dy()),
	}

	if o.pixmap, err = xproto.NewPixmapId(c); err != nil {
		win.Destroy()
		return nil, fmt.Errorf("failed to allocate pixmap: %w", err)
	}
	if err := xproto.CreatePixmapChecked(c, conn.Depth(), o.pixmap, xproto.Drawable(win.Id),
		uint16(area.Dx()), uint16(area.Dy())).Check(); err != nil {
		win.Destroy()
		return nil, fmt.Errorf("failed to create pixmap: %w", err)
	}

	if o.font, err = xproto.NewFontId(c); err != nil {
		o.Close()
		return nil, fmt.Errorf("failed to allocate font: %w", err)
	}
	const fontName = "fixed"
	if err := xproto.OpenFontChecked(c, o.font, uint16(len(fontName)), fontName).Check(); err != nil {
		o.Close()
		return nil, fmt.Errorf("failed to open font %q: %w", fontName, err)
	}

	if o.gc, err = xproto.NewGcontextId(c); err != nil {
		o.Close()
		return nil, fmt.Errorf("failed to allocate graphics context: %w", err)
	}
	// Values follow mask bit order: foreground, font, graphics-exposures.
	if err := xproto.CreateGCChecked(c, o.gc, xproto.Drawable(o.pixmap),
		xproto.GcForeground|xproto.GcFont|xproto.GcGraphicsExposures,
		[]uint32{0, uint32(o.font), 0}).Check(); err != nil {
		o.Close()
		return nil, fmt.Errorf("failed to create graphics context: %w", err)
	}

	if title != "" {
		ewmh.WmNameSet(xu, win.Id, title)
		icccm.WmNameSet(xu, win.Id, title)
	}
	icccm.WmClassSet(xu, win.Id, &icccm.WmClass{Instance: "layerd", Class: "Layerd"})
	// Fixed size: the scene graph does not follow window manager resizes.
	icccm.WmNormalHintsSet(xu, win.Id, &icccm.NormalHints{
		Flags:     icccm.SizeHintPMinSize | icccm.SizeHintPMaxSize,
		MinWidth:  uint(area.Dx()),
		MinHeight: uint(area.Dy()),
		MaxWidth:  uint(area.Dx()),
		MaxHeight: uint(area.Dy()),
	})
	win.Map()
	return o, nil
}

// Window is the output window.
func (o *Output) Window() xproto.Window { return o.win.Id }

func (o *Output) Bounds() image.Rectangle { return o.bounds }

// pixel maps c onto a TrueColor visual.
func pixel(c color.RGBA) uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

func xrects(rects []image.Rectangle) []xproto.Rectangle {
	out := make([]xproto.Rectangle, 0, len(rects))
	for _, r := range rects {
		if r.Empty() {
			continue
		}
		out = append(out, xproto.Rectangle{
			X:      int16(r.Min.X),
			Y:      int16(r.Min.Y),
			Width:  uint16(r.Dx()),
			Height: uint16(r.Dy()),
		})
	}
	return out
}

// setForeground must be called with mu held.
func (o *Output) setForeground(c color.RGBA) {
	px := pixel(c)
	if px == o.fg {
		return
	}
	xproto.ChangeGC(o.conn.XUtil.Conn(), o.gc, xproto.GcForeground, []uint32{px})
	o.fg = px
}

// fill must be called with mu held.
func (o *Output) fill(r region.Region, c color.RGBA) {
	r.IntersectRect(o.bounds)
	if r.IsEmpty() {
		return
	}
	o.setForeground(c)
	xproto.PolyFillRectangle(o.conn.XUtil.Conn(), xproto.Drawable(o.pixmap), o.gc, xrects(r.Rects()))
	o.dirty = o.dirty.Union(r.Bounds())
}

func (o *Output) FillRegion(r region.Region, c color.RGBA) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fill(r.Clone(), c)
}

func (o *Output) FillRect(rect image.Rectangle, c color.RGBA, clip region.Region) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fill(clip.Intersect(region.FromRect(rect)), c)
}

func (o *Output) StrokeRect(rect image.Rectangle, c color.RGBA, clip region.Region) {
	edges := paint.Outline(rect)
	edges.IntersectWith(clip)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fill(edges, c)
}

// CopyRegion blits one rectangle at a time in paint.CopyOrder so no copy
// reads pixels an earlier one overwrote.
func (o *Output) CopyRegion(src region.Region, delta image.Point) {
	if src.IsEmpty() || delta == (image.Point{}) {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	c := o.conn.XUtil.Conn()
	d := xproto.Drawable(o.pixmap)
	for _, r := range paint.CopyOrder(src, delta) {
		r = r.Intersect(o.bounds)
		if r.Empty() {
			continue
		}
		dst := r.Add(delta)
		xproto.CopyArea(c, d, d, o.gc, int16(r.Min.X), int16(r.Min.Y),
			int16(dst.Min.X), int16(dst.Min.Y), uint16(r.Dx()), uint16(r.Dy()))
		o.dirty = o.dirty.Union(dst.Intersect(o.bounds))
	}
}

// DrawString uses the server's "fixed" font, clipped with the graphics
// context's clip rectangles.
func (o *Output) DrawString(origin image.Point, text string, c color.RGBA, clip region.Region) {
	if text == "" || clip.IsEmpty() {
		return
	}
	if len(text) > maxTextItem {
		text = text[:maxTextItem]
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	xc := o.conn.XUtil.Conn()
	o.setForeground(c)
	xproto.SetClipRectangles(xc, xproto.ClipOrderingUnsorted, o.gc, 0, 0, xrects(clip.Rects()))
	item := append([]byte{byte(len(text)), 0}, text...)
	xproto.PolyText8(xc, xproto.Drawable(o.pixmap), o.gc, int16(origin.X), int16(origin.Y), item)
	xproto.ChangeGC(xc, o.gc, xproto.GcClipMask, []uint32{0}) // None
	o.dirty = o.dirty.Union(clip.Bounds())
}

// Flush copies everything drawn since the last flush to the window.
func (o *Output) Flush() error {
	o.mu.Lock()
	dirty := o.dirty
	o.dirty = image.Rectangle{}
	o.mu.Unlock()
	if !dirty.Empty() {
		o.present(dirty)
	}
	return o.conn.Sync()
}

// Expose repaints r of the window from the pixmap.
func (o *Output) Expose(r image.Rectangle) {
	o.present(r.Intersect(o.bounds))
}

func (o *Output) present(r image.Rectangle) {
	if r.Empty() {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	xproto.CopyArea(o.conn.XUtil.Conn(), xproto.Drawable(o.pixmap), xproto.Drawable(o.win.Id), o.gc,
		int16(r.Min.X), int16(r.Min.Y), int16(r.Min.X), int16(r.Min.Y), uint16(r.Dx()), uint16(r.Dy()))
}

// Wake sends the output window a client message so a blocked event loop
// notices Connection.Quit.
func (o *Output) Wake() error {
	xu := o.conn.XUtil
	atom, err := xprop.Atm(xu, "_LAYERD_WAKE")
	if err != nil {
		return err
	}
	ev, err := xevent.NewClientMessage(32, o.win.Id, atom, 0)
	if err != nil {
		return err
	}
	return xproto.SendEventChecked(xu.Conn(), false, o.win.Id, xproto.EventMaskNoEvent, string(ev.Bytes())).Check()
}

// Close releases the server resources.
func (o *Output) Close() error {
	c := o.conn.XUtil.Conn()
	if o.gc != 0 {
		xproto.FreeGC(c, o.gc)
	}
	if o.font != 0 {
		xproto.CloseFont(c, o.font)
	}
	if o.pixmap != 0 {
		xproto.FreePixmap(c, o.pixmap)
	}
	o.win.Destroy()
	return o.conn.Sync()
}
