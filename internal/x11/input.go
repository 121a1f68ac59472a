package x11

import (
	"image"
	"log"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xevent"

	"github.com/1broseidon/layerd/internal/decorator"
)

// PointerSink receives pointer input in output coordinates.
type PointerSink interface {
	PointerDown(pt image.Point, buttons decorator.Buttons) error
	PointerMoved(pt image.Point, buttons decorator.Buttons) error
	PointerUp(pt image.Point) error
}

func buttonOf(b xproto.Button) decorator.Buttons {
	switch b {
	case xproto.ButtonIndex1:
		return decorator.Primary
	case xproto.ButtonIndex2:
		return decorator.Tertiary
	case xproto.ButtonIndex3:
		return decorator.Secondary
	}
	return 0
}

func buttonsOf(state uint16) decorator.Buttons {
	var b decorator.Buttons
	if state&xproto.KeyButMaskButton1 != 0 {
		b |= decorator.Primary
	}
	if state&xproto.KeyButMaskButton2 != 0 {
		b |= decorator.Tertiary
	}
	if state&xproto.KeyButMaskButton3 != 0 {
		b |= decorator.Secondary
	}
	return b
}

// Listen routes the output window's pointer events to sink, answers Expose
// from the pixmap and calls onClose when the window manager asks the
// window to close. Events are delivered by Connection.EventLoop.
func (o *Output) Listen(sink PointerSink, onClose func()) {
	xu := o.conn.XUtil
	id := o.win.Id

	report := func(what string, err error) {
		if err != nil {
			log.Printf("X11: %s dropped: %v", what, err)
		}
	}

	xevent.ButtonPressFun(func(xu *xgbutil.XUtil, ev xevent.ButtonPressEvent) {
		b := buttonOf(ev.Detail)
		if b == 0 {
			// Wheel buttons.
			return
		}
		report("button press", sink.PointerDown(image.Pt(int(ev.EventX), int(ev.EventY)), b))
	}).Connect(xu, id)

	xevent.ButtonReleaseFun(func(xu *xgbutil.XUtil, ev xevent.ButtonReleaseEvent) {
		if buttonOf(ev.Detail) == 0 {
			return
		}
		report("button release", sink.PointerUp(image.Pt(int(ev.EventX), int(ev.EventY))))
	}).Connect(xu, id)

	xevent.MotionNotifyFun(func(xu *xgbutil.XUtil, ev xevent.MotionNotifyEvent) {
		report("motion", sink.PointerMoved(image.Pt(int(ev.EventX), int(ev.EventY)), buttonsOf(ev.State)))
	}).Connect(xu, id)

	xevent.ExposeFun(func(xu *xgbutil.XUtil, ev xevent.ExposeEvent) {
		x, y := int(ev.X), int(ev.Y)
		o.Expose(image.Rect(x, y, x+int(ev.Width), y+int(ev.Height)))
	}).Connect(xu, id)

	if onClose == nil {
		return
	}
	if err := icccm.WmProtocolsSet(xu, id, []string{"WM_DELETE_WINDOW"}); err != nil {
		log.Printf("X11: failed to set WM_PROTOCOLS: %v", err)
		return
	}
	xevent.ClientMessageFun(func(xu *xgbutil.XUtil, ev xevent.ClientMessageEvent) {
		if icccm.IsDeleteProtocol(xu, ev) {
			onClose()
		}
	}).Connect(xu, id)
}
