package hotkeys

import (
	"fmt"
	"log"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"

	"github.com/1broseidon/layerd/internal/compositor"
)

// Poster queues work on the compositor loop without waiting.
type Poster interface {
	Post(fn func(*compositor.State) error) error
}

// Bindings are key sequences in keybind notation. Empty ones are skipped.
type Bindings struct {
	Redraw     string
	Close      string
	CycleFocus string
}

// x11Accessor is an optional interface for backends that expose X11 internals.
type x11Accessor interface {
	XUtil() *xgbutil.XUtil
	RootWindow() xproto.Window
}

// Handler manages global keyboard shortcuts
type Handler struct {
	xu   *xgbutil.XUtil
	root xproto.Window
	comp Poster
}

var ignoreModsOnce sync.Once

// NewHandler creates a new hotkey handler. It returns an error when the
// backend has no X connection to grab keys on.
func NewHandler(backend any, comp Poster) (*Handler, error) {
	accessor, ok := backend.(x11Accessor)
	if !ok || accessor.XUtil() == nil {
		return nil, fmt.Errorf("hotkeys need an X11 backend")
	}
	xu := accessor.XUtil()

	ignoreModsOnce.Do(func() {
		configureIgnoreMods(xu)
	})

	return &Handler{
		xu:   xu,
		root: accessor.RootWindow(),
		comp: comp,
	}, nil
}

// Register binds every non-empty sequence in b.
func (h *Handler) Register(b Bindings) error {
	actions := []struct {
		name string
		seq  string
		fn   func(*compositor.State) error
	}{
		{"redraw", b.Redraw, func(s *compositor.State) error { return s.Redraw() }},
		{"close", b.Close, func(s *compositor.State) error {
			if id := s.CloseFocused(); id != 0 {
				log.Printf("Hotkeys: close requested for %s", id)
			}
			return nil
		}},
		{"cycle_focus", b.CycleFocus, func(s *compositor.State) error {
			s.CycleFocus()
			return nil
		}},
	}
	for _, a := range actions {
		if a.seq == "" {
			continue
		}
		a := a
		if err := h.RegisterFunc(a.seq, func() {
			if err := h.comp.Post(a.fn); err != nil {
				log.Printf("Hotkeys: %s failed: %v", a.name, err)
			}
		}); err != nil {
			return fmt.Errorf("failed to register %s hotkey %q: %w", a.name, a.seq, err)
		}
		log.Printf("Hotkeys: %s bound to %s", a.name, a.seq)
	}
	return nil
}

// RegisterFunc registers an arbitrary hotkey callback.
func (h *Handler) RegisterFunc(keySequence string, callback func()) error {
	return keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		callback()
	}).Connect(h.xu, h.root, keySequence, true)
}

func configureIgnoreMods(xu *xgbutil.XUtil) {
	// Always ignore CapsLock.
	caps := uint16(xproto.ModMaskLock)

	numLock := modMaskForKeysym(xu, "Num_Lock")
	scrollLock := modMaskForKeysym(xu, "Scroll_Lock")

	unique := make(map[uint16]struct{})
	add := func(mask uint16) {
		unique[mask] = struct{}{}
	}

	add(0)
	base := []uint16{caps}
	if numLock != 0 && numLock != caps {
		base = append(base, numLock)
	}
	if scrollLock != 0 && scrollLock != caps && scrollLock != numLock {
		base = append(base, scrollLock)
	}

	for subset := 1; subset < (1 << len(base)); subset++ {
		var mask uint16
		for bit := range base {
			if subset&(1<<bit) != 0 {
				mask |= base[bit]
			}
		}
		add(mask)
	}

	ignore := make([]uint16, 0, len(unique))
	for mask := range unique {
		ignore = append(ignore, mask)
	}

	xevent.IgnoreMods = ignore
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}
