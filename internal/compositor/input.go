package compositor

import (
	"image"

	"github.com/1broseidon/layerd/internal/decorator"
	"github.com/1broseidon/layerd/internal/winborder"
)

// windowAt returns the front-most shown window whose frame contains pt.
func (s *State) windowAt(pt image.Point) WindowID {
	kids := s.tree.Children(s.root)
	for i := len(kids) - 1; i >= 0; i-- {
		h := kids[i]
		if s.tree.IsHidden(h) || !pt.In(s.tree.FrameInRoot(h)) {
			continue
		}
		if id, ok := s.byLayer[h]; ok {
			return id
		}
	}
	return 0
}

// topmost returns the front-most shown window.
func (s *State) topmost() WindowID {
	kids := s.tree.Children(s.root)
	for i := len(kids) - 1; i >= 0; i-- {
		if s.tree.IsHidden(kids[i]) {
			continue
		}
		if id, ok := s.byLayer[kids[i]]; ok {
			return id
		}
	}
	return 0
}

// Focused returns the focused window, or 0.
func (s *State) Focused() WindowID { return s.focused }

// Focus raises the window and moves the focus look to it.
func (s *State) Focus(id WindowID) error {
	w, err := s.window(id, "focus")
	if err != nil {
		return err
	}
	if err := s.tree.BringToFront(w.border.Layer()); err != nil {
		return err
	}
	if s.focused == id {
		w.border.SetFocus(true)
		return nil
	}
	if prev, ok := s.windows[s.focused]; ok {
		prev.border.SetFocus(false)
	}
	s.focused = id
	w.border.SetFocus(true)
	return nil
}

// CycleFocus focuses the back-most shown window, bringing it to the front.
func (s *State) CycleFocus() WindowID {
	for _, h := range s.tree.Children(s.root) {
		if s.tree.IsHidden(h) {
			continue
		}
		if id, ok := s.byLayer[h]; ok {
			if id != s.focused {
				s.Focus(id)
			}
			return s.focused
		}
	}
	return 0
}

// CloseFocused asks the focused window's client to close it. Windows
// without a client are destroyed directly.
func (s *State) CloseFocused() WindowID {
	id := s.focused
	if id == 0 {
		return 0
	}
	s.requestClose(id)
	return id
}

func (s *State) requestClose(id WindowID) {
	w, ok := s.windows[id]
	if !ok {
		return
	}
	if w.client == nil {
		s.DestroyWindow(id)
		return
	}
	w.client.CloseRequested(id)
}

// PointerDown routes a press to the window under pt, focusing it first.
// A press that starts a drag, resize or button arm grabs the pointer.
func (s *State) PointerDown(pt image.Point, buttons decorator.Buttons) {
	if s.grab != 0 {
		return
	}
	id := s.windowAt(pt)
	w, ok := s.windows[id]
	if !ok {
		return
	}
	if buttons&decorator.Secondary == 0 {
		s.Focus(id)
	}
	switch w.border.MouseDown(pt, buttons) {
	case winborder.ActionMoveToBack:
		s.tree.SendToBack(w.border.Layer())
		if s.focused == id {
			if next := s.topmost(); next != 0 && next != id {
				s.Focus(next)
			}
		}
	case winborder.ActionMoveToFront:
		s.Focus(id)
	}
	if w.border.State() != winborder.Idle {
		s.grab = id
	}
}

// PointerMoved feeds motion to the window holding the grab.
func (s *State) PointerMoved(pt image.Point, buttons decorator.Buttons) {
	w, ok := s.windows[s.grab]
	if !ok {
		return
	}
	w.border.MouseMoved(pt, buttons)
}

// PointerUp ends the grab and carries out a released button's action.
func (s *State) PointerUp(pt image.Point) {
	id := s.grab
	w, ok := s.windows[id]
	s.grab = 0
	if !ok {
		return
	}
	switch w.border.MouseUp(pt) {
	case winborder.ActionClose:
		s.requestClose(id)
	case winborder.ActionZoom:
		w.border.Zoom(s.opts.Screen)
	}
}

// Grab returns the window holding the pointer, or 0.
func (s *State) Grab() WindowID { return s.grab }
