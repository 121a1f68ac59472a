package x11

import (
	"fmt"
	"image"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// Monitor represents a physical display
type Monitor struct {
	ID     int
	Name   string
	Bounds image.Rectangle
}

// GetMonitors retrieves all active monitors using XRandR
func (c *Connection) GetMonitors() ([]Monitor, error) {
	// Initialize RandR if not already done
	if err := randr.Init(c.XUtil.Conn()); err != nil {
		return nil, fmt.Errorf("randr init failed: %w", err)
	}

	// Get screen resources
	resources, err := randr.GetScreenResources(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var monitors []Monitor

	// Query each CRTC for active monitors
	for i, crtc := range resources.Crtcs {
		crtcInfo, err := randr.GetCrtcInfo(c.XUtil.Conn(), crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}

		// Skip disabled CRTCs
		if crtcInfo.Width == 0 || crtcInfo.Height == 0 || len(crtcInfo.Outputs) == 0 {
			continue
		}

		outputName := fmt.Sprintf("Monitor%d", i)
		outputInfo, err := randr.GetOutputInfo(c.XUtil.Conn(), crtcInfo.Outputs[0], resources.ConfigTimestamp).Reply()
		if err == nil {
			outputName = string(outputInfo.Name)
		}

		x, y := int(crtcInfo.X), int(crtcInfo.Y)
		monitors = append(monitors, Monitor{
			ID:     i,
			Name:   outputName,
			Bounds: image.Rect(x, y, x+int(crtcInfo.Width), y+int(crtcInfo.Height)),
		})
	}

	return monitors, nil
}

// OutputArea returns where the compositor's output window should go: the
// monitor under the pointer, clipped to the EWMH work area when a window
// manager publishes one. Without RandR the root window is used.
func (c *Connection) OutputArea() (image.Rectangle, error) {
	monitors, err := c.GetMonitors()
	if err != nil || len(monitors) == 0 {
		return c.RootBounds()
	}

	area := monitors[0].Bounds
	if mon := findMonitorForPointer(c, monitors); mon != nil {
		area = mon.Bounds
	}

	workArea, err := ewmh.WorkareaGet(c.XUtil)
	if err != nil || len(workArea) == 0 {
		return area, nil
	}
	desktopIndex := 0
	if currentDesktop, err := ewmh.CurrentDesktopGet(c.XUtil); err == nil {
		if int(currentDesktop) < len(workArea) {
			desktopIndex = int(currentDesktop)
		}
	}
	wa := workArea[desktopIndex]
	usable := area.Intersect(image.Rect(int(wa.X), int(wa.Y), int(wa.X)+int(wa.Width), int(wa.Y)+int(wa.Height)))
	if usable.Empty() {
		return area, nil
	}
	return usable, nil
}

func findMonitorForPointer(c *Connection, monitors []Monitor) *Monitor {
	pointer, err := xproto.QueryPointer(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil
	}

	pt := image.Pt(int(pointer.RootX), int(pointer.RootY))
	for i := range monitors {
		if pt.In(monitors[i].Bounds) {
			return &monitors[i]
		}
	}
	return nil
}
