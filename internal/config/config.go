package config

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/1broseidon/layerd/internal/decorator"
	"github.com/1broseidon/layerd/internal/paint"
	"github.com/1broseidon/layerd/internal/winborder"
	"gopkg.in/yaml.v3"
)

// Backend names.
const (
	BackendX11      = "x11"
	BackendSoftware = "software"
)

// Size is a width/height pair.
type Size struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Point converts s to an image point.
func (s Size) Point() image.Point { return image.Pt(s.Width, s.Height) }

// Alignment snaps window size and position to a grid; zero steps disable
// the axis.
type Alignment struct {
	SizeX       int `yaml:"size_x"`
	SizeOffsetX int `yaml:"size_offset_x"`
	SizeY       int `yaml:"size_y"`
	SizeOffsetY int `yaml:"size_offset_y"`
	PosX        int `yaml:"pos_x"`
	PosOffsetX  int `yaml:"pos_offset_x"`
	PosY        int `yaml:"pos_y"`
	PosOffsetY  int `yaml:"pos_offset_y"`
}

// Hotkeys are X11 key sequences in xgbutil keybind notation, e.g.
// "Mod4-Mod1-r". An empty sequence disables the binding.
type Hotkeys struct {
	Redraw     string `yaml:"redraw"`
	Close      string `yaml:"close"`
	CycleFocus string `yaml:"cycle_focus"`
}

// WindowDefaults apply to every window that does not ask otherwise.
type WindowDefaults struct {
	Width     int       `yaml:"width"`
	Height    int       `yaml:"height"`
	MinSize   Size      `yaml:"min_size"`
	MaxSize   Size      `yaml:"max_size"`
	Alignment Alignment `yaml:"alignment"`
}

// Config holds the application configuration.
type Config struct {
	Display                  string         `yaml:"display,omitempty"`
	Backend                  string         `yaml:"backend"`
	Screen                   Size           `yaml:"screen"`
	BackgroundColor          string         `yaml:"background_color"`
	Decorator                string         `yaml:"decorator"`
	FullUpdateOnResize       bool           `yaml:"full_update_on_resize"`
	LogLevel                 string         `yaml:"log_level"`
	ReconcileIntervalSeconds int            `yaml:"reconcile_interval_seconds"`
	StaleUpdateSeconds       int            `yaml:"stale_update_seconds"`
	AuditInvariants          bool           `yaml:"audit_invariants"`
	RenderQueueDepth         int            `yaml:"render_queue_depth"`
	Hotkeys                  Hotkeys        `yaml:"hotkeys"`
	DefaultWindow            WindowDefaults `yaml:"default_window"`
}

func DefaultConfig() *Config {
	return &Config{
		Backend:                  BackendX11,
		Screen:                   Size{Width: 1024, Height: 768},
		BackgroundColor:          "#336698",
		Decorator:                decorator.DefaultName,
		LogLevel:                 "info",
		ReconcileIntervalSeconds: 5,
		StaleUpdateSeconds:       10,
		RenderQueueDepth:         64,
		Hotkeys: Hotkeys{
			Redraw:     "Mod4-Mod1-r",
			Close:      "Mod4-Mod1-q",
			CycleFocus: "Mod4-Mod1-Tab",
		},
		DefaultWindow: WindowDefaults{
			Width:   480,
			Height:  320,
			MinSize: Size{Width: 1, Height: 1},
			MaxSize: Size{Width: winborder.MaxDimension, Height: winborder.MaxDimension},
		},
	}
}

// ScreenRect is the software backend's surface.
func (c *Config) ScreenRect() image.Rectangle {
	return image.Rectangle{Max: c.Screen.Point()}
}

// Background parses background_color.
func (c *Config) Background() (color.RGBA, error) {
	return paint.ParseColor(c.BackgroundColor)
}

// WindowLimits returns the default size limits for new windows.
func (c *Config) WindowLimits() winborder.Limits {
	return winborder.Limits{Min: c.DefaultWindow.MinSize.Point(), Max: c.DefaultWindow.MaxSize.Point()}
}

// WindowAlignment returns the default alignment for new windows.
func (c *Config) WindowAlignment() winborder.Alignment {
	a := c.DefaultWindow.Alignment
	return winborder.Alignment{
		SizeX: a.SizeX, SizeOffsetX: a.SizeOffsetX,
		PosX: a.PosX, PosOffsetX: a.PosOffsetX,
		SizeY: a.SizeY, SizeOffsetY: a.SizeOffsetY,
		PosY: a.PosY, PosOffsetY: a.PosOffsetY,
	}
}

// DefaultSize is the content size of windows created without a frame.
func (c *Config) DefaultSize() image.Point {
	return image.Pt(c.DefaultWindow.Width, c.DefaultWindow.Height)
}

// ReconcileInterval is how often the reconciler runs.
func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalSeconds) * time.Second
}

// StaleUpdateAge is how long a client may sit on a draw request before its
// repaint is force-completed. Zero disables the sweep.
func (c *Config) StaleUpdateAge() time.Duration {
	return time.Duration(c.StaleUpdateSeconds) * time.Second
}

// SlogLevel maps log_level onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Save writes the configuration to the standard location.
//
// Note: this marshals the effective config and will not preserve comments or
// include structure from the original YAML.
func (c *Config) Save() error {
	path, err := DefaultConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the configuration to path.
func (c *Config) SaveTo(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Marshal renders the effective config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Validate performs strict validation of the effective configuration.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendX11, BackendSoftware:
	default:
		return &ValidationError{Path: "backend", Err: fmt.Errorf("backend must be one of: x11, software")}
	}
	if c.Screen.Width <= 0 || c.Screen.Height <= 0 {
		return &ValidationError{Path: "screen", Err: fmt.Errorf("screen width and height must be > 0")}
	}
	if c.Screen.Width > winborder.MaxDimension || c.Screen.Height > winborder.MaxDimension {
		return &ValidationError{Path: "screen", Err: fmt.Errorf("screen dimensions must be <= %d", winborder.MaxDimension)}
	}
	if _, err := paint.ParseColor(c.BackgroundColor); err != nil {
		return &ValidationError{Path: "background_color", Err: err}
	}
	if strings.TrimSpace(c.Decorator) == "" {
		return &ValidationError{Path: "decorator", Err: fmt.Errorf("decorator is required")}
	}
	if c.LogLevel != "debug" && c.LogLevel != "info" && c.LogLevel != "warning" && c.LogLevel != "error" {
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warning, error")}
	}
	if c.ReconcileIntervalSeconds < 1 {
		return &ValidationError{Path: "reconcile_interval_seconds", Err: fmt.Errorf("reconcile_interval_seconds must be >= 1")}
	}
	if c.StaleUpdateSeconds < 0 {
		return &ValidationError{Path: "stale_update_seconds", Err: fmt.Errorf("stale_update_seconds must be >= 0")}
	}
	if c.RenderQueueDepth < 1 {
		return &ValidationError{Path: "render_queue_depth", Err: fmt.Errorf("render_queue_depth must be >= 1")}
	}

	w := c.DefaultWindow
	if w.Width <= 0 || w.Height <= 0 {
		return &ValidationError{Path: "default_window", Err: fmt.Errorf("default_window width and height must be > 0")}
	}
	if w.MinSize.Width < 1 || w.MinSize.Height < 1 {
		return &ValidationError{Path: "default_window.min_size", Err: fmt.Errorf("min_size values must be >= 1")}
	}
	if w.MaxSize.Width > winborder.MaxDimension || w.MaxSize.Height > winborder.MaxDimension {
		return &ValidationError{Path: "default_window.max_size", Err: fmt.Errorf("max_size values must be <= %d", winborder.MaxDimension)}
	}
	if w.MaxSize.Width < w.MinSize.Width || w.MaxSize.Height < w.MinSize.Height {
		return &ValidationError{Path: "default_window.max_size", Err: fmt.Errorf("max_size must not be smaller than min_size")}
	}
	a := w.Alignment
	if a.SizeX < 0 || a.SizeY < 0 || a.PosX < 0 || a.PosY < 0 {
		return &ValidationError{Path: "default_window.alignment", Err: fmt.Errorf("alignment steps must be >= 0")}
	}

	if warnings := c.validationWarnings(); len(warnings) > 0 {
		for _, w := range warnings {
			fmt.Fprintln(os.Stderr, "warning:", w)
		}
	}
	return nil
}

func (c *Config) validationWarnings() []string {
	if c == nil {
		return nil
	}

	var warnings []string

	if c.Backend == BackendSoftware && c.Display != "" {
		warnings = append(warnings, fmt.Sprintf("display %q is ignored by the software backend", c.Display))
	}
	seen := map[string]string{}
	for name, seq := range map[string]string{
		"hotkeys.redraw":      c.Hotkeys.Redraw,
		"hotkeys.close":       c.Hotkeys.Close,
		"hotkeys.cycle_focus": c.Hotkeys.CycleFocus,
	} {
		if seq == "" {
			continue
		}
		if other, ok := seen[seq]; ok {
			first, second := other, name
			if second < first {
				first, second = second, first
			}
			warnings = append(warnings, fmt.Sprintf("%s and %s are both bound to %q; only one will fire", first, second, seq))
			continue
		}
		seen[seq] = name
	}
	return warnings
}
