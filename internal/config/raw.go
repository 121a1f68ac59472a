package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// IncludeList supports either:
//
//	include: "/path/to/file.yaml"
//
// or:
//
//	include:
//	  - "/path/to/file.yaml"
//	  - "/path/to/dir"
type IncludeList []string

func (l *IncludeList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		// Not present.
		*l = nil
		return nil
	case yaml.ScalarNode:
		if value.Tag != "!!str" {
			return fmt.Errorf("include must be a string or list of strings")
		}
		*l = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
				return fmt.Errorf("include entries must be strings")
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("include must be a string or list of strings")
	}
}

type RawSize struct {
	Width  *int `yaml:"width"`
	Height *int `yaml:"height"`
}

type RawAlignment struct {
	SizeX       *int `yaml:"size_x"`
	SizeOffsetX *int `yaml:"size_offset_x"`
	SizeY       *int `yaml:"size_y"`
	SizeOffsetY *int `yaml:"size_offset_y"`
	PosX        *int `yaml:"pos_x"`
	PosOffsetX  *int `yaml:"pos_offset_x"`
	PosY        *int `yaml:"pos_y"`
	PosOffsetY  *int `yaml:"pos_offset_y"`
}

type RawHotkeys struct {
	Redraw     *string `yaml:"redraw"`
	Close      *string `yaml:"close"`
	CycleFocus *string `yaml:"cycle_focus"`
}

type RawWindowDefaults struct {
	Width     *int          `yaml:"width"`
	Height    *int          `yaml:"height"`
	MinSize   *RawSize      `yaml:"min_size"`
	MaxSize   *RawSize      `yaml:"max_size"`
	Alignment *RawAlignment `yaml:"alignment"`
}

// RawConfig is one file as written. Nil fields were not set and leave the
// value underneath untouched.
type RawConfig struct {
	Include                  IncludeList        `yaml:"include"`
	Display                  *string            `yaml:"display"`
	Backend                  *string            `yaml:"backend"`
	Screen                   *RawSize           `yaml:"screen"`
	BackgroundColor          *string            `yaml:"background_color"`
	Decorator                *string            `yaml:"decorator"`
	FullUpdateOnResize       *bool              `yaml:"full_update_on_resize"`
	LogLevel                 *string            `yaml:"log_level"`
	ReconcileIntervalSeconds *int               `yaml:"reconcile_interval_seconds"`
	StaleUpdateSeconds       *int               `yaml:"stale_update_seconds"`
	AuditInvariants          *bool              `yaml:"audit_invariants"`
	RenderQueueDepth         *int               `yaml:"render_queue_depth"`
	Hotkeys                  *RawHotkeys        `yaml:"hotkeys"`
	DefaultWindow            *RawWindowDefaults `yaml:"default_window"`
}

// merge overlays o onto r field by field.
func (r RawConfig) merge(o RawConfig) RawConfig {
	out := r
	out.Include = nil
	setPtr(&out.Display, o.Display)
	setPtr(&out.Backend, o.Backend)
	out.Screen = mergeSize(out.Screen, o.Screen)
	setPtr(&out.BackgroundColor, o.BackgroundColor)
	setPtr(&out.Decorator, o.Decorator)
	setPtr(&out.FullUpdateOnResize, o.FullUpdateOnResize)
	setPtr(&out.LogLevel, o.LogLevel)
	setPtr(&out.ReconcileIntervalSeconds, o.ReconcileIntervalSeconds)
	setPtr(&out.StaleUpdateSeconds, o.StaleUpdateSeconds)
	setPtr(&out.AuditInvariants, o.AuditInvariants)
	setPtr(&out.RenderQueueDepth, o.RenderQueueDepth)

	if o.Hotkeys != nil {
		h := RawHotkeys{}
		if out.Hotkeys != nil {
			h = *out.Hotkeys
		}
		setPtr(&h.Redraw, o.Hotkeys.Redraw)
		setPtr(&h.Close, o.Hotkeys.Close)
		setPtr(&h.CycleFocus, o.Hotkeys.CycleFocus)
		out.Hotkeys = &h
	}

	if o.DefaultWindow != nil {
		w := RawWindowDefaults{}
		if out.DefaultWindow != nil {
			w = *out.DefaultWindow
		}
		setPtr(&w.Width, o.DefaultWindow.Width)
		setPtr(&w.Height, o.DefaultWindow.Height)
		w.MinSize = mergeSize(w.MinSize, o.DefaultWindow.MinSize)
		w.MaxSize = mergeSize(w.MaxSize, o.DefaultWindow.MaxSize)
		if a := o.DefaultWindow.Alignment; a != nil {
			m := RawAlignment{}
			if w.Alignment != nil {
				m = *w.Alignment
			}
			setPtr(&m.SizeX, a.SizeX)
			setPtr(&m.SizeOffsetX, a.SizeOffsetX)
			setPtr(&m.SizeY, a.SizeY)
			setPtr(&m.SizeOffsetY, a.SizeOffsetY)
			setPtr(&m.PosX, a.PosX)
			setPtr(&m.PosOffsetX, a.PosOffsetX)
			setPtr(&m.PosY, a.PosY)
			setPtr(&m.PosOffsetY, a.PosOffsetY)
			w.Alignment = &m
		}
		out.DefaultWindow = &w
	}
	return out
}

func mergeSize(base, o *RawSize) *RawSize {
	if o == nil {
		return base
	}
	s := RawSize{}
	if base != nil {
		s = *base
	}
	setPtr(&s.Width, o.Width)
	setPtr(&s.Height, o.Height)
	return &s
}

func setPtr[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}
