package config

import (
	"fmt"
	"strings"
)

// Explain returns the effective value at the given YAML-like path and its source.
//
// Supported paths include:
//
//	backend
//	screen.width
//	background_color
//	hotkeys.cycle_focus
//	default_window.min_size.width
//	default_window.alignment.size_x
func Explain(res *LoadResult, path string) (any, Source, error) {
	if res == nil || res.Config == nil {
		return nil, Source{}, fmt.Errorf("no config loaded")
	}
	if path == "" {
		return nil, Source{}, fmt.Errorf("path is empty")
	}

	value, err := lookupValue(res.Config, path)
	if err != nil {
		return nil, Source{}, err
	}

	// Exact-path file source wins.
	if src, ok := res.Sources[path]; ok {
		return value, src, nil
	}
	return value, Source{Kind: SourceDefault, Name: "defaults"}, nil
}

func lookupValue(cfg *Config, path string) (any, error) {
	parts := strings.Split(path, ".")
	unknown := fmt.Errorf("unknown path: %s", path)
	leaf := func(v any) (any, error) {
		if len(parts) != 1 {
			return nil, unknown
		}
		return v, nil
	}

	switch parts[0] {
	case "display":
		return leaf(cfg.Display)
	case "backend":
		return leaf(cfg.Backend)
	case "background_color":
		return leaf(cfg.BackgroundColor)
	case "decorator":
		return leaf(cfg.Decorator)
	case "full_update_on_resize":
		return leaf(cfg.FullUpdateOnResize)
	case "log_level":
		return leaf(cfg.LogLevel)
	case "reconcile_interval_seconds":
		return leaf(cfg.ReconcileIntervalSeconds)
	case "stale_update_seconds":
		return leaf(cfg.StaleUpdateSeconds)
	case "audit_invariants":
		return leaf(cfg.AuditInvariants)
	case "render_queue_depth":
		return leaf(cfg.RenderQueueDepth)
	case "screen":
		return lookupSize(cfg.Screen, parts[1:], unknown)
	case "hotkeys":
		if len(parts) == 1 {
			return cfg.Hotkeys, nil
		}
		if len(parts) != 2 {
			return nil, unknown
		}
		switch parts[1] {
		case "redraw":
			return cfg.Hotkeys.Redraw, nil
		case "close":
			return cfg.Hotkeys.Close, nil
		case "cycle_focus":
			return cfg.Hotkeys.CycleFocus, nil
		}
		return nil, unknown
	case "default_window":
		w := cfg.DefaultWindow
		if len(parts) == 1 {
			return w, nil
		}
		switch parts[1] {
		case "width":
			return leafAt(parts, 2, w.Width, unknown)
		case "height":
			return leafAt(parts, 2, w.Height, unknown)
		case "min_size":
			return lookupSize(w.MinSize, parts[2:], unknown)
		case "max_size":
			return lookupSize(w.MaxSize, parts[2:], unknown)
		case "alignment":
			return lookupAlignment(w.Alignment, parts[2:], unknown)
		}
		return nil, unknown
	}
	return nil, unknown
}

func leafAt(parts []string, n int, v any, unknown error) (any, error) {
	if len(parts) != n {
		return nil, unknown
	}
	return v, nil
}

func lookupSize(s Size, rest []string, unknown error) (any, error) {
	switch {
	case len(rest) == 0:
		return s, nil
	case len(rest) > 1:
		return nil, unknown
	case rest[0] == "width":
		return s.Width, nil
	case rest[0] == "height":
		return s.Height, nil
	}
	return nil, unknown
}

func lookupAlignment(a Alignment, rest []string, unknown error) (any, error) {
	if len(rest) == 0 {
		return a, nil
	}
	if len(rest) > 1 {
		return nil, unknown
	}
	fields := map[string]int{
		"size_x":        a.SizeX,
		"size_offset_x": a.SizeOffsetX,
		"size_y":        a.SizeY,
		"size_offset_y": a.SizeOffsetY,
		"pos_x":         a.PosX,
		"pos_offset_x":  a.PosOffsetX,
		"pos_y":         a.PosY,
		"pos_offset_y":  a.PosOffsetY,
	}
	if v, ok := fields[rest[0]]; ok {
		return v, nil
	}
	return nil, unknown
}
