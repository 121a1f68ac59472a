package config

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// BuildEffectiveConfig overlays raw onto DefaultConfig.
func BuildEffectiveConfig(raw RawConfig) (*Config, error) {
	cfg := DefaultConfig()

	if raw.Display != nil {
		cfg.Display = *raw.Display
	}
	if raw.Backend != nil {
		cfg.Backend = strings.ToLower(strings.TrimSpace(*raw.Backend))
	}
	applySize(&cfg.Screen, raw.Screen)
	if raw.BackgroundColor != nil {
		cfg.BackgroundColor = strings.TrimSpace(*raw.BackgroundColor)
	}
	if raw.Decorator != nil {
		cfg.Decorator = strings.TrimSpace(*raw.Decorator)
	}
	if raw.FullUpdateOnResize != nil {
		cfg.FullUpdateOnResize = *raw.FullUpdateOnResize
	}
	if raw.LogLevel != nil {
		cfg.LogLevel = *raw.LogLevel
	}
	if raw.ReconcileIntervalSeconds != nil {
		cfg.ReconcileIntervalSeconds = *raw.ReconcileIntervalSeconds
	}
	if raw.StaleUpdateSeconds != nil {
		cfg.StaleUpdateSeconds = *raw.StaleUpdateSeconds
	}
	if raw.AuditInvariants != nil {
		cfg.AuditInvariants = *raw.AuditInvariants
	}
	if raw.RenderQueueDepth != nil {
		cfg.RenderQueueDepth = *raw.RenderQueueDepth
	}

	if h := raw.Hotkeys; h != nil {
		if h.Redraw != nil {
			cfg.Hotkeys.Redraw = *h.Redraw
		}
		if h.Close != nil {
			cfg.Hotkeys.Close = *h.Close
		}
		if h.CycleFocus != nil {
			cfg.Hotkeys.CycleFocus = *h.CycleFocus
		}
	}

	if w := raw.DefaultWindow; w != nil {
		if w.Width != nil {
			cfg.DefaultWindow.Width = *w.Width
		}
		if w.Height != nil {
			cfg.DefaultWindow.Height = *w.Height
		}
		applySize(&cfg.DefaultWindow.MinSize, w.MinSize)
		applySize(&cfg.DefaultWindow.MaxSize, w.MaxSize)
		if a := w.Alignment; a != nil {
			out := &cfg.DefaultWindow.Alignment
			for _, f := range []struct {
				dst *int
				src *int
			}{
				{&out.SizeX, a.SizeX}, {&out.SizeOffsetX, a.SizeOffsetX},
				{&out.SizeY, a.SizeY}, {&out.SizeOffsetY, a.SizeOffsetY},
				{&out.PosX, a.PosX}, {&out.PosOffsetX, a.PosOffsetX},
				{&out.PosY, a.PosY}, {&out.PosOffsetY, a.PosOffsetY},
			} {
				if f.src != nil {
					*f.dst = *f.src
				}
			}
		}
	}

	return cfg, nil
}

func applySize(dst *Size, raw *RawSize) {
	if raw == nil {
		return
	}
	if raw.Width != nil {
		dst.Width = *raw.Width
	}
	if raw.Height != nil {
		dst.Height = *raw.Height
	}
}
