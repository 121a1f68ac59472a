package config

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.ScreenRect() != image.Rect(0, 0, 1024, 768) {
		t.Fatalf("unexpected default screen %v", cfg.ScreenRect())
	}
	if cfg.ReconcileInterval() != 5*time.Second {
		t.Fatalf("unexpected reconcile interval %v", cfg.ReconcileInterval())
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	res, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.Backend != BackendX11 || len(res.Files) != 0 {
		t.Fatalf("expected defaults, got backend %q files %v", res.Config.Backend, res.Files)
	}
}

func TestLoadFromPath_EmptyFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "# empty\n")
	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.Decorator != DefaultConfig().Decorator {
		t.Fatalf("expected default decorator, got %q", res.Config.Decorator)
	}
}

func TestLoadFromPath_Overrides(t *testing.T) {
	data := strings.Join([]string{
		"backend: Software",
		"screen:",
		"  width: 640",
		"background_color: \"#102030\"",
		"full_update_on_resize: true",
		"log_level: debug",
		"hotkeys:",
		"  close: \"\"",
		"default_window:",
		"  min_size: {width: 50}",
		"  alignment:",
		"    size_x: 8",
		"    pos_offset_y: 2",
		"",
	}, "\n")
	path := writeConfig(t, t.TempDir(), "config.yaml", data)

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := res.Config
	if cfg.Backend != BackendSoftware {
		t.Fatalf("expected backend software, got %q", cfg.Backend)
	}
	if cfg.ScreenRect() != image.Rect(0, 0, 640, 768) {
		t.Fatalf("expected partial screen override, got %v", cfg.ScreenRect())
	}
	bg, err := cfg.Background()
	if err != nil || bg != (color.RGBA{R: 0x10, G: 0x20, B: 0x30, A: 0xff}) {
		t.Fatalf("background = %v, %v", bg, err)
	}
	if !cfg.FullUpdateOnResize || cfg.SlogLevel().String() != "DEBUG" {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.Hotkeys.Close != "" || cfg.Hotkeys.Redraw == "" {
		t.Fatalf("hotkeys = %+v", cfg.Hotkeys)
	}
	lim := cfg.WindowLimits()
	if lim.Min != image.Pt(50, 1) {
		t.Fatalf("min size = %v", lim.Min)
	}
	al := cfg.WindowAlignment()
	if al.SizeX != 8 || al.PosOffsetY != 2 || al.PosX != 0 {
		t.Fatalf("alignment = %+v", al)
	}
}

func TestLoadFromPath_StrictUnknownKeyErrors(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "unknown_key: 1\n")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "unknown_key") && !strings.Contains(err.Error(), "field") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Fatalf("expected error to include file path, got %v", err)
	}
}

func TestLoadFromPath_ValidationErrorHasSource(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "log_level: info\nbackend: wayland\n")

	_, err := LoadFromPath(path)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Path != "backend" || verr.Source.Line != 2 {
		t.Fatalf("unexpected error context: path=%q source=%+v", verr.Path, verr.Source)
	}
	if !strings.Contains(err.Error(), ":2:") {
		t.Fatalf("expected line number in %q", err.Error())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"backend", func(c *Config) { c.Backend = "fb" }, "backend"},
		{"zero screen", func(c *Config) { c.Screen.Height = 0 }, "screen"},
		{"huge screen", func(c *Config) { c.Screen.Width = 1 << 20 }, "screen"},
		{"color", func(c *Config) { c.BackgroundColor = "blue" }, "background_color"},
		{"decorator", func(c *Config) { c.Decorator = " " }, "decorator"},
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "log_level"},
		{"interval", func(c *Config) { c.ReconcileIntervalSeconds = 0 }, "reconcile_interval_seconds"},
		{"stale", func(c *Config) { c.StaleUpdateSeconds = -1 }, "stale_update_seconds"},
		{"queue", func(c *Config) { c.RenderQueueDepth = 0 }, "render_queue_depth"},
		{"default size", func(c *Config) { c.DefaultWindow.Width = 0 }, "default_window"},
		{"min size", func(c *Config) { c.DefaultWindow.MinSize.Width = 0 }, "default_window.min_size"},
		{"max below min", func(c *Config) { c.DefaultWindow.MaxSize = Size{Width: 10, Height: 10}; c.DefaultWindow.MinSize = Size{Width: 20, Height: 1} }, "default_window.max_size"},
		{"alignment", func(c *Config) { c.DefaultWindow.Alignment.PosY = -4 }, "default_window.alignment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			var verr *ValidationError
			if err := cfg.Validate(); !errors.As(err, &verr) || verr.Path != tt.path {
				t.Fatalf("Validate() = %v, want error at %q", err, tt.path)
			}
		})
	}
}

func TestValidationWarnings_DuplicateHotkeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Hotkeys.Close = cfg.Hotkeys.Redraw
	warnings := cfg.validationWarnings()
	if len(warnings) != 1 || !strings.Contains(warnings[0], "hotkeys.close and hotkeys.redraw") {
		t.Fatalf("warnings = %v", warnings)
	}
}

func TestLoadFromPath_IncludeDirectoryOrderAndMainOverrides(t *testing.T) {
	dir := t.TempDir()

	// config.d loaded first, in sorted order.
	configD := filepath.Join(dir, "config.d")
	if err := os.MkdirAll(configD, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeConfig(t, configD, "10-base.yaml", "reconcile_interval_seconds: 5\nlog_level: warning\n")
	writeConfig(t, configD, "20-override.yaml", "reconcile_interval_seconds: 6\n")

	// Main file overrides includes.
	main := strings.Join([]string{
		"include:",
		"  - config.d",
		"reconcile_interval_seconds: 7",
		"",
	}, "\n")
	path := writeConfig(t, dir, "config.yaml", main)

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.ReconcileIntervalSeconds != 7 {
		t.Fatalf("expected reconcile_interval_seconds to be 7, got %d", res.Config.ReconcileIntervalSeconds)
	}
	if res.Config.LogLevel != "warning" {
		t.Fatalf("expected log_level from include, got %q", res.Config.LogLevel)
	}
	if len(res.Files) != 3 {
		t.Fatalf("expected 3 loaded files, got %v", res.Files)
	}
}

func TestLoadFromPath_IncludeMissingPathHasContext(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "include:\n  - missing.yaml\n")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "include") || !strings.Contains(err.Error(), "missing.yaml") {
		t.Fatalf("expected include error, got %v", err)
	}
	if !strings.Contains(err.Error(), path+":") {
		t.Fatalf("expected error to include file:line:col prefix, got %v", err)
	}
}

func TestLoadFromPath_IncludeCycleDetection(t *testing.T) {
	dir := t.TempDir()
	a := writeConfig(t, dir, "a.yaml", "include: b.yaml\n")
	writeConfig(t, dir, "b.yaml", "include: a.yaml\n")

	_, err := LoadFromPath(a)
	if err == nil {
		t.Fatalf("expected cycle error")
	}
	if !strings.Contains(err.Error(), "include cycle") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestLoadFromPath_SharedIncludeReadOnce(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "common.yaml", "log_level: debug\n")
	writeConfig(t, dir, "a.yaml", "include: common.yaml\n")
	b := writeConfig(t, dir, "b.yaml", "include: common.yaml\nreconcile_interval_seconds: 9\n")
	path := writeConfig(t, dir, "config.yaml", "include:\n  - a.yaml\n  - b.yaml\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(res.Files) != 4 {
		t.Fatalf("expected 4 loaded files, got %v", res.Files)
	}
	if res.Config.LogLevel != "debug" || res.Config.ReconcileIntervalSeconds != 9 {
		t.Fatalf("got log_level %q reconcile %d", res.Config.LogLevel, res.Config.ReconcileIntervalSeconds)
	}
	src := res.Sources["reconcile_interval_seconds"]
	if want, _ := canonicalPath(b); src.File != want || src.Line != 2 {
		t.Fatalf("reconcile_interval_seconds source = %+v, want %s:2", src, want)
	}
}

func TestExplain(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "default_window:\n  alignment:\n    size_x: 4\n")
	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	val, src, err := Explain(res, "default_window.alignment.size_x")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if val != 4 || src.Kind != SourceFile || src.Line != 3 {
		t.Fatalf("got %v from %+v", val, src)
	}

	val, src, err = Explain(res, "screen.width")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if val != 1024 || src.Kind != SourceDefault {
		t.Fatalf("got %v from %+v", val, src)
	}

	if _, _, err := Explain(res, "screen.depth"); err == nil {
		t.Fatalf("expected unknown path error")
	}
}

func TestDefaultConfigPath_EnvOverride(t *testing.T) {
	t.Setenv(EnvConfigPath, "/etc/layerd.yaml")
	p, err := DefaultConfigPath()
	if err != nil || p != "/etc/layerd.yaml" {
		t.Fatalf("DefaultConfigPath() = %q, %v", p, err)
	}
}

func TestSaveToRoundTrips(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendSoftware
	cfg.DefaultWindow.Alignment.SizeY = 16
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.Backend != BackendSoftware || res.Config.DefaultWindow.Alignment.SizeY != 16 {
		t.Fatalf("round trip lost values: %+v", res.Config)
	}
}
