package tui

import (
	"errors"
	"image"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/1broseidon/layerd/internal/ipc"
	"github.com/1broseidon/layerd/internal/scene"
)

type fakeDaemon struct {
	status  ipc.StatusData
	tree    *scene.NodeInfo
	err     error
	redraws int
}

func (f *fakeDaemon) GetStatus() (*ipc.StatusData, error) {
	if f.err != nil {
		return nil, f.err
	}
	st := f.status
	return &st, nil
}

func (f *fakeDaemon) GetTree() (*scene.NodeInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tree, nil
}

func (f *fakeDaemon) Redraw() error {
	f.redraws++
	return f.err
}

// sampleTree is a 100x100 root holding one window whose border covers
// (10,10)-(50,50) and whose content covers (20,20)-(40,40).
func sampleTree() *scene.NodeInfo {
	return &scene.NodeInfo{
		ID:      1,
		Name:    "root",
		Frame:   image.Rect(0, 0, 100, 100),
		Phase:   "idle",
		Visible: []image.Rectangle{image.Rect(0, 0, 100, 100)},
		Children: []scene.NodeInfo{{
			ID:      2,
			Name:    "border:term",
			Frame:   image.Rect(10, 10, 50, 50),
			Phase:   "idle",
			Visible: []image.Rectangle{image.Rect(10, 10, 50, 50)},
			Children: []scene.NodeInfo{{
				ID:      3,
				Name:    "content:term",
				Frame:   image.Rect(10, 10, 30, 30),
				Phase:   "idle",
				Visible: []image.Rectangle{image.Rect(20, 20, 40, 40)},
			}},
		}},
	}
}

func TestRenderRegionMap(t *testing.T) {
	tree := sampleTree()
	tree.Invalid = []image.Rectangle{image.Rect(90, 90, 100, 100)}

	lines := renderRegionMap(tree, image.Rect(0, 0, 100, 100), 10, 10)
	if len(lines) != 10 {
		t.Fatalf("got %d lines, want 10", len(lines))
	}
	tests := []struct {
		row  int
		want string
	}{
		{0, "··········"},
		{1, "·aaaa·····"},
		{2, "·aAAa·····"},
		{9, "·········#"},
	}
	for _, tt := range tests {
		if lines[tt.row] != tt.want {
			t.Fatalf("row %d = %q, want %q", tt.row, lines[tt.row], tt.want)
		}
	}
}

func TestRenderRegionMapEmpty(t *testing.T) {
	lines := renderRegionMap(nil, image.Rectangle{}, 4, 2)
	if len(lines) != 2 || lines[0] != "    " {
		t.Fatalf("empty map = %q", lines)
	}
	if got := renderRegionMap(sampleTree(), image.Rect(0, 0, 100, 100), 0, 5); got != nil {
		t.Fatalf("zero width map = %q, want nil", got)
	}
}

func TestLegend(t *testing.T) {
	tree := sampleTree()
	tree.Children = append(tree.Children, scene.NodeInfo{ID: 4, Name: "border:log", Hidden: true, Phase: "idle"})
	tree.Children[0].Phase = "repainting"

	got := legend(tree)
	want := []string{
		"a  border:term #2 (repainting)",
		"b  border:log #4 (hidden)",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("legend = %q, want %q", got, want)
	}
}

func TestLayerLines(t *testing.T) {
	tree := sampleTree()
	tree.Flags = "draw-on-children"
	lines := layerLines(tree, 0, nil)
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if !strings.HasPrefix(lines[2], "    content:term #3") {
		t.Fatalf("content line = %q", lines[2])
	}
	if !strings.Contains(lines[0], "[draw-on-children]") {
		t.Fatalf("root line missing flags: %q", lines[0])
	}
}

func TestParseCoord(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"5", 5, false},
		{" 0 ", 0, false},
		{"100", 0, true},
		{"-1", 0, true},
		{"x", 0, true},
	}
	for _, tt := range tests {
		got, err := parseCoord(tt.in, 0, 100)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("parseCoord(%q) = %d, %v", tt.in, got, err)
		}
	}
}

func TestPickDescribe(t *testing.T) {
	p := Pick{point: image.Pt(25, 25), set: true}
	lines := p.describe(sampleTree())
	if len(lines) != 4 || !strings.Contains(lines[3], "content:term #3") {
		t.Fatalf("describe = %q", lines)
	}

	p.point = image.Pt(500, 500)
	if lines := p.describe(sampleTree()); len(lines) != 1 || !strings.HasSuffix(lines[0], "uncovered") {
		t.Fatalf("describe off screen = %q", lines)
	}

	if lines := (Pick{}).describe(sampleTree()); lines != nil {
		t.Fatalf("unset pick described %q", lines)
	}
}

func TestModelFetchesSnapshot(t *testing.T) {
	d := &fakeDaemon{
		status: ipc.StatusData{Windows: 1, Screen: ipc.Rect{Width: 100, Height: 100}},
		tree:   sampleTree(),
	}
	m := newModel(d, time.Second)

	msg := m.Init()()
	snap, ok := msg.(snapshotMsg)
	if !ok || snap.err != nil {
		t.Fatalf("Init produced %#v", msg)
	}

	next, cmd := m.Update(snap)
	got := next.(model)
	if got.tree == nil || got.status.Windows != 1 {
		t.Fatalf("snapshot not stored: %+v", got.status)
	}
	if cmd == nil {
		t.Fatalf("expected a follow-up refresh")
	}
	if got.screen() != image.Rect(0, 0, 100, 100) {
		t.Fatalf("screen = %v", got.screen())
	}
}

func TestModelKeepsLastSnapshotOnError(t *testing.T) {
	m := newModel(&fakeDaemon{}, time.Second)
	next, _ := m.Update(snapshotMsg{status: &ipc.StatusData{Windows: 2}, tree: sampleTree()})
	next, _ = next.(model).Update(snapshotMsg{err: errors.New("connection refused")})
	got := next.(model)
	if got.lastErr == nil || got.status == nil || got.status.Windows != 2 {
		t.Fatalf("model after error = %+v", got)
	}
}

func TestModelTabKeys(t *testing.T) {
	m := newModel(&fakeDaemon{}, time.Second)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if got := next.(model).activeTab; got != TabWindows {
		t.Fatalf("tab -> %v, want %v", got, TabWindows)
	}
	next, _ = next.(model).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'3'}})
	if got := next.(model).activeTab; got != TabLayers {
		t.Fatalf("3 -> %v, want %v", got, TabLayers)
	}
	next, _ = next.(model).Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	if got := next.(model).activeTab; got != TabWindows {
		t.Fatalf("shift+tab -> %v, want %v", got, TabWindows)
	}
}

func TestModelRedraw(t *testing.T) {
	d := &fakeDaemon{}
	m := newModel(d, time.Second)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if cmd == nil {
		t.Fatalf("r produced no command")
	}
	msg := cmd()
	if rm, ok := msg.(redrawMsg); !ok || rm.err != nil || d.redraws != 1 {
		t.Fatalf("redraw = %#v (calls %d)", msg, d.redraws)
	}
	next, _ := m.Update(msg)
	if got := next.(model).message; got != "redraw requested" {
		t.Fatalf("message = %q", got)
	}
}

func TestViewRendersAfterResize(t *testing.T) {
	d := &fakeDaemon{
		status: ipc.StatusData{Backend: "software", Screen: ipc.Rect{Width: 100, Height: 100}},
		tree:   sampleTree(),
	}
	m := newModel(d, time.Second)
	if m.View() != "" {
		t.Fatalf("view before resize should be empty")
	}
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	next, _ = next.(model).Update(m.Init()())
	view := next.(model).View()
	if !strings.Contains(view, "border:term #2") || !strings.Contains(view, "software") {
		t.Fatalf("view missing legend or backend:\n%s", view)
	}
}
