package mcp

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/layerd/internal/ipc"
	"github.com/1broseidon/layerd/internal/scene"
)

type fakeDaemon struct {
	mu       sync.Mutex
	status   ipc.StatusData
	trees    []*scene.NodeInfo // returned in turn; the last one repeats
	calls    int
	redraws  int
	treeErr  error
	redrawFn func() error
}

func (f *fakeDaemon) GetStatus() (*ipc.StatusData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.status
	return &st, nil
}

func (f *fakeDaemon) GetTree() (*scene.NodeInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.treeErr != nil {
		return nil, f.treeErr
	}
	i := f.calls
	if i >= len(f.trees) {
		i = len(f.trees) - 1
	}
	f.calls++
	return f.trees[i], nil
}

func (f *fakeDaemon) Redraw() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.redraws++
	if f.redrawFn != nil {
		return f.redrawFn()
	}
	return nil
}

// sampleTree is a 100x100 root with one 40x40 child at (10,10). The root's
// visible region is the screen minus the child.
func sampleTree() *scene.NodeInfo {
	return &scene.NodeInfo{
		ID:    1,
		Name:  "root",
		Frame: image.Rect(0, 0, 100, 100),
		Phase: "idle",
		Visible: []image.Rectangle{
			image.Rect(0, 0, 100, 10),
			image.Rect(0, 10, 10, 50),
			image.Rect(50, 10, 100, 50),
			image.Rect(0, 50, 100, 100),
		},
		Children: []scene.NodeInfo{{
			ID:      2,
			Name:    "window",
			Frame:   image.Rect(10, 10, 50, 50),
			Phase:   "idle",
			Visible: []image.Rectangle{image.Rect(10, 10, 50, 50)},
			Children: []scene.NodeInfo{{
				ID:    3,
				Name:  "content",
				Frame: image.Rect(0, 0, 40, 40),
				Phase: "idle",
			}},
		}},
	}
}

func newTestServer(d *fakeDaemon) *Server {
	return &Server{daemon: d, pollInterval: time.Millisecond}
}

func TestListWindowsFiltersHidden(t *testing.T) {
	d := &fakeDaemon{status: ipc.StatusData{
		Focused: 7,
		List: []ipc.WindowData{
			{Window: 7, Title: "shown"},
			{Window: 8, Title: "hidden", Hidden: true},
		},
	}}
	s := newTestServer(d)

	_, out, err := s.handleListWindows(context.Background(), nil, ListWindowsInput{})
	if err != nil {
		t.Fatalf("list_windows: %v", err)
	}
	if len(out.Windows) != 1 || out.Windows[0].Window != 7 || out.Focused != 7 {
		t.Fatalf("list_windows = %+v, want only window 7 focused", out)
	}

	_, out, err = s.handleListWindows(context.Background(), nil, ListWindowsInput{IncludeHidden: true})
	if err != nil {
		t.Fatalf("list_windows: %v", err)
	}
	if len(out.Windows) != 2 {
		t.Fatalf("list_windows include_hidden returned %d windows, want 2", len(out.Windows))
	}
}

func TestGetStatusDropsWindowList(t *testing.T) {
	d := &fakeDaemon{status: ipc.StatusData{Windows: 1, List: []ipc.WindowData{{Window: 1}}}}
	_, out, err := newTestServer(d).handleGetStatus(context.Background(), nil, StatusInput{})
	if err != nil {
		t.Fatalf("get_status: %v", err)
	}
	if out.Status.Windows != 1 || out.Status.List != nil {
		t.Fatalf("get_status = %+v", out.Status)
	}
}

func TestGetTree(t *testing.T) {
	tests := []struct {
		name    string
		in      GetTreeInput
		wantIDs []uint64
		regions bool
	}{
		{"whole tree", GetTreeInput{}, []uint64{1, 2, 3}, false},
		{"depth one", GetTreeInput{MaxDepth: 1}, []uint64{1, 2}, false},
		{"from node", GetTreeInput{Node: 2}, []uint64{2, 3}, false},
		{"with regions", GetTreeInput{IncludeRegions: true}, []uint64{1, 2, 3}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeDaemon{trees: []*scene.NodeInfo{sampleTree()}})
			_, out, err := s.handleGetTree(context.Background(), nil, tt.in)
			if err != nil {
				t.Fatalf("get_tree: %v", err)
			}
			if len(out.Layers) != len(tt.wantIDs) {
				t.Fatalf("got %d layers, want %d", len(out.Layers), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if out.Layers[i].ID != id {
					t.Fatalf("layer %d = %d, want %d", i, out.Layers[i].ID, id)
				}
			}
			if got := len(out.Layers[0].Visible) > 0; got != tt.regions {
				t.Fatalf("regions present = %v, want %v", got, tt.regions)
			}
		})
	}
}

func TestGetTreeParentsAndDepth(t *testing.T) {
	s := newTestServer(&fakeDaemon{trees: []*scene.NodeInfo{sampleTree()}})
	_, out, err := s.handleGetTree(context.Background(), nil, GetTreeInput{})
	if err != nil {
		t.Fatalf("get_tree: %v", err)
	}
	content := out.Layers[2]
	if content.Parent != 2 || content.Depth != 2 {
		t.Fatalf("content layer = %+v, want parent 2 depth 2", content)
	}
}

func TestGetTreeUnknownNode(t *testing.T) {
	s := newTestServer(&fakeDaemon{trees: []*scene.NodeInfo{sampleTree()}})
	if _, _, err := s.handleGetTree(context.Background(), nil, GetTreeInput{Node: 99}); err == nil {
		t.Fatalf("expected error for unknown node")
	}
	if _, _, err := s.handleGetTree(context.Background(), nil, GetTreeInput{MaxDepth: -1}); err == nil {
		t.Fatalf("expected error for negative depth")
	}
}

func TestLayerAt(t *testing.T) {
	s := newTestServer(&fakeDaemon{trees: []*scene.NodeInfo{sampleTree()}})

	_, out, err := s.handleLayerAt(context.Background(), nil, LayerAtInput{X: 20, Y: 20})
	if err != nil {
		t.Fatalf("layer_at: %v", err)
	}
	if !out.Hit || len(out.Path) != 2 || out.Path[1].ID != 2 {
		t.Fatalf("layer_at(20,20) = %+v, want path root -> window", out)
	}

	_, out, err = s.handleLayerAt(context.Background(), nil, LayerAtInput{X: 5, Y: 5})
	if err != nil {
		t.Fatalf("layer_at: %v", err)
	}
	if !out.Hit || len(out.Path) != 1 || out.Path[0].ID != 1 {
		t.Fatalf("layer_at(5,5) = %+v, want root", out)
	}

	_, out, err = s.handleLayerAt(context.Background(), nil, LayerAtInput{X: 500, Y: 5})
	if err != nil {
		t.Fatalf("layer_at: %v", err)
	}
	if out.Hit {
		t.Fatalf("layer_at off screen hit %+v", out.Path)
	}
}

func TestAuditRegions(t *testing.T) {
	d := &fakeDaemon{
		status: ipc.StatusData{Screen: ipc.Rect{Width: 100, Height: 100}},
		trees:  []*scene.NodeInfo{sampleTree()},
	}
	_, out, err := newTestServer(d).handleAuditRegions(context.Background(), nil, AuditRegionsInput{})
	if err != nil {
		t.Fatalf("audit_regions: %v", err)
	}
	if !out.OK || out.Uncovered != 0 || out.Coverage.Overdraw != 0 || out.Coverage.Painted != 10000 {
		t.Fatalf("audit_regions = %+v, want clean tiling", out)
	}

	bad := sampleTree()
	bad.Visible = append(bad.Visible[:1], bad.Visible[2:]...)
	bad.Children[0].Visible = append(bad.Children[0].Visible, image.Rect(0, 0, 5, 5))
	bad.Children[0].Phase = "repainting"
	d.trees = []*scene.NodeInfo{bad}
	_, out, err = newTestServer(d).handleAuditRegions(context.Background(), nil, AuditRegionsInput{})
	if err != nil {
		t.Fatalf("audit_regions: %v", err)
	}
	if out.OK {
		t.Fatalf("audit_regions reported OK for a broken tree: %+v", out)
	}
	if out.Uncovered != 400 || out.Coverage.Overdraw != 25 {
		t.Fatalf("uncovered = %d overdraw = %d, want 400 and 25", out.Uncovered, out.Coverage.Overdraw)
	}
	if len(out.Repainting) != 1 || out.Repainting[0].ID != 2 {
		t.Fatalf("repainting = %+v, want window 2", out.Repainting)
	}
}

func TestRedraw(t *testing.T) {
	d := &fakeDaemon{}
	_, out, err := newTestServer(d).handleRedraw(context.Background(), nil, RedrawInput{})
	if err != nil || !out.Requested || d.redraws != 1 {
		t.Fatalf("redraw = %+v, %v (calls %d)", out, err, d.redraws)
	}

	d.redrawFn = func() error { return errors.New("daemon gone") }
	if _, _, err := newTestServer(d).handleRedraw(context.Background(), nil, RedrawInput{}); err == nil {
		t.Fatalf("expected redraw error")
	}
}

func TestWaitForIdle(t *testing.T) {
	busyTree := sampleTree()
	busyTree.Invalid = []image.Rectangle{image.Rect(0, 0, 10, 10)}
	d := &fakeDaemon{trees: []*scene.NodeInfo{busyTree, busyTree, sampleTree()}}

	_, out, err := newTestServer(d).handleWaitForIdle(context.Background(), nil, WaitForIdleInput{Timeout: 5})
	if err != nil {
		t.Fatalf("wait_for_idle: %v", err)
	}
	if !out.Idle || out.Polls != 3 || out.Pending != 0 {
		t.Fatalf("wait_for_idle = %+v, want idle after 3 polls", out)
	}
}

func TestWaitForIdleTimesOut(t *testing.T) {
	busyTree := sampleTree()
	busyTree.Children[0].Phase = "repainting"
	s := newTestServer(&fakeDaemon{trees: []*scene.NodeInfo{busyTree}})

	_, out, err := s.handleWaitForIdle(context.Background(), nil, WaitForIdleInput{Timeout: 1})
	if err != nil {
		t.Fatalf("wait_for_idle: %v", err)
	}
	if out.Idle || out.Polls < 2 {
		t.Fatalf("wait_for_idle = %+v, want timeout after several polls", out)
	}
}

func TestWaitForIdleErrors(t *testing.T) {
	s := newTestServer(&fakeDaemon{treeErr: errors.New("no daemon")})
	if _, _, err := s.handleWaitForIdle(context.Background(), nil, WaitForIdleInput{}); err == nil {
		t.Fatalf("expected error when the tree is unavailable")
	}
	if _, _, err := s.handleWaitForIdle(context.Background(), nil, WaitForIdleInput{Timeout: -1}); err == nil {
		t.Fatalf("expected error for negative timeout")
	}
}
