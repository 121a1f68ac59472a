package mcp

import (
	"context"
	"fmt"
	"image"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/layerd/internal/ipc"
	"github.com/1broseidon/layerd/internal/scene"
)

func (s *Server) handleGetStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ StatusInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
	status, err := s.daemon.GetStatus()
	if err != nil {
		return nil, StatusOutput{}, fmt.Errorf("failed to get status: %w", err)
	}
	status.List = nil
	return nil, StatusOutput{Status: *status}, nil
}

func (s *Server) handleListWindows(_ context.Context, _ *mcpsdk.CallToolRequest, args ListWindowsInput) (*mcpsdk.CallToolResult, ListWindowsOutput, error) {
	status, err := s.daemon.GetStatus()
	if err != nil {
		return nil, ListWindowsOutput{}, fmt.Errorf("failed to list windows: %w", err)
	}
	windows := make([]ipc.WindowData, 0, len(status.List))
	for _, w := range status.List {
		if w.Hidden && !args.IncludeHidden {
			continue
		}
		windows = append(windows, w)
	}
	return nil, ListWindowsOutput{Windows: windows, Focused: status.Focused}, nil
}

func (s *Server) handleGetTree(_ context.Context, _ *mcpsdk.CallToolRequest, args GetTreeInput) (*mcpsdk.CallToolResult, GetTreeOutput, error) {
	if args.MaxDepth < 0 {
		return nil, GetTreeOutput{}, fmt.Errorf("max_depth must not be negative")
	}
	tree, err := s.daemon.GetTree()
	if err != nil {
		return nil, GetTreeOutput{}, fmt.Errorf("failed to get tree: %w", err)
	}
	start := tree
	if args.Node != 0 {
		var ok bool
		if start, ok = tree.Find(args.Node); !ok {
			return nil, GetTreeOutput{}, fmt.Errorf("layer %d not found", args.Node)
		}
	}
	var out GetTreeOutput
	flatten(start, 0, 0, args, &out.Layers)
	return nil, out, nil
}

// flatten appends n and its descendants in paint order, stopping below
// args.MaxDepth (0 keeps all) and dropping regions unless asked for.
func flatten(n *scene.NodeInfo, parent uint64, depth int, args GetTreeInput, acc *[]TreeNode) {
	node := TreeNode{
		ID:     n.ID,
		Parent: parent,
		Depth:  depth,
		Name:   n.Name,
		Frame:  n.Frame,
		Flags:  n.Flags,
		Hidden: n.Hidden,
		Phase:  n.Phase,
	}
	if args.IncludeRegions {
		node.Visible, node.Invalid, node.Active = n.Visible, n.Invalid, n.Active
	}
	*acc = append(*acc, node)
	if args.MaxDepth > 0 && depth >= args.MaxDepth {
		return
	}
	for i := range n.Children {
		flatten(&n.Children[i], n.ID, depth+1, args, acc)
	}
}

func refOf(n *scene.NodeInfo) LayerRef {
	return LayerRef{ID: n.ID, Name: n.Name, Frame: n.Frame, Phase: n.Phase}
}

func (s *Server) handleLayerAt(_ context.Context, _ *mcpsdk.CallToolRequest, args LayerAtInput) (*mcpsdk.CallToolResult, LayerAtOutput, error) {
	tree, err := s.daemon.GetTree()
	if err != nil {
		return nil, LayerAtOutput{}, fmt.Errorf("failed to get tree: %w", err)
	}
	path := tree.LayerAt(image.Pt(args.X, args.Y))
	if len(path) == 0 {
		return nil, LayerAtOutput{}, nil
	}
	out := LayerAtOutput{Hit: true, Path: make([]LayerRef, 0, len(path))}
	for _, n := range path {
		out.Path = append(out.Path, refOf(n))
	}
	return nil, out, nil
}

func repainting(n *scene.NodeInfo, acc []LayerRef) []LayerRef {
	if n.Phase == scene.Repainting.String() {
		acc = append(acc, refOf(n))
	}
	for i := range n.Children {
		acc = repainting(&n.Children[i], acc)
	}
	return acc
}

func (s *Server) handleAuditRegions(_ context.Context, _ *mcpsdk.CallToolRequest, _ AuditRegionsInput) (*mcpsdk.CallToolResult, AuditRegionsOutput, error) {
	status, err := s.daemon.GetStatus()
	if err != nil {
		return nil, AuditRegionsOutput{}, fmt.Errorf("failed to get status: %w", err)
	}
	tree, err := s.daemon.GetTree()
	if err != nil {
		return nil, AuditRegionsOutput{}, fmt.Errorf("failed to get tree: %w", err)
	}
	out := AuditRegionsOutput{
		ScreenArea: status.Screen.Width * status.Screen.Height,
		Coverage:   tree.Coverage(),
		Repainting: repainting(tree, nil),
	}
	if out.Coverage.Painted < out.ScreenArea {
		out.Uncovered = out.ScreenArea - out.Coverage.Painted
	}
	out.OK = out.Coverage.Overdraw == 0 && out.Uncovered == 0
	return nil, out, nil
}

func (s *Server) handleRedraw(_ context.Context, _ *mcpsdk.CallToolRequest, _ RedrawInput) (*mcpsdk.CallToolResult, RedrawOutput, error) {
	if err := s.daemon.Redraw(); err != nil {
		return nil, RedrawOutput{}, fmt.Errorf("failed to request redraw: %w", err)
	}
	return nil, RedrawOutput{Requested: true}, nil
}

// busy reports the area still waiting for paint in n's subtree.
func busy(n *scene.NodeInfo) (pending int, active bool) {
	pending = n.Coverage().Pending
	return pending, pending > 0 || len(repainting(n, nil)) > 0
}

func (s *Server) handleWaitForIdle(ctx context.Context, _ *mcpsdk.CallToolRequest, args WaitForIdleInput) (*mcpsdk.CallToolResult, WaitForIdleOutput, error) {
	if args.Timeout < 0 {
		return nil, WaitForIdleOutput{}, fmt.Errorf("timeout must not be negative")
	}
	timeout := defaultIdleTimeout
	if args.Timeout > 0 {
		timeout = time.Duration(args.Timeout) * time.Second
	}
	start := time.Now()

	var out WaitForIdleOutput
	check := func() (bool, error) {
		out.Polls++
		tree, err := s.daemon.GetTree()
		if err != nil {
			return false, fmt.Errorf("failed to get tree: %w", err)
		}
		pending, active := busy(tree)
		out.Pending = pending
		return !active, nil
	}
	finish := func(idle bool) (*mcpsdk.CallToolResult, WaitForIdleOutput, error) {
		out.Idle = idle
		out.Elapsed = time.Since(start).Round(time.Millisecond).String()
		return nil, out, nil
	}

	if idle, err := check(); err != nil {
		return nil, WaitForIdleOutput{}, err
	} else if idle {
		return finish(true)
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ticker.C:
			if idle, err := check(); err != nil {
				return nil, WaitForIdleOutput{}, err
			} else if idle {
				return finish(true)
			}
		case <-timer.C:
			return finish(false)
		case <-ctx.Done():
			return nil, WaitForIdleOutput{}, ctx.Err()
		}
	}
}
