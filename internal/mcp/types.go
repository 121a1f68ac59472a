package mcp

import (
	"image"

	"github.com/1broseidon/layerd/internal/ipc"
	"github.com/1broseidon/layerd/internal/scene"
)

// StatusInput is the input for the get_status tool.
type StatusInput struct{}

// StatusOutput is the output for the get_status tool.
type StatusOutput struct {
	Status ipc.StatusData `json:"status"`
}

// ListWindowsInput is the input for the list_windows tool.
type ListWindowsInput struct {
	IncludeHidden bool `json:"include_hidden,omitempty" jsonschema:"Include hidden windows (default: false)"`
}

// ListWindowsOutput is the output for the list_windows tool.
type ListWindowsOutput struct {
	Windows []ipc.WindowData `json:"windows"`
	Focused uint64           `json:"focused,omitempty"`
}

// GetTreeInput is the input for the get_tree tool.
type GetTreeInput struct {
	MaxDepth       int    `json:"max_depth,omitempty" jsonschema:"Maximum depth below the starting node (default: unlimited)"`
	IncludeRegions bool   `json:"include_regions,omitempty" jsonschema:"Include visible, invalid and active rectangles (default: false)"`
	Node           uint64 `json:"node,omitempty" jsonschema:"Layer ID to start from (default: the root)"`
}

// TreeNode is one layer of a flattened tree, listed back to front.
type TreeNode struct {
	ID      uint64            `json:"id"`
	Parent  uint64            `json:"parent,omitempty"`
	Depth   int               `json:"depth"`
	Name    string            `json:"name"`
	Frame   image.Rectangle   `json:"frame"`
	Flags   string            `json:"flags,omitempty"`
	Hidden  bool              `json:"hidden,omitempty"`
	Phase   string            `json:"phase"`
	Visible []image.Rectangle `json:"visible,omitempty"`
	Invalid []image.Rectangle `json:"invalid,omitempty"`
	Active  []image.Rectangle `json:"active,omitempty"`
}

// GetTreeOutput is the output for the get_tree tool.
type GetTreeOutput struct {
	Layers []TreeNode `json:"layers"`
}

// LayerAtInput is the input for the layer_at tool.
type LayerAtInput struct {
	X int `json:"x" jsonschema:"required,Screen X coordinate"`
	Y int `json:"y" jsonschema:"required,Screen Y coordinate"`
}

// LayerRef names one layer on a hit path.
type LayerRef struct {
	ID    uint64          `json:"id"`
	Name  string          `json:"name"`
	Frame image.Rectangle `json:"frame"`
	Phase string          `json:"phase"`
}

// LayerAtOutput is the output for the layer_at tool.
type LayerAtOutput struct {
	Hit  bool       `json:"hit"`
	Path []LayerRef `json:"path,omitempty"`
}

// AuditRegionsInput is the input for the audit_regions tool.
type AuditRegionsInput struct{}

// AuditRegionsOutput is the output for the audit_regions tool.
type AuditRegionsOutput struct {
	ScreenArea int            `json:"screen_area"`
	Coverage   scene.Coverage `json:"coverage"`
	Uncovered  int            `json:"uncovered"`
	Repainting []LayerRef     `json:"repainting,omitempty"`
	OK         bool           `json:"ok"`
}

// RedrawInput is the input for the redraw tool.
type RedrawInput struct{}

// RedrawOutput is the output for the redraw tool.
type RedrawOutput struct {
	Requested bool `json:"requested"`
}

// WaitForIdleInput is the input for the wait_for_idle tool.
type WaitForIdleInput struct {
	Timeout int `json:"timeout,omitempty" jsonschema:"Timeout in seconds (default: 10)"`
}

// WaitForIdleOutput is the output for the wait_for_idle tool.
type WaitForIdleOutput struct {
	Idle    bool   `json:"idle"`
	Polls   int    `json:"polls"`
	Elapsed string `json:"elapsed"`
	Pending int    `json:"pending_area"`
}
