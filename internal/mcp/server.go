package mcp

import (
	"context"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/layerd/internal/ipc"
	"github.com/1broseidon/layerd/internal/scene"
)

const (
	ServerName    = "layerd"
	ServerVersion = "0.1.0"

	defaultIdleTimeout = 10 * time.Second
)

// Daemon is the part of the IPC client the tools use. *ipc.Client
// satisfies it.
type Daemon interface {
	GetStatus() (*ipc.StatusData, error)
	GetTree() (*scene.NodeInfo, error)
	Redraw() error
}

var _ Daemon = (*ipc.Client)(nil)

// Server is the MCP server exposing compositor inspection tools.
type Server struct {
	mcpServer *mcpsdk.Server
	daemon    Daemon

	// pollInterval is how often wait_for_idle re-reads the tree.
	pollInterval time.Duration
}

// NewServer creates a new MCP server talking to a running daemon.
func NewServer(daemon Daemon) *Server {
	s := &Server{
		daemon:       daemon,
		pollInterval: 100 * time.Millisecond,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_status",
		Description: "Report the compositor's status: window and layer counts, connected sessions, focused window, update cycles, screen bounds and the active backend and decorator.",
	}, s.handleGetStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_windows",
		Description: "List managed windows with their frames, content rectangles, titles and border state. Hidden windows are left out unless include_hidden is set.",
	}, s.handleListWindows)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_tree",
		Description: "Return the layer tree. Pass node to start below the root and max_depth to prune. Visible, invalid and active rectangles are only included when include_regions is set.",
	}, s.handleGetTree)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "layer_at",
		Description: "Find the front-most layer whose visible region contains a screen point, with the path of layers leading to it.",
	}, s.handleLayerAt)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "audit_regions",
		Description: "Check that visible regions tile the screen without overlap. Reports painted, overlapping, uncovered and pending area and the layers with a repaint in flight.",
	}, s.handleAuditRegions)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "redraw",
		Description: "Invalidate the whole screen so every layer repaints.",
	}, s.handleRedraw)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "wait_for_idle",
		Description: "Poll the layer tree until no invalid area remains and no layer is repainting, or until timeout seconds pass (default 10).",
	}, s.handleWaitForIdle)
}
