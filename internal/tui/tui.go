package tui

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/1broseidon/layerd/internal/ipc"
	"github.com/1broseidon/layerd/internal/scene"
)

// DefaultInterval is how often the inspector re-reads the daemon.
const DefaultInterval = 500 * time.Millisecond

// Daemon is the part of the IPC client the inspector reads from.
type Daemon interface {
	GetStatus() (*ipc.StatusData, error)
	GetTree() (*scene.NodeInfo, error)
	Redraw() error
}

// Options configure Run.
type Options struct {
	Interval time.Duration
}

// Run starts the inspector and blocks until the user quits.
func Run(daemon Daemon, opts Options) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("top requires an interactive terminal (stdin/stdout must be TTYs)")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	p := tea.NewProgram(newModel(daemon, interval), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
