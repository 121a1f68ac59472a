package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/1broseidon/layerd/internal/ipc"
	"github.com/1broseidon/layerd/internal/tui"
)

func runTop(args []string) int {
	fs := flag.NewFlagSet("top", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	interval := fs.Duration("interval", tui.DefaultInterval, "Refresh interval")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: layerd top [--interval 500ms]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show which layer owns each part of the screen, refreshed live.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Keys:")
		fmt.Fprintln(os.Stderr, "  tab, 1-3  Switch between region map, windows and layers")
		fmt.Fprintln(os.Stderr, "  p         List the layers under a screen point")
		fmt.Fprintln(os.Stderr, "  r         Ask the daemon to repaint everything")
		fmt.Fprintln(os.Stderr, "  q         Quit")
	}
	if code := parseNoArgs(fs, args); code >= 0 {
		return code
	}
	if *interval < 50*time.Millisecond {
		fmt.Fprintln(os.Stderr, "interval must be at least 50ms")
		return 2
	}

	if err := tui.Run(ipc.NewClient(), tui.Options{Interval: *interval}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
