package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/layerd/internal/config"
	"github.com/1broseidon/layerd/internal/ipc"
	"github.com/1broseidon/layerd/internal/scene"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "tree":
		os.Exit(runTree(os.Args[2:]))
	case "redraw":
		os.Exit(runRedraw(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "top":
		os.Exit(runTop(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: layerd <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the compositor (foreground)")
	fmt.Fprintln(w, "  status              Show compositor status")
	fmt.Fprintln(w, "  tree                Print the layer tree")
	fmt.Fprintln(w, "  redraw              Repaint the whole screen")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "  config explain      Explain a config value")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  top                 Open the interactive region inspector")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'layerd <command> --help' for command-specific options.")
}

// parseNoArgs parses a flag set that takes no positional arguments. It
// returns -1 when the command should go ahead.
func parseNoArgs(fs *flag.FlagSet, args []string) int {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "%s takes no arguments\n", fs.Name())
		fs.Usage()
		return 2
	}
	return -1
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "Print status as JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: layerd status [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show compositor status via IPC.")
	}
	if code := parseNoArgs(fs, args); code >= 0 {
		return code
	}

	client := ipc.NewClient()
	status, err := client.GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		return printJSON(status)
	}
	printStatus(os.Stdout, status)
	return 0
}

func printStatus(w io.Writer, status *ipc.StatusData) {
	fmt.Fprintf(w, "daemon_running: %v\n", status.DaemonRunning)
	fmt.Fprintf(w, "backend:        %s\n", status.Backend)
	fmt.Fprintf(w, "decorator:      %s\n", status.Decorator)
	fmt.Fprintf(w, "screen:         %dx%d\n", status.Screen.Width, status.Screen.Height)
	fmt.Fprintf(w, "windows:        %d\n", status.Windows)
	fmt.Fprintf(w, "layers:         %d\n", status.Layers)
	fmt.Fprintf(w, "sessions:       %d\n", status.Sessions)
	if status.Focused != 0 {
		fmt.Fprintf(w, "focused:        %d\n", status.Focused)
	}
	fmt.Fprintf(w, "update_cycles:  %d\n", status.UpdateCycles)
	fmt.Fprintf(w, "uptime_seconds: %d\n", status.UptimeSeconds)
	for _, win := range status.List {
		f := win.Frame
		fmt.Fprintf(w, "  #%d %q %dx%d+%d+%d", win.Window, win.Title, f.Width, f.Height, f.X, f.Y)
		if win.Focused {
			fmt.Fprint(w, " focused")
		}
		if win.Hidden {
			fmt.Fprint(w, " hidden")
		}
		fmt.Fprintln(w)
	}
}

func runTree(args []string) int {
	fs := flag.NewFlagSet("tree", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "Print the snapshot as JSON")
	regions := fs.Bool("regions", false, "Include visible and invalid rectangles")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: layerd tree [--json] [--regions]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Print the compositor's layer tree, back to front.")
	}
	if code := parseNoArgs(fs, args); code >= 0 {
		return code
	}

	client := ipc.NewClient()
	tree, err := client.GetTree()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		return printJSON(tree)
	}
	printTree(os.Stdout, tree, 0, *regions)
	return 0
}

func printTree(w io.Writer, n *scene.NodeInfo, depth int, regions bool) {
	indent := strings.Repeat("  ", depth)
	f := n.Frame
	fmt.Fprintf(w, "%s%s #%d %dx%d+%d+%d %s", indent, n.Name, n.ID, f.Dx(), f.Dy(), f.Min.X, f.Min.Y, n.Phase)
	if n.Flags != "" {
		fmt.Fprintf(w, " [%s]", n.Flags)
	}
	if n.Hidden {
		fmt.Fprint(w, " hidden")
	}
	fmt.Fprintln(w)
	if regions {
		for _, r := range n.Visible {
			fmt.Fprintf(w, "%s  visible %v\n", indent, r)
		}
		for _, r := range n.Invalid {
			fmt.Fprintf(w, "%s  invalid %v\n", indent, r)
		}
		for _, r := range n.Active {
			fmt.Fprintf(w, "%s  active  %v\n", indent, r)
		}
	}
	for i := range n.Children {
		printTree(w, &n.Children[i], depth+1, regions)
	}
}

func runRedraw(args []string) int {
	fs := flag.NewFlagSet("redraw", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: layerd redraw")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Invalidate the whole screen so every layer repaints.")
	}
	if code := parseNoArgs(fs, args); code >= 0 {
		return code
	}

	if err := ipc.NewClient().Redraw(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func printJSON(v any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func loadConfigResult(path string) (*config.LoadResult, error) {
	if path == "" {
		return config.LoadWithSources()
	}
	return config.LoadFromPath(path)
}

func runConfig(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  layerd config validate [--path PATH]")
		fmt.Fprintln(os.Stderr, "  layerd config print [--path PATH] [--effective|--defaults]")
		fmt.Fprintln(os.Stderr, "  layerd config explain [--path PATH] <yaml.path>")
		return 2
	}

	switch args[0] {
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/layerd/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		if _, err := loadConfigResult(*path); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println("config: ok")
		return 0

	case "print":
		fs := flag.NewFlagSet("print", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/layerd/config.yaml)")
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		printEffective := fs.Bool("effective", false, "Print effective config (default)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		if *printDefaults {
			data, err := config.DefaultConfig().Marshal()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			fmt.Print(string(data))
			return 0
		}

		_ = printEffective // default
		res, err := loadConfigResult(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		for _, f := range res.Files {
			fmt.Printf("# loaded: %s\n", f)
		}
		data, err := res.Config.Marshal()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(string(data))
		return 0

	case "explain":
		fs := flag.NewFlagSet("explain", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/layerd/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "explain requires <yaml.path>")
			return 2
		}
		queryPath := fs.Arg(0)

		res, err := loadConfigResult(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		value, src, err := config.Explain(res, queryPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		out, err := yaml.Marshal(value)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		fmt.Printf("path: %s\n", queryPath)
		fmt.Printf("source: %s\n", formatSource(src))
		fmt.Printf("value:\n%s", string(out))
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		return 2
	}
}

func formatSource(src config.Source) string {
	switch src.Kind {
	case config.SourceFile:
		if src.File == "" {
			return "file"
		}
		if src.Line > 0 {
			return fmt.Sprintf("file:%s:%d:%d", src.File, src.Line, src.Column)
		}
		return "file:" + src.File
	case config.SourceDefault:
		if src.Name != "" {
			return "default:" + src.Name
		}
		return "default"
	default:
		return string(src.Kind)
	}
}
