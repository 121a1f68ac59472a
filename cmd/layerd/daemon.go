package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/1broseidon/layerd/internal/compositor"
	"github.com/1broseidon/layerd/internal/config"
	"github.com/1broseidon/layerd/internal/daemon"
	"github.com/1broseidon/layerd/internal/decorator"
	"github.com/1broseidon/layerd/internal/hotkeys"
	"github.com/1broseidon/layerd/internal/ipc"
	"github.com/1broseidon/layerd/internal/platform"
	"github.com/1broseidon/layerd/internal/runtimepath"
	"github.com/1broseidon/layerd/internal/scene"
)

func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("config", "", "Config file path (default: ~/.config/layerd/config.yaml)")
	backendName := fs.String("backend", "", "Override the configured backend (x11|software)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: layerd daemon [--config PATH] [--backend NAME]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Run the compositor in the foreground until interrupted.")
	}
	if code := parseNoArgs(fs, args); code >= 0 {
		return code
	}

	res, err := loadConfigResult(*path)
	if err != nil {
		log.Printf("Daemon: failed to load configuration: %v", err)
		return 1
	}
	cfg := res.Config
	if *backendName != "" {
		cfg.Backend = strings.ToLower(*backendName)
		if err := cfg.Validate(); err != nil {
			log.Printf("Daemon: %v", err)
			return 1
		}
	}
	log.Printf("Daemon: configuration loaded (backend: %s, decorator: %s)", cfg.Backend, cfg.Decorator)

	if err := serve(cfg); err != nil {
		log.Printf("Daemon: %v", err)
		return 1
	}
	return 0
}

func serve(cfg *config.Config) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	scene.SetLogger(logger.With("component", "scene"))

	background, err := cfg.Background()
	if err != nil {
		return err
	}

	backend, err := platform.Open(platform.Options{
		Backend: cfg.Backend,
		Display: cfg.Display,
		Screen:  cfg.ScreenRect(),
		Title:   "layerd",
	})
	if err != nil {
		return fmt.Errorf("failed to open %s backend: %w", cfg.Backend, err)
	}
	defer backend.Close()
	log.Printf("Daemon: %s output ready (%v)", backend.Name(), backend.Output().Bounds())

	comp := compositor.New(backend.Output(), compositor.Options{
		Background:         background,
		Decorator:          decorator.Resolve(cfg.Decorator, logger),
		FullUpdateOnResize: cfg.FullUpdateOnResize,
		Limits:             cfg.WindowLimits(),
		Alignment:          cfg.WindowAlignment(),
		DefaultSize:        cfg.DefaultSize(),
		AuditInvariants:    cfg.AuditInvariants,
		QueueDepth:         cfg.RenderQueueDepth,
		Logger:             logger.With("component", "compositor"),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	compDone := make(chan error, 1)
	go func() {
		compDone <- comp.Run(ctx)
	}()

	ipcServer, err := ipc.NewServer(comp, ipc.Info{
		Backend:   backend.Name(),
		Decorator: cfg.Decorator,
	}, logger.With("component", "ipc"))
	if err != nil {
		cancel()
		<-compDone
		return fmt.Errorf("failed to create IPC server: %w", err)
	}
	if err := ipcServer.Start(); err != nil {
		cancel()
		<-compDone
		return fmt.Errorf("failed to start IPC server: %w", err)
	}
	defer ipcServer.Stop()

	removePID, err := writePIDFile()
	if err != nil {
		log.Printf("Daemon: %v", err)
	} else {
		defer removePID()
	}

	reconciler := daemon.NewReconciler(daemon.ReconcilerConfig{
		Interval:        cfg.ReconcileInterval(),
		StaleAfter:      cfg.StaleUpdateAge(),
		AuditInvariants: cfg.AuditInvariants,
		Logger:          logger.With("component", "reconciler"),
	}, comp)
	go reconciler.Run(ctx)

	if backend.Name() == platform.NameX11 {
		registerHotkeys(backend, comp, cfg.Hotkeys)
	}

	log.Println("Daemon: entering event loop...")
	runErr := backend.Run(ctx, comp)
	cancel()

	if err := <-compDone; err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Daemon: compositor stopped: %v", err)
	}
	if runErr != nil {
		log.Printf("Daemon: backend stopped: %v", runErr)
	}
	log.Println("Daemon: shutting down")
	return nil
}

func registerHotkeys(backend platform.Backend, comp *compositor.Compositor, keys config.Hotkeys) {
	handler, err := hotkeys.NewHandler(backend, comp)
	if err != nil {
		log.Printf("Daemon: hotkeys disabled: %v", err)
		return
	}
	if err := handler.Register(hotkeys.Bindings{
		Redraw:     keys.Redraw,
		Close:      keys.Close,
		CycleFocus: keys.CycleFocus,
	}); err != nil {
		log.Printf("Warning: %v", err)
	}
}

// writePIDFile records the daemon's pid and returns a func removing it.
func writePIDFile() (func(), error) {
	path, err := runtimepath.PIDPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve pid file: %w", err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write pid file: %w", err)
	}
	return func() { os.Remove(path) }, nil
}
