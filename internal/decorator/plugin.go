package decorator

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"plugin"
	"sort"
	"strings"
	"sync"
)

// Symbols a decorator plugin must export.
const (
	VersionSymbol = "DecoratorAPIVersion"
	FactorySymbol = "NewDecorator"
)

// DefaultName is the name of the built-in decorator.
const DefaultName = "default"

var (
	// ErrVersionMismatch is returned for plugins built against another API.
	ErrVersionMismatch = errors.New("decorator: incompatible API version")
	// ErrMissingSymbol is returned when a plugin lacks a required export.
	ErrMissingSymbol = errors.New("decorator: missing plugin symbol")
	// ErrUnknown is returned for names that are neither registered nor a
	// plugin path.
	ErrUnknown = errors.New("decorator: unknown decorator")
)

type symbolTable interface {
	Lookup(name string) (plugin.Symbol, error)
}

var openPlugin = func(path string) (symbolTable, error) {
	return plugin.Open(path)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{DefaultName: NewDefault}
)

// Register makes a factory available by name. Registering an existing name
// replaces it.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Names lists the registered decorators.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Load opens a decorator plugin and returns its factory.
func Load(path string) (Factory, error) {
	tbl, err := openPlugin(path)
	if err != nil {
		return nil, fmt.Errorf("open decorator plugin %s: %w", path, err)
	}
	f, err := factoryFrom(tbl)
	if err != nil {
		return nil, fmt.Errorf("load decorator plugin %s: %w", path, err)
	}
	return f, nil
}

func factoryFrom(tbl symbolTable) (Factory, error) {
	sym, err := tbl.Lookup(VersionSymbol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", VersionSymbol, ErrMissingSymbol)
	}
	version, ok := sym.(func() float64)
	if !ok {
		return nil, fmt.Errorf("%s has type %T: %w", VersionSymbol, sym, ErrMissingSymbol)
	}
	if v := version(); !Compatible(v) {
		return nil, fmt.Errorf("plugin reports %.2f, host is %.2f: %w", v, APIVersion, ErrVersionMismatch)
	}

	sym, err = tbl.Lookup(FactorySymbol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", FactorySymbol, ErrMissingSymbol)
	}
	switch f := sym.(type) {
	case func(Params) Decorator:
		return Factory(f), nil
	case *Factory:
		return *f, nil
	default:
		return nil, fmt.Errorf("%s has type %T: %w", FactorySymbol, sym, ErrMissingSymbol)
	}
}

// Compatible reports whether a plugin version can be used by this host.
func Compatible(v float64) bool {
	return math.Floor(v) == math.Floor(APIVersion) && v >= math.Floor(APIVersion)
}

// Lookup returns the named factory. Names ending in ".so" are loaded as
// plugins; anything else must have been registered.
func Lookup(name string) (Factory, error) {
	if name == "" {
		name = DefaultName
	}
	if strings.HasSuffix(name, ".so") {
		return Load(name)
	}
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknown)
	}
	return f, nil
}

// Resolve is Lookup that never fails: any error is logged and the default
// decorator is returned instead.
func Resolve(name string, logger *slog.Logger) Factory {
	f, err := Lookup(name)
	if err != nil {
		if logger != nil {
			logger.Warn("decorator unavailable, using default", "decorator", name, "error", err)
		}
		return NewDefault
	}
	return f
}
