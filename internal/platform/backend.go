// Package platform opens the pixel backend the daemon composites into.
package platform

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/1broseidon/layerd/internal/decorator"
	"github.com/1broseidon/layerd/internal/paint"
)

// Backend names.
const (
	NameX11      = "x11"
	NameSoftware = "software"
)

// InputSink receives pointer input in output coordinates.
type InputSink interface {
	PointerDown(pt image.Point, buttons decorator.Buttons) error
	PointerMoved(pt image.Point, buttons decorator.Buttons) error
	PointerUp(pt image.Point) error
}

// Backend abstracts the window system the compositor draws into.
type Backend interface {
	// Name is the backend's configuration name.
	Name() string
	// Output is the framebuffer the compositor renders into.
	Output() paint.Backend
	// Run delivers input to sink until ctx is cancelled or the output is
	// closed by the user.
	Run(ctx context.Context, sink InputSink) error
	// Close releases the output.
	Close() error
}

// Options select and size a backend.
type Options struct {
	Backend string
	// Display is the X display; empty uses $DISPLAY.
	Display string
	// Screen sizes the software framebuffer.
	Screen image.Rectangle
	Title  string
}

// Open returns the backend named in opts.
func Open(opts Options) (Backend, error) {
	switch strings.ToLower(opts.Backend) {
	case NameSoftware:
		return NewSoftwareBackend(opts.Screen), nil
	case NameX11, "":
		return openX11(opts)
	default:
		return nil, fmt.Errorf("unknown backend %q", opts.Backend)
	}
}

// SoftwareBackend renders into memory and has no input.
type SoftwareBackend struct {
	fb *paint.Software
}

var _ Backend = (*SoftwareBackend)(nil)

// NewSoftwareBackend creates an in-memory framebuffer of the given size.
func NewSoftwareBackend(screen image.Rectangle) *SoftwareBackend {
	if screen.Empty() {
		screen = image.Rect(0, 0, 1024, 768)
	}
	return &SoftwareBackend{fb: paint.NewSoftware(screen)}
}

func (b *SoftwareBackend) Name() string { return NameSoftware }

func (b *SoftwareBackend) Output() paint.Backend { return b.fb }

// Framebuffer exposes the pixels for inspection.
func (b *SoftwareBackend) Framebuffer() *paint.Software { return b.fb }

func (b *SoftwareBackend) Run(ctx context.Context, _ InputSink) error {
	<-ctx.Done()
	return nil
}

func (b *SoftwareBackend) Close() error { return b.fb.Close() }
