//go:build linux

package platform

import (
	"context"
	"fmt"
	"log"

	"github.com/1broseidon/layerd/internal/paint"
	"github.com/1broseidon/layerd/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
)

// LinuxBackend wraps an X11 connection and the compositor's output window.
type LinuxBackend struct {
	conn   *x11.Connection
	output *x11.Output
}

var _ Backend = (*LinuxBackend)(nil)

func openX11(opts Options) (Backend, error) {
	return NewLinuxBackendFromDisplay(opts.Display, opts.Title)
}

// NewLinuxBackendFromDisplay opens display and maps an output window over
// the monitor under the pointer.
func NewLinuxBackendFromDisplay(display, title string) (*LinuxBackend, error) {
	conn, err := x11.NewConnection(display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	area, err := conn.OutputArea()
	if err != nil {
		conn.Close()
		return nil, err
	}
	out, err := x11.NewOutput(conn, area, title)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &LinuxBackend{conn: conn, output: out}, nil
}

func (b *LinuxBackend) Name() string { return NameX11 }

func (b *LinuxBackend) Output() paint.Backend { return b.output }

// XUtil returns the underlying xgbutil connection for X11-specific operations.
func (b *LinuxBackend) XUtil() *xgbutil.XUtil {
	if b == nil || b.conn == nil {
		return nil
	}
	return b.conn.XUtil
}

// RootWindow returns the X11 root window ID.
func (b *LinuxBackend) RootWindow() xproto.Window {
	if b == nil || b.conn == nil {
		return 0
	}
	return b.conn.Root
}

// Run runs the X event loop, forwarding pointer input to sink. Closing the
// output window ends it like a cancelled context.
func (b *LinuxBackend) Run(ctx context.Context, sink InputSink) error {
	closed := make(chan struct{})
	b.output.Listen(sink, func() {
		select {
		case <-closed:
		default:
			close(closed)
		}
		b.conn.Quit()
	})

	go func() {
		select {
		case <-ctx.Done():
			b.conn.Quit()
			if err := b.output.Wake(); err != nil {
				log.Printf("X11: failed to wake event loop: %v", err)
			}
		case <-closed:
		}
	}()

	b.conn.EventLoop()
	select {
	case <-closed:
		return fmt.Errorf("output window closed")
	default:
		return nil
	}
}

// Close destroys the output window and disconnects.
func (b *LinuxBackend) Close() error {
	if b == nil || b.conn == nil {
		return nil
	}
	err := b.output.Close()
	b.conn.Close()
	return err
}
