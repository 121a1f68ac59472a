package platform

import (
	"context"
	"image"
	"testing"
	"time"
)

func TestOpenSoftware(t *testing.T) {
	b, err := Open(Options{Backend: "Software", Screen: image.Rect(0, 0, 320, 200)})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer b.Close()
	if b.Name() != NameSoftware {
		t.Fatalf("Name() = %q", b.Name())
	}
	if got := b.Output().Bounds(); got != image.Rect(0, 0, 320, 200) {
		t.Fatalf("Bounds() = %v", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := b.Run(ctx, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestOpenUnknown(t *testing.T) {
	if _, err := Open(Options{Backend: "wayland"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestSoftwareDefaultSize(t *testing.T) {
	b := NewSoftwareBackend(image.Rectangle{})
	if b.Framebuffer().Bounds().Dx() != 1024 {
		t.Fatalf("default framebuffer = %v", b.Framebuffer().Bounds())
	}
}
