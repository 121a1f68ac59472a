package scene

import "errors"

var (
	// ErrStaleHandle is returned when a handle refers to a destroyed layer.
	ErrStaleHandle = errors.New("scene: stale layer handle")
	// ErrInvalidTopology is returned for tree edits that would leave the
	// graph inconsistent, such as attaching a layer that already has a
	// parent or removing a layer from a parent it does not belong to.
	ErrInvalidTopology = errors.New("scene: invalid topology")
)
