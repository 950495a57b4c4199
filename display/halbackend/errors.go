package halbackend

import "errors"

var (
	// ErrNoAdapter is returned when the HAL instance exposes no adapter.
	ErrNoAdapter = errors.New("halbackend: no GPU adapter")

	// ErrNoSurfaceFormat is returned when the adapter cannot present to the
	// window surface in any supported format.
	ErrNoSurfaceFormat = errors.New("halbackend: surface has no supported format")
)
