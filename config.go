package gfxplugin

import (
	"fmt"

	"github.com/gogpu/gfxplugin/internal/hwcontext"
)

// Config is the display configuration for a session.
type Config struct {
	// Fullscreen forces the output to the monitor resolution. Toggling it
	// rebuilds the render context.
	Fullscreen bool

	// Width and Height are the windowed output size. Changing them while
	// windowed takes effect on the next context rebuild.
	Width, Height int

	// VSync presents on vertical blank. Changing it rebuilds the context.
	VSync bool

	// UpscalingFactor multiplies the renderer's internal resolution.
	// One of 1, 2, 4 or 8.
	UpscalingFactor int

	// Display and Window are native handles for the output surface. Zero
	// Window renders offscreen.
	Display, Window uintptr
}

// DefaultConfig returns a 640x480 windowed configuration with vsync.
func DefaultConfig() Config {
	return Config{
		Width:           640,
		Height:          480,
		VSync:           true,
		UpscalingFactor: 1,
	}
}

// Validate reports whether c can be used to start or reconfigure a session.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidConfig, c.Width, c.Height)
	}
	switch c.UpscalingFactor {
	case 1, 2, 4, 8:
	default:
		return fmt.Errorf("%w: upscaling factor %d", ErrInvalidConfig, c.UpscalingFactor)
	}
	return nil
}

// context converts c to the controller's configuration.
func (c Config) context() hwcontext.Config {
	return hwcontext.Config{
		Fullscreen:      c.Fullscreen,
		Width:           c.Width,
		Height:          c.Height,
		VSync:           c.VSync,
		UpscalingFactor: c.UpscalingFactor,
		Display:         c.Display,
		Window:          c.Window,
	}
}
