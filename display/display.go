// Package display defines the output side of the frame-submission
// coordinator: a display backend that owns the presentation surface and the
// GPU device, and a monitor that reports the fullscreen resolution.
//
// One backend is active per session. It is created on init, destroyed on
// free, and recreated as a whole on reinit.
package display

import (
	"errors"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/gfxplugin/render"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not registered.
	ErrBackendNotAvailable = errors.New("display: backend not available")

	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("display: backend not initialized")

	// ErrAlreadyInitialized is returned when Init is called twice without Free.
	ErrAlreadyInitialized = errors.New("display: backend already initialized")

	// ErrInvalidDimensions is returned when width or height is not positive.
	ErrInvalidDimensions = errors.New("display: invalid dimensions")

	// ErrShortBuffer is returned when pixel data is smaller than height*stride.
	ErrShortBuffer = errors.New("display: pixel buffer too small")
)

// ContextParams describes the surface a backend should create.
type ContextParams struct {
	// Width and Height are the output size in physical pixels.
	Width, Height int

	// Fullscreen selects an exclusive fullscreen surface.
	Fullscreen bool

	// VSync selects FIFO presentation. Without it frames are presented
	// immediately.
	VSync bool

	// Display and Window are native handles for the presentation surface.
	// Zero Window means offscreen.
	Display, Window uintptr

	// RefreshRate of the monitor in Hz, or zero when unknown.
	RefreshRate float64
}

// DefaultRefreshRate is reported when the monitor does not know its rate.
const DefaultRefreshRate = 60

// Refresh returns the monitor refresh rate, or DefaultRefreshRate.
func (p ContextParams) Refresh() float64 {
	if p.RefreshRate > 0 {
		return p.RefreshRate
	}
	return DefaultRefreshRate
}

// Capabilities are recorded by the coordinator after a backend is created.
type Capabilities struct {
	// RefreshRate of the output in Hz.
	RefreshRate float64

	// MaxSwapchainImages is the number of images the surface may queue.
	MaxSwapchainImages int

	// Adapter identifies the device behind the backend.
	Adapter gpucontext.AdapterInfo

	// API names the graphics API the backend drives.
	API string
}

// Backend is a display backend.
//
// Backends are driven from the coordinator's worker only and are NOT
// thread-safe.
type Backend interface {
	// Name returns the backend identifier (e.g., "headless", "hal").
	Name() string

	// Init creates the surface and device.
	Init(params ContextParams) error

	// Free releases everything Init created. Calling Free on a backend that
	// is not initialized is a no-op.
	Free()

	// Present shows a frame. The HWFrameBufferValid sentinel re-presents the
	// surface contents unchanged.
	Present(ref render.FrameRef, width, height, stride int) error

	// QuerySize returns the current surface size.
	QuerySize() (width, height int)

	// Capabilities reports the backend properties recorded at init.
	Capabilities() Capabilities

	// Device returns the device handed to the renderer.
	Device() render.DeviceHandle
}

// WindowStyler is implemented by backends that own a window whose style must
// change when switching between windowed and fullscreen.
type WindowStyler interface {
	SetFullscreenStyle(fullscreen bool) error
}

// Monitor reports the resolution used for fullscreen output.
type Monitor interface {
	Resolution() (width, height int)
}

// RefreshRater is implemented by monitors that know their refresh rate.
type RefreshRater interface {
	RefreshRate() float64
}

// FixedMonitor is a Monitor with a constant resolution.
type FixedMonitor struct {
	Width, Height int

	// Hz is the refresh rate. Zero means unknown.
	Hz float64
}

// Resolution returns the configured resolution.
func (m FixedMonitor) Resolution() (int, int) { return m.Width, m.Height }

// RefreshRate returns Hz.
func (m FixedMonitor) RefreshRate() float64 { return m.Hz }

// WindowMonitor derives the fullscreen resolution from a host window
// provider, converting logical points to physical pixels.
type WindowMonitor struct {
	Provider gpucontext.WindowProvider
}

// Resolution returns the provider size scaled by its DPI factor.
func (m WindowMonitor) Resolution() (int, int) {
	if m.Provider == nil {
		return 0, 0
	}
	w, h := m.Provider.Size()
	sf := m.Provider.ScaleFactor()
	if sf <= 0 {
		sf = 1
	}
	return int(float64(w)*sf + 0.5), int(float64(h)*sf + 0.5)
}
