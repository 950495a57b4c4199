package hwcontext

import (
	"github.com/gogpu/gfxplugin/display"
	"github.com/gogpu/gfxplugin/render"
)

// State is the lifecycle state of a Controller.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateActive
	StateReinitializing
	StateFreed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateInitializing:
		return "Initializing"
	case StateActive:
		return "Active"
	case StateReinitializing:
		return "Reinitializing"
	case StateFreed:
		return "Freed"
	default:
		return "Unknown"
	}
}

// Config is the display configuration applied on Init and Reinit.
type Config struct {
	// Fullscreen forces the display size to the monitor resolution.
	Fullscreen bool

	// Width and Height are the windowed output size.
	Width, Height int

	// VSync selects FIFO presentation.
	VSync bool

	// UpscalingFactor multiplies the renderer's internal resolution.
	UpscalingFactor int

	// Display and Window are native surface handles passed to the backend.
	Display, Window uintptr
}

// RenderContextState describes the active hardware context.
//
// It is mutated on the render worker only. HWRender and Negotiator are
// additionally guarded by the controller's context lock because the
// renderer registers them through its Environment.
type RenderContextState struct {
	Active bool

	// HWRender is the renderer's context callback. A copy survives Reinit.
	HWRender render.HWRenderCallback

	// CacheContextRequested is true while a Reinit tears down a context
	// whose renderer asked to keep its resources.
	CacheContextRequested bool

	// CacheContextAcknowledged becomes true only when the renderer confirms
	// during Reinit that its resources survived. It is reset at the start of
	// every Reinit.
	CacheContextAcknowledged bool

	DisplayWidth, DisplayHeight int
	AspectRatio                 float64

	GPUDeviceString     string
	GPUAPIVersionString string

	// Negotiator is borrowed from the renderer and never owned.
	Negotiator render.ContextNegotiator

	// Capabilities recorded from the display backend at init.
	Capabilities display.Capabilities

	// ResourceGeneration increments every time GPU resources are lost.
	// Dependents compare it with the generation they built against.
	ResourceGeneration uint64
}

// Snapshot is a read-only copy of the published context state. It may be
// taken from any goroutine.
type Snapshot struct {
	State  State
	Active bool

	CacheContextAcknowledged bool

	FrameCount uint64

	DisplayWidth, DisplayHeight int
	AspectRatio                 float64

	GPUDeviceString     string
	GPUAPIVersionString string

	RefreshRate        float64
	MaxSwapchainImages int
	Backend            string

	ResourceGeneration uint64
}
