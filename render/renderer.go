// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

// Renderer is the GPU backend driven by the frame-submission coordinator.
//
// All methods are invoked on the coordinator's worker. BeginFrame and
// ProcessCommands of one frame never overlap CompleteFrame of another.
//
// Lifecycle:
//
//	r.Init(env)               // register HWRenderCallback, negotiator
//	for each frame {
//	    r.BeginFrame()
//	    r.ProcessCommands()
//	    r.CompleteFrame(snap) // returns the frame to present
//	}
//	r.Close()
//
// Thread Safety: Renderers are NOT thread-safe.
type Renderer interface {
	// Init binds the renderer to its environment. A renderer that owns GPU
	// resources registers a HWRenderCallback so it is told when its context
	// is created and destroyed.
	Init(env Environment) error

	// BeginFrame starts recording a new frame.
	BeginFrame()

	// ProcessCommands consumes the pending display list.
	ProcessCommands() error

	// CompleteFrame finishes the frame using a register snapshot captured by
	// the emulation goroutine. A zero Frame means nothing new to show.
	CompleteFrame(regs RegisterSnapshot) (Frame, error)

	// QueryCapabilities reports device identity strings.
	QueryCapabilities() Capabilities

	// Close releases renderer state that outlives a context.
	Close()
}

// Capabilities identifies the device a renderer runs on.
type Capabilities struct {
	// DeviceString names the GPU device.
	DeviceString string

	// APIVersionString names the graphics API and its version.
	APIVersionString string
}

// HWRenderCallback is the hardware context contract a renderer registers.
//
// The coordinator keeps a copy across reinit so the hooks survive the
// teardown of the display backend they were registered against.
type HWRenderCallback struct {
	// ContextReset is called once a fresh context is usable. Resources from
	// any previous context must be considered gone.
	ContextReset func()

	// ContextDestroy is called before the context is torn down.
	ContextDestroy func()

	// CacheContext asks the coordinator to keep GPU resources alive across
	// reinit. ContextDestroy is not called for a cached teardown.
	CacheContext bool
}

// ContextNegotiator is an optional collaborator that decides whether a
// rebuilt context may keep the previous context's resources.
type ContextNegotiator interface {
	// RetainContext runs after a cached reinit rebuilt the backend. A
	// negotiator that verified its resources calls
	// env.AcknowledgeCacheContext and returns true.
	RetainContext(env Environment) bool
}

// Environment is what the coordinator exposes to a renderer.
type Environment interface {
	// SetHWRender registers the hardware callback. Returns false when the
	// environment has no hardware context.
	SetHWRender(cb HWRenderCallback) bool

	// SetContextNegotiation registers a negotiator.
	SetContextNegotiation(n ContextNegotiator) bool

	// AcknowledgeCacheContext confirms that cached resources survived.
	// Ignored outside a cached reinit.
	AcknowledgeCacheContext()

	// Device returns the device of the active display backend.
	Device() DeviceHandle

	// Settings returns the renderer settings for this session.
	Settings() Settings
}

// Settings are the renderer options persisted by the plugin.
type Settings struct {
	// UpscalingFactor multiplies the internal target resolution (1, 2, 4, 8).
	UpscalingFactor int

	// DownscalingSteps halves the output this many times after upscaling.
	DownscalingSteps int

	// Overscan crops this many pixels from each edge of the VI output.
	Overscan int

	SuperSampledReadBack bool
	SuperSampledDither   bool
	Deinterlace          bool
	NativeTextureLOD     bool
	NativeTextureRect    bool
	DivotFilter          bool
	GammaDither          bool
	VIDither             bool
	VIAntiAlias          bool
	VIBilinear           bool
	Synchronous          bool
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		UpscalingFactor: 1,
		DivotFilter:     true,
		GammaDither:     true,
		VIDither:        true,
		VIAntiAlias:     true,
		VIBilinear:      true,
		Synchronous:     true,
	}
}
