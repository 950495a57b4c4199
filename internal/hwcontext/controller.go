// Package hwcontext manages the lifecycle of the hardware render context:
// creating the display backend, binding the renderer to it, rebuilding both
// on reconfiguration while optionally preserving GPU resources, and freeing
// everything at the end of a session.
package hwcontext

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gfxplugin/display"
	"github.com/gogpu/gfxplugin/internal/framecache"
	"github.com/gogpu/gfxplugin/render"
)

// Controller errors.
var (
	// ErrInitFailed is returned when the context could not be created.
	// The controller is Freed afterwards.
	ErrInitFailed = errors.New("hwcontext: init failed")

	// ErrReinitFailed is returned when the context could not be rebuilt.
	// The controller is Freed afterwards.
	ErrReinitFailed = errors.New("hwcontext: reinit failed")

	// ErrInvalidState is returned for an operation not allowed in the
	// current state.
	ErrInvalidState = errors.New("hwcontext: invalid state")

	// ErrNoRenderer is returned by New when the renderer is nil.
	ErrNoRenderer = errors.New("hwcontext: nil renderer")

	// ErrNoBackend is returned when the backend factory yields nothing.
	ErrNoBackend = errors.New("hwcontext: no display backend")
)

// BackendFactory creates the display backend for each init and reinit.
type BackendFactory func() (display.Backend, error)

// Option configures a Controller.
type Option func(*Controller)

// WithMonitor sets the monitor consulted for fullscreen sizes.
func WithMonitor(m display.Monitor) Option {
	return func(c *Controller) { c.monitor = m }
}

// WithSettings sets the renderer settings exposed through the environment.
func WithSettings(s render.Settings) Option {
	return func(c *Controller) { c.settings = s }
}

// WithFrameCache shares a frame cache with the caller.
func WithFrameCache(fc *framecache.Cache) Option {
	return func(c *Controller) {
		if fc != nil {
			c.frames = fc
		}
	}
}

// WithTransitionHook registers a function called on every state change.
// It runs on the render worker.
func WithTransitionHook(fn func(from, to State)) Option {
	return func(c *Controller) { c.onTransition = fn }
}

// Controller owns the render context for one session.
//
// Init, Reinit, Free and Frame must be called from the render worker.
// State, Snapshot and FrameCount may be called from any goroutine.
type Controller struct {
	renderer   render.Renderer
	newBackend BackendFactory
	monitor    display.Monitor
	settings   render.Settings
	frames     *framecache.Cache

	// mu is the context lock. It guards st.HWRender and st.Negotiator.
	mu sync.Mutex
	st RenderContextState

	backend        display.Backend
	cfg            Config
	contextCreated bool

	state      atomic.Int32
	frameCount atomic.Uint64
	published  atomic.Pointer[Snapshot]

	onTransition func(from, to State)
}

// New creates a controller in the Uninitialized state.
func New(r render.Renderer, factory BackendFactory, opts ...Option) (*Controller, error) {
	if r == nil {
		return nil, ErrNoRenderer
	}
	if factory == nil {
		return nil, ErrNoBackend
	}
	c := &Controller{
		renderer:   r,
		newBackend: factory,
		settings:   render.DefaultSettings(),
		frames:     &framecache.Cache{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.publish()
	return c, nil
}

// Init creates the display backend and the hardware context. It is only
// valid from Uninitialized. On failure everything is released, the
// controller is Freed, and the error wraps ErrInitFailed.
func (c *Controller) Init(cfg Config) error {
	if s := c.State(); s != StateUninitialized {
		return fmt.Errorf("%w: init from %v", ErrInvalidState, s)
	}
	c.transition(StateInitializing)
	c.cfg = cfg

	// Step 1: Bind renderer (registers its HW render callback)
	if err := c.renderer.Init(environment{c}); err != nil {
		return c.fail(ErrInitFailed, fmt.Errorf("renderer: %w", err))
	}

	// Step 2: Create display backend and record capabilities
	if err := c.build(cfg); err != nil {
		return c.fail(ErrInitFailed, err)
	}

	// Step 3: Hand the fresh context to the renderer. Only Reinit can
	// preserve a context, so Init always resets.
	c.contextReset()

	c.st.Active = true
	c.transition(StateActive)
	slogger().Info("hwcontext: context active",
		"backend", c.backend.Name(),
		"size", fmt.Sprintf("%dx%d", c.st.DisplayWidth, c.st.DisplayHeight),
		"device", c.st.GPUDeviceString)
	return nil
}

// Reinit tears the context down and rebuilds it with cfg. It is only valid
// from Active.
//
// The renderer's HW render callback and negotiator survive the rebuild. If
// the callback asked for a cached context, ContextDestroy is skipped and the
// negotiator gets a chance to acknowledge that its resources survived.
// Without an acknowledgement ContextReset is called and the resource
// generation advances.
func (c *Controller) Reinit(cfg Config) error {
	if s := c.State(); s != StateActive {
		return fmt.Errorf("%w: reinit from %v", ErrInvalidState, s)
	}
	c.transition(StateReinitializing)

	c.mu.Lock()
	saved := c.st.HWRender
	savedNeg := c.st.Negotiator
	c.mu.Unlock()

	c.st.CacheContextRequested = saved.CacheContext
	c.st.CacheContextAcknowledged = false
	defer func() { c.st.CacheContextRequested = false }()

	c.teardown(c.st.CacheContextRequested)

	c.mu.Lock()
	c.st.HWRender = saved
	c.st.Negotiator = savedNeg
	c.mu.Unlock()

	c.cfg = cfg
	if err := c.build(cfg); err != nil {
		return c.fail(ErrReinitFailed, err)
	}

	if c.st.CacheContextRequested && savedNeg != nil {
		savedNeg.RetainContext(environment{c})
	}
	if !c.st.CacheContextAcknowledged {
		if c.st.CacheContextRequested {
			slogger().Warn("hwcontext: cached context not acknowledged, resources will be rebuilt")
		}
		c.frames.Clear()
		c.contextReset()
	}

	c.st.Active = true
	c.transition(StateActive)
	slogger().Info("hwcontext: context rebuilt",
		"size", fmt.Sprintf("%dx%d", c.st.DisplayWidth, c.st.DisplayHeight),
		"fullscreen", cfg.Fullscreen,
		"cached", c.st.CacheContextAcknowledged)
	return nil
}

// Free releases the hardware context and the display backend. It is valid
// from any state and idempotent.
func (c *Controller) Free() {
	if c.State() == StateFreed {
		return
	}
	c.release()
	c.transition(StateFreed)
	slogger().Debug("hwcontext: context freed")
}

// release tears everything down and clears the state fields.
func (c *Controller) release() {
	c.teardown(false)
	c.frames.Clear()
	c.st.DisplayWidth, c.st.DisplayHeight = 0, 0
	c.st.AspectRatio = 0
	c.st.CacheContextRequested = false
	c.st.CacheContextAcknowledged = false
}

// fail releases everything after a failed init or reinit.
func (c *Controller) fail(kind, err error) error {
	c.release()
	c.transition(StateFreed)
	slogger().Error("hwcontext: context lost", "err", err)
	return fmt.Errorf("%w: %w", kind, err)
}

// teardown destroys the context and the backend. When cached is true the
// renderer's ContextDestroy hook is skipped so its resources survive.
// The callback and negotiator are always cleared; Reinit restores them.
func (c *Controller) teardown(cached bool) {
	c.st.Active = false

	c.mu.Lock()
	if !cached && c.contextCreated && c.st.HWRender.ContextDestroy != nil {
		c.st.HWRender.ContextDestroy()
	}
	c.st.HWRender = render.HWRenderCallback{}
	c.st.Negotiator = nil
	c.mu.Unlock()

	if !cached {
		c.contextCreated = false
		c.frames.Clear()
	}

	// Release resources in reverse order of creation
	if c.backend != nil {
		c.backend.Free()
		c.backend = nil
	}
}

// build creates and initializes the display backend for cfg.
func (c *Controller) build(cfg Config) error {
	w, h := c.resolveSize(cfg)

	b, err := c.newBackend()
	if err != nil {
		return fmt.Errorf("display: %w", err)
	}
	if b == nil {
		return ErrNoBackend
	}
	if err := b.Init(display.ContextParams{
		Width:       w,
		Height:      h,
		Fullscreen:  cfg.Fullscreen,
		VSync:       cfg.VSync,
		Display:     cfg.Display,
		Window:      cfg.Window,
		RefreshRate: c.refreshRate(),
	}); err != nil {
		return fmt.Errorf("display %s: %w", b.Name(), err)
	}
	c.backend = b

	caps := b.Capabilities()
	c.st.Capabilities = caps
	c.st.DisplayWidth, c.st.DisplayHeight = b.QuerySize()
	if c.st.DisplayHeight > 0 {
		c.st.AspectRatio = float64(c.st.DisplayWidth) / float64(c.st.DisplayHeight)
	}

	rc := c.renderer.QueryCapabilities()
	c.st.GPUDeviceString = rc.DeviceString
	if c.st.GPUDeviceString == "" {
		c.st.GPUDeviceString = caps.Adapter.Name
	}
	c.st.GPUAPIVersionString = rc.APIVersionString
	if c.st.GPUAPIVersionString == "" {
		c.st.GPUAPIVersionString = caps.API
	}

	slogger().Debug("hwcontext: display backend created",
		"backend", b.Name(),
		"refresh_rate", caps.RefreshRate,
		"swapchain_images", caps.MaxSwapchainImages)
	return nil
}

// resolveSize returns the output size for cfg. Fullscreen uses the monitor
// resolution when one is known.
func (c *Controller) resolveSize(cfg Config) (int, int) {
	if !cfg.Fullscreen {
		return cfg.Width, cfg.Height
	}
	if c.monitor != nil {
		if w, h := c.monitor.Resolution(); w > 0 && h > 0 {
			return w, h
		}
	}
	slogger().Warn("hwcontext: fullscreen without a monitor resolution, using configured size",
		"size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height))
	return cfg.Width, cfg.Height
}

// refreshRate returns the monitor refresh rate, or zero when unknown.
func (c *Controller) refreshRate() float64 {
	if rr, ok := c.monitor.(display.RefreshRater); ok {
		return rr.RefreshRate()
	}
	return 0
}

// contextReset tells the renderer its context is new.
func (c *Controller) contextReset() {
	c.contextCreated = true
	c.st.ResourceGeneration++
	c.mu.Lock()
	reset := c.st.HWRender.ContextReset
	c.mu.Unlock()
	if reset != nil {
		reset()
	}
}

// Frame presents a completed frame, or replays the last one when ref is
// none. Frames arriving while the context is not active are ignored.
func (c *Controller) Frame(ref render.FrameRef, width, height, stride int) (framecache.Outcome, error) {
	if !c.st.Active || c.backend == nil {
		return framecache.OutcomeNone, nil
	}
	c.frameCount.Add(1)
	return c.frames.PresentOrReplay(ref, width, height, stride, c.backend)
}

// SetFullscreenStyle forwards a window style change to the active backend
// when it supports one.
func (c *Controller) SetFullscreenStyle(fullscreen bool) error {
	if c.backend == nil {
		return nil
	}
	if ws, ok := c.backend.(display.WindowStyler); ok {
		return ws.SetFullscreenStyle(fullscreen)
	}
	return nil
}

// Backend returns the active display backend, or nil.
// Worker only.
func (c *Controller) Backend() display.Backend {
	return c.backend
}

// Context returns a copy of the context state.
// Worker only.
func (c *Controller) Context() RenderContextState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st
}

// FrameCache returns the controller's frame cache.
func (c *Controller) FrameCache() *framecache.Cache {
	return c.frames
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// FrameCount returns the number of frames submitted while active.
func (c *Controller) FrameCount() uint64 {
	return c.frameCount.Load()
}

// Snapshot returns the published context state.
func (c *Controller) Snapshot() Snapshot {
	s := *c.published.Load()
	s.State = c.State()
	s.FrameCount = c.frameCount.Load()
	return s
}

// transition moves to the next state and publishes the context state.
func (c *Controller) transition(to State) {
	from := State(c.state.Swap(int32(to)))
	c.publish()
	slogger().Debug("hwcontext: state", "from", from, "to", to)
	if c.onTransition != nil {
		c.onTransition(from, to)
	}
}

// publish stores a read-only copy of the state for other goroutines.
func (c *Controller) publish() {
	backend := ""
	if c.backend != nil {
		backend = c.backend.Name()
	}
	c.published.Store(&Snapshot{
		Active:                   c.st.Active,
		CacheContextAcknowledged: c.st.CacheContextAcknowledged,
		DisplayWidth:             c.st.DisplayWidth,
		DisplayHeight:            c.st.DisplayHeight,
		AspectRatio:              c.st.AspectRatio,
		GPUDeviceString:          c.st.GPUDeviceString,
		GPUAPIVersionString:      c.st.GPUAPIVersionString,
		RefreshRate:              c.st.Capabilities.RefreshRate,
		MaxSwapchainImages:       c.st.Capabilities.MaxSwapchainImages,
		Backend:                  backend,
		ResourceGeneration:       c.st.ResourceGeneration,
	})
}
