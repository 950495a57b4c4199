package gfxplugin

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gfxplugin/display"
	"github.com/gogpu/gfxplugin/internal/executor"
	"github.com/gogpu/gfxplugin/internal/hwcontext"
	"github.com/gogpu/gfxplugin/render"
)

// State is the lifecycle state of a session's render context.
type State = hwcontext.State

// Render context states.
const (
	StateUninitialized  = hwcontext.StateUninitialized
	StateInitializing   = hwcontext.StateInitializing
	StateActive         = hwcontext.StateActive
	StateReinitializing = hwcontext.StateReinitializing
	StateFreed          = hwcontext.StateFreed
)

// ContextInfo is a read-only view of the render context.
type ContextInfo = hwcontext.Snapshot

// ExecutorStats are the render worker counters.
type ExecutorStats = executor.Stats

// Session coordinates one emulation run: it owns the render worker, the
// render context and the frame cache, and drives the renderer.
//
// Every renderer and context operation runs on the render worker. The
// session's methods may be called from the emulation goroutine; in inline
// mode they must all be called from the goroutine that began the session.
type Session struct {
	exec     *executor.Executor
	ctrl     *hwcontext.Controller
	renderer render.Renderer

	mu  sync.Mutex
	cfg Config

	ended       atomic.Bool
	asyncFailed atomic.Uint64
	dropped     atomic.Uint64
}

// BeginSession validates cfg, starts the render worker and creates the
// render context on it. When context creation fails the worker is stopped
// and the error wraps ErrInitFailed.
func BeginSession(cfg Config, opts ...SessionOption) (*Session, error) {
	o := defaultSessionOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.renderer == nil {
		return nil, ErrNoRenderer
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Session{renderer: o.renderer, cfg: cfg}

	s.exec = executor.New(executor.WithErrorHandler(func(err error) {
		s.asyncFailed.Add(1)
		Logger().Error("gfxplugin: render task failed", "err", err)
		if o.errorHandler != nil {
			o.errorHandler(err)
		}
	}))

	ctrl, err := hwcontext.New(o.renderer, backendFactory(o),
		hwcontext.WithMonitor(o.monitor),
		hwcontext.WithSettings(o.settings),
	)
	if err != nil {
		return nil, err
	}
	s.ctrl = ctrl

	if err := s.exec.Start(o.inline); err != nil {
		return nil, err
	}
	if err := s.exec.SubmitSync(func() error { return s.ctrl.Init(cfg.context()) }); err != nil {
		_ = s.exec.SubmitSync(func() error {
			s.renderer.Close()
			return nil
		})
		s.exec.Stop()
		return nil, err
	}

	info := s.ctrl.Snapshot()
	Logger().Info("gfxplugin: session started",
		"backend", info.Backend,
		"size", fmt.Sprintf("%dx%d", info.DisplayWidth, info.DisplayHeight),
		"device", info.GPUDeviceString,
		"api", info.GPUAPIVersionString,
		"inline", o.inline)
	return s, nil
}

// backendFactory returns the controller's backend factory for o.
func backendFactory(o sessionOptions) hwcontext.BackendFactory {
	if o.backend != nil {
		b := o.backend
		return func() (display.Backend, error) { return b, nil }
	}
	if name := o.backendName; name != "" {
		return func() (display.Backend, error) { return display.Get(name) }
	}
	fb := display.NewFallback(display.Candidates()...)
	fb.OnSkip = func(name string, err error) {
		Logger().Warn("gfxplugin: display backend unavailable, trying next", "backend", name, "err", err)
	}
	return func() (display.Backend, error) { return fb, nil }
}

// ProcessDisplayList queues frame-begin and command processing for the
// current display list and returns without waiting. Failures are reported
// to the session's error handler.
func (s *Session) ProcessDisplayList() error {
	if s.ended.Load() {
		return ErrSessionEnded
	}
	return s.exec.SubmitAsync(func() error {
		if s.ctrl.State() != StateActive {
			return nil
		}
		s.renderer.BeginFrame()
		return s.renderer.ProcessCommands()
	})
}

// PresentFrame completes the frame described by regs and presents it,
// blocking until the frame is on screen. regs must be captured on the
// calling goroutine (see render.Capture). When the renderer produces no new
// frame, or fails to complete one, the last frame is shown again. A failed
// frame is logged and counted in DroppedFrames; only presentation errors
// are returned.
func (s *Session) PresentFrame(regs render.RegisterSnapshot) error {
	if s.ended.Load() {
		return ErrSessionEnded
	}
	return s.exec.SubmitSync(func() error {
		if s.ctrl.State() != StateActive {
			return nil
		}
		f, err := s.renderer.CompleteFrame(regs)
		if err != nil {
			s.dropped.Add(1)
			Logger().Warn("gfxplugin: frame dropped, replaying last frame", "err", err)
			f = render.Frame{}
		}
		if _, err := s.ctrl.Frame(f.Ref, f.Width, f.Height, f.Stride); err != nil {
			return fmt.Errorf("present: %w", err)
		}
		return nil
	})
}

// ReplayFrame shows the last presented frame again without involving the
// renderer.
func (s *Session) ReplayFrame() error {
	if s.ended.Load() {
		return ErrSessionEnded
	}
	return s.exec.SubmitSync(func() error {
		_, err := s.ctrl.Frame(render.FrameRef{}, 0, 0, 0)
		return err
	})
}

// Reconfigure applies a new display configuration.
//
// A fullscreen toggle or a vsync change rebuilds the render context; the
// window style change is queued ahead of the rebuild so both happen on the
// render worker in order. Size and upscaling changes while windowed are
// stored and take effect at the next rebuild.
//
// A failed rebuild ends the session and returns an error wrapping
// ErrReinitFailed.
func (s *Session) Reconfigure(cfg Config) error {
	if s.ended.Load() {
		return ErrSessionEnded
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	old := s.cfg
	s.cfg = cfg
	s.mu.Unlock()

	toggled := cfg.Fullscreen != old.Fullscreen
	if !toggled && cfg.VSync == old.VSync {
		Logger().Debug("gfxplugin: display change deferred to next rebuild",
			"size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
			"upscaling", cfg.UpscalingFactor)
		return nil
	}

	if toggled {
		fullscreen := cfg.Fullscreen
		if err := s.exec.SubmitAsync(func() error {
			return s.ctrl.SetFullscreenStyle(fullscreen)
		}); err != nil {
			return err
		}
	}

	err := s.exec.SubmitSync(func() error { return s.ctrl.Reinit(cfg.context()) })
	if err != nil && s.ctrl.State() == StateFreed {
		s.shutdown()
	}
	return err
}

// EndSession frees the render context and stops the render worker after
// all queued work has run. It is idempotent.
func (s *Session) EndSession() {
	if s.ended.Load() {
		return
	}
	s.shutdown()
	Logger().Info("gfxplugin: session ended",
		"frames", s.ctrl.FrameCount(),
		"async_failures", s.asyncFailed.Load())
}

// shutdown frees the context on the worker and stops it.
func (s *Session) shutdown() {
	if s.ended.Swap(true) {
		return
	}
	err := s.exec.SubmitSync(func() error {
		s.ctrl.Free()
		s.renderer.Close()
		return nil
	})
	if err != nil {
		Logger().Warn("gfxplugin: free on stopped worker", "err", err)
	}
	s.exec.Stop()
}

// Config returns the configuration last passed to BeginSession or
// Reconfigure.
func (s *Session) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// State returns the render context state.
func (s *Session) State() State {
	return s.ctrl.State()
}

// Info returns a snapshot of the render context.
func (s *Session) Info() ContextInfo {
	return s.ctrl.Snapshot()
}

// Stats returns the render worker counters.
func (s *Session) Stats() ExecutorStats {
	return s.exec.Stats()
}

// DroppedFrames returns how many frames the renderer failed to complete.
func (s *Session) DroppedFrames() uint64 {
	return s.dropped.Load()
}

// Ended reports whether the session has ended.
func (s *Session) Ended() bool {
	return s.ended.Load()
}
