package gfxplugin

import (
	"github.com/gogpu/gfxplugin/display"
	"github.com/gogpu/gfxplugin/render"
)

// SessionOption configures a Session during BeginSession.
// Use functional options to customize session behavior.
//
// Example:
//
//	// Software renderer, best registered display backend
//	s, err := gfxplugin.BeginSession(cfg, gfxplugin.WithRenderer(render.NewSoftware(rdram)))
//
//	// GPU output, renderer driven from the host thread
//	s, err := gfxplugin.BeginSession(cfg,
//	    gfxplugin.WithRenderer(r),
//	    gfxplugin.WithDisplayBackend("hal"),
//	    gfxplugin.WithInlineExecution(true),
//	)
type SessionOption func(*sessionOptions)

// sessionOptions holds optional configuration for session creation.
type sessionOptions struct {
	renderer     render.Renderer
	backendName  string
	backend      display.Backend
	monitor      display.Monitor
	inline       bool
	settings     render.Settings
	errorHandler func(error)
}

// defaultSessionOptions returns the default session options.
func defaultSessionOptions() sessionOptions {
	return sessionOptions{
		settings: render.DefaultSettings(),
	}
}

// WithRenderer sets the renderer driven by the session. Required.
func WithRenderer(r render.Renderer) SessionOption {
	return func(o *sessionOptions) {
		o.renderer = r
	}
}

// WithDisplayBackend selects a registered display backend by name.
// An empty name picks the highest-priority registered backend.
func WithDisplayBackend(name string) SessionOption {
	return func(o *sessionOptions) {
		o.backendName = name
	}
}

// WithBackend uses b as the display backend instead of the registry. The
// same instance is freed and initialized again on every context rebuild.
func WithBackend(b display.Backend) SessionOption {
	return func(o *sessionOptions) {
		o.backend = b
	}
}

// WithMonitor sets the monitor whose resolution is used in fullscreen.
func WithMonitor(m display.Monitor) SessionOption {
	return func(o *sessionOptions) {
		o.monitor = m
	}
}

// WithInlineExecution runs render work on the calling goroutine instead of
// a dedicated worker. All session calls must then come from the goroutine
// that called BeginSession.
func WithInlineExecution(inline bool) SessionOption {
	return func(o *sessionOptions) {
		o.inline = inline
	}
}

// WithSettings sets the renderer settings. The upscaling factor of the
// session Config takes precedence over the one in s.
func WithSettings(s render.Settings) SessionOption {
	return func(o *sessionOptions) {
		o.settings = s
	}
}

// WithErrorHandler receives errors from asynchronous render work, which has
// no caller to return them to. Errors are logged regardless.
func WithErrorHandler(fn func(error)) SessionOption {
	return func(o *sessionOptions) {
		o.errorHandler = fn
	}
}
