package gfxplugin

import (
	"testing"

	"github.com/gogpu/gfxplugin/display"
	"github.com/gogpu/gfxplugin/render"
)

// TestSessionOptionsDefault tests the options before any SessionOption runs.
func TestSessionOptionsDefault(t *testing.T) {
	o := defaultSessionOptions()

	if o.renderer != nil || o.backend != nil || o.monitor != nil {
		t.Error("default options should carry no renderer, backend or monitor")
	}
	if o.backendName != "" {
		t.Errorf("backendName = %q, want empty (registry default)", o.backendName)
	}
	if o.inline {
		t.Error("default options should use a render worker")
	}
	if o.settings != render.DefaultSettings() {
		t.Errorf("settings = %+v, want defaults", o.settings)
	}
}

// TestSessionOptionsApply tests that each option sets its field.
func TestSessionOptionsApply(t *testing.T) {
	r := render.NewSoftware(make([]byte, 1024))
	h := display.NewHeadless()
	m := display.FixedMonitor{Width: 800, Height: 600}
	s := render.DefaultSettings()
	s.UpscalingFactor = 4
	called := false

	o := defaultSessionOptions()
	for _, opt := range []SessionOption{
		WithRenderer(r),
		WithDisplayBackend(display.BackendHeadless),
		WithBackend(h),
		WithMonitor(m),
		WithInlineExecution(true),
		WithSettings(s),
		WithErrorHandler(func(error) { called = true }),
	} {
		opt(&o)
	}

	if o.renderer != r {
		t.Error("WithRenderer did not set the renderer")
	}
	if o.backendName != display.BackendHeadless {
		t.Errorf("backendName = %q", o.backendName)
	}
	if o.backend != h {
		t.Error("WithBackend did not set the backend")
	}
	if o.monitor != m {
		t.Error("WithMonitor did not set the monitor")
	}
	if !o.inline {
		t.Error("WithInlineExecution(true) not applied")
	}
	if o.settings.UpscalingFactor != 4 {
		t.Errorf("settings.UpscalingFactor = %d, want 4", o.settings.UpscalingFactor)
	}
	o.errorHandler(nil)
	if !called {
		t.Error("WithErrorHandler did not set the handler")
	}
}

// TestWithBackendBypassesRegistry tests that an explicit backend wins over
// a registry name.
func TestWithBackendBypassesRegistry(t *testing.T) {
	h := display.NewHeadless()
	o := defaultSessionOptions()
	WithDisplayBackend("missing")(&o)
	WithBackend(h)(&o)

	b, err := backendFactory(o)()
	if err != nil {
		t.Fatalf("factory error = %v", err)
	}
	if b != display.Backend(h) {
		t.Error("factory should return the explicit backend")
	}
}
