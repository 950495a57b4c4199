package display

import (
	"errors"
	"testing"

	"github.com/gogpu/gfxplugin/render"
)

var errNoAdapter = errors.New("no adapter")

// brokenBackend never initializes.
type brokenBackend struct {
	*Headless
}

func (brokenBackend) Name() string { return "broken" }

func (brokenBackend) Init(ContextParams) error { return errNoAdapter }

func registerBroken(t *testing.T) {
	t.Helper()
	Register("broken", func() Backend { return brokenBackend{Headless: NewHeadless()} })
	t.Cleanup(func() { Unregister("broken") })
}

func TestFallback_SkipsFailingBackend(t *testing.T) {
	registerBroken(t)

	var skipped []string
	fb := NewFallback("broken", BackendHeadless)
	fb.OnSkip = func(name string, err error) {
		if !errors.Is(err, errNoAdapter) {
			t.Errorf("OnSkip(%q) err = %v", name, err)
		}
		skipped = append(skipped, name)
	}

	if got := fb.Name(); got != "fallback" {
		t.Errorf("Name() before Init = %q", got)
	}
	if err := fb.Init(ContextParams{Width: 4, Height: 4}); err != nil {
		t.Fatalf("Init() = %v", err)
	}
	if got := fb.Name(); got != BackendHeadless {
		t.Errorf("Name() = %q, want headless", got)
	}
	if len(skipped) != 1 || skipped[0] != "broken" {
		t.Errorf("skipped = %v, want [broken]", skipped)
	}
	if w, h := fb.QuerySize(); w != 4 || h != 4 {
		t.Errorf("QuerySize() = %dx%d", w, h)
	}
	if err := fb.Init(ContextParams{Width: 4, Height: 4}); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second Init() = %v, want ErrAlreadyInitialized", err)
	}

	pix := make([]byte, 4*4*4)
	if err := fb.Present(render.PixelRef(pix), 4, 4, 16); err != nil {
		t.Errorf("Present() = %v", err)
	}
	if got := fb.Active().(*Headless).Stats().Frames; got != 1 {
		t.Errorf("frames = %d, want 1", got)
	}

	fb.Free()
	if fb.Active() != nil {
		t.Error("Free() left a backend active")
	}
	if err := fb.Init(ContextParams{Width: 8, Height: 8}); err != nil {
		t.Fatalf("Init() after Free = %v", err)
	}
	defer fb.Free()
	if len(skipped) != 2 {
		t.Errorf("rebuild should retry the preferred backend, skipped = %v", skipped)
	}
}

func TestFallback_ReappliesFullscreenStyle(t *testing.T) {
	registerBroken(t)
	fb := NewFallback("broken", BackendHeadless)

	if err := fb.SetFullscreenStyle(true); err != nil {
		t.Fatalf("SetFullscreenStyle() before Init = %v", err)
	}
	if err := fb.Init(ContextParams{Width: 4, Height: 4, Fullscreen: true}); err != nil {
		t.Fatal(err)
	}
	defer fb.Free()

	if !fb.Active().(*Headless).FullscreenStyle() {
		t.Error("fullscreen style not applied to the chosen backend")
	}
}

func TestFallback_AllFail(t *testing.T) {
	registerBroken(t)
	called := 0
	fb := NewFallback("broken", "missing")
	fb.OnSkip = func(string, error) { called++ }

	err := fb.Init(ContextParams{Width: 4, Height: 4})
	if !errors.Is(err, ErrBackendNotAvailable) || !errors.Is(err, errNoAdapter) {
		t.Errorf("Init() = %v, want ErrBackendNotAvailable wrapping each failure", err)
	}
	if called != 1 {
		t.Errorf("OnSkip called %d times, want 1 (not for the last candidate)", called)
	}
	if fb.Active() != nil {
		t.Error("a backend is active after all candidates failed")
	}
}

func TestFallback_Uninitialized(t *testing.T) {
	fb := NewFallback(BackendHeadless)

	if err := fb.Present(render.PixelRef(make([]byte, 4)), 1, 1, 4); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Present() = %v, want ErrNotInitialized", err)
	}
	if w, h := fb.QuerySize(); w != 0 || h != 0 {
		t.Errorf("QuerySize() = %dx%d, want 0x0", w, h)
	}
	if _, ok := fb.Device().(render.NullDeviceHandle); !ok {
		t.Errorf("Device() = %T, want NullDeviceHandle", fb.Device())
	}
	fb.Free()
}
