package display

import (
	"errors"
	"fmt"

	"github.com/gogpu/gfxplugin/render"
)

// Fallback is a Backend that initializes the first of several registered
// backends that succeeds. Every Init starts again from the most preferred
// one, so a GPU that becomes usable after a rebuild is picked up.
type Fallback struct {
	names []string

	// OnSkip, if set, is told about every backend that failed to
	// initialize before another one was chosen.
	OnSkip func(name string, err error)

	active     Backend
	fullscreen bool
}

// NewFallback creates a backend that tries names in order.
func NewFallback(names ...string) *Fallback {
	return &Fallback{names: names}
}

// Name returns the active backend's name, or "fallback" before Init.
func (f *Fallback) Name() string {
	if f.active == nil {
		return "fallback"
	}
	return f.active.Name()
}

// Init initializes the first candidate that accepts params. The requested
// window style is applied to it. When all candidates fail the error wraps
// ErrBackendNotAvailable and every candidate's error.
func (f *Fallback) Init(params ContextParams) error {
	if f.active != nil {
		return ErrAlreadyInitialized
	}
	var errs []error
	for i, name := range f.names {
		b, err := Get(name)
		if err == nil {
			err = b.Init(params)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			if f.OnSkip != nil && i < len(f.names)-1 {
				f.OnSkip(name, err)
			}
			continue
		}
		f.active = b
		if ws, ok := b.(WindowStyler); ok && f.fullscreen {
			if err := ws.SetFullscreenStyle(true); err != nil {
				b.Free()
				f.active = nil
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %w", ErrBackendNotAvailable, errors.Join(errs...))
}

// Free releases the active backend.
func (f *Fallback) Free() {
	if f.active == nil {
		return
	}
	f.active.Free()
	f.active = nil
}

// Present forwards to the active backend.
func (f *Fallback) Present(ref render.FrameRef, width, height, stride int) error {
	if f.active == nil {
		return ErrNotInitialized
	}
	return f.active.Present(ref, width, height, stride)
}

// QuerySize forwards to the active backend.
func (f *Fallback) QuerySize() (int, int) {
	if f.active == nil {
		return 0, 0
	}
	return f.active.QuerySize()
}

// Capabilities forwards to the active backend.
func (f *Fallback) Capabilities() Capabilities {
	if f.active == nil {
		return Capabilities{}
	}
	return f.active.Capabilities()
}

// Device forwards to the active backend.
func (f *Fallback) Device() render.DeviceHandle {
	if f.active == nil {
		return render.NullDeviceHandle{}
	}
	return f.active.Device()
}

// SetFullscreenStyle records the style and applies it to the active backend.
// The style is re-applied to whichever backend the next Init chooses.
func (f *Fallback) SetFullscreenStyle(fullscreen bool) error {
	f.fullscreen = fullscreen
	if ws, ok := f.active.(WindowStyler); ok {
		return ws.SetFullscreenStyle(fullscreen)
	}
	return nil
}

// Active returns the initialized backend, or nil.
func (f *Fallback) Active() Backend { return f.active }

var (
	_ Backend      = (*Fallback)(nil)
	_ WindowStyler = (*Fallback)(nil)
)
