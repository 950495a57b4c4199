package display

import (
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/gfxplugin/render"
)

// Headless is a CPU display backend that keeps the last presented image in
// memory. It is the fallback when no GPU backend is registered and the
// backend used by tests and the replay tool.
type Headless struct {
	params ContextParams
	inited bool

	mu    sync.Mutex
	img   *image.RGBA
	stats HeadlessStats

	fullscreenStyle bool
}

// HeadlessStats counts presents by kind.
type HeadlessStats struct {
	// Frames is the number of pixel frames copied in.
	Frames uint64

	// Reuses is the number of HWFrameBufferValid presents.
	Reuses uint64
}

// NewHeadless creates an uninitialized headless backend.
func NewHeadless() *Headless {
	return &Headless{}
}

// Name returns "headless".
func (h *Headless) Name() string { return BackendHeadless }

// Init allocates the output image.
func (h *Headless) Init(params ContextParams) error {
	if h.inited {
		return ErrAlreadyInitialized
	}
	if params.Width <= 0 || params.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, params.Width, params.Height)
	}
	h.params = params
	h.mu.Lock()
	h.img = image.NewRGBA(image.Rect(0, 0, params.Width, params.Height))
	h.stats = HeadlessStats{}
	h.mu.Unlock()
	h.inited = true
	return nil
}

// Free releases the output image.
func (h *Headless) Free() {
	if !h.inited {
		return
	}
	h.mu.Lock()
	h.img = nil
	h.mu.Unlock()
	h.inited = false
}

// Present copies pixel frames into the output image, scaling nothing: the
// frame is clipped to the surface. The hardware-valid sentinel keeps the
// current contents.
func (h *Headless) Present(ref render.FrameRef, width, height, stride int) error {
	if !h.inited {
		return ErrNotInitialized
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	switch ref.Kind() {
	case render.RefHWValid:
		h.stats.Reuses++
		return nil
	case render.RefNone:
		return nil
	}

	pix := ref.Pixels()
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if stride < width*4 || len(pix) < (height-1)*stride+width*4 {
		return fmt.Errorf("%w: %d bytes for %dx%d stride %d", ErrShortBuffer, len(pix), width, height, stride)
	}

	dst := h.img
	cw := min(width, dst.Rect.Dx())
	ch := min(height, dst.Rect.Dy())
	for y := range ch {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+cw*4], pix[y*stride:y*stride+cw*4])
	}
	h.stats.Frames++
	return nil
}

// QuerySize returns the surface size.
func (h *Headless) QuerySize() (int, int) {
	if !h.inited {
		return 0, 0
	}
	return h.params.Width, h.params.Height
}

// Capabilities reports a double-buffered output at the monitor rate.
func (h *Headless) Capabilities() Capabilities {
	return Capabilities{
		RefreshRate:        h.params.Refresh(),
		MaxSwapchainImages: 2,
		Adapter:            render.NullDeviceHandle{}.AdapterInfo(),
		API:                "cpu",
	}
}

// Device returns the null device.
func (h *Headless) Device() render.DeviceHandle { return render.NullDeviceHandle{} }

// SetFullscreenStyle records the requested window style.
func (h *Headless) SetFullscreenStyle(fullscreen bool) error {
	h.mu.Lock()
	h.fullscreenStyle = fullscreen
	h.mu.Unlock()
	return nil
}

// FullscreenStyle reports the last requested window style.
func (h *Headless) FullscreenStyle() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fullscreenStyle
}

// Snapshot returns a copy of the output image, or nil when not initialized.
// Safe to call from any goroutine.
func (h *Headless) Snapshot() *image.RGBA {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.img == nil {
		return nil
	}
	out := image.NewRGBA(h.img.Rect)
	copy(out.Pix, h.img.Pix)
	return out
}

// Stats returns present counters.
func (h *Headless) Stats() HeadlessStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

var (
	_ Backend      = (*Headless)(nil)
	_ WindowStyler = (*Headless)(nil)
)
