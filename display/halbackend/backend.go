// Package halbackend is a display backend that presents frames through the
// wgpu hardware abstraction layer.
//
// Pixel frames are uploaded into a texture sized to the frame and drawn over
// the window surface with a fullscreen blit. Textures are cached per size so
// a steady frame size costs one upload per present. Without a window handle
// the backend runs offscreen: frames are uploaded but not drawn.
package halbackend

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gfxplugin"
	"github.com/gogpu/gfxplugin/display"
	"github.com/gogpu/gfxplugin/internal/cache"
	"github.com/gogpu/gfxplugin/render"
)

// Name is the registry name of this backend.
const Name = display.BackendHAL

// defaultTextureCache is the number of frame sizes kept resident.
const defaultTextureCache = 4

// Option configures a Backend.
type Option func(*Backend)

// WithHAL selects the HAL backend. By default the most capable registered
// backend is used.
func WithHAL(api hal.Backend) Option {
	return func(b *Backend) { b.api = api }
}

// WithTextureCache sets how many frame sizes keep a resident texture.
func WithTextureCache(n int) Option {
	return func(b *Backend) { b.cacheSize = n }
}

// Stats counts presents by kind.
type Stats struct {
	// Frames is the number of pixel frames uploaded.
	Frames uint64

	// Reuses is the number of HWFrameBufferValid presents.
	Reuses uint64

	// Draws is the number of blits submitted to the surface.
	Draws uint64
}

type frameSize struct{ w, h int }

// frameTexture is an uploaded frame and its binding for the blit.
type frameTexture struct {
	tex   hal.Texture
	view  hal.TextureView
	group hal.BindGroup
	size  frameSize
}

// submission is GPU work whose resources are held until it completes.
type submission struct {
	index uint64
	enc   hal.CommandEncoder
	buf   hal.CommandBuffer
	view  hal.TextureView
}

// Backend presents frames through a HAL device.
//
// Backend is driven from the coordinator's worker and is NOT thread-safe.
type Backend struct {
	api       hal.Backend
	cacheSize int

	params display.ContextParams
	inited bool

	instance hal.Instance
	adapter  hal.Adapter
	info     gputypes.AdapterInfo
	device   hal.Device
	queue    hal.Queue
	surface  hal.Surface
	format   gputypes.TextureFormat
	mode     hal.PresentMode

	blit     *blitPipeline
	textures *cache.Cache[frameSize, *frameTexture]
	last     *frameTexture
	inflight []submission

	stats Stats
}

// New creates an uninitialized backend.
func New(opts ...Option) *Backend {
	b := &Backend{cacheSize: defaultTextureCache}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns "hal".
func (b *Backend) Name() string { return Name }

// Init opens a device and, when params carries a window, configures its
// surface for presentation.
func (b *Backend) Init(params display.ContextParams) error {
	if b.inited {
		return display.ErrAlreadyInitialized
	}
	if params.Width <= 0 || params.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", display.ErrInvalidDimensions, params.Width, params.Height)
	}
	b.params = params

	if err := b.initDevice(); err != nil {
		b.release()
		return err
	}
	if err := b.initSurface(); err != nil {
		b.release()
		return err
	}
	blit, err := newBlitPipeline(b.device, b.format)
	if err != nil {
		b.release()
		return err
	}
	b.blit = blit
	b.textures = cache.New[frameSize, *frameTexture](b.cacheSize, b.evict)
	b.stats = Stats{}
	b.inited = true

	gfxplugin.Logger().Info("halbackend: initialized",
		"adapter", b.info.Name,
		"api", b.info.Backend.String(),
		"size", fmt.Sprintf("%dx%d", params.Width, params.Height),
		"surface", b.surface != nil,
		"vsync", params.VSync)
	return nil
}

// initDevice opens the first hardware adapter, falling back to whatever
// the instance exposes first.
func (b *Backend) initDevice() error {
	api := b.api
	if api == nil {
		var err error
		if api, err = hal.SelectBestBackend(); err != nil {
			return fmt.Errorf("halbackend: select backend: %w", err)
		}
	}
	instance, err := api.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("halbackend: create instance: %w", err)
	}
	b.instance = instance

	if b.params.Window != 0 {
		surface, err := instance.CreateSurface(b.params.Display, b.params.Window)
		if err != nil {
			return fmt.Errorf("halbackend: create surface: %w", err)
		}
		b.surface = surface
	}

	adapters := instance.EnumerateAdapters(b.surface)
	if len(adapters) == 0 {
		return ErrNoAdapter
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	open, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return fmt.Errorf("halbackend: open device: %w", err)
	}
	b.adapter = selected.Adapter
	b.info = selected.Info
	b.device = open.Device
	b.queue = open.Queue
	b.format = gputypes.TextureFormatBGRA8Unorm
	b.mode = hal.PresentModeFifo
	return nil
}

// initSurface configures the window surface, if any.
func (b *Backend) initSurface() error {
	if b.surface == nil {
		return nil
	}
	caps := b.adapter.SurfaceCapabilities(b.surface)
	if caps == nil || len(caps.Formats) == 0 {
		return ErrNoSurfaceFormat
	}
	b.format = pickFormat(caps.Formats)
	b.mode = pickPresentMode(caps.PresentModes, b.params.VSync)

	err := b.surface.Configure(b.device, &hal.SurfaceConfiguration{
		Width:       uint32(b.params.Width),  //nolint:gosec // validated positive
		Height:      uint32(b.params.Height), //nolint:gosec // validated positive
		Format:      b.format,
		Usage:       gputypes.TextureUsageRenderAttachment,
		PresentMode: b.mode,
		AlphaMode:   hal.CompositeAlphaModeOpaque,
	})
	if err != nil {
		return fmt.Errorf("halbackend: configure surface: %w", err)
	}
	return nil
}

func pickFormat(formats []gputypes.TextureFormat) gputypes.TextureFormat {
	for _, f := range formats {
		if f == gputypes.TextureFormatBGRA8Unorm || f == gputypes.TextureFormatRGBA8Unorm {
			return f
		}
	}
	return formats[0]
}

// pickPresentMode returns FIFO for vsync, otherwise the lowest latency mode
// the surface supports.
func pickPresentMode(modes []hal.PresentMode, vsync bool) hal.PresentMode {
	if vsync {
		return hal.PresentModeFifo
	}
	for _, want := range []hal.PresentMode{hal.PresentModeImmediate, hal.PresentModeMailbox} {
		for _, m := range modes {
			if m == want {
				return m
			}
		}
	}
	return hal.PresentModeFifo
}

// Free waits for the device and releases everything Init created.
func (b *Backend) Free() {
	if !b.inited {
		return
	}
	b.release()
	b.inited = false
	gfxplugin.Logger().Debug("halbackend: freed")
}

// release tears down in reverse creation order. It tolerates a partial
// Init.
func (b *Backend) release() {
	if b.device != nil {
		if err := b.device.WaitIdle(); err != nil {
			gfxplugin.Logger().Warn("halbackend: wait idle", "error", err)
		}
	}
	b.retire(true)
	if b.textures != nil {
		b.textures.Purge()
		b.textures = nil
	}
	b.last = nil
	if b.blit != nil {
		b.blit.destroy()
		b.blit = nil
	}
	if b.surface != nil {
		if b.device != nil {
			b.surface.Unconfigure(b.device)
		}
		b.surface.Destroy()
		b.surface = nil
	}
	if b.device != nil {
		b.device.Destroy()
		b.device = nil
	}
	b.queue = nil
	if b.adapter != nil {
		b.adapter.Destroy()
		b.adapter = nil
	}
	if b.instance != nil {
		b.instance.Destroy()
		b.instance = nil
	}
}

// Present uploads pixel frames and draws them. The hardware-valid sentinel
// redraws the last uploaded frame.
func (b *Backend) Present(ref render.FrameRef, width, height, stride int) error {
	if !b.inited {
		return display.ErrNotInitialized
	}
	b.retire(false)

	switch ref.Kind() {
	case render.RefNone:
		return nil
	case render.RefHWValid:
		b.stats.Reuses++
		if b.last == nil {
			return nil
		}
		return b.draw(b.last)
	}

	pix := ref.Pixels()
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", display.ErrInvalidDimensions, width, height)
	}
	if stride < width*4 || len(pix) < (height-1)*stride+width*4 {
		return fmt.Errorf("%w: %d bytes for %dx%d stride %d", display.ErrShortBuffer, len(pix), width, height, stride)
	}

	size := frameSize{width, height}
	ft, err := b.textures.GetOrCreate(size, func() (*frameTexture, error) {
		return b.newFrameTexture(size)
	})
	if err != nil {
		return err
	}

	err = b.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: ft.tex, Aspect: gputypes.TextureAspectAll},
		pix,
		&hal.ImageDataLayout{
			BytesPerRow:  uint32(stride), //nolint:gosec // validated positive
			RowsPerImage: uint32(height), //nolint:gosec // validated positive
		},
		&hal.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1}, //nolint:gosec // validated positive
	)
	if err != nil {
		return fmt.Errorf("halbackend: upload frame: %w", err)
	}
	b.last = ft
	b.stats.Frames++
	return b.draw(ft)
}

func (b *Backend) newFrameTexture(size frameSize) (*frameTexture, error) {
	w, h := uint32(size.w), uint32(size.h) //nolint:gosec // validated positive
	tex, err := b.device.CreateTexture(&hal.TextureDescriptor{
		Label:         fmt.Sprintf("frame_%dx%d", size.w, size.h),
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("halbackend: create frame texture: %w", err)
	}
	ft := &frameTexture{tex: tex, size: size}

	ft.view, err = b.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "frame_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		b.destroyFrameTexture(ft)
		return nil, fmt.Errorf("halbackend: create frame view: %w", err)
	}

	filtered := size.w > b.params.Width || size.h > b.params.Height
	ft.group, err = b.blit.bindGroup(ft.view, filtered)
	if err != nil {
		b.destroyFrameTexture(ft)
		return nil, err
	}
	gfxplugin.Logger().Debug("halbackend: frame texture created", "width", size.w, "height", size.h)
	return ft, nil
}

// evict runs when a frame size drops out of the texture cache.
func (b *Backend) evict(_ frameSize, ft *frameTexture) {
	if len(b.inflight) > 0 {
		if err := b.device.WaitIdle(); err != nil {
			gfxplugin.Logger().Warn("halbackend: wait idle", "error", err)
		}
		b.retire(true)
	}
	if b.last == ft {
		b.last = nil
	}
	b.destroyFrameTexture(ft)
}

func (b *Backend) destroyFrameTexture(ft *frameTexture) {
	if ft.group != nil {
		b.device.DestroyBindGroup(ft.group)
	}
	if ft.view != nil {
		b.device.DestroyTextureView(ft.view)
	}
	if ft.tex != nil {
		b.device.DestroyTexture(ft.tex)
	}
}

// draw blits ft to the surface and presents it. Offscreen it does nothing.
func (b *Backend) draw(ft *frameTexture) error {
	if b.surface == nil {
		return nil
	}
	acquired, err := b.surface.AcquireTexture(nil)
	if err != nil {
		return fmt.Errorf("halbackend: acquire surface texture: %w", err)
	}
	view, err := b.device.CreateTextureView(acquired.Texture, &hal.TextureViewDescriptor{
		Label:         "surface_view",
		Format:        b.format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		b.surface.DiscardTexture(acquired.Texture)
		return fmt.Errorf("halbackend: create surface view: %w", err)
	}

	enc, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "blit_encoder"})
	if err != nil {
		b.device.DestroyTextureView(view)
		b.surface.DiscardTexture(acquired.Texture)
		return fmt.Errorf("halbackend: create command encoder: %w", err)
	}
	sub := submission{enc: enc, view: view}
	fail := func(err error) error {
		b.releaseSubmission(sub)
		b.surface.DiscardTexture(acquired.Texture)
		return err
	}

	if err := enc.BeginEncoding("blit"); err != nil {
		return fail(fmt.Errorf("halbackend: begin encoding: %w", err))
	}
	b.blit.record(enc, view, ft.group)
	if sub.buf, err = enc.EndEncoding(); err != nil {
		return fail(fmt.Errorf("halbackend: end encoding: %w", err))
	}
	if sub.index, err = b.queue.Submit([]hal.CommandBuffer{sub.buf}); err != nil {
		return fail(fmt.Errorf("halbackend: submit: %w", err))
	}
	b.inflight = append(b.inflight, sub)

	if acquired.Suboptimal {
		gfxplugin.Logger().Debug("halbackend: surface suboptimal")
	}
	if err := b.queue.Present(b.surface, acquired.Texture, nil); err != nil {
		return fmt.Errorf("halbackend: present: %w", err)
	}
	b.stats.Draws++
	return nil
}

// retire releases submissions the GPU has finished. With all set, every
// submission is released; the caller must have waited for the device.
func (b *Backend) retire(all bool) {
	if len(b.inflight) == 0 {
		return
	}
	var done uint64
	if !all {
		done = b.queue.PollCompleted()
	}
	keep := b.inflight[:0]
	for _, s := range b.inflight {
		if all || s.index <= done {
			b.releaseSubmission(s)
			continue
		}
		keep = append(keep, s)
	}
	clear(b.inflight[len(keep):])
	b.inflight = keep
}

func (b *Backend) releaseSubmission(s submission) {
	if s.buf != nil {
		b.device.FreeCommandBuffer(s.buf)
	}
	if s.enc != nil {
		s.enc.Destroy()
	}
	if s.view != nil {
		b.device.DestroyTextureView(s.view)
	}
}

// QuerySize returns the surface size.
func (b *Backend) QuerySize() (int, int) {
	if !b.inited {
		return 0, 0
	}
	return b.params.Width, b.params.Height
}

// Capabilities reports the adapter and presentation properties. HAL surfaces
// expose no image counts, so the count is the minimum the present mode needs.
// The refresh rate comes from the monitor.
func (b *Backend) Capabilities() display.Capabilities {
	images := 2
	if b.mode == hal.PresentModeMailbox {
		images = 3
	}
	return display.Capabilities{
		RefreshRate:        b.params.Refresh(),
		MaxSwapchainImages: images,
		Adapter:            adapterInfo(b.info),
		API:                b.info.Backend.String(),
	}
}

// Device returns the HAL device for the renderer.
func (b *Backend) Device() render.DeviceHandle {
	return deviceHandle{
		device:  b.device,
		queue:   b.queue,
		adapter: b.adapter,
		format:  b.format,
		info:    adapterInfo(b.info),
	}
}

// AdapterInfo returns the HAL description of the opened adapter.
func (b *Backend) AdapterInfo() gputypes.AdapterInfo { return b.info }

// Surfaced reports whether frames are drawn to a window surface.
func (b *Backend) Surfaced() bool { return b.surface != nil }

// Stats returns present counters.
func (b *Backend) Stats() Stats { return b.stats }

// TextureStats returns frame texture cache statistics.
func (b *Backend) TextureStats() cache.Stats {
	if b.textures == nil {
		return cache.Stats{}
	}
	return b.textures.Stats()
}

var (
	_ display.Backend           = (*Backend)(nil)
	_ gpucontext.DeviceProvider = deviceHandle{}
)
