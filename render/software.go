// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// Software renderer errors.
var (
	// ErrNoMemory is returned when the renderer has no RDRAM to scan out.
	ErrNoMemory = errors.New("render: no RDRAM attached")

	// ErrScanoutOutOfRange is returned when the VI registers describe a
	// framebuffer that does not fit in RDRAM.
	ErrScanoutOutOfRange = errors.New("render: scanout outside RDRAM")

	// ErrNotInitialized is returned when a frame is requested before Init.
	ErrNotInitialized = errors.New("render: renderer not initialized")
)

// Software is a CPU renderer that scans out the VI framebuffer from RDRAM.
//
// It does not rasterize display lists; it presents whatever the emulated
// RDP left in memory, scaled by the configured upscaling factor. That makes
// it useful as a reference renderer and for headless runs.
//
// The upscaled output buffer plays the role of a GPU resource: it is
// allocated lazily after ContextReset and dropped on ContextDestroy. The
// renderer asks for a cached context and acknowledges it when the buffer
// survived a reinit.
//
// RDRAM is expected in the host's word-swapped layout, where every 32-bit
// word is stored little-endian.
type Software struct {
	rdram    []byte
	env      Environment
	settings Settings

	scan *image.RGBA
	out  *image.RGBA

	frames uint64
	lists  uint64
	resets uint64
}

// NewSoftware creates a software renderer over rdram.
func NewSoftware(rdram []byte) *Software {
	return &Software{rdram: rdram}
}

// Init registers the hardware callback and negotiator with env.
func (s *Software) Init(env Environment) error {
	if len(s.rdram) == 0 {
		return ErrNoMemory
	}
	s.env = env
	s.loadSettings(env)

	env.SetHWRender(HWRenderCallback{
		ContextReset:   s.contextReset,
		ContextDestroy: s.contextDestroy,
		CacheContext:   true,
	})
	env.SetContextNegotiation(s)
	return nil
}

// loadSettings picks up settings changed since the last context.
func (s *Software) loadSettings(env Environment) {
	s.settings = env.Settings()
	if s.settings.UpscalingFactor < 1 {
		s.settings.UpscalingFactor = 1
	}
}

func (s *Software) contextReset() {
	s.resets++
	s.out = nil
	s.loadSettings(s.env)
}

func (s *Software) contextDestroy() {
	s.out = nil
	s.scan = nil
}

// RetainContext acknowledges a cached reinit when the output buffer is
// still allocated.
func (s *Software) RetainContext(env Environment) bool {
	if s.out == nil {
		return false
	}
	s.loadSettings(env)
	env.AcknowledgeCacheContext()
	return true
}

// BeginFrame starts a frame.
func (s *Software) BeginFrame() {}

// ProcessCommands counts the display list. Rasterization is left to the
// emulated RDP.
func (s *Software) ProcessCommands() error {
	s.lists++
	return nil
}

// CompleteFrame scans out the VI framebuffer described by regs.
func (s *Software) CompleteFrame(regs RegisterSnapshot) (Frame, error) {
	if s.env == nil {
		return Frame{}, ErrNotInitialized
	}
	if regs.Blank() {
		return Frame{}, nil
	}
	w, h := regs.LineWidth(), regs.Lines()
	if w == 0 || h == 0 {
		return Frame{}, nil
	}

	bpp := 2
	if regs.Format() == VIFormatRGBA8888 {
		bpp = 4
	}
	origin := int(regs.Origin())
	if origin+w*h*bpp > len(s.rdram) {
		return Frame{}, fmt.Errorf("%w: origin 0x%06x, %dx%d@%d", ErrScanoutOutOfRange, origin, w, h, bpp*8)
	}

	s.scanout(origin, w, h, bpp)
	src := s.cropped()

	f := s.scale()
	dw, dh := src.Dx()*f, src.Dy()*f
	if s.out == nil || s.out.Rect.Dx() != dw || s.out.Rect.Dy() != dh {
		s.out = image.NewRGBA(image.Rect(0, 0, dw, dh))
	}

	var scaler draw.Scaler = draw.NearestNeighbor
	if s.settings.VIBilinear && f > 1 {
		scaler = draw.ApproxBiLinear
	}
	scaler.Scale(s.out, s.out.Rect, s.scan, src, draw.Src, nil)

	s.frames++
	return Frame{
		Ref:    PixelRef(s.out.Pix),
		Width:  dw,
		Height: dh,
		Stride: s.out.Stride,
	}, nil
}

// scanout converts the framebuffer at origin into s.scan.
func (s *Software) scanout(origin, w, h, bpp int) {
	if s.scan == nil || s.scan.Rect.Dx() != w || s.scan.Rect.Dy() != h {
		s.scan = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	pix := s.scan.Pix
	for y := range h {
		row := pix[y*s.scan.Stride:]
		for x := range w {
			addr := origin + (y*w+x)*bpp
			d := row[x*4 : x*4+4 : x*4+4]
			if bpp == 4 {
				v := binary.LittleEndian.Uint32(s.rdram[addr:])
				d[0], d[1], d[2], d[3] = byte(v>>24), byte(v>>16), byte(v>>8), 0xff
				continue
			}
			v := binary.LittleEndian.Uint16(s.rdram[addr^2:])
			r, g, b := (v>>11)&0x1f, (v>>6)&0x1f, (v>>1)&0x1f
			d[0] = byte(r<<3 | r>>2)
			d[1] = byte(g<<3 | g>>2)
			d[2] = byte(b<<3 | b>>2)
			d[3] = 0xff
		}
	}
}

// cropped returns the scanout rectangle after overscan cropping.
func (s *Software) cropped() image.Rectangle {
	r := s.scan.Rect
	o := s.settings.Overscan
	if o <= 0 || 2*o >= r.Dx() || 2*o >= r.Dy() {
		return r
	}
	return r.Inset(o)
}

// scale returns the effective output scale factor.
func (s *Software) scale() int {
	f := s.settings.UpscalingFactor >> s.settings.DownscalingSteps
	if f < 1 {
		return 1
	}
	return f
}

// QueryCapabilities reports the adapter of the bound device.
func (s *Software) QueryCapabilities() Capabilities {
	name := "cpu"
	if s.env != nil {
		if d := s.env.Device(); d != nil {
			if n := d.AdapterInfo().Name; n != "" {
				name = n
			}
		}
	}
	return Capabilities{
		DeviceString:     "software scanout on " + name,
		APIVersionString: "vi-scanout 1.0",
	}
}

// Close drops all buffers.
func (s *Software) Close() {
	s.contextDestroy()
	s.env = nil
}

// Stats returns frame, display list and context reset counters.
func (s *Software) Stats() (frames, lists, resets uint64) {
	return s.frames, s.lists, s.resets
}
