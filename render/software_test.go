// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"encoding/binary"
	"errors"
	"strings"
	"testing"
)

// testEnv is a minimal Environment that records registrations.
type testEnv struct {
	settings Settings
	cb       HWRenderCallback
	neg      ContextNegotiator
	acked    bool
}

func (e *testEnv) SetHWRender(cb HWRenderCallback) bool           { e.cb = cb; return true }
func (e *testEnv) SetContextNegotiation(n ContextNegotiator) bool { e.neg = n; return true }
func (e *testEnv) AcknowledgeCacheContext()                       { e.acked = true }
func (e *testEnv) Device() DeviceHandle                           { return NullDeviceHandle{} }
func (e *testEnv) Settings() Settings                             { return e.settings }

// viRegs returns registers describing a w x lines framebuffer at origin.
func viRegs(format uint32, origin uint32, w, lines int) RegisterSnapshot {
	var s RegisterSnapshot
	s.VI[VIStatus] = format
	s.VI[VIOrigin] = origin
	s.VI[VIWidth] = uint32(w)
	s.VI[VIVStart] = uint32(0x10<<16) | uint32(0x10+2*lines)
	s.VI[VIYScale] = 0x400
	return s
}

func newInitSoftware(t *testing.T, rdram []byte, settings Settings) (*Software, *testEnv) {
	t.Helper()
	env := &testEnv{settings: settings}
	s := NewSoftware(rdram)
	if err := s.Init(env); err != nil {
		t.Fatalf("Init() = %v", err)
	}
	return s, env
}

func TestSoftware_InitRegistersCallback(t *testing.T) {
	_, env := newInitSoftware(t, make([]byte, 1024), DefaultSettings())

	if env.cb.ContextReset == nil || env.cb.ContextDestroy == nil {
		t.Error("HWRenderCallback hooks not registered")
	}
	if !env.cb.CacheContext {
		t.Error("Software should request a cached context")
	}
	if env.neg == nil {
		t.Error("negotiator not registered")
	}
}

func TestSoftware_InitWithoutMemory(t *testing.T) {
	s := NewSoftware(nil)
	if err := s.Init(&testEnv{}); !errors.Is(err, ErrNoMemory) {
		t.Errorf("Init() = %v, want ErrNoMemory", err)
	}
}

func TestSoftware_CompleteFrameBeforeInit(t *testing.T) {
	s := NewSoftware(make([]byte, 64))
	if _, err := s.CompleteFrame(RegisterSnapshot{}); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("CompleteFrame() = %v, want ErrNotInitialized", err)
	}
}

func TestSoftware_BlankProducesNoFrame(t *testing.T) {
	s, _ := newInitSoftware(t, make([]byte, 1024), DefaultSettings())
	f, err := s.CompleteFrame(viRegs(VIFormatBlank, 0, 4, 4))
	if err != nil {
		t.Fatal(err)
	}
	if !f.Ref.IsNone() {
		t.Errorf("blank VI produced %v frame", f.Ref.Kind())
	}
}

func TestSoftware_Scanout16(t *testing.T) {
	const w, h = 4, 2
	rdram := make([]byte, 256)
	// Pure red in RGBA5551 for pixel (1, 0), word-swapped halfword layout.
	addr := 1 * 2
	binary.LittleEndian.PutUint16(rdram[addr^2:], 0x1f<<11|1)

	s, _ := newInitSoftware(t, rdram, DefaultSettings())
	f, err := s.CompleteFrame(viRegs(VIFormatRGBA5551, 0, w, h))
	if err != nil {
		t.Fatal(err)
	}
	if f.Width != w || f.Height != h || f.Stride != w*4 {
		t.Fatalf("frame = %dx%d stride %d, want %dx%d stride %d", f.Width, f.Height, f.Stride, w, h, w*4)
	}
	px := f.Ref.Pixels()[4:8]
	if px[0] != 0xff || px[1] != 0 || px[2] != 0 || px[3] != 0xff {
		t.Errorf("pixel(1,0) = %v, want opaque red", px)
	}
}

func TestSoftware_Scanout32Upscaled(t *testing.T) {
	const w, h = 2, 2
	rdram := make([]byte, 64)
	binary.LittleEndian.PutUint32(rdram[0:], 0x00ff00ff) // green

	settings := DefaultSettings()
	settings.UpscalingFactor = 2
	settings.VIBilinear = false
	s, _ := newInitSoftware(t, rdram, settings)

	f, err := s.CompleteFrame(viRegs(VIFormatRGBA8888, 0, w, h))
	if err != nil {
		t.Fatal(err)
	}
	if f.Width != 4 || f.Height != 4 {
		t.Fatalf("frame = %dx%d, want 4x4", f.Width, f.Height)
	}
	// (1,1) in the output maps to source pixel (0,0).
	off := 1*f.Stride + 1*4
	px := f.Ref.Pixels()[off : off+4]
	if px[0] != 0 || px[1] != 0xff || px[2] != 0 {
		t.Errorf("pixel(1,1) = %v, want green", px)
	}
}

func TestSoftware_ScanoutOutOfRange(t *testing.T) {
	s, _ := newInitSoftware(t, make([]byte, 16), DefaultSettings())
	_, err := s.CompleteFrame(viRegs(VIFormatRGBA8888, 8, 4, 4))
	if !errors.Is(err, ErrScanoutOutOfRange) {
		t.Errorf("CompleteFrame() = %v, want ErrScanoutOutOfRange", err)
	}
}

func TestSoftware_RetainContext(t *testing.T) {
	s, env := newInitSoftware(t, make([]byte, 256), DefaultSettings())

	if s.RetainContext(env) {
		t.Error("RetainContext() = true before any frame was produced")
	}

	if _, err := s.CompleteFrame(viRegs(VIFormatRGBA5551, 0, 4, 4)); err != nil {
		t.Fatal(err)
	}
	if !s.RetainContext(env) || !env.acked {
		t.Error("RetainContext() should acknowledge once the output buffer exists")
	}

	env.cb.ContextReset()
	env.acked = false
	if s.RetainContext(env) || env.acked {
		t.Error("RetainContext() acknowledged after ContextReset dropped the buffer")
	}
	if _, _, resets := s.Stats(); resets != 1 {
		t.Errorf("resets = %d, want 1", resets)
	}
}

func TestSoftware_QueryCapabilities(t *testing.T) {
	s, _ := newInitSoftware(t, make([]byte, 16), DefaultSettings())
	caps := s.QueryCapabilities()
	if !strings.Contains(caps.DeviceString, "cpu") {
		t.Errorf("DeviceString = %q, want adapter name", caps.DeviceString)
	}
	if caps.APIVersionString == "" {
		t.Error("APIVersionString is empty")
	}
}
