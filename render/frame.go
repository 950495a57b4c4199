// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

// RefKind classifies a FrameRef.
type RefKind uint8

const (
	// RefNone means no frame was produced.
	RefNone RefKind = iota

	// RefHWValid means the frame already lives in the hardware framebuffer
	// and must be presented without copying any pixels.
	RefHWValid

	// RefPixels means the reference points at CPU pixel data.
	RefPixels
)

// String returns the kind name.
func (k RefKind) String() string {
	switch k {
	case RefNone:
		return "none"
	case RefHWValid:
		return "hw-valid"
	case RefPixels:
		return "pixels"
	default:
		return "unknown"
	}
}

// FrameRef is a non-owning reference to a produced frame.
//
// The zero value is "no frame". HWFrameBufferValid is the sentinel for a
// frame that is already resident on the GPU. Any other value wraps pixel
// data owned by the renderer; the bytes stay valid until the renderer
// produces its next frame or its context is destroyed.
type FrameRef struct {
	pixels []byte
	hw     bool
}

// HWFrameBufferValid tells the display backend to present the framebuffer it
// already holds.
var HWFrameBufferValid = FrameRef{hw: true}

// PixelRef wraps pixel data. An empty slice yields the zero FrameRef.
func PixelRef(p []byte) FrameRef {
	if len(p) == 0 {
		return FrameRef{}
	}
	return FrameRef{pixels: p}
}

// Kind returns the classification of r.
func (r FrameRef) Kind() RefKind {
	switch {
	case r.hw:
		return RefHWValid
	case len(r.pixels) > 0:
		return RefPixels
	default:
		return RefNone
	}
}

// IsNone reports whether r carries no frame.
func (r FrameRef) IsNone() bool { return r.Kind() == RefNone }

// Pixels returns the referenced pixel data, or nil for the sentinel and the
// zero value.
func (r FrameRef) Pixels() []byte {
	if r.hw {
		return nil
	}
	return r.pixels
}

// Frame is a completed frame with its geometry. Stride is in bytes.
type Frame struct {
	Ref    FrameRef
	Width  int
	Height int
	Stride int
}
