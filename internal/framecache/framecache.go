// Package framecache keeps the last submitted frame so it can be shown
// again when the emulator produces nothing new.
package framecache

import (
	"sync/atomic"

	"github.com/gogpu/gfxplugin/render"
)

// Presenter forwards a frame to the display.
type Presenter interface {
	Present(ref render.FrameRef, width, height, stride int) error
}

// Outcome describes what PresentOrReplay did.
type Outcome uint8

const (
	// OutcomeNone means nothing was presented: no new frame was supplied
	// and none had been recorded.
	OutcomeNone Outcome = iota

	// OutcomePresented means a new frame was presented and recorded.
	OutcomePresented

	// OutcomeReplayed means the previously recorded frame was presented
	// again with its recorded geometry.
	OutcomeReplayed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomePresented:
		return "presented"
	case OutcomeReplayed:
		return "replayed"
	default:
		return "unknown"
	}
}

// Cache holds a reference to the most recent frame. Pixel data is never
// copied; the renderer that produced the frame keeps owning it.
//
// Record and PresentOrReplay run on the render worker. Last may be called
// from any goroutine.
type Cache struct {
	last atomic.Pointer[render.Frame]
}

// Record stores a frame reference. Recording the zero FrameRef is ignored
// so a missed frame never erases the last good one.
func (c *Cache) Record(ref render.FrameRef, width, height, stride int) {
	if ref.IsNone() {
		return
	}
	c.last.Store(&render.Frame{Ref: ref, Width: width, Height: height, Stride: stride})
}

// Last returns the recorded frame and whether one exists.
func (c *Cache) Last() (render.Frame, bool) {
	f := c.last.Load()
	if f == nil {
		return render.Frame{}, false
	}
	return *f, true
}

// Clear forgets the recorded frame.
func (c *Cache) Clear() {
	c.last.Store(nil)
}

// PresentOrReplay presents ref when it carries a frame (pixels or the
// hardware-valid sentinel) and records it. Otherwise it presents the last
// recorded frame unchanged. With nothing recorded it does nothing.
//
// The frame is recorded before it is handed to p, so a failed present can
// still be replayed.
func (c *Cache) PresentOrReplay(ref render.FrameRef, width, height, stride int, p Presenter) (Outcome, error) {
	if !ref.IsNone() {
		c.Record(ref, width, height, stride)
		return OutcomePresented, p.Present(ref, width, height, stride)
	}

	f, ok := c.Last()
	if !ok {
		return OutcomeNone, nil
	}
	return OutcomeReplayed, p.Present(f.Ref, f.Width, f.Height, f.Stride)
}
