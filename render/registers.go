package render

// VI register indices in a RegisterSnapshot.
const (
	VIStatus = iota
	VIOrigin
	VIWidth
	VIVIntr
	VIVCurrent
	VIBurst
	VIVSync
	VIHSync
	VILeap
	VIHStart
	VIVStart
	VIVBurst
	VIXScale
	VIYScale

	NumVIRegisters
)

// Pixel formats encoded in the low two bits of VI_STATUS.
const (
	VIFormatBlank    = 0
	VIFormatReserved = 1
	VIFormatRGBA5551 = 2
	VIFormatRGBA8888 = 3
)

// RegisterSnapshot is a copy of the video interface registers taken on the
// emulation goroutine. The emulator keeps mutating the live registers after
// a frame is handed off, so renderers only ever see snapshots.
type RegisterSnapshot struct {
	VI [NumVIRegisters]uint32
}

// Capture copies the live register block.
func Capture(live *[NumVIRegisters]uint32) RegisterSnapshot {
	if live == nil {
		return RegisterSnapshot{}
	}
	return RegisterSnapshot{VI: *live}
}

// Format returns the pixel format bits of VI_STATUS.
func (s RegisterSnapshot) Format() uint32 {
	return s.VI[VIStatus] & 3
}

// Blank reports whether the VI is not scanning out.
func (s RegisterSnapshot) Blank() bool {
	f := s.Format()
	return f == VIFormatBlank || f == VIFormatReserved
}

// Origin returns the framebuffer address in RDRAM.
func (s RegisterSnapshot) Origin() uint32 {
	return s.VI[VIOrigin] & 0xffffff
}

// LineWidth returns the framebuffer line width in pixels.
func (s RegisterSnapshot) LineWidth() int {
	return int(s.VI[VIWidth] & 0xfff)
}

// Lines returns the number of visible lines produced by the VI, derived from
// V_START and Y_SCALE. Zero when the registers describe an empty region.
func (s RegisterSnapshot) Lines() int {
	vStart := (s.VI[VIVStart] >> 16) & 0x3ff
	vEnd := s.VI[VIVStart] & 0x3ff
	if vEnd <= vStart {
		return 0
	}
	half := int(vEnd-vStart) / 2
	yScale := int(s.VI[VIYScale] & 0xfff)
	if yScale == 0 {
		return half
	}
	return half * yScale / 1024
}
