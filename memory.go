package gfxplugin

// MemorySize is the amount of emulated RDRAM available to the renderer.
type MemorySize uint32

// The two RDRAM configurations a console can have.
const (
	MemorySize4MiB MemorySize = 4 << 20
	MemorySize8MiB MemorySize = 8 << 20
)

// String returns "4MiB" or "8MiB".
func (m MemorySize) String() string {
	switch m {
	case MemorySize4MiB:
		return "4MiB"
	case MemorySize8MiB:
		return "8MiB"
	default:
		return "unknown"
	}
}

// MemorySizer determines how much RDRAM the host provides. Hosts that know
// the size should report it directly; the probing sizers exist for hosts
// whose interface does not say.
type MemorySizer interface {
	MemorySize() MemorySize
}

// FixedMemorySizer reports a known size.
type FixedMemorySizer MemorySize

// MemorySize returns the fixed size.
func (f FixedMemorySizer) MemorySize() MemorySize { return MemorySize(f) }

// SliceMemorySizer decides from the length of the RDRAM slice handed over
// by the host.
type SliceMemorySizer []byte

// MemorySize reports 8 MiB when the slice covers the expansion pak range.
func (s SliceMemorySizer) MemorySize() MemorySize {
	if len(s) >= int(MemorySize8MiB) {
		return MemorySize8MiB
	}
	return MemorySize4MiB
}

// ProbeMemorySizer asks a probe whether the last 16 bytes below 8 MiB are
// backed by readable memory.
type ProbeMemorySizer struct {
	// Readable reports whether n bytes at offset are mapped and readable.
	Readable func(offset, n uint32) bool
}

// expansionProbeOffset is the start of the last 64 KiB page of the 8 MiB
// range.
const expansionProbeOffset = 0x7f0000

// MemorySize probes the expansion range. Without a probe it assumes 8 MiB.
func (p ProbeMemorySizer) MemorySize() MemorySize {
	if p.Readable == nil {
		return MemorySize8MiB
	}
	if p.Readable(expansionProbeOffset, 16) {
		return MemorySize8MiB
	}
	return MemorySize4MiB
}
