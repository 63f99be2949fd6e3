package format

import (
	"unsafe"

	"github.com/joshuapare/hostmem/internal/checks"
)

// Header immediately precedes every payload. It is the only record of a
// block's size, flags and geometry; callers never pass them back in.
type Header struct {
	Size    uint64 // payload bytes
	Padding uint32 // bytes between block start and header
	Align   uint32 // requested payload alignment
	Flags   uint32 // effective allocation flags
	Slack   uint32 // bytes owned by the block past its minimal footprint
	Guard   uint64
}

var _ [HeaderSize - unsafe.Sizeof(Header{})]struct{}

// HeaderOf returns the header of the payload at p.
func HeaderOf(p unsafe.Pointer) *Header {
	return (*Header)(unsafe.Add(p, -HeaderSize))
}

// Footprint returns the smallest 8-byte multiple that holds the padding,
// header, size payload bytes and the canary.
func Footprint(padding, size uintptr) uintptr {
	return Align8(padding + HeaderSize + size + checks.CanarySize)
}

// PayloadOffset returns the offset of the payload of a block starting at
// start, aligned to align. addr is the absolute address of offset zero so that
// alignment is computed on real addresses.
func PayloadOffset(addr, start, align uintptr) uintptr {
	return AlignUp(addr+start+HeaderSize, align) - addr
}

// BlockStart returns the offset of the block that holds the payload at
// payload.
func (h *Header) BlockStart(payload uintptr) uintptr {
	return payload - HeaderSize - uintptr(h.Padding)
}

// Footprint returns the minimal footprint of the block described by h.
func (h *Header) Footprint() uintptr {
	return Footprint(uintptr(h.Padding), uintptr(h.Size))
}
