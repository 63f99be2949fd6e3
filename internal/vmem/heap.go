package vmem

import (
	"fmt"
	"os"
	"unsafe"
)

// MinCommit is the smallest extension Commit hands to the OS. Requests are
// rounded up to it so that many small commits collapse into few syscalls.
const MinCommit = 1 << 20

// Heap is a reserved virtual address range [Base, Base+Size) with a committed
// prefix [Base, Base+Committed).
type Heap struct {
	base      unsafe.Pointer
	size      uintptr
	committed uintptr
}

// PageSize returns the OS page size used to round reservations.
func PageSize() uintptr {
	return uintptr(os.Getpagesize())
}

// Reserve claims size bytes of address space, rounded up to whole pages.
// If base is non-nil the range must start exactly there.
func Reserve(size uintptr, base unsafe.Pointer) (*Heap, error) {
	if size == 0 {
		return nil, ErrBadSize
	}
	size = alignUp(size, PageSize())

	p, err := reserve(base, size)
	if err != nil {
		return nil, err
	}
	if base != nil && p != base {
		_ = release(p, size)
		return nil, fmt.Errorf("%w: wanted %p, got %p", ErrBaseUnavailable, base, p)
	}
	return &Heap{base: p, size: size}, nil
}

// Base returns the first address of the reservation.
func (h *Heap) Base() unsafe.Pointer { return h.base }

// Addr returns Base as an integer, for alignment arithmetic.
func (h *Heap) Addr() uintptr { return uintptr(h.base) }

// Size returns the number of reserved bytes.
func (h *Heap) Size() uintptr { return h.size }

// Committed returns the length of the usable prefix.
func (h *Heap) Committed() uintptr { return h.committed }

// Commit makes at least extra more bytes usable, contiguous with the already
// committed prefix. The extension is rounded up to MinCommit and clamped to
// the reservation. It returns the committed length before the call.
func (h *Heap) Commit(extra uintptr) (uintptr, error) {
	prev := h.committed
	if extra == 0 {
		return prev, nil
	}
	if extra > h.size-prev {
		return prev, fmt.Errorf("%w: committed=%d extra=%d size=%d", ErrExhausted, prev, extra, h.size)
	}

	grow := alignUp(extra, MinCommit)
	if grow > h.size-prev {
		grow = h.size - prev
	}
	if err := commit(h.At(prev), grow); err != nil {
		return prev, err
	}
	h.committed = prev + grow
	return prev, nil
}

// EnsureCommitted commits enough memory for the prefix to reach end.
// It returns the committed length before the call.
func (h *Heap) EnsureCommitted(end uintptr) (uintptr, error) {
	if end <= h.committed {
		return h.committed, nil
	}
	return h.Commit(end - h.committed)
}

// OwnsPtr reports whether p lies inside the reservation.
func (h *Heap) OwnsPtr(p unsafe.Pointer) bool {
	addr := uintptr(p)
	return addr >= h.Addr() && addr-h.Addr() < h.size
}

// At returns the address off bytes past Base.
func (h *Heap) At(off uintptr) unsafe.Pointer {
	return unsafe.Add(h.base, off)
}

// Offset returns the distance of p from Base. p must be owned by h.
func (h *Heap) Offset(p unsafe.Pointer) uintptr {
	return uintptr(p) - h.Addr()
}

// Release returns the whole reservation to the OS. The Heap must not be used
// afterwards.
func (h *Heap) Release() error {
	if h.base == nil {
		return nil
	}
	err := release(h.base, h.size)
	h.base = nil
	h.committed = 0
	return err
}

func alignUp(n, a uintptr) uintptr {
	return (n + a - 1) &^ (a - 1)
}
