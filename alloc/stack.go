package alloc

import (
	"log/slog"
	"unsafe"

	"github.com/joshuapare/hostmem/internal/checks"
	"github.com/joshuapare/hostmem/internal/format"
)

// Stack is a LIFO bump allocator. Allocations advance top; only the block
// that ends at top may be freed or resized, and resizing never moves it.
// Freeing or resizing any other block is fatal.
//
// Stack is not safe for concurrent use; Slot serializes access.
type Stack struct {
	region
	top uintptr
}

// NewStack reserves size bytes for a stack. Nothing is committed until the
// first allocation.
func NewStack(name string, size uintptr, log *slog.Logger) (*Stack, error) {
	r, err := newRegion(name, size, log)
	if err != nil {
		return nil, err
	}
	return &Stack{region: r}, nil
}

// Top returns the offset of the first unused byte.
func (s *Stack) Top() uintptr { return s.top }

// Allocate places a new block at top.
func (s *Stack) Allocate(size, align uintptr, flags Flags) unsafe.Pointer {
	align = normalizeAlign(s.log, s.name+".allocate", align)
	s.checkRequest("allocate", size, align)
	start := s.top
	payload := s.payloadFor(start, align)
	padding := payload - format.HeaderSize - start
	end := start + format.Footprint(padding, size)
	if end > s.heap.Size() || end < start {
		s.fatal("allocate", ErrOutOfMemory, "size", size, "top", s.top, "reserved", s.heap.Size())
	}

	s.ensureCommitted(end)
	if checks.Enabled {
		s.expectFree("allocate", start, end)
	}
	s.writeHeader(payload, size, padding, align, flags, 0)
	s.top = end
	s.allocated += size
	s.live++
	s.counters.allocs++
	return s.at(payload)
}

// IsTop reports whether p is the most recent live allocation.
func (s *Stack) IsTop(p unsafe.Pointer) bool {
	payload := s.offset(p)
	return s.end(payload, s.header(payload)) == s.top
}

// Free pops the block at p, which must be the top block.
func (s *Stack) Free(p unsafe.Pointer) {
	b := s.block(p)
	payload, h := b.payload, b.h
	s.verify("free", payload, h)
	s.expectTop("free", payload, h)

	// The debug fill below overwrites the header.
	s.allocated -= uintptr(h.Size)
	s.live--
	s.counters.frees++

	start := b.start()
	if checks.Enabled {
		s.fillFree(start, s.top)
	}
	s.top = start
}

// Reallocate resizes the top block in place.
func (s *Stack) Reallocate(p unsafe.Pointer, size uintptr) unsafe.Pointer {
	b := s.block(p)
	payload, h := b.payload, b.h
	s.verify("reallocate", payload, h)
	s.expectTop("reallocate", payload, h)
	s.checkRequest("reallocate", size, uintptr(h.Align))

	if size == uintptr(h.Size) {
		return p
	}
	s.counters.reallocs++

	newEnd := format.Align8(payload + size + checks.CanarySize)
	if newEnd > s.heap.Size() || newEnd < payload {
		s.fatal("reallocate", ErrOutOfMemory, "size", size, "top", s.top, "reserved", s.heap.Size())
	}
	if newEnd > s.top {
		s.ensureCommitted(newEnd)
		if checks.Enabled {
			s.expectFree("reallocate", s.top, newEnd)
		}
		s.counters.growInPlace++
	} else if checks.Enabled {
		s.fillFree(newEnd, s.top)
	}

	s.allocated = s.allocated - uintptr(h.Size) + size
	h.Size = uint64(size)
	if checks.Enabled {
		checks.WriteCanary(s.at(payload + size))
	}
	s.top = newEnd
	return p
}

// WillRelocate is always false: stack blocks never move.
func (s *Stack) WillRelocate(unsafe.Pointer, uintptr) bool { return false }

// Stats returns a snapshot of the stack's counters.
func (s *Stack) Stats() StrategyStats { return s.snapshot() }

func (s *Stack) end(payload uintptr, h *format.Header) uintptr {
	return format.Align8(payload + uintptr(h.Size) + checks.CanarySize)
}

func (s *Stack) expectTop(op string, payload uintptr, h *format.Header) {
	if end := s.end(payload, h); end != s.top {
		s.fatal(op, ErrNotTop, "payload", payload, "end", end, "top", s.top)
	}
}

var _ Strategy = (*Stack)(nil)
