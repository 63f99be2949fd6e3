package alloc

import (
	"log/slog"
	"unsafe"

	humanize "github.com/dustin/go-humanize"

	"github.com/joshuapare/hostmem/internal/checks"
	"github.com/joshuapare/hostmem/internal/format"
	"github.com/joshuapare/hostmem/internal/vmem"
)

// region is the reservation plumbing shared by Arena and Stack: offset
// arithmetic, commit-on-demand, header validation and fatal reporting.
type region struct {
	name string
	heap *vmem.Heap
	log  *slog.Logger

	allocated uintptr
	live      int
	counters  counters
}

// counters are the operation tallies surfaced through StrategyStats.
type counters struct {
	allocs      int
	frees       int
	reallocs    int
	splits      int
	merges      int
	growInPlace int
	relocations int
	commits     int
}

func newRegion(name string, size uintptr, log *slog.Logger) (region, error) {
	if log == nil {
		log = discardLogger
	}
	h, err := vmem.Reserve(size, nil)
	if err != nil {
		return region{}, err
	}
	log.Debug("reserved heap", "strategy", name, "size", humanize.IBytes(uint64(h.Size())))
	return region{name: name, heap: h, log: log}, nil
}

func (r *region) at(off uintptr) unsafe.Pointer { return r.heap.At(off) }

func (r *region) offset(p unsafe.Pointer) uintptr { return r.heap.Offset(p) }

func (r *region) header(payload uintptr) *format.Header {
	return (*format.Header)(r.at(payload - format.HeaderSize))
}

// block is the internal view of an allocation: its payload offset and the
// header in front of it. Callers of the public API only ever see payload
// pointers.
type block struct {
	payload uintptr
	h       *format.Header
}

func (r *region) block(p unsafe.Pointer) block {
	payload := r.offset(p)
	return block{payload: payload, h: r.header(payload)}
}

// start returns the offset of the first byte the block owns.
func (b block) start() uintptr { return b.h.BlockStart(b.payload) }

// payloadFor returns the aligned payload offset for a block starting at start.
func (r *region) payloadFor(start, align uintptr) uintptr {
	return format.PayloadOffset(r.heap.Addr(), start, align)
}

// OwnsPtr reports whether p lies inside the reservation.
func (r *region) OwnsPtr(p unsafe.Pointer) bool { return r.heap.OwnsPtr(p) }

// AllocatedSize returns the sum of live payload sizes.
func (r *region) AllocatedSize() uintptr { return r.allocated }

// Close releases the reservation.
func (r *region) Close() error { return r.heap.Release() }

// ensureCommitted grows the committed prefix to cover end. In debug builds
// the fresh pages receive the filler so that every free byte carries it.
func (r *region) ensureCommitted(end uintptr) {
	if end <= r.heap.Committed() {
		return
	}
	prev, err := r.heap.EnsureCommitted(end)
	if err != nil {
		r.fatal("commit", ErrCommit, "end", end, "cause", err)
	}
	r.counters.commits++
	if checks.Enabled {
		checks.Fill(r.at(prev), r.heap.Committed()-prev)
	}
	r.log.Debug("committed memory",
		"strategy", r.name,
		"committed", humanize.IBytes(uint64(r.heap.Committed())),
		"reserved", humanize.IBytes(uint64(r.heap.Size())))
}

// fillFree writes the filler over [from, to), clipped to committed memory.
func (r *region) fillFree(from, to uintptr) {
	to = min(to, r.heap.Committed())
	if from < to {
		checks.Fill(r.at(from), to-from)
	}
}

// expectFree asserts that [from, to), clipped to committed memory, still
// holds the filler.
func (r *region) expectFree(op string, from, to uintptr) {
	to = min(to, r.heap.Committed())
	if from < to && !checks.CheckUseAfterFree(r.at(from), to-from) {
		r.fatal(op, ErrUseAfterFree, "from", from, "to", to)
	}
}

// verify validates the header guard and the overflow canary of the payload
// at payload. It is a no-op in release builds.
func (r *region) verify(op string, payload uintptr, h *format.Header) {
	if !checks.Enabled {
		return
	}
	if h.Guard != format.Guard {
		r.fatal(op, ErrCorruptHeader, "payload", payload)
	}
	if !checks.CanaryIntact(r.at(payload + uintptr(h.Size))) {
		r.fatal(op, ErrOverflow, "payload", payload, "size", h.Size)
	}
}

// writeHeader stores a fresh header and, in debug builds, the canary.
func (r *region) writeHeader(payload, size, padding, align uintptr, flags Flags, slack uintptr) {
	*r.header(payload) = format.Header{
		Size:    uint64(size),
		Padding: uint32(padding),
		Align:   uint32(align),
		Flags:   uint32(flags),
		Slack:   uint32(slack),
		Guard:   format.Guard,
	}
	if checks.Enabled {
		checks.WriteCanary(r.at(payload + size))
	}
}

func (r *region) fatal(op string, err error, attrs ...any) {
	fatal(r.log, r.name+"."+op, err, attrs...)
}

// checkRequest rejects sizes and alignments no reservation of this region
// could satisfy, before any footprint arithmetic can wrap.
func (r *region) checkRequest(op string, size, align uintptr) {
	if reserved := r.heap.Size(); size > reserved || align > reserved {
		r.fatal(op, ErrOutOfMemory, "size", size, "align", align, "reserved", reserved)
	}
}

func (r *region) snapshot() StrategyStats {
	return StrategyStats{
		Name:        r.name,
		Allocated:   r.allocated,
		Live:        r.live,
		Committed:   r.heap.Committed(),
		Reserved:    r.heap.Size(),
		Allocs:      r.counters.allocs,
		Frees:       r.counters.frees,
		Reallocs:    r.counters.reallocs,
		Splits:      r.counters.splits,
		Merges:      r.counters.merges,
		GrowInPlace: r.counters.growInPlace,
		Relocations: r.counters.relocations,
		Commits:     r.counters.commits,
	}
}

// normalizeAlign validates align and raises it to the block alignment.
func normalizeAlign(log *slog.Logger, op string, align uintptr) uintptr {
	if align == 0 {
		return format.BlockAlign
	}
	if !format.IsPowerOfTwo(align) {
		fatal(log, op, ErrBadAlign, "align", align)
	}
	return max(align, format.BlockAlign)
}

// fatal logs the condition and panics with an *AssertionError.
func fatal(log *slog.Logger, op string, err error, attrs ...any) {
	log.Error("allocator assertion failed", append([]any{"op", op, "error", err}, attrs...)...)
	panic(&AssertionError{Op: op, Err: err})
}
