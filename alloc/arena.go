package alloc

import (
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/joshuapare/hostmem/internal/checks"
	"github.com/joshuapare/hostmem/internal/format"
)

// freeNode is overlaid on the first bytes of every free region. Links are
// heap offsets; format.NoNode terminates the list.
type freeNode struct {
	size uintptr // whole region, node included
	prev uintptr
	next uintptr
}

// nodeSize is the footprint of a freeNode and the smallest block an Arena
// hands out, so any freed block can host a node.
const nodeSize = unsafe.Sizeof(freeNode{})

// Arena is a free-list allocator over a single reservation. Blocks may be
// allocated and freed in any order; free neighbors are always merged.
//
// The free list is doubly linked and address ordered. head is a cursor into
// it, left on the most recently freed region: searches run forward from
// head, then backward from head.prev, and the first node that fits wins.
// The worst case is linear in the number of free regions.
//
// Arena is not safe for concurrent use; Slot serializes access.
type Arena struct {
	region
	head uintptr
}

// FreeRegion describes one node of an Arena's free list.
type FreeRegion struct {
	Off  uintptr
	Size uintptr
	Prev uintptr
	Next uintptr
}

// NewArena reserves size bytes and covers them with a single free node.
func NewArena(name string, size uintptr, log *slog.Logger) (*Arena, error) {
	if size < nodeSize {
		return nil, fmt.Errorf("%w: arena %q smaller than a free node (%d bytes)", ErrBadConfig, name, size)
	}
	r, err := newRegion(name, size, log)
	if err != nil {
		return nil, err
	}
	a := &Arena{region: r, head: 0}
	a.ensureCommitted(nodeSize)
	*a.node(0) = freeNode{size: a.heap.Size(), prev: format.NoNode, next: format.NoNode}
	return a, nil
}

func (a *Arena) node(off uintptr) *freeNode {
	return (*freeNode)(a.at(off))
}

// footprint is the arena block size for a payload: the format footprint,
// raised so the block can later become a free node.
func (a *Arena) footprint(padding, size uintptr) uintptr {
	return max(format.Footprint(padding, size), nodeSize)
}

func (a *Arena) blockSize(h *format.Header) uintptr {
	return a.footprint(uintptr(h.Padding), uintptr(h.Size)) + uintptr(h.Slack)
}

// Allocate carves size bytes aligned to align out of the first free node
// that fits. It panics with ErrOutOfMemory when none does.
func (a *Arena) Allocate(size, align uintptr, flags Flags) unsafe.Pointer {
	align = normalizeAlign(a.log, a.name+".allocate", align)
	a.checkRequest("allocate", size, align)
	need := a.footprint(0, size) + align - format.BlockAlign

	off, ok := a.findFit(need)
	if !ok {
		a.fatal("allocate", ErrOutOfMemory, "size", size, "align", align, "need", need)
	}

	n := a.node(off)
	avail, prev, next := n.size, n.prev, n.next

	payload := a.payloadFor(off, align)
	padding := payload - format.HeaderSize - off
	block := a.footprint(padding, size)

	var slack uintptr
	if rest := avail - block; rest < nodeSize {
		// Too small to ever hold a node: the block keeps it.
		slack = rest
		a.unlink(off, prev, next)
		a.ensureCommitted(off + block)
	} else {
		tail := off + block
		a.ensureCommitted(tail + nodeSize)
		*a.node(tail) = freeNode{size: rest, prev: prev, next: next}
		a.relink(off, tail, prev, next)
		a.counters.splits++
	}
	if checks.Enabled {
		a.expectFree("allocate", off+nodeSize, off+block)
	}

	a.writeHeader(payload, size, padding, align, flags, slack)
	a.allocated += size
	a.live++
	a.counters.allocs++
	return a.at(payload)
}

// Free returns the block at p to the free list, merging it with adjacent
// free regions.
func (a *Arena) Free(p unsafe.Pointer) {
	b := a.block(p)
	payload, h := b.payload, b.h
	a.verify("free", payload, h)

	a.allocated -= uintptr(h.Size)
	a.live--
	a.counters.frees++
	a.release(b.start(), a.blockSize(h))
}

// Reallocate resizes the block at p. Shrinking and same-size requests never
// move the block; growth moves it only when the memory that follows is not a
// large enough free region.
func (a *Arena) Reallocate(p unsafe.Pointer, size uintptr) unsafe.Pointer {
	b := a.block(p)
	payload, h := b.payload, b.h
	a.verify("reallocate", payload, h)
	a.checkRequest("reallocate", size, uintptr(h.Align))

	old := uintptr(h.Size)
	switch {
	case size == old:
		return p
	case size < old:
		a.counters.reallocs++
		a.shrink(payload, h, size)
		return p
	}

	a.counters.reallocs++
	if a.growInPlace(payload, h, size) {
		return p
	}

	np := a.Allocate(size, uintptr(h.Align), Flags(h.Flags))
	copy(unsafe.Slice((*byte)(np), old), unsafe.Slice((*byte)(p), old))
	a.Free(p)
	a.counters.relocations++
	a.log.Debug("relocated block", "strategy", a.name, "old", old, "new", size)
	return np
}

// WillRelocate reports whether Reallocate(p, size) would move the block.
func (a *Arena) WillRelocate(p unsafe.Pointer, size uintptr) bool {
	b := a.block(p)
	h := b.h
	if size <= uintptr(h.Size) {
		return false
	}
	if size > a.heap.Size() {
		return true
	}
	start := b.start()
	old := a.blockSize(h)
	used := a.footprint(uintptr(h.Padding), size)
	if used <= old {
		return false
	}
	end := start + old
	right := a.nodeAtOrAfter(end)
	return right != end || a.node(right).size < used-old
}

// Stats returns a snapshot of the arena's counters.
func (a *Arena) Stats() StrategyStats {
	s := a.snapshot()
	s.FreeNodes = len(a.FreeList())
	return s
}

// FreeList returns the free regions in address order.
func (a *Arena) FreeList() []FreeRegion {
	if a.head == format.NoNode {
		return nil
	}
	first := a.head
	for a.node(first).prev != format.NoNode {
		first = a.node(first).prev
	}
	var out []FreeRegion
	for off := first; off != format.NoNode; off = a.node(off).next {
		n := a.node(off)
		out = append(out, FreeRegion{Off: off, Size: n.size, Prev: n.prev, Next: n.next})
	}
	return out
}

// findFit returns a free node of at least need bytes.
func (a *Arena) findFit(need uintptr) (uintptr, bool) {
	if a.head == format.NoNode {
		return 0, false
	}
	for off := a.head; off != format.NoNode; off = a.node(off).next {
		if a.node(off).size >= need {
			return off, true
		}
	}
	for off := a.node(a.head).prev; off != format.NoNode; off = a.node(off).prev {
		if a.node(off).size >= need {
			return off, true
		}
	}
	return 0, false
}

// unlink removes the node at off whose links were prev and next.
func (a *Arena) unlink(off, prev, next uintptr) {
	if prev != format.NoNode {
		a.node(prev).next = next
	}
	if next != format.NoNode {
		a.node(next).prev = prev
	}
	if a.head == off {
		if next != format.NoNode {
			a.head = next
		} else {
			a.head = prev
		}
	}
}

// relink points the neighbors of a node that moved from old to cur at its
// new position.
func (a *Arena) relink(old, cur, prev, next uintptr) {
	if prev != format.NoNode {
		a.node(prev).next = cur
	}
	if next != format.NoNode {
		a.node(next).prev = cur
	}
	if a.head == old {
		a.head = cur
	}
}

// neighbors returns the closest free nodes below and above off, which must
// not itself be a node.
func (a *Arena) neighbors(off uintptr) (left, right uintptr) {
	cur := a.head
	if cur == format.NoNode {
		return format.NoNode, format.NoNode
	}
	if cur < off {
		for {
			next := a.node(cur).next
			if next == format.NoNode || next > off {
				return cur, next
			}
			cur = next
		}
	}
	for {
		prev := a.node(cur).prev
		if prev == format.NoNode || prev < off {
			return prev, cur
		}
		cur = prev
	}
}

// nodeAtOrAfter returns the lowest free node at or above off.
func (a *Arena) nodeAtOrAfter(off uintptr) uintptr {
	cur := a.head
	if cur == format.NoNode {
		return format.NoNode
	}
	if cur < off {
		for cur != format.NoNode && cur < off {
			cur = a.node(cur).next
		}
		return cur
	}
	for {
		prev := a.node(cur).prev
		if prev == format.NoNode || prev < off {
			return cur
		}
		cur = prev
	}
}

// release turns [start, start+length) into free memory, merging with the
// free regions on either side. The resulting node becomes head, so the next
// search starts from the most recently freed memory. It returns the offset of
// that node.
func (a *Arena) release(start, length uintptr) uintptr {
	left, right := a.neighbors(start)
	if checks.Enabled {
		a.fillFree(start, start+length)
	}

	off := start
	if left != format.NoNode && left+a.node(left).size == start {
		a.node(left).size += length
		off = left
		a.counters.merges++
	} else {
		a.ensureCommitted(start + nodeSize)
		*a.node(start) = freeNode{size: length, prev: left, next: right}
		if left != format.NoNode {
			a.node(left).next = start
		}
		if right != format.NoNode {
			a.node(right).prev = start
		}
	}

	if right != format.NoNode && off+a.node(off).size == right {
		r := *a.node(right)
		n := a.node(off)
		n.size += r.size
		n.next = r.next
		if r.next != format.NoNode {
			a.node(r.next).prev = off
		}
		if checks.Enabled {
			a.fillFree(right, right+nodeSize)
		}
		a.counters.merges++
	}

	a.head = off
	return off
}

// shrink cuts the payload at payload down to size. The freed tail becomes a
// free node only when it can hold one; otherwise it stays with the block as
// slack.
func (a *Arena) shrink(payload uintptr, h *format.Header, size uintptr) {
	start := h.BlockStart(payload)
	old := a.blockSize(h)
	used := a.footprint(uintptr(h.Padding), size)

	a.allocated -= uintptr(h.Size) - size
	h.Size = uint64(size)
	if tail := old - used; tail >= nodeSize {
		h.Slack = 0
		a.release(start+used, tail)
	} else {
		h.Slack = uint32(tail)
	}
	if checks.Enabled {
		checks.WriteCanary(a.at(payload + size))
	}
}

// growInPlace extends the payload at payload to size using its own slack
// and the free region right after it. It reports false, changing nothing,
// when that is not enough.
func (a *Arena) growInPlace(payload uintptr, h *format.Header, size uintptr) bool {
	start := h.BlockStart(payload)
	old := a.blockSize(h)
	used := a.footprint(uintptr(h.Padding), size)

	if used <= old {
		a.ensureCommitted(start + used)
		h.Slack = uint32(old - used)
	} else {
		end := start + old
		need := used - old
		if a.nodeAtOrAfter(end) != end {
			return false
		}
		r := *a.node(end)
		if r.size < need {
			return false
		}
		a.absorb(end, r, need)
		rest := r.size - need
		if rest >= nodeSize {
			h.Slack = 0
		} else {
			h.Slack = uint32(rest)
		}
	}

	a.allocated += size - uintptr(h.Size)
	h.Size = uint64(size)
	if checks.Enabled {
		checks.WriteCanary(a.at(payload + size))
	}
	a.counters.growInPlace++
	return true
}

// absorb takes need bytes from the front of the free node r at off. The node
// body is validated first so corruption surfaces before sizes are trusted.
// A remainder too small for a node is dropped from the list entirely.
func (a *Arena) absorb(off uintptr, r freeNode, need uintptr) {
	if checks.Enabled {
		a.expectFree("grow", off+nodeSize, off+r.size)
	}
	rest := r.size - need
	if rest < nodeSize {
		a.unlink(off, r.prev, r.next)
		a.ensureCommitted(off + need)
		return
	}
	moved := off + need
	a.ensureCommitted(moved + nodeSize)
	*a.node(moved) = freeNode{size: rest, prev: r.prev, next: r.next}
	a.relink(off, moved, r.prev, r.next)
}

var _ Strategy = (*Arena)(nil)
