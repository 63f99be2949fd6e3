package alloc

import "unsafe"

// ForceStackDepth bounds the nesting of PushForceFlags.
const ForceStackDepth = 256

// Thread is a per-goroutine view of an Allocator. It pins the slot chosen
// when it was created and carries the forced-flags stack: flags installed
// here are ORed into every allocation made through the Thread, so nested
// code (containers in particular) inherits the caller's memory class without
// being told about it.
//
// A Thread must not be shared between goroutines.
type Thread struct {
	a      *Allocator
	slot   int
	forced Flags
	depth  int
	stack  [ForceStackDepth]Flags
}

// Thread returns a handle bound to the calling thread's slot.
func (a *Allocator) Thread() *Thread {
	return &Thread{a: a, slot: a.CurrentSlot()}
}

// ThreadOn returns a handle bound to slot i.
func (a *Allocator) ThreadOn(i int) *Thread {
	return &Thread{a: a, slot: i % len(a.slots)}
}

// Allocator returns the allocator behind t.
func (t *Thread) Allocator() *Allocator { return t.a }

// Slot returns the index of the pinned slot.
func (t *Thread) Slot() int { return t.slot }

// Allocate allocates from the pinned slot with flags|CurrentForceFlags().
func (t *Thread) Allocate(size, align uintptr, flags Flags) unsafe.Pointer {
	return t.a.allocateIn(t.slot, size, align, flags|t.forced)
}

// Free releases the block at p, wherever it was allocated.
func (t *Thread) Free(p unsafe.Pointer) {
	t.a.freeFrom(t.slot, p)
}

// Reallocate resizes the block at p. The block keeps the flags it was
// created with; a nil p allocates with the forced flags.
func (t *Thread) Reallocate(p unsafe.Pointer, size uintptr) unsafe.Pointer {
	return t.a.reallocateFrom(t.slot, p, size, t.forced)
}

// WillRelocate reports whether Reallocate(p, size) would move the block.
func (t *Thread) WillRelocate(p unsafe.Pointer, size uintptr) bool {
	return t.a.willRelocateFrom(t.slot, p, size)
}

// CurrentForceFlags returns the flags currently forced on allocations.
func (t *Thread) CurrentForceFlags() Flags { return t.forced }

// ForceFlags replaces the current forced flags without touching the stack.
func (t *Thread) ForceFlags(flags Flags) { t.forced = flags }

// PushForceFlags saves the current forced flags and installs flags.
func (t *Thread) PushForceFlags(flags Flags) {
	if t.depth == ForceStackDepth {
		fatal(t.a.log, "push_force_flags", ErrForceStackOverflow, "depth", t.depth)
	}
	t.stack[t.depth] = t.forced
	t.depth++
	t.forced = flags
}

// PushForceFlagsOf forces the flags of the existing block at p, so that
// follow-up allocations land in the same memory class.
func (t *Thread) PushForceFlagsOf(p unsafe.Pointer) {
	t.PushForceFlags(FlagsOf(p))
}

// PopForceFlags restores the forced flags saved by the matching push.
func (t *Thread) PopForceFlags() {
	if t.depth == 0 {
		fatal(t.a.log, "pop_force_flags", ErrForceStackUnderflow)
	}
	t.depth--
	t.forced = t.stack[t.depth]
}

// ResetForceFlags clears the forced flags and empties the stack.
func (t *Thread) ResetForceFlags() {
	t.forced = FlagNone
	t.depth = 0
}

// ForceDepth returns the number of saved entries on the stack.
func (t *Thread) ForceDepth() int { return t.depth }

var (
	_ Handle = (*Allocator)(nil)
	_ Handle = (*Thread)(nil)
)
