package alloc

import "unsafe"

// Flags select the memory class of an allocation. Persist and Scratch
// include the Big bit, so a class matches when flags&F == F and the checks
// must run from the most specific class down.
type Flags uint32

const (
	FlagNone    Flags = 0
	FlagBig     Flags = 1 << 0
	FlagPersist Flags = 1<<1 | FlagBig
	FlagScratch Flags = 1<<2 | FlagBig
)

// Has reports whether every bit of c is set in f.
func (f Flags) Has(c Flags) bool { return f&c == c }

func (f Flags) String() string {
	switch {
	case f == FlagNone:
		return "none"
	case f.Has(FlagScratch):
		return "scratch"
	case f.Has(FlagPersist):
		return "persist"
	default:
		return "big"
	}
}

// Kind names one of the four strategies inside a slot.
type Kind uint8

const (
	KindSmall Kind = iota
	KindBig
	KindPersist
	KindScratch

	numKinds = 4
)

var kindNames = [numKinds]string{"small", "big", "persist", "scratch"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// KindOf returns the strategy that serves flags, in priority order
// scratch, persist, big, small.
func KindOf(flags Flags) Kind {
	switch {
	case flags.Has(FlagScratch):
		return KindScratch
	case flags.Has(FlagPersist):
		return KindPersist
	case flags.Has(FlagBig):
		return KindBig
	default:
		return KindSmall
	}
}

// Handle is the allocation surface shared by Allocator, Thread, Arena and
// Stack. Generic containers take a Handle and stay agnostic of the strategy
// behind it.
type Handle interface {
	// Allocate returns size uninitialized bytes aligned to align. An align
	// of zero means the natural 8-byte block alignment.
	Allocate(size, align uintptr, flags Flags) unsafe.Pointer

	// Free releases the block at p.
	Free(p unsafe.Pointer)

	// Reallocate resizes the block at p and returns its possibly new address.
	Reallocate(p unsafe.Pointer, size uintptr) unsafe.Pointer

	// WillRelocate reports whether Reallocate(p, size) would move the block.
	WillRelocate(p unsafe.Pointer, size uintptr) bool
}

// Strategy is a single heap-backed allocator owned by a slot.
type Strategy interface {
	Handle

	// OwnsPtr reports whether p lies inside this strategy's reservation.
	// It reads only immutable state and needs no lock.
	OwnsPtr(p unsafe.Pointer) bool

	// AllocatedSize returns the sum of live payload sizes.
	AllocatedSize() uintptr

	// Stats returns a snapshot of the strategy's counters.
	Stats() StrategyStats

	// Close releases the backing reservation.
	Close() error
}
