package alloc

import (
	"errors"
	"log/slog"
	"unsafe"

	"github.com/joshuapare/hostmem/internal/format"
)

// Allocator dispatches requests across a fixed set of slots. The calling
// thread picks the slot for new blocks; frees and resizes find the owning
// slot from the block itself, so a block may be released from any goroutine.
//
// All methods are safe for concurrent use. At most one slot lock is held at
// a time.
type Allocator struct {
	cfg   Config
	slots []*Slot
	shard ShardFunc
	log   *slog.Logger
}

// New builds an allocator. A nil cfg means DefaultConfig.
func New(cfg *Config, opts ...Option) (*Allocator, error) {
	if cfg == nil {
		cfg = &DefaultConfig
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Allocator{
		cfg:   *cfg,
		shard: ThreadID,
		log:   discardLogger,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.slots = make([]*Slot, 0, cfg.Slots)
	for i := range cfg.Slots {
		s, err := newSlot(i, &a.cfg, a.log)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.slots = append(a.slots, s)
	}
	a.log.Debug("allocator ready", "slots", cfg.Slots, "big_threshold", cfg.BigObjectThreshold)
	return a, nil
}

// Config returns the configuration the allocator was built with.
func (a *Allocator) Config() Config { return a.cfg }

// NumSlots returns the number of slots.
func (a *Allocator) NumSlots() int { return len(a.slots) }

// Slot returns slot i.
func (a *Allocator) Slot(i int) *Slot { return a.slots[i] }

// CurrentSlot returns the index of the slot the calling thread maps to.
func (a *Allocator) CurrentSlot() int {
	n := len(a.slots)
	i := a.shard() % n
	if i < 0 {
		i += n
	}
	return i
}

// Allocate returns size bytes from the calling thread's slot. See
// allocateIn for the dispatch rules.
func (a *Allocator) Allocate(size, align uintptr, flags Flags) unsafe.Pointer {
	return a.allocateIn(a.CurrentSlot(), size, align, flags)
}

// Free releases the block at p. A nil p is ignored.
func (a *Allocator) Free(p unsafe.Pointer) {
	a.freeFrom(a.CurrentSlot(), p)
}

// Reallocate resizes the block at p. The result may differ from p; callers
// must use it. A nil p behaves like Allocate with FlagNone.
func (a *Allocator) Reallocate(p unsafe.Pointer, size uintptr) unsafe.Pointer {
	return a.reallocateFrom(a.CurrentSlot(), p, size, FlagNone)
}

// WillRelocate reports whether Reallocate(p, size) would move the block.
func (a *Allocator) WillRelocate(p unsafe.Pointer, size uintptr) bool {
	return a.willRelocateFrom(a.CurrentSlot(), p, size)
}

// AllocatedSize returns the live payload bytes across every slot.
func (a *Allocator) AllocatedSize() uintptr {
	var n uintptr
	for _, s := range a.slots {
		n += s.AllocatedSize()
	}
	return n
}

// SlotAllocatedSize returns the live payload bytes of slot i.
func (a *Allocator) SlotAllocatedSize(i int) uintptr {
	return a.slots[i].AllocatedSize()
}

// Stats returns a snapshot of every slot.
func (a *Allocator) Stats() Stats {
	out := Stats{Slots: make([]SlotStats, 0, len(a.slots))}
	for _, s := range a.slots {
		out.Slots = append(out.Slots, s.Stats())
	}
	return out
}

// Close releases every reservation. Outstanding blocks become invalid.
func (a *Allocator) Close() error {
	var errs []error
	for _, s := range a.slots {
		errs = append(errs, s.close())
	}
	a.slots = nil
	return errors.Join(errs...)
}

// allocateIn dispatches to slot idx: scratch stack, persistent stack, big
// arena, small arena, in that order. Requests at or above the big-object
// threshold are promoted to the big arena and recorded as such.
func (a *Allocator) allocateIn(idx int, size, align uintptr, flags Flags) unsafe.Pointer {
	if size >= a.cfg.BigObjectThreshold {
		flags |= FlagBig
	}
	s := a.slots[idx]
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strategies[KindOf(flags)].Allocate(size, align, flags)
}

func (a *Allocator) freeFrom(home int, p unsafe.Pointer) {
	if p == nil {
		return
	}
	s, k := a.owner(home, p)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strategies[k].Free(p)
}

func (a *Allocator) reallocateFrom(home int, p unsafe.Pointer, size uintptr, flags Flags) unsafe.Pointer {
	if p == nil {
		return a.allocateIn(home, size, 0, flags)
	}
	s, k := a.owner(home, p)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strategies[k].Reallocate(p, size)
}

func (a *Allocator) willRelocateFrom(home int, p unsafe.Pointer, size uintptr) bool {
	if p == nil {
		return true
	}
	s, k := a.owner(home, p)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strategies[k].WillRelocate(p, size)
}

// owner finds the slot holding p. The block's own header names the strategy
// kind; the home slot is checked first, then every other slot, by address
// range only. Ranges never change after construction, so no lock is needed.
//
// Every slot is checked, the last one included, and a pointer no slot owns
// is fatal rather than attributed to the last slot by elimination.
func (a *Allocator) owner(home int, p unsafe.Pointer) (*Slot, Kind) {
	k := KindOf(FlagsOf(p))
	if s := a.slots[home]; s.strategies[k].OwnsPtr(p) {
		return s, k
	}
	for i, s := range a.slots {
		if i != home && s.strategies[k].OwnsPtr(p) {
			return s, k
		}
	}
	fatal(a.log, "owner", ErrForeignPointer, "ptr", p, "kind", k.String())
	return nil, k
}

// FlagsOf returns the flags recorded in the header of the block at p.
func FlagsOf(p unsafe.Pointer) Flags {
	return Flags(format.HeaderOf(p).Flags)
}

// SizeOf returns the payload size recorded in the header of the block at p.
func SizeOf(p unsafe.Pointer) uintptr {
	return uintptr(format.HeaderOf(p).Size)
}
