package alloc

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sys/cpu"
)

// Slot is one shard: a small-object arena, a big-object arena, a persistent
// stack and a scratch stack behind a single lock. Every operation on any of
// the four holds the lock for its whole duration.
type Slot struct {
	mu         sync.Mutex
	index      int
	strategies [numKinds]Strategy
	_          cpu.CacheLinePad
}

func newSlot(index int, cfg *Config, log *slog.Logger) (*Slot, error) {
	s := &Slot{index: index}
	for k := range Kind(numKinds) {
		name := fmt.Sprintf("slot%d/%s", index, k)
		var (
			st  Strategy
			err error
		)
		switch k {
		case KindSmall, KindBig:
			st, err = NewArena(name, cfg.heapSize(k), log)
		default:
			st, err = NewStack(name, cfg.heapSize(k), log)
		}
		if err != nil {
			_ = s.close()
			return nil, fmt.Errorf("slot %d: %s: %w", index, k, err)
		}
		s.strategies[k] = st
	}
	return s, nil
}

// Index returns the slot's position in its allocator.
func (s *Slot) Index() int { return s.index }

// Strategy returns the strategy of kind k. Callers must hold no expectation
// of exclusive access; use the allocator's methods for mutation.
func (s *Slot) Strategy(k Kind) Strategy { return s.strategies[k] }

// AllocatedSize returns the live payload bytes across the slot's strategies.
func (s *Slot) AllocatedSize() uintptr {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n uintptr
	for _, st := range s.strategies {
		n += st.AllocatedSize()
	}
	return n
}

// Stats returns a snapshot of the slot's strategies.
func (s *Slot) Stats() SlotStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := SlotStats{Index: s.index}
	for k, st := range s.strategies {
		ss := st.Stats()
		ss.Kind = Kind(k)
		out.Strategies = append(out.Strategies, ss)
	}
	return out
}

func (s *Slot) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for k, st := range s.strategies {
		if st == nil {
			continue
		}
		errs = append(errs, st.Close())
		s.strategies[k] = nil
	}
	return errors.Join(errs...)
}
