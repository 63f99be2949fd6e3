//go:build memdebug

package alloc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/hostmem/internal/checks"
	"github.com/joshuapare/hostmem/internal/format"
)

func poke(p unsafe.Pointer, off uintptr, v byte) {
	*(*byte)(unsafe.Add(p, off)) = v
}

func requireFilled(t *testing.T, p unsafe.Pointer, n uintptr) {
	t.Helper()
	require.True(t, checks.CheckUseAfterFree(p, n), "expected %d filler bytes at %p", n, p)
}

// TestDebug_FreshMemoryIsFilled tests that newly handed out payloads carry
// the filler, so reads of uninitialized memory stand out.
func TestDebug_FreshMemoryIsFilled(t *testing.T) {
	a := newTestArena(t, 1<<20)
	s := newTestStack(t, 1<<20)

	requireFilled(t, a.Allocate(100, 8, FlagNone), 100)
	requireFilled(t, s.Allocate(100, 8, FlagNone), 100)
}

func TestDebug_FreeFillsMemory(t *testing.T) {
	a := newTestArena(t, 1<<20)

	p := a.Allocate(256, 8, FlagNone)
	guard := a.Allocate(8, 8, FlagNone)
	fillPattern(p, 256, 1)
	a.Free(p)

	// The first bytes of the block now hold a free node; the payload does not.
	requireFilled(t, p, 256)
	a.Free(guard)
}

func TestDebug_OverflowDetected(t *testing.T) {
	t.Run("arena free", func(t *testing.T) {
		a := newTestArena(t, 1<<20)
		p := a.Allocate(16, 8, FlagNone)
		poke(p, 16, 0)
		requireFatal(t, ErrOverflow, func() { a.Free(p) })
	})

	t.Run("arena reallocate", func(t *testing.T) {
		a := newTestArena(t, 1<<20)
		p := a.Allocate(13, 8, FlagNone)
		poke(p, 13, 0)
		requireFatal(t, ErrOverflow, func() { a.Reallocate(p, 64) })
	})

	t.Run("stack free", func(t *testing.T) {
		s := newTestStack(t, 1<<20)
		p := s.Allocate(40, 8, FlagNone)
		poke(p, 40, 0)
		requireFatal(t, ErrOverflow, func() { s.Free(p) })
	})

	t.Run("after resize", func(t *testing.T) {
		a := newTestArena(t, 1<<20)
		p := a.Allocate(100, 8, FlagNone)
		p = a.Reallocate(p, 50)
		poke(p, 60, 0) // inside the old payload, past the new canary: fine
		poke(p, 50, 0)
		requireFatal(t, ErrOverflow, func() { a.Free(p) })
	})
}

func TestDebug_CorruptHeader(t *testing.T) {
	a := newTestArena(t, 1<<20)
	p := a.Allocate(32, 8, FlagNone)
	format.HeaderOf(p).Guard = 0

	requireFatal(t, ErrCorruptHeader, func() { a.Free(p) })
}

// TestDebug_UseAfterFree tests that writes through stale pointers are caught
// when the memory is handed out again.
func TestDebug_UseAfterFree(t *testing.T) {
	t.Run("arena", func(t *testing.T) {
		a := newTestArena(t, 1<<20)
		p := a.Allocate(256, 8, FlagNone)
		a.Allocate(8, 8, FlagNone)
		a.Free(p)

		poke(p, 64, 1)
		requireFatal(t, ErrUseAfterFree, func() { a.Allocate(256, 8, FlagNone) })
	})

	t.Run("stack", func(t *testing.T) {
		s := newTestStack(t, 1<<20)
		p := s.Allocate(256, 8, FlagNone)
		s.Free(p)

		poke(p, 8, 1)
		requireFatal(t, ErrUseAfterFree, func() { s.Allocate(256, 8, FlagNone) })
	})

	t.Run("grow into neighbor", func(t *testing.T) {
		a := newTestArena(t, 1<<20)
		p := a.Allocate(64, 8, FlagNone)
		q := a.Allocate(512, 8, FlagNone)
		a.Allocate(8, 8, FlagNone)
		a.Free(q)

		poke(q, 100, 1)
		requireFatal(t, ErrUseAfterFree, func() { a.Reallocate(p, 256) })
	})
}

// TestDebug_CleanCycleStaysQuiet tests that correct use never trips a check.
func TestDebug_CleanCycleStaysQuiet(t *testing.T) {
	a := newTestAllocator(t)
	th := a.Thread()

	var live []unsafe.Pointer
	for i := range 64 {
		p := th.Allocate(uintptr(8+i*13), 8, FlagNone)
		fillPattern(p, uintptr(8+i*13), byte(i))
		live = append(live, p)
	}
	for i := 0; i < len(live); i += 2 {
		live[i] = th.Reallocate(live[i], uintptr(200+i))
	}
	for _, p := range live {
		th.Free(p)
	}
	assert.Zero(t, a.AllocatedSize())
}

// TestDebug_StackFreeAccounting tests that popping stack blocks returns the
// allocated size to zero even though the debug fill overwrites their headers.
func TestDebug_StackFreeAccounting(t *testing.T) {
	t.Run("stack", func(t *testing.T) {
		s := newTestStack(t, 1<<20)
		p := s.Allocate(100, 8, FlagNone)
		q := s.Allocate(40, 16, FlagNone)
		q = s.Reallocate(q, 24)

		s.Free(q)
		assert.Equal(t, uintptr(100), s.AllocatedSize())
		s.Free(p)
		assert.Zero(t, s.AllocatedSize())
		assert.Zero(t, s.Top())
		assert.Zero(t, s.Stats().Live)
	})

	for _, flags := range []Flags{FlagPersist, FlagScratch} {
		t.Run(KindOf(flags).String(), func(t *testing.T) {
			a := newTestAllocator(t)
			th := a.ThreadOn(0)
			th.PushForceFlags(flags)
			defer th.PopForceFlags()

			var live []unsafe.Pointer
			for i := range 8 {
				live = append(live, th.Allocate(uintptr(32+i*24), 8, FlagNone))
			}
			for i := len(live) - 1; i >= 0; i-- {
				th.Free(live[i])
			}
			assert.Zero(t, a.AllocatedSize())
			assert.Zero(t, a.Slot(0).Strategy(KindOf(flags)).AllocatedSize())
		})
	}
}
