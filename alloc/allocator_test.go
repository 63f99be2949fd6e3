package alloc

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pinTo(i int) Option {
	return WithShardFunc(func() int { return i })
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"default", func(*Config) {}, true},
		{"no slots", func(c *Config) { c.Slots = 0 }, false},
		{"negative slots", func(c *Config) { c.Slots = -1 }, false},
		{"empty small heap", func(c *Config) { c.SmallHeapSize = 0 }, false},
		{"empty scratch heap", func(c *Config) { c.ScratchHeapSize = 0 }, false},
		{"no threshold", func(c *Config) { c.BigObjectThreshold = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrBadConfig)
			}
		})
	}
}

func TestNew_BadConfig(t *testing.T) {
	cfg := testConfig
	cfg.Slots = 0
	_, err := New(&cfg)
	require.ErrorIs(t, err, ErrBadConfig)
}

func TestAllocator_Layout(t *testing.T) {
	a := newTestAllocator(t)

	require.Equal(t, testConfig.Slots, a.NumSlots())
	assert.Equal(t, testConfig, a.Config())
	for i := range a.NumSlots() {
		s := a.Slot(i)
		assert.Equal(t, i, s.Index())
		assert.IsType(t, &Arena{}, s.Strategy(KindSmall))
		assert.IsType(t, &Arena{}, s.Strategy(KindBig))
		assert.IsType(t, &Stack{}, s.Strategy(KindPersist))
		assert.IsType(t, &Stack{}, s.Strategy(KindScratch))
	}
}

func TestAllocator_CurrentSlotInRange(t *testing.T) {
	a := newTestAllocator(t)
	cur := a.CurrentSlot()
	assert.GreaterOrEqual(t, cur, 0)
	assert.Less(t, cur, a.NumSlots())

	for _, id := range []int{-5, -1, 0, 3, 4, 1 << 30} {
		b := newTestAllocator(t, pinTo(id))
		got := b.CurrentSlot()
		assert.GreaterOrEqual(t, got, 0, "id %d", id)
		assert.Less(t, got, b.NumSlots(), "id %d", id)
	}
}

// TestAllocator_Dispatch tests that flags and size pick the strategy.
func TestAllocator_Dispatch(t *testing.T) {
	a := newTestAllocator(t, pinTo(2))

	tests := []struct {
		name      string
		size      uintptr
		flags     Flags
		wantKind  Kind
		wantFlags Flags
	}{
		{"small", 64, FlagNone, KindSmall, FlagNone},
		{"big", 64, FlagBig, KindBig, FlagBig},
		{"persist", 64, FlagPersist, KindPersist, FlagPersist},
		{"scratch", 64, FlagScratch, KindScratch, FlagScratch},
		{"scratch wins over persist", 64, FlagPersist | FlagScratch, KindScratch, FlagPersist | FlagScratch},
		{"large request promoted", testConfig.BigObjectThreshold, FlagNone, KindBig, FlagBig},
		{"large persist stays persist", testConfig.BigObjectThreshold, FlagPersist, KindPersist, FlagPersist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := a.Allocate(tt.size, 8, tt.flags)
			assert.True(t, a.Slot(2).Strategy(tt.wantKind).OwnsPtr(p), "block not in %s", tt.wantKind)
			assert.Equal(t, tt.wantFlags, FlagsOf(p))
			assert.Equal(t, tt.wantKind, KindOf(FlagsOf(p)))
			assert.Equal(t, tt.size, SizeOf(p))
			assert.Equal(t, tt.size, a.SlotAllocatedSize(2))

			a.Free(p)
			assert.Zero(t, a.AllocatedSize())
		})
	}
}

func TestAllocator_NilPointers(t *testing.T) {
	a := newTestAllocator(t)

	a.Free(nil)
	assert.True(t, a.WillRelocate(nil, 16))

	p := a.Reallocate(nil, 64)
	require.NotNil(t, p)
	assert.Equal(t, uintptr(64), SizeOf(p))
	assert.Equal(t, FlagNone, FlagsOf(p))
	a.Free(p)
	assert.Zero(t, a.AllocatedSize())
}

// TestAllocator_CrossSlotFree tests that a block can be released and resized
// from a slot other than the one that allocated it, the last slot included.
func TestAllocator_CrossSlotFree(t *testing.T) {
	a := newTestAllocator(t)
	last := a.NumSlots() - 1
	first, other := a.ThreadOn(0), a.ThreadOn(last)

	p := first.Allocate(128, 8, FlagNone)
	q := other.Allocate(128, 8, FlagBig)
	assert.Equal(t, uintptr(128), a.SlotAllocatedSize(0))
	assert.Equal(t, uintptr(128), a.SlotAllocatedSize(last))

	other.Free(p)
	assert.Zero(t, a.SlotAllocatedSize(0))
	assert.Equal(t, uintptr(128), a.SlotAllocatedSize(last))

	first.Free(q)
	assert.Zero(t, a.SlotAllocatedSize(last))

	// Resizing from elsewhere keeps the block in its home slot.
	r := first.Allocate(64, 8, FlagNone)
	r = a.ThreadOn(2).Reallocate(r, 8192)
	assert.True(t, a.Slot(0).Strategy(KindSmall).OwnsPtr(r))
	assert.Equal(t, uintptr(8192), a.SlotAllocatedSize(0))
	assert.Zero(t, a.SlotAllocatedSize(2))
	a.ThreadOn(1).Free(r)
	assert.Zero(t, a.AllocatedSize())
}

// TestAllocator_ForeignPointer tests that a pointer no slot owns is fatal.
func TestAllocator_ForeignPointer(t *testing.T) {
	a := newTestAllocator(t)

	// A zeroed header in front of the pointer reads as a small block.
	buf := make([]uint64, 16)
	p := unsafe.Pointer(&buf[8])

	requireFatal(t, ErrForeignPointer, func() { a.Free(p) })
	requireFatal(t, ErrForeignPointer, func() { a.Reallocate(p, 64) })
	requireFatal(t, ErrForeignPointer, func() { a.WillRelocate(p, 64) })
}

func TestAllocator_StatsAndReport(t *testing.T) {
	a := newTestAllocator(t, pinTo(1))

	p := a.Allocate(1000, 8, FlagNone)
	q := a.Allocate(2000, 8, FlagScratch)

	stats := a.Stats()
	require.Len(t, stats.Slots, testConfig.Slots)
	for i, sl := range stats.Slots {
		assert.Equal(t, i, sl.Index)
		require.Len(t, sl.Strategies, numKinds)
		for k, st := range sl.Strategies {
			assert.Equal(t, Kind(k), st.Kind)
			assert.Equal(t, fmt.Sprintf("slot%d/%s", i, Kind(k)), st.Name)
		}
	}
	assert.Equal(t, uintptr(3000), stats.Allocated())
	assert.Equal(t, uintptr(3000), stats.Slots[1].Allocated())
	assert.Equal(t, 1, stats.Slots[1].Strategies[KindSmall].Live)
	assert.Equal(t, 1, stats.Slots[1].Strategies[KindSmall].FreeNodes)
	assert.NotZero(t, stats.Committed())

	var buf bytes.Buffer
	require.NoError(t, stats.Report(&buf))
	out := buf.String()
	assert.Contains(t, out, "slot0/small")
	assert.Contains(t, out, "slot3/scratch")
	assert.Contains(t, out, "1000 B")
	assert.Contains(t, out, "total allocated 2.9 KiB")
	assert.Equal(t, 1+testConfig.Slots*numKinds+1, strings.Count(out, "\n"))

	a.Free(q)
	a.Free(p)
}

// TestAllocator_Concurrent hammers the arenas from several goroutines, with
// blocks handed across goroutines before being freed.
func TestAllocator_Concurrent(t *testing.T) {
	a := newTestAllocator(t)

	const workers = 8
	const perWorker = 300

	handoff := make(chan []byte, workers*perWorker)
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			th := a.Thread()
			var mine [][]byte
			for i := range perWorker {
				size := 16 + (i*37+w*11)%2048
				flags := FlagNone
				if i%5 == 0 {
					flags = FlagBig
				}
				b := unsafe.Slice((*byte)(th.Allocate(uintptr(size), 8, flags)), size)
				for j := range b {
					b[j] = byte(w)
				}
				if i%2 == 0 {
					handoff <- b
				} else {
					mine = append(mine, b)
				}
				if len(mine) > 16 {
					th.Free(unsafe.Pointer(&mine[0][0]))
					mine = mine[1:]
				}
			}
			for _, b := range mine {
				th.Free(unsafe.Pointer(&b[0]))
			}
		}()
	}
	wg.Wait()
	close(handoff)

	th := a.Thread()
	for b := range handoff {
		want := b[0]
		for j := range b {
			if b[j] != want {
				t.Fatalf("block of %d bytes corrupted at %d", len(b), j)
			}
		}
		th.Free(unsafe.Pointer(&b[0]))
	}
	assert.Zero(t, a.AllocatedSize())
}

func TestAllocator_CloseTwice(t *testing.T) {
	cfg := testConfig
	a, err := New(&cfg)
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}
