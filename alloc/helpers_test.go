package alloc

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/hostmem/internal/format"
)

// testConfig keeps reservations small so tests run anywhere.
var testConfig = Config{
	Slots:              4,
	SmallHeapSize:      8 << 20,
	BigHeapSize:        16 << 20,
	PersistHeapSize:    8 << 20,
	ScratchHeapSize:    4 << 20,
	BigObjectThreshold: 1 << 20,
}

func newTestArena(t testing.TB, size uintptr) *Arena {
	t.Helper()
	a, err := NewArena("test", size, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func newTestStack(t testing.TB, size uintptr) *Stack {
	t.Helper()
	s, err := NewStack("test", size, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestAllocator(t testing.TB, opts ...Option) *Allocator {
	t.Helper()
	cfg := testConfig
	a, err := New(&cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

// requireFatal runs fn and asserts it panics with an *AssertionError
// wrapping want.
func requireFatal(t testing.TB, want error, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		require.NotNil(t, r, "expected a fatal %v", want)
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		var ae *AssertionError
		require.True(t, errors.As(err, &ae), "panic value %T is not an *AssertionError", r)
		require.ErrorIs(t, err, want)
	}()
	fn()
}

func bytesAt(p unsafe.Pointer, n uintptr) []byte {
	return unsafe.Slice((*byte)(p), n)
}

func fillPattern(p unsafe.Pointer, n uintptr, seed byte) {
	b := bytesAt(p, n)
	for i := range b {
		b[i] = seed + byte(i)
	}
}

func requirePattern(t testing.TB, p unsafe.Pointer, n uintptr, seed byte) {
	t.Helper()
	b := bytesAt(p, n)
	for i := range b {
		if b[i] != seed+byte(i) {
			require.Failf(t, "payload corrupted", "byte %d of %d: got %#x, want %#x", i, n, b[i], seed+byte(i))
		}
	}
}

// blockOf returns the block start offset and length of the arena block at p.
func blockOf(a *Arena, p unsafe.Pointer) (start, length uintptr) {
	payload := a.offset(p)
	h := a.header(payload)
	return h.BlockStart(payload), a.blockSize(h)
}

// checkArena verifies the free list is ordered, doubly linked, has no
// adjacent nodes and, together with the live blocks, tiles the reservation.
func checkArena(t testing.TB, a *Arena, live []unsafe.Pointer) {
	t.Helper()
	nodes := a.FreeList()
	var total uintptr
	for i, n := range nodes {
		total += n.Size
		if i == 0 {
			require.Equal(t, format.NoNode, n.Prev, "first node has a prev link")
		} else {
			prev := nodes[i-1]
			require.Equal(t, prev.Off, n.Prev, "node %d prev link", i)
			require.Equal(t, n.Off, prev.Next, "node %d next link", i-1)
			require.Less(t, prev.Off+prev.Size, n.Off, "nodes %d and %d overlap or touch", i-1, i)
		}
		if i == len(nodes)-1 {
			require.Equal(t, format.NoNode, n.Next, "last node has a next link")
		}
		require.GreaterOrEqual(t, n.Size, nodeSize)
	}
	for _, p := range live {
		_, length := blockOf(a, p)
		total += length
	}
	require.Equal(t, a.heap.Size(), total, "free nodes and live blocks must tile the arena")
}
