// Package alloc provides arena, stack and sharded allocation of memory that
// lives outside the Go heap.
//
// # Overview
//
// Memory comes from large virtual reservations (see internal/vmem) that are
// committed on demand. Two strategy types carve it up:
//
//   - Arena: free-list allocator, any allocation order, split and coalesce,
//     in-place shrink and grow
//   - Stack: LIFO bump allocator, only the top block may be freed or resized
//
// A Slot bundles a small-object Arena, a big-object Arena, a persistent
// Stack and a scratch Stack behind one mutex. An Allocator owns a fixed
// number of slots and spreads callers across them by thread id, so lock
// contention is bounded by the callers sharing a slot rather than by the
// whole process.
//
// # Block layout
//
// Every payload is preceded by a 32-byte header recording its size,
// alignment padding, flags and slack. Free and Reallocate read everything
// they need from it; the caller passes only the pointer.
//
// # Flags
//
// FlagScratch and FlagPersist include the FlagBig bit. Dispatch checks them
// from most to least specific:
//
//	scratch  -> scratch stack
//	persist  -> persistent stack
//	big      -> big arena (also any request >= BigObjectThreshold)
//	none     -> small arena
//
// # Forced flags
//
// A Thread carries a stack of forced flags that are ORed into each of its
// allocations:
//
//	t := a.Thread()
//	t.PushForceFlags(alloc.FlagPersist)
//	buf := alloc.MakeSlice[uint64](t, 128, alloc.FlagNone) // persistent
//	t.PopForceFlags()
//
// # Failure model
//
// Exhausted reservations, frees of non-top stack blocks, force-stack
// overflow and (in memdebug builds) overflow canaries and writes to freed
// memory are programming errors. They are logged and raised as a panic
// carrying an *AssertionError; nothing returns a nil pointer.
//
// # Debug builds
//
// Build with -tags memdebug to place an 8-byte canary after every payload,
// fill free memory with 0xFE and verify both on every operation. Tests are
// expected to pass in both modes:
//
//	go test ./...
//	go test -tags memdebug ./...
//
// # Thread Safety
//
// Allocator and the package-level functions are safe for concurrent use.
// Arena, Stack and Thread are not.
package alloc
