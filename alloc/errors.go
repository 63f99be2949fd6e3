package alloc

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfMemory indicates no free block is large enough and the
	// reservation cannot supply more.
	ErrOutOfMemory = errors.New("alloc: no free block large enough")

	// ErrCommit indicates the OS refused to commit reserved memory.
	ErrCommit = errors.New("alloc: commit failed")

	// ErrNotTop indicates a stack block other than the most recent one was
	// freed or resized.
	ErrNotTop = errors.New("alloc: block is not the top of the stack")

	// ErrOverflow indicates the canary after a payload was overwritten.
	ErrOverflow = errors.New("alloc: write past end of allocation")

	// ErrUseAfterFree indicates free memory no longer holds the filler pattern.
	ErrUseAfterFree = errors.New("alloc: free memory was written")

	// ErrCorruptHeader indicates a block header failed validation.
	ErrCorruptHeader = errors.New("alloc: corrupt block header")

	// ErrForeignPointer indicates a pointer owned by no slot was freed or resized.
	ErrForeignPointer = errors.New("alloc: pointer not owned by this allocator")

	// ErrBadAlign indicates an alignment that is not a power of two.
	ErrBadAlign = errors.New("alloc: alignment must be a power of two")

	// ErrBadLength indicates a negative element count, or one whose byte
	// size overflows.
	ErrBadLength = errors.New("alloc: invalid element count")

	// ErrForceStackOverflow indicates PushForceFlags beyond ForceStackDepth.
	ErrForceStackOverflow = errors.New("alloc: force-flags stack overflow")

	// ErrForceStackUnderflow indicates PopForceFlags on an empty stack.
	ErrForceStackUnderflow = errors.New("alloc: force-flags stack underflow")

	// ErrBadConfig indicates an invalid Config.
	ErrBadConfig = errors.New("alloc: invalid config")

	// ErrInitialized indicates Initialize was called while a default
	// allocator already exists.
	ErrInitialized = errors.New("alloc: default allocator already initialized")
)

// AssertionError is the panic value of every fatal allocator condition.
// Err is one of the sentinel errors above, so errors.Is works on a
// recovered value.
type AssertionError struct {
	Op  string
	Err error
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("alloc: assertion failed in %s: %v", e.Op, e.Err)
}

func (e *AssertionError) Unwrap() error { return e.Err }
