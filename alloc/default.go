package alloc

import (
	"sync"
	"unsafe"
)

var (
	defaultMu    sync.Mutex
	defaultAlloc *Allocator
)

// Initialize builds the process-wide allocator. It fails if one already
// exists; call Shutdown first to replace it.
func Initialize(cfg *Config, opts ...Option) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultAlloc != nil {
		return ErrInitialized
	}
	a, err := New(cfg, opts...)
	if err != nil {
		return err
	}
	defaultAlloc = a
	return nil
}

// Default returns the process-wide allocator, building it with
// DefaultConfig on first use. Failing to reserve its memory is fatal.
func Default() *Allocator {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultAlloc == nil {
		a, err := New(nil)
		if err != nil {
			fatal(discardLogger, "default", err)
		}
		defaultAlloc = a
	}
	return defaultAlloc
}

// Shutdown releases the process-wide allocator. Blocks it handed out become
// invalid. It is a no-op when nothing was initialized.
func Shutdown() error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultAlloc == nil {
		return nil
	}
	err := defaultAlloc.Close()
	defaultAlloc = nil
	return err
}

// Allocate allocates from the process-wide allocator.
func Allocate(size, align uintptr, flags Flags) unsafe.Pointer {
	return Default().Allocate(size, align, flags)
}

// Free releases p to the process-wide allocator.
func Free(p unsafe.Pointer) { Default().Free(p) }

// Reallocate resizes p within the process-wide allocator.
func Reallocate(p unsafe.Pointer, size uintptr) unsafe.Pointer {
	return Default().Reallocate(p, size)
}

// WillRelocate reports whether Reallocate(p, size) would move p.
func WillRelocate(p unsafe.Pointer, size uintptr) bool {
	return Default().WillRelocate(p, size)
}

// AllocatedSize returns the live payload bytes of the process-wide allocator.
func AllocatedSize() uintptr { return Default().AllocatedSize() }
