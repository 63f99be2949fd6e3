//go:build !unix && !windows

package vmem

import (
	"errors"
	"fmt"
	"unsafe"
)

// No reserve/commit primitive on this platform.

func reserve(unsafe.Pointer, uintptr) (unsafe.Pointer, error) {
	return nil, fmt.Errorf("%w: %w", ErrReserve, errors.ErrUnsupported)
}

func commit(unsafe.Pointer, uintptr) error {
	return fmt.Errorf("%w: %w", ErrCommit, errors.ErrUnsupported)
}

func release(unsafe.Pointer, uintptr) error { return nil }
