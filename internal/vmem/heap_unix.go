//go:build unix

package vmem

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

func reserve(base unsafe.Pointer, size uintptr) (unsafe.Pointer, error) {
	flags := unix.MAP_PRIVATE | unix.MAP_ANON | reserveFlags
	if base != nil {
		flags |= fixedFlag
	}
	p, err := unix.MmapPtr(-1, 0, base, size, unix.PROT_NONE, flags)
	if err != nil {
		return nil, fmt.Errorf("%w: %d bytes: %w", ErrReserve, size, err)
	}
	return p, nil
}

func commit(p unsafe.Pointer, n uintptr) error {
	if err := unix.Mprotect(unsafe.Slice((*byte)(p), n), unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("%w: %d bytes at %p: %w", ErrCommit, n, p, err)
	}
	return nil
}

func release(p unsafe.Pointer, size uintptr) error {
	return unix.MunmapPtr(p, size)
}
