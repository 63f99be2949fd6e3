//go:build windows

package vmem

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

func reserve(base unsafe.Pointer, size uintptr) (unsafe.Pointer, error) {
	addr, err := windows.VirtualAlloc(uintptr(base), size, windows.MEM_RESERVE, windows.PAGE_NOACCESS)
	if err != nil {
		return nil, fmt.Errorf("%w: %d bytes: %w", ErrReserve, size, err)
	}
	return unsafe.Pointer(addr), nil //nolint:govet // address comes from VirtualAlloc
}

func commit(p unsafe.Pointer, n uintptr) error {
	if _, err := windows.VirtualAlloc(uintptr(p), n, windows.MEM_COMMIT, windows.PAGE_READWRITE); err != nil {
		return fmt.Errorf("%w: %d bytes at %p: %w", ErrCommit, n, p, err)
	}
	return nil
}

func release(p unsafe.Pointer, _ uintptr) error {
	return windows.VirtualFree(uintptr(p), 0, windows.MEM_RELEASE)
}
