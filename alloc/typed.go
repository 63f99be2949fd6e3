package alloc

import (
	"math/bits"
	"unsafe"
)

// The helpers below view raw blocks as Go values. The memory lives outside
// the Go heap and is invisible to the garbage collector, so T must not
// contain Go pointers (no pointers, slices, strings, maps, interfaces or
// channels). Nothing is zeroed; Go has no destructors, so freeing a value
// runs no cleanup.

// MakeSlice allocates room for n values of T aligned to T's alignment.
func MakeSlice[T any](h Handle, n int, flags Flags) []T {
	var zero T
	p := h.Allocate(sliceBytes[T]("make_slice", n), unsafe.Alignof(zero), flags)
	return unsafe.Slice((*T)(p), n)
}

// NewValue allocates room for one T.
func NewValue[T any](h Handle, flags Flags) *T {
	var zero T
	return (*T)(h.Allocate(unsafe.Sizeof(zero), unsafe.Alignof(zero), flags))
}

// Construct stores v at p and returns p.
func Construct[T any](p *T, v T) *T {
	*p = v
	return p
}

// FreeSlice releases a slice obtained from MakeSlice or ResizeSlice.
func FreeSlice[T any](h Handle, s []T) {
	if p := unsafe.SliceData(s); p != nil {
		h.Free(unsafe.Pointer(p))
	}
}

// FreeValue releases a value obtained from NewValue.
func FreeValue[T any](h Handle, p *T) {
	if p != nil {
		h.Free(unsafe.Pointer(p))
	}
}

// ResizeSlice resizes s to n elements. The returned slice may live at a new
// address; s must not be used afterwards. Existing elements are preserved up
// to min(len(s), n).
func ResizeSlice[T any](h Handle, s []T, n int) []T {
	p := h.Reallocate(unsafe.Pointer(unsafe.SliceData(s)), sliceBytes[T]("resize_slice", n))
	return unsafe.Slice((*T)(p), n)
}

// WillRelocateSlice reports whether ResizeSlice(h, s, n) would move s.
func WillRelocateSlice[T any](h Handle, s []T, n int) bool {
	return h.WillRelocate(unsafe.Pointer(unsafe.SliceData(s)), sliceBytes[T]("will_relocate_slice", n))
}

// sliceBytes returns the byte size of n values of T. A negative n or a
// product that overflows is fatal, checked before anything is allocated.
func sliceBytes[T any](op string, n int) uintptr {
	var zero T
	if n < 0 {
		fatal(discardLogger, op, ErrBadLength, "n", n)
	}
	hi, lo := bits.Mul(uint(unsafe.Sizeof(zero)), uint(n))
	if hi != 0 {
		fatal(discardLogger, op, ErrBadLength, "n", n, "elem", unsafe.Sizeof(zero))
	}
	return uintptr(lo)
}
