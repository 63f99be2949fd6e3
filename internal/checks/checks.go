package checks

import (
	"encoding/binary"
	"unsafe"
)

// Filler is written over every byte of memory that is logically free.
const Filler byte = 0xFE

// Canary is the sentinel stored immediately after a payload.
const Canary uint64 = 0xC0DEFACEFEEDF00D

// Fill writes the filler pattern over n bytes at p.
func Fill(p unsafe.Pointer, n uintptr) {
	if n == 0 {
		return
	}
	buf := unsafe.Slice((*byte)(p), n)
	buf[0] = Filler
	for i := 1; i < len(buf); i *= 2 {
		copy(buf[i:], buf[:i])
	}
}

// CheckUseAfterFree reports whether all n bytes at p still hold the filler,
// i.e. nothing wrote to the region since it was freed.
func CheckUseAfterFree(p unsafe.Pointer, n uintptr) bool {
	if n == 0 {
		return true
	}
	buf := unsafe.Slice((*byte)(p), n)
	for len(buf) >= 8 {
		if binary.LittleEndian.Uint64(buf) != fillerWord {
			return false
		}
		buf = buf[8:]
	}
	for _, b := range buf {
		if b != Filler {
			return false
		}
	}
	return true
}

// WriteCanary stores the canary in the 8 bytes at p. p need not be aligned.
func WriteCanary(p unsafe.Pointer) {
	binary.LittleEndian.PutUint64(unsafe.Slice((*byte)(p), 8), Canary)
}

// CanaryIntact reports whether the 8 bytes at p still hold the canary.
func CanaryIntact(p unsafe.Pointer) bool {
	return binary.LittleEndian.Uint64(unsafe.Slice((*byte)(p), 8)) == Canary
}

const fillerWord = uint64(Filler) * 0x0101010101010101
