package format

// Align8 returns n aligned up to the next 8-byte boundary.
//
// Example:
//
//	Align8(1)  = 8
//	Align8(8)  = 8
//	Align8(9)  = 16
func Align8(n uintptr) uintptr {
	return (n + BlockAlignMask) &^ BlockAlignMask
}

// AlignUp returns n aligned up to a, which must be a power of two.
func AlignUp(n, a uintptr) uintptr {
	return (n + a - 1) &^ (a - 1)
}

// IsPowerOfTwo reports whether a is a non-zero power of two.
func IsPowerOfTwo(a uintptr) bool {
	return a != 0 && a&(a-1) == 0
}
