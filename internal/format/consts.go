// Package format describes the in-memory layout shared by the allocators:
// the header that precedes every payload and the geometry of the blocks that
// carry them.
//
// A block looks like this, lowest address first:
//
//	| padding | Header (32 B) | payload (Size B) | canary | tail to 8 B |
//	^ block start           ^ user pointer
//
// Padding exists only when the requested alignment exceeds BlockAlign. The
// canary is present only in memdebug builds.
package format

const (
	// BlockAlign is the alignment of every block start and block length.
	BlockAlign = 8

	// BlockAlignMask masks the low bits that must be zero in a block offset.
	BlockAlignMask = BlockAlign - 1

	// HeaderSize is the size of Header in bytes.
	HeaderSize = 32

	// Guard is written into every header and checked in debug builds.
	Guard uint64 = 0x48444D454D4B4954

	// NoNode marks a missing free-list link.
	NoNode = ^uintptr(0)
)
