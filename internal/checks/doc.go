// Package checks holds the debug-build corruption detectors used by the
// allocators: an overflow canary written right after each payload and a
// filler pattern that covers every byte of free memory.
//
// Build with -tags memdebug to turn them on. Without the tag Enabled is false,
// CanarySize is zero and every guarded call site folds away at compile time.
// The helpers themselves are always compiled so they can be tested directly.
package checks
