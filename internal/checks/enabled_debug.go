//go:build memdebug

package checks

// Enabled reports whether canaries and free-memory fills are active.
const Enabled = true

// CanarySize is the number of bytes reserved after each payload.
const CanarySize = 8
