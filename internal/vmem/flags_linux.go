//go:build linux

package vmem

import "golang.org/x/sys/unix"

const (
	reserveFlags = unix.MAP_NORESERVE
	// Older kernels ignore MAP_FIXED_NOREPLACE and treat base as a hint;
	// Reserve checks the returned address either way.
	fixedFlag = unix.MAP_FIXED_NOREPLACE
)
