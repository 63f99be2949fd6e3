//go:build unix && !linux

package vmem

const (
	reserveFlags = 0
	fixedFlag    = 0
)
