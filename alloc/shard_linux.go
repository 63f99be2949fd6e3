//go:build linux

package alloc

import "golang.org/x/sys/unix"

// ThreadID returns the OS id of the thread running the caller. A goroutine
// may migrate between calls; that only changes which slot absorbs the
// contention, never which slot owns a block.
func ThreadID() int { return unix.Gettid() }
