//go:build !linux

package alloc

import "sync/atomic"

var nextThread atomic.Uint32

// ThreadID returns a rotating identifier on platforms without a cheap
// thread-id syscall, spreading callers evenly across slots.
func ThreadID() int { return int(nextThread.Add(1)) }
