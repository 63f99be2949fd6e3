// Package vmem reserves large ranges of virtual address space and commits
// them incrementally.
//
// A Heap claims its whole range up front without backing it with physical
// pages. Commit makes a growing prefix of the range readable and writable;
// nothing past Committed may be touched. The range is returned to the OS in a
// single Release call, there is no partial release.
//
// Base and Size never change after Reserve returns, so OwnsPtr can be called
// from any goroutine without synchronization. Commit and Release are not safe
// for concurrent use.
package vmem
