package vmem

import "errors"

var (
	// ErrReserve indicates the OS refused to reserve the requested range.
	ErrReserve = errors.New("vmem: reserve failed")

	// ErrCommit indicates the OS refused to commit part of a reserved range.
	ErrCommit = errors.New("vmem: commit failed")

	// ErrExhausted indicates a commit would run past the end of the reservation.
	ErrExhausted = errors.New("vmem: reservation exhausted")

	// ErrBadSize indicates a zero-sized reservation was requested.
	ErrBadSize = errors.New("vmem: size must be positive")

	// ErrBaseUnavailable indicates the requested base address could not be used.
	ErrBaseUnavailable = errors.New("vmem: requested base address unavailable")
)
