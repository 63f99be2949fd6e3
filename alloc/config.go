package alloc

import (
	"fmt"
	"io"
	"log/slog"
)

// Config sizes an Allocator. Heap sizes are address-space reservations per
// slot; memory is committed only as it is used.
type Config struct {
	// Slots is the number of independent shards. Callers are spread across
	// them by the shard function.
	Slots int

	// SmallHeapSize is the reservation of each slot's small-object arena.
	SmallHeapSize uintptr

	// BigHeapSize is the reservation of each slot's big-object arena.
	BigHeapSize uintptr

	// PersistHeapSize is the reservation of each slot's persistent stack.
	PersistHeapSize uintptr

	// ScratchHeapSize is the reservation of each slot's scratch stack.
	ScratchHeapSize uintptr

	// BigObjectThreshold routes requests of at least this many bytes to the
	// big-object arena whatever their flags.
	BigObjectThreshold uintptr
}

// DefaultConfig matches the process-wide layout: four slots, 4 GiB arenas and
// persistent stacks, 256 MiB scratch stacks, 2 MiB big-object threshold.
var DefaultConfig = Config{
	Slots:              4,
	SmallHeapSize:      4 << 30,
	BigHeapSize:        4 << 30,
	PersistHeapSize:    4 << 30,
	ScratchHeapSize:    256 << 20,
	BigObjectThreshold: 2 << 20,
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.Slots <= 0:
		return fmt.Errorf("%w: Slots must be positive, got %d", ErrBadConfig, c.Slots)
	case c.SmallHeapSize == 0, c.BigHeapSize == 0, c.PersistHeapSize == 0, c.ScratchHeapSize == 0:
		return fmt.Errorf("%w: heap sizes must be positive", ErrBadConfig)
	case c.BigObjectThreshold == 0:
		return fmt.Errorf("%w: BigObjectThreshold must be positive", ErrBadConfig)
	}
	return nil
}

func (c *Config) heapSize(k Kind) uintptr {
	switch k {
	case KindBig:
		return c.BigHeapSize
	case KindPersist:
		return c.PersistHeapSize
	case KindScratch:
		return c.ScratchHeapSize
	default:
		return c.SmallHeapSize
	}
}

// ShardFunc returns an identifier for the calling thread. The allocator
// reduces it modulo the slot count; it need not be non-negative or dense.
type ShardFunc func() int

// Option configures an Allocator.
type Option func(*Allocator)

// WithLogger routes allocator diagnostics to log. The default discards them.
func WithLogger(log *slog.Logger) Option {
	return func(a *Allocator) {
		if log != nil {
			a.log = log
		}
	}
}

// WithShardFunc replaces the thread-id based shard selection, typically to
// pin tests to a known slot.
func WithShardFunc(fn ShardFunc) Option {
	return func(a *Allocator) {
		if fn != nil {
			a.shard = fn
		}
	}
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
