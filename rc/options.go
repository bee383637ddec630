package rc

import (
	"github.com/wippyai/ownership"
	"github.com/wippyai/ownership/memory"
)

// Options configures how a control block is created.
type Options struct {
	// Allocator is the memory source for the control block's own storage.
	// Nil means memory.Default().
	Allocator ownership.Allocator

	// Observer receives lifecycle events for the block. Optional.
	Observer Observer

	// Synchronized makes count updates atomic so handles sharing the block
	// may be cloned, locked and released from different goroutines.
	Synchronized bool
}

// DefaultOptions returns the configuration used by Adopt, Make and New.
func DefaultOptions() Options {
	return Options{
		Allocator: memory.Default(),
	}
}

func (o Options) allocator() ownership.Allocator {
	if o.Allocator == nil {
		return memory.Default()
	}
	return o.Allocator
}
