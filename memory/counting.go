package memory

import (
	"sync/atomic"

	"github.com/wippyai/ownership"
)

// Stats is a snapshot of a Counting allocator.
type Stats struct {
	Allocs      int64
	Frees       int64
	Failures    int64
	BytesInUse  int64
	PeakInUse   int64
	Outstanding int64
}

// Counting wraps an allocator and counts every call through it.
type Counting struct {
	inner    ownership.Allocator
	allocs   atomic.Int64
	frees    atomic.Int64
	failures atomic.Int64
	inUse    atomic.Int64
	peak     atomic.Int64
}

// NewCounting wraps inner. A nil inner uses a private Heap.
func NewCounting(inner ownership.Allocator) *Counting {
	if inner == nil {
		inner = NewHeap()
	}
	return &Counting{inner: inner}
}

// Alloc forwards to the wrapped allocator.
func (c *Counting) Alloc(size, align uint32) (uint32, error) {
	ptr, err := c.inner.Alloc(size, align)
	if err != nil {
		c.failures.Add(1)
		return 0, err
	}
	c.allocs.Add(1)
	n := c.inUse.Add(int64(size))
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return ptr, nil
}

// Free forwards to the wrapped allocator.
func (c *Counting) Free(ptr, size, align uint32) {
	c.frees.Add(1)
	c.inUse.Add(-int64(size))
	c.inner.Free(ptr, size, align)
}

// Allocs returns the number of successful allocations.
func (c *Counting) Allocs() int64 { return c.allocs.Load() }

// Frees returns the number of frees.
func (c *Counting) Frees() int64 { return c.frees.Load() }

// Stats returns a snapshot of all counters.
func (c *Counting) Stats() Stats {
	a, f := c.allocs.Load(), c.frees.Load()
	return Stats{
		Allocs:      a,
		Frees:       f,
		Failures:    c.failures.Load(),
		BytesInUse:  c.inUse.Load(),
		PeakInUse:   c.peak.Load(),
		Outstanding: a - f,
	}
}
