package rc

import "sync/atomic"

// refCounts holds the strong and weak counts of one control block.
//
// The weak counter carries one implicit reference on behalf of all strong
// owners. It is dropped right after the payload is destroyed, so exactly
// one of "last strong release" and "last weak release" observes the weak
// counter reaching zero and releases the block.
type refCounts interface {
	strong() int
	weak() int
	retain()
	tryRetain() bool
	release() bool
	dropImplicit() bool
	retainWeak()
	releaseWeak() bool
}

func newCounts(synchronized bool, strong, weak int) refCounts {
	implicit := strong > 0
	w := weak
	if implicit {
		w++
	}
	if synchronized {
		c := &atomicCounts{}
		c.s.Store(int64(strong))
		c.w.Store(int64(w))
		c.implicit.Store(implicit)
		return c
	}
	return &plainCounts{s: strong, w: w, implicit: implicit}
}

// plainCounts is for single-goroutine or externally synchronized use.
type plainCounts struct {
	s        int
	w        int
	implicit bool
}

func (c *plainCounts) strong() int { return c.s }

func (c *plainCounts) weak() int {
	if c.implicit {
		return c.w - 1
	}
	return c.w
}

func (c *plainCounts) retain() {
	if c.s <= 0 {
		panic("rc: retain on a block without strong owners")
	}
	c.s++
}

func (c *plainCounts) tryRetain() bool {
	if c.s == 0 {
		return false
	}
	c.s++
	return true
}

func (c *plainCounts) release() bool {
	if c.s <= 0 {
		panic("rc: strong count released below zero")
	}
	c.s--
	return c.s == 0
}

func (c *plainCounts) dropImplicit() bool {
	c.implicit = false
	return c.releaseWeak()
}

func (c *plainCounts) retainWeak() { c.w++ }

func (c *plainCounts) releaseWeak() bool {
	if c.w <= 0 {
		panic("rc: weak count released below zero")
	}
	c.w--
	return c.w == 0
}

// atomicCounts makes every transition a single atomic step. Promotion
// uses a compare-and-swap loop so a zero strong count is never revived.
type atomicCounts struct {
	s        atomic.Int64
	w        atomic.Int64
	implicit atomic.Bool
}

func (c *atomicCounts) strong() int { return int(c.s.Load()) }

func (c *atomicCounts) weak() int {
	w := c.w.Load()
	if c.implicit.Load() {
		w--
	}
	return int(w)
}

func (c *atomicCounts) retain() {
	if c.s.Add(1) <= 1 {
		panic("rc: retain on a block without strong owners")
	}
}

func (c *atomicCounts) tryRetain() bool {
	for {
		n := c.s.Load()
		if n == 0 {
			return false
		}
		if c.s.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (c *atomicCounts) release() bool {
	n := c.s.Add(-1)
	if n < 0 {
		panic("rc: strong count released below zero")
	}
	return n == 0
}

func (c *atomicCounts) dropImplicit() bool {
	c.implicit.Store(false)
	return c.releaseWeak()
}

func (c *atomicCounts) retainWeak() { c.w.Add(1) }

func (c *atomicCounts) releaseWeak() bool {
	n := c.w.Add(-1)
	if n < 0 {
		panic("rc: weak count released below zero")
	}
	return n == 0
}
