package memory

import (
	"sync"

	"github.com/wippyai/ownership"
	"github.com/wippyai/ownership/errors"
)

// Limited wraps an allocator with a byte budget. Requests that would take
// the outstanding total over the limit fail without reaching the inner
// allocator.
type Limited struct {
	inner ownership.Allocator
	limit uint64
	used  uint64
	mu    sync.Mutex
}

// NewLimited wraps inner with a budget of limit bytes. A nil inner uses a
// private Heap.
func NewLimited(inner ownership.Allocator, limit uint64) *Limited {
	if inner == nil {
		inner = NewHeap()
	}
	return &Limited{inner: inner, limit: limit}
}

// Alloc reserves size bytes if the budget allows it.
func (l *Limited) Alloc(size, align uint32) (uint32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.used+uint64(size) > l.limit {
		var avail uint64
		if l.limit > l.used {
			avail = l.limit - l.used
		}
		if avail > uint64(^uint32(0)) {
			avail = uint64(^uint32(0))
		}
		return 0, errors.OutOfSpace(size, align, uint32(avail))
	}
	ptr, err := l.inner.Alloc(size, align)
	if err != nil {
		return 0, err
	}
	l.used += uint64(size)
	return ptr, nil
}

// Free returns size bytes to the budget.
func (l *Limited) Free(ptr, size, align uint32) {
	l.mu.Lock()
	if uint64(size) > l.used {
		l.used = 0
	} else {
		l.used -= uint64(size)
	}
	l.mu.Unlock()
	l.inner.Free(ptr, size, align)
}

// Used returns the outstanding byte count.
func (l *Limited) Used() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.used
}

// SetLimit changes the budget. Outstanding reservations are not affected.
func (l *Limited) SetLimit(limit uint64) {
	l.mu.Lock()
	l.limit = limit
	l.mu.Unlock()
}
