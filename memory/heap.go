package memory

import (
	"sync"

	"github.com/wippyai/ownership/errors"
)

// Heap is the default memory source. Block storage itself lives on the Go
// heap; Heap hands out stable addresses for it, recycles freed addresses and
// keeps byte accounting so leaks show up in Live and InUse and double
// frees in InvalidFrees.
// Thread-safe.
type Heap struct {
	live     map[uint32]span
	freeList map[span][]uint32
	next     uint32
	inUse    uint64
	invalid  int64
	mu       sync.Mutex
}

type span struct {
	size  uint32
	align uint32
}

// heapBase keeps address 0 reserved as "no storage".
const heapBase = 16

var (
	defaultHeap     *Heap
	defaultHeapOnce sync.Once
)

// Default returns the process-wide heap allocator.
func Default() *Heap {
	defaultHeapOnce.Do(func() {
		defaultHeap = NewHeap()
	})
	return defaultHeap
}

// NewHeap creates an empty heap allocator.
func NewHeap() *Heap {
	return &Heap{
		live:     make(map[uint32]span),
		freeList: make(map[span][]uint32),
		next:     heapBase,
	}
}

// Alloc reserves size bytes aligned to align.
func (h *Heap) Alloc(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	if !IsPowerOfTwo(align) {
		return 0, errors.InvalidInput(errors.PhaseMemory, "alignment must be a power of two")
	}
	if size == 0 {
		size = 1
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	key := span{size: size, align: align}
	if addrs := h.freeList[key]; len(addrs) > 0 {
		ptr := addrs[len(addrs)-1]
		h.freeList[key] = addrs[:len(addrs)-1]
		h.live[ptr] = key
		h.inUse += uint64(size)
		return ptr, nil
	}

	start := alignUp64(uint64(h.next), uint64(align))
	end := start + uint64(size)
	if end > uint64(^uint32(0)) {
		return 0, errors.OutOfSpace(size, align, ^uint32(0)-h.next)
	}

	ptr := uint32(start)
	h.next = uint32(end)
	h.live[ptr] = key
	h.inUse += uint64(size)
	return ptr, nil
}

// Free returns a reservation. Unknown or already freed addresses are
// counted in InvalidFrees and otherwise ignored.
func (h *Heap) Free(ptr, size, align uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key, ok := h.live[ptr]
	if !ok {
		h.invalid++
		return
	}
	delete(h.live, ptr)
	h.inUse -= uint64(key.size)
	h.freeList[key] = append(h.freeList[key], ptr)
}

// Live returns the number of outstanding reservations.
func (h *Heap) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.live)
}

// InUse returns the number of reserved bytes.
func (h *Heap) InUse() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inUse
}

// InvalidFrees returns the number of Free calls for addresses that were not
// live: double frees and addresses this heap never handed out.
func (h *Heap) InvalidFrees() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.invalid
}

// Owns reports whether ptr is a live reservation.
func (h *Heap) Owns(ptr uint32) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.live[ptr]
	return ok
}
