package memory

import (
	"sort"
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/ownership/errors"
)

// PageSize is the WebAssembly page size.
const PageSize = 65536

// poisonByte fills freed regions so stale reads are recognizable.
const poisonByte = 0xDD

// Linear is a first-fit allocator over a WebAssembly linear memory. It
// manages the range starting at base, grows the memory when the range is
// exhausted, zeroes regions on Alloc and poisons them on Free.
// Thread-safe.
type Linear struct {
	mem  api.Memory
	live map[uint32]uint32
	free []region
	base uint32
	top  uint32
	mu   sync.Mutex
}

type region struct {
	off uint32
	len uint32
}

// NewLinear manages mem from base upward. Address 0 is never returned, so a
// base of 0 starts at 8.
func NewLinear(mem api.Memory, base uint32) *Linear {
	if base < 8 {
		base = 8
	}
	return &Linear{
		mem:  mem,
		live: make(map[uint32]uint32),
		base: base,
		top:  base,
	}
}

// Alloc reserves size bytes aligned to align, growing memory if needed.
func (l *Linear) Alloc(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	if !IsPowerOfTwo(align) {
		return 0, errors.InvalidInput(errors.PhaseMemory, "alignment must be a power of two")
	}
	if size == 0 {
		size = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ptr, ok := l.takeFree(size, align)
	if !ok {
		var err error
		ptr, err = l.bump(size, align)
		if err != nil {
			return 0, err
		}
	}

	l.live[ptr] = size
	if !l.mem.Write(ptr, make([]byte, size)) {
		delete(l.live, ptr)
		l.release(ptr, size)
		return 0, errors.OutOfBounds(errors.PhaseMemory, ptr, size, l.mem.Size())
	}
	return ptr, nil
}

func (l *Linear) takeFree(size, align uint32) (uint32, bool) {
	for i, r := range l.free {
		start := alignUp64(uint64(r.off), uint64(align))
		end := start + uint64(size)
		if end > uint64(r.off)+uint64(r.len) {
			continue
		}
		l.free = append(l.free[:i], l.free[i+1:]...)
		if lead := uint32(start) - r.off; lead > 0 {
			l.insertFree(region{off: r.off, len: lead})
		}
		if tail := r.off + r.len - uint32(end); tail > 0 {
			l.insertFree(region{off: uint32(end), len: tail})
		}
		return uint32(start), true
	}
	return 0, false
}

func (l *Linear) bump(size, align uint32) (uint32, error) {
	start := alignUp64(uint64(l.top), uint64(align))
	end := start + uint64(size)
	if end > uint64(^uint32(0)) {
		return 0, errors.OutOfSpace(size, align, ^uint32(0)-l.top)
	}

	if cur := uint64(l.mem.Size()); end > cur {
		pages := (end - cur + PageSize - 1) / PageSize
		if _, ok := l.mem.Grow(uint32(pages)); !ok {
			avail := uint32(0)
			if cur > uint64(l.top) {
				avail = uint32(cur) - l.top
			}
			return 0, errors.OutOfSpace(size, align, avail)
		}
	}

	if gap := uint32(start) - l.top; gap > 0 {
		l.insertFree(region{off: l.top, len: gap})
	}
	l.top = uint32(end)
	return uint32(start), nil
}

// Free returns a region. Unknown or already freed addresses are ignored.
func (l *Linear) Free(ptr, size, align uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, ok := l.live[ptr]
	if !ok {
		return
	}
	delete(l.live, ptr)

	poison := make([]byte, n)
	for i := range poison {
		poison[i] = poisonByte
	}
	l.mem.Write(ptr, poison)
	l.release(ptr, n)
}

func (l *Linear) release(ptr, size uint32) {
	l.insertFree(region{off: ptr, len: size})

	// Give the trailing free region back to the bump pointer.
	if last := len(l.free) - 1; last >= 0 {
		r := l.free[last]
		if r.off+r.len == l.top {
			l.top = r.off
			l.free = l.free[:last]
		}
	}
}

// insertFree adds r to the sorted free list, coalescing with neighbours.
func (l *Linear) insertFree(r region) {
	i := sort.Search(len(l.free), func(i int) bool { return l.free[i].off >= r.off })
	l.free = append(l.free, region{})
	copy(l.free[i+1:], l.free[i:])
	l.free[i] = r

	if i+1 < len(l.free) && l.free[i].off+l.free[i].len == l.free[i+1].off {
		l.free[i].len += l.free[i+1].len
		l.free = append(l.free[:i+1], l.free[i+2:]...)
	}
	if i > 0 && l.free[i-1].off+l.free[i-1].len == l.free[i].off {
		l.free[i-1].len += l.free[i].len
		l.free = append(l.free[:i], l.free[i+1:]...)
	}
}

// Live returns the number of outstanding regions.
func (l *Linear) Live() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.live)
}

// Top returns the end of the highest region handed out so far.
func (l *Linear) Top() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.top
}

// SizeOfRegion returns the size of a live region.
func (l *Linear) SizeOfRegion(ptr uint32) (uint32, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, ok := l.live[ptr]
	return n, ok
}
