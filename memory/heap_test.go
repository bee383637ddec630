package memory

import (
	"errors"
	"sync"
	"testing"

	rterrors "github.com/wippyai/ownership/errors"
)

func TestHeap_AllocFree(t *testing.T) {
	h := NewHeap()

	p1, err := h.Alloc(24, 8)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if p1 == 0 || p1%8 != 0 {
		t.Fatalf("bad address %d", p1)
	}
	p2, err := h.Alloc(3, 1)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if p1 == p2 {
		t.Fatal("distinct allocations share an address")
	}
	if h.Live() != 2 || h.InUse() != 27 {
		t.Fatalf("Live=%d InUse=%d, want 2/27", h.Live(), h.InUse())
	}

	h.Free(p1, 24, 8)
	if h.Owns(p1) {
		t.Fatal("freed address still owned")
	}
	if h.InvalidFrees() != 0 {
		t.Fatalf("InvalidFrees = %d after a valid free", h.InvalidFrees())
	}
	h.Free(p1, 24, 8) // double free is ignored but counted
	if h.Live() != 1 || h.InUse() != 3 {
		t.Fatalf("Live=%d InUse=%d, want 1/3", h.Live(), h.InUse())
	}
	h.Free(1<<20, 8, 8)
	if h.InvalidFrees() != 2 {
		t.Fatalf("InvalidFrees = %d, want 2", h.InvalidFrees())
	}

	p3, _ := h.Alloc(24, 8)
	if p3 != p1 {
		t.Errorf("expected freed address %d to be reused, got %d", p1, p3)
	}
}

func TestHeap_InvalidAlign(t *testing.T) {
	h := NewHeap()
	_, err := h.Alloc(8, 3)
	if !rterrors.HasKind(err, rterrors.KindInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestHeap_Default(t *testing.T) {
	if Default() != Default() {
		t.Fatal("Default should return a singleton")
	}
}

func TestHeap_Concurrent(t *testing.T) {
	h := NewHeap()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := h.Alloc(16, 8)
			if err != nil {
				t.Error(err)
				return
			}
			h.Free(p, 16, 8)
		}()
	}
	wg.Wait()
	if h.Live() != 0 {
		t.Fatalf("Live = %d after all frees", h.Live())
	}
}

func TestCounting(t *testing.T) {
	c := NewCounting(nil)

	p1, _ := c.Alloc(16, 8)
	p2, _ := c.Alloc(32, 8)
	c.Free(p1, 16, 8)

	s := c.Stats()
	if s.Allocs != 2 || s.Frees != 1 || s.Outstanding != 1 {
		t.Fatalf("stats = %+v", s)
	}
	if s.BytesInUse != 32 || s.PeakInUse != 48 {
		t.Fatalf("bytes = %d peak = %d", s.BytesInUse, s.PeakInUse)
	}
	c.Free(p2, 32, 8)
	if c.Frees() != 2 || c.Allocs() != 2 {
		t.Fatalf("Allocs=%d Frees=%d", c.Allocs(), c.Frees())
	}
}

func TestLimited(t *testing.T) {
	c := NewCounting(nil)
	l := NewLimited(c, 64)

	p, err := l.Alloc(48, 8)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}

	_, err = l.Alloc(32, 8)
	if !errors.Is(err, rterrors.ErrOutOfSpace) {
		t.Fatalf("expected out of space, got %v", err)
	}
	if c.Stats().Allocs != 1 {
		t.Fatal("failed request must not reach the inner allocator")
	}

	l.Free(p, 48, 8)
	if l.Used() != 0 {
		t.Fatalf("Used = %d", l.Used())
	}
	if _, err := l.Alloc(64, 8); err != nil {
		t.Fatalf("Alloc within budget failed: %v", err)
	}

	l.SetLimit(0)
	if _, err := l.Alloc(1, 1); err == nil {
		t.Fatal("expected failure with zero budget")
	}
}
