package rc

import (
	"io"

	"go.uber.org/zap"

	"github.com/wippyai/ownership"
)

// Deleter is a destruction strategy for an adopted payload.
type Deleter[T any] func(*T)

// Dropper is optionally implemented by payloads that need cleanup when the
// last strong owner goes away.
type Dropper interface {
	Drop()
}

// DefaultDeleter calls Drop (Dropper) or Close (io.Closer) on the payload.
// Payloads implementing neither are left to the garbage collector.
func DefaultDeleter[T any](p *T) {
	dropValue(p)
}

// NoopDeleter does nothing. Use it for payloads whose lifetime is managed
// elsewhere, such as package-level values.
func NoopDeleter[T any](*T) {}

// SliceDeleter drops every element of an adopted slice and clears it.
func SliceDeleter[E any](p *[]E) {
	if p == nil {
		return
	}
	s := *p
	for i := range s {
		dropValue(&s[i])
	}
	*p = nil
}

// Region is a span of memory owned by a foreign allocator, e.g. an object
// allocated inside WASM linear memory.
type Region struct {
	Addr  uint32
	Size  uint32
	Align uint32
}

// FreeRegion returns a deleter that gives a Region back to alloc.
func FreeRegion(alloc ownership.Allocator) Deleter[Region] {
	return func(r *Region) {
		if r == nil || r.Addr == 0 {
			return
		}
		alloc.Free(r.Addr, r.Size, r.Align)
		r.Addr = 0
	}
}

func dropValue[T any](p *T) {
	if p == nil {
		return
	}
	if dropOne(any(p)) {
		return
	}
	// Payloads that are themselves pointers or interfaces.
	dropOne(any(*p))
}

func dropOne(v any) bool {
	switch d := v.(type) {
	case nil:
		return false
	case Dropper:
		d.Drop()
		return true
	case io.Closer:
		if err := d.Close(); err != nil {
			Logger().Warn("payload close failed", zap.Error(err))
		}
		return true
	}
	return false
}
