package rc

import (
	"unsafe"

	"github.com/wippyai/ownership/errors"
	"github.com/wippyai/ownership/memory"
)

// noCopy makes go vet's copylocks check flag handles copied by value.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Shared is a strong owning handle. The payload stays alive while at least
// one Shared handle referencing its control block is live.
//
// The zero value is an empty handle. A Shared handle is not safe for
// concurrent use; distinct handles to the same block may be used from
// different goroutines only if the block was created with
// Options.Synchronized.
type Shared[T any] struct {
	noCopy noCopy
	ptr    *T
	block  controlBlock
}

// Adopt takes ownership of an existing object using DefaultDeleter and the
// default memory source.
func Adopt[T any](ptr *T) (*Shared[T], error) {
	return AdoptWith(ptr, nil, Options{})
}

// AdoptWith takes ownership of an existing object. deleter destroys the
// object when the last strong owner is released (nil means
// DefaultDeleter); opts.Allocator provides the control block's storage.
//
// On error nothing was adopted and the caller still owns ptr.
func AdoptWith[T any](ptr *T, deleter Deleter[T], opts Options) (*Shared[T], error) {
	b, err := newPointerBlock(ptr, deleter, opts, errors.PhaseAdopt, 1, 0)
	if err != nil {
		return nil, err
	}
	s := &Shared[T]{ptr: ptr, block: b}
	bindSelf(ptr, s)
	return s, nil
}

func newPointerBlock[T any](ptr *T, deleter Deleter[T], opts Options, phase errors.Phase, strong, weak int) (*pointerBlock[T], error) {
	if ptr == nil {
		return nil, errors.NilPointer(phase, typeName[*T]())
	}
	if deleter == nil {
		deleter = DefaultDeleter[T]
	}

	size, align, err := memory.SizeOf[pointerBlock[T]]()
	if err != nil {
		return nil, err
	}

	b := &pointerBlock[T]{ptr: ptr, deleter: deleter}
	b.goType = typeName[T]()
	b.kind = BlockPointer
	if err := b.reserve(opts, phase, size, align, strong, weak); err != nil {
		return nil, err
	}
	return b, nil
}

// Allocate constructs the payload inside a new control block so value and
// bookkeeping share one allocation. init runs on the zeroed payload in
// place; nil leaves the zero value.
//
// If init fails or panics the block storage is returned to the memory
// source before the error (or panic) propagates.
func Allocate[T any](opts Options, init func(*T) error) (s *Shared[T], err error) {
	var zero T
	l, err := memory.BlockLayout(
		unsafe.Sizeof(header{}), unsafe.Alignof(header{}),
		unsafe.Sizeof(zero), unsafe.Alignof(zero))
	if err != nil {
		return nil, err
	}

	b := &objectBlock[T]{}
	b.goType = typeName[T]()
	b.kind = BlockObject
	if err := b.reserve(opts, errors.PhaseAllocate, l.Size, l.Align, 1, 0); err != nil {
		return nil, err
	}

	if init != nil {
		constructed := false
		defer func() {
			if !constructed {
				b.free()
			}
		}()
		if err := init(&b.value); err != nil {
			return nil, errors.ConstructionFailed(b.goType, err)
		}
		constructed = true
	}

	s = &Shared[T]{ptr: &b.value, block: b}
	bindSelf(s.ptr, s)
	return s, nil
}

// Make is Allocate with the default options.
func Make[T any](init func(*T) error) (*Shared[T], error) {
	return Allocate(Options{}, init)
}

// New allocates a block holding a copy of v.
func New[T any](v T) (*Shared[T], error) {
	return Allocate(Options{}, func(p *T) error {
		*p = v
		return nil
	})
}

// Alias returns a handle that shares owner's control block but points at
// ptr, typically a field of owner's payload. The whole payload stays alive
// while the alias is live. If owner is empty the alias owns nothing.
func Alias[T, U any](owner *Shared[U], ptr *T) *Shared[T] {
	s := &Shared[T]{ptr: ptr}
	if owner != nil && owner.block != nil {
		owner.block.counts().retain()
		s.block = owner.block
	}
	return s
}

// Get returns the payload pointer, or nil for an empty handle.
func (s *Shared[T]) Get() *T {
	if s == nil {
		return nil
	}
	return s.ptr
}

// Empty reports whether the handle owns nothing.
func (s *Shared[T]) Empty() bool {
	return s == nil || s.block == nil
}

// UseCount returns the number of live Shared handles sharing this handle's
// block, or 0 for an empty handle.
func (s *Shared[T]) UseCount() int {
	if s.Empty() {
		return 0
	}
	return s.block.counts().strong()
}

// WeakCount returns the number of live Weak handles observing this
// handle's block.
func (s *Shared[T]) WeakCount() int {
	if s.Empty() {
		return 0
	}
	return s.block.counts().weak()
}

// Clone returns a new owner of the same payload.
func (s *Shared[T]) Clone() *Shared[T] {
	if s.Empty() {
		return &Shared[T]{ptr: s.Get()}
	}
	s.block.counts().retain()
	return &Shared[T]{ptr: s.ptr, block: s.block}
}

// Move transfers ownership to a new handle and leaves s empty.
func (s *Shared[T]) Move() *Shared[T] {
	if s == nil {
		return &Shared[T]{}
	}
	m := &Shared[T]{ptr: s.ptr, block: s.block}
	s.ptr, s.block = nil, nil
	return m
}

// Release gives up ownership and leaves s empty. Releasing the last owner
// destroys the payload. Releasing an empty handle does nothing.
func (s *Shared[T]) Release() {
	if s == nil {
		return
	}
	b := s.block
	s.ptr, s.block = nil, nil
	if b != nil {
		releaseStrong(b)
	}
}

// Reset is Release.
func (s *Shared[T]) Reset() {
	s.Release()
}

// ResetTo releases the current payload and takes over next, leaving next
// empty. A nil next leaves s empty.
func (s *Shared[T]) ResetTo(next *Shared[T]) {
	if s == nil {
		return
	}
	m := next.Move()
	s.Swap(m)
	m.Release()
}

// Assign makes s another owner of other's payload, releasing what s owned.
// Assigning a handle to itself is safe.
func (s *Shared[T]) Assign(other *Shared[T]) {
	if s == nil {
		return
	}
	c := other.Clone()
	s.Swap(c)
	c.Release()
}

// Swap exchanges the contents of two handles. It does nothing if either
// is nil.
func (s *Shared[T]) Swap(other *Shared[T]) {
	if s == nil || other == nil {
		return
	}
	s.ptr, other.ptr = other.ptr, s.ptr
	s.block, other.block = other.block, s.block
}

// Weak returns a new Weak handle observing this handle's block.
func (s *Shared[T]) Weak() *Weak[T] {
	if s.Empty() {
		return &Weak[T]{}
	}
	s.block.counts().retainWeak()
	return &Weak[T]{ptr: s.ptr, block: s.block}
}

// SameOwner reports whether both handles share one control block.
func (s *Shared[T]) SameOwner(other *Shared[T]) bool {
	if s.Empty() || other.Empty() {
		return false
	}
	return s.block == other.block
}
