package rc

import "github.com/wippyai/ownership/errors"

// Weak observes a payload without keeping it alive. It keeps only the
// control block alive, which is what lets it answer Expired and Lock after
// the payload is gone.
//
// The zero value is an empty, expired handle.
type Weak[T any] struct {
	noCopy noCopy
	ptr    *T
	block  controlBlock
}

// AdoptWeak creates a control block for ptr that has one weak observer and
// no strong owner. Such a block can never be locked. The payload is
// destroyed with deleter when the last Weak handle is released, right
// before the block itself.
func AdoptWeak[T any](ptr *T, deleter Deleter[T], opts Options) (*Weak[T], error) {
	b, err := newPointerBlock(ptr, deleter, opts, errors.PhaseAdopt, 0, 1)
	if err != nil {
		return nil, err
	}
	return &Weak[T]{ptr: ptr, block: b}, nil
}

// Expired reports whether the payload has been destroyed, or was never
// owned.
func (w *Weak[T]) Expired() bool {
	if w == nil || w.block == nil {
		return true
	}
	return w.block.counts().strong() == 0
}

// Lock returns a new Shared handle if the payload is alive, or an empty
// handle otherwise. It never returns nil.
func (w *Weak[T]) Lock() *Shared[T] {
	if w == nil || w.block == nil {
		return &Shared[T]{}
	}
	if !w.block.counts().tryRetain() {
		return &Shared[T]{}
	}
	return &Shared[T]{ptr: w.ptr, block: w.block}
}

// UseCount returns the number of Shared handles owning the observed payload.
func (w *Weak[T]) UseCount() int {
	if w == nil || w.block == nil {
		return 0
	}
	return w.block.counts().strong()
}

// WeakCount returns the number of Weak handles observing the block.
func (w *Weak[T]) WeakCount() int {
	if w == nil || w.block == nil {
		return 0
	}
	return w.block.counts().weak()
}

// Clone returns another observer of the same block.
func (w *Weak[T]) Clone() *Weak[T] {
	if w == nil || w.block == nil {
		return &Weak[T]{}
	}
	w.block.counts().retainWeak()
	return &Weak[T]{ptr: w.ptr, block: w.block}
}

// Move transfers the observation to a new handle and leaves w empty.
func (w *Weak[T]) Move() *Weak[T] {
	if w == nil {
		return &Weak[T]{}
	}
	m := &Weak[T]{ptr: w.ptr, block: w.block}
	w.ptr, w.block = nil, nil
	return m
}

// Release stops observing and leaves w empty. Releasing the last reference
// of any kind frees the control block.
func (w *Weak[T]) Release() {
	if w == nil {
		return
	}
	b := w.block
	w.ptr, w.block = nil, nil
	if b != nil {
		releaseWeakRef(b)
	}
}

// Reset is Release.
func (w *Weak[T]) Reset() {
	w.Release()
}

// Assign makes w observe what other observes.
func (w *Weak[T]) Assign(other *Weak[T]) {
	if w == nil {
		return
	}
	c := other.Clone()
	w.Swap(c)
	c.Release()
}

// Swap exchanges the contents of two handles. It does nothing if either
// is nil.
func (w *Weak[T]) Swap(other *Weak[T]) {
	if w == nil || other == nil {
		return
	}
	w.ptr, other.ptr = other.ptr, w.ptr
	w.block, other.block = other.block, w.block
}
