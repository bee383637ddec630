package rc

import "github.com/wippyai/ownership/errors"

// SelfRef lets a payload obtain a Shared handle to itself. Embed it in the
// payload struct:
//
//	type Session struct {
//	    rc.SelfRef[Session]
//	    id string
//	}
//
//	func (s *Session) Spawn() error {
//	    self, err := s.Self()
//	    if err != nil {
//	        return err
//	    }
//	    go s.run(self) // keeps the session alive while running
//	    return nil
//	}
//
// The link is set when the first Shared handle takes ownership of the
// object and is released when the payload is destroyed.
//
// Copying an owned value copies its link too. The copy does not answer
// Self until a Shared handle takes ownership of it.
type SelfRef[T any] struct {
	weak *Weak[T]
	home *SelfRef[T]
}

// Self returns a new Shared handle to the enclosing object. It fails with
// errors.ErrNoOwner if no Shared handle owns the object.
func (r *SelfRef[T]) Self() (*Shared[T], error) {
	if !r.bound() {
		return nil, errors.NoOwner(typeName[T]())
	}
	s := r.weak.Lock()
	if s.Empty() {
		return nil, errors.NoOwner(typeName[T]())
	}
	return s, nil
}

// WeakSelf returns a Weak handle to the enclosing object. It is empty if
// the object was never owned.
func (r *SelfRef[T]) WeakSelf() *Weak[T] {
	if !r.bound() {
		return &Weak[T]{}
	}
	return r.weak.Clone()
}

func (r *SelfRef[T]) selfRef() *SelfRef[T] { return r }

// bound reports whether r holds a link set for this very object rather than
// one copied from another.
func (r *SelfRef[T]) bound() bool {
	return r != nil && r.weak != nil && r.home == r
}

type selfReferencing[T any] interface {
	selfRef() *SelfRef[T]
}

// bindSelf links the payload's SelfRef to s unless it is already linked to
// a live owner of the same object. A copied link belongs to the source
// object and is dropped without being released.
func bindSelf[T any](ptr *T, s *Shared[T]) {
	h, ok := any(ptr).(selfReferencing[T])
	if !ok {
		return
	}
	r := h.selfRef()
	if r.bound() {
		if !r.weak.Expired() {
			return
		}
		r.weak.Release()
	}
	r.weak = s.Weak()
	r.home = r
}

// detachSelf unlinks the payload's SelfRef if it points at b and returns
// the link for the caller to release once the payload is gone.
func detachSelf[T any](ptr *T, b controlBlock) *Weak[T] {
	if ptr == nil {
		return nil
	}
	h, ok := any(ptr).(selfReferencing[T])
	if !ok {
		return nil
	}
	r := h.selfRef()
	if !r.bound() || r.weak.block != b {
		return nil
	}
	w := r.weak
	r.weak, r.home = nil, nil
	return w
}
