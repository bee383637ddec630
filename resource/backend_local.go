package resource

import (
	"github.com/wippyai/ownership/rc"
)

// slots is the handle storage behind a Table: a dense slice indexed by
// handle-1 plus a free list of reusable handles. Not synchronized; Table
// holds the lock.
type slots[T any] struct {
	entries  []entry[T]
	freeList []Handle
}

type entry[T any] struct {
	owner       *rc.Shared[T]
	typeID      uint32
	borrowCount uint32
	valid       bool
}

func newSlots[T any]() *slots[T] {
	return &slots[T]{
		entries:  make([]entry[T], 0, 64),
		freeList: make([]Handle, 0, 16),
	}
}

// create stores owner and returns its handle.
func (s *slots[T]) create(typeID uint32, owner *rc.Shared[T]) Handle {
	e := entry[T]{
		owner:  owner,
		typeID: typeID,
		valid:  true,
	}

	if len(s.freeList) > 0 {
		handle := s.freeList[len(s.freeList)-1]
		s.freeList = s.freeList[:len(s.freeList)-1]
		s.entries[handle-1] = e
		return handle
	}

	s.entries = append(s.entries, e)
	return Handle(len(s.entries))
}

// lookup returns the live entry for handle, or nil.
func (s *slots[T]) lookup(handle Handle) *entry[T] {
	if handle == 0 {
		return nil
	}
	idx := int(handle) - 1
	if idx >= len(s.entries) {
		return nil
	}
	e := &s.entries[idx]
	if !e.valid {
		return nil
	}
	return e
}

// drop invalidates handle and hands back its owner for the caller to
// release. It returns nil if handle is invalid.
func (s *slots[T]) drop(handle Handle) *rc.Shared[T] {
	e := s.lookup(handle)
	if e == nil {
		return nil
	}
	owner := e.owner
	*e = entry[T]{}
	s.freeList = append(s.freeList, handle)
	return owner
}

// drain invalidates every entry and returns the owners.
func (s *slots[T]) drain() []*rc.Shared[T] {
	var owners []*rc.Shared[T]
	for i := range s.entries {
		if s.entries[i].valid {
			owners = append(owners, s.entries[i].owner)
		}
	}
	s.entries = s.entries[:0]
	s.freeList = s.freeList[:0]
	return owners
}

func (s *slots[T]) len() int {
	count := 0
	for _, e := range s.entries {
		if e.valid {
			count++
		}
	}
	return count
}

func (s *slots[T]) each(fn func(Handle, *entry[T]) bool) {
	for i := range s.entries {
		if s.entries[i].valid {
			if !fn(Handle(i+1), &s.entries[i]) {
				break
			}
		}
	}
}
