package resource

import (
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/ownership/errors"
	"github.com/wippyai/ownership/rc"
)

// Table maps integer handles to Shared owners. The table holds one strong
// reference per live handle; callers get their own owners with Get and
// observers with Observe.
//
// Table methods are safe for concurrent use: every method that changes a
// block's counts holds the table's write lock. Owners handed out by Get are
// not covered by that lock. Unless the payload was created with
// rc.Options.Synchronized, release them from one goroutine at a time.
type Table[T any] struct {
	slots     *slots[T]
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	closed    bool
}

// NewTable creates an empty table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{
		slots: newSlots[T](),
	}
}

// Insert moves owner into the table and returns its handle. owner is left
// empty. Inserting an empty owner is an error.
func (t *Table[T]) Insert(typeID uint32, owner *rc.Shared[T]) (Handle, error) {
	if owner.Empty() {
		return 0, errors.InvalidInput(errors.PhaseTable, "cannot insert an empty owner")
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, errors.Closed(errors.PhaseTable, "table")
	}
	handle := t.slots.create(typeID, owner.Move())
	t.mu.Unlock()

	t.notify(Event{Type: EventCreated, Handle: handle, TypeID: typeID})
	return handle, nil
}

// Get returns a new owner of the payload behind handle.
func (t *Table[T]) Get(handle Handle) (*rc.Shared[T], error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.lookupLocked(handle)
	if err != nil {
		return nil, err
	}
	return e.owner.Clone(), nil
}

// GetTyped is Get restricted to entries inserted with typeID.
func (t *Table[T]) GetTyped(handle Handle, typeID uint32) (*rc.Shared[T], error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.lookupLocked(handle)
	if err != nil {
		return nil, err
	}
	if e.typeID != typeID {
		return nil, errors.New(errors.PhaseTable, errors.KindInvalidInput).
			Path(handleName(handle)).
			Detail("type %d, want %d", e.typeID, typeID).
			Build()
	}
	return e.owner.Clone(), nil
}

// Observe returns a Weak handle to the payload behind handle.
func (t *Table[T]) Observe(handle Handle) (*rc.Weak[T], error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.lookupLocked(handle)
	if err != nil {
		return nil, err
	}
	return e.owner.Weak(), nil
}

// TypeID returns the type ID handle was inserted with.
func (t *Table[T]) TypeID(handle Handle) (uint32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e := t.slots.lookup(handle)
	if e == nil {
		return 0, false
	}
	return e.typeID, true
}

// Borrow gives temporary access to the payload without creating an owner.
// The pointer stays valid until the matching ReturnBorrow; Remove fails
// while borrows are outstanding.
func (t *Table[T]) Borrow(handle Handle) (*T, error) {
	t.mu.Lock()
	e, err := t.lookupLocked(handle)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	e.borrowCount++
	p, typeID := e.owner.Get(), e.typeID
	t.mu.Unlock()

	t.notify(Event{Type: EventBorrowed, Handle: handle, TypeID: typeID})
	return p, nil
}

// ReturnBorrow ends one borrow of handle.
func (t *Table[T]) ReturnBorrow(handle Handle) error {
	t.mu.Lock()
	e, err := t.lookupLocked(handle)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	if e.borrowCount == 0 {
		t.mu.Unlock()
		return errors.New(errors.PhaseTable, errors.KindInvalidInput).
			Path(handleName(handle)).
			Detail("no outstanding borrow").
			Build()
	}
	e.borrowCount--
	typeID := e.typeID
	t.mu.Unlock()

	t.notify(Event{Type: EventBorrowReturned, Handle: handle, TypeID: typeID})
	return nil
}

// Remove drops the table's owner for handle. The payload is destroyed if
// no other owner remains. Fails with errors.ErrBorrowed while borrows are
// outstanding.
func (t *Table[T]) Remove(handle Handle) error {
	t.mu.Lock()
	e, err := t.lookupLocked(handle)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	if e.borrowCount > 0 {
		t.mu.Unlock()
		return errors.Borrowed(uint32(handle), e.borrowCount)
	}
	typeID := e.typeID
	owner := t.slots.drop(handle)
	t.mu.Unlock()

	// Destruction may call back into the table.
	owner.Release()
	t.notify(Event{Type: EventDropped, Handle: handle, TypeID: typeID})
	return nil
}

// Len returns the number of live handles.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.slots.len()
}

// Entries returns a snapshot of every live handle in handle order.
func (t *Table[T]) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Entry
	t.slots.each(func(h Handle, e *entry[T]) bool {
		out = append(out, Entry{
			Handle:    h,
			TypeID:    e.typeID,
			Borrows:   e.borrowCount,
			UseCount:  e.owner.UseCount(),
			WeakCount: e.owner.WeakCount(),
		})
		return true
	})
	return out
}

// Subscribe adds an observer for lifecycle events.
func (t *Table[T]) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table[T]) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Clear removes every handle without outstanding borrows. A handle borrowed
// after Clear started is left in place and logged at debug.
func (t *Table[T]) Clear() {
	t.mu.RLock()
	var handles []Handle
	t.slots.each(func(h Handle, e *entry[T]) bool {
		if e.borrowCount == 0 {
			handles = append(handles, h)
		}
		return true
	})
	t.mu.RUnlock()

	for _, h := range handles {
		if err := t.Remove(h); err != nil {
			rc.Logger().Debug("clear skipped handle",
				zap.Uint32("handle", uint32(h)),
				zap.Error(err))
		}
	}
}

// Close releases every owner, borrowed or not, and rejects further
// inserts. Closing twice is a no-op.
func (t *Table[T]) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	owners := t.slots.drain()
	t.mu.Unlock()

	for _, o := range owners {
		o.Release()
	}
	return nil
}

func (t *Table[T]) lookupLocked(handle Handle) (*entry[T], error) {
	if t.closed {
		return nil, errors.Closed(errors.PhaseTable, "table")
	}
	e := t.slots.lookup(handle)
	if e == nil {
		return nil, errors.NotFound(errors.PhaseTable, "handle", handleName(handle))
	}
	return e, nil
}

func (t *Table[T]) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}

func handleName(h Handle) string {
	return strconv.FormatUint(uint64(h), 10)
}
