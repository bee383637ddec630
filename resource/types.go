package resource

// Handle is an opaque reference to an owner stored in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Event types for table lifecycle notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
	EventBorrowed
	EventBorrowReturned
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventDropped:
		return "dropped"
	case EventBorrowed:
		return "borrowed"
	case EventBorrowReturned:
		return "borrow-returned"
	}
	return "unknown"
}

// Event represents a table lifecycle event.
type Event struct {
	Handle Handle
	TypeID uint32
	Type   EventType
}

// Observer receives notifications about table lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// OnResourceEvent calls f(e).
func (f ObserverFunc) OnResourceEvent(e Event) { f(e) }

// Entry is a snapshot of one table slot.
type Entry struct {
	Handle    Handle
	TypeID    uint32
	Borrows   uint32
	UseCount  int
	WeakCount int
}
