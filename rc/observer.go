package rc

import "sync"

// EventType identifies a control block lifecycle transition.
type EventType uint8

const (
	EventAllocated EventType = iota
	EventPayloadDestroyed
	EventBlockReleased
)

func (t EventType) String() string {
	switch t {
	case EventAllocated:
		return "allocated"
	case EventPayloadDestroyed:
		return "payload-destroyed"
	case EventBlockReleased:
		return "block-released"
	}
	return "unknown"
}

// BlockKind identifies the control block variant.
type BlockKind uint8

const (
	// BlockPointer owns a payload allocated elsewhere.
	BlockPointer BlockKind = iota
	// BlockObject embeds the payload in its own allocation.
	BlockObject
)

func (k BlockKind) String() string {
	if k == BlockObject {
		return "object"
	}
	return "pointer"
}

// Event describes one lifecycle transition of a control block.
type Event struct {
	GoType string
	Addr   uint32
	Size   uint32
	Type   EventType
	Kind   BlockKind
}

// Observer receives control block lifecycle events. Events are delivered
// synchronously on the goroutine performing the transition.
type Observer interface {
	OnBlockEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// OnBlockEvent calls f(e).
func (f ObserverFunc) OnBlockEvent(e Event) { f(e) }

// Recorder is an Observer that keeps every event it receives.
// Thread-safe.
type Recorder struct {
	events []Event
	mu     sync.Mutex
}

// OnBlockEvent records e.
func (r *Recorder) OnBlockEvent(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Count returns how many events of type t were recorded.
func (r *Recorder) Count(t EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Live returns the number of blocks allocated but not yet released.
func (r *Recorder) Live() int {
	return r.Count(EventAllocated) - r.Count(EventBlockReleased)
}
