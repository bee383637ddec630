// Package rc implements shared and weak ownership handles with
// deterministic destruction.
//
// # Handles
//
// Shared[T] is a strong owner. Weak[T] is an observer that can be promoted
// back to a Shared[T] while the payload is alive:
//
//	s, _ := rc.New(Conn{addr: "10.0.0.1"})
//	w := s.Weak()
//
//	c := s.Clone()      // s.UseCount() == 2
//	s.Release()         // c.UseCount() == 1
//	c.Release()         // payload destroyed, w.Expired() == true
//
//	l := w.Lock()       // empty handle
//	w.Release()         // control block returned to its memory source
//
// Handles are pointers. Copying a handle struct by value bypasses the
// counts; use Clone, Move and Assign instead. go vet reports such copies.
//
// # Control Blocks
//
// Each payload is tracked by one control block holding a strong count, a
// weak count and the knowledge of how to destroy the payload. There are two
// variants:
//
//	Adopt / AdoptWith   pointer block: owns a *T allocated elsewhere plus a Deleter
//	Allocate / Make / New   object block: payload embedded in the block, one allocation
//
// The payload is destroyed exactly once, when the strong count drops to
// zero. The block is released exactly once, when both counts are zero.
// A zero strong count never becomes positive again.
//
// # Destruction
//
// The default destruction strategy calls Drop (Dropper) or Close
// (io.Closer) on the payload. AdoptWith accepts any Deleter, for example
// FreeRegion to hand a guest allocation back to a WASM allocator.
//
// # Self References
//
// A payload embedding SelfRef[T] can obtain a Shared handle to itself from
// inside its own methods with Self. The link is set by the first handle
// that takes ownership and Self fails with errors.ErrNoOwner otherwise.
//
// # Concurrency
//
// By default counts are plain integers and every handle sharing a block
// must be used from one goroutine or under external synchronization. With
// Options.Synchronized the counts are atomic and promotion is a
// compare-and-swap, so handles sharing a block may be used concurrently.
// Reference cycles are not collected.
package rc
