// Package ownership provides shared and weak ownership of values with
// explicit, deterministic destruction.
//
// Go's garbage collector reclaims memory, but it does not tell anyone when a
// value stops being used. Values that hold external resources (file
// descriptors, regions of WASM linear memory, pooled buffers) need an owner
// that knows when the last user is gone. This module implements that owner
// as a pair of reference-counted handles.
//
// # Architecture Overview
//
//	ownership/           Root package with the Allocator and Memory interfaces
//	├── rc/              Shared and Weak handles, control blocks, self references
//	├── memory/          Memory sources: Go heap, counting, limited, WASM linear memory
//	├── resource/        Integer handle table whose entries are shared owners
//	├── errors/          Structured error types
//	└── cmd/rcplay/      Ownership script runner and interactive playground
//
// # Quick Start
//
//	s, err := rc.New(Buffer{data: make([]byte, 64)})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Release()
//
//	c := s.Clone()       // UseCount() == 2
//	w := s.Weak()        // observes without owning
//	c.Release()          // UseCount() == 1
//
//	if l := w.Lock(); l.Get() != nil {
//	    defer l.Release()
//	    use(l.Get())
//	}
//
// # Ownership Rules
//
// A Shared handle owns one strong reference. The payload is destroyed when
// the last strong reference is released. A Weak handle owns one weak
// reference and keeps only the bookkeeping block alive. The block is freed
// back to its memory source when both counts are zero.
//
// Handles are pointers and must not be copied by value. Use Clone to add an
// owner and Move to transfer one.
//
// # Memory Sources
//
// Every control block reserves its storage from an Allocator. The default is
// memory.Default(), an accounting allocator over the Go heap. memory.Linear
// places block storage inside a wazero linear memory and memory.Limited
// enforces a byte budget, which makes allocation failure observable.
package ownership
