// Package memory provides memory sources for control block storage.
//
// Every control block reserves the bytes it occupies from an
// ownership.Allocator and returns them when the block is released. The
// allocators here cover the common cases:
//
//	memory.Default()          // accounting allocator over the Go heap
//	memory.NewCounting(a)     // counts Alloc/Free calls and bytes in use
//	memory.NewLimited(a, n)   // fails once n bytes are outstanding
//	memory.NewLinear(mem, 0)  // first-fit allocator inside wazero linear memory
//
// # Linear Memory
//
// Linear places storage inside a WebAssembly linear memory, growing it a
// page at a time when needed:
//
//	rt := wazero.NewRuntime(ctx)
//	alloc, _ := memory.Instantiate(ctx, rt, 1) // one-page module built by MemoryModule
//
// An existing module's memory works the same way:
//
//	alloc := memory.NewLinear(mod.ExportedMemory("memory"), 0)
//
// For guests that export cabi_realloc, WrapAllocator adapts the export so
// that guest-owned objects can be adopted and freed by the guest allocator.
//
// # Layout
//
// BlockLayout computes the single-allocation layout of a header followed by
// an inline payload, with the payload aligned after the header exactly as
// the Go compiler lays out struct{ header; payload }.
package memory
