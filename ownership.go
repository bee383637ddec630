package ownership

// Memory is a byte-addressed memory region, typically WASM linear memory,
// that a memory source can place block storage into.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU32(offset uint32) (uint32, error)
	WriteU32(offset uint32, value uint32) error
}

// MemorySizer provides the current size of a memory region in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator is a memory source. Control blocks reserve their own storage
// from it and return that storage when the block is released.
//
// Alloc returns the address of a region of at least size bytes aligned to
// align. Free must be called with the same size and align that were passed
// to Alloc.
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
	Free(ptr, size, align uint32)
}
