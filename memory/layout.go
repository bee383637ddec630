package memory

import (
	"unsafe"

	"fortio.org/safecast"

	"github.com/wippyai/ownership/errors"
)

// Layout describes a single allocation holding a header and an inline payload.
type Layout struct {
	Size          uint32
	Align         uint32
	PayloadOffset uint32
}

// AlignUp rounds n up to a multiple of align. align must be a power of two.
func AlignUp(n, align uint32) uint32 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

func alignUp64(n, align uint64) uint64 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

// IsPowerOfTwo reports whether align is a valid alignment.
func IsPowerOfTwo(align uint32) bool {
	return align != 0 && align&(align-1) == 0
}

// BlockLayout computes the layout of a header followed by a payload in one
// allocation. The payload starts at the first offset past the header that
// satisfies the payload alignment; the total size is rounded up to the
// larger of the two alignments.
func BlockLayout(headerSize, headerAlign, payloadSize, payloadAlign uintptr) (Layout, error) {
	if headerAlign == 0 {
		headerAlign = 1
	}
	if payloadAlign == 0 {
		payloadAlign = 1
	}

	align := headerAlign
	if payloadAlign > align {
		align = payloadAlign
	}

	offset := alignUp64(uint64(headerSize), uint64(payloadAlign))
	end := offset + uint64(payloadSize)
	// A trailing zero-size field is padded so its address stays inside the block.
	if payloadSize == 0 && headerSize > 0 {
		end++
	}
	size := alignUp64(end, uint64(align))

	s, err := safecast.Conv[uint32](size)
	if err != nil {
		return Layout{}, errors.Overflow(errors.PhaseMemory, size, "uint32")
	}
	a, err := safecast.Conv[uint32](uint64(align))
	if err != nil {
		return Layout{}, errors.Overflow(errors.PhaseMemory, uint64(align), "uint32")
	}
	off, err := safecast.Conv[uint32](offset)
	if err != nil {
		return Layout{}, errors.Overflow(errors.PhaseMemory, offset, "uint32")
	}
	return Layout{Size: s, Align: a, PayloadOffset: off}, nil
}

// SizeOf returns the size and alignment of T as allocator arguments.
func SizeOf[T any]() (size, align uint32, err error) {
	var zero T
	size, err = safecast.Conv[uint32](uint64(unsafe.Sizeof(zero)))
	if err != nil {
		return 0, 0, errors.Overflow(errors.PhaseMemory, uint64(unsafe.Sizeof(zero)), "uint32")
	}
	align, err = safecast.Conv[uint32](uint64(unsafe.Alignof(zero)))
	if err != nil {
		return 0, 0, errors.Overflow(errors.PhaseMemory, uint64(unsafe.Alignof(zero)), "uint32")
	}
	return size, align, nil
}
