package memory

import (
	"context"
	"encoding/binary"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/ownership/errors"
)

// ExportName is the export name of the memory in modules built by
// MemoryModule.
const ExportName = "memory"

const (
	sectionMemory byte = 0x05
	sectionExport byte = 0x07
	externMemory  byte = 0x02
	limitsHasMax  byte = 0x01
)

// MemoryModule encodes a WebAssembly module that defines one memory of
// minPages pages and exports it as ExportName. maxPages of 0 means no
// maximum.
func MemoryModule(minPages, maxPages uint32) []byte {
	out := binary.LittleEndian.AppendUint32(nil, 0x6d736100) // "\0asm"
	out = binary.LittleEndian.AppendUint32(out, 1)

	mem := appendU32(nil, 1)
	if maxPages > 0 {
		mem = append(mem, limitsHasMax)
		mem = appendU32(mem, minPages)
		mem = appendU32(mem, maxPages)
	} else {
		mem = append(mem, 0)
		mem = appendU32(mem, minPages)
	}
	out = appendSection(out, sectionMemory, mem)

	exp := appendU32(nil, 1)
	exp = appendU32(exp, uint32(len(ExportName)))
	exp = append(exp, ExportName...)
	exp = append(exp, externMemory)
	exp = appendU32(exp, 0)
	return appendSection(out, sectionExport, exp)
}

// Instantiate compiles MemoryModule(pages, 0) in rt and returns a Linear
// allocator over its memory. The module's lifetime is tied to rt.
func Instantiate(ctx context.Context, rt wazero.Runtime, pages uint32) (*Linear, error) {
	mod, err := rt.Instantiate(ctx, MemoryModule(pages, 0))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseMemory, errors.KindUnsupported, err, "instantiate memory module")
	}
	mem := mod.ExportedMemory(ExportName)
	if mem == nil {
		return nil, errors.NotFound(errors.PhaseMemory, "export", ExportName)
	}
	return NewLinear(mem, 0), nil
}

func appendSection(out []byte, id byte, data []byte) []byte {
	out = append(out, id)
	out = appendU32(out, uint32(len(data)))
	return append(out, data...)
}

// appendU32 appends v as unsigned LEB128.
func appendU32(b []byte, v uint32) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		b = append(b, c)
		if v == 0 {
			return b
		}
	}
}
