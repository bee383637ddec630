package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
)

func TestMemoryModule_MatchesHandEncoded(t *testing.T) {
	if got := MemoryModule(1, 0); !bytes.Equal(got, memoryWASM) {
		t.Fatalf("MemoryModule(1, 0) = % x, want % x", got, memoryWASM)
	}
}

func TestAppendU32(t *testing.T) {
	tests := []struct {
		want []byte
		v    uint32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0xe5, 0x8e, 0x26}, 624485},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x0f}, 0xFFFFFFFF},
	}
	for _, tt := range tests {
		if got := appendU32(nil, tt.v); !bytes.Equal(got, tt.want) {
			t.Errorf("appendU32(%d) = % x, want % x", tt.v, got, tt.want)
		}
	}
}

func TestInstantiate(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	lin, err := Instantiate(ctx, rt, 2)
	if err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}
	if size := lin.mem.Size(); size != 2*PageSize {
		t.Fatalf("memory size = %d, want %d", size, 2*PageSize)
	}
	if _, err := lin.Alloc(64, 8); err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
}

func TestInstantiate_Bounded(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	mod, err := rt.Instantiate(ctx, MemoryModule(1, 1))
	if err != nil {
		t.Fatalf("instantiate failed: %v", err)
	}
	lin := NewLinear(mod.ExportedMemory(ExportName), 0)
	if _, err := lin.Alloc(2*PageSize, 8); err == nil {
		t.Fatal("expected allocation beyond the memory maximum to fail")
	}
}
