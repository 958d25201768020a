package guest

import (
	"bytes"
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

func instantiate(t *testing.T, cfg Config) api.Module {
	t.Helper()
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	t.Cleanup(func() { r.Close(ctx) })

	mod, err := r.InstantiateWithConfig(ctx, Encoder(cfg), wazero.NewModuleConfig().WithName(""))
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	return mod
}

func call(t *testing.T, mod api.Module, name string, args ...uint64) uint64 {
	t.Helper()
	res, err := mod.ExportedFunction(name).Call(context.Background(), args...)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	if len(res) == 0 {
		return 0
	}
	return res[0]
}

func TestEncoder_Malloc(t *testing.T) {
	mod := instantiate(t, Config{Behavior: Echo})
	a := call(t, mod, ExportMalloc, 10)
	b := call(t, mod, ExportMalloc, 6)
	if a != minHeap || b != minHeap+10 {
		t.Errorf("malloc returned %d, %d", a, b)
	}
	if got := mod.ExportedGlobal(ExportHeap).Get(); got != minHeap+16 {
		t.Errorf("heap = %d", got)
	}
}

func TestEncoder_FreeCounts(t *testing.T) {
	mod := instantiate(t, Config{Behavior: Echo})
	call(t, mod, ExportFree, 1024)
	call(t, mod, ExportFree, 2048)
	if got := mod.ExportedGlobal(ExportFreeCount).Get(); got != 2 {
		t.Errorf("free_count = %d", got)
	}
}

func TestEncoder_Behaviors(t *testing.T) {
	t.Run("echo", func(t *testing.T) {
		mod := instantiate(t, Config{Behavior: Echo})
		if got := call(t, mod, ExportEncode, 4242); got != 4242 {
			t.Errorf("got %d", got)
		}
	})

	t.Run("null", func(t *testing.T) {
		mod := instantiate(t, Config{Behavior: Null})
		if got := call(t, mod, ExportEncode, 4242); got != 0 {
			t.Errorf("got %d", got)
		}
	})

	t.Run("fixed", func(t *testing.T) {
		out := "0a0b0c"
		mod := instantiate(t, Config{Behavior: Fixed, Output: out})
		ptr := call(t, mod, ExportEncode, 0)
		if ptr < minHeap {
			t.Fatalf("result %d should be a heap allocation", ptr)
		}
		got, ok := mod.ExportedMemory(ExportMemory).Read(uint32(ptr), uint32(len(out)+1))
		if !ok {
			t.Fatal("read out of range")
		}
		if !bytes.Equal(got, append([]byte(out), 0)) {
			t.Errorf("memory = %q", got)
		}
	})

	t.Run("trap", func(t *testing.T) {
		mod := instantiate(t, Config{Behavior: Trap})
		if _, err := mod.ExportedFunction(ExportEncode).Call(context.Background(), 0); err == nil {
			t.Error("expected trap")
		}
	})

	t.Run("unterminated", func(t *testing.T) {
		mod := instantiate(t, Config{Behavior: Unterminated, Pages: 1})
		ptr := call(t, mod, ExportEncode, 0)
		if ptr != PageSize-4 {
			t.Errorf("got %d", ptr)
		}
	})
}

func TestEncoder_LargeFixedOutputMovesHeap(t *testing.T) {
	out := string(bytes.Repeat([]byte("ab"), 1000))
	mod := instantiate(t, Config{Behavior: Fixed, Output: out})
	heap := mod.ExportedGlobal(ExportHeap).Get()
	if heap < dataOffset+uint64(len(out))+1 {
		t.Errorf("heap %d overlaps data segment", heap)
	}
	if heap%heapAlign != 0 {
		t.Errorf("heap %d not aligned", heap)
	}
}

func TestEncoder_Omit(t *testing.T) {
	mod := instantiate(t, Config{Behavior: Echo, Omit: ExportFree})
	if mod.ExportedFunction(ExportFree) != nil {
		t.Error("free_ptr should not be exported")
	}
	mod = instantiate(t, Config{Behavior: Echo, Omit: ExportMemory})
	if mod.ExportedMemory(ExportMemory) != nil {
		t.Error("memory should not be exported")
	}
}

func TestEncoder_WideMalloc(t *testing.T) {
	mod := instantiate(t, Config{Behavior: Echo, WideMalloc: true})
	def := mod.ExportedFunction(ExportMalloc).Definition()
	if p := def.ParamTypes(); len(p) != 1 || p[0] != api.ValueTypeI64 {
		t.Errorf("params = %v", p)
	}
}

func TestEncodeLEB128(t *testing.T) {
	if got := EncodeULEB128(624485); !bytes.Equal(got, []byte{0xe5, 0x8e, 0x26}) {
		t.Errorf("ULEB128 = %x", got)
	}
	if got := EncodeSLEB128(int32(-123456)); !bytes.Equal(got, []byte{0xc0, 0xbb, 0x78}) {
		t.Errorf("SLEB128 = %x", got)
	}
	if got := EncodeSLEB128(int32(64)); !bytes.Equal(got, []byte{0xc0, 0x00}) {
		t.Errorf("SLEB128(64) = %x", got)
	}
}
