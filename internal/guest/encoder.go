package guest

import (
	"github.com/tetratelabs/wazero/api"
)

// Behavior selects what encode_from_json does with its input pointer.
type Behavior int

const (
	// Echo returns the input pointer, so the result is the input text.
	Echo Behavior = iota
	// Null returns 0, the failure sentinel.
	Null
	// Fixed copies Config.Output into a fresh allocation and returns it.
	Fixed
	// Trap executes unreachable.
	Trap
	// Spin never returns.
	Spin
	// Bridge forwards the input pointer to the imported
	// env.encode_native function and returns its result.
	Bridge
	// Unterminated returns a pointer to bytes that run to the end of memory
	// without a NUL.
	Unterminated
	// OutOfRange returns a pointer past the end of memory.
	OutOfRange
)

// Names of the exports and imports that make up the encoder ABI.
const (
	ExportMemory    = "memory"
	ExportMalloc    = "malloc"
	ExportFree      = "free_ptr"
	ExportEncode    = "encode_from_json"
	ExportFreeCount = "free_count"
	ExportHeap      = "heap"

	BridgeModule = "env"
	BridgeFunc   = "encode_native"
)

// PageSize is the size of one wasm memory page.
const PageSize = 65536

const (
	dataOffset = 16
	heapAlign  = 16
	minHeap    = 1024
)

// Config describes an encoder module.
type Config struct {
	Behavior Behavior
	// Output is the text Fixed returns.
	Output string
	// Pages is the memory size; zero means 16 pages.
	Pages uint32
	// Omit leaves the named export out of the module.
	Omit string
	// WideMalloc declares malloc as (i64) -> i64.
	WideMalloc bool
}

// Encoder builds a module exposing memory, a bump allocator as malloc,
// a counting free_ptr and encode_from_json with the configured behavior.
// The exported mutable globals "heap" and "free_count" let tests observe
// allocator state.
func Encoder(cfg Config) []byte {
	pages := cfg.Pages
	if pages == 0 {
		pages = 16
	}
	memSize := pages * PageSize

	b := NewBuilder(pages)
	if cfg.Omit != ExportMemory {
		b.ExportMemory(ExportMemory)
	}

	var bridge uint32
	if cfg.Behavior == Bridge {
		bridge = b.AddImport(Import{
			Module:  BridgeModule,
			Name:    BridgeFunc,
			Params:  []api.ValueType{api.ValueTypeI32},
			Results: []api.ValueType{api.ValueTypeI32},
		})
	}

	heapStart := uint32(minHeap)
	if cfg.Behavior == Fixed {
		b.AddData(dataOffset, append([]byte(cfg.Output), 0))
		if end := align(dataOffset+uint32(len(cfg.Output))+1, heapAlign); end > heapStart {
			heapStart = end
		}
	}
	if cfg.Behavior == Unterminated {
		b.AddData(memSize-4, []byte("abcd"))
	}

	heap := b.AddGlobal(Global{Export: exportName(cfg, ExportHeap), Mutable: true, Init: int32(heapStart)})
	frees := b.AddGlobal(Global{Export: exportName(cfg, ExportFreeCount), Mutable: true})

	i32 := []api.ValueType{api.ValueTypeI32}

	malloc := Func{
		Export:  exportName(cfg, ExportMalloc),
		Params:  i32,
		Results: i32,
		// Return the current heap pointer and advance it by size.
		Body: Code{}.GlobalGet(heap).GlobalGet(heap).LocalGet(0).I32Add().GlobalSet(heap),
	}
	if cfg.WideMalloc {
		i64 := []api.ValueType{api.ValueTypeI64}
		malloc.Params, malloc.Results = i64, i64
		malloc.Body = Code{}.I64Const(0)
	}
	mallocIdx := b.AddFunc(malloc)

	b.AddFunc(Func{
		Export: exportName(cfg, ExportFree),
		Params: i32,
		Body:   Code{}.GlobalGet(frees).I32Const(1).I32Add().GlobalSet(frees),
	})

	encode := Func{
		Export:  exportName(cfg, ExportEncode),
		Params:  i32,
		Results: i32,
	}
	switch cfg.Behavior {
	case Echo:
		encode.Body = Code{}.LocalGet(0)
	case Null:
		encode.Body = Code{}.I32Const(0)
	case Fixed:
		n := int32(len(cfg.Output) + 1)
		encode.Locals = i32
		encode.Body = Code{}.
			I32Const(n).Call(mallocIdx).LocalSet(1).
			LocalGet(1).I32Const(dataOffset).I32Const(n).MemoryCopy().
			LocalGet(1)
		if cfg.WideMalloc {
			encode.Body = Code{}.I32Const(dataOffset)
		}
	case Trap:
		encode.Body = Code{}.Unreachable()
	case Spin:
		encode.Body = Code{}.SpinForever().I32Const(0)
	case Bridge:
		encode.Body = Code{}.LocalGet(0).Call(bridge)
	case Unterminated:
		encode.Body = Code{}.I32Const(int32(memSize - 4))
	case OutOfRange:
		encode.Body = Code{}.I32Const(int32(memSize + 8))
	}
	b.AddFunc(encode)

	return b.Build()
}

func exportName(cfg Config, name string) string {
	if cfg.Omit == name {
		return ""
	}
	return name
}

func align(n, to uint32) uint32 {
	return (n + to - 1) / to * to
}
