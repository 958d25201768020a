// Package guest assembles small WebAssembly binaries in process. Tests use it
// to produce encoder modules that follow the host ABI without shipping
// compiled fixtures.
package guest

import (
	"github.com/tetratelabs/wazero/api"
)

// Func is a function defined by the module. Body holds the instructions
// without the trailing end opcode.
type Func struct {
	Export  string
	Params  []api.ValueType
	Results []api.ValueType
	Locals  []api.ValueType
	Body    []byte
}

// Import is a function imported from a host module.
type Import struct {
	Module  string
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
}

// Global is a locally defined i32 global.
type Global struct {
	Export  string
	Mutable bool
	Init    int32
}

// Segment is an active data segment in memory 0.
type Segment struct {
	Offset uint32
	Data   []byte
}

// Builder accumulates module sections. Imports take the lowest function
// indices, followed by defined functions in the order added.
type Builder struct {
	imports      []Import
	funcs        []Func
	globals      []Global
	data         []Segment
	memPages     uint32
	memExport    string
	memMaxPages  uint32
	hasMaxMemory bool
}

// NewBuilder creates a builder for a module with one memory of pages pages.
// A zero page count builds a module without memory.
func NewBuilder(pages uint32) *Builder {
	return &Builder{memPages: pages}
}

// ExportMemory exports memory 0 under name.
func (b *Builder) ExportMemory(name string) *Builder {
	b.memExport = name
	return b
}

// LimitMemory sets the maximum page count of memory 0.
func (b *Builder) LimitMemory(maxPages uint32) *Builder {
	b.memMaxPages = maxPages
	b.hasMaxMemory = true
	return b
}

// AddImport adds a function import and returns its function index.
func (b *Builder) AddImport(imp Import) uint32 {
	b.imports = append(b.imports, imp)
	return uint32(len(b.imports) - 1)
}

// AddFunc adds a function and returns its index. All imports must be added
// first.
func (b *Builder) AddFunc(f Func) uint32 {
	b.funcs = append(b.funcs, f)
	return uint32(len(b.imports) + len(b.funcs) - 1)
}

// AddGlobal adds an i32 global and returns its index.
func (b *Builder) AddGlobal(g Global) uint32 {
	b.globals = append(b.globals, g)
	return uint32(len(b.globals) - 1)
}

// AddData adds an active data segment.
func (b *Builder) AddData(offset uint32, data []byte) *Builder {
	b.data = append(b.data, Segment{Offset: offset, Data: data})
	return b
}

// Build returns the encoded module.
func (b *Builder) Build() []byte {
	wasm := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	wasm = appendSection(wasm, 0x01, b.typeSection())
	if len(b.imports) > 0 {
		wasm = appendSection(wasm, 0x02, b.importSection())
	}
	if len(b.funcs) > 0 {
		wasm = appendSection(wasm, 0x03, b.funcSection())
	}
	if b.memPages > 0 {
		wasm = appendSection(wasm, 0x05, b.memorySection())
	}
	if len(b.globals) > 0 {
		wasm = appendSection(wasm, 0x06, b.globalSection())
	}
	wasm = appendSection(wasm, 0x07, b.exportSection())
	if len(b.funcs) > 0 {
		wasm = appendSection(wasm, 0x0a, b.codeSection())
	}
	if len(b.data) > 0 {
		wasm = appendSection(wasm, 0x0b, b.dataSection())
	}
	return wasm
}

func appendSection(wasm []byte, id byte, body []byte) []byte {
	wasm = append(wasm, id)
	wasm = append(wasm, EncodeULEB128(uint32(len(body)))...)
	return append(wasm, body...)
}

// One type per function; imports first.
func (b *Builder) typeSection() []byte {
	n := len(b.imports) + len(b.funcs)
	section := EncodeULEB128(uint32(n))
	for _, imp := range b.imports {
		section = appendFuncType(section, imp.Params, imp.Results)
	}
	for _, f := range b.funcs {
		section = appendFuncType(section, f.Params, f.Results)
	}
	return section
}

func appendFuncType(section []byte, params, results []api.ValueType) []byte {
	section = append(section, 0x60)
	section = append(section, EncodeULEB128(uint32(len(params)))...)
	for _, t := range params {
		section = append(section, ValTypeToWasm(t))
	}
	section = append(section, EncodeULEB128(uint32(len(results)))...)
	for _, t := range results {
		section = append(section, ValTypeToWasm(t))
	}
	return section
}

func (b *Builder) importSection() []byte {
	section := EncodeULEB128(uint32(len(b.imports)))
	for i, imp := range b.imports {
		section = appendName(section, imp.Module)
		section = appendName(section, imp.Name)
		section = append(section, 0x00)
		section = append(section, EncodeULEB128(uint32(i))...)
	}
	return section
}

func (b *Builder) funcSection() []byte {
	section := EncodeULEB128(uint32(len(b.funcs)))
	for i := range b.funcs {
		section = append(section, EncodeULEB128(uint32(len(b.imports)+i))...)
	}
	return section
}

func (b *Builder) memorySection() []byte {
	section := []byte{0x01}
	if b.hasMaxMemory {
		section = append(section, 0x01)
		section = append(section, EncodeULEB128(b.memPages)...)
		return append(section, EncodeULEB128(b.memMaxPages)...)
	}
	section = append(section, 0x00)
	return append(section, EncodeULEB128(b.memPages)...)
}

func (b *Builder) globalSection() []byte {
	section := EncodeULEB128(uint32(len(b.globals)))
	for _, g := range b.globals {
		section = append(section, ValTypeToWasm(api.ValueTypeI32))
		if g.Mutable {
			section = append(section, 0x01)
		} else {
			section = append(section, 0x00)
		}
		section = append(section, OpI32Const)
		section = append(section, EncodeSLEB128(g.Init)...)
		section = append(section, OpEnd)
	}
	return section
}

func (b *Builder) exportSection() []byte {
	var entries []byte
	count := 0
	if b.memPages > 0 && b.memExport != "" {
		entries = appendName(entries, b.memExport)
		entries = append(entries, 0x02, 0x00)
		count++
	}
	for i, g := range b.globals {
		if g.Export == "" {
			continue
		}
		entries = appendName(entries, g.Export)
		entries = append(entries, 0x03)
		entries = append(entries, EncodeULEB128(uint32(i))...)
		count++
	}
	for i, f := range b.funcs {
		if f.Export == "" {
			continue
		}
		entries = appendName(entries, f.Export)
		entries = append(entries, 0x00)
		entries = append(entries, EncodeULEB128(uint32(len(b.imports)+i))...)
		count++
	}
	return append(EncodeULEB128(uint32(count)), entries...)
}

func (b *Builder) codeSection() []byte {
	section := EncodeULEB128(uint32(len(b.funcs)))
	for _, f := range b.funcs {
		var body []byte
		body = append(body, EncodeULEB128(uint32(len(f.Locals)))...)
		for _, t := range f.Locals {
			body = append(body, 0x01, ValTypeToWasm(t))
		}
		body = append(body, f.Body...)
		body = append(body, OpEnd)
		section = append(section, EncodeULEB128(uint32(len(body)))...)
		section = append(section, body...)
	}
	return section
}

func (b *Builder) dataSection() []byte {
	section := EncodeULEB128(uint32(len(b.data)))
	for _, seg := range b.data {
		section = append(section, 0x00, OpI32Const)
		section = append(section, EncodeSLEB128(int32(seg.Offset))...)
		section = append(section, OpEnd)
		section = append(section, EncodeULEB128(uint32(len(seg.Data)))...)
		section = append(section, seg.Data...)
	}
	return section
}

func appendName(b []byte, name string) []byte {
	b = append(b, EncodeULEB128(uint32(len(name)))...)
	return append(b, name...)
}
