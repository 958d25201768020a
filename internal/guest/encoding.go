package guest

import (
	"github.com/tetratelabs/wazero/api"
)

// Opcodes used by the generated function bodies.
const (
	OpUnreachable byte = 0x00
	OpLoop        byte = 0x03
	OpEnd         byte = 0x0b
	OpBr          byte = 0x0c
	OpCall        byte = 0x10
	OpLocalGet    byte = 0x20
	OpLocalSet    byte = 0x21
	OpGlobalGet   byte = 0x23
	OpGlobalSet   byte = 0x24
	OpI32Const    byte = 0x41
	OpI64Const    byte = 0x42
	OpI32Add      byte = 0x6a
	OpPrefixFC    byte = 0xfc

	blockTypeEmpty byte = 0x40
	fcMemoryCopy   byte = 0x0a
)

// EncodeULEB128 encodes an unsigned value in LEB128 format.
func EncodeULEB128(v uint32) []byte {
	var result []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		result = append(result, b)
		if v == 0 {
			break
		}
	}
	return result
}

// EncodeSLEB128 encodes a signed value in LEB128 format.
func EncodeSLEB128[T int32 | int64](v T) []byte {
	var result []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			result = append(result, b)
			break
		}
		result = append(result, b|0x80)
	}
	return result
}

// ValTypeToWasm converts a wazero value type to its binary encoding.
func ValTypeToWasm(t api.ValueType) byte {
	switch t {
	case api.ValueTypeI64:
		return 0x7e
	case api.ValueTypeF32:
		return 0x7d
	case api.ValueTypeF64:
		return 0x7c
	default:
		return 0x7f
	}
}

// Code is a small instruction assembler.
type Code []byte

func (c Code) LocalGet(i uint32) Code  { return append(append(c, OpLocalGet), EncodeULEB128(i)...) }
func (c Code) LocalSet(i uint32) Code  { return append(append(c, OpLocalSet), EncodeULEB128(i)...) }
func (c Code) GlobalGet(i uint32) Code { return append(append(c, OpGlobalGet), EncodeULEB128(i)...) }
func (c Code) GlobalSet(i uint32) Code { return append(append(c, OpGlobalSet), EncodeULEB128(i)...) }
func (c Code) I32Const(v int32) Code   { return append(append(c, OpI32Const), EncodeSLEB128(v)...) }
func (c Code) I64Const(v int64) Code   { return append(append(c, OpI64Const), EncodeSLEB128(v)...) }
func (c Code) I32Add() Code            { return append(c, OpI32Add) }
func (c Code) Call(fn uint32) Code     { return append(append(c, OpCall), EncodeULEB128(fn)...) }
func (c Code) Unreachable() Code       { return append(c, OpUnreachable) }

// MemoryCopy pops dst, src and n and copies n bytes from src to dst.
func (c Code) MemoryCopy() Code {
	return append(c, OpPrefixFC, fcMemoryCopy, 0x00, 0x00)
}

// SpinForever emits a loop that branches to itself.
func (c Code) SpinForever() Code {
	return append(c, OpLoop, blockTypeEmpty, OpBr, 0x00, OpEnd)
}
