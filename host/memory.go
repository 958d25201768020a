package host

import (
	"bytes"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/msgwire/errors"
)

// Memory adapts a guest linear memory to bounds-checked reads and writes
// that fail with memory errors instead of returning ok flags.
type Memory struct {
	mem api.Memory
}

// WrapMemory wraps mem. It returns nil when mem is nil.
func WrapMemory(mem api.Memory) *Memory {
	if mem == nil {
		return nil
	}
	return &Memory{mem: mem}
}

// Size returns the current memory size in bytes.
func (m *Memory) Size() uint32 {
	return m.mem.Size()
}

// Read returns a view of length bytes at offset. The view aliases guest
// memory and is only valid until the next guest call.
func (m *Memory) Read(offset, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseMemory, uint64(offset), uint64(length), m.mem.Size())
	}
	return data, nil
}

// Write copies data into memory at offset.
func (m *Memory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return errors.OutOfBounds(errors.PhaseMemory, uint64(offset), uint64(len(data)), m.mem.Size())
	}
	return nil
}

// WriteCString writes s followed by a NUL byte at offset.
func (m *Memory) WriteCString(offset uint32, s string) error {
	if err := m.Write(offset, []byte(s)); err != nil {
		return err
	}
	return m.Write(offset+uint32(len(s)), []byte{0})
}

// ReadCString copies the bytes from ptr up to the first NUL.
func (m *Memory) ReadCString(ptr uint32) (string, error) {
	size := m.mem.Size()
	if ptr >= size {
		return "", errors.OutOfBounds(errors.PhaseMemory, uint64(ptr), 1, size)
	}
	data, ok := m.mem.Read(ptr, size-ptr)
	if !ok {
		return "", errors.OutOfBounds(errors.PhaseMemory, uint64(ptr), uint64(size-ptr), size)
	}
	n := bytes.IndexByte(data, 0)
	if n < 0 {
		return "", errors.Unterminated(ptr, size)
	}
	return string(data[:n]), nil
}
