package linear

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/comment-bridge/errors"
	"github.com/wippyai/comment-bridge/linear/internal/layout"
)

const pageSize = 65536

// memory adapts a wazero api.Memory to bounds-checked accessors that fail
// with structured errors.
type memory struct {
	mem   api.Memory
	phase errors.Phase
}

func oob(phase errors.Phase, offset, length uint32) *errors.Error {
	return errors.New(phase, errors.KindOutOfBounds).
		Value(offset).
		Detail("memory access out of bounds: offset=%d, length=%d", offset, length).
		Build()
}

func (m memory) read(offset, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, oob(m.phase, offset, length)
	}
	return data, nil
}

func (m memory) write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return oob(m.phase, offset, uint32(len(data)))
	}
	return nil
}

func (m memory) readU8(offset uint32) (uint8, error) {
	v, ok := m.mem.ReadByte(offset)
	if !ok {
		return 0, oob(m.phase, offset, 1)
	}
	return v, nil
}

func (m memory) readU16(offset uint32) (uint16, error) {
	v, ok := m.mem.ReadUint16Le(offset)
	if !ok {
		return 0, oob(m.phase, offset, 2)
	}
	return v, nil
}

func (m memory) readU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, oob(m.phase, offset, 4)
	}
	return v, nil
}

func (m memory) readU64(offset uint32) (uint64, error) {
	v, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, oob(m.phase, offset, 8)
	}
	return v, nil
}

func (m memory) writeU8(offset uint32, value uint8) error {
	if !m.mem.WriteByte(offset, value) {
		return oob(m.phase, offset, 1)
	}
	return nil
}

func (m memory) writeU16(offset uint32, value uint16) error {
	if !m.mem.WriteUint16Le(offset, value) {
		return oob(m.phase, offset, 2)
	}
	return nil
}

func (m memory) writeU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return oob(m.phase, offset, 4)
	}
	return nil
}

func (m memory) writeU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return oob(m.phase, offset, 8)
	}
	return nil
}

// readDisc reads a variant discriminant of the given width.
func (m memory) readDisc(offset, size uint32) (uint32, error) {
	switch size {
	case 1:
		v, err := m.readU8(offset)
		return uint32(v), err
	case 2:
		v, err := m.readU16(offset)
		return uint32(v), err
	}
	return m.readU32(offset)
}

func (m memory) writeDisc(offset, size, value uint32) error {
	switch size {
	case 1:
		return m.writeU8(offset, uint8(value))
	case 2:
		return m.writeU16(offset, uint16(value))
	}
	return m.writeU32(offset, value)
}

// bump is a grow-only allocator over linear memory. Nothing is freed until
// the runtime is reset.
type bump struct {
	mem   api.Memory
	start uint32
	next  uint32
}

// heapStart keeps address 0 unused so it can act as a null pointer.
const heapStart = 8

func newBump(mem api.Memory) *bump {
	return &bump{mem: mem, start: heapStart, next: heapStart}
}

// alloc reserves size bytes aligned to align, growing memory as needed.
func (b *bump) alloc(size, align uint32) (uint32, error) {
	ptr := layout.AlignTo(b.next, align)
	end := uint64(ptr) + uint64(size)
	if end >= 1<<32 {
		return 0, errors.AllocationFailed(errors.PhaseHost, size, align)
	}

	if have := uint64(b.mem.Size()); end > have {
		pages := uint32((end - have + pageSize - 1) / pageSize)
		if _, ok := b.mem.Grow(pages); !ok {
			return 0, errors.New(errors.PhaseHost, errors.KindAllocation).
				Value(size).
				Detail("failed to grow memory by %d pages for %d bytes", pages, size).
				Build()
		}
	}

	b.next = uint32(end)
	return ptr, nil
}

// used returns the number of bytes handed out so far.
func (b *bump) used() uint32 {
	return b.next - b.start
}

func (b *bump) reset() {
	b.next = b.start
}
