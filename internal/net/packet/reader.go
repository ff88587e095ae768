package packet

import (
	"encoding/binary"
)

// Reader reads packet fields from a framed payload.
// Byte 0 is always the opcode.
type Reader struct {
	data []byte
	off  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data, off: 1} // skip opcode byte
}

func (r *Reader) Opcode() byte {
	if len(r.data) == 0 {
		return 0
	}
	return r.data[0]
}

// ReadC reads 1 unsigned byte.
func (r *Reader) ReadC() byte {
	if r.off >= len(r.data) {
		return 0
	}
	v := r.data[r.off]
	r.off++
	return v
}

// ReadH reads 2 bytes as little-endian uint16.
func (r *Reader) ReadH() uint16 {
	if r.off+2 > len(r.data) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v
}

// ReadD reads 4 bytes as little-endian int32.
func (r *Reader) ReadD() int32 {
	if r.off+4 > len(r.data) {
		return 0
	}
	v := int32(binary.LittleEndian.Uint32(r.data[r.off:]))
	r.off += 4
	return v
}

// ReadQ reads 8 bytes as little-endian int64.
func (r *Reader) ReadQ() int64 {
	if r.off+8 > len(r.data) {
		return 0
	}
	v := int64(binary.LittleEndian.Uint64(r.data[r.off:]))
	r.off += 8
	return v
}

// ReadS reads a null-terminated UTF-8 string.
func (r *Reader) ReadS() string {
	start := r.off
	for r.off < len(r.data) && r.data[r.off] != 0 {
		r.off++
	}
	s := string(r.data[start:r.off])
	if r.off < len(r.data) {
		r.off++ // consume terminator
	}
	return s
}

// Remaining returns how many unread bytes are left.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}
