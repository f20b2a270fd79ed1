package las

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Sequential little-endian reader over a byte slice. Reads past the end yield zero values
// so a short legacy buffer never panics; callers check remaining() before optional fields.
type leExtractor struct {
	buf []byte
	pos int
}

func newLeExtractor(buf []byte) *leExtractor {
	return &leExtractor{buf: buf}
}

func (e *leExtractor) remaining() int {
	if e.pos >= len(e.buf) {
		return 0
	}
	return len(e.buf) - e.pos
}

func (e *leExtractor) bytes(n int) []byte {
	out := make([]byte, n)
	if e.pos < len(e.buf) {
		copy(out, e.buf[e.pos:])
	}
	e.pos += n
	return out
}

func (e *leExtractor) fixedString(n int) string {
	return string(bytes.TrimRight(e.bytes(n), "\x00"))
}

func (e *leExtractor) uint8() uint8 {
	return e.bytes(1)[0]
}

func (e *leExtractor) uint16() uint16 {
	return binary.LittleEndian.Uint16(e.bytes(2))
}

func (e *leExtractor) uint32() uint32 {
	return binary.LittleEndian.Uint32(e.bytes(4))
}

func (e *leExtractor) uint64() uint64 {
	return binary.LittleEndian.Uint64(e.bytes(8))
}

func (e *leExtractor) float64() float64 {
	return math.Float64frombits(e.uint64())
}
