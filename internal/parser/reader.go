package parser

import (
	"encoding/binary"
	"math"
)

// sectionReader walks a byte slice with bounds-checked little-endian reads.
// All MapGIS numeric fields are little-endian fixed-width values; a read
// past the end of the data is reported once via err and every subsequent
// read returns zero values, so decode loops check err at record
// boundaries instead of after every field.
type sectionReader struct {
	data []byte
	pos  int64
	err  error
}

func newSectionReader(data []byte) *sectionReader {
	return &sectionReader{data: data}
}

func (r *sectionReader) fail(reason string) {
	if r.err == nil {
		r.err = &FormatError{Offset: r.pos, Reason: reason}
	}
}

// take returns the next n bytes and advances, or records a truncation error.
func (r *sectionReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+int64(n) > int64(len(r.data)) {
		r.fail("truncated record")
		return nil
	}
	b := r.data[r.pos : r.pos+int64(n)]
	r.pos += int64(n)
	return b
}

func (r *sectionReader) seek(offset int64) {
	if r.err != nil {
		return
	}
	if offset < 0 || offset > int64(len(r.data)) {
		r.fail("seek out of range")
		return
	}
	r.pos = offset
}

func (r *sectionReader) skip(n int) {
	r.take(n)
}

func (r *sectionReader) byte() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *sectionReader) int16() int16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return int16(binary.LittleEndian.Uint16(b))
}

func (r *sectionReader) int32() int32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(b))
}

func (r *sectionReader) float32() float32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func (r *sectionReader) float64() float64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}
