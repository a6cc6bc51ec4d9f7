package elfparser

import (
	"encoding/binary"
	"fmt"
)

// fieldReader decodes little endian fields at fixed offsets of one on-disk
// record. The first access outside the record sets err and every later
// access returns zero.
type fieldReader struct {
	what string
	b    []byte
	err  error
}

func newFieldReader(what string, b []byte) *fieldReader {
	return &fieldReader{what: what, b: b}
}

func (r *fieldReader) field(off, n int) []byte {
	if r.err != nil {
		return nil
	}
	if off < 0 || n < 0 || off > len(r.b)-n {
		r.err = fmt.Errorf("%w: %s field [%d, +%d) outside %d-byte record", ErrCorruptFile, r.what, off, n, len(r.b))
		return nil
	}
	return r.b[off : off+n]
}

func (r *fieldReader) u8(off int) uint8 {
	if f := r.field(off, 1); f != nil {
		return f[0]
	}
	return 0
}

func (r *fieldReader) u16(off int) uint16 {
	if f := r.field(off, 2); f != nil {
		return binary.LittleEndian.Uint16(f)
	}
	return 0
}

func (r *fieldReader) u32(off int) uint32 {
	if f := r.field(off, 4); f != nil {
		return binary.LittleEndian.Uint32(f)
	}
	return 0
}

func (r *fieldReader) u64(off int) uint64 {
	if f := r.field(off, 8); f != nil {
		return binary.LittleEndian.Uint64(f)
	}
	return 0
}
