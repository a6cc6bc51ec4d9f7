package elfparser

import (
	"fmt"
)

func decodeFileHeader(b []byte) (FileHeader, error) {
	if len(b) < EI_DATA+1 {
		return FileHeader{}, fmt.Errorf("%w: %d bytes is shorter than the ELF identification", ErrNotELF, len(b))
	}
	if b[0] != ELFMAG0 || b[1] != ELFMAG1 || b[2] != ELFMAG2 || b[3] != ELFMAG3 {
		return FileHeader{}, fmt.Errorf("%w: invalid magic % x", ErrNotELF, b[:4])
	}

	var h FileHeader
	h.Class = FileClass(b[EI_CLASS])
	h.Endian = FileEndian(b[EI_DATA])
	if h.Class != ELFCLASS64 || h.Endian != ELFDATA2LSB {
		return FileHeader{}, fmt.Errorf("%w: class %d, data %d", ErrUnsupported, h.Class, h.Endian)
	}
	if len(b) < FileHeaderSize {
		return FileHeader{}, fmt.Errorf("%w: ELF header truncated to %d bytes", ErrCorruptFile, len(b))
	}

	r := newFieldReader("file header", b[:FileHeaderSize])
	h.Type = FileType(r.u16(16))
	h.Machine = r.u16(18)
	h.Version = r.u32(20)
	h.Entry = r.u64(24)
	h.SectionHeaderOffset = r.u64(40)
	h.Flags = r.u32(48)
	h.SectionHeaderEntrySize = r.u16(58)
	h.SectionHeaderCount = r.u16(60)
	h.SectionNameIndex = r.u16(62)
	if r.err != nil {
		return FileHeader{}, r.err
	}
	return h, nil
}
