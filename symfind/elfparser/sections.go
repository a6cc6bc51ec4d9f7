package elfparser

import (
	"fmt"
)

func decodeSectionHeader(b []byte, index int) (SectionHeader, error) {
	r := newFieldReader(fmt.Sprintf("section header %d", index), b)
	sh := SectionHeader{
		Index:      index,
		NameOffset: r.u32(0),
		Type:       SectionType(r.u32(4)),
		Flags:      r.u64(8),
		Address:    r.u64(16),
		Offset:     r.u64(24),
		Size:       r.u64(32),
		Link:       r.u32(40),
		Info:       r.u32(44),
		AddrAlign:  r.u64(48),
		EntrySize:  r.u64(56),
	}
	if r.err != nil {
		return SectionHeader{}, r.err
	}
	return sh, nil
}

// SectionHeaders reads the section header table at the offset, count and
// entry size declared by the file header. The result has exactly
// SectionHeaderCount elements.
func (f *File) SectionHeaders() (SectionTable, error) {
	count := uint64(f.SectionHeaderCount)
	if count == 0 {
		return SectionTable{}, nil
	}
	entSize := uint64(f.SectionHeaderEntrySize)
	if entSize < SectionHeaderSize {
		return nil, fmt.Errorf("%w: section header entry size %d, want at least %d", ErrCorruptFile, entSize, SectionHeaderSize)
	}

	raw, err := f.readRange(f.SectionHeaderOffset, entSize*count, "section header table")
	if err != nil {
		return nil, err
	}

	table := make(SectionTable, count)
	for i := range table {
		start := uint64(i) * entSize
		sh, err := decodeSectionHeader(raw[start:start+entSize], i)
		if err != nil {
			return nil, err
		}
		table[i] = sh
	}
	return table, nil
}

// ReadSection returns the full contents of a section. Sections that occupy no
// space in the file yield an empty slice.
func (f *File) ReadSection(sh SectionHeader) ([]byte, error) {
	if !sh.Type.HasDataInFile() {
		return []byte{}, nil
	}
	return f.readRange(sh.Offset, sh.Size, fmt.Sprintf("section %d", sh.Index))
}

// SectionNames reads the section name string table designated by the file
// header. A file without one yields an empty table.
func (f *File) SectionNames(sections SectionTable) (SectionNameTable, error) {
	idx := int(f.SectionNameIndex)
	if idx == SHN_UNDEF {
		return SectionNameTable{}, nil
	}
	if idx >= len(sections) {
		return SectionNameTable{}, fmt.Errorf("%w: section name table index %d, only %d sections", ErrCorruptFile, idx, len(sections))
	}
	data, err := f.ReadSection(sections[idx])
	if err != nil {
		return SectionNameTable{}, fmt.Errorf("reading section name table: %w", err)
	}
	return NewSectionNameTable(data), nil
}

// SectionIndex maps section names to section indices. When several sections
// share a name, the lowest index wins. Lookups answer as a scan of the table in
// index order would: a section whose name cannot be read only fails lookups
// that reach it before finding a match.
type SectionIndex struct {
	first map[string]int
	// unreadable is the lowest index whose name could not be read. Only
	// meaningful when err is set.
	unreadable int
	err        error
}

// BuildSectionIndex resolves the name of every section once, replacing one
// linear scan per looked up name.
func BuildSectionIndex(sections SectionTable, names SectionNameTable) SectionIndex {
	idx := SectionIndex{first: make(map[string]int, len(sections))}
	if names.Len() == 0 {
		return idx
	}
	for i, sh := range sections {
		name, err := names.Lookup(sh.NameOffset)
		if err != nil {
			if idx.err == nil {
				idx.unreadable = i
				idx.err = fmt.Errorf("name of section %d: %w", i, err)
			}
			continue
		}
		if _, exists := idx.first[name]; !exists {
			idx.first[name] = i
		}
	}
	return idx
}

// Lookup returns the index of the first section called name. It fails when a
// section with an unreadable name precedes any match.
func (s SectionIndex) Lookup(name string) (int, bool, error) {
	i, ok := s.first[name]
	if s.err != nil && (!ok || i > s.unreadable) {
		return 0, false, s.err
	}
	return i, ok, nil
}
