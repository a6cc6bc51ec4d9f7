package elfparser

import (
	"bytes"
	"fmt"

	"golang.org/x/sys/unix"
)

type stringTable struct {
	data []byte
}

// Len returns the size of the table in bytes.
func (t stringTable) Len() int {
	return len(t.data)
}

func (t stringTable) tail(off uint32) ([]byte, error) {
	if uint64(off) >= uint64(len(t.data)) {
		return nil, fmt.Errorf("%w: string offset %d outside %d-byte table", ErrCorruptFile, off, len(t.data))
	}
	return t.data[off:], nil
}

// Lookup returns the NUL terminated string starting at off, without the
// terminator.
func (t stringTable) Lookup(off uint32) (string, error) {
	tail, err := t.tail(off)
	if err != nil {
		return "", err
	}
	s := unix.ByteSliceToString(tail)
	if len(s) == len(tail) {
		return "", fmt.Errorf("%w: string at offset %d is not terminated", ErrCorruptFile, off)
	}
	return s, nil
}

// Matches reports whether the string at off equals name, without allocating.
func (t stringTable) Matches(off uint32, name string) (bool, error) {
	tail, err := t.tail(off)
	if err != nil {
		return false, err
	}
	end := bytes.IndexByte(tail, 0)
	if end < 0 {
		return false, fmt.Errorf("%w: string at offset %d is not terminated", ErrCorruptFile, off)
	}
	return string(tail[:end]) == name, nil
}

// SectionNameTable holds section names (the table designated by the file
// header). It is a distinct type from SymbolNameTable so the two tables cannot
// be mixed up.
type SectionNameTable struct {
	stringTable
}

func NewSectionNameTable(data []byte) SectionNameTable {
	return SectionNameTable{stringTable{data: data}}
}

// SymbolNameTable holds symbol names (the .strtab section).
type SymbolNameTable struct {
	stringTable
}

func NewSymbolNameTable(data []byte) SymbolNameTable {
	return SymbolNameTable{stringTable{data: data}}
}
