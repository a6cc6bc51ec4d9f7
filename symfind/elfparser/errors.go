package elfparser

import "errors"

var (
	// ErrNotELF is returned when the file does not start with an ELF header.
	ErrNotELF = errors.New("not an ELF file")

	// ErrUnsupported is returned for ELF files that are not 64-bit little endian.
	ErrUnsupported = errors.New("unsupported ELF class or encoding")

	// ErrCorruptFile is returned when a declared offset, size or index points
	// outside of the data it refers to.
	ErrCorruptFile = errors.New("corrupt ELF file")

	// ErrNoSymbols is returned when the file has no .symtab or no .strtab section.
	ErrNoSymbols = errors.New("no symbol section")
)
