// Package elfparser reads the section and symbol metadata of 64-bit little
// endian ELF files straight from their on-disk layout.
//
// Every record is decoded field by field with explicit offsets and widths, and
// every offset or size declared by the file is checked against the real file
// length before it is read. Violations surface as ErrCorruptFile.
package elfparser

import (
	"fmt"
	"io"
	"os"
)

// File is an ELF file whose header has been read and decoded.
type File struct {
	FileHeader

	r      io.ReaderAt
	size   int64
	closer io.Closer
}

// Open opens the named file and reads its ELF header. Errors from opening the
// file are returned unwrapped.
func Open(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := fh.Stat()
	if err != nil {
		fh.Close()
		return nil, err
	}
	f, err := NewFile(fh, info.Size())
	if err != nil {
		fh.Close()
		return nil, err
	}
	f.closer = fh
	return f, nil
}

// NewFile reads the ELF header from r, which holds size bytes. A file that
// identifies itself as 64-bit little endian ELF but ends inside the header is
// corrupt rather than foreign.
func NewFile(r io.ReaderAt, size int64) (*File, error) {
	f := &File{r: r, size: size}
	n := uint64(FileHeaderSize)
	if size < FileHeaderSize {
		n = uint64(max(size, 0))
	}
	buf, err := f.readRange(0, n, "ELF header")
	if err != nil {
		return nil, err
	}
	if f.FileHeader, err = decodeFileHeader(buf); err != nil {
		return nil, err
	}
	return f, nil
}

// Close closes the underlying file if the File was created by Open.
func (f *File) Close() error {
	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}

// Size returns the length of the file in bytes.
func (f *File) Size() int64 {
	return f.size
}

// readRange returns a fresh copy of n bytes at off. Ranges that end past the
// end of the file are rejected before anything is read.
func (f *File) readRange(off, n uint64, what string) ([]byte, error) {
	size := uint64(f.size)
	if n > size || off > size-n {
		return nil, fmt.Errorf("%w: %s [%#x, +%#x) exceeds file size %#x", ErrCorruptFile, what, off, n, size)
	}
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	read, err := f.r.ReadAt(buf, int64(off))
	if read < len(buf) {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%w: short read of %s (%d of %d bytes): %w", ErrCorruptFile, what, read, n, err)
	}
	return buf, nil
}
