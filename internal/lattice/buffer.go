package lattice

import (
	"errors"
	"fmt"
)

const (
	// PageSize is the number of bytes in one page.
	PageSize = 256

	// PageCount is the number of pages in a buffer.
	PageCount = 48

	// BufferSize is the fixed size of every buffer: 48 pages of 256 bytes.
	BufferSize = PageSize * PageCount

	// Modulus is the conservation modulus. A buffer is conserved when the
	// sum of its bytes reduces to zero modulo this value.
	Modulus = 96
)

// ErrInvalidSize is returned when a byte slice of the wrong length is
// offered where a full 12,288-byte buffer is required.
var ErrInvalidSize = errors.New("buffer must be exactly 12288 bytes")

// Buffer is a fixed 12,288-byte buffer, logically organized as 48 pages
// of 256 bytes. The linear index of (page, offset) is page*256 + offset.
//
// A Buffer never resizes. The core treats it as read-only: constructors
// copy their input, and accessors return copies, so no caller can mutate
// a buffer another component is reading.
type Buffer struct {
	data [BufferSize]byte
}

// NewBuffer creates a buffer from exactly BufferSize bytes.
// The input is copied; the caller keeps ownership of its slice.
func NewBuffer(b []byte) (*Buffer, error) {
	if len(b) != BufferSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, len(b))
	}
	buf := &Buffer{}
	copy(buf.data[:], b)
	return buf, nil
}

// Zero returns a buffer of all zero bytes.
func Zero() *Buffer {
	return &Buffer{}
}

// Bytes returns a copy of the full buffer contents.
func (b *Buffer) Bytes() []byte {
	out := make([]byte, BufferSize)
	copy(out, b.data[:])
	return out
}

// Page returns a copy of the 256-byte page at index p.
// Panics if p is outside [0, PageCount).
func (b *Buffer) Page(p int) []byte {
	if p < 0 || p >= PageCount {
		panic(fmt.Sprintf("lattice: page index %d out of range", p))
	}
	out := make([]byte, PageSize)
	copy(out, b.data[p*PageSize:(p+1)*PageSize])
	return out
}

// At returns the byte at (page, offset).
// Panics if either coordinate is out of range.
func (b *Buffer) At(page, offset int) byte {
	if page < 0 || page >= PageCount || offset < 0 || offset >= PageSize {
		panic(fmt.Sprintf("lattice: coordinate (%d,%d) out of range", page, offset))
	}
	return b.data[page*PageSize+offset]
}

// Index converts a (page, offset) coordinate to a linear index.
func Index(page, offset int) int {
	return page*PageSize + offset
}

// Locate converts a linear index to its (page, offset) coordinate.
func Locate(i int) (page, offset int) {
	return i / PageSize, i % PageSize
}
