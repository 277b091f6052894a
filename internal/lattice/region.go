package lattice

import (
	"errors"
	"fmt"
)

// Region validation errors. Both are caller errors: the operation that
// rejected the region has no side effects.
var (
	// ErrUnalignedRegion is returned when a region boundary is not a
	// multiple of the page size. Partial-page regions cannot carry an
	// independently verifiable block delta, so they are rejected.
	ErrUnalignedRegion = errors.New("region boundaries must be page-aligned")

	// ErrInvalidRegion is returned for empty or out-of-bounds regions.
	ErrInvalidRegion = errors.New("invalid region")
)

// Region describes a half-open, page-aligned byte range [Start, End)
// within a buffer. Both boundaries are multiples of PageSize and
// End never exceeds BufferSize.
type Region struct {
	Start uint32 // inclusive byte offset, multiple of PageSize
	End   uint32 // exclusive byte offset, multiple of PageSize
}

// NewRegion validates and constructs a region.
func NewRegion(start, end uint32) (Region, error) {
	if start >= end {
		return Region{}, fmt.Errorf("%w: start %d >= end %d", ErrInvalidRegion, start, end)
	}
	if end > BufferSize {
		return Region{}, fmt.Errorf("%w: end %d exceeds buffer size %d", ErrInvalidRegion, end, BufferSize)
	}
	if start%PageSize != 0 || end%PageSize != 0 {
		return Region{}, fmt.Errorf("%w: [%d,%d)", ErrUnalignedRegion, start, end)
	}
	return Region{Start: start, End: end}, nil
}

// Validate re-checks the region invariants. Used when a region arrives
// over the wire rather than through NewRegion.
func (r Region) Validate() error {
	_, err := NewRegion(r.Start, r.End)
	return err
}

// Size returns the number of bytes the region covers.
func (r Region) Size() uint32 {
	return r.End - r.Start
}

// Pages returns the number of whole pages the region covers.
func (r Region) Pages() uint16 {
	return uint16(r.Size() / PageSize)
}

// FirstPage returns the index of the first page in the region.
func (r Region) FirstPage() int {
	return int(r.Start / PageSize)
}

// Overlaps reports whether two regions share any byte.
func (r Region) Overlaps(o Region) bool {
	return r.Start < o.End && o.Start < r.End
}

// Key returns a stable string form of the region, suitable as a map or
// store key: "r00000-12288".
func (r Region) Key() string {
	return fmt.Sprintf("r%05d-%05d", r.Start, r.End)
}

func (r Region) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// Partition splits [0, BufferSize) into n equal page-aligned regions.
// n must be a positive divisor of PageCount so every region covers a
// whole number of pages.
func Partition(n int) ([]Region, error) {
	if n <= 0 || PageCount%n != 0 {
		return nil, fmt.Errorf("%w: cannot partition %d pages into %d regions", ErrInvalidRegion, PageCount, n)
	}
	size := uint32(BufferSize / n)
	regions := make([]Region, n)
	for i := range regions {
		regions[i] = Region{Start: uint32(i) * size, End: uint32(i+1) * size}
	}
	return regions, nil
}
