package emd

import (
	"slices"
	"strconv"
	"strings"
)

// DataSpace is the shape of a dataset: rank and per-axis lengths. The zero
// DataSpace has rank 0 and is invalid.
type DataSpace struct {
	dims []uint64
}

// NewDataSpace returns a data space with the given axis lengths.
func NewDataSpace(dims ...uint64) DataSpace {
	return DataSpace{dims: slices.Clone(dims)}
}

// Rank returns the number of axes.
func (s DataSpace) Rank() int { return len(s.dims) }

// Dim returns the length of axis i.
func (s DataSpace) Dim(i int) uint64 { return s.dims[i] }

// Dims returns a copy of the axis lengths.
func (s DataSpace) Dims() []uint64 { return slices.Clone(s.dims) }

// IsValid reports whether the rank is at least 1.
func (s DataSpace) IsValid() bool { return len(s.dims) > 0 }

// NumElements returns the product of the axis lengths (0 when invalid).
func (s DataSpace) NumElements() uint64 {
	if !s.IsValid() {
		return 0
	}
	n := uint64(1)
	for _, d := range s.dims {
		n *= d
	}
	return n
}

// Equal reports whether s and o have identical shapes.
func (s DataSpace) Equal(o DataSpace) bool {
	return slices.Equal(s.dims, o.dims)
}

// String renders the shape as "a x b x c".
func (s DataSpace) String() string {
	parts := make([]string, len(s.dims))
	for i, d := range s.dims {
		parts[i] = strconv.FormatUint(d, 10)
	}
	return strings.Join(parts, " x ")
}
