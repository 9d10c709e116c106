package emd

import "fmt"

// Axis roles in a Slice. Any non-negative entry is a fixed index.
const (
	Horizontal = -1
	Vertical   = -2
)

// Slice assigns each axis of a dataset a role: Horizontal, Vertical or a
// fixed index.
type Slice []int

// DefaultSlice shows axis 0 horizontally and axis 1 vertically with every
// other axis at index 0.
func (d *Dataset) DefaultSlice() Slice {
	s := make(Slice, d.space.Rank())
	if len(s) > 0 {
		s[0] = Horizontal
	}
	if len(s) > 1 {
		s[1] = Vertical
	}
	return s
}

// Frame extracts the 2-D view selected by s. The frame borrows the
// dataset's buffer and records its element offset as its index.
//
// Axes are walked in layout order with a running stride: fixed axes add
// index*stride to the offset, while the horizontal, vertical and complex
// axes capture their stride. If the horizontal axis comes after the
// vertical one the two roles are swapped, so the result does not depend
// on which of the pair the caller labelled horizontal.
func (d *Dataset) Frame(s Slice) (*Frame, error) {
	if !d.IsLoaded() {
		return nil, ErrNotLoaded
	}
	if len(s) != d.space.Rank() {
		return nil, fmt.Errorf("%w: slice has %d axes, dataset has %d", ErrIndexOutOfRange, len(s), d.space.Rank())
	}

	hor, ver := -1, -1
	var hStep, vStep, complexStep, offset uint64
	step := uint64(1)
	for _, axis := range d.layout() {
		length := d.space.Dim(axis)
		switch {
		case s[axis] == Horizontal:
			if hor >= 0 {
				return nil, fmt.Errorf("%w: axes %d and %d both horizontal", ErrUnassignedAxes, hor, axis)
			}
			hor, hStep = axis, step
		case s[axis] == Vertical:
			if ver >= 0 {
				return nil, fmt.Errorf("%w: axes %d and %d both vertical", ErrUnassignedAxes, ver, axis)
			}
			ver, vStep = axis, step
		case axis == d.complexDim:
			complexStep = step
		case s[axis] < 0 || uint64(s[axis]) >= length:
			return nil, fmt.Errorf("%w: index %d on axis %d of length %d", ErrIndexOutOfRange, s[axis], axis, length)
		default:
			offset += uint64(s[axis]) * step
		}
		step *= length
	}

	if hor < 0 || ver < 0 {
		return nil, ErrUnassignedAxes
	}
	if hor > ver {
		hor, ver = ver, hor
		hStep, vStep = vStep, hStep
	}

	f := &Frame{
		buf:   d.buf,
		real:  int(offset),
		imag:  -1,
		hStep: int(hStep),
		vStep: int(vStep),
		hSize: int(d.space.Dim(hor)),
		vSize: int(d.space.Dim(ver)),
		index: offset,
	}
	if d.complexDim >= 0 {
		f.imag = int(offset + complexStep)
		f.attrs |= FrameComplex
	}
	return f, nil
}
