package emd

import (
	"fmt"
	"io"
	"math"

	"github.com/robert-malhotra/go-emd/dtype"
)

// FrameAttribute flags describe frame content.
type FrameAttribute uint32

const (
	FrameComplex                   FrameAttribute = 0x010
	FrameFourierTransformed        FrameAttribute = 0x100
	FrameFourierTransformedNoShift FrameAttribute = 0x200
)

// rangeCutoff is how many extreme samples are kept on each side; the
// display range is the innermost of them.
const rangeCutoff = 10

// fourierScale is the fraction of the zero-frequency coefficient used as
// the display maximum of a transformed frame.
const fourierScale = 0.005

// Frame is a 2-D view into a typed buffer. Element (x, y) of the real
// component lives at real + y*vStep + x*hStep; the imaginary component,
// when present, is offset the same way from imag.
type Frame struct {
	buf   dtype.Buffer
	real  int
	imag  int // -1 when the frame is real-valued
	hStep int
	vStep int
	hSize int
	vSize int

	attrs    FrameAttribute
	index    uint64
	owns     bool
	released bool

	min, max float64
	ranged   bool
}

// NewFrame returns a frame owning copies of re and, when im is non-nil,
// im. Both hold hSize*vSize elements in row-major order.
func NewFrame(re, im dtype.Buffer, hSize, vSize int) (*Frame, error) {
	n := hSize * vSize
	if hSize <= 0 || vSize <= 0 || re.Len() != n {
		return nil, fmt.Errorf("%w: %d elements for %d x %d frame", ErrInvalidDataSpace, re.Len(), hSize, vSize)
	}

	data := append([]byte{}, re.Bytes()...)
	f := &Frame{
		real:  0,
		imag:  -1,
		hStep: 1,
		vStep: hSize,
		hSize: hSize,
		vSize: vSize,
		owns:  true,
	}
	if !im.IsNil() {
		if im.Len() != n || im.Kind() != re.Kind() {
			return nil, fmt.Errorf("%w: imaginary component does not match", ErrInvalidDataSpace)
		}
		data = append(data, im.Bytes()...)
		f.imag = n
		f.attrs |= FrameComplex
	}
	buf, err := dtype.NewBuffer(re.Kind(), re.Width(), data)
	if err != nil {
		return nil, err
	}
	f.buf = buf
	return f, nil
}

// Release drops the frame's reference to its data. Owned data is freed.
// Releasing twice is an error.
func (f *Frame) Release() error {
	if f.released {
		return fmt.Errorf("%w: frame already released", ErrInvalidOperation)
	}
	f.released = true
	f.buf = dtype.Buffer{}
	return nil
}

// Width returns the horizontal size.
func (f *Frame) Width() int { return f.hSize }

// Height returns the vertical size.
func (f *Frame) Height() int { return f.vSize }

// HStep returns the element stride between horizontally adjacent pixels.
func (f *Frame) HStep() int { return f.hStep }

// VStep returns the element stride between vertically adjacent pixels.
func (f *Frame) VStep() int { return f.vStep }

// Kind returns the element kind.
func (f *Frame) Kind() dtype.Kind { return f.buf.Kind() }

// IsComplex reports whether the frame has an imaginary component.
func (f *Frame) IsComplex() bool { return f.imag >= 0 }

// Index returns the element offset of the frame within its source dataset.
func (f *Frame) Index() uint64 { return f.index }

// Owns reports whether the frame owns its data.
func (f *Frame) Owns() bool { return f.owns }

// Attributes returns the attribute flags.
func (f *Frame) Attributes() FrameAttribute { return f.attrs }

// SetAttribute sets flags. Changing the transform flags resets the cached
// display range.
func (f *Frame) SetAttribute(a FrameAttribute) {
	f.attrs |= a
	f.ranged = false
}

// UnsetAttribute clears flags.
func (f *Frame) UnsetAttribute(a FrameAttribute) {
	f.attrs &^= a
	f.ranged = false
}

func (f *Frame) offset(x, y int) int {
	return y*f.vStep + x*f.hStep
}

// Real returns the real component at (x, y).
func (f *Frame) Real(x, y int) float64 {
	return f.buf.Float64At(f.real + f.offset(x, y))
}

// Imag returns the imaginary component at (x, y), or 0 for real frames.
func (f *Frame) Imag(x, y int) float64 {
	if f.imag < 0 {
		return 0
	}
	return f.buf.Float64At(f.imag + f.offset(x, y))
}

// Value returns the real component at (x, y) as a typed scalar.
func (f *Frame) Value(x, y int) dtype.Value {
	return f.buf.ValueAt(f.real + f.offset(x, y))
}

// CachedRange returns the last computed display range.
func (f *Frame) CachedRange() (min, max float64, ok bool) {
	return f.min, f.max, f.ranged
}

// DataRange returns the display range, computing and caching it on first
// use. Fourier-transformed frames scale to the zero-frequency coefficient;
// other frames keep the rangeCutoff smallest and largest of s.Size()
// sampled values and report the innermost of each. A nil s uses a fresh
// default sampler.
func (f *Frame) DataRange(s *Sampler) (lo, hi float64) {
	if f.ranged {
		return f.min, f.max
	}
	if f.buf.IsNil() || f.hSize == 0 || f.vSize == 0 {
		return 0, 0
	}

	if f.attrs&(FrameFourierTransformed|FrameFourierTransformedNoShift) != 0 {
		hOff, vOff := 0, 0
		if f.attrs&FrameFourierTransformed != 0 {
			hOff, vOff = f.hSize/2, f.vSize/2
		}
		f.max = f.buf.Float64At(f.real+vOff*f.hSize+hOff) * fourierScale
		f.min = 0
		f.ranged = true
		return f.min, f.max
	}

	if s == nil {
		s = NewSampler(0)
	}
	var mins, maxes [rangeCutoff]float64
	for i := range mins {
		mins[i] = math.Inf(1)
		maxes[i] = math.Inf(-1)
	}

	idxs := s.Indexes(s.Size(), f.hSize*f.vSize)
	for _, idx := range idxs {
		div, rem := idx/f.hSize, idx%f.hSize
		val := f.buf.Float64At(f.real + div*f.vStep + rem*f.hStep)

		// mins is kept descending and maxes ascending; element 0 is the
		// one pushed out when a more extreme sample arrives.
		insertExtreme(mins[:], val, func(a, b float64) bool { return a > b })
		insertExtreme(maxes[:], val, func(a, b float64) bool { return a < b })
	}

	// Windows fill from the end. With few samples, step inwards only as
	// far as keeps min <= max.
	k := min(rangeCutoff, (len(idxs)+1)/2)
	f.min, f.max = mins[rangeCutoff-k], maxes[rangeCutoff-k]
	f.ranged = true
	return f.min, f.max
}

// insertExtreme places val in the ordered window, dropping element 0.
// beyond(a, b) reports whether a lies further from the extreme than b.
func insertExtreme(window []float64, val float64, beyond func(a, b float64) bool) {
	i := -1
	for i+1 < len(window) && beyond(window[i+1], val) {
		i++
	}
	for carry := val; i >= 0; i-- {
		window[i], carry = carry, window[i]
	}
}

// Copy returns a non-owning view of the same data carrying the cached
// display range.
func (f *Frame) Copy() *Frame {
	c := *f
	c.owns = false
	c.released = false
	return &c
}

// IsContiguous reports whether the real component is one row-major block.
func (f *Frame) IsContiguous() bool {
	combined := f.hStep * f.vStep
	return combined == f.hSize || combined == f.vSize
}

// WriteRaw writes the real component's bytes. Non-contiguous frames are
// refused with ErrNotContiguous.
func (f *Frame) WriteRaw(w io.Writer) error {
	if f.buf.IsNil() {
		return ErrNotLoaded
	}
	if !f.IsContiguous() {
		return ErrNotContiguous
	}
	n := f.hSize * f.vSize
	if f.real+n > f.buf.Len() {
		return fmt.Errorf("%w: frame extends past its buffer", ErrIndexOutOfRange)
	}
	_, err := w.Write(f.buf.Slice(f.real, f.real+n).Bytes())
	return err
}
