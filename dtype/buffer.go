package dtype

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidKind is returned for buffers of the Invalid kind.
	ErrInvalidKind = errors.New("invalid element kind")

	// ErrWidthMismatch is returned when a buffer's element width does not
	// fit its kind or its byte length.
	ErrWidthMismatch = errors.New("element width mismatch")
)

// Buffer is a typed little-endian element buffer.
//
// A Buffer is a value type; copies share the underlying bytes. Use Clone for
// an independent copy.
type Buffer struct {
	kind  Kind
	width int
	data  []byte
}

// NewBuffer wraps data as elements of kind k. width must equal k.Width()
// for fixed-width kinds and be positive for String.
func NewBuffer(k Kind, width int, data []byte) (Buffer, error) {
	if !k.Valid() {
		return Buffer{}, ErrInvalidKind
	}
	if err := checkWidth(k, width); err != nil {
		return Buffer{}, err
	}
	if len(data)%width != 0 {
		return Buffer{}, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrWidthMismatch, len(data), width)
	}
	return Buffer{kind: k, width: width, data: data}, nil
}

// MakeBuffer allocates a zeroed buffer of n elements.
func MakeBuffer(k Kind, width, n int) (Buffer, error) {
	if !k.Valid() {
		return Buffer{}, ErrInvalidKind
	}
	if err := checkWidth(k, width); err != nil {
		return Buffer{}, err
	}
	return Buffer{kind: k, width: width, data: make([]byte, n*width)}, nil
}

func checkWidth(k Kind, width int) error {
	if k == String {
		if width <= 0 {
			return fmt.Errorf("%w: string width %d", ErrWidthMismatch, width)
		}
		return nil
	}
	if width != k.Width() {
		return fmt.Errorf("%w: %s has width %d, got %d", ErrWidthMismatch, k, k.Width(), width)
	}
	return nil
}

// FromSlice encodes vs as a buffer of the matching kind.
func FromSlice[T Number](vs []T) Buffer {
	k := KindFor[T]()
	var buf bytes.Buffer
	buf.Grow(len(vs) * k.Width())
	// binary.Write on a slice of fixed-size values cannot fail with a bytes.Buffer.
	_ = binary.Write(&buf, binary.LittleEndian, vs)
	return Buffer{kind: k, width: k.Width(), data: buf.Bytes()}
}

// FromBools encodes vs as a Bool buffer (one byte per element).
func FromBools(vs []bool) Buffer {
	data := make([]byte, len(vs))
	for i, v := range vs {
		if v {
			data[i] = 1
		}
	}
	return Buffer{kind: Bool, width: 1, data: data}
}

// FromStrings encodes vs as NUL-padded fixed-width strings. A width of 0
// uses the longest string (minimum 1). Longer strings are truncated.
func FromStrings(vs []string, width int) Buffer {
	if width <= 0 {
		width = 1
		for _, s := range vs {
			width = max(width, len(s))
		}
	}
	data := make([]byte, len(vs)*width)
	for i, s := range vs {
		copy(data[i*width:(i+1)*width], s)
	}
	return Buffer{kind: String, width: width, data: data}
}

// ToSlice decodes b into a []T. It fails if T does not match b's kind.
func ToSlice[T Number](b Buffer) ([]T, bool) {
	if KindFor[T]() != b.kind {
		return nil, false
	}
	out := make([]T, b.Len())
	if err := binary.Read(bytes.NewReader(b.data), binary.LittleEndian, out); err != nil {
		return nil, false
	}
	return out, true
}

// Kind returns the element kind.
func (b Buffer) Kind() Kind { return b.kind }

// Width returns the element width in bytes.
func (b Buffer) Width() int { return b.width }

// Bytes returns the underlying bytes.
func (b Buffer) Bytes() []byte { return b.data }

// Size returns the byte length.
func (b Buffer) Size() int { return len(b.data) }

// IsNil reports whether b has no backing storage.
func (b Buffer) IsNil() bool { return b.data == nil }

// Len returns the number of elements.
func (b Buffer) Len() int {
	if b.width == 0 {
		return 0
	}
	return len(b.data) / b.width
}

// Clone returns a deep copy of b.
func (b Buffer) Clone() Buffer {
	if b.data == nil {
		return b
	}
	c := b
	c.data = bytes.Clone(b.data)
	return c
}

// Slice returns elements [from, to) sharing b's storage.
func (b Buffer) Slice(from, to int) Buffer {
	c := b
	c.data = b.data[from*b.width : to*b.width]
	return c
}

func (b Buffer) elem(i int) []byte {
	return b.data[i*b.width : (i+1)*b.width]
}

// Float64At decodes element i as a float64. String elements are NaN.
func (b Buffer) Float64At(i int) float64 {
	p := b.elem(i)
	switch b.kind {
	case Int8:
		return float64(int8(p[0]))
	case Uint8, Bool:
		return float64(p[0])
	case Int16:
		return float64(int16(binary.LittleEndian.Uint16(p)))
	case Uint16:
		return float64(binary.LittleEndian.Uint16(p))
	case Int32:
		return float64(int32(binary.LittleEndian.Uint32(p)))
	case Uint32:
		return float64(binary.LittleEndian.Uint32(p))
	case Int64:
		return float64(int64(binary.LittleEndian.Uint64(p)))
	case Uint64:
		return float64(binary.LittleEndian.Uint64(p))
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(p)))
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(p))
	}
	return math.NaN()
}

// StringAt decodes the string window of element i, trimmed at the first NUL.
// Non-string kinds are formatted.
func (b Buffer) StringAt(i int) string {
	if b.kind != String {
		return b.ValueAt(i).String()
	}
	p := b.elem(i)
	if n := bytes.IndexByte(p, 0); n >= 0 {
		p = p[:n]
	}
	return string(p)
}

// ValueAt decodes element i as a scalar Value.
func (b Buffer) ValueAt(i int) Value {
	if i < 0 || i >= b.Len() {
		return Value{}
	}
	p := b.elem(i)
	switch b.kind {
	case Int8:
		return Scalar(int8(p[0]))
	case Uint8:
		return Scalar(p[0])
	case Int16:
		return Scalar(int16(binary.LittleEndian.Uint16(p)))
	case Uint16:
		return Scalar(binary.LittleEndian.Uint16(p))
	case Int32:
		return Scalar(int32(binary.LittleEndian.Uint32(p)))
	case Uint32:
		return Scalar(binary.LittleEndian.Uint32(p))
	case Int64:
		return Scalar(int64(binary.LittleEndian.Uint64(p)))
	case Uint64:
		return Scalar(binary.LittleEndian.Uint64(p))
	case Float32:
		return Scalar(math.Float32frombits(binary.LittleEndian.Uint32(p)))
	case Float64:
		return Scalar(math.Float64frombits(binary.LittleEndian.Uint64(p)))
	case Bool:
		return Scalar(p[0] != 0)
	case String:
		return Scalar(b.StringAt(i))
	}
	return Value{}
}

// Set encodes the first element of v at index i, converting v to b's kind
// when they differ.
func (b Buffer) Set(i int, v Value) error {
	if i < 0 || i >= b.Len() {
		return fmt.Errorf("index %d out of range [0,%d)", i, b.Len())
	}
	if v.kind != b.kind {
		v = Convert(v, b.kind)
		if !v.IsValid() {
			return fmt.Errorf("cannot convert value to %s", b.kind)
		}
	}
	p := b.elem(i)
	switch e := v.Index(0).(type) {
	case int8:
		p[0] = byte(e)
	case uint8:
		p[0] = e
	case int16:
		binary.LittleEndian.PutUint16(p, uint16(e))
	case uint16:
		binary.LittleEndian.PutUint16(p, e)
	case int32:
		binary.LittleEndian.PutUint32(p, uint32(e))
	case uint32:
		binary.LittleEndian.PutUint32(p, e)
	case int64:
		binary.LittleEndian.PutUint64(p, uint64(e))
	case uint64:
		binary.LittleEndian.PutUint64(p, e)
	case float32:
		binary.LittleEndian.PutUint32(p, math.Float32bits(e))
	case float64:
		binary.LittleEndian.PutUint64(p, math.Float64bits(e))
	case bool:
		p[0] = 0
		if e {
			p[0] = 1
		}
	case string:
		clear(p)
		copy(p, e)
	default:
		return fmt.Errorf("cannot encode %T", e)
	}
	return nil
}
