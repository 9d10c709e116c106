package hdf5store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/robert-malhotra/go-emd/dtype"
	"github.com/robert-malhotra/go-emd/internal/heap"
	"github.com/robert-malhotra/go-emd/internal/message"
)

// ErrUnsupportedType is returned for HDF5 datatypes with no element kind:
// compound, opaque, reference, array and non-boolean enum types.
var ErrUnsupportedType = errors.New("unsupported datatype")

// kindOf maps a stored datatype to an element kind and width.
func kindOf(dt *message.Datatype) (dtype.Kind, int, error) {
	switch dt.Class {
	case message.ClassFixedPoint:
		if k := intKind(dt.Size, dt.Signed); k != dtype.Invalid {
			return k, int(dt.Size), nil
		}
	case message.ClassFloat:
		switch dt.Size {
		case 4:
			return dtype.Float32, 4, nil
		case 8:
			return dtype.Float64, 8, nil
		}
	case message.ClassString:
		if dt.Size > 0 {
			return dtype.String, int(dt.Size), nil
		}
	case message.ClassEnum:
		if dt.IsBool() {
			return dtype.Bool, 1, nil
		}
	}
	return dtype.Invalid, 0, fmt.Errorf("%w: class %d, %d bytes", ErrUnsupportedType, dt.Class, dt.Size)
}

func intKind(size uint32, signed bool) dtype.Kind {
	var k dtype.Kind
	switch size {
	case 1:
		k = dtype.Uint8
	case 2:
		k = dtype.Uint16
	case 4:
		k = dtype.Uint32
	case 8:
		k = dtype.Uint64
	default:
		return dtype.Invalid
	}
	if signed {
		k-- // each signed kind precedes its unsigned twin
	}
	return k
}

func isVarString(dt *message.Datatype) bool {
	return dt.Class == message.ClassVarLen && dt.VarLenString
}

// datatypeFor returns the datatype written for elements of kind k.
func datatypeFor(k dtype.Kind, width int) *message.Datatype {
	switch {
	case k == dtype.Bool:
		return message.NewBool()
	case k == dtype.String:
		return message.NewString(width, message.PadNull)
	case k.IsFloat():
		return message.NewFloat(width)
	}
	return message.NewFixedPoint(width, k.IsSigned())
}

// normalize rewrites stored elements in place into the little-endian,
// NUL-padded form of dtype buffers.
func normalize(dt *message.Datatype, width int, data []byte) {
	switch {
	case dt.BigEndian && width > 1:
		for off := 0; off+width <= len(data); off += width {
			slices.Reverse(data[off : off+width])
		}
	case dt.Class == message.ClassString && dt.Pad == message.PadSpace:
		for off := 0; off+width <= len(data); off += width {
			e := data[off : off+width]
			for i := len(e) - 1; i >= 0 && e[i] == ' '; i-- {
				e[i] = 0
			}
		}
	}
}

// varStrings decodes variable-length string elements: length(4), global
// heap collection address(O), object index(4).
func varStrings(raw []byte, n int, gh *heap.Global, offsetSize int) ([]string, error) {
	elem := 8 + offsetSize
	if len(raw) < n*elem {
		return nil, fmt.Errorf("variable-length strings: %d bytes for %d elements", len(raw), n)
	}
	out := make([]string, n)
	for i := range out {
		e := raw[i*elem : (i+1)*elem]
		length := int(binary.LittleEndian.Uint32(e))
		var addr uint64
		for j := offsetSize - 1; j >= 0; j-- {
			addr = addr<<8 | uint64(e[4+j])
		}
		index := binary.LittleEndian.Uint32(e[4+offsetSize:])
		if length == 0 || addr == 0 {
			continue
		}
		obj, err := gh.Object(addr, index)
		if err != nil {
			return nil, fmt.Errorf("variable-length string %d: %w", i, err)
		}
		obj = obj[:min(length, len(obj))]
		if k := bytes.IndexByte(obj, 0); k >= 0 {
			obj = obj[:k]
		}
		out[i] = string(obj)
	}
	return out, nil
}

// attrValue converts an attribute message into a value. Scalar dataspaces
// give scalar values, simple dataspaces arrays.
func attrValue(a *message.Attribute, gh *heap.Global, offsetSize int) (dtype.Value, error) {
	if a.Dataspace.Class == message.SpaceNull {
		return dtype.Value{}, fmt.Errorf("%w: null dataspace", ErrUnsupportedType)
	}
	n := int(a.Dataspace.NumElements())
	scalar := a.Dataspace.Class == message.SpaceScalar

	if isVarString(a.Datatype) {
		strs, err := varStrings(a.Data, n, gh, offsetSize)
		if err != nil {
			return dtype.Value{}, err
		}
		if scalar {
			return dtype.Scalar(strs[0]), nil
		}
		return dtype.Array(strs), nil
	}

	k, width, err := kindOf(a.Datatype)
	if err != nil {
		return dtype.Value{}, err
	}
	if len(a.Data) < n*width {
		return dtype.Value{}, fmt.Errorf("attribute %s: %d bytes for %d elements", a.Name, len(a.Data), n)
	}
	data := bytes.Clone(a.Data[:n*width])
	normalize(a.Datatype, width, data)
	buf, err := dtype.NewBuffer(k, width, data)
	if err != nil {
		return dtype.Value{}, err
	}
	switch k {
	case dtype.Int8:
		return collect[int8](buf, scalar), nil
	case dtype.Uint8:
		return collect[uint8](buf, scalar), nil
	case dtype.Int16:
		return collect[int16](buf, scalar), nil
	case dtype.Uint16:
		return collect[uint16](buf, scalar), nil
	case dtype.Int32:
		return collect[int32](buf, scalar), nil
	case dtype.Uint32:
		return collect[uint32](buf, scalar), nil
	case dtype.Int64:
		return collect[int64](buf, scalar), nil
	case dtype.Uint64:
		return collect[uint64](buf, scalar), nil
	case dtype.Float32:
		return collect[float32](buf, scalar), nil
	case dtype.Float64:
		return collect[float64](buf, scalar), nil
	case dtype.Bool:
		return collect[bool](buf, scalar), nil
	}
	return collect[string](buf, scalar), nil
}

func collect[T dtype.Element](b dtype.Buffer, scalar bool) dtype.Value {
	vs := make([]T, b.Len())
	for i := range vs {
		e, _ := dtype.As[T](b.ValueAt(i))
		vs[i] = e[0]
	}
	if scalar && len(vs) == 1 {
		return dtype.Scalar(vs[0])
	}
	return dtype.Array(vs)
}

// valueBuffer encodes the elements of v.
func valueBuffer(v dtype.Value) (dtype.Buffer, error) {
	switch v.Kind() {
	case dtype.Int8:
		return numbers[int8](v), nil
	case dtype.Uint8:
		return numbers[uint8](v), nil
	case dtype.Int16:
		return numbers[int16](v), nil
	case dtype.Uint16:
		return numbers[uint16](v), nil
	case dtype.Int32:
		return numbers[int32](v), nil
	case dtype.Uint32:
		return numbers[uint32](v), nil
	case dtype.Int64:
		return numbers[int64](v), nil
	case dtype.Uint64:
		return numbers[uint64](v), nil
	case dtype.Float32:
		return numbers[float32](v), nil
	case dtype.Float64:
		return numbers[float64](v), nil
	case dtype.Bool:
		vs, _ := dtype.As[bool](v)
		return dtype.FromBools(vs), nil
	case dtype.String:
		vs, _ := dtype.As[string](v)
		return dtype.FromStrings(vs, 0), nil
	}
	return dtype.Buffer{}, fmt.Errorf("%w: %s", ErrUnsupportedType, v.Kind())
}

func numbers[T dtype.Number](v dtype.Value) dtype.Buffer {
	vs, _ := dtype.As[T](v)
	return dtype.FromSlice(vs)
}

// attrMessage converts a value into an attribute message.
func attrMessage(name string, v dtype.Value) (*message.Attribute, error) {
	buf, err := valueBuffer(v)
	if err != nil {
		return nil, fmt.Errorf("attribute %s: %w", name, err)
	}
	space := message.NewScalarDataspace()
	if v.IsArray() {
		space = message.NewDataspace(uint64(v.Len()))
	}
	return &message.Attribute{
		Name:      name,
		Datatype:  datatypeFor(buf.Kind(), buf.Width()),
		Dataspace: space,
		Data:      buf.Bytes(),
	}, nil
}

// encodable reports whether dt can be written back by Datatype.Encode.
func encodable(dt *message.Datatype) bool {
	if dt == nil {
		return false
	}
	switch dt.Class {
	case message.ClassFixedPoint, message.ClassFloat, message.ClassString:
		return true
	case message.ClassEnum:
		return dt.Base != nil && encodable(dt.Base)
	}
	return false
}
