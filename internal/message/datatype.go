package message

import (
	"github.com/robert-malhotra/go-emd/internal/binary"
)

// Class is a datatype class.
type Class uint8

const (
	ClassFixedPoint Class = 0
	ClassFloat      Class = 1
	ClassTime       Class = 2
	ClassString     Class = 3
	ClassBitfield   Class = 4
	ClassOpaque     Class = 5
	ClassCompound   Class = 6
	ClassReference  Class = 7
	ClassEnum       Class = 8
	ClassVarLen     Class = 9
	ClassArray      Class = 10
)

// StringPad is the padding of fixed-length strings.
type StringPad uint8

const (
	PadNullTerm StringPad = 0
	PadNull     StringPad = 1
	PadSpace    StringPad = 2
)

// Charset is the encoding of string data.
type Charset uint8

const (
	CharsetASCII Charset = 0
	CharsetUTF8  Charset = 1
)

// Datatype describes the element type of a dataset or attribute.
type Datatype struct {
	Version uint8
	Class   Class
	Size    uint32

	BigEndian bool // fixed-point, float, bitfield
	Signed    bool // fixed-point

	Pad          StringPad // string, variable-length string
	Charset      Charset
	VarLenString bool // variable-length class holding a string

	Base      *Datatype // enum, variable-length, array
	Members   []string  // enum
	Values    [][]byte  // enum, Base.Size bytes each
	ArrayDims []uint32
}

func (m *Datatype) Type() Type { return TypeDatatype }

// IsBool reports whether m is the two-member FALSE/TRUE enumeration over a
// one-byte integer that h5py uses for booleans.
func (m *Datatype) IsBool() bool {
	if m.Class != ClassEnum || m.Base == nil || m.Base.Size != 1 || len(m.Members) != 2 {
		return false
	}
	return m.Members[0] == "FALSE" && m.Values[0][0] == 0 &&
		m.Members[1] == "TRUE" && m.Values[1][0] == 1
}

// NewFixedPoint returns a little-endian integer type.
func NewFixedPoint(size int, signed bool) *Datatype {
	return &Datatype{Version: 1, Class: ClassFixedPoint, Size: uint32(size), Signed: signed}
}

// NewFloat returns a little-endian IEEE 754 type of 4 or 8 bytes.
func NewFloat(size int) *Datatype {
	return &Datatype{Version: 1, Class: ClassFloat, Size: uint32(size)}
}

// NewString returns a fixed-length ASCII string type.
func NewString(size int, pad StringPad) *Datatype {
	return &Datatype{Version: 1, Class: ClassString, Size: uint32(size), Pad: pad}
}

// NewBool returns the h5py boolean enumeration.
func NewBool() *Datatype {
	return &Datatype{
		Version: 1,
		Class:   ClassEnum,
		Size:    1,
		Base:    NewFixedPoint(1, true),
		Members: []string{"FALSE", "TRUE"},
		Values:  [][]byte{{0}, {1}},
	}
}

// ParseDatatype decodes a datatype message body.
func ParseDatatype(data []byte, cfg binary.Config) (*Datatype, error) {
	d := newDecoder(data, cfg)
	dt := decodeDatatype(d)
	if err := d.done("datatype"); err != nil {
		return nil, err
	}
	return dt, nil
}

func decodeDatatype(d *decoder) *Datatype {
	head := d.u8()
	bits := uint32(d.u8()) | uint32(d.u8())<<8 | uint32(d.u8())<<16
	dt := &Datatype{Version: head >> 4, Class: Class(head & 0x0F), Size: d.u32()}

	switch dt.Class {
	case ClassFixedPoint, ClassBitfield:
		dt.BigEndian = bits&0x01 != 0
		dt.Signed = dt.Class == ClassFixedPoint && bits&0x08 != 0
		d.skip(4) // bit offset, precision
	case ClassFloat:
		dt.BigEndian = bits&0x01 != 0
		d.skip(12)
	case ClassTime:
		dt.BigEndian = bits&0x01 != 0
		d.skip(2)
	case ClassString:
		dt.Pad = StringPad(bits & 0x0F)
		dt.Charset = Charset(bits >> 4 & 0x0F)
	case ClassOpaque:
		d.skip(int(bits & 0xFF))
	case ClassCompound:
		// Members are not decoded; nothing after a compound is readable.
		d.skip(d.remaining())
	case ClassEnum:
		n := int(bits & 0xFFFF)
		dt.Base = decodeDatatype(d)
		dt.Members = make([]string, n)
		for i := range dt.Members {
			dt.Members[i] = d.name(dt.Version < 3)
		}
		dt.Values = make([][]byte, n)
		for i := range dt.Values {
			dt.Values[i] = d.bytes(int(dt.Base.Size))
		}
	case ClassVarLen:
		dt.VarLenString = bits&0x0F == 1
		dt.Pad = StringPad(bits >> 4 & 0x0F)
		dt.Charset = Charset(bits >> 8 & 0x0F)
		dt.Base = decodeDatatype(d)
	case ClassArray:
		rank := int(d.u8())
		if dt.Version < 3 {
			d.skip(3)
		}
		dt.ArrayDims = make([]uint32, rank)
		for i := range dt.ArrayDims {
			dt.ArrayDims[i] = d.u32()
		}
		if dt.Version < 3 {
			d.skip(4 * rank) // permutation
		}
		dt.Base = decodeDatatype(d)
	}
	return dt
}

// name reads a NUL-terminated enum member name, padded to eight bytes
// before datatype version 3.
func (d *decoder) name(pad bool) string {
	start := d.pos()
	var b []byte
	for d.err == nil {
		c := d.u8()
		if c == 0 {
			break
		}
		b = append(b, c)
	}
	if pad {
		d.align8From(start)
	}
	return string(b)
}

func (d *decoder) align8From(start int) {
	if rem := (d.pos() - start) % 8; rem != 0 {
		d.skip(8 - rem)
	}
}

func (m *Datatype) classBits() uint32 {
	var bits uint32
	switch m.Class {
	case ClassFixedPoint, ClassBitfield:
		if m.BigEndian {
			bits |= 0x01
		}
		if m.Signed {
			bits |= 0x08
		}
	case ClassFloat:
		if m.BigEndian {
			bits |= 0x01
		}
		bits |= 0x20 // implied leading mantissa bit
		bits |= (m.Size*8 - 1) << 8
	case ClassString:
		bits = uint32(m.Pad) | uint32(m.Charset)<<4
	case ClassEnum:
		bits = uint32(len(m.Members))
	}
	return bits
}

// Encode writes a version 1 datatype. Fixed-point, float, string and enum
// classes are supported.
func (m *Datatype) Encode(w *binary.Writer) {
	bits := m.classBits()
	w.WriteUint8(1<<4 | uint8(m.Class))
	w.WriteUint8(uint8(bits))
	w.WriteUint8(uint8(bits >> 8))
	w.WriteUint8(uint8(bits >> 16))
	w.WriteUint32(m.Size)

	switch m.Class {
	case ClassFixedPoint, ClassBitfield:
		w.WriteUint16(0)
		w.WriteUint16(uint16(m.Size * 8))
	case ClassFloat:
		w.WriteUint16(0)
		w.WriteUint16(uint16(m.Size * 8))
		if m.Size == 4 {
			w.WriteBytes([]byte{23, 8, 0, 23})
			w.WriteUint32(127)
		} else {
			w.WriteBytes([]byte{52, 11, 0, 52})
			w.WriteUint32(1023)
		}
	case ClassEnum:
		m.Base.Encode(w)
		for _, name := range m.Members {
			w.WriteBytes([]byte(name))
			w.WriteZeros(8 - len(name)%8)
		}
		for _, v := range m.Values {
			w.WriteBytes(v)
		}
	}
}
