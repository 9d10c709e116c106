// Package message decodes and encodes HDF5 object header messages.
//
// Only the messages an EMD container needs are understood: dataspace,
// datatype, layout, filter pipeline, attributes, links and the group
// bookkeeping messages. Anything else parses to Unknown.
package message

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/robert-malhotra/go-emd/internal/binary"
)

// Type is an object header message type.
type Type uint16

const (
	TypeNIL              Type = 0x0000
	TypeDataspace        Type = 0x0001
	TypeLinkInfo         Type = 0x0002
	TypeDatatype         Type = 0x0003
	TypeFillValueOld     Type = 0x0004
	TypeFillValue        Type = 0x0005
	TypeLink             Type = 0x0006
	TypeExternalFiles    Type = 0x0007
	TypeDataLayout       Type = 0x0008
	TypeBogus            Type = 0x0009
	TypeGroupInfo        Type = 0x000A
	TypeFilterPipeline   Type = 0x000B
	TypeAttribute        Type = 0x000C
	TypeComment          Type = 0x000D
	TypeModTimeOld       Type = 0x000E
	TypeSharedTable      Type = 0x000F
	TypeContinuation     Type = 0x0010
	TypeSymbolTable      Type = 0x0011
	TypeModTime          Type = 0x0012
	TypeBTreeK           Type = 0x0013
	TypeDriverInfo       Type = 0x0014
	TypeAttributeInfo    Type = 0x0015
	TypeReferenceCount   Type = 0x0016
	TypeFileSpaceInfo    Type = 0x0017
)

// flagShared marks a message body that refers to a shared copy.
const flagShared = 0x02

var (
	// ErrTruncated is returned when a message body ends early.
	ErrTruncated = errors.New("truncated message")

	// ErrUnsupported is returned for valid structures this package does not handle.
	ErrUnsupported = errors.New("unsupported")
)

// UndefinedAddress is the all-ones address with 8-byte offsets.
const UndefinedAddress = ^uint64(0)

// Message is a decoded header message.
type Message interface {
	Type() Type
}

// Encoder is a message that can be written into an object header.
type Encoder interface {
	Message
	Encode(w *binary.Writer)
}

// Unknown holds the raw body of a message type that is not decoded.
type Unknown struct {
	Kind Type
	Data []byte
}

func (m *Unknown) Type() Type { return m.Kind }

// Parse decodes one message body. r supplies the file's offset and length
// sizes; it is not read from.
func Parse(typ Type, data []byte, flags uint8, r *binary.Reader) (Message, error) {
	cfg := r.Config()
	if flags&flagShared != 0 {
		return parseShared(typ, data, cfg)
	}
	switch typ {
	case TypeDataspace:
		return parseDataspace(data, cfg)
	case TypeDatatype:
		return ParseDatatype(data, cfg)
	case TypeDataLayout:
		return parseDataLayout(data, cfg)
	case TypeFilterPipeline:
		return parseFilterPipeline(data, cfg)
	case TypeAttribute:
		return parseAttribute(data, cfg)
	case TypeLink:
		return parseLink(data, cfg)
	case TypeLinkInfo:
		return parseLinkInfo(data, cfg)
	case TypeAttributeInfo:
		return parseAttributeInfo(data, cfg)
	case TypeSymbolTable:
		return parseSymbolTable(data, cfg)
	case TypeContinuation:
		return parseContinuation(data, cfg)
	}
	return &Unknown{Kind: typ, Data: data}, nil
}

// Bytes encodes m on its own.
func Bytes(m Encoder, cfg binary.Config) ([]byte, error) {
	var buf binary.Buffer
	w := binary.NewWriter(&buf, cfg)
	m.Encode(w)
	if err := w.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decoder reads a message body. The first failure sticks and later reads
// return zero values.
type decoder struct {
	r   *binary.Reader
	n   int
	err error
}

func newDecoder(data []byte, cfg binary.Config) *decoder {
	return &decoder{r: binary.NewReader(bytes.NewReader(data), cfg), n: len(data)}
}

func (d *decoder) check(err error) {
	if d.err == nil && err != nil {
		d.err = err
	}
}

func (d *decoder) u8() uint8 {
	if d.err != nil {
		return 0
	}
	v, err := d.r.ReadUint8()
	d.check(err)
	return v
}

func (d *decoder) u16() uint16 {
	if d.err != nil {
		return 0
	}
	v, err := d.r.ReadUint16()
	d.check(err)
	return v
}

func (d *decoder) u32() uint32 {
	if d.err != nil {
		return 0
	}
	v, err := d.r.ReadUint32()
	d.check(err)
	return v
}

func (d *decoder) uintN(n int) uint64 {
	if d.err != nil {
		return 0
	}
	v, err := d.r.ReadUintN(n)
	d.check(err)
	return v
}

func (d *decoder) offset() uint64 { return d.uintN(d.r.OffsetSize()) }
func (d *decoder) length() uint64 { return d.uintN(d.r.LengthSize()) }

func (d *decoder) bytes(n int) []byte {
	if d.err != nil {
		return nil
	}
	b, err := d.r.ReadBytes(n)
	d.check(err)
	return b
}

func (d *decoder) skip(n int)              { d.r.Skip(int64(n)) }
func (d *decoder) pos() int                { return int(d.r.Pos()) }
func (d *decoder) remaining() int          { return d.n - d.pos() }
func (d *decoder) undefined(a uint64) bool { return d.r.IsUndefined(a) }

// align skips to the next multiple of n from the start of the body.
func (d *decoder) align(n int) {
	if rem := d.pos() % n; rem != 0 {
		d.skip(n - rem)
	}
}

// cstring reads a NUL-terminated string occupying n bytes.
func (d *decoder) cstring(n int) string {
	b := d.bytes(n)
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func (d *decoder) done(what string) error {
	if d.err == nil && d.pos() > d.n {
		d.err = io.ErrUnexpectedEOF
	}
	switch {
	case d.err == nil:
		return nil
	case errors.Is(d.err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%s: %w", what, ErrTruncated)
	}
	return fmt.Errorf("%s: %w", what, d.err)
}

// nameLengthBits returns the link-message width code for a name length.
func nameLengthBits(n int) (bits uint8, width int) {
	switch {
	case n <= 0xFF:
		return 0, 1
	case n <= 0xFFFF:
		return 1, 2
	case n <= 0xFFFFFFFF:
		return 2, 4
	}
	return 3, 8
}
