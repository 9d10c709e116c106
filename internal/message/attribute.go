package message

import (
	"fmt"

	"github.com/robert-malhotra/go-emd/internal/binary"
)

// Attribute is a named value attached to an object header.
type Attribute struct {
	Name      string
	Datatype  *Datatype
	Dataspace *Dataspace
	Data      []byte
}

func (m *Attribute) Type() Type { return TypeAttribute }

func parseAttribute(data []byte, cfg binary.Config) (*Attribute, error) {
	d := newDecoder(data, cfg)
	version := d.u8()
	flags := d.u8()
	nameSize := int(d.u16())
	typeSize := int(d.u16())
	spaceSize := int(d.u16())
	if version == 3 {
		d.u8() // name encoding
	}
	if version < 1 || version > 3 {
		if err := d.done("attribute"); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("attribute: version %d: %w", version, ErrUnsupported)
	}
	if version >= 2 && flags&0x03 != 0 {
		return nil, fmt.Errorf("attribute: shared type or space: %w", ErrUnsupported)
	}

	// Version 1 pads each of the three fields to eight bytes.
	padded := func(n int) int {
		if version == 1 {
			return (n + 7) &^ 7
		}
		return n
	}
	m := &Attribute{Name: d.cstring(nameSize)}
	d.skip(padded(nameSize) - nameSize)

	typeRaw := d.bytes(typeSize)
	d.skip(padded(typeSize) - typeSize)
	spaceRaw := d.bytes(spaceSize)
	d.skip(padded(spaceSize) - spaceSize)
	if err := d.done("attribute " + m.Name); err != nil {
		return nil, err
	}

	var err error
	if m.Datatype, err = ParseDatatype(typeRaw, cfg); err != nil {
		return nil, fmt.Errorf("attribute %s: %w", m.Name, err)
	}
	if m.Dataspace, err = parseDataspace(spaceRaw, cfg); err != nil {
		return nil, fmt.Errorf("attribute %s: %w", m.Name, err)
	}
	size := m.Dataspace.NumElements() * uint64(m.Datatype.Size)
	if size > uint64(d.remaining()) {
		return nil, fmt.Errorf("attribute %s: %d data bytes: %w", m.Name, size, ErrTruncated)
	}
	m.Data = d.bytes(int(size))
	return m, d.done("attribute " + m.Name)
}

// Encode writes a version 3 attribute with an ASCII name.
func (m *Attribute) Encode(w *binary.Writer) {
	cfg := w.Config()
	dt, err := Bytes(m.Datatype, cfg)
	if err != nil {
		return
	}
	ds, err := Bytes(m.Dataspace, cfg)
	if err != nil {
		return
	}
	w.WriteUint8(3)
	w.WriteUint8(0)
	w.WriteUint16(uint16(len(m.Name) + 1))
	w.WriteUint16(uint16(len(dt)))
	w.WriteUint16(uint16(len(ds)))
	w.WriteUint8(uint8(CharsetASCII))
	w.WriteBytes([]byte(m.Name))
	w.WriteUint8(0)
	w.WriteBytes(dt)
	w.WriteBytes(ds)
	w.WriteBytes(m.Data)
}
