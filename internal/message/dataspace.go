package message

import (
	"fmt"

	"github.com/robert-malhotra/go-emd/internal/binary"
)

// SpaceClass distinguishes scalar, simple and null dataspaces.
type SpaceClass uint8

const (
	SpaceScalar SpaceClass = 0
	SpaceSimple SpaceClass = 1
	SpaceNull   SpaceClass = 2
)

// Dataspace is the shape of a dataset or attribute.
type Dataspace struct {
	Class   SpaceClass
	Dims    []uint64
	MaxDims []uint64
}

func (m *Dataspace) Type() Type { return TypeDataspace }

// NumElements returns the element count: 1 for scalars, 0 for null spaces.
func (m *Dataspace) NumElements() uint64 {
	switch m.Class {
	case SpaceNull:
		return 0
	case SpaceScalar:
		return 1
	}
	n := uint64(1)
	for _, d := range m.Dims {
		n *= d
	}
	return n
}

// NewScalarDataspace returns a dataspace holding one element.
func NewScalarDataspace() *Dataspace {
	return &Dataspace{Class: SpaceScalar}
}

// NewDataspace returns a fixed-size simple dataspace.
func NewDataspace(dims ...uint64) *Dataspace {
	return &Dataspace{Class: SpaceSimple, Dims: dims}
}

func parseDataspace(data []byte, cfg binary.Config) (*Dataspace, error) {
	d := newDecoder(data, cfg)
	version := d.u8()
	rank := int(d.u8())
	flags := d.u8()

	m := &Dataspace{Class: SpaceSimple}
	switch version {
	case 1:
		d.skip(5)
		if rank == 0 {
			m.Class = SpaceScalar
		}
	case 2:
		m.Class = SpaceClass(d.u8())
		if m.Class > SpaceNull {
			return nil, fmt.Errorf("dataspace: class %d", m.Class)
		}
	default:
		if err := d.done("dataspace"); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("dataspace: version %d: %w", version, ErrUnsupported)
	}

	if rank > 0 {
		m.Dims = make([]uint64, rank)
		for i := range m.Dims {
			m.Dims[i] = d.length()
		}
		if flags&0x01 != 0 {
			m.MaxDims = make([]uint64, rank)
			for i := range m.MaxDims {
				m.MaxDims[i] = d.length()
			}
		}
	}
	return m, d.done("dataspace")
}

// Encode writes a version 2 dataspace.
func (m *Dataspace) Encode(w *binary.Writer) {
	rank := len(m.Dims)
	if m.Class != SpaceSimple {
		rank = 0
	}
	var flags uint8
	if rank > 0 && len(m.MaxDims) == rank {
		flags = 0x01
	}
	w.WriteUint8(2)
	w.WriteUint8(uint8(rank))
	w.WriteUint8(flags)
	w.WriteUint8(uint8(m.Class))
	for i := range rank {
		w.WriteLength(m.Dims[i])
	}
	if flags&0x01 != 0 {
		for _, d := range m.MaxDims {
			w.WriteLength(d)
		}
	}
}
