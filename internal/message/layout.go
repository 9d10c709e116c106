package message

import (
	"fmt"

	"github.com/robert-malhotra/go-emd/internal/binary"
)

// LayoutClass is the storage class of a dataset.
type LayoutClass uint8

const (
	LayoutCompact    LayoutClass = 0
	LayoutContiguous LayoutClass = 1
	LayoutChunked    LayoutClass = 2
	LayoutVirtual    LayoutClass = 3
)

// ChunkIndex identifies how the chunks of a dataset are located.
type ChunkIndex uint8

const (
	IndexBTreeV1         ChunkIndex = 0 // layout versions 1 to 3
	IndexSingleChunk     ChunkIndex = 1
	IndexImplicit        ChunkIndex = 2
	IndexFixedArray      ChunkIndex = 3
	IndexExtensibleArray ChunkIndex = 4
	IndexBTreeV2         ChunkIndex = 5
)

// DataLayout locates the raw data of a dataset.
type DataLayout struct {
	Version uint8
	Class   LayoutClass

	// Compact
	CompactData []byte

	// Contiguous
	Address uint64
	Size    uint64

	// Chunked. ChunkDims excludes the trailing element-size dimension.
	ChunkDims  []uint64
	Index      ChunkIndex
	IndexAddr  uint64
	PageBits   uint8  // fixed array
	FilteredSz uint64 // single filtered chunk
	FilterMask uint32 // single filtered chunk
}

func (m *DataLayout) Type() Type { return TypeDataLayout }

// NewContiguousLayout returns a version 3 contiguous layout.
func NewContiguousLayout(addr, size uint64) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutContiguous, Address: addr, Size: size}
}

// NewCompactLayout returns a version 3 compact layout holding data.
func NewCompactLayout(data []byte) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutCompact, CompactData: data}
}

func parseDataLayout(data []byte, cfg binary.Config) (*DataLayout, error) {
	d := newDecoder(data, cfg)
	m := &DataLayout{Version: d.u8()}
	switch m.Version {
	case 1, 2:
		decodeLayoutV1(d, m)
	case 3, 4:
		decodeLayoutV3(d, m)
	default:
		if err := d.done("layout"); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("layout: version %d: %w", m.Version, ErrUnsupported)
	}
	if err := d.done("layout"); err != nil {
		return nil, err
	}
	if m.Class > LayoutChunked {
		return nil, fmt.Errorf("layout: class %d: %w", m.Class, ErrUnsupported)
	}
	return m, nil
}

func decodeLayoutV1(d *decoder, m *DataLayout) {
	ndims := int(d.u8())
	m.Class = LayoutClass(d.u8())
	d.skip(5)
	if m.Class != LayoutCompact {
		m.Address = d.offset()
	}
	dims := make([]uint64, ndims)
	for i := range dims {
		dims[i] = uint64(d.u32())
	}
	switch m.Class {
	case LayoutCompact:
		m.CompactData = d.bytes(int(d.u32()))
	case LayoutChunked:
		m.IndexAddr = m.Address
		if ndims > 0 {
			m.ChunkDims = dims[:ndims-1]
		}
	}
}

func decodeLayoutV3(d *decoder, m *DataLayout) {
	m.Class = LayoutClass(d.u8())
	switch m.Class {
	case LayoutCompact:
		m.CompactData = d.bytes(int(d.u16()))
	case LayoutContiguous:
		m.Address = d.offset()
		m.Size = d.length()
	case LayoutChunked:
		if m.Version == 3 {
			ndims := int(d.u8())
			m.IndexAddr = d.offset()
			m.ChunkDims = make([]uint64, max(ndims-1, 0))
			for i := range m.ChunkDims {
				m.ChunkDims[i] = uint64(d.u32())
			}
			d.skip(4) // element size
			return
		}
		flags := d.u8()
		ndims := int(d.u8())
		width := int(d.u8())
		dims := make([]uint64, ndims)
		for i := range dims {
			dims[i] = d.uintN(width)
		}
		if ndims > 0 {
			m.ChunkDims = dims[:ndims-1]
		}
		m.Index = ChunkIndex(d.u8())
		switch m.Index {
		case IndexSingleChunk:
			if flags&0x02 != 0 {
				m.FilteredSz = d.length()
				m.FilterMask = d.u32()
			}
		case IndexFixedArray:
			m.PageBits = d.u8()
		case IndexExtensibleArray:
			d.skip(5)
		case IndexBTreeV2:
			d.skip(6)
		}
		m.IndexAddr = d.offset()
	}
}

// Encode writes a version 3 compact or contiguous layout.
func (m *DataLayout) Encode(w *binary.Writer) {
	w.WriteUint8(3)
	w.WriteUint8(uint8(m.Class))
	switch m.Class {
	case LayoutCompact:
		w.WriteUint16(uint16(len(m.CompactData)))
		w.WriteBytes(m.CompactData)
	case LayoutContiguous:
		w.WriteOffset(m.Address)
		w.WriteLength(m.Size)
	}
}
