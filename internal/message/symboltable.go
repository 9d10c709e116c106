package message

import (
	"fmt"

	"github.com/robert-malhotra/go-emd/internal/binary"
)

// SymbolTable locates the B-tree and local heap of an old-style group.
type SymbolTable struct {
	BTreeAddr uint64
	HeapAddr  uint64
}

func (m *SymbolTable) Type() Type { return TypeSymbolTable }

func parseSymbolTable(data []byte, cfg binary.Config) (*SymbolTable, error) {
	d := newDecoder(data, cfg)
	m := &SymbolTable{BTreeAddr: d.offset(), HeapAddr: d.offset()}
	return m, d.done("symbol table")
}

// Continuation points at the next block of header messages.
type Continuation struct {
	Offset uint64
	Length uint64
}

func (m *Continuation) Type() Type { return TypeContinuation }

func parseContinuation(data []byte, cfg binary.Config) (*Continuation, error) {
	d := newDecoder(data, cfg)
	m := &Continuation{Offset: d.offset(), Length: d.length()}
	return m, d.done("continuation")
}

// Shared stands in for a message stored elsewhere: a committed datatype's
// header, or the shared message heap.
type Shared struct {
	Of      Type
	Address uint64
	InHeap  bool
}

func (m *Shared) Type() Type { return m.Of }

func parseShared(typ Type, data []byte, cfg binary.Config) (*Shared, error) {
	d := newDecoder(data, cfg)
	version := d.u8()
	kind := d.u8()
	m := &Shared{Of: typ}
	switch version {
	case 1:
		d.skip(6)
		m.Address = d.offset()
	case 2:
		m.Address = d.offset()
	case 3:
		m.InHeap = kind == 1
		if !m.InHeap {
			m.Address = d.offset()
		}
	default:
		if err := d.done("shared message"); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("shared message: version %d: %w", version, ErrUnsupported)
	}
	return m, d.done("shared message")
}

// FillValue is written for new datasets: late allocation, fill value
// undefined.
type FillValue struct{}

func (m *FillValue) Type() Type { return TypeFillValue }

func (m *FillValue) Encode(w *binary.Writer) {
	w.WriteUint8(3)
	w.WriteUint8(0x02 | 0x02<<2)
}
