package emd

import (
	"fmt"
	"strings"

	"github.com/robert-malhotra/go-emd/dtype"
)

// Dataset is the body of a typed N-dimensional array node. Its buffer is
// absent while the dataset is unloaded.
type Dataset struct {
	node  *Node
	space DataSpace
	kind  dtype.Kind
	width int
	buf   dtype.Buffer

	// descending lays axes out last-to-first (axis N-1 varies fastest);
	// ascending lays them out first-to-last.
	descending bool
	complexDim int

	// truncated datasets hold two calibration points and report trueLength
	// along axis 0.
	truncated  bool
	trueLength uint64
}

func (*Dataset) nodeKind() NodeKind { return KindDataset }
func (d *Dataset) attach(n *Node)   { d.node = n }

// NewDataset returns a loaded dataset over buf. The buffer must hold
// exactly one element per point of space.
func NewDataset(space DataSpace, buf dtype.Buffer) (*Dataset, error) {
	if !space.IsValid() {
		return nil, ErrInvalidDataSpace
	}
	if !buf.Kind().Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOperation, dtype.ErrInvalidKind)
	}
	if uint64(buf.Len()) != space.NumElements() {
		return nil, fmt.Errorf("%w: %d elements for shape %s", ErrInvalidDataSpace, buf.Len(), space)
	}
	if buf.IsNil() {
		b, err := dtype.NewBuffer(buf.Kind(), buf.Width(), []byte{})
		if err != nil {
			return nil, err
		}
		buf = b
	}
	return &Dataset{
		space:      space,
		kind:       buf.Kind(),
		width:      buf.Width(),
		buf:        buf,
		descending: true,
		complexDim: -1,
	}, nil
}

// NewUnloadedDataset returns a metadata-only dataset to be filled by Load.
// width is the element size in bytes; for fixed-width kinds it may be 0.
func NewUnloadedDataset(space DataSpace, kind dtype.Kind, width int) (*Dataset, error) {
	if !space.IsValid() {
		return nil, ErrInvalidDataSpace
	}
	if width == 0 {
		width = kind.Width()
	}
	if _, err := dtype.NewBuffer(kind, width, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOperation, err)
	}
	return &Dataset{
		space:      space,
		kind:       kind,
		width:      width,
		descending: true,
		complexDim: -1,
	}, nil
}

// NewDatasetNode wraps d in a detached node.
func NewDatasetNode(name string, d *Dataset) *Node {
	return newNode(name, d)
}

// Node returns the owning node.
func (d *Dataset) Node() *Node { return d.node }

// Space returns the stored shape.
func (d *Dataset) Space() DataSpace { return d.space }

// Rank returns the number of axes.
func (d *Dataset) Rank() int { return d.space.Rank() }

// Kind returns the element kind.
func (d *Dataset) Kind() dtype.Kind { return d.kind }

// ElemSize returns the element width in bytes.
func (d *Dataset) ElemSize() int { return d.width }

// Buffer returns the resident buffer; it is nil while unloaded.
func (d *Dataset) Buffer() dtype.Buffer { return d.buf }

// ByteSize returns the size of the full buffer.
func (d *Dataset) ByteSize() uint64 { return uint64(d.width) * d.space.NumElements() }

// IsLoaded reports whether the buffer is resident.
func (d *Dataset) IsLoaded() bool { return !d.buf.IsNil() }

// Descending reports the layout order.
func (d *Dataset) Descending() bool { return d.descending }

// SetDescending sets the layout order.
func (d *Dataset) SetDescending(v bool) { d.descending = v }

// ComplexDim returns the complex axis, or -1.
func (d *Dataset) ComplexDim() int { return d.complexDim }

// SetComplexDim marks axis i as the complex axis (-1 for none).
func (d *Dataset) SetComplexDim(i int) { d.complexDim = i }

// IsTruncated reports whether the dataset is in two-point calibration mode.
func (d *Dataset) IsTruncated() bool { return d.truncated }

// SetTrueLength switches a rank-1, length-2 dataset into calibration mode
// with logical length n. Other datasets are left unchanged.
func (d *Dataset) SetTrueLength(n uint64) bool {
	if d.space.Rank() != 1 || d.space.Dim(0) != 2 {
		return false
	}
	d.truncated = true
	d.trueLength = n
	return true
}

// DimLength returns the logical length of an axis.
func (d *Dataset) DimLength(axis int) uint64 {
	if d.truncated && axis == 0 {
		return d.trueLength
	}
	return d.space.Dim(axis)
}

// layout returns the axis visit order for offset computation.
func (d *Dataset) layout() []int {
	r := d.space.Rank()
	order := make([]int, r)
	for i := range order {
		if d.descending {
			order[i] = r - 1 - i
		} else {
			order[i] = i
		}
	}
	return order
}

// ResolveOffset maps one index per axis to a flat element offset by walking
// axes in layout order with a running stride.
func (d *Dataset) ResolveOffset(idx []uint64) (uint64, bool) {
	if len(idx) != d.space.Rank() {
		return 0, false
	}
	var offset uint64
	step := uint64(1)
	for _, axis := range d.layout() {
		length := d.DimLength(axis)
		if idx[axis] >= length {
			return 0, false
		}
		offset += idx[axis] * step
		step *= length
	}
	return offset, true
}

// ScalarAt returns the element at a flat index. Truncated datasets
// extrapolate linearly from their two stored points. Unloaded datasets and
// out-of-range indexes yield the zero Value.
func (d *Dataset) ScalarAt(i uint64) dtype.Value {
	if !d.IsLoaded() {
		return dtype.Value{}
	}
	if !d.truncated {
		if i >= uint64(d.buf.Len()) {
			return dtype.Value{}
		}
		return d.buf.ValueAt(int(i))
	}

	if i >= d.trueLength {
		return dtype.Value{}
	}
	switch {
	case d.kind == dtype.String:
		if i > 1 {
			return dtype.Scalar("invalid")
		}
		return d.buf.ValueAt(int(i))
	case d.kind.IsFloat():
		v0, v1 := d.buf.Float64At(0), d.buf.Float64At(1)
		return d.encode(dtype.Scalar(v0 + float64(i)*(v1-v0)))
	default:
		v0, _ := d.buf.ValueAt(0).Int64()
		v1, _ := d.buf.ValueAt(1).Int64()
		return d.encode(dtype.Scalar(v0 + int64(i)*(v1-v0)))
	}
}

// encode converts v to the dataset kind through a one-element buffer so
// integer results wrap the same way stored values would.
func (d *Dataset) encode(v dtype.Value) dtype.Value {
	b, err := dtype.MakeBuffer(d.kind, d.width, 1)
	if err != nil {
		return dtype.Value{}
	}
	if d.kind.IsInteger() {
		n, _ := v.Int64()
		p := b.Bytes()
		for j := range p {
			p[j] = byte(uint64(n) >> (8 * j))
		}
		return b.ValueAt(0)
	}
	if err := b.Set(0, v); err != nil {
		return dtype.Value{}
	}
	return b.ValueAt(0)
}

// ValueAt returns the element at a per-axis index.
func (d *Dataset) ValueAt(idx []uint64) dtype.Value {
	off, ok := d.ResolveOffset(idx)
	if !ok {
		return dtype.Value{}
	}
	return d.ScalarAt(off)
}

// ValueString formats the element at a flat index. Unloaded datasets
// format as "".
func (d *Dataset) ValueString(i uint64) string {
	return d.ScalarAt(i).String()
}

// DataName returns the "name" attribute, falling back to the node name.
func (d *Dataset) DataName() string {
	if d.node == nil {
		return ""
	}
	if v := d.node.Attr("name"); v.IsValid() {
		return v.String()
	}
	return d.node.name
}

// Units returns the "units" attribute, or "".
func (d *Dataset) Units() string {
	if d.node == nil {
		return ""
	}
	return d.node.Attr("units").String()
}

// IsComplexDim reports whether this rank-1 dataset is named "complex"
// (case-insensitive), marking the complex axis of its data group.
func (d *Dataset) IsComplexDim() bool {
	if d.space.Rank() != 1 || d.node == nil {
		return false
	}
	v := d.node.Attr("name")
	return v.IsValid() && strings.EqualFold(v.String(), "complex")
}

// Range is a half-open index range along one axis.
type Range struct {
	Start, End uint64
}

// SelectAll returns the full range of every axis.
func (d *Dataset) SelectAll() []Range {
	sel := make([]Range, d.space.Rank())
	for i := range sel {
		sel[i] = Range{Start: 0, End: d.space.Dim(i)}
	}
	return sel
}

// Load materializes the buffer from src, reading the dataset at the owning
// node's path. It refuses datasets of limit bytes or more (0 means
// MemoryLimit) with ErrCapacity and leaves the dataset unloaded on any
// failure. Loading a resident dataset is a no-op.
func (d *Dataset) Load(src Source, limit uint64) error {
	if d.IsLoaded() {
		return nil
	}
	if d.node == nil {
		return fmt.Errorf("%w: dataset is not attached to a node", ErrInvalidOperation)
	}
	if limit == 0 {
		limit = MemoryLimit
	}
	size := d.ByteSize()
	if size >= limit {
		return fmt.Errorf("%s: %w: %d bytes", d.node.Path(), ErrCapacity, size)
	}

	data := make([]byte, size)
	if err := src.ReadDataset(d.node.Path(), data); err != nil {
		return fmt.Errorf("%s: %w", d.node.Path(), err)
	}
	buf, err := dtype.NewBuffer(d.kind, d.width, data)
	if err != nil {
		return err
	}
	d.buf = buf
	return nil
}

// Unload releases the buffer unless the node is dirty, reporting whether
// the buffer was released.
func (d *Dataset) Unload() bool {
	if d.node != nil && d.node.IsDirty() {
		return false
	}
	d.buf = dtype.Buffer{}
	return true
}

// Source reads raw dataset payloads by path. store.Store satisfies it.
type Source interface {
	ReadDataset(path string, dst []byte) error
}
