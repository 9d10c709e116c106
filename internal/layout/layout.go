// Package layout reads the raw bytes of HDF5 datasets from compact,
// contiguous and chunked storage.
package layout

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-emd/internal/binary"
	"github.com/robert-malhotra/go-emd/internal/btree"
	"github.com/robert-malhotra/go-emd/internal/filter"
	"github.com/robert-malhotra/go-emd/internal/message"
)

var (
	ErrUnsupported = errors.New("unsupported storage layout")
	ErrCorrupt     = errors.New("corrupt dataset storage")
)

// Dataset describes what Read needs to know about a dataset.
type Dataset struct {
	Layout   *message.DataLayout
	Dims     []uint64 // empty for scalars
	ElemSize int
	Filters  *message.FilterPipeline
}

// Size returns the decoded byte size of the dataset.
func (d *Dataset) Size() uint64 {
	n := uint64(d.ElemSize)
	for _, v := range d.Dims {
		n *= v
	}
	return n
}

// Read fills dst, which must be exactly d.Size() bytes long, with the
// dataset's elements in row-major order. Unallocated storage reads as zeros.
func Read(r *binary.Reader, d *Dataset, dst []byte) error {
	if uint64(len(dst)) != d.Size() {
		return fmt.Errorf("layout: buffer of %d bytes for %d-byte dataset", len(dst), d.Size())
	}
	clear(dst)
	l := d.Layout
	switch l.Class {
	case message.LayoutCompact:
		if len(l.CompactData) < len(dst) {
			return fmt.Errorf("%w: compact data of %d bytes", ErrCorrupt, len(l.CompactData))
		}
		copy(dst, l.CompactData)
		return nil
	case message.LayoutContiguous:
		if r.IsUndefined(l.Address) || len(dst) == 0 {
			return nil
		}
		return r.At(int64(l.Address)).ReadFull(dst)
	case message.LayoutChunked:
		return readChunked(r, d, dst)
	}
	return fmt.Errorf("%w: class %d", ErrUnsupported, l.Class)
}

type chunker struct {
	r         *binary.Reader
	dims      []uint64
	chunk     []uint64
	elemSize  int
	chunkSize uint64
	pipeline  filter.Pipeline
	dst       []byte
}

func readChunked(r *binary.Reader, d *Dataset, dst []byte) error {
	l := d.Layout
	dims := d.Dims
	if len(dims) == 0 {
		dims = []uint64{1}
	}
	if len(l.ChunkDims) != len(dims) {
		return fmt.Errorf("%w: %d chunk dimensions for rank %d", ErrCorrupt, len(l.ChunkDims), len(dims))
	}
	c := &chunker{r: r, dims: dims, chunk: l.ChunkDims, elemSize: d.ElemSize, dst: dst}
	c.chunkSize = uint64(d.ElemSize)
	for _, v := range c.chunk {
		if v == 0 {
			return fmt.Errorf("%w: zero chunk dimension", ErrCorrupt)
		}
		c.chunkSize *= v
	}
	if d.Filters != nil {
		p, err := filter.NewPipeline(d.Filters.Chain())
		if err != nil {
			return err
		}
		c.pipeline = p
	}
	if r.IsUndefined(l.IndexAddr) || len(dst) == 0 {
		return nil
	}

	switch l.Index {
	case message.IndexBTreeV1:
		chunks, err := btree.ReadChunks(r, l.IndexAddr, len(dims))
		if err != nil {
			return err
		}
		for _, ch := range chunks {
			if err := c.load(ch); err != nil {
				return err
			}
		}
		return nil
	case message.IndexSingleChunk:
		ch := btree.Chunk{Offset: make([]uint64, len(dims)), Address: l.IndexAddr, Size: uint32(c.chunkSize)}
		if d.Filters != nil && len(d.Filters.Filters) > 0 && l.FilteredSz > 0 {
			ch.Size, ch.FilterMask = uint32(l.FilteredSz), l.FilterMask
		}
		return c.load(ch)
	case message.IndexImplicit:
		n := c.gridCount()
		for k := uint64(0); k < n; k++ {
			ch := btree.Chunk{Offset: c.origin(k), Address: l.IndexAddr + k*c.chunkSize, Size: uint32(c.chunkSize)}
			if err := c.load(ch); err != nil {
				return err
			}
		}
		return nil
	case message.IndexFixedArray:
		chunks, err := readFixedArray(r, l.IndexAddr, c)
		if err != nil {
			return err
		}
		for _, ch := range chunks {
			if err := c.load(ch); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: chunk index %d", ErrUnsupported, l.Index)
}

// gridCount returns the number of chunks covering the dataset.
func (c *chunker) gridCount() uint64 {
	n := uint64(1)
	for i, v := range c.dims {
		n *= (v + c.chunk[i] - 1) / c.chunk[i]
	}
	return n
}

// origin returns the element coordinates of chunk k in row-major grid order.
func (c *chunker) origin(k uint64) []uint64 {
	out := make([]uint64, len(c.dims))
	for i := len(c.dims) - 1; i >= 0; i-- {
		per := (c.dims[i] + c.chunk[i] - 1) / c.chunk[i]
		out[i] = (k % per) * c.chunk[i]
		k /= per
	}
	return out
}

// load reads, unfilters and scatters one chunk into dst, clipping it at the
// dataset edges.
func (c *chunker) load(ch btree.Chunk) error {
	if len(ch.Offset) != len(c.dims) {
		return fmt.Errorf("%w: chunk key of rank %d", ErrCorrupt, len(ch.Offset))
	}
	for i, o := range ch.Offset {
		if o >= c.dims[i] {
			return nil
		}
	}
	raw, err := c.r.At(int64(ch.Address)).ReadBytes(int(ch.Size))
	if err != nil {
		return fmt.Errorf("chunk at %#x: %w", ch.Address, err)
	}
	data, err := c.pipeline.DecodeMasked(raw, ch.FilterMask)
	if err != nil {
		return fmt.Errorf("chunk at %#x: %w", ch.Address, err)
	}
	if uint64(len(data)) < c.chunkSize {
		return fmt.Errorf("%w: chunk at %#x holds %d of %d bytes", ErrCorrupt, ch.Address, len(data), c.chunkSize)
	}

	rank := len(c.dims)
	last := rank - 1
	run := min(c.chunk[last], c.dims[last]-ch.Offset[last]) * uint64(c.elemSize)
	idx := make([]uint64, rank) // position within the chunk; idx[last] stays 0
	for {
		var src, dst uint64
		for i := 0; i < rank; i++ {
			src = src*c.chunk[i] + idx[i]
			dst = dst*c.dims[i] + ch.Offset[i] + idx[i]
		}
		src *= uint64(c.elemSize)
		dst *= uint64(c.elemSize)
		copy(c.dst[dst:dst+run], data[src:src+run])

		i := last - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < c.chunk[i] && ch.Offset[i]+idx[i] < c.dims[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return nil
		}
	}
}
