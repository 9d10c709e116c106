package btree

import (
	"fmt"

	"github.com/robert-malhotra/go-emd/internal/binary"
)

// Chunk locates one stored chunk of a dataset.
type Chunk struct {
	Offset     []uint64 // element coordinates of the chunk origin
	Size       uint32   // stored (possibly filtered) size
	FilterMask uint32
	Address    uint64
}

// ReadChunks returns every chunk of a version 1 chunk B-tree. rank is the
// dataset rank; keys carry one extra trailing coordinate.
func ReadChunks(r *binary.Reader, addr uint64, rank int) ([]Chunk, error) {
	var out []Chunk
	if err := walkChunks(r, addr, rank, 0, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func walkChunks(r *binary.Reader, addr uint64, rank, depth int, out *[]Chunk) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: deeper than %d levels", ErrInvalidNode, maxDepth)
	}
	n, err := readNode(r, addr, nodeChunk)
	if err != nil {
		return err
	}
	// entries children interleaved with entries+1 keys.
	for i := uint16(0); i < n.entries; i++ {
		size, _ := n.r.ReadUint32()
		mask, _ := n.r.ReadUint32()
		offset := make([]uint64, rank)
		for d := range offset {
			offset[d], _ = n.r.ReadUint64()
		}
		n.r.Skip(8)
		child, err := n.r.ReadOffset()
		if err != nil {
			return fmt.Errorf("chunk key %d: %w", i, err)
		}
		if n.level > 0 {
			if err := walkChunks(r, child, rank, depth+1, out); err != nil {
				return err
			}
			continue
		}
		if r.IsUndefined(child) || size == 0 {
			continue
		}
		*out = append(*out, Chunk{Offset: offset, Size: size, FilterMask: mask, Address: child})
	}
	return nil
}
