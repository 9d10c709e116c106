package layout

import (
	"fmt"

	"github.com/robert-malhotra/go-emd/internal/binary"
	"github.com/robert-malhotra/go-emd/internal/btree"
)

/*
Fixed array header: "FAHD" version(1) client(1) entry size(1) page bits(1)
max entries(L) data block address(O) checksum(4).
Data block: "FADB" version(1) client(1) header address(O), then entries.
Client 0 entries are a chunk address; client 1 entries add the filtered
size and a filter mask.
*/
func readFixedArray(r *binary.Reader, addr uint64, c *chunker) ([]btree.Chunk, error) {
	hr := r.At(int64(addr))
	sig, err := hr.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("fixed array header: %w", err)
	}
	if string(sig) != "FAHD" {
		return nil, fmt.Errorf("%w: fixed array signature %q", ErrCorrupt, sig)
	}
	hr.Skip(1)
	client, _ := hr.ReadUint8()
	entrySize, _ := hr.ReadUint8()
	pageBits, _ := hr.ReadUint8()
	count, _ := hr.ReadLength()
	block, err := hr.ReadOffset()
	if err != nil {
		return nil, fmt.Errorf("fixed array header: %w", err)
	}
	if count > 1<<pageBits {
		return nil, fmt.Errorf("%w: paged fixed array of %d entries", ErrUnsupported, count)
	}
	if grid := c.gridCount(); count > grid {
		count = grid
	}
	if r.IsUndefined(block) {
		return nil, nil
	}

	br := r.At(int64(block))
	if sig, err = br.ReadBytes(4); err != nil {
		return nil, fmt.Errorf("fixed array block: %w", err)
	}
	if string(sig) != "FADB" {
		return nil, fmt.Errorf("%w: fixed array block signature %q", ErrCorrupt, sig)
	}
	br.Skip(2 + int64(r.OffsetSize()))
	if err := br.Require(int64(count) * int64(entrySize)); err != nil {
		return nil, fmt.Errorf("fixed array block: %w", err)
	}

	sizeWidth := int(entrySize) - r.OffsetSize() - 4
	out := make([]btree.Chunk, 0, count)
	for k := uint64(0); k < count; k++ {
		ch := btree.Chunk{Offset: c.origin(k), Size: uint32(c.chunkSize)}
		if ch.Address, err = br.ReadOffset(); err != nil {
			return nil, fmt.Errorf("fixed array entry %d: %w", k, err)
		}
		if client == 1 {
			if sizeWidth <= 0 || sizeWidth > 8 {
				return nil, fmt.Errorf("%w: fixed array entry size %d", ErrCorrupt, entrySize)
			}
			size, _ := br.ReadUintN(sizeWidth)
			ch.Size = uint32(size)
			ch.FilterMask, _ = br.ReadUint32()
		}
		if !r.IsUndefined(ch.Address) {
			out = append(out, ch)
		}
	}
	return out, nil
}
