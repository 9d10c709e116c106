// Package heap reads HDF5 local heaps (group member names) and global heap
// collections (variable-length data).
package heap

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-emd/internal/binary"
)

var (
	ErrInvalidHeap = errors.New("invalid heap")
	ErrNoObject    = errors.New("heap object not found")
)

// maxCollection bounds a global heap collection read in one piece.
const maxCollection = 1 << 30

// Local is a local heap: one contiguous data segment addressed by offset.
type Local struct {
	data []byte
}

// ReadLocal reads the local heap whose header is at addr.
func ReadLocal(r *binary.Reader, addr uint64) (*Local, error) {
	hr := r.At(int64(addr))
	sig, err := hr.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("local heap: %w", err)
	}
	if string(sig) != "HEAP" {
		return nil, fmt.Errorf("%w: signature %q", ErrInvalidHeap, sig)
	}
	if v, _ := hr.ReadUint8(); v != 0 {
		return nil, fmt.Errorf("%w: local heap version %d", ErrInvalidHeap, v)
	}
	hr.Skip(3)
	size, err := hr.ReadLength()
	if err != nil {
		return nil, fmt.Errorf("local heap: %w", err)
	}
	if _, err := hr.ReadLength(); err != nil { // free list head
		return nil, fmt.Errorf("local heap: %w", err)
	}
	dataAddr, err := hr.ReadOffset()
	if err != nil {
		return nil, fmt.Errorf("local heap: %w", err)
	}
	if size > maxCollection {
		return nil, fmt.Errorf("%w: data segment of %d bytes", ErrInvalidHeap, size)
	}
	data, err := r.At(int64(dataAddr)).ReadBytes(int(size))
	if err != nil {
		return nil, fmt.Errorf("local heap data: %w", err)
	}
	return &Local{data: data}, nil
}

// String returns the NUL-terminated string at off.
func (h *Local) String(off uint64) (string, error) {
	if off >= uint64(len(h.data)) {
		return "", fmt.Errorf("%w: offset %d of %d", ErrNoObject, off, len(h.data))
	}
	b := h.data[off:]
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b), nil
}

// Global reads objects from global heap collections, caching each
// collection after its first use.
type Global struct {
	r           *binary.Reader
	collections map[uint64]map[uint32][]byte
}

func NewGlobal(r *binary.Reader) *Global {
	return &Global{r: r, collections: make(map[uint64]map[uint32][]byte)}
}

// Object returns the object with the given index in the collection at addr.
func (g *Global) Object(addr uint64, index uint32) ([]byte, error) {
	c, ok := g.collections[addr]
	if !ok {
		var err error
		if c, err = g.readCollection(addr); err != nil {
			return nil, err
		}
		g.collections[addr] = c
	}
	obj, ok := c[index]
	if !ok {
		return nil, fmt.Errorf("%w: index %d in collection %#x", ErrNoObject, index, addr)
	}
	return obj, nil
}

/*
Collection layout: "GCOL" version(1) reserved(3) collection size(L), then
objects of index(2) reference count(2) reserved(4) size(L) data padded to a
multiple of eight. Index 0 marks the free space at the end.
*/
func (g *Global) readCollection(addr uint64) (map[uint32][]byte, error) {
	hr := g.r.At(int64(addr))
	sig, err := hr.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("global heap: %w", err)
	}
	if string(sig) != "GCOL" {
		return nil, fmt.Errorf("%w: signature %q", ErrInvalidHeap, sig)
	}
	hr.Skip(4)
	size, err := hr.ReadLength()
	if err != nil {
		return nil, fmt.Errorf("global heap: %w", err)
	}
	if size > maxCollection {
		return nil, fmt.Errorf("%w: collection of %d bytes", ErrInvalidHeap, size)
	}
	end := int64(addr) + int64(size)
	objs := make(map[uint32][]byte)
	lengthSize := int64(g.r.LengthSize())
	for hr.Pos()+8+lengthSize <= end {
		idx, err := hr.ReadUint16()
		if err != nil {
			return nil, fmt.Errorf("global heap: %w", err)
		}
		if idx == 0 {
			break
		}
		hr.Skip(6)
		n, err := hr.ReadLength()
		if err != nil {
			return nil, fmt.Errorf("global heap: %w", err)
		}
		if n > uint64(end-hr.Pos()) {
			return nil, fmt.Errorf("%w: object %d overruns collection", ErrInvalidHeap, idx)
		}
		data, err := hr.ReadBytes(int(n))
		if err != nil {
			return nil, fmt.Errorf("global heap: %w", err)
		}
		objs[uint32(idx)] = data
		hr.Skip(int64(pad8(int(n))))
	}
	return objs, nil
}

func pad8(n int) int { return (8 - n%8) % 8 }
