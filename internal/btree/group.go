// Package btree walks version 1 B-trees: the symbol tables of old-style
// groups and the chunk indexes of chunked datasets.
package btree

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-emd/internal/binary"
	"github.com/robert-malhotra/go-emd/internal/heap"
)

var ErrInvalidNode = errors.New("invalid B-tree node")

// maxDepth bounds recursion through corrupt or cyclic trees.
const maxDepth = 64

const (
	nodeGroup = 0
	nodeChunk = 1
)

// Symbol table cache types.
const (
	cacheNone     = 0
	cacheHeader   = 1
	cacheSoftLink = 2
)

// GroupEntry is one member of a symbol-table group.
type GroupEntry struct {
	Name    string
	Address uint64
	Soft    bool
	Target  string // soft link value
}

// node is the common prefix of a version 1 B-tree node.
type node struct {
	level   uint8
	entries uint16
	r       *binary.Reader // positioned at the first key
}

func readNode(r *binary.Reader, addr uint64, want uint8) (*node, error) {
	nr := r.At(int64(addr))
	sig, err := nr.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("B-tree node at %#x: %w", addr, err)
	}
	if string(sig) != "TREE" {
		return nil, fmt.Errorf("%w: signature %q at %#x", ErrInvalidNode, sig, addr)
	}
	typ, _ := nr.ReadUint8()
	if typ != want {
		return nil, fmt.Errorf("%w: node type %d, want %d", ErrInvalidNode, typ, want)
	}
	n := &node{r: nr}
	n.level, _ = nr.ReadUint8()
	if n.entries, err = nr.ReadUint16(); err != nil {
		return nil, fmt.Errorf("B-tree node at %#x: %w", addr, err)
	}
	nr.Skip(2 * int64(nr.OffsetSize())) // siblings
	return n, nil
}

// ReadGroupEntries returns the members of the group whose B-tree is at
// addr, with names resolved through the group's local heap.
func ReadGroupEntries(r *binary.Reader, addr uint64, names *heap.Local) ([]GroupEntry, error) {
	var out []GroupEntry
	if err := walkGroup(r, addr, names, 0, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func walkGroup(r *binary.Reader, addr uint64, names *heap.Local, depth int, out *[]GroupEntry) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: deeper than %d levels", ErrInvalidNode, maxDepth)
	}
	n, err := readNode(r, addr, nodeGroup)
	if err != nil {
		return err
	}
	// Keys are heap offsets of length size; children sit between keys.
	for i := uint16(0); i < n.entries; i++ {
		n.r.Skip(int64(n.r.LengthSize()))
		child, err := n.r.ReadOffset()
		if err != nil {
			return fmt.Errorf("B-tree child %d: %w", i, err)
		}
		if n.level > 0 {
			err = walkGroup(r, child, names, depth+1, out)
		} else {
			err = readSymbolNode(r, child, names, out)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

/*
Symbol table node: "SNOD" version(1) reserved(1) count(2), then entries of
name offset(O) header address(O) cache type(4) reserved(4) scratch(16).
*/
func readSymbolNode(r *binary.Reader, addr uint64, names *heap.Local, out *[]GroupEntry) error {
	nr := r.At(int64(addr))
	sig, err := nr.ReadBytes(4)
	if err != nil {
		return fmt.Errorf("symbol node at %#x: %w", addr, err)
	}
	if string(sig) != "SNOD" {
		return fmt.Errorf("%w: signature %q at %#x", ErrInvalidNode, sig, addr)
	}
	if v, _ := nr.ReadUint8(); v != 1 {
		return fmt.Errorf("%w: symbol node version %d", ErrInvalidNode, v)
	}
	nr.Skip(1)
	count, err := nr.ReadUint16()
	if err != nil {
		return fmt.Errorf("symbol node at %#x: %w", addr, err)
	}
	for i := uint16(0); i < count; i++ {
		nameOff, _ := nr.ReadOffset()
		objAddr, _ := nr.ReadOffset()
		cache, _ := nr.ReadUint32()
		nr.Skip(4)
		scratch, err := nr.ReadBytes(16)
		if err != nil {
			return fmt.Errorf("symbol entry %d: %w", i, err)
		}
		name, err := names.String(nameOff)
		if err != nil {
			return fmt.Errorf("symbol entry %d: %w", i, err)
		}
		if name == "" {
			continue
		}
		e := GroupEntry{Name: name, Address: objAddr}
		if cache == cacheSoftLink {
			off := binary.DecodeUint(scratch[:4], r.ByteOrder())
			if e.Target, err = names.String(off); err != nil {
				return fmt.Errorf("soft link %q: %w", name, err)
			}
			e.Soft = true
		}
		*out = append(*out, e)
	}
	return nil
}
