// Package alloc hands out file space for the HDF5 writer.
package alloc

import "fmt"

// Allocation is one reserved block.
type Allocation struct {
	Addr uint64
	Size uint64
	Tag  string
}

// Allocator is an append-only allocator: every block is placed at the
// current end of file.
type Allocator struct {
	base        uint64
	eof         uint64
	allocations []Allocation
}

// New returns an allocator whose first block starts at base.
func New(base uint64) *Allocator {
	return &Allocator{base: base, eof: base}
}

// Alloc reserves size bytes and returns their address. A zero size returns
// the current end of file without reserving anything.
func (a *Allocator) Alloc(size uint64, tag string) uint64 {
	addr := a.eof
	if size == 0 {
		return addr
	}
	a.eof += size
	a.allocations = append(a.allocations, Allocation{Addr: addr, Size: size, Tag: tag})
	return addr
}

// EOF returns the end-of-file address.
func (a *Allocator) EOF() uint64 { return a.eof }

// Allocations returns the blocks reserved so far in address order.
func (a *Allocator) Allocations() []Allocation {
	return append([]Allocation(nil), a.allocations...)
}

// Validate checks that blocks lie between base and EOF without overlap.
func (a *Allocator) Validate() error {
	next := a.base
	for _, b := range a.allocations {
		if b.Addr < next {
			return fmt.Errorf("allocation %q at %#x overlaps the block ending at %#x", b.Tag, b.Addr, next)
		}
		next = b.Addr + b.Size
	}
	if next > a.eof {
		return fmt.Errorf("allocations end at %#x past EOF %#x", next, a.eof)
	}
	return nil
}
