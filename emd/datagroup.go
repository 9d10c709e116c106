package emd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DataGroup is the body of a group that pairs a primary "data" dataset
// with one calibration dataset per axis ("dim1".."dimN").
type DataGroup struct {
	node  *Node
	data  *Dataset
	dims  []*Dataset
	valid bool
}

func (*DataGroup) nodeKind() NodeKind { return KindDataGroup }
func (g *DataGroup) attach(n *Node)   { g.node = n }

// NewDataGroup returns a detached, unvalidated data group node.
func NewDataGroup(name string) *Node {
	return newNode(name, &DataGroup{})
}

// Node returns the owning node.
func (g *DataGroup) Node() *Node { return g.node }

// Validate associates the primary dataset with its dimension datasets.
// It fails when "data" or any "dimN" for N in 1..rank is missing. On
// success, dimension datasets whose length disagrees with the primary
// axis switch to two-point calibration mode, a dimension named "complex"
// marks the complex axis, and a "data_order" attribute of 0 selects
// ascending layout.
func (g *DataGroup) Validate() bool {
	g.valid = false
	g.data = nil
	g.dims = nil

	dataNode := g.node.ChildByName("data")
	if dataNode == nil || dataNode.Dataset() == nil {
		return false
	}
	data := dataNode.Dataset()
	if !data.space.IsValid() {
		return false
	}

	dims := make([]*Dataset, data.Rank())
	for i := range dims {
		c := g.node.ChildByName("dim" + strconv.Itoa(i+1))
		if c == nil || c.Dataset() == nil {
			return false
		}
		dims[i] = c.Dataset()
	}

	data.complexDim = -1
	for i, dim := range dims {
		if name := dim.node.Attr("name"); name.IsValid() && strings.EqualFold(name.String(), "complex") {
			data.complexDim = i
		}
	}

	g.data = data
	g.dims = dims
	g.checkDimLengths()

	if order, ok := g.node.Attr("data_order").Int64(); ok && order == 0 {
		data.descending = false
	}

	g.valid = true
	return true
}

func (g *DataGroup) checkDimLengths() {
	for i, dim := range g.dims {
		if !dim.space.IsValid() {
			continue
		}
		if n := g.data.DimLength(i); n != dim.DimLength(0) {
			dim.SetTrueLength(n)
		}
	}
}

// IsValid reports whether the last Validate succeeded.
func (g *DataGroup) IsValid() bool { return g.valid }

// Data returns the primary dataset, or nil before validation.
func (g *DataGroup) Data() *Dataset { return g.data }

// DimCount returns the number of dimension datasets.
func (g *DataGroup) DimCount() int { return len(g.dims) }

// Dim returns dimension dataset i, or nil.
func (g *DataGroup) Dim(i int) *Dataset {
	if i < 0 || i >= len(g.dims) {
		return nil
	}
	return g.dims[i]
}

// HasComplexDim reports whether the primary dataset has a complex axis.
func (g *DataGroup) HasComplexDim() bool {
	return g.data != nil && g.data.complexDim >= 0
}

// ComplexIndex returns the complex axis, or -1.
func (g *DataGroup) ComplexIndex() int {
	if g.data == nil {
		return -1
	}
	return g.data.complexDim
}

// IsIntType reports whether the primary dataset holds integers.
func (g *DataGroup) IsIntType() bool {
	return g.data != nil && g.data.kind.IsInteger()
}

// SetDataOrder sets the primary dataset's layout.
func (g *DataGroup) SetDataOrder(descending bool) {
	if g.data != nil {
		g.data.descending = descending
	}
}

// members returns the primary dataset followed by the dimensions.
func (g *DataGroup) members() []*Dataset {
	return append([]*Dataset{g.data}, g.dims...)
}

// Load loads the primary and every dimension dataset from src. If any
// load fails the datasets loaded by this call are released again.
func (g *DataGroup) Load(src Source, limit uint64) error {
	if !g.valid {
		return fmt.Errorf("%w: data group %q is not validated", ErrInvalidOperation, g.node.name)
	}
	var loaded []*Dataset
	for _, d := range g.members() {
		if d.IsLoaded() {
			continue
		}
		if err := d.Load(src, limit); err != nil {
			for _, l := range loaded {
				l.Unload()
			}
			return err
		}
		loaded = append(loaded, d)
	}
	return nil
}

// Unload releases the primary and dimension buffers. Dirty datasets keep
// their buffers; the result reports whether every buffer was released.
func (g *DataGroup) Unload() bool {
	if !g.valid {
		return true
	}
	all := true
	for _, d := range g.members() {
		if !d.Unload() {
			all = false
		}
	}
	return all
}

// IsLoaded reports whether the primary dataset is resident.
func (g *DataGroup) IsLoaded() bool {
	return g.data != nil && g.data.IsLoaded()
}

// loadedBytes sums the resident buffer sizes.
func (g *DataGroup) loadedBytes() int64 {
	var n int64
	if !g.valid {
		return 0
	}
	for _, d := range g.members() {
		if d.IsLoaded() {
			n += int64(d.buf.Size())
		}
	}
	return n
}

var errNotDataGroup = errors.New("node is not a data group")
