// Package store defines the hierarchical container interface the EMD model
// persists to: groups, datasets and typed attributes addressed by
// slash-separated paths.
package store

import (
	"fmt"

	"github.com/robert-malhotra/go-emd/dtype"
)

// ObjectType tags a container entry.
type ObjectType uint8

const (
	TypeGroup ObjectType = iota + 1
	TypeDataset
	TypeNamedType
)

func (t ObjectType) String() string {
	switch t {
	case TypeGroup:
		return "group"
	case TypeDataset:
		return "dataset"
	case TypeNamedType:
		return "named type"
	default:
		return fmt.Sprintf("object type %d", uint8(t))
	}
}

// Entry is one child of a group.
type Entry struct {
	Name string
	Type ObjectType
}

// DatasetInfo describes a stored dataset.
type DatasetInfo struct {
	Shape    []uint64   `yaml:"shape"`
	Kind     dtype.Kind `yaml:"-"`
	ElemSize int        `yaml:"elem_size"`
}

// NumElements returns the product of the shape.
func (d DatasetInfo) NumElements() uint64 {
	n := uint64(1)
	for _, s := range d.Shape {
		n *= s
	}
	return n
}

// Size returns the byte size of the dataset payload.
func (d DatasetInfo) Size() uint64 {
	return d.NumElements() * uint64(d.ElemSize)
}

// Store is a hierarchical container. Paths are absolute ("/" is the root
// group). Children are reported in creation order.
type Store interface {
	// Children lists the entries of the group at path.
	Children(path string) ([]Entry, error)

	// Attrs lists the attribute names of the group or dataset at path.
	Attrs(path string) ([]string, error)

	// ReadAttr reads one attribute.
	ReadAttr(path, name string) (dtype.Value, error)

	// WriteAttr creates or replaces an attribute.
	WriteAttr(path, name string, v dtype.Value) error

	// CreateGroup creates a group. The parent must exist. Creating a group
	// that already exists is not an error.
	CreateGroup(path string) error

	// CreateDataset creates a dataset with the given payload, which must be
	// exactly info.Size() bytes.
	CreateDataset(path string, info DatasetInfo, data []byte) error

	// DatasetInfo returns the shape and element type of a dataset.
	DatasetInfo(path string) (DatasetInfo, error)

	// ReadDataset reads the full payload into dst, which must be exactly
	// the dataset's size.
	ReadDataset(path string, dst []byte) error

	// Stat reports the type of the object at path.
	Stat(path string) (ObjectType, error)

	// Close releases the store.
	Close() error
}

// Opener opens a store by file system path.
type Opener func(path string) (Store, error)
