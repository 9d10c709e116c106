package filter

import (
	"fmt"
)

const (
	IDDeflate    uint16 = 1
	IDShuffle    uint16 = 2
	IDFletcher32 uint16 = 3
)

// Filter is one reversible stage of a pipeline.
type Filter interface {
	ID() uint16
	Encode(in []byte) ([]byte, error)
	Decode(in []byte) ([]byte, error)
}

// Info describes one pipeline stage. It is persisted with each blob.
type Info struct {
	ID         uint16   `yaml:"id"`
	ClientData []uint32 `yaml:"client_data,omitempty"`
}

var constructors = map[uint16]func([]uint32) Filter{
	IDDeflate:    func(cd []uint32) Filter { return NewDeflate(cd) },
	IDShuffle:    func(cd []uint32) Filter { return NewShuffle(cd) },
	IDFletcher32: func(cd []uint32) Filter { return NewFletcher32(cd) },
}

// New builds the stage described by info.
func New(info Info) (Filter, error) {
	mk, ok := constructors[info.ID]
	if !ok {
		return nil, fmt.Errorf("filter: unknown id %d", info.ID)
	}
	return mk(info.ClientData), nil
}
