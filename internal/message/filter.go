package message

import (
	"github.com/robert-malhotra/go-emd/internal/binary"
	"github.com/robert-malhotra/go-emd/internal/filter"
)

// FilterPipeline lists the filters applied to each chunk of a dataset, in
// the order they were applied on write.
type FilterPipeline struct {
	Version uint8
	Filters []FilterInfo
}

// FilterInfo is one pipeline stage.
type FilterInfo struct {
	ID         uint16
	Name       string
	Optional   bool
	ClientData []uint32
}

func (m *FilterPipeline) Type() Type { return TypeFilterPipeline }

// Chain converts the stages for filter.NewPipeline.
func (m *FilterPipeline) Chain() []filter.Info {
	chain := make([]filter.Info, len(m.Filters))
	for i, f := range m.Filters {
		chain[i] = filter.Info{ID: f.ID, ClientData: f.ClientData}
	}
	return chain
}

func parseFilterPipeline(data []byte, cfg binary.Config) (*FilterPipeline, error) {
	d := newDecoder(data, cfg)
	m := &FilterPipeline{Version: d.u8()}
	n := int(d.u8())
	if m.Version == 1 {
		d.skip(6)
	}
	m.Filters = make([]FilterInfo, n)
	for i := range m.Filters {
		f := &m.Filters[i]
		f.ID = d.u16()
		var nameLen int
		if m.Version == 1 || f.ID >= 256 {
			nameLen = int(d.u16())
		}
		f.Optional = d.u16()&0x01 != 0
		ncd := int(d.u16())
		if nameLen > 0 {
			f.Name = d.cstring(nameLen)
		}
		f.ClientData = make([]uint32, 0, min(ncd, d.remaining()/4+1))
		for range ncd {
			f.ClientData = append(f.ClientData, d.u32())
		}
		if m.Version == 1 && ncd%2 != 0 {
			d.skip(4)
		}
	}
	if err := d.done("filter pipeline"); err != nil {
		return nil, err
	}
	return m, nil
}
