package filter

import (
	"fmt"
)

// Pipeline is an ordered chain of stages. The zero value passes data
// through unchanged.
type Pipeline []Filter

func NewPipeline(chain []Info) (Pipeline, error) {
	p := make(Pipeline, len(chain))
	for i, info := range chain {
		f, err := New(info)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
		p[i] = f
	}
	return p, nil
}

// Encode runs the stages first to last.
func (p Pipeline) Encode(data []byte) ([]byte, error) {
	for _, f := range p {
		out, err := f.Encode(data)
		if err != nil {
			return nil, fmt.Errorf("filter %d: encode: %w", f.ID(), err)
		}
		data = out
	}
	return data, nil
}

// Decode runs the stages last to first.
func (p Pipeline) Decode(data []byte) ([]byte, error) {
	return p.DecodeMasked(data, 0)
}

// DecodeMasked runs the stages last to first, skipping stage i when bit i
// of mask is set. HDF5 records such a mask per chunk for stages that were
// not applied when the chunk was written.
func (p Pipeline) DecodeMasked(data []byte, mask uint32) ([]byte, error) {
	for i := len(p) - 1; i >= 0; i-- {
		if i < 32 && mask&(1<<i) != 0 {
			continue
		}
		out, err := p[i].Decode(data)
		if err != nil {
			return nil, fmt.Errorf("filter %d: decode: %w", p[i].ID(), err)
		}
		data = out
	}
	return data, nil
}
