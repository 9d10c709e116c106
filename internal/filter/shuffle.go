package filter

// Shuffle regroups the bytes of fixed-size elements so byte 0 of every
// element comes first, then byte 1, and so on. Runs of similar high bytes
// compress better.
type Shuffle struct {
	elemSize int
}

// NewShuffle returns a shuffle stage. clientData[0] is the element size;
// it defaults to 1, which makes the stage a no-op.
func NewShuffle(clientData []uint32) *Shuffle {
	size := 1
	if len(clientData) > 0 && clientData[0] > 0 {
		size = int(clientData[0])
	}
	return &Shuffle{elemSize: size}
}

func (*Shuffle) ID() uint16 { return IDShuffle }

func (f *Shuffle) Encode(in []byte) ([]byte, error) { return f.transpose(in, true), nil }

func (f *Shuffle) Decode(in []byte) ([]byte, error) { return f.transpose(in, false), nil }

// transpose moves byte j of element i to position j*n+i (forward) or back.
// A trailing partial element is copied unchanged.
func (f *Shuffle) transpose(in []byte, forward bool) []byte {
	n := len(in) / f.elemSize
	if f.elemSize <= 1 || n == 0 {
		return in
	}
	out := make([]byte, len(in))
	for i := range n {
		for j := range f.elemSize {
			packed, planar := i*f.elemSize+j, j*n+i
			if forward {
				out[planar] = in[packed]
			} else {
				out[packed] = in[planar]
			}
		}
	}
	whole := n * f.elemSize
	copy(out[whole:], in[whole:])
	return out
}
