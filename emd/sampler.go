package emd

// DefaultSampleSize is the number of positions sampled for a display range.
const DefaultSampleSize = 2000

const samplerSeed uint32 = 0xfaceface

// Sampler draws reproducible pseudorandom sample positions with an xorshift
// generator. The last index set is cached and reused while the sample size
// and population bound are unchanged; a new parameter pair restarts the
// generator from its fixed seed.
//
// A Sampler is not safe for concurrent use.
type Sampler struct {
	size    int
	length  int
	max     int
	indexes []int
}

// NewSampler returns a sampler drawing size positions per frame. A size
// below 1 selects DefaultSampleSize.
func NewSampler(size int) *Sampler {
	if size < 1 {
		size = DefaultSampleSize
	}
	return &Sampler{size: size}
}

// Size returns the per-frame sample count.
func (s *Sampler) Size() int { return s.size }

// Indexes returns length positions in [0, max). The returned slice is owned
// by the sampler and valid until the next call with different parameters.
func (s *Sampler) Indexes(length, max int) []int {
	if length <= 0 || max <= 0 {
		return nil
	}
	if s.indexes != nil && length == s.length && max == s.max {
		return s.indexes
	}

	seed := samplerSeed
	out := make([]int, length)
	for i := range out {
		seed ^= seed << 13
		seed ^= seed >> 17
		seed ^= seed << 5
		out[i] = int(uint64(seed) % uint64(max))
	}
	s.indexes, s.length, s.max = out, length, max
	return out
}
