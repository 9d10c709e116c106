// Package filter implements the blob filter pipeline of the badger-backed
// dataset store.
//
// A dataset payload passes through each stage of a chain on write and back
// through the chain in reverse on read. The chain is recorded in the
// dataset's metadata, so a container written with one store configuration
// reads back under another.
//
// Stages:
//
//   - [Deflate] (ID 1): zlib via github.com/klauspost/compress.
//   - [Shuffle] (ID 2): byte-plane transposition of fixed-size elements.
//   - [Fletcher32Filter] (ID 3): trailing Fletcher-32 checksum.
//
// Typical use:
//
//	p, err := filter.NewPipeline([]filter.Info{
//		{ID: filter.IDShuffle, ClientData: []uint32{4}},
//		{ID: filter.IDDeflate, ClientData: []uint32{6}},
//	})
//	blob, err := p.Encode(raw)
//	raw, err = p.Decode(blob)
package filter
