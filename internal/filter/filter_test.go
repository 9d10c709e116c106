package filter

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeflateReadsPlainZlib(t *testing.T) {
	want := []byte("a calibrated series of frames, a calibrated series of frames")
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(want)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	got, err := NewDeflate(nil).Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = NewDeflate([]uint32{9}).Decode([]byte{0, 1, 2})
	assert.Error(t, err)
}

func TestDeflateLevels(t *testing.T) {
	assert.Equal(t, 6, NewDeflate(nil).level)
	assert.Equal(t, 1, NewDeflate([]uint32{1}).level)
	assert.Equal(t, 6, NewDeflate([]uint32{42}).level)
}

func TestShuffleTransposesBytePlanes(t *testing.T) {
	packed := []byte{
		0x01, 0x02, 0x03, 0x04,
		0x11, 0x12, 0x13, 0x14,
		0x21, 0x22, 0x23, 0x24,
		0xEE,
	}
	planar := []byte{
		0x01, 0x11, 0x21,
		0x02, 0x12, 0x22,
		0x03, 0x13, 0x23,
		0x04, 0x14, 0x24,
		0xEE,
	}

	f := NewShuffle([]uint32{4})
	enc, err := f.Encode(packed)
	require.NoError(t, err)
	assert.Equal(t, planar, enc)

	dec, err := f.Decode(planar)
	require.NoError(t, err)
	assert.Equal(t, packed, dec)
}

func TestShuffleByteElementsPassThrough(t *testing.T) {
	data := []byte{5, 4, 3, 2, 1}
	for _, cd := range [][]uint32{nil, {0}, {1}} {
		out, err := NewShuffle(cd).Decode(data)
		require.NoError(t, err)
		assert.Equal(t, data, out)
	}
}

func TestFletcher32Stage(t *testing.T) {
	f := NewFletcher32(nil)
	enc, err := f.Encode([]byte("payload"))
	require.NoError(t, err)
	assert.Len(t, enc, len("payload")+4)

	dec, err := f.Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), dec)

	enc[0] ^= 0xFF
	_, err = f.Decode(enc)
	assert.ErrorIs(t, err, ErrChecksum)

	_, err = f.Decode([]byte{1, 2})
	assert.ErrorContains(t, err, "too short")
}

func TestPipelineRoundTrip(t *testing.T) {
	raw := make([]byte, 8*257+3)
	for i := range raw {
		raw[i] = byte(i % 7)
	}
	p, err := NewPipeline([]Info{
		{ID: IDShuffle, ClientData: []uint32{8}},
		{ID: IDDeflate, ClientData: []uint32{6}},
		{ID: IDFletcher32},
	})
	require.NoError(t, err)
	require.Len(t, p, 3)

	enc, err := p.Encode(raw)
	require.NoError(t, err)
	assert.Less(t, len(enc), len(raw))

	dec, err := p.Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, raw, dec)

	enc[len(enc)-1] ^= 1
	_, err = p.Decode(enc)
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestPipelineEdges(t *testing.T) {
	_, err := NewPipeline([]Info{{ID: IDDeflate}, {ID: 99}})
	assert.ErrorContains(t, err, "stage 1: filter: unknown id 99")

	var empty Pipeline
	out, err := empty.Decode([]byte{1})
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, out)
}

func TestPipelineDecodeMasked(t *testing.T) {
	raw := []byte("chunk written without compression")
	p, err := NewPipeline([]Info{
		{ID: IDDeflate, ClientData: []uint32{4}},
		{ID: IDFletcher32},
	})
	require.NoError(t, err)

	// Only the checksum stage ran, so deflate (bit 0) is masked off.
	enc, err := Pipeline{p[1]}.Encode(raw)
	require.NoError(t, err)
	dec, err := p.DecodeMasked(enc, 1)
	require.NoError(t, err)
	assert.Equal(t, raw, dec)

	_, err = p.Decode(enc)
	assert.Error(t, err)
}
