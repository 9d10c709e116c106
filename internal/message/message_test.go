package message

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-emd/internal/binary"
)

func roundTrip(t *testing.T, m Encoder) Message {
	t.Helper()
	cfg := binary.DefaultConfig()
	raw, err := Bytes(m, cfg)
	require.NoError(t, err)
	got, err := Parse(m.Type(), raw, 0, binary.NewReader(bytes.NewReader(nil), cfg))
	require.NoError(t, err)
	return got
}

func TestDatatypeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		dt   *Datatype
	}{
		{"int16", NewFixedPoint(2, true)},
		{"uint64", NewFixedPoint(8, false)},
		{"float32", NewFloat(4)},
		{"float64", NewFloat(8)},
		{"string", NewString(12, PadNull)},
		{"bool", NewBool()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.dt, roundTrip(t, tt.dt))
		})
	}
	assert.True(t, roundTrip(t, NewBool()).(*Datatype).IsBool())
	assert.False(t, NewFixedPoint(1, true).IsBool())
}

func TestDataspaceRoundTrip(t *testing.T) {
	assert.Equal(t, NewScalarDataspace(), roundTrip(t, NewScalarDataspace()))
	assert.Equal(t, NewDataspace(2, 3, 4), roundTrip(t, NewDataspace(2, 3, 4)))

	ext := &Dataspace{Class: SpaceSimple, Dims: []uint64{5}, MaxDims: []uint64{10}}
	got := roundTrip(t, ext).(*Dataspace)
	assert.Equal(t, ext, got)
	assert.Equal(t, uint64(5), got.NumElements())

	assert.Equal(t, uint64(0), (&Dataspace{Class: SpaceNull}).NumElements())
	assert.Equal(t, uint64(1), NewScalarDataspace().NumElements())
}

func TestLayoutRoundTrip(t *testing.T) {
	contiguous := NewContiguousLayout(4096, 120)
	assert.Equal(t, contiguous, roundTrip(t, contiguous))

	compact := NewCompactLayout([]byte{1, 2, 3, 4})
	assert.Equal(t, compact, roundTrip(t, compact))
}

func TestLinkRoundTrip(t *testing.T) {
	hard := NewHardLink("Data", 1024)
	assert.Equal(t, hard, roundTrip(t, hard))

	soft := &Link{Name: "latest", LinkType: LinkSoft, Target: "/data/image"}
	assert.Equal(t, soft, roundTrip(t, soft))

	info := roundTrip(t, &LinkInfo{}).(*LinkInfo)
	assert.False(t, info.Dense)
}

func TestAttributeRoundTrip(t *testing.T) {
	units := &Attribute{
		Name:      "units",
		Datatype:  NewString(3, PadNull),
		Dataspace: NewScalarDataspace(),
		Data:      []byte("nm\x00"),
	}
	assert.Equal(t, units, roundTrip(t, units))

	scale := &Attribute{
		Name:      "scale",
		Datatype:  NewFloat(8),
		Dataspace: NewDataspace(2),
		Data:      []byte{0, 0, 0, 0, 0, 0, 0xF8, 0x3F, 0, 0, 0, 0, 0, 0, 0, 0x40},
	}
	assert.Equal(t, scale, roundTrip(t, scale))
}

func TestParseTruncated(t *testing.T) {
	cfg := binary.DefaultConfig()
	r := binary.NewReader(bytes.NewReader(nil), cfg)
	attr := &Attribute{
		Name:      "counts",
		Datatype:  NewFixedPoint(4, false),
		Dataspace: NewDataspace(4),
		Data:      make([]byte, 16),
	}
	raw, err := Bytes(attr, cfg)
	require.NoError(t, err)

	_, err = Parse(TypeAttribute, raw[:len(raw)-4], 0, r)
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = Parse(TypeDataspace, []byte{2, 1}, 0, r)
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = Parse(TypeDataLayout, []byte{9}, 0, r)
	assert.ErrorIs(t, err, ErrUnsupported)

	got, err := Parse(TypeBTreeK, []byte{1, 2}, 0, r)
	require.NoError(t, err)
	assert.Equal(t, &Unknown{Kind: TypeBTreeK, Data: []byte{1, 2}}, got)
}
