package binary

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shortReaderAt fails reads that run past its end with io.EOF after a
// partial copy, like *os.File.
type shortReaderAt []byte

func (b shortReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

type failingReaderAt struct{ err error }

func (f failingReaderAt) ReadAt([]byte, int64) (int, error) { return 0, f.err }

func TestReaderIntegers(t *testing.T) {
	r := NewReader(shortReaderAt{0x42, 0xFF, 0x02, 0x01, 0xFE, 0xFF, 0x78, 0x56, 0x34, 0x12}, DefaultConfig())

	u8, err := r.ReadUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0x42), u8)

	i8, err := r.ReadInt8()
	require.NoError(t, err)
	assert.Equal(t, int8(-1), i8)

	u16, err := r.ReadUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0102), u16)

	i16, err := r.ReadInt16()
	require.NoError(t, err)
	assert.Equal(t, int16(-2), i16)

	u32, err := r.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), u32)
	assert.Equal(t, int64(10), r.Pos())
}

func TestReaderMixedOrder(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0, 0, 0, 3, 0x49, 0x4d}), BigEndianConfig())

	v, err := r.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(3), v)

	le := r.WithOrder(binary.LittleEndian)
	u, err := le.ReadUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x4d49), u)
	assert.Equal(t, int64(4), r.Pos(), "derived reader has its own cursor")

	u, err = r.ReadUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x494d), u)
}

func TestReaderFloats(t *testing.T) {
	buf := binary.LittleEndian.AppendUint32(nil, math.Float32bits(1.5))
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(-2.25))
	r := NewReader(bytes.NewReader(buf), Config{})

	f32, err := r.ReadFloat32()
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), f32)

	f64, err := r.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, -2.25, f64)
}

func TestReaderString(t *testing.T) {
	r := NewReader(shortReaderAt{3, 0, 0, 0, 'n', 'm', '!', 0xAA}, DefaultConfig())
	s, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "nm!", s)
	assert.Equal(t, int64(7), r.Pos())

	_, err = NewReader(shortReaderAt{0xFF, 0xFF, 0xFF, 0xFF}, DefaultConfig()).ReadString()
	assert.ErrorIs(t, err, ErrNegativeLength)

	_, err = NewReader(shortReaderAt{9, 0, 0, 0, 'x'}, DefaultConfig()).ReadString()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReaderShortRead(t *testing.T) {
	r := NewReader(shortReaderAt{1, 2}, DefaultConfig())

	_, err := r.ReadUint32()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Zero(t, r.Pos(), "failed read must not move the cursor")

	_, err = r.ReadBytes(-1)
	assert.ErrorIs(t, err, ErrNegativeLength)

	b, err := r.ReadBytes(0)
	require.NoError(t, err)
	assert.Nil(t, b)

	boom := errors.New("disk on fire")
	_, err = NewReader(failingReaderAt{boom}, DefaultConfig()).ReadFloat64()
	assert.ErrorIs(t, err, boom)
}

func TestReaderPositioning(t *testing.T) {
	r := NewReader(shortReaderAt{0, 1, 2, 3, 4, 5}, DefaultConfig())

	v, err := r.At(3).ReadUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(3), v)
	assert.Zero(t, r.Pos())

	r.Skip(2)
	r.Seek(r.Pos() + 3)
	v, err = r.ReadUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(5), v)

	buf := make([]byte, 2)
	r.Seek(1)
	require.NoError(t, r.ReadFull(buf))
	assert.Equal(t, []byte{1, 2}, buf)
}

// sizingReaderAt records the largest read it was asked for.
type sizingReaderAt struct {
	shortReaderAt
	largest int
}

func (s *sizingReaderAt) ReadAt(p []byte, off int64) (int, error) {
	s.largest = max(s.largest, len(p))
	return s.shortReaderAt.ReadAt(p, off)
}

func TestReadBytesChecksSourceFirst(t *testing.T) {
	src := &sizingReaderAt{shortReaderAt: shortReaderAt{1, 2, 3, 4}}
	r := NewReader(src, DefaultConfig())

	_, err := r.ReadBytes(1 << 30)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, 1, src.largest, "a short source is detected before the buffer is allocated")
	assert.Zero(t, r.Pos())

	b, err := r.ReadBytes(4)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, b)
}

func TestReaderRequire(t *testing.T) {
	r := NewReader(shortReaderAt{1, 2, 3}, DefaultConfig())
	assert.NoError(t, r.Require(0))
	assert.NoError(t, r.Require(3))
	assert.ErrorIs(t, r.Require(4), io.ErrUnexpectedEOF)
	assert.ErrorIs(t, r.Require(-1), ErrNegativeLength)
	assert.ErrorIs(t, r.At(2).Require(math.MaxInt64), io.ErrUnexpectedEOF)

	boom := errors.New("disk on fire")
	assert.ErrorIs(t, NewReader(failingReaderAt{boom}, DefaultConfig()).Require(1), boom)
}

func TestReaderAddressWidths(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0xFF, 0xFF, 0xFF, 0xFF}
	r := NewReader(shortReaderAt(data), Config{OffsetSize: 4, LengthSize: 2})

	off, err := r.ReadOffset()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x04030201), off)

	undef, err := r.ReadOffset()
	require.NoError(t, err)
	assert.True(t, r.IsUndefined(undef))

	n, err := r.At(0).ReadLength()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0201), n)

	v, err := r.At(0).WithOrder(binary.BigEndian).ReadUintN(3)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x010203), v)

	_, err = r.ReadUintN(9)
	assert.Error(t, err)
}
