package binary

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriterAt struct{ err error }

func (f failingWriterAt) WriteAt([]byte, int64) (int, error) { return 0, f.err }

func TestWriterRoundTrip(t *testing.T) {
	var buf Buffer
	w := NewWriter(&buf, Config{OffsetSize: 4, LengthSize: 8})
	w.WriteUint8(1)
	w.WriteUint16(0x0302)
	w.WriteUint32(0x07060504)
	w.WriteOffset(0x0b0a0908)
	w.WriteLength(42)
	w.WriteZeros(3)
	require.NoError(t, w.Err())
	assert.Equal(t, int64(22), w.Pos())

	r := NewReader(shortReaderAt(buf.Bytes()), w.Config())
	u8, _ := r.ReadUint8()
	u16, _ := r.ReadUint16()
	u32, _ := r.ReadUint32()
	off, _ := r.ReadOffset()
	n, err := r.ReadLength()
	require.NoError(t, err)
	assert.Equal(t, uint8(1), u8)
	assert.Equal(t, uint16(0x0302), u16)
	assert.Equal(t, uint32(0x07060504), u32)
	assert.Equal(t, uint64(0x0b0a0908), off)
	assert.Equal(t, uint64(42), n)
}

func TestWriterAt(t *testing.T) {
	var buf Buffer
	w := NewWriter(&buf, DefaultConfig())
	w.WriteZeros(4)
	w.At(1).WriteUint16(0xBEEF)
	assert.Equal(t, []byte{0, 0xEF, 0xBE, 0}, buf.Bytes())
	assert.Equal(t, int64(4), w.Pos())
}

func TestWriterBigEndianUintN(t *testing.T) {
	var buf Buffer
	w := NewWriter(&buf, Config{ByteOrder: binary.BigEndian})
	w.WriteUintN(0x010203, 3)
	assert.Equal(t, []byte{1, 2, 3}, buf.Bytes())
}

func TestWriterStickyError(t *testing.T) {
	boom := errors.New("disk full")
	w := NewWriter(failingWriterAt{boom}, DefaultConfig())
	assert.ErrorIs(t, w.WriteUint32(1), boom)
	assert.ErrorIs(t, w.WriteUint8(2), boom)
	assert.ErrorIs(t, w.Err(), boom)
}

func TestUndefinedOffset(t *testing.T) {
	assert.Equal(t, uint64(0xFFFFFFFF), NewWriter(&Buffer{}, Config{OffsetSize: 4}).UndefinedOffset())
	assert.Equal(t, ^uint64(0), NewWriter(&Buffer{}, DefaultConfig()).UndefinedOffset())
}
