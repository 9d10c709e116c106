// Package binary provides positioned, byte-order aware reads and writes for
// the instrument file decoders and the HDF5 container engine.
package binary

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// ErrNegativeLength is returned when a length field decoded from a file is negative.
var ErrNegativeLength = errors.New("negative length")

// Reader reads fixed-width values from an io.ReaderAt at its own cursor.
// Readers derived with At or WithOrder share the source but not the cursor.
type Reader struct {
	src        io.ReaderAt
	order      binary.ByteOrder
	offsetSize int
	lengthSize int
	off        int64
}

// Config selects the byte order of a Reader and, for HDF5 structures, the
// width of file addresses (offsets) and sizes (lengths).
type Config struct {
	ByteOrder  binary.ByteOrder
	OffsetSize int
	LengthSize int
}

// DefaultConfig is little-endian with 8-byte offsets and lengths, the order
// of SER files, DM3 payloads and HDF5 files.
func DefaultConfig() Config {
	return Config{ByteOrder: binary.LittleEndian, OffsetSize: 8, LengthSize: 8}
}

// BigEndianConfig is the order of the DM3 tag structure.
func BigEndianConfig() Config {
	return Config{ByteOrder: binary.BigEndian, OffsetSize: 8, LengthSize: 8}
}

func NewReader(src io.ReaderAt, cfg Config) *Reader {
	if cfg.ByteOrder == nil {
		cfg.ByteOrder = binary.LittleEndian
	}
	if cfg.OffsetSize == 0 {
		cfg.OffsetSize = 8
	}
	if cfg.LengthSize == 0 {
		cfg.LengthSize = 8
	}
	return &Reader{src: src, order: cfg.ByteOrder, offsetSize: cfg.OffsetSize, lengthSize: cfg.LengthSize}
}

// At returns a reader on the same source positioned at off.
func (r *Reader) At(off int64) *Reader {
	c := *r
	c.off = off
	return &c
}

// WithOrder returns a reader at the current position that decodes with order.
func (r *Reader) WithOrder(order binary.ByteOrder) *Reader {
	c := *r
	c.order = order
	return &c
}

func (r *Reader) Seek(off int64) { r.off = off }
func (r *Reader) Skip(n int64)   { r.off += n }
func (r *Reader) Pos() int64     { return r.off }

// Config returns the reader's byte order and field sizes.
func (r *Reader) Config() Config {
	return Config{ByteOrder: r.order, OffsetSize: r.offsetSize, LengthSize: r.lengthSize}
}

func (r *Reader) ByteOrder() binary.ByteOrder { return r.order }
func (r *Reader) OffsetSize() int             { return r.offsetSize }
func (r *Reader) LengthSize() int             { return r.lengthSize }

// IsUndefined reports whether addr is the all-ones "undefined address" for
// the reader's offset size.
func (r *Reader) IsUndefined(addr uint64) bool {
	if r.offsetSize >= 8 {
		return addr == math.MaxUint64
	}
	return addr == 1<<(8*r.offsetSize)-1
}

// Require checks that the source holds n more bytes from the cursor without
// reading them. A short source is io.ErrUnexpectedEOF.
func (r *Reader) Require(n int64) error {
	switch {
	case n < 0:
		return ErrNegativeLength
	case n == 0:
		return nil
	case r.off < 0 || r.off > math.MaxInt64-n:
		return io.ErrUnexpectedEOF
	}
	var last [1]byte
	got, err := r.src.ReadAt(last[:], r.off+n-1)
	if got == 1 {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// ReadFull fills buf. The cursor only moves when the whole buffer was read;
// a short source is io.ErrUnexpectedEOF.
func (r *Reader) ReadFull(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	n, err := r.src.ReadAt(buf, r.off)
	switch {
	case n == len(buf):
		r.off += int64(n)
		return nil
	case err == nil, errors.Is(err, io.EOF):
		return io.ErrUnexpectedEOF
	default:
		return err
	}
}

// ReadBytes returns the next n bytes in a fresh slice. The source must hold
// all n bytes before anything is allocated.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	switch {
	case n < 0:
		return nil, ErrNegativeLength
	case n == 0:
		return nil, nil
	}
	if err := r.Require(int64(n)); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if err := r.ReadFull(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	var b [1]byte
	err := r.ReadFull(b[:])
	return b[0], err
}

func (r *Reader) ReadInt8() (int8, error) {
	v, err := r.ReadUint8()
	return int8(v), err
}

func (r *Reader) ReadUint16() (uint16, error) {
	var b [2]byte
	if err := r.ReadFull(b[:]); err != nil {
		return 0, err
	}
	return r.order.Uint16(b[:]), nil
}

func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

func (r *Reader) ReadUint32() (uint32, error) {
	var b [4]byte
	if err := r.ReadFull(b[:]); err != nil {
		return 0, err
	}
	return r.order.Uint32(b[:]), nil
}

func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *Reader) ReadUint64() (uint64, error) {
	var b [8]byte
	if err := r.ReadFull(b[:]); err != nil {
		return 0, err
	}
	return r.order.Uint64(b[:]), nil
}

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadUintN reads an n-byte unsigned integer, n in 1..8.
func (r *Reader) ReadUintN(n int) (uint64, error) {
	var b [8]byte
	if n < 1 || n > 8 {
		return 0, errors.New("integer width out of range")
	}
	if err := r.ReadFull(b[:n]); err != nil {
		return 0, err
	}
	return DecodeUint(b[:n], r.order), nil
}

// ReadOffset reads a file address.
func (r *Reader) ReadOffset() (uint64, error) { return r.ReadUintN(r.offsetSize) }

// ReadLength reads a file size.
func (r *Reader) ReadLength() (uint64, error) { return r.ReadUintN(r.lengthSize) }

// ReadString reads an int32 length followed by that many bytes, the layout
// of SER dimension descriptions and units.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return "", err
	}
	b, err := r.ReadBytes(int(n))
	return string(b), err
}

// DecodeUint decodes a 1 to 8 byte unsigned integer.
func DecodeUint(b []byte, order binary.ByteOrder) uint64 {
	var v uint64
	if order == binary.BigEndian {
		for _, c := range b {
			v = v<<8 | uint64(c)
		}
		return v
	}
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
