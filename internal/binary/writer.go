package binary

import (
	"encoding/binary"
	"io"
	"math"
)

// Writer writes fixed-width values to an io.WriterAt at its own cursor.
//
// The first failed write is remembered: later writes are skipped and Err
// reports it, so a sequence of writes can be checked once at the end.
type Writer struct {
	w          io.WriterAt
	order      binary.ByteOrder
	offsetSize int
	lengthSize int
	pos        int64
	err        error
}

func NewWriter(w io.WriterAt, cfg Config) *Writer {
	if cfg.ByteOrder == nil {
		cfg.ByteOrder = binary.LittleEndian
	}
	if cfg.OffsetSize == 0 {
		cfg.OffsetSize = 8
	}
	if cfg.LengthSize == 0 {
		cfg.LengthSize = 8
	}
	return &Writer{w: w, order: cfg.ByteOrder, offsetSize: cfg.OffsetSize, lengthSize: cfg.LengthSize}
}

// At returns a writer on the same destination positioned at off.
func (w *Writer) At(off int64) *Writer {
	return &Writer{w: w.w, order: w.order, offsetSize: w.offsetSize, lengthSize: w.lengthSize, pos: off}
}

func (w *Writer) Pos() int64                  { return w.pos }
func (w *Writer) Err() error                  { return w.err }
func (w *Writer) ByteOrder() binary.ByteOrder { return w.order }
func (w *Writer) OffsetSize() int             { return w.offsetSize }
func (w *Writer) LengthSize() int             { return w.lengthSize }

// Config returns the writer's byte order and field sizes.
func (w *Writer) Config() Config {
	return Config{ByteOrder: w.order, OffsetSize: w.offsetSize, LengthSize: w.lengthSize}
}

// UndefinedOffset is the all-ones address for the writer's offset size.
func (w *Writer) UndefinedOffset() uint64 {
	if w.offsetSize >= 8 {
		return math.MaxUint64
	}
	return 1<<(8*w.offsetSize) - 1
}

func (w *Writer) WriteBytes(data []byte) error {
	if w.err != nil || len(data) == 0 {
		return w.err
	}
	n, err := w.w.WriteAt(data, w.pos)
	w.pos += int64(n)
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	w.err = err
	return err
}

func (w *Writer) WriteUint8(v uint8) error {
	return w.WriteBytes([]byte{v})
}

func (w *Writer) WriteUint16(v uint16) error {
	var b [2]byte
	w.order.PutUint16(b[:], v)
	return w.WriteBytes(b[:])
}

func (w *Writer) WriteUint32(v uint32) error {
	var b [4]byte
	w.order.PutUint32(b[:], v)
	return w.WriteBytes(b[:])
}

func (w *Writer) WriteUint64(v uint64) error {
	var b [8]byte
	w.order.PutUint64(b[:], v)
	return w.WriteBytes(b[:])
}

// WriteUintN writes the low n bytes of v, n in 1..8.
func (w *Writer) WriteUintN(v uint64, n int) error {
	buf := make([]byte, n)
	for i := range n {
		shift := 8 * i
		if w.order == binary.BigEndian {
			shift = 8 * (n - 1 - i)
		}
		buf[i] = byte(v >> shift)
	}
	return w.WriteBytes(buf)
}

func (w *Writer) WriteOffset(v uint64) error { return w.WriteUintN(v, w.offsetSize) }
func (w *Writer) WriteLength(v uint64) error { return w.WriteUintN(v, w.lengthSize) }

// WriteZeros writes n zero bytes.
func (w *Writer) WriteZeros(n int) error {
	if n <= 0 {
		return w.err
	}
	return w.WriteBytes(make([]byte, n))
}

// Buffer is a growable in-memory io.WriterAt.
type Buffer struct {
	buf []byte
}

func (b *Buffer) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, io.ErrShortWrite
	}
	if end := int(off) + len(p); end > len(b.buf) {
		b.buf = append(b.buf, make([]byte, end-len(b.buf))...)
	}
	return copy(b.buf[off:], p), nil
}

// Bytes returns the written bytes.
func (b *Buffer) Bytes() []byte { return b.buf }
