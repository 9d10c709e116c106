package emd

import (
	"fmt"
	"io"
	"math"

	"github.com/robert-malhotra/go-emd/dtype"
	"github.com/robert-malhotra/go-emd/internal/binary"
)

// SER series constants.
const (
	serByteOrder = 0x4949
	serSeriesID  = 0x0197

	serData1D = 0x4120
	serData2D = 0x4122
)

// serHeader is the fixed little-endian header at the start of a SER file.
type serHeader struct {
	ByteOrder         uint16
	SeriesID          uint16
	SeriesVersion     uint16
	DataTypeID        int32
	TagTypeID         int32
	TotalElements     int32
	ValidElements     int32
	OffsetArrayOffset int32
	DimensionCount    int32
}

// serDimension is one calibration descriptor following the header.
type serDimension struct {
	Size        int32
	CalOffset   float64
	CalDelta    float64
	CalElement  int32
	Description string
	Units       string
}

// serCalibration precedes each element's data.
type serCalibration struct {
	Offset  float64
	Delta   float64
	Element int32
}

func serKind(code int16) dtype.Kind {
	switch code {
	case 1:
		return dtype.Uint8
	case 2:
		return dtype.Uint16
	case 3:
		return dtype.Uint32
	case 4:
		return dtype.Int8
	case 5:
		return dtype.Int16
	case 6:
		return dtype.Int32
	case 7:
		return dtype.Float32
	case 8:
		return dtype.Float64
	}
	return dtype.Invalid
}

func serError(err error) error {
	return newError(CodeOf(err), "ser", "", err)
}

func serFormatError(format string, args ...any) error {
	return newError(CodeInvalidDataFormat, "ser", "", fmt.Errorf(format, args...))
}

func readSERHeader(r *binary.Reader) (serHeader, error) {
	var h serHeader
	var err error
	for _, p := range []*uint16{&h.ByteOrder, &h.SeriesID, &h.SeriesVersion} {
		if *p, err = r.ReadUint16(); err != nil {
			return h, err
		}
	}
	for _, p := range []*int32{&h.DataTypeID, &h.TagTypeID, &h.TotalElements, &h.ValidElements, &h.OffsetArrayOffset, &h.DimensionCount} {
		if *p, err = r.ReadInt32(); err != nil {
			return h, err
		}
	}
	return h, nil
}

func readSERDimension(r *binary.Reader) (serDimension, error) {
	var d serDimension
	var err error
	if d.Size, err = r.ReadInt32(); err != nil {
		return d, err
	}
	if d.CalOffset, err = r.ReadFloat64(); err != nil {
		return d, err
	}
	if d.CalDelta, err = r.ReadFloat64(); err != nil {
		return d, err
	}
	if d.CalElement, err = r.ReadInt32(); err != nil {
		return d, err
	}
	if d.Description, err = r.ReadString(); err != nil {
		return d, err
	}
	if d.Units, err = r.ReadString(); err != nil {
		return d, err
	}
	return d, nil
}

func readSERCalibration(r *binary.Reader) (serCalibration, error) {
	var c serCalibration
	var err error
	if c.Offset, err = r.ReadFloat64(); err != nil {
		return c, err
	}
	if c.Delta, err = r.ReadFloat64(); err != nil {
		return c, err
	}
	c.Element, err = r.ReadInt32()
	return c, err
}

// decodeSER reads a SER series. A 2-D series becomes the data group
// /data/ser_file; 1-D series are validated but not materialized.
func (m *Model) decodeSER(src io.ReaderAt, rep *Report) error {
	r := binary.NewReader(src, binary.DefaultConfig())

	h, err := readSERHeader(r)
	if err != nil {
		return serError(err)
	}
	if h.ByteOrder != serByteOrder {
		rep.warn(m.opts.logger, "unexpected byte order marker", "value", fmt.Sprintf("%#x", h.ByteOrder))
	}
	if h.SeriesID != serSeriesID {
		rep.warn(m.opts.logger, "unexpected series id", "value", fmt.Sprintf("%#x", h.SeriesID))
	}
	if h.TotalElements < 0 || h.ValidElements < 0 || h.ValidElements > h.TotalElements || h.DimensionCount < 0 {
		return serFormatError("bad element counts: total %d, valid %d, dimensions %d",
			h.TotalElements, h.ValidElements, h.DimensionCount)
	}

	// Counts come from the file; nothing is sized by them before the
	// bytes they describe are known to exist.
	var dims []serDimension
	for i := range int(h.DimensionCount) {
		d, err := readSERDimension(r)
		if err != nil {
			return serError(fmt.Errorf("dimension %d: %w", i, err))
		}
		dims = append(dims, d)
	}

	r.Seek(int64(h.OffsetArrayOffset))
	if err := r.Require(4 * int64(h.TotalElements)); err != nil {
		return serError(fmt.Errorf("data offset array: %w", err))
	}
	dataOffsets := make([]int32, h.TotalElements)
	for i := range dataOffsets {
		if dataOffsets[i], err = r.ReadInt32(); err != nil {
			return serError(fmt.Errorf("data offset array: %w", err))
		}
	}
	// Tag offsets follow; they locate time/position tags, which are not
	// represented in the model.
	r.Skip(4 * int64(h.TotalElements))

	switch h.DataTypeID {
	case serData1D:
		return m.validateSER1D(r, h, dataOffsets, rep)
	case serData2D:
		return m.decodeSER2D(r, h, dataOffsets, rep)
	}
	return serFormatError("unknown data type id %#x", h.DataTypeID)
}

func (m *Model) validateSER1D(r *binary.Reader, h serHeader, offsets []int32, rep *Report) error {
	for i := range int(h.ValidElements) {
		r.Seek(int64(offsets[i]))
		if _, err := readSERCalibration(r); err != nil {
			return serError(fmt.Errorf("element %d: %w", i, err))
		}
		code, err := r.ReadInt16()
		if err != nil {
			return serError(fmt.Errorf("element %d: %w", i, err))
		}
		if serKind(code) == dtype.Invalid {
			return serFormatError("element %d: unknown element type %d", i, code)
		}
		if _, err := r.ReadInt32(); err != nil {
			return serError(fmt.Errorf("element %d: %w", i, err))
		}
	}
	rep.warn(m.opts.logger, "1-D series are not materialized", "elements", h.ValidElements)
	return nil
}

func (m *Model) decodeSER2D(r *binary.Reader, h serHeader, offsets []int32, rep *Report) error {
	n := int(h.ValidElements)
	if n == 0 {
		rep.warn(m.opts.logger, "series has no valid elements")
		return nil
	}

	var (
		kind         dtype.Kind
		xSize, ySize int32
		elemBytes    int
		data         []byte
	)
	for i := range n {
		r.Seek(int64(offsets[i]))
		for range 2 {
			if _, err := readSERCalibration(r); err != nil {
				return serError(fmt.Errorf("element %d: %w", i, err))
			}
		}
		code, err := r.ReadInt16()
		if err != nil {
			return serError(fmt.Errorf("element %d: %w", i, err))
		}
		x, err := r.ReadInt32()
		if err != nil {
			return serError(fmt.Errorf("element %d: %w", i, err))
		}
		y, err := r.ReadInt32()
		if err != nil {
			return serError(fmt.Errorf("element %d: %w", i, err))
		}

		if i == 0 {
			kind = serKind(code)
			if kind == dtype.Invalid {
				return serFormatError("element %d: unknown element type %d", i, code)
			}
			if x <= 0 || y <= 0 {
				return serFormatError("element %d: bad shape %d x %d", i, x, y)
			}
			xSize, ySize = x, y
			cells := uint64(x) * uint64(y)
			if cells > math.MaxInt64/uint64(kind.Width())/uint64(n) {
				return serFormatError("element %d: %d x %d %s series of %d overflows", i, x, y, kind, n)
			}
			elemBytes = int(cells) * kind.Width()
			if err := m.checkCapacity("ser", uint64(n)*uint64(elemBytes)); err != nil {
				return err
			}
		} else if x != xSize || y != ySize || serKind(code) != kind {
			return serFormatError("element %d: %d x %d %s differs from %d x %d %s",
				i, x, y, serKind(code), xSize, ySize, kind)
		}

		block, err := r.ReadBytes(elemBytes)
		if err != nil {
			return serError(fmt.Errorf("element %d: %w", i, err))
		}
		if data == nil {
			data = block
		} else {
			data = append(data, block...)
		}
	}

	shape := []uint64{uint64(xSize), uint64(ySize)}
	axes := []axis{
		{name: "dim1", units: "[px]", length: uint64(xSize)},
		{name: "dim2", units: "[px]", length: uint64(ySize)},
	}
	if n > 1 {
		shape = append(shape, uint64(n))
		axes = append(axes, axis{name: "dim3", units: "[element]", length: uint64(n)})
	}

	buf, err := dtype.NewBuffer(kind, kind.Width(), data)
	if err != nil {
		return serError(err)
	}
	ds, err := NewDataset(NewDataSpace(shape...), buf)
	if err != nil {
		return serError(err)
	}
	if _, err := m.attachDataGroup("/data", "ser_file", ds, axes, true); err != nil {
		return serError(err)
	}
	return nil
}
