package emd

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-emd/dtype"
)

// dm3Stream writes a tag stream: big-endian structure, little-endian
// payloads.
type dm3Stream struct {
	b bytes.Buffer
}

func (w *dm3Stream) be(v any) { _ = binary.Write(&w.b, binary.BigEndian, v) }
func (w *dm3Stream) le(v any) { _ = binary.Write(&w.b, binary.LittleEndian, v) }

func (w *dm3Stream) header(count int32) *dm3Stream {
	w.be(int32(3))
	w.be(int32(0))
	w.be(int32(1))
	w.b.Write([]byte{1, 0})
	w.be(count)
	return w
}

func (w *dm3Stream) dir(name string, count int32) *dm3Stream {
	w.b.WriteByte(dm3SectionDir)
	w.be(uint16(len(name)))
	w.b.WriteString(name)
	w.b.Write([]byte{0, 0})
	w.be(count)
	return w
}

func (w *dm3Stream) tag(name string, info ...int32) *dm3Stream {
	w.b.WriteByte(dm3SectionTag)
	w.be(uint16(len(name)))
	w.b.WriteString(name)
	w.b.WriteString("%%%%")
	w.be(int32(len(info)))
	for _, v := range info {
		w.be(v)
	}
	return w
}

func (w *dm3Stream) end() *dm3Stream {
	w.b.WriteByte(dm3SectionEnd)
	return w
}

func (w *dm3Stream) reader() *bytes.Reader { return bytes.NewReader(w.b.Bytes()) }

func TestDM3SingleTag(t *testing.T) {
	w := (&dm3Stream{}).header(1).tag("X", 3)
	w.le(int32(7))
	w.end()

	m := NewModel()
	rep := &Report{Format: "dm3"}
	require.NoError(t, m.decodeDM3(w.reader(), rep))
	assert.Empty(t, rep.Warnings)

	x := m.Path("/dm3/X")
	require.NotNil(t, x)
	require.NotNil(t, x.Attribute())
	assert.Equal(t, dtype.Int32, x.Attribute().Kind())
	assert.Equal(t, "7", x.Display())
	assert.Nil(t, m.Path("/data/dm3_file"))
}

func TestDM3TagValues(t *testing.T) {
	w := (&dm3Stream{}).header(6)

	w.dir("", 2)
	w.tag("", 2)
	w.le(int16(-5))
	w.tag("b", 6)
	w.le(float32(1.5))

	w.tag("Name", dm3TypeArray, 4, 3)
	w.le([]uint16{'A', 'b', 0})

	w.tag("S", dm3TypeStruct, 0, 2, 0, 3, 0, 6)
	w.le(int32(4))
	w.le(float32(0.5))

	w.tag("A", dm3TypeArray, 3, 2)
	w.le([]int32{1, 2})

	w.tag("B", dm3TypeArray, 4, 10)
	w.le(make([]uint16, 10))

	w.tag("SA", dm3TypeArray, dm3TypeStruct, 0, 2, 0, 2, 0, 2, 3)
	w.le(make([]int16, 6))
	w.end()

	m := NewModel()
	rep := &Report{Format: "dm3"}
	require.NoError(t, m.decodeDM3(w.reader(), rep))
	assert.Empty(t, rep.Warnings)

	want := map[string]string{
		"/dm3/1/1":  "-5",
		"/dm3/1/b":  "1.5",
		"/dm3/Name": "Ab",
		"/dm3/S":    "4 0.5",
		"/dm3/A":    "1 2",
		"/dm3/B":    "10 element array",
		"/dm3/SA":   "",
	}
	for path, display := range want {
		n := m.Path(path)
		if assert.NotNil(t, n, path) {
			assert.Equal(t, display, n.Display(), path)
		}
	}
	assert.True(t, m.Path("/dm3/1").IsGroup())
}

func TestDM3Errors(t *testing.T) {
	t.Run("version", func(t *testing.T) {
		w := &dm3Stream{}
		w.be(int32(4))
		w.be(int32(0))
		w.be(int32(1))
		err := NewModel().decodeDM3(w.reader(), &Report{})
		assert.ErrorIs(t, err, ErrInvalidDataFormat)
	})

	t.Run("delimiter", func(t *testing.T) {
		w := (&dm3Stream{}).header(1)
		w.b.WriteByte(dm3SectionTag)
		w.be(uint16(1))
		w.b.WriteString("X%%%!")
		err := NewModel().decodeDM3(w.reader(), &Report{})
		assert.ErrorIs(t, err, ErrInvalidDataFormat)
	})

	t.Run("type", func(t *testing.T) {
		w := (&dm3Stream{}).header(1).tag("X", 99)
		err := NewModel().decodeDM3(w.reader(), &Report{})
		assert.ErrorIs(t, err, ErrInvalidDataType)
	})

	t.Run("section", func(t *testing.T) {
		w := (&dm3Stream{}).header(1)
		w.b.WriteByte(7)
		w.be(uint16(0))
		err := NewModel().decodeDM3(w.reader(), &Report{})
		assert.ErrorIs(t, err, ErrInvalidDataFormat)
	})

	t.Run("payload", func(t *testing.T) {
		w := (&dm3Stream{}).header(1).tag("X", 7)
		w.le(int16(1))
		err := NewModel().decodeDM3(w.reader(), &Report{})
		assert.ErrorIs(t, err, ErrFileIncomplete)
	})

	t.Run("info", func(t *testing.T) {
		w := (&dm3Stream{}).header(1)
		w.b.WriteByte(dm3SectionTag)
		w.be(uint16(1))
		w.b.WriteString("X%%%%")
		w.be(int32(60000))
		w.be(int32(3))
		err := NewModel().decodeDM3(w.reader(), &Report{})
		assert.ErrorIs(t, err, ErrFileIncomplete)
	})

	t.Run("twice", func(t *testing.T) {
		w := (&dm3Stream{}).header(0).end()
		m := NewModel()
		require.NoError(t, m.decodeDM3(w.reader(), &Report{}))
		err := m.decodeDM3(w.reader(), &Report{})
		assert.ErrorIs(t, err, ErrInvalidOperation)
	})
}

func TestDM3FailureLeavesNoTree(t *testing.T) {
	w := (&dm3Stream{}).header(2).tag("A", 3)
	w.le(int32(1))
	w.tag("X", 99)

	m := NewModel()
	err := m.decodeDM3(w.reader(), &Report{})
	assert.ErrorIs(t, err, ErrInvalidDataType)
	assert.Nil(t, m.Path("/dm3"))
	assert.Equal(t, len(defaultGroups), m.Root().NumChildren())

	// A failed attempt does not block a later decode.
	ok := (&dm3Stream{}).header(1).tag("A", 3)
	ok.le(int32(1))
	ok.end()
	require.NoError(t, m.decodeDM3(ok.reader(), &Report{}))
	assert.NotNil(t, m.Path("/dm3/A"))
}

func TestDM3HugeDataArray(t *testing.T) {
	w := (&dm3Stream{}).header(1).dir("ImageData", 1).tag("Data", dm3TypeArray, 3, 1<<30)
	w.le([]int32{1, 2, 3})

	m := NewModel()
	err := m.decodeDM3(w.reader(), &Report{})
	assert.ErrorIs(t, err, ErrFileIncomplete)
	assert.Nil(t, m.Path("/dm3"))
}

func TestDM3Truncation(t *testing.T) {
	// No end marker: the tags read so far are kept.
	w := (&dm3Stream{}).header(2).tag("X", 3)
	w.le(int32(1))

	m := NewModel()
	rep := &Report{Format: "dm3"}
	require.NoError(t, m.decodeDM3(w.reader(), rep))
	require.Len(t, rep.Warnings, 1)
	assert.Contains(t, rep.Warnings[0], "ran out of tags before end of stream")
	assert.NotNil(t, m.Path("/dm3/X"))

	// End marker with one tag still owed.
	w = (&dm3Stream{}).header(2).tag("X", 3)
	w.le(int32(1))
	w.end()
	m = NewModel()
	rep = &Report{Format: "dm3"}
	require.NoError(t, m.decodeDM3(w.reader(), rep))
	require.Len(t, rep.Warnings, 1)
	assert.Equal(t, "end of stream with tags remaining depth=0 remaining=1", rep.Warnings[0])
}

// imageStream lays out a thumbnail and a 3 x 2 float32 image, with the
// source list pointing at the image.
func imageStream() *dm3Stream {
	w := (&dm3Stream{}).header(2)

	w.dir("ImageList", 2)

	w.dir("", 1)
	w.dir("ImageData", 2)
	w.tag("Data", dm3TypeArray, 4, 4)
	w.le([]uint16{9, 9, 9, 9})
	w.dir("Dimensions", 2)
	w.tag("", 3)
	w.le(int32(2))
	w.tag("", 3)
	w.le(int32(2))

	w.dir("", 1)
	w.dir("ImageData", 3)
	w.dir("Calibrations", 1)
	w.dir("Dimension", 2)
	w.dir("", 1)
	w.tag("Units", dm3TypeArray, 4, 2)
	w.le([]uint16{'n', 'm'})
	w.dir("", 0)
	w.tag("Data", dm3TypeArray, 6, 6)
	w.le([]float32{0.5, 1.5, 2.5, 3.5, 4.5, 5.5})
	w.dir("Dimensions", 2)
	w.tag("", 3)
	w.le(int32(3))
	w.tag("", 3)
	w.le(int32(2))

	w.dir("ImageSourceList", 1)
	w.dir("", 1)
	w.tag("ImageRef", 3)
	w.le(int32(1))

	return w.end()
}

func TestDM3Image(t *testing.T) {
	path := writeTemp(t, "image.dm3", imageStream().b.Bytes())

	m := NewModel()
	rep, err := m.OpenFile(path)
	require.NoError(t, err)
	assert.Empty(t, rep.Warnings)

	assert.Equal(t, "data array", m.Path("/dm3/ImageList/2/ImageData/Data").Display())
	assert.Equal(t, "nm", m.Path("/dm3/ImageList/2/ImageData/Calibrations/Dimension/1/Units").Display())

	require.Equal(t, 1, m.DataGroupCount())
	dg := m.DataGroupAt(0)
	assert.Equal(t, "/data/dm3_file", dg.Node().Path())
	assert.Equal(t, dtype.Float32, dg.Data().Kind())
	assert.True(t, NewDataSpace(3, 2).Equal(dg.Data().Space()))
	assert.False(t, dg.Data().Descending())

	v, ok := dg.Data().ValueAt([]uint64{2, 1}).Float64()
	require.True(t, ok)
	assert.Equal(t, 5.5, v)

	assert.Equal(t, "nm", dg.Dim(0).Units())
	assert.Equal(t, "[px]", dg.Dim(1).Units())
	assert.Equal(t, "dim1", dg.Dim(0).DataName())
}

func TestDM3MissingReference(t *testing.T) {
	w := (&dm3Stream{}).header(1)
	w.dir("ImageData", 1)
	w.tag("Data", dm3TypeArray, 3, 1)
	w.le(int32(1))
	w.end()

	m := NewModel()
	rep := &Report{Format: "dm3"}
	require.NoError(t, m.decodeDM3(w.reader(), rep))
	require.Len(t, rep.Warnings, 1)
	assert.Contains(t, rep.Warnings[0], "image data without an image reference")
	assert.Nil(t, m.Path("/data/dm3_file"))
}

func TestDM3Capacity(t *testing.T) {
	rec := &recorder{}
	m := NewModel(WithMemoryLimit(16), WithMetrics(rec))
	err := m.decodeDM3(imageStream().reader(), &Report{})
	assert.ErrorIs(t, err, ErrInvalidDataFormat)
	assert.ErrorIs(t, err, ErrCapacity)
	assert.Equal(t, 1, rec.rejected)
	assert.Nil(t, m.Path("/dm3"))
}
