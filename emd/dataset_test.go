package emd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-emd/dtype"
	"github.com/robert-malhotra/go-emd/store"
	"github.com/robert-malhotra/go-emd/store/memstore"
)

func seqDataset(t *testing.T, dims ...uint64) *Dataset {
	t.Helper()
	n := NewDataSpace(dims...).NumElements()
	vs := make([]int32, n)
	for i := range vs {
		vs[i] = int32(i)
	}
	d, err := NewDataset(NewDataSpace(dims...), dtype.FromSlice(vs))
	require.NoError(t, err)
	return d
}

func TestResolveOffsetBounds(t *testing.T) {
	for _, descending := range []bool{true, false} {
		d := seqDataset(t, 3, 4, 5)
		d.SetDescending(descending)

		off, ok := d.ResolveOffset([]uint64{0, 0, 0})
		require.True(t, ok)
		assert.Equal(t, uint64(0), off)

		off, ok = d.ResolveOffset([]uint64{2, 3, 4})
		require.True(t, ok)
		assert.Equal(t, uint64(59), off)

		_, ok = d.ResolveOffset([]uint64{3, 0, 0})
		assert.False(t, ok)
		_, ok = d.ResolveOffset([]uint64{0, 0})
		assert.False(t, ok)
	}
}

func TestResolveOffsetLayout(t *testing.T) {
	d := seqDataset(t, 3, 4)

	// Descending: the last axis varies fastest.
	off, _ := d.ResolveOffset([]uint64{1, 2})
	assert.Equal(t, uint64(1*4+2), off)

	d.SetDescending(false)
	off, _ = d.ResolveOffset([]uint64{1, 2})
	assert.Equal(t, uint64(2*3+1), off)
}

func TestScalarRoundTripAllKinds(t *testing.T) {
	space := NewDataSpace(2, 3)
	buffers := map[dtype.Kind]dtype.Buffer{
		dtype.Int8:    dtype.FromSlice([]int8{-3, -2, -1, 0, 1, 2}),
		dtype.Uint8:   dtype.FromSlice([]uint8{0, 1, 2, 3, 254, 255}),
		dtype.Int16:   dtype.FromSlice([]int16{-300, 1, 2, 3, 4, 300}),
		dtype.Uint16:  dtype.FromSlice([]uint16{0, 1, 2, 3, 4, 65535}),
		dtype.Int32:   dtype.FromSlice([]int32{-70000, 1, 2, 3, 4, 70000}),
		dtype.Uint32:  dtype.FromSlice([]uint32{0, 1, 2, 3, 4, 4000000000}),
		dtype.Int64:   dtype.FromSlice([]int64{-1 << 40, 1, 2, 3, 4, 1 << 40}),
		dtype.Uint64:  dtype.FromSlice([]uint64{0, 1, 2, 3, 4, 1 << 63}),
		dtype.Float32: dtype.FromSlice([]float32{-1.5, 0, 0.25, 3, 4, 1e10}),
		dtype.Float64: dtype.FromSlice([]float64{-1.5, 0, 0.25, 3, 4, 1e300}),
		dtype.Bool:    dtype.FromBools([]bool{true, false, true, true, false, false}),
		dtype.String:  dtype.FromStrings([]string{"a", "bb", "ccc", "", "e", "ff"}, 4),
	}

	for kind, buf := range buffers {
		t.Run(kind.String(), func(t *testing.T) {
			d, err := NewDataset(space, buf)
			require.NoError(t, err)
			for _, descending := range []bool{true, false} {
				d.SetDescending(descending)
				seen := map[uint64]bool{}
				for i := uint64(0); i < 2; i++ {
					for j := uint64(0); j < 3; j++ {
						off, ok := d.ResolveOffset([]uint64{i, j})
						require.True(t, ok)
						seen[off] = true
						assert.True(t, dtype.Equal(buf.ValueAt(int(off)), d.ValueAt([]uint64{i, j})))
					}
				}
				assert.Len(t, seen, 6)
			}
		})
	}
}

func TestTruncatedExtrapolation(t *testing.T) {
	d, err := NewDataset(NewDataSpace(2), dtype.FromSlice([]int32{10, 13}))
	require.NoError(t, err)
	require.True(t, d.SetTrueLength(5))
	assert.True(t, d.IsTruncated())
	assert.Equal(t, uint64(5), d.DimLength(0))

	var got []string
	for i := uint64(0); i < 5; i++ {
		got = append(got, d.ValueString(i))
	}
	assert.Equal(t, []string{"10", "13", "16", "19", "22"}, got)
	assert.False(t, d.ScalarAt(5).IsValid())

	f, err := NewDataset(NewDataSpace(2), dtype.FromSlice([]float64{0.5, 0.75}))
	require.NoError(t, err)
	f.SetTrueLength(3)
	v, ok := f.ScalarAt(2).Float64()
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	s, err := NewDataset(NewDataSpace(2), dtype.FromStrings([]string{"a", "b"}, 1))
	require.NoError(t, err)
	s.SetTrueLength(4)
	assert.Equal(t, "b", s.ValueString(1))
	assert.Equal(t, "invalid", s.ValueString(3))

	// Only rank-1 datasets of length 2 switch mode.
	other := seqDataset(t, 3)
	assert.False(t, other.SetTrueLength(10))
	assert.Equal(t, uint64(3), other.DimLength(0))
}

func TestDatasetHelpers(t *testing.T) {
	d := seqDataset(t, 2, 3, 4)
	assert.Equal(t, Slice{Horizontal, Vertical, 0}, d.DefaultSlice())
	assert.Equal(t, []Range{{0, 2}, {0, 3}, {0, 4}}, d.SelectAll())

	n := NewDatasetNode("dim1", seqDataset(t, 2))
	assert.Equal(t, "dim1", n.Dataset().DataName())
	assert.Equal(t, "", n.Dataset().Units())
	assert.False(t, n.Dataset().IsComplexDim())

	require.NoError(t, n.AddChild(NewAttribute("name", dtype.Scalar("Complex"))))
	require.NoError(t, n.AddChild(NewAttribute("units", dtype.Scalar("[nm]"))))
	assert.Equal(t, "Complex", n.Dataset().DataName())
	assert.Equal(t, "[nm]", n.Dataset().Units())
	assert.True(t, n.Dataset().IsComplexDim())
}

func TestNewDatasetValidation(t *testing.T) {
	_, err := NewDataset(DataSpace{}, dtype.FromSlice([]int8{1}))
	assert.ErrorIs(t, err, ErrInvalidDataSpace)

	_, err = NewDataset(NewDataSpace(3), dtype.FromSlice([]int8{1, 2}))
	assert.ErrorIs(t, err, ErrInvalidDataSpace)

	_, err = NewUnloadedDataset(NewDataSpace(3), dtype.String, 0)
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func storeDataset(t *testing.T, vs []int16) (*memstore.Store, *Dataset) {
	t.Helper()
	st := memstore.New()
	require.NoError(t, st.CreateGroup("/data"))
	info := store.DatasetInfo{Shape: []uint64{uint64(len(vs))}, Kind: dtype.Int16, ElemSize: 2}
	require.NoError(t, st.CreateDataset("/data/d", info, dtype.FromSlice(vs).Bytes()))

	d, err := NewUnloadedDataset(NewDataSpace(uint64(len(vs))), dtype.Int16, 0)
	require.NoError(t, err)
	root := NewGroup("root")
	data := NewGroup("data")
	require.NoError(t, root.AddChild(data))
	require.NoError(t, data.AddChild(NewDatasetNode("d", d)))
	return st, d
}

func TestLoadUnloadRoundTrip(t *testing.T) {
	vs := []int16{5, -4, 3, -2, 1}
	st, d := storeDataset(t, vs)
	assert.False(t, d.IsLoaded())
	assert.Equal(t, "", d.ValueString(0))

	require.NoError(t, d.Load(st, 0))
	require.True(t, d.IsLoaded())
	got, ok := dtype.ToSlice[int16](d.Buffer())
	require.True(t, ok)
	assert.Equal(t, vs, got)

	assert.True(t, d.Unload())
	assert.False(t, d.IsLoaded())

	require.NoError(t, d.Load(st, 0))
	got, _ = dtype.ToSlice[int16](d.Buffer())
	assert.Equal(t, vs, got)
}

func TestUnloadKeepsDirtyData(t *testing.T) {
	st, d := storeDataset(t, []int16{1, 2})
	require.NoError(t, d.Load(st, 0))

	d.Node().SetStatus(Dirty, false)
	assert.False(t, d.Unload())
	assert.True(t, d.IsLoaded())

	d.Node().ClearStatus(Dirty, false)
	assert.True(t, d.Unload())
	assert.False(t, d.IsLoaded())
}

func TestLoadCapacity(t *testing.T) {
	st, d := storeDataset(t, []int16{1, 2, 3, 4})

	err := d.Load(st, 8)
	assert.ErrorIs(t, err, ErrCapacity)
	assert.False(t, d.IsLoaded())

	require.NoError(t, d.Load(st, 9))
	assert.True(t, d.IsLoaded())
}

func TestLoadDetached(t *testing.T) {
	d, err := NewUnloadedDataset(NewDataSpace(2), dtype.Int8, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, d.Load(memstore.New(), 0), ErrInvalidOperation)
}
