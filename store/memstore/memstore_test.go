package memstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-emd/dtype"
	"github.com/robert-malhotra/go-emd/store"
)

func TestGroupsAndChildrenOrder(t *testing.T) {
	s := New()
	require.NoError(t, s.CreateGroup("/data"))
	require.NoError(t, s.CreateGroup("/user"))
	require.NoError(t, s.CreateGroup("/data")) // idempotent
	require.NoError(t, s.CreateNamedType("/dtype"))

	entries, err := s.Children("/")
	require.NoError(t, err)
	assert.Equal(t, []store.Entry{
		{Name: "data", Type: store.TypeGroup},
		{Name: "user", Type: store.TypeGroup},
		{Name: "dtype", Type: store.TypeNamedType},
	}, entries)

	err = s.CreateGroup("/missing/child")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAttributes(t *testing.T) {
	s := New()
	require.NoError(t, s.CreateGroup("/data"))
	require.NoError(t, s.WriteAttr("/data", "emd_group_type", dtype.Scalar(int32(1))))
	require.NoError(t, s.WriteAttr("/data", "tags", dtype.Array([]string{"a", "b"})))
	require.NoError(t, s.WriteAttr("/data", "emd_group_type", dtype.Scalar(int32(2))))

	names, err := s.Attrs("/data")
	require.NoError(t, err)
	assert.Equal(t, []string{"emd_group_type", "tags"}, names)

	v, err := s.ReadAttr("/data", "emd_group_type")
	require.NoError(t, err)
	assert.True(t, dtype.Equal(dtype.Scalar(int32(2)), v))

	_, err = s.ReadAttr("/data", "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDatasets(t *testing.T) {
	s := New()
	info := store.DatasetInfo{Shape: []uint64{2, 3}, Kind: dtype.Uint16, ElemSize: 2}
	payload := dtype.FromSlice([]uint16{1, 2, 3, 4, 5, 6}).Bytes()

	require.NoError(t, s.CreateDataset("/d", info, payload))
	assert.ErrorIs(t, s.CreateDataset("/d", info, payload), store.ErrExists)
	assert.ErrorIs(t, s.CreateDataset("/short", info, payload[:4]), store.ErrSizeMismatch)

	got, err := s.DatasetInfo("/d")
	require.NoError(t, err)
	assert.Equal(t, info, got)

	dst := make([]byte, len(payload))
	require.NoError(t, s.ReadDataset("/d", dst))
	assert.Equal(t, payload, dst)

	typ, err := s.Stat("/d")
	require.NoError(t, err)
	assert.Equal(t, store.TypeDataset, typ)

	_, err = s.Children("/d")
	assert.ErrorIs(t, err, store.ErrTypeMismatch)
}

func TestClosed(t *testing.T) {
	s := New()
	require.NoError(t, s.Close())
	_, err := s.Children("/")
	assert.ErrorIs(t, err, store.ErrClosed)

	s.Reopen()
	_, err = s.Children("/")
	assert.NoError(t, err)
}
