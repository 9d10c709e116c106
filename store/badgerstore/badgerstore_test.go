package badgerstore

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-emd/dtype"
	"github.com/robert-malhotra/go-emd/store"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	cfg := InMemoryConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(DefaultConfig())
	assert.Error(t, err)
}

func TestGroupsKeepCreationOrder(t *testing.T) {
	s := openTest(t)

	for _, name := range []string{"data", "user", "microscope", "sample", "comments"} {
		require.NoError(t, s.CreateGroup("/"+name))
	}
	require.NoError(t, s.CreateGroup("/data"))
	require.NoError(t, s.CreateGroup("/data/ser_file"))
	require.NoError(t, s.CreateGroup("/databank"))

	entries, err := s.Children("/")
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
		assert.Equal(t, store.TypeGroup, e.Type)
	}
	assert.Equal(t, []string{"data", "user", "microscope", "sample", "comments", "databank"}, names)

	sub, err := s.Children("/data")
	require.NoError(t, err)
	assert.Equal(t, []store.Entry{{Name: "ser_file", Type: store.TypeGroup}}, sub)

	assert.ErrorIs(t, s.CreateGroup("/nope/child"), store.ErrNotFound)
}

func TestAttributeKinds(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.CreateGroup("/g"))

	values := map[string]dtype.Value{
		"i8":  dtype.Scalar(int8(-3)),
		"u64": dtype.Scalar(uint64(1 << 60)),
		"f32": dtype.Scalar(float32(0.1)),
		"f64": dtype.Array([]float64{1.0 / 3, -2}),
		"b":   dtype.Scalar(true),
		"s":   dtype.Array([]string{"nm", "[px]"}),
	}
	for name, v := range values {
		require.NoError(t, s.WriteAttr("/g", name, v))
	}

	names, err := s.Attrs("/g")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"i8", "u64", "f32", "f64", "b", "s"}, names)

	for name, want := range values {
		got, err := s.ReadAttr("/g", name)
		require.NoError(t, err, name)
		assert.True(t, dtype.Equal(want, got), "%s: got %v want %v", name, got, want)
	}

	_, err = s.ReadAttr("/g", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Error(t, s.WriteAttr("/g", "empty", dtype.Value{}))
}

func TestDatasetPipeline(t *testing.T) {
	s := openTest(t)

	vals := make([]float32, 1000)
	for i := range vals {
		vals[i] = float32(i%17) * 0.5
	}
	payload := dtype.FromSlice(vals).Bytes()
	info := store.DatasetInfo{Shape: []uint64{10, 100}, Kind: dtype.Float32, ElemSize: 4}

	require.NoError(t, s.CreateDataset("/img", info, payload))
	assert.ErrorIs(t, s.CreateDataset("/img", info, payload), store.ErrExists)

	got, err := s.DatasetInfo("/img")
	require.NoError(t, err)
	assert.Equal(t, info, got)

	dst := make([]byte, len(payload))
	require.NoError(t, s.ReadDataset("/img", dst))
	assert.Equal(t, payload, dst)

	assert.ErrorIs(t, s.ReadDataset("/img", dst[:8]), store.ErrSizeMismatch)

	typ, err := s.Stat("/img")
	require.NoError(t, err)
	assert.Equal(t, store.TypeDataset, typ)
}

func TestDatasetWithoutFilters(t *testing.T) {
	cfg := InMemoryConfig()
	cfg.CompressionLevel = 0
	cfg.Shuffle = false
	cfg.Checksum = false
	s, err := Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	payload := dtype.FromSlice([]int32{1, -2, 3}).Bytes()
	info := store.DatasetInfo{Shape: []uint64{3}, Kind: dtype.Int32, ElemSize: 4}
	require.NoError(t, s.CreateDataset("/v", info, payload))

	dst := make([]byte, 12)
	require.NoError(t, s.ReadDataset("/v", dst))
	assert.Equal(t, payload, dst)
}

func TestPersistentReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenPath(dir)
	require.NoError(t, err)
	require.NoError(t, s.CreateGroup("/data"))
	require.NoError(t, s.WriteAttr("/data", "emd_group_type", dtype.Scalar(int32(1))))
	require.NoError(t, s.Close())

	s, err = OpenPath(dir)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.ReadAttr("/data", "emd_group_type")
	require.NoError(t, err)
	n, ok := v.Int64()
	require.True(t, ok)
	assert.Equal(t, int64(1), n)
}

func TestClosedStore(t *testing.T) {
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Children("/")
	assert.ErrorIs(t, err, store.ErrClosed)
}
