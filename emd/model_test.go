package emd

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-emd/dtype"
	"github.com/robert-malhotra/go-emd/store"
	"github.com/robert-malhotra/go-emd/store/memstore"
)

// buildDataGroup adds /data/<name> with a rank-len(dims) data dataset and
// one dimension dataset per entry of dimLens (0 skips the dimension).
func buildDataGroup(t *testing.T, m *Model, name string, dims []uint64, dimLens []uint64) *Node {
	t.Helper()
	g, err := m.AddPath("/data/"+name, KindDataGroup)
	require.NoError(t, err)
	require.NoError(t, g.AddChild(NewDatasetNode("data", seqDataset(t, dims...))))
	for i, n := range dimLens {
		if n == 0 {
			continue
		}
		vs := make([]int32, n)
		for j := range vs {
			vs[j] = int32(j + 1)
		}
		d, err := NewDataset(NewDataSpace(n), dtype.FromSlice(vs))
		require.NoError(t, err)
		dn := NewDatasetNode("dim"+string(rune('1'+i)), d)
		require.NoError(t, g.AddChild(dn))
	}
	return g
}

func TestModelDefaults(t *testing.T) {
	m := NewModel()
	root := m.Root()
	assert.Equal(t, "root", root.Name())
	var names []string
	for _, c := range root.Children() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"data", "user", "microscope", "sample", "comments"}, names)

	for _, c := range root.Children() {
		assert.False(t, m.CanDeleteNode(c), c.Name())
	}
	assert.False(t, m.CanDeleteNode(root))
	assert.ErrorIs(t, m.DeleteNode(m.Path("/data")), ErrProtectedNode)

	g, err := m.AddNode("extra", KindGroup, m.Path("user"))
	require.NoError(t, err)
	assert.True(t, m.CanDeleteNode(g))
	require.NoError(t, m.DeleteNode(g))
	assert.Nil(t, m.Path("/user/extra"))
}

func TestModelAddPath(t *testing.T) {
	m := NewModel()
	n, err := m.AddPath("/data/image", KindGroup)
	require.NoError(t, err)
	assert.Equal(t, "/data/image", n.Path())
	assert.True(t, n.IsDirty())

	again, err := m.AddPath("data/image", KindDataset)
	require.NoError(t, err)
	assert.Same(t, n, again)

	_, err = m.AddPath("/missing/image", KindGroup)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	assert.Same(t, n, m.Node("image", m.Path("/data")))
	assert.Same(t, m.Path("/data"), m.Node("data", nil))
}

func TestValidateMissingDimension(t *testing.T) {
	m := NewModel()
	buildDataGroup(t, m, "partial", []uint64{3, 4}, []uint64{3, 0})
	buildDataGroup(t, m, "full", []uint64{3, 4}, []uint64{3, 4})

	assert.Equal(t, 1, m.ValidateDataGroups())
	assert.False(t, m.IsDataGroup(m.Path("/data/partial").DataGroup()))
	assert.False(t, m.Path("/data/partial").DataGroup().IsValid())

	full := m.Path("/data/full").DataGroup()
	assert.True(t, m.IsDataGroup(full))
	assert.Same(t, full, m.DataGroupAt(0))
	assert.Equal(t, 0, m.IndexOfDataGroup(full))
	assert.Nil(t, m.DataGroupAt(1))
}

func TestValidateReconcilesDimensions(t *testing.T) {
	m := NewModel()
	g := buildDataGroup(t, m, "g", []uint64{2, 5, 7}, []uint64{2, 2, 7})
	require.NoError(t, g.Child(1).AddChild(NewAttribute("name", dtype.Scalar("complex"))))
	_, err := g.SetAttr("data_order", dtype.Scalar(int32(0)))
	require.NoError(t, err)

	require.Equal(t, 1, m.ValidateDataGroups())
	dg := g.DataGroup()
	assert.Equal(t, 3, dg.DimCount())
	assert.True(t, dg.HasComplexDim())
	assert.Equal(t, 0, dg.ComplexIndex())
	assert.True(t, dg.IsIntType())
	assert.False(t, dg.Data().Descending())

	// dim2 stores two points but the data axis has five.
	dim2 := dg.Dim(1)
	assert.True(t, dim2.IsTruncated())
	assert.Equal(t, uint64(5), dim2.DimLength(0))
	assert.Equal(t, "5", dim2.ValueString(4))
	assert.False(t, dg.Dim(2).IsTruncated())
	assert.Nil(t, dg.Dim(3))
}

func TestSaveOpenRoundTrip(t *testing.T) {
	m := NewModel()
	g := buildDataGroup(t, m, "img", []uint64{2, 3}, []uint64{2, 3})
	_, err := g.SetAttr(groupTypeAttr, dtype.Scalar(int32(1)))
	require.NoError(t, err)
	_, err = g.Child(1).SetAttr("units", dtype.Scalar("[nm]"))
	require.NoError(t, err)
	_, err = m.Path("/user").SetAttr("tags", dtype.Array([]string{"a", "b"}))
	require.NoError(t, err)
	m.SetDirty()

	st := memstore.New()
	require.NoError(t, m.Save(st))
	assert.False(t, m.IsDirty())
	assert.False(t, g.IsDirty())

	typ, err := st.Stat("/data/img/data")
	require.NoError(t, err)
	assert.Equal(t, store.TypeDataset, typ)

	opened := NewModel()
	require.NoError(t, opened.Open(st))
	require.Equal(t, 1, opened.DataGroupCount())

	dg := opened.DataGroupAt(0)
	assert.Equal(t, "/data/img", dg.Node().Path())
	assert.False(t, dg.IsLoaded())
	assert.Equal(t, dtype.Int32, dg.Data().Kind())
	assert.True(t, NewDataSpace(2, 3).Equal(dg.Data().Space()))
	assert.Equal(t, "[nm]", dg.Dim(0).Units())
	assert.Equal(t, "a, b", opened.Path("/user/tags").Display())
	assert.False(t, opened.IsDirty())

	require.NoError(t, dg.Load(st, 0))
	v, ok := dg.Data().ValueAt([]uint64{1, 2}).Int64()
	require.True(t, ok)
	assert.Equal(t, int64(5), v)
}

func TestOpenSkipsNamedTypes(t *testing.T) {
	st := memstore.New()
	require.NoError(t, st.CreateNamedType("/complex_t"))
	require.NoError(t, st.CreateGroup("/sample"))
	require.NoError(t, st.WriteAttr("/sample", "grid", dtype.Scalar(uint16(300))))

	m := NewModel()
	require.NoError(t, m.Open(st))
	assert.Nil(t, m.Path("/complex_t"))
	assert.Equal(t, "300", m.Path("/sample/grid").Display())
	assert.Equal(t, 0, m.DataGroupCount())
}

type recorder struct {
	loaded, unloaded int64
	rejected         int
	decodes          []string
}

func (r *recorder) ObserveDecode(format string, _ time.Duration, err error) {
	r.decodes = append(r.decodes, format+":"+CodeOf(err).String())
}
func (r *recorder) DatasetLoaded(n int64)   { r.loaded += n }
func (r *recorder) DatasetUnloaded(n int64) { r.unloaded += n }
func (r *recorder) LoadRejected()           { r.rejected++ }

func TestLoadDataGroupThroughOpener(t *testing.T) {
	src := NewModel()
	buildDataGroup(t, src, "img", []uint64{4, 4}, []uint64{4, 4})
	_, err := src.Path("/data/img").SetAttr(groupTypeAttr, dtype.Scalar(int32(1)))
	require.NoError(t, err)
	st := memstore.New()
	require.NoError(t, src.Save(st))

	var opened []string
	rec := &recorder{}
	opener := func(path string) (store.Store, error) {
		opened = append(opened, path)
		st.Reopen()
		return st, nil
	}
	m := NewModel(WithStoreOpener(opener), WithMetrics(rec))
	m.SetFilePath(filepath.Join(t.TempDir(), "scan.emd"))
	require.NoError(t, m.Open(st))
	require.Equal(t, 1, m.DataGroupCount())
	assert.Equal(t, "scan", m.FileName())
	assert.Equal(t, "emd", m.FileExtension())

	dg := m.DataGroupAt(0)
	assert.False(t, m.AnyLoaded())

	f, err := m.Frame(dg, dg.Data().DefaultSlice())
	require.NoError(t, err)
	assert.Equal(t, 4, f.Width())
	assert.True(t, m.AnyLoaded())
	assert.True(t, dg.Dim(0).IsLoaded())
	assert.Equal(t, []string{m.FilePath()}, opened)
	assert.Equal(t, int64(16*4+4*4+4*4), rec.loaded)

	// The store is closed again once the load returns.
	_, err = st.Children("/")
	assert.ErrorIs(t, err, store.ErrClosed)

	m.UnloadDataGroups()
	assert.False(t, m.AnyLoaded())
	assert.Equal(t, rec.loaded, rec.unloaded)
}

func TestLoadDataGroupFailures(t *testing.T) {
	rec := &recorder{}
	failing := func(string) (store.Store, error) { return nil, errors.New("boom") }
	m := NewModel(WithStoreOpener(failing), WithMetrics(rec), WithMemoryLimit(8))
	buildDataGroup(t, m, "img", []uint64{2, 2}, []uint64{2, 2})
	require.Equal(t, 1, m.ValidateDataGroups())
	dg := m.DataGroupAt(0)

	// Decoded data is resident already.
	require.NoError(t, m.LoadDataGroup(dg))

	st := memstore.New()
	require.NoError(t, m.Save(st))
	require.True(t, dg.Unload())

	err := m.LoadDataGroup(dg)
	assert.ErrorIs(t, err, ErrFileOpenFailed)

	m.opts.opener = func(string) (store.Store, error) { st.Reopen(); return st, nil }
	err = m.LoadDataGroup(dg)
	assert.ErrorIs(t, err, ErrCapacity)
	assert.Equal(t, 1, rec.rejected)
	assert.False(t, dg.IsLoaded())
	assert.Zero(t, rec.loaded)

	other := NewDataGroup("loose").DataGroup()
	assert.ErrorIs(t, m.LoadDataGroup(other), ErrInvalidOperation)
}

func TestDataGroupLoadRollsBack(t *testing.T) {
	m := NewModel()
	g := buildDataGroup(t, m, "img", []uint64{2, 2}, []uint64{2, 2})
	require.Equal(t, 1, m.ValidateDataGroups())
	dg := g.DataGroup()

	// dim2 is not resident at save time, so the store never receives it.
	require.True(t, dg.Dim(1).Unload())
	st := memstore.New()
	require.NoError(t, m.Save(st))
	require.True(t, dg.Unload())

	err := dg.Load(st, 0)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.False(t, dg.IsLoaded())
	assert.False(t, dg.Dim(0).IsLoaded())
	assert.False(t, dg.Dim(1).IsLoaded())
}

func TestWalk(t *testing.T) {
	m := NewModel()
	_, err := m.AddPath("/data/a", KindGroup)
	require.NoError(t, err)
	_, err = m.AddPath("/data/a/b", KindGroup)
	require.NoError(t, err)

	var paths []string
	err = m.Walk(func(path string, n *Node) error {
		paths = append(paths, path)
		if n.Name() == "a" {
			return SkipChildren
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"", "/data", "/data/a", "/user", "/microscope", "/sample", "/comments"}, paths)

	stop := errors.New("stop")
	assert.ErrorIs(t, m.Walk(func(string, *Node) error { return stop }), stop)
}
