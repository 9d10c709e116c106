package hdf5store

import (
	"errors"
	"fmt"
	"slices"

	"github.com/robert-malhotra/go-emd/dtype"
	"github.com/robert-malhotra/go-emd/internal/binary"
	"github.com/robert-malhotra/go-emd/internal/btree"
	"github.com/robert-malhotra/go-emd/internal/filter"
	"github.com/robert-malhotra/go-emd/internal/heap"
	"github.com/robert-malhotra/go-emd/internal/layout"
	"github.com/robert-malhotra/go-emd/internal/message"
	"github.com/robert-malhotra/go-emd/internal/object"
	"github.com/robert-malhotra/go-emd/store"
)

const (
	// maxDepth bounds group nesting.
	maxDepth = 128

	// maxEagerBytes bounds variable-length string datasets, which are
	// decoded when the file is opened.
	maxEagerBytes = 1 << 28
)

type member struct {
	name string
	addr uint64
}

// loader builds the in-memory mirror of an open file.
type loader struct {
	s    *Store
	r    *binary.Reader
	gh   *heap.Global
	seen map[uint64]string // header address to the first path reaching it
}

func newLoader(s *Store) *loader {
	return &loader{s: s, r: s.r, gh: heap.NewGlobal(s.r), seen: map[uint64]string{}}
}

func (l *loader) run(root uint64) error {
	h, err := object.Read(l.r, root)
	if err != nil {
		return fmt.Errorf("root group: %w", err)
	}
	obj := newNode(store.TypeGroup)
	l.s.objects["/"] = obj
	l.seen[root] = "/"
	return l.group("/", obj, h, 0)
}

// skip notes an object that the mirror cannot hold. A store that skipped
// anything refuses to rewrite its file.
func (l *loader) skip(path, what string, err error) {
	l.s.skipped++
	l.s.log.Warn("skipping "+what, "path", path, "error", err)
}

func (l *loader) add(path string, obj *node) {
	parent, name := store.ParentPath(path)
	p := l.s.objects[parent]
	p.children = append(p.children, name)
	l.s.objects[path] = obj
}

func (l *loader) group(path string, obj *node, h *object.Header, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("%s: groups nested deeper than %d", path, maxDepth)
	}
	l.attrs(path, obj, h)
	members, err := l.members(path, h)
	if err != nil {
		return err
	}
	for _, m := range members {
		childPath := store.JoinPath(path, m.name)
		if first, ok := l.seen[m.addr]; ok {
			l.s.log.Debug("skipping repeated hard link", "path", childPath, "target", first)
			continue
		}
		l.seen[m.addr] = childPath
		if err := l.child(childPath, m.addr, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// members lists the hard links of a group, from its symbol table or its
// link messages.
func (l *loader) members(path string, h *object.Header) ([]member, error) {
	if st, ok := h.Get(message.TypeSymbolTable).(*message.SymbolTable); ok {
		names, err := heap.ReadLocal(l.r, st.HeapAddr)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		entries, err := btree.ReadGroupEntries(l.r, st.BTreeAddr, names)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out := make([]member, 0, len(entries))
		for _, e := range entries {
			if e.Soft {
				l.s.log.Debug("skipping soft link", "path", store.JoinPath(path, e.Name), "target", e.Target)
				continue
			}
			out = append(out, member{name: e.Name, addr: e.Address})
		}
		return out, nil
	}

	if li, ok := h.Get(message.TypeLinkInfo).(*message.LinkInfo); ok && li.Dense {
		l.skip(path, "densely stored links", layout.ErrUnsupported)
	}
	var out []member
	for _, m := range h.All(message.TypeLink) {
		link, ok := m.(*message.Link)
		if !ok {
			l.skip(path, "undecodable link", message.ErrUnsupported)
			continue
		}
		if link.LinkType != message.LinkHard {
			l.s.log.Debug("skipping soft or external link", "path", store.JoinPath(path, link.Name), "target", link.Target)
			continue
		}
		out = append(out, member{name: link.Name, addr: link.Address})
	}
	return out, nil
}

func (l *loader) attrs(path string, obj *node, h *object.Header) {
	if ai, ok := h.Get(message.TypeAttributeInfo).(*message.AttributeInfo); ok && ai.Dense {
		l.skip(path, "densely stored attributes", layout.ErrUnsupported)
	}
	for _, m := range h.All(message.TypeAttribute) {
		a, ok := m.(*message.Attribute)
		if !ok {
			l.skip(path, "undecodable attribute", message.ErrUnsupported)
			continue
		}
		v, err := attrValue(a, l.gh, l.r.OffsetSize())
		if err != nil {
			l.skip(path+"@"+a.Name, "attribute", err)
			continue
		}
		obj.setAttr(a.Name, v)
	}
}

func isGroup(h *object.Header) bool {
	for _, t := range []message.Type{message.TypeSymbolTable, message.TypeLinkInfo, message.TypeLink, message.TypeGroupInfo} {
		if h.Get(t) != nil {
			return true
		}
	}
	return false
}

func (l *loader) child(path string, addr uint64, depth int) error {
	h, err := object.Read(l.r, addr)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	switch {
	case h.Get(message.TypeDataLayout) != nil:
		obj, err := l.dataset(path, h)
		if errors.Is(err, ErrUnsupportedType) || errors.Is(err, layout.ErrUnsupported) {
			l.skip(path, "dataset", err)
			return nil
		}
		if err != nil {
			return err
		}
		l.add(path, obj)
		l.attrs(path, obj, h)
		return nil

	case !isGroup(h) && h.Get(message.TypeDatatype) != nil:
		dt, _ := h.Get(message.TypeDatatype).(*message.Datatype)
		if !encodable(dt) {
			l.skip(path, "named type", ErrUnsupportedType)
			return nil
		}
		obj := newNode(store.TypeNamedType)
		obj.dt = dt
		l.add(path, obj)
		l.attrs(path, obj, h)
		return nil
	}

	obj := newNode(store.TypeGroup)
	l.add(path, obj)
	return l.group(path, obj, h, depth)
}

// datatype returns the element type of a header, following a shared
// message to a committed datatype.
func (l *loader) datatype(h *object.Header) (*message.Datatype, error) {
	switch m := h.Get(message.TypeDatatype).(type) {
	case *message.Datatype:
		return m, nil
	case *message.Shared:
		if m.InHeap {
			return nil, fmt.Errorf("%w: datatype in shared message heap", ErrUnsupportedType)
		}
		th, err := object.Read(l.r, m.Address)
		if err != nil {
			return nil, fmt.Errorf("committed datatype: %w", err)
		}
		if dt, ok := th.Get(message.TypeDatatype).(*message.Datatype); ok {
			return dt, nil
		}
	}
	return nil, fmt.Errorf("%w: no datatype message", ErrUnsupportedType)
}

func (l *loader) dataset(path string, h *object.Header) (*node, error) {
	space := h.Dataspace()
	lay := h.DataLayout()
	if space == nil || lay == nil {
		return nil, fmt.Errorf("%s: %w", path, object.ErrInvalidHeader)
	}
	if err := supported(lay, h.FilterPipeline()); err != nil {
		return nil, err
	}
	dt, err := l.datatype(h)
	if err != nil {
		return nil, err
	}

	var shape []uint64
	switch space.Class {
	case message.SpaceSimple:
		shape = slices.Clone(space.Dims)
	case message.SpaceNull:
		shape = []uint64{0}
	}
	src := &layout.Dataset{Layout: lay, Dims: shape, Filters: h.FilterPipeline()}
	obj := newNode(store.TypeDataset)

	if isVarString(dt) {
		src.ElemSize = 8 + l.r.OffsetSize()
		if src.Size() > maxEagerBytes {
			return nil, fmt.Errorf("%w: %d-byte variable-length string dataset", ErrUnsupportedType, src.Size())
		}
		raw := make([]byte, src.Size())
		if err := layout.Read(l.r, src, raw); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		strs, err := varStrings(raw, len(raw)/src.ElemSize, l.gh, l.r.OffsetSize())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		buf := dtype.FromStrings(strs, 0)
		obj.info = store.DatasetInfo{Shape: shape, Kind: dtype.String, ElemSize: buf.Width()}
		obj.data = buf.Bytes()
		return obj, nil
	}

	k, width, err := kindOf(dt)
	if err != nil {
		return nil, err
	}
	src.ElemSize = width
	obj.info = store.DatasetInfo{Shape: shape, Kind: k, ElemSize: width}
	obj.src = src
	obj.dt = dt
	return obj, nil
}

// supported rejects layouts that layout.Read cannot decode, so that such
// datasets are skipped when the file is opened rather than failing later.
func supported(lay *message.DataLayout, fp *message.FilterPipeline) error {
	switch lay.Class {
	case message.LayoutCompact, message.LayoutContiguous:
		return nil
	case message.LayoutChunked:
		switch lay.Index {
		case message.IndexBTreeV1, message.IndexSingleChunk, message.IndexImplicit, message.IndexFixedArray:
		default:
			return fmt.Errorf("%w: chunk index %d", layout.ErrUnsupported, lay.Index)
		}
		if fp != nil {
			if _, err := filter.NewPipeline(fp.Chain()); err != nil {
				return fmt.Errorf("%w: %v", layout.ErrUnsupported, err)
			}
		}
		return nil
	}
	return fmt.Errorf("%w: layout class %d", layout.ErrUnsupported, lay.Class)
}
