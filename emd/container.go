package emd

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-emd/store"
)

// groupTypeAttr marks a container group as a data group when it equals 1.
const groupTypeAttr = "emd_group_type"

// Open populates the model from st. Groups marked as data groups become
// DataGroup nodes, datasets are added metadata-only for lazy loading and
// named types are skipped. Nodes already present in the tree are reused.
// The data group registry is rebuilt afterwards.
func (m *Model) Open(st store.Store) error {
	if err := m.openGroup(st, "/", m.root); err != nil {
		m.opts.logger.Error("open container", "error", err)
		return newError(CodeOf(err), "open", m.FilePath(), err)
	}
	m.ValidateDataGroups()
	return nil
}

func (m *Model) openGroup(st store.Store, path string, parent *Node) error {
	entries, err := st.Children(path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		childPath := store.JoinPath(path, e.Name)
		switch e.Type {
		case store.TypeGroup:
			kind := KindGroup
			marker, err := st.ReadAttr(childPath, groupTypeAttr)
			if err == nil {
				if v, ok := marker.Int64(); ok && v == 1 {
					kind = KindDataGroup
				}
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}
			n, err := m.openChild(parent, e.Name, kind)
			if err != nil {
				return err
			}
			if err := m.openAttrs(st, childPath, n); err != nil {
				return err
			}
			if err := m.openGroup(st, childPath, n); err != nil {
				return err
			}

		case store.TypeDataset:
			info, err := st.DatasetInfo(childPath)
			if err != nil {
				return err
			}
			n := parent.ChildByName(e.Name)
			if n == nil {
				d, err := NewUnloadedDataset(NewDataSpace(info.Shape...), info.Kind, info.ElemSize)
				if err != nil {
					return fmt.Errorf("%s: %w", childPath, err)
				}
				n = NewDatasetNode(e.Name, d)
				if err := parent.AddChild(n); err != nil {
					return err
				}
			}
			if err := m.openAttrs(st, childPath, n); err != nil {
				return err
			}

		case store.TypeNamedType:
			m.opts.logger.Debug("skipping named type", "path", childPath)

		default:
			m.opts.logger.Debug("skipping unknown object", "path", childPath, "type", e.Type)
		}
	}
	return nil
}

func (m *Model) openChild(parent *Node, name string, kind NodeKind) (*Node, error) {
	if n := parent.ChildByName(name); n != nil {
		return n, nil
	}
	n, err := NewNode(name, kind)
	if err != nil {
		return nil, err
	}
	return n, parent.AddChild(n)
}

func (m *Model) openAttrs(st store.Store, path string, n *Node) error {
	names, err := st.Attrs(path)
	if err != nil {
		return err
	}
	for _, name := range names {
		v, err := st.ReadAttr(path, name)
		if err != nil {
			return err
		}
		if c := n.ChildByName(name); c != nil {
			a := c.Attribute()
			if a == nil {
				m.opts.logger.Warn("attribute shadowed by child node", "path", path, "name", name)
				continue
			}
			a.kind, a.value = v.Kind(), v
			continue
		}
		if err := n.AddChild(NewAttribute(name, v)); err != nil {
			return err
		}
	}
	return nil
}

// Save writes the tree to st by recursive descent. Groups are created when
// missing, dirty attributes are written and loaded datasets absent from
// the store are created with their payload. Each node's Dirty flag is
// cleared once it has been persisted.
func (m *Model) Save(st store.Store) error {
	for _, c := range m.root.children {
		if err := m.saveNode(st, "/", c); err != nil {
			m.opts.logger.Error("save container", "error", err)
			return err
		}
	}
	m.root.ClearStatus(Dirty, false)
	return nil
}

func (m *Model) saveNode(st store.Store, parentPath string, n *Node) error {
	path := store.JoinPath(parentPath, n.name)
	switch b := n.body.(type) {
	case *Group, *DataGroup:
		if err := st.CreateGroup(path); err != nil {
			return err
		}

	case *Dataset:
		typ, err := st.Stat(path)
		switch {
		case errors.Is(err, store.ErrNotFound):
			if !b.IsLoaded() {
				m.opts.logger.Warn("skipping unloaded dataset", "path", path)
				return nil
			}
			info := store.DatasetInfo{Shape: b.space.Dims(), Kind: b.kind, ElemSize: b.width}
			if err := st.CreateDataset(path, info, b.buf.Bytes()); err != nil {
				return err
			}
		case err != nil:
			return err
		case typ != store.TypeDataset:
			return fmt.Errorf("%s: %w: stored as %s", path, store.ErrTypeMismatch, typ)
		}

	case *Attribute:
		if n.IsDirty() {
			if err := st.WriteAttr(parentPath, n.name, b.value); err != nil {
				return err
			}
		}
		n.ClearStatus(Dirty, false)
		return nil
	}

	for _, c := range n.children {
		if err := m.saveNode(st, path, c); err != nil {
			return err
		}
	}
	n.ClearStatus(Dirty, false)
	return nil
}

// SaveFile saves the tree to the container at path and records it as the
// model's backing file.
func (m *Model) SaveFile(path string) (err error) {
	st, err := m.opts.opener(path)
	if err != nil {
		m.opts.logger.Error("open store", "path", path, "error", err)
		return newError(CodeFileOpenFailed, "save", path, err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := m.Save(st); err != nil {
		return newError(CodeOf(err), "save", path, err)
	}
	m.SetFilePath(path)
	return nil
}
