package emd

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
)

// Top-level groups every model starts with.
var defaultGroups = []string{"data", "user", "microscope", "sample", "comments"}

// Model owns a node tree rooted at "root" and the registry of validated
// data groups. A Model is not safe for concurrent use.
type Model struct {
	root       *Node
	dataGroups []*DataGroup
	opts       *options

	fileDir  string
	fileName string
	fileExt  string
}

// NewModel returns a model containing the default top-level groups.
func NewModel(opts ...Option) *Model {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.sampler == nil {
		o.sampler = NewSampler(DefaultSampleSize)
	}

	root := NewGroup("root")
	for _, name := range defaultGroups {
		_ = root.AddChild(NewGroup(name))
	}
	return &Model{root: root, opts: o}
}

// Root returns the root node.
func (m *Model) Root() *Node { return m.root }

// Sampler returns the sampler used for frame display ranges.
func (m *Model) Sampler() *Sampler { return m.opts.sampler }

// Logger returns the model's logger.
func (m *Model) Logger() *slog.Logger { return m.opts.logger }

// CanDeleteNode reports whether n may be removed. The default top-level
// groups are protected.
func (m *Model) CanDeleteNode(n *Node) bool {
	if n == nil || n == m.root {
		return false
	}
	if n.parent == m.root {
		for _, name := range defaultGroups {
			if strings.EqualFold(n.name, name) {
				return false
			}
		}
	}
	return true
}

// DeleteNode removes n and its subtree from the tree and drops any data
// groups it contained from the registry.
func (m *Model) DeleteNode(n *Node) error {
	if !m.CanDeleteNode(n) {
		return ErrProtectedNode
	}
	if n.parent == nil {
		return fmt.Errorf("%w: %q is detached", ErrInvalidOperation, n.name)
	}
	m.dataGroups = slices.DeleteFunc(m.dataGroups, func(g *DataGroup) bool {
		for a := g.node; a != nil; a = a.parent {
			if a == n {
				return true
			}
		}
		return false
	})
	parent := n.parent
	if err := parent.RemoveChild(n); err != nil {
		return err
	}
	parent.SetStatus(Dirty, false)
	return nil
}

// AddNode creates a dirty node of the given kind under parent (the root
// when parent is nil).
func (m *Model) AddNode(name string, kind NodeKind, parent *Node) (*Node, error) {
	if parent == nil {
		parent = m.root
	}
	n, err := NewNode(name, kind)
	if err != nil {
		return nil, err
	}
	if err := parent.AddChild(n); err != nil {
		return nil, err
	}
	n.SetStatus(Dirty, false)
	return n, nil
}

// AddPath creates the node addressed by an absolute or root-relative path.
// Every ancestor must already exist. An existing node at path is returned
// unchanged.
func (m *Model) AddPath(path string, kind NodeKind) (*Node, error) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidOperation)
	}
	parent := m.root
	for _, seg := range segs[:len(segs)-1] {
		if parent = parent.ChildByName(seg); parent == nil {
			return nil, fmt.Errorf("%w: parent of %q does not exist", ErrInvalidOperation, path)
		}
	}
	if c := parent.ChildByName(segs[len(segs)-1]); c != nil {
		return c, nil
	}
	return m.AddNode(segs[len(segs)-1], kind, parent)
}

// Path returns the node at path, or nil.
func (m *Model) Path(path string) *Node {
	segs := splitPath(path)
	if len(segs) == 0 {
		return nil
	}
	return m.root.ChildAtPath(strings.Join(segs, "/"))
}

// Node returns the child of parent (the root when nil) named name.
func (m *Model) Node(name string, parent *Node) *Node {
	if parent == nil {
		parent = m.root
	}
	return parent.ChildByName(name)
}

func splitPath(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
}

// ValidateDataGroups rebuilds the data group registry by validating every
// data group node breadth-first. It returns the number registered.
func (m *Model) ValidateDataGroups() int {
	m.dataGroups = m.dataGroups[:0]
	queue := []*Node{m.root}
	for len(queue) > 0 {
		n := queue[0]
		queue = append(queue[1:], n.children...)

		g := n.DataGroup()
		if g == nil {
			continue
		}
		if g.Validate() {
			m.dataGroups = append(m.dataGroups, g)
		} else {
			m.opts.logger.Warn("invalid data group", "path", n.Path())
		}
	}
	return len(m.dataGroups)
}

// DataGroupCount returns the number of registered data groups.
func (m *Model) DataGroupCount() int { return len(m.dataGroups) }

// DataGroupAt returns registered data group i, or nil.
func (m *Model) DataGroupAt(i int) *DataGroup {
	if i < 0 || i >= len(m.dataGroups) {
		return nil
	}
	return m.dataGroups[i]
}

// IndexOfDataGroup returns the registry position of g, or -1.
func (m *Model) IndexOfDataGroup(g *DataGroup) int {
	return slices.Index(m.dataGroups, g)
}

// IsDataGroup reports whether g is registered.
func (m *Model) IsDataGroup(g *DataGroup) bool {
	return m.IndexOfDataGroup(g) >= 0
}

// AnyLoaded reports whether any registered data group is resident.
func (m *Model) AnyLoaded() bool {
	return slices.ContainsFunc(m.dataGroups, (*DataGroup).IsLoaded)
}

// LoadDataGroup loads g from the model's backing file. The store is opened
// for the duration of the call only.
func (m *Model) LoadDataGroup(g *DataGroup) (err error) {
	if !m.IsDataGroup(g) {
		return fmt.Errorf("%w: %w", ErrInvalidOperation, errNotDataGroup)
	}
	if g.IsLoaded() {
		return nil
	}

	path := m.FilePath()
	st, err := m.opts.opener(path)
	if err != nil {
		m.opts.logger.Error("open store", "path", path, "error", err)
		return newError(CodeFileOpenFailed, "load", path, err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := g.Load(st, m.opts.memoryLimit); err != nil {
		if errors.Is(err, ErrCapacity) {
			m.opts.recorder.LoadRejected()
		}
		m.opts.logger.Error("load data group", "path", g.node.Path(), "error", err)
		return err
	}
	m.opts.recorder.DatasetLoaded(g.loadedBytes())
	m.opts.logger.Debug("loaded data group", "path", g.node.Path(), "bytes", g.loadedBytes())
	return nil
}

// UnloadDataGroups releases every registered data group's buffers.
// Dirty datasets stay resident.
func (m *Model) UnloadDataGroups() {
	for _, g := range m.dataGroups {
		before := g.loadedBytes()
		g.Unload()
		if freed := before - g.loadedBytes(); freed > 0 {
			m.opts.recorder.DatasetUnloaded(freed)
		}
	}
}

// Frame extracts a frame from g's primary dataset, loading the group from
// the backing file first when it is not resident.
func (m *Model) Frame(g *DataGroup, s Slice) (*Frame, error) {
	if !g.IsLoaded() {
		if err := m.LoadDataGroup(g); err != nil {
			return nil, err
		}
	}
	return g.Data().Frame(s)
}

// IsDirty reports whether the root carries unsaved changes.
func (m *Model) IsDirty() bool { return m.root.IsDirty() }

// SetDirty marks the whole tree dirty so the next save writes everything.
func (m *Model) SetDirty() { m.root.SetStatus(Dirty, true) }

// SetFilePath records the backing file location.
func (m *Model) SetFilePath(path string) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	m.fileDir = filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	m.fileName = strings.TrimSuffix(base, ext)
	m.fileExt = strings.TrimPrefix(ext, ".")
}

// FilePath returns the backing file location, or "" if none was set.
func (m *Model) FilePath() string {
	if m.fileName == "" && m.fileExt == "" {
		return ""
	}
	name := m.fileName
	if m.fileExt != "" {
		name += "." + m.fileExt
	}
	return filepath.Join(m.fileDir, name)
}

// FileName returns the backing file's base name without extension.
func (m *Model) FileName() string { return m.fileName }

// FileDir returns the backing file's directory.
func (m *Model) FileDir() string { return m.fileDir }

// FileExtension returns the backing file's extension without the dot.
func (m *Model) FileExtension() string { return m.fileExt }

// WalkFunc is called for each node during Walk. Return SkipChildren to
// skip a node's subtree, or any other error to stop the walk.
type WalkFunc func(path string, n *Node) error

// SkipChildren is returned by a WalkFunc to skip the current subtree.
var SkipChildren = errors.New("skip children")

// Walk visits every node depth-first in child order, starting at the root.
func (m *Model) Walk(fn WalkFunc) error {
	return walkNode(m.root, fn)
}

func walkNode(n *Node, fn WalkFunc) error {
	if err := fn(n.Path(), n); err != nil {
		if errors.Is(err, SkipChildren) {
			return nil
		}
		return err
	}
	for _, c := range n.children {
		if err := walkNode(c, fn); err != nil {
			return err
		}
	}
	return nil
}
