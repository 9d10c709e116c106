// Package memstore provides an in-memory store.Store used for tests and
// scratch models.
package memstore

import (
	"bytes"
	"fmt"
	"slices"
	"sync"

	"github.com/robert-malhotra/go-emd/dtype"
	"github.com/robert-malhotra/go-emd/store"
)

type object struct {
	typ      store.ObjectType
	children []string // insertion order
	attrs    map[string]dtype.Value
	attrKeys []string
	info     store.DatasetInfo
	data     []byte
}

// Store is a mutex-guarded map of path to object.
type Store struct {
	mu      sync.RWMutex
	objects map[string]*object
	closed  bool
}

var _ store.Store = (*Store)(nil)

// New returns an empty store holding only the root group.
func New() *Store {
	return &Store{
		objects: map[string]*object{
			"/": {typ: store.TypeGroup, attrs: map[string]dtype.Value{}},
		},
	}
}

func (s *Store) lookup(path string) (*object, error) {
	if s.closed {
		return nil, store.ErrClosed
	}
	obj, ok := s.objects[store.CleanPath(path)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, store.ErrNotFound)
	}
	return obj, nil
}

// Children implements store.Store.
func (s *Store) Children(path string) ([]store.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, err := s.lookup(path)
	if err != nil {
		return nil, err
	}
	if obj.typ != store.TypeGroup {
		return nil, fmt.Errorf("%s: %w", path, store.ErrTypeMismatch)
	}
	entries := make([]store.Entry, 0, len(obj.children))
	for _, name := range obj.children {
		child := s.objects[store.JoinPath(path, name)]
		entries = append(entries, store.Entry{Name: name, Type: child.typ})
	}
	return entries, nil
}

// Attrs implements store.Store.
func (s *Store) Attrs(path string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, err := s.lookup(path)
	if err != nil {
		return nil, err
	}
	return slices.Clone(obj.attrKeys), nil
}

// ReadAttr implements store.Store.
func (s *Store) ReadAttr(path, name string) (dtype.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, err := s.lookup(path)
	if err != nil {
		return dtype.Value{}, err
	}
	v, ok := obj.attrs[name]
	if !ok {
		return dtype.Value{}, fmt.Errorf("%s@%s: %w", path, name, store.ErrNotFound)
	}
	return v, nil
}

// WriteAttr implements store.Store.
func (s *Store) WriteAttr(path, name string, v dtype.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, err := s.lookup(path)
	if err != nil {
		return err
	}
	if _, ok := obj.attrs[name]; !ok {
		obj.attrKeys = append(obj.attrKeys, name)
	}
	obj.attrs[name] = v
	return nil
}

func (s *Store) create(path string, obj *object) error {
	if s.closed {
		return store.ErrClosed
	}
	path = store.CleanPath(path)
	if path == "/" {
		return fmt.Errorf("%s: %w", path, store.ErrInvalidPath)
	}
	parentPath, name := store.ParentPath(path)
	parent, ok := s.objects[parentPath]
	if !ok {
		return fmt.Errorf("%s: %w", parentPath, store.ErrNotFound)
	}
	if parent.typ != store.TypeGroup {
		return fmt.Errorf("%s: %w", parentPath, store.ErrTypeMismatch)
	}
	if existing, ok := s.objects[path]; ok {
		if existing.typ == store.TypeGroup && obj.typ == store.TypeGroup {
			return nil
		}
		return fmt.Errorf("%s: %w", path, store.ErrExists)
	}
	parent.children = append(parent.children, name)
	s.objects[path] = obj
	return nil
}

// CreateGroup implements store.Store.
func (s *Store) CreateGroup(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.create(path, &object{typ: store.TypeGroup, attrs: map[string]dtype.Value{}})
}

// CreateNamedType records a named datatype entry. Models skip these when
// opening a store.
func (s *Store) CreateNamedType(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.create(path, &object{typ: store.TypeNamedType, attrs: map[string]dtype.Value{}})
}

// CreateDataset implements store.Store.
func (s *Store) CreateDataset(path string, info store.DatasetInfo, data []byte) error {
	if uint64(len(data)) != info.Size() {
		return fmt.Errorf("%s: %w: have %d bytes, need %d", path, store.ErrSizeMismatch, len(data), info.Size())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	info.Shape = slices.Clone(info.Shape)
	return s.create(path, &object{
		typ:   store.TypeDataset,
		attrs: map[string]dtype.Value{},
		info:  info,
		data:  bytes.Clone(data),
	})
}

func (s *Store) dataset(path string) (*object, error) {
	obj, err := s.lookup(path)
	if err != nil {
		return nil, err
	}
	if obj.typ != store.TypeDataset {
		return nil, fmt.Errorf("%s: %w", path, store.ErrTypeMismatch)
	}
	return obj, nil
}

// DatasetInfo implements store.Store.
func (s *Store) DatasetInfo(path string) (store.DatasetInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, err := s.dataset(path)
	if err != nil {
		return store.DatasetInfo{}, err
	}
	info := obj.info
	info.Shape = slices.Clone(info.Shape)
	return info, nil
}

// ReadDataset implements store.Store.
func (s *Store) ReadDataset(path string, dst []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, err := s.dataset(path)
	if err != nil {
		return err
	}
	if len(dst) != len(obj.data) {
		return fmt.Errorf("%s: %w: have %d bytes, need %d", path, store.ErrSizeMismatch, len(dst), len(obj.data))
	}
	copy(dst, obj.data)
	return nil
}

// Stat implements store.Store.
func (s *Store) Stat(path string) (store.ObjectType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, err := s.lookup(path)
	if err != nil {
		return 0, err
	}
	return obj.typ, nil
}

// Close implements store.Store. Closing twice is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// Reopen makes a closed store usable again, keeping its contents. It lets
// tests hand the same store to a model that closes what it opens.
func (s *Store) Reopen() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = false
}
