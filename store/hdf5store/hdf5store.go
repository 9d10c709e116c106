// Package hdf5store implements store.Store on HDF5 files, the native .emd
// container format.
//
// Opening a file parses its group tree and attributes into memory; dataset
// payloads stay in the file until read. Changes are kept in memory and
// written on Close as a new file (version 2 superblock and object headers,
// contiguous datasets) that replaces the original.
package hdf5store

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"
	"sync"

	"github.com/robert-malhotra/go-emd/dtype"
	"github.com/robert-malhotra/go-emd/internal/binary"
	"github.com/robert-malhotra/go-emd/internal/layout"
	"github.com/robert-malhotra/go-emd/internal/message"
	"github.com/robert-malhotra/go-emd/internal/superblock"
	"github.com/robert-malhotra/go-emd/store"
)

type node struct {
	typ      store.ObjectType
	children []string // creation order
	attrs    map[string]dtype.Value
	attrKeys []string
	info     store.DatasetInfo

	data []byte            // set for new or eagerly decoded datasets
	src  *layout.Dataset   // set for datasets still in the file
	dt   *message.Datatype // stored type of src, or of a named type
}

func newNode(typ store.ObjectType) *node {
	return &node{typ: typ, attrs: map[string]dtype.Value{}}
}

func (o *node) setAttr(name string, v dtype.Value) {
	if _, ok := o.attrs[name]; !ok {
		o.attrKeys = append(o.attrKeys, name)
	}
	o.attrs[name] = v
}

// Store is an HDF5 file mirrored in memory.
type Store struct {
	mu      sync.RWMutex
	cfg     Config
	log     *slog.Logger
	file    *os.File       // nil for a new container
	r       *binary.Reader // reads the open file
	objects map[string]*node
	skipped int // objects the mirror could not hold
	dirty   bool
	closed  bool
}

var _ store.Store = (*Store)(nil)

// Open opens cfg.Path, or starts an empty container when it does not exist.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("path is required")
	}
	s := &Store{cfg: cfg, log: cfg.Logger, objects: map[string]*node{}}
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}

	f, err := os.Open(cfg.Path)
	if errors.Is(err, os.ErrNotExist) {
		s.objects["/"] = newNode(store.TypeGroup)
		s.dirty = true
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Path, err)
	}
	if err := s.load(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("read %s: %w", cfg.Path, err)
	}
	s.file = f
	return s, nil
}

// OpenPath opens a file with DefaultConfig. It satisfies store.Opener.
func OpenPath(path string) (store.Store, error) {
	cfg := DefaultConfig()
	cfg.Path = path
	return Open(cfg)
}

func (s *Store) load(f *os.File) error {
	sb, err := superblock.Read(f)
	if err != nil {
		return err
	}
	var src io.ReaderAt = f
	if sb.BaseAddress != 0 {
		src = io.NewSectionReader(f, int64(sb.BaseAddress), math.MaxInt64-int64(sb.BaseAddress))
	}
	s.r = binary.NewReader(src, sb.Config())
	return newLoader(s).run(sb.RootAddress)
}

func (s *Store) lookup(path string) (*node, error) {
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

// WriteAttr implements store.Store. Group and dataset attributes are both
// written back on Close.
func (s *Store) WriteAttr(path, name string, v dtype.Value) error {
	if !v.IsValid() {
		return fmt.Errorf("%s@%s: attribute holds no value", path, name)
	}
	if _, err := valueBuffer(v); err != nil {
		return fmt.Errorf("%s@%s: %w", path, name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	obj, err := s.lookup(path)
	if err != nil {
		return err
	}
	obj.setAttr(name, v)
	s.dirty = true
	return nil
}

func (s *Store) create(path string, obj *node) error {
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
	s.dirty = true
	return nil
}

// CreateGroup implements store.Store.
func (s *Store) CreateGroup(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.create(path, newNode(store.TypeGroup))
}

// CreateDataset implements store.Store.
func (s *Store) CreateDataset(path string, info store.DatasetInfo, data []byte) error {
	if uint64(len(data)) != info.Size() {
		return fmt.Errorf("%s: %w: have %d bytes, need %d", path, store.ErrSizeMismatch, len(data), info.Size())
	}
	if !info.Kind.Valid() {
		return fmt.Errorf("%s: %w", path, dtype.ErrInvalidKind)
	}
	if info.Kind != dtype.String && info.ElemSize != info.Kind.Width() {
		return fmt.Errorf("%s: %w: %s elements of %d bytes", path, dtype.ErrWidthMismatch, info.Kind, info.ElemSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	obj := newNode(store.TypeDataset)
	obj.info = info
	obj.info.Shape = slices.Clone(info.Shape)
	obj.data = bytes.Clone(data)
	return s.create(path, obj)
}

func (s *Store) dataset(path string) (*node, error) {
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
	if uint64(len(dst)) != obj.info.Size() {
		return fmt.Errorf("%s: %w: have %d bytes, need %d", path, store.ErrSizeMismatch, len(dst), obj.info.Size())
	}
	if err := s.readPayload(obj, dst); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func (s *Store) readPayload(obj *node, dst []byte) error {
	if obj.src == nil {
		copy(dst, obj.data)
		return nil
	}
	if err := layout.Read(s.r, obj.src, dst); err != nil {
		return err
	}
	normalize(obj.dt, obj.info.ElemSize, dst)
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

// Close implements store.Store. Pending changes are written unless the
// store is read-only. Closing twice is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.dirty && !s.cfg.ReadOnly {
		err = s.flush()
	}
	if s.file != nil {
		err = errors.Join(err, s.file.Close())
	}
	s.objects = nil
	return err
}
