// Package badgerstore implements store.Store on BadgerDB. An .emd container
// is a badger database directory.
//
// Groups, datasets and attributes are stored as YAML records under
// path-derived keys. Dataset payloads pass through the filter pipeline
// (shuffle, deflate, Fletcher-32 by default) and the pipeline used is
// recorded in the dataset's metadata.
package badgerstore

import (
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-emd/dtype"
	"github.com/robert-malhotra/go-emd/internal/filter"
	"github.com/robert-malhotra/go-emd/store"
)

// Store is a badger-backed store.Store.
type Store struct {
	db     *badger.DB
	seq    *badger.Sequence
	cfg    Config
	closed bool
}

var _ store.Store = (*Store)(nil)

// Open opens or creates a store.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	seq, err := db.GetSequence([]byte(sequenceKey), 64)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("child sequence: %w", err)
	}

	s := &Store{db: db, seq: seq, cfg: cfg}
	if err := s.ensureRoot(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// OpenPath opens a persistent store with DefaultConfig. It satisfies
// store.Opener.
func OpenPath(path string) (store.Store, error) {
	cfg := DefaultConfig()
	cfg.Path = path
	return Open(cfg)
}

func (s *Store) ensureRoot() error {
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(objectKey("/"))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return putYAML(txn, objectKey("/"), objectRecord{Type: store.TypeGroup})
	})
}

func putYAML(txn *badger.Txn, key []byte, v any) error {
	raw, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, raw)
}

func getYAML(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return yaml.Unmarshal(val, v)
	})
}

// stat reads the object record at a cleaned path.
func stat(txn *badger.Txn, path string) (store.ObjectType, error) {
	var rec objectRecord
	err := getYAML(txn, objectKey(path), &rec)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, fmt.Errorf("%s: %w", path, store.ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	return rec.Type, nil
}

func (s *Store) view(fn func(txn *badger.Txn) error) error {
	if s.closed {
		return store.ErrClosed
	}
	return s.db.View(fn)
}

func (s *Store) update(fn func(txn *badger.Txn) error) error {
	if s.closed {
		return store.ErrClosed
	}
	return s.db.Update(fn)
}

// Children implements store.Store.
func (s *Store) Children(path string) ([]store.Entry, error) {
	path = store.CleanPath(path)
	var entries []store.Entry
	err := s.view(func(txn *badger.Txn) error {
		typ, err := stat(txn, path)
		if err != nil {
			return err
		}
		if typ != store.TypeGroup {
			return fmt.Errorf("%s: %w", path, store.ErrTypeMismatch)
		}

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := childPrefix(path)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec childRecord
			if err := it.Item().Value(func(val []byte) error {
				return yaml.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			entries = append(entries, store.Entry{Name: rec.Name, Type: rec.Type})
		}
		return nil
	})
	return entries, err
}

// Attrs implements store.Store. Names are returned in key order.
func (s *Store) Attrs(path string) ([]string, error) {
	path = store.CleanPath(path)
	var names []string
	err := s.view(func(txn *badger.Txn) error {
		if _, err := stat(txn, path); err != nil {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := attrPrefix(path)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			names = append(names, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	return names, err
}

// ReadAttr implements store.Store.
func (s *Store) ReadAttr(path, name string) (dtype.Value, error) {
	path = store.CleanPath(path)
	var v dtype.Value
	err := s.view(func(txn *badger.Txn) error {
		item, err := txn.Get(attrKey(path, name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%s@%s: %w", path, name, store.ErrNotFound)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			v, err = decodeAttr(val)
			return err
		})
	})
	return v, err
}

// WriteAttr implements store.Store.
func (s *Store) WriteAttr(path, name string, v dtype.Value) error {
	path = store.CleanPath(path)
	raw, err := encodeAttr(v)
	if err != nil {
		return fmt.Errorf("%s@%s: %w", path, name, err)
	}
	return s.update(func(txn *badger.Txn) error {
		if _, err := stat(txn, path); err != nil {
			return err
		}
		return txn.Set(attrKey(path, name), raw)
	})
}

// create links a new object under its parent inside txn. It reports
// whether the object already existed as a group (only meaningful for groups).
func (s *Store) create(txn *badger.Txn, path string, typ store.ObjectType) (bool, error) {
	if path == "/" {
		return false, fmt.Errorf("%s: %w", path, store.ErrInvalidPath)
	}
	parent, name := store.ParentPath(path)
	ptyp, err := stat(txn, parent)
	if err != nil {
		return false, err
	}
	if ptyp != store.TypeGroup {
		return false, fmt.Errorf("%s: %w", parent, store.ErrTypeMismatch)
	}

	existing, err := stat(txn, path)
	switch {
	case err == nil && existing == store.TypeGroup && typ == store.TypeGroup:
		return true, nil
	case err == nil:
		return false, fmt.Errorf("%s: %w", path, store.ErrExists)
	case !errors.Is(err, store.ErrNotFound):
		return false, err
	}

	n, err := s.seq.Next()
	if err != nil {
		return false, fmt.Errorf("child sequence: %w", err)
	}
	if err := putYAML(txn, childKey(parent, n), childRecord{Name: name, Type: typ}); err != nil {
		return false, err
	}
	return false, putYAML(txn, objectKey(path), objectRecord{Type: typ})
}

// CreateGroup implements store.Store.
func (s *Store) CreateGroup(path string) error {
	path = store.CleanPath(path)
	return s.update(func(txn *badger.Txn) error {
		_, err := s.create(txn, path, store.TypeGroup)
		return err
	})
}

func (s *Store) pipeline(elemSize int) []filter.Info {
	var chain []filter.Info
	if s.cfg.Shuffle && elemSize > 1 {
		chain = append(chain, filter.Info{ID: filter.IDShuffle, ClientData: []uint32{uint32(elemSize)}})
	}
	if s.cfg.CompressionLevel > 0 {
		chain = append(chain, filter.Info{ID: filter.IDDeflate, ClientData: []uint32{uint32(s.cfg.CompressionLevel)}})
	}
	if s.cfg.Checksum {
		chain = append(chain, filter.Info{ID: filter.IDFletcher32})
	}
	return chain
}

// CreateDataset implements store.Store.
func (s *Store) CreateDataset(path string, info store.DatasetInfo, data []byte) error {
	path = store.CleanPath(path)
	if uint64(len(data)) != info.Size() {
		return fmt.Errorf("%s: %w: have %d bytes, need %d", path, store.ErrSizeMismatch, len(data), info.Size())
	}

	chain := s.pipeline(info.ElemSize)
	p, err := filter.NewPipeline(chain)
	if err != nil {
		return err
	}
	blob, err := p.Encode(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	return s.update(func(txn *badger.Txn) error {
		if _, err := s.create(txn, path, store.TypeDataset); err != nil {
			return err
		}
		meta := metaRecord{
			Shape:    info.Shape,
			Kind:     info.Kind.String(),
			ElemSize: info.ElemSize,
			Filters:  chain,
		}
		if err := putYAML(txn, metaKey(path), meta); err != nil {
			return err
		}
		return txn.Set(dataKey(path), blob)
	})
}

func readMeta(txn *badger.Txn, path string) (metaRecord, error) {
	typ, err := stat(txn, path)
	if err != nil {
		return metaRecord{}, err
	}
	if typ != store.TypeDataset {
		return metaRecord{}, fmt.Errorf("%s: %w", path, store.ErrTypeMismatch)
	}
	var meta metaRecord
	if err := getYAML(txn, metaKey(path), &meta); err != nil {
		return metaRecord{}, fmt.Errorf("%s: read meta: %w", path, err)
	}
	return meta, nil
}

// DatasetInfo implements store.Store.
func (s *Store) DatasetInfo(path string) (store.DatasetInfo, error) {
	path = store.CleanPath(path)
	var info store.DatasetInfo
	err := s.view(func(txn *badger.Txn) error {
		meta, err := readMeta(txn, path)
		if err != nil {
			return err
		}
		info, err = meta.info()
		return err
	})
	return info, err
}

// ReadDataset implements store.Store.
func (s *Store) ReadDataset(path string, dst []byte) error {
	path = store.CleanPath(path)
	return s.view(func(txn *badger.Txn) error {
		meta, err := readMeta(txn, path)
		if err != nil {
			return err
		}
		info, err := meta.info()
		if err != nil {
			return err
		}
		if uint64(len(dst)) != info.Size() {
			return fmt.Errorf("%s: %w: have %d bytes, need %d", path, store.ErrSizeMismatch, len(dst), info.Size())
		}

		p, err := filter.NewPipeline(meta.Filters)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		item, err := txn.Get(dataKey(path))
		if err != nil {
			return fmt.Errorf("%s: read data: %w", path, err)
		}
		blob, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		raw, err := p.Decode(blob)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if len(raw) != len(dst) {
			return fmt.Errorf("%s: %w: decoded %d bytes, need %d", path, store.ErrSizeMismatch, len(raw), len(dst))
		}
		copy(dst, raw)
		return nil
	})
}

// Stat implements store.Store.
func (s *Store) Stat(path string) (store.ObjectType, error) {
	path = store.CleanPath(path)
	var typ store.ObjectType
	err := s.view(func(txn *badger.Txn) error {
		var err error
		typ, err = stat(txn, path)
		return err
	})
	return typ, err
}

// Close releases the sequence lease and closes the database.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	if s.seq != nil {
		errs = append(errs, s.seq.Release())
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}
