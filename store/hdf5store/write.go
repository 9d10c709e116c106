package hdf5store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/robert-malhotra/go-emd/internal/alloc"
	"github.com/robert-malhotra/go-emd/internal/binary"
	"github.com/robert-malhotra/go-emd/internal/message"
	"github.com/robert-malhotra/go-emd/internal/object"
	"github.com/robert-malhotra/go-emd/internal/superblock"
	"github.com/robert-malhotra/go-emd/store"
)

// ErrPartialMirror is returned by Close when the file held objects that
// were skipped on open; rewriting it would drop them.
var ErrPartialMirror = errors.New("container holds objects that cannot be rewritten")

// flush writes the mirror to a temporary file beside the original and
// renames it into place.
func (s *Store) flush() error {
	if s.skipped > 0 {
		return fmt.Errorf("%s: %w: %d skipped on open", s.cfg.Path, ErrPartialMirror, s.skipped)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.cfg.Path), "."+filepath.Base(s.cfg.Path)+".*")
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}
	err = s.writeTo(tmp)
	if err == nil {
		err = tmp.Chmod(0o644)
	}
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", s.cfg.Path, err)
	}
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
	if err := os.Rename(tmp.Name(), s.cfg.Path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", s.cfg.Path, err)
	}
	s.dirty = false
	return nil
}

// writeTo lays the file out in one pass: superblock, then every object
// after its children so that links can name their targets' addresses.
func (s *Store) writeTo(dst io.WriterAt) error {
	cfg := binary.DefaultConfig()
	w := binary.NewWriter(dst, cfg)
	a := alloc.New(uint64(superblock.Size(cfg)))

	root, err := s.writeObject(w, a, "/")
	if err != nil {
		return err
	}
	if err := a.Validate(); err != nil {
		return err
	}
	sb := &superblock.Superblock{
		Version:     2,
		OffsetSize:  uint8(cfg.OffsetSize),
		LengthSize:  uint8(cfg.LengthSize),
		EOFAddress:  a.EOF(),
		RootAddress: root,
	}
	raw, err := sb.Encode()
	if err != nil {
		return err
	}
	return w.At(0).WriteBytes(raw)
}

func (s *Store) writeObject(w *binary.Writer, a *alloc.Allocator, path string) (uint64, error) {
	obj := s.objects[path]
	attrs, err := s.attrMessages(path, obj, w.Config())
	if err != nil {
		return 0, err
	}

	var msgs []message.Encoder
	switch obj.typ {
	case store.TypeGroup:
		links := make([]*message.Link, 0, len(obj.children))
		for _, name := range obj.children {
			addr, err := s.writeObject(w, a, store.JoinPath(path, name))
			if err != nil {
				return 0, err
			}
			links = append(links, message.NewHardLink(name, addr))
		}
		msgs = object.GroupMessages(links, attrs)

	case store.TypeDataset:
		lay, err := s.writePayload(w, a, path, obj)
		if err != nil {
			return 0, err
		}
		space := message.NewScalarDataspace()
		if len(obj.info.Shape) > 0 {
			space = message.NewDataspace(obj.info.Shape...)
		}
		dt := datatypeFor(obj.info.Kind, obj.info.ElemSize)
		msgs = object.DatasetMessages(space, dt, lay, attrs)

	case store.TypeNamedType:
		msgs = []message.Encoder{obj.dt}
		for _, attr := range attrs {
			msgs = append(msgs, attr)
		}
	}

	hdr, err := object.Encode(msgs, w.Config())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	addr := a.Alloc(uint64(len(hdr)), path)
	if err := w.At(int64(addr)).WriteBytes(hdr); err != nil {
		return 0, err
	}
	return addr, nil
}

// writePayload stores a dataset's elements contiguously. Datasets still in
// the original file are copied from it.
func (s *Store) writePayload(w *binary.Writer, a *alloc.Allocator, path string, obj *node) (*message.DataLayout, error) {
	size := obj.info.Size()
	if size == 0 {
		return message.NewContiguousLayout(w.UndefinedOffset(), 0), nil
	}
	data := obj.data
	if obj.src != nil {
		data = make([]byte, size)
		if err := s.readPayload(obj, data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	addr := a.Alloc(size, path+" payload")
	if err := w.At(int64(addr)).WriteBytes(data); err != nil {
		return nil, err
	}
	return message.NewContiguousLayout(addr, size), nil
}

// attrMessages encodes an object's attributes in creation order. Values
// too large for a header message are dropped with a warning.
func (s *Store) attrMessages(path string, obj *node, cfg binary.Config) ([]*message.Attribute, error) {
	out := make([]*message.Attribute, 0, len(obj.attrKeys))
	for _, name := range obj.attrKeys {
		m, err := attrMessage(name, obj.attrs[name])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		raw, err := message.Bytes(m, cfg)
		if err != nil {
			return nil, fmt.Errorf("%s@%s: %w", path, name, err)
		}
		if len(raw) > object.MaxMessageSize {
			s.log.Warn("dropping oversized attribute", "path", path, "name", name, "bytes", len(raw))
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
