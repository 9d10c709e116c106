package badgerstore

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-emd/dtype"
	"github.com/robert-malhotra/go-emd/internal/filter"
	"github.com/robert-malhotra/go-emd/store"
)

// Key prefixes. Paths are separated from names by a NUL byte so that the
// children of "/a" never match the prefix of "/ab".
const (
	prefixObject = "o:"
	prefixChild  = "c:"
	prefixAttr   = "a:"
	prefixMeta   = "m:"
	prefixData   = "d:"

	sequenceKey = "seq:children"
)

func objectKey(path string) []byte { return []byte(prefixObject + path) }

func childPrefix(parent string) []byte { return []byte(prefixChild + parent + "\x00") }

func childKey(parent string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s\x00%016x", prefixChild, parent, seq))
}

func attrPrefix(path string) []byte { return []byte(prefixAttr + path + "\x00") }

func attrKey(path, name string) []byte { return []byte(prefixAttr + path + "\x00" + name) }

func metaKey(path string) []byte { return []byte(prefixMeta + path) }

func dataKey(path string) []byte { return []byte(prefixData + path) }

type objectRecord struct {
	Type store.ObjectType `yaml:"type"`
}

type childRecord struct {
	Name string           `yaml:"name"`
	Type store.ObjectType `yaml:"type"`
}

type attrRecord struct {
	Kind   string   `yaml:"kind"`
	Array  bool     `yaml:"array,omitempty"`
	Values []string `yaml:"values"`
}

type metaRecord struct {
	Shape    []uint64      `yaml:"shape"`
	Kind     string        `yaml:"kind"`
	ElemSize int           `yaml:"elem_size"`
	Filters  []filter.Info `yaml:"filters,omitempty"`
}

func encodeAttr(v dtype.Value) ([]byte, error) {
	if !v.IsValid() {
		return nil, fmt.Errorf("attribute holds no value")
	}
	return yaml.Marshal(attrRecord{
		Kind:   v.Kind().String(),
		Array:  v.IsArray(),
		Values: v.Strings(),
	})
}

func decodeAttr(raw []byte) (dtype.Value, error) {
	var rec attrRecord
	if err := yaml.Unmarshal(raw, &rec); err != nil {
		return dtype.Value{}, fmt.Errorf("decode attribute: %w", err)
	}
	kind, ok := dtype.KindNamed(rec.Kind)
	if !ok {
		return dtype.Value{}, fmt.Errorf("decode attribute: unknown kind %q", rec.Kind)
	}
	v := dtype.ParseValues(rec.Values, kind, rec.Array)
	if !v.IsValid() {
		return dtype.Value{}, fmt.Errorf("decode attribute: values do not parse as %s", kind)
	}
	return v, nil
}

func (m metaRecord) info() (store.DatasetInfo, error) {
	kind, ok := dtype.KindNamed(m.Kind)
	if !ok {
		return store.DatasetInfo{}, fmt.Errorf("decode dataset meta: unknown kind %q", m.Kind)
	}
	return store.DatasetInfo{Shape: m.Shape, Kind: kind, ElemSize: m.ElemSize}, nil
}
