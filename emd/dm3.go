package emd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"

	"github.com/robert-malhotra/go-emd/dtype"
	"github.com/robert-malhotra/go-emd/internal/binary"
)

// DM3 tag stream section codes.
const (
	dm3SectionEnd = 0
	dm3SectionDir = 20
	dm3SectionTag = 21
)

// DM3 info array type codes beyond the primitives.
const (
	dm3TypeStruct = 0x0f
	dm3TypeArray  = 0x14
)

const (
	// dm3ArrayDisplayLimit is the largest array rendered element by element.
	dm3ArrayDisplayLimit = 4
	// dm3MaxInfoLength bounds the info array of a single tag.
	dm3MaxInfoLength = 1 << 16

	dm3DataTag      = "Data"
	dm3ImageRefPath = "/dm3/ImageSourceList/1/ImageRef"
)

func dm3Kind(code int32) dtype.Kind {
	switch code {
	case 2:
		return dtype.Int16
	case 3:
		return dtype.Int32
	case 4:
		return dtype.Uint16
	case 5:
		return dtype.Uint32
	case 6:
		return dtype.Float32
	case 7:
		return dtype.Float64
	case 8:
		return dtype.Bool
	case 9, 10:
		return dtype.Int8
	}
	return dtype.Invalid
}

func dm3Error(code Code, format string, args ...any) error {
	return newError(code, "dm3", "", fmt.Errorf(format, args...))
}

func dm3ReadError(err error) error {
	return newError(CodeOf(err), "dm3", "", err)
}

// dm3Dir is one open directory on the parser stack.
type dm3Dir struct {
	node      *Node
	remaining int32
	unnamed   int
}

// dm3Pixels is a pixel block read from a "Data" tag, kept until the image
// reference has been resolved.
type dm3Pixels struct {
	tag  *Node
	kind dtype.Kind
	data []byte
}

// dm3Decoder walks a DM3 tag stream. Directory nesting is tracked on an
// explicit stack, so depth is bounded by heap rather than call depth.
type dm3Decoder struct {
	m       *Model
	r       *binary.Reader
	rep     *Report
	pending []dm3Pixels
}

// decodeDM3 reads a DM3 file into /dm3 and materializes the referenced
// image as /data/dm3_file.
func (m *Model) decodeDM3(src io.ReaderAt, rep *Report) error {
	r := binary.NewReader(src, binary.BigEndianConfig())

	var hdr [3]int32
	for i := range hdr {
		v, err := r.ReadInt32()
		if err != nil {
			return dm3ReadError(err)
		}
		hdr[i] = v
	}
	if hdr[0] != 3 {
		return dm3Error(CodeInvalidDataFormat, "version %d, want 3", hdr[0])
	}
	if hdr[2] != 1 {
		return dm3Error(CodeInvalidDataFormat, "byte order %d, want 1", hdr[2])
	}
	r.Skip(2) // sorted, open
	count, err := r.ReadInt32()
	if err != nil {
		return dm3ReadError(err)
	}

	if m.root.ChildByName("dm3") != nil {
		return dm3Error(CodeInvalidOperation, "model already holds a dm3 tree")
	}
	// The tree is built detached and only attached once the walk succeeds.
	root, err := NewNode("dm3", KindGroup)
	if err != nil {
		return err
	}

	d := &dm3Decoder{m: m, r: r, rep: rep}
	if err := d.walk(root, count); err != nil {
		return err
	}
	if err := m.root.AddChild(root); err != nil {
		return err
	}
	root.SetStatus(Dirty, false)
	if err := d.materialize(); err != nil {
		_ = m.root.RemoveChild(root)
		return err
	}
	return nil
}

func (d *dm3Decoder) walk(root *Node, count int32) error {
	cur := dm3Dir{node: root, remaining: count, unnamed: 1}
	var stack []dm3Dir
	ended := false

	for {
		section, err := d.r.ReadInt8()
		if errors.Is(err, io.ErrUnexpectedEOF) {
			d.rep.warn(d.m.opts.logger, "ran out of tags before end of stream", "offset", d.r.Pos())
			break
		}
		if err != nil {
			return dm3ReadError(err)
		}
		if section == dm3SectionEnd {
			ended = true
			break
		}

		n, err := d.r.ReadUint16()
		if err != nil {
			return dm3ReadError(err)
		}
		raw, err := d.r.ReadBytes(int(n))
		if err != nil {
			return dm3ReadError(err)
		}
		name := string(raw)
		if n == 0 {
			name = strconv.Itoa(cur.unnamed)
			cur.unnamed++
		}

		switch section {
		case dm3SectionDir:
			d.r.Skip(2) // sorted, open
			count, err := d.r.ReadInt32()
			if err != nil {
				return dm3ReadError(err)
			}
			g, err := d.m.AddNode(name, KindGroup, cur.node)
			if err != nil {
				return err
			}
			stack = append(stack, cur)
			cur = dm3Dir{node: g, remaining: count, unnamed: 1}

		case dm3SectionTag:
			cur.remaining--
			a, err := d.m.AddNode(name, KindAttribute, cur.node)
			if err != nil {
				return err
			}
			v, err := d.tag(a, name)
			if err != nil {
				return err
			}
			a.Attribute().kind, a.Attribute().value = v.Kind(), v

		default:
			return dm3Error(CodeInvalidDataFormat, "unknown section type %d before offset %d", section, d.r.Pos())
		}

		for cur.remaining <= 0 && len(stack) > 0 {
			cur = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			cur.remaining--
		}
	}

	if ended && (len(stack) > 0 || cur.remaining > 0) {
		d.rep.warn(d.m.opts.logger, "end of stream with tags remaining", "depth", len(stack), "remaining", cur.remaining)
	}
	return nil
}

// tag decodes one leaf tag's payload.
func (d *dm3Decoder) tag(attr *Node, name string) (dtype.Value, error) {
	delim, err := d.r.ReadBytes(4)
	if err != nil {
		return dtype.Value{}, dm3ReadError(err)
	}
	if string(delim) != "%%%%" {
		return dtype.Value{}, dm3Error(CodeInvalidDataFormat, "tag %q: missing delimiter", name)
	}
	n, err := d.r.ReadInt32()
	if err != nil {
		return dtype.Value{}, dm3ReadError(err)
	}
	if n < 1 || n > dm3MaxInfoLength {
		return dtype.Value{}, dm3Error(CodeInvalidDataFormat, "tag %q: info length %d", name, n)
	}
	if err := d.r.Require(4 * int64(n)); err != nil {
		return dtype.Value{}, dm3ReadError(err)
	}
	info := make([]int32, n)
	for i := range info {
		if info[i], err = d.r.ReadInt32(); err != nil {
			return dtype.Value{}, dm3ReadError(err)
		}
	}

	if len(info) == 1 {
		k := dm3Kind(info[0])
		if k == dtype.Invalid {
			return dtype.Value{}, dm3Error(CodeInvalidDataType, "tag %q: type %d", name, info[0])
		}
		b, err := d.payload(k, 1)
		if err != nil {
			return dtype.Value{}, err
		}
		return b.ValueAt(0), nil
	}

	switch info[0] {
	case dm3TypeStruct:
		return d.structValue(name, info)
	case dm3TypeArray:
		return d.arrayValue(attr, name, info)
	}
	return dtype.Value{}, dm3Error(CodeInvalidDataType, "tag %q: type %d", name, info[0])
}

// payload reads n little-endian elements of kind k.
func (d *dm3Decoder) payload(k dtype.Kind, n int) (dtype.Buffer, error) {
	raw, err := d.r.ReadBytes(n * k.Width())
	if err != nil {
		return dtype.Buffer{}, dm3ReadError(err)
	}
	if raw == nil {
		raw = []byte{}
	}
	return dtype.NewBuffer(k, k.Width(), raw)
}

// structValue joins the members of a struct tag into one string.
// Info layout: struct, name length, member count, then (name, type) pairs.
func (d *dm3Decoder) structValue(name string, info []int32) (dtype.Value, error) {
	if len(info) < 3 || info[2] < 0 || len(info) < 3+2*int(info[2]) {
		return dtype.Value{}, dm3Error(CodeInvalidDataFormat, "tag %q: short struct info", name)
	}
	parts := make([]string, 0, info[2])
	for i := 1; i <= int(info[2]); i++ {
		k := dm3Kind(info[2+2*i])
		if k == dtype.Invalid {
			return dtype.Value{}, dm3Error(CodeInvalidDataType, "tag %q: struct member type %d", name, info[2+2*i])
		}
		b, err := d.payload(k, 1)
		if err != nil {
			return dtype.Value{}, err
		}
		parts = append(parts, b.ValueAt(0).String())
	}
	return dtype.Scalar(strings.Join(parts, " ")), nil
}

// arrayValue handles an array tag. Info layout: array, element type,
// count for primitive elements; array, struct, name length, member count,
// (name, type) pairs, count for struct elements.
func (d *dm3Decoder) arrayValue(attr *Node, name string, info []int32) (dtype.Value, error) {
	if info[1] == dm3TypeStruct {
		if len(info) < 4 || info[3] < 0 || len(info) < 5+2*int(info[3]) {
			return dtype.Value{}, dm3Error(CodeInvalidDataFormat, "tag %q: short struct array info", name)
		}
		depth := 0
		for i := 1; i <= int(info[3]); i++ {
			w := dm3Kind(info[3+2*i]).Width()
			if w == 0 {
				return dtype.Value{}, dm3Error(CodeInvalidDataType, "tag %q: struct member type %d", name, info[3+2*i])
			}
			depth += w
		}
		count := info[4+2*int(info[3])]
		if count < 0 {
			return dtype.Value{}, dm3Error(CodeInvalidDataFormat, "tag %q: array length %d", name, count)
		}
		d.r.Skip(int64(depth) * int64(count))
		return dtype.Scalar(""), nil
	}

	if len(info) < 3 {
		return dtype.Value{}, dm3Error(CodeInvalidDataFormat, "tag %q: short array info", name)
	}
	k := dm3Kind(info[1])
	if k == dtype.Invalid {
		return dtype.Value{}, dm3Error(CodeInvalidDataType, "tag %q: array element type %d", name, info[1])
	}
	count := int(info[2])
	if count < 0 {
		return dtype.Value{}, dm3Error(CodeInvalidDataFormat, "tag %q: array length %d", name, count)
	}

	switch {
	case name == dm3DataTag:
		size := uint64(count) * uint64(k.Width())
		if err := d.m.checkCapacity("dm3", size); err != nil {
			return dtype.Value{}, err
		}
		raw, err := d.r.ReadBytes(int(size))
		if err != nil {
			return dtype.Value{}, dm3ReadError(err)
		}
		d.pending = append(d.pending, dm3Pixels{tag: attr, kind: k, data: raw})
		return dtype.Scalar("data array"), nil

	case k == dtype.Uint16 && (name == "Name" || name == "Units"):
		raw, err := d.r.ReadBytes(2 * count)
		if err != nil {
			return dtype.Value{}, dm3ReadError(err)
		}
		text, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(raw)
		if err != nil {
			return dtype.Value{}, dm3Error(CodeInvalidDataFormat, "tag %q: %v", name, err)
		}
		return dtype.Scalar(string(bytes.TrimRight(text, "\x00"))), nil

	case count > dm3ArrayDisplayLimit:
		d.r.Skip(int64(count) * int64(k.Width()))
		return dtype.Scalar(strconv.Itoa(count) + " element array"), nil
	}

	b, err := d.payload(k, count)
	if err != nil {
		return dtype.Value{}, err
	}
	parts := make([]string, count)
	for i := range parts {
		parts[i] = b.ValueAt(i).String()
	}
	return dtype.Scalar(strings.Join(parts, " ")), nil
}

// materialize resolves the image reference and builds /data/dm3_file from
// the matching pixel block. Other pixel blocks are discarded.
func (d *dm3Decoder) materialize() error {
	if len(d.pending) == 0 {
		return nil
	}
	log := d.m.opts.logger

	ref := d.m.Path(dm3ImageRefPath)
	if ref == nil || ref.Attribute() == nil {
		d.rep.warn(log, "image data without an image reference", "blocks", len(d.pending))
		return nil
	}
	idx, ok := ref.Attribute().Value().Int64()
	if !ok {
		d.rep.warn(log, "image reference is not an integer", "value", ref.Display())
		return nil
	}
	imagePath := fmt.Sprintf("/dm3/ImageList/%d/ImageData", idx+1)
	image := d.m.Path(imagePath)
	if image == nil {
		d.rep.warn(log, "referenced image is missing", "path", imagePath)
		return nil
	}
	dimsNode := image.ChildByName("Dimensions")
	if dimsNode == nil {
		d.rep.warn(log, "referenced image has no dimensions", "path", imagePath)
		return nil
	}

	var block *dm3Pixels
	for i := range d.pending {
		if d.pending[i].tag.parent == image {
			block = &d.pending[i]
			break
		}
	}
	if block == nil {
		d.rep.warn(log, "referenced image has no pixel data", "path", imagePath)
		return nil
	}

	shape := make([]uint64, 0, dimsNode.NumChildren())
	axes := make([]axis, 0, dimsNode.NumChildren())
	total := uint64(1)
	for i, c := range dimsNode.children {
		var n int64
		ok := false
		if a := c.Attribute(); a != nil {
			n, ok = a.Value().Int64()
		}
		if !ok || n <= 0 {
			return dm3Error(CodeInvalidDataFormat, "%s/Dimensions/%s: bad length %q", imagePath, c.name, c.Display())
		}
		shape = append(shape, uint64(n))
		total *= uint64(n)

		units := "[px]"
		if u := image.ChildAtPath(fmt.Sprintf("Calibrations/Dimension/%d/Units", i+1)); u != nil && u.Attribute() != nil {
			units = u.Attribute().Value().String()
		}
		axes = append(axes, axis{name: fmt.Sprintf("dim%d", i+1), units: units, length: uint64(n)})
	}
	if len(shape) == 0 {
		d.rep.warn(log, "referenced image has no dimensions", "path", imagePath)
		return nil
	}

	need := total * uint64(block.kind.Width())
	if uint64(len(block.data)) < need {
		return dm3Error(CodeInvalidDataFormat, "pixel block holds %d bytes, dimensions need %d", len(block.data), need)
	}
	buf, err := dtype.NewBuffer(block.kind, block.kind.Width(), block.data[:need])
	if err != nil {
		return dm3ReadError(err)
	}
	ds, err := NewDataset(NewDataSpace(shape...), buf)
	if err != nil {
		return dm3ReadError(err)
	}
	if _, err := d.m.attachDataGroup("/data", "dm3_file", ds, axes, true); err != nil {
		return dm3ReadError(err)
	}
	d.pending = nil
	return nil
}
