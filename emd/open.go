package emd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/robert-malhotra/go-emd/dtype"
)

// Report collects recoverable anomalies found while decoding a file.
type Report struct {
	Format   string
	Warnings []string
}

func (r *Report) warn(l *slog.Logger, msg string, args ...any) {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	r.Warnings = append(r.Warnings, b.String())
	l.Warn(msg, append([]any{"format", r.Format}, args...)...)
}

// OpenFile populates the model from the file at path, choosing a decoder
// by extension: .ser, .dm3, .tif/.tiff or .emd. The model's data group
// registry is rebuilt on success.
func (m *Model) OpenFile(path string) (rep *Report, err error) {
	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	rep = &Report{Format: format}

	start := time.Now()
	defer func() {
		if format != "" {
			m.opts.recorder.ObserveDecode(format, time.Since(start), err)
		}
	}()

	switch format {
	case "ser", "dm3", "tif", "tiff":
	case "emd":
		if _, err := os.Stat(path); err != nil {
			return rep, newError(CodeFileOpenFailed, format, path, err)
		}
		st, err := m.opts.opener(path)
		if err != nil {
			return rep, newError(CodeFileOpenFailed, format, path, err)
		}
		defer st.Close()
		m.SetFilePath(path)
		return rep, m.Open(st)
	default:
		return rep, newError(CodeUnrecognizedFileType, "open", path, nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return rep, newError(CodeFileOpenFailed, format, path, err)
	}
	defer f.Close()

	switch format {
	case "ser":
		err = m.decodeSER(f, rep)
	case "dm3":
		err = m.decodeDM3(f, rep)
	default:
		err = m.decodeTIFF(f)
	}
	if err != nil {
		m.opts.logger.Error("decode failed", "format", format, "path", path, "error", err)
		if e, ok := err.(*Error); ok && e.Path == "" {
			e.Path = path
		}
		return rep, err
	}
	m.SetFilePath(path)
	m.ValidateDataGroups()
	return rep, nil
}

// checkCapacity rejects decoded payloads at or over the memory limit.
func (m *Model) checkCapacity(op string, size uint64) error {
	if size >= m.opts.memoryLimit {
		m.opts.recorder.LoadRejected()
		return newError(CodeInvalidDataFormat, op, "",
			fmt.Errorf("%w: %s", ErrCapacity, humanize.IBytes(size)))
	}
	return nil
}

// axis describes one calibration dimension of a decoded data group.
type axis struct {
	name   string
	units  string
	length uint64
}

// indexDataset returns an int32 dataset holding 1..n.
func indexDataset(n uint64) (*Dataset, error) {
	vs := make([]int32, n)
	for i := range vs {
		vs[i] = int32(i + 1)
	}
	return NewDataset(NewDataSpace(n), dtype.FromSlice(vs))
}

// attachDataGroup builds a dirty data group holding data and one index
// dimension per axis and adds it under parentPath. ascending adds a
// data_order marker of 0.
func (m *Model) attachDataGroup(parentPath, name string, data *Dataset, axes []axis, ascending bool) (*Node, error) {
	parent := m.Path(parentPath)
	if parent == nil {
		return nil, fmt.Errorf("%w: %s does not exist", ErrInvalidOperation, parentPath)
	}
	if parent.ChildByName(name) != nil {
		return nil, fmt.Errorf("%w: %s/%s already exists", ErrInvalidOperation, parentPath, name)
	}

	g := NewDataGroup(name)
	children := []*Node{NewAttribute(groupTypeAttr, dtype.Scalar(int32(1)))}
	if ascending {
		data.descending = false
		children = append(children, NewAttribute("data_order", dtype.Scalar(int32(0))))
	}
	children = append(children, NewDatasetNode("data", data))
	for i, a := range axes {
		d, err := indexDataset(a.length)
		if err != nil {
			return nil, err
		}
		dn := NewDatasetNode(fmt.Sprintf("dim%d", i+1), d)
		_ = dn.AddChild(NewAttribute("name", dtype.Scalar(a.name)))
		_ = dn.AddChild(NewAttribute("units", dtype.Scalar(a.units)))
		children = append(children, dn)
	}
	for _, c := range children {
		if err := g.AddChild(c); err != nil {
			return nil, err
		}
	}

	g.SetStatus(Dirty, true)
	if err := parent.AddChild(g); err != nil {
		return nil, err
	}
	parent.SetStatus(Dirty, false)
	return g, nil
}
