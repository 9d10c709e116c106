package filter

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Deflate compresses blobs with zlib.
type Deflate struct {
	level int
}

// NewDeflate reads the compression level from clientData[0]. Missing or
// out-of-range levels fall back to 6.
func NewDeflate(clientData []uint32) *Deflate {
	d := &Deflate{level: 6}
	if len(clientData) > 0 && clientData[0] <= zlib.BestCompression {
		d.level = int(clientData[0])
	}
	return d
}

func (*Deflate) ID() uint16 { return IDDeflate }

func (d *Deflate) Encode(in []byte) ([]byte, error) {
	var out bytes.Buffer
	zw, err := zlib.NewWriterLevel(&out, d.level)
	if err != nil {
		return nil, err
	}
	_, werr := zw.Write(in)
	if cerr := zw.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return nil, fmt.Errorf("deflate: %w", werr)
	}
	return out.Bytes(), nil
}

func (*Deflate) Decode(in []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	return out, nil
}
