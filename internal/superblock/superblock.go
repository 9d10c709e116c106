// Package superblock reads and writes the HDF5 file signature block.
package superblock

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/robert-malhotra/go-emd/internal/binary"
)

// Signature opens every HDF5 superblock.
var Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

// searchOffsets are the positions a superblock may start at.
var searchOffsets = []int64{0, 512, 1024, 2048, 4096, 8192}

var (
	ErrNotHDF5            = errors.New("not an HDF5 file")
	ErrUnsupportedVersion = errors.New("unsupported superblock version")
	ErrChecksum           = errors.New("superblock checksum mismatch")
)

// Superblock holds the fields needed to walk a file.
type Superblock struct {
	Version     uint8
	OffsetSize  uint8
	LengthSize  uint8
	BaseAddress uint64
	EOFAddress  uint64
	RootAddress uint64 // root group object header
	Offset      int64  // file position of the signature
}

// Config returns the reader configuration for the file's field sizes.
func (sb *Superblock) Config() binary.Config {
	cfg := binary.DefaultConfig()
	cfg.OffsetSize = int(sb.OffsetSize)
	cfg.LengthSize = int(sb.LengthSize)
	return cfg
}

// Read finds and decodes the superblock of src.
func Read(src io.ReaderAt) (*Superblock, error) {
	sig := make([]byte, len(Signature)+1)
	for _, off := range searchOffsets {
		if n, _ := src.ReadAt(sig, off); n < len(sig) || !bytes.Equal(sig[:8], Signature) {
			continue
		}
		sb := &Superblock{Version: sig[8], Offset: off}
		var err error
		switch sb.Version {
		case 0, 1:
			err = sb.readV0(src)
		case 2, 3:
			err = sb.readV2(src)
		default:
			err = fmt.Errorf("%w: %d", ErrUnsupportedVersion, sb.Version)
		}
		if err != nil {
			return nil, err
		}
		return sb, nil
	}
	return nil, ErrNotHDF5
}

func (sb *Superblock) sizes(r *binary.Reader, at int64) error {
	o, err := r.At(at).ReadUint8()
	if err != nil {
		return err
	}
	l, err := r.At(at + 1).ReadUint8()
	if err != nil {
		return err
	}
	if !validSize(o) || !validSize(l) {
		return fmt.Errorf("superblock: offset size %d, length size %d", o, l)
	}
	sb.OffsetSize, sb.LengthSize = o, l
	return nil
}

func validSize(n uint8) bool { return n == 2 || n == 4 || n == 8 }

/*
Versions 0 and 1: signature(8) version(1) free-space version(1) root entry
version(1) reserved(1) shared header version(1) offset size(1) length
size(1) reserved(1) leaf K(2) internal K(2) flags(4) [v1: storage K(2)
reserved(2)] base, free-space, EOF and driver addresses, then the root
symbol table entry: name offset, object header address.
*/
func (sb *Superblock) readV0(src io.ReaderAt) error {
	r := binary.NewReader(src, binary.DefaultConfig())
	if err := sb.sizes(r, sb.Offset+13); err != nil {
		return err
	}
	r = binary.NewReader(src, sb.Config())
	pos := sb.Offset + 24
	if sb.Version == 1 {
		pos += 4
	}
	ar := r.At(pos)
	var addrs [6]uint64
	for i := range addrs {
		v, err := ar.ReadOffset()
		if err != nil {
			return fmt.Errorf("superblock: %w", err)
		}
		addrs[i] = v
	}
	sb.BaseAddress, sb.EOFAddress, sb.RootAddress = addrs[0], addrs[2], addrs[5]
	return nil
}

/*
Versions 2 and 3: signature(8) version(1) offset size(1) length size(1)
flags(1) base, extension, EOF and root header addresses, checksum(4).
*/
func (sb *Superblock) readV2(src io.ReaderAt) error {
	r := binary.NewReader(src, binary.DefaultConfig())
	if err := sb.sizes(r, sb.Offset+9); err != nil {
		return err
	}
	r = binary.NewReader(src, sb.Config())
	body := 12 + 4*int(sb.OffsetSize)
	raw, err := r.At(sb.Offset).ReadBytes(body)
	if err != nil {
		return fmt.Errorf("superblock: %w", err)
	}
	sum, err := r.At(sb.Offset + int64(body)).ReadUint32()
	if err != nil {
		return fmt.Errorf("superblock: %w", err)
	}
	if !binary.VerifyLookup3(raw, sum) {
		return ErrChecksum
	}
	ar := r.At(sb.Offset + 12)
	sb.BaseAddress, _ = ar.ReadOffset()
	ar.Skip(int64(sb.OffsetSize))
	sb.EOFAddress, _ = ar.ReadOffset()
	sb.RootAddress, err = ar.ReadOffset()
	return err
}

// Size returns the encoded size of a version 2 superblock.
func Size(cfg binary.Config) int {
	return 12 + 4*cfg.OffsetSize + 4
}

// Encode returns a version 2 superblock with no extension.
func (sb *Superblock) Encode() ([]byte, error) {
	cfg := sb.Config()
	var buf binary.Buffer
	w := binary.NewWriter(&buf, cfg)
	w.WriteBytes(Signature)
	w.WriteUint8(2)
	w.WriteUint8(sb.OffsetSize)
	w.WriteUint8(sb.LengthSize)
	w.WriteUint8(0)
	w.WriteOffset(sb.BaseAddress)
	w.WriteOffset(w.UndefinedOffset())
	w.WriteOffset(sb.EOFAddress)
	w.WriteOffset(sb.RootAddress)
	w.WriteUint32(binary.Lookup3(buf.Bytes()))
	if err := w.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
