// Package object reads and writes HDF5 object headers.
package object

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-emd/internal/binary"
	"github.com/robert-malhotra/go-emd/internal/message"
)

var (
	ErrInvalidHeader    = errors.New("invalid object header")
	ErrChecksumMismatch = errors.New("object header checksum mismatch")
)

// maxContinuations bounds the continuation blocks followed for one header.
const maxContinuations = 1024

// Header is a parsed object header.
type Header struct {
	Address  uint64
	Version  uint8
	Messages []message.Message
}

// Read parses the object header at addr, following continuation blocks.
// Messages that fail to decode are kept as *message.Unknown.
func Read(r *binary.Reader, addr uint64) (*Header, error) {
	hr := r.At(int64(addr))
	sig, err := hr.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("object header at %d: %w", addr, err)
	}
	h := &Header{Address: addr}
	switch {
	case string(sig) == "OHDR":
		h.Version = 2
		err = h.readV2(r, addr)
	case sig[0] == 1:
		h.Version = 1
		err = h.readV1(r, addr)
	default:
		err = fmt.Errorf("%w: at %d", ErrInvalidHeader, addr)
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

type block struct{ off, length uint64 }

/*
Version 1 header: version(1) reserved(1) message count(2) refcount(4)
header size(4) padding(4), then messages of type(2) size(2) flags(1)
reserved(3) body. Continuation blocks hold bare messages.
*/
func (h *Header) readV1(r *binary.Reader, addr uint64) error {
	hr := r.At(int64(addr) + 2)
	count, err := hr.ReadUint16()
	if err != nil {
		return err
	}
	hr.Skip(4)
	size, err := hr.ReadUint32()
	if err != nil {
		return err
	}

	queue := []block{{addr + 16, uint64(size)}}
	for i := 0; i < len(queue) && len(h.Messages) < int(count); i++ {
		if i > maxContinuations {
			return fmt.Errorf("%w: too many continuation blocks", ErrInvalidHeader)
		}
		br := r.At(int64(queue[i].off))
		end := int64(queue[i].off + queue[i].length)
		for br.Pos()+8 <= end {
			mh, err := br.ReadBytes(8)
			if err != nil {
				return fmt.Errorf("object header at %d: %w", addr, err)
			}
			order := br.ByteOrder()
			typ, n, flags := order.Uint16(mh[0:]), order.Uint16(mh[2:]), mh[4]
			body, err := br.ReadBytes(int(n))
			if err != nil {
				return fmt.Errorf("object header at %d: %w", addr, err)
			}
			if cont := h.add(message.Type(typ), body, flags, r); cont != nil {
				queue = append(queue, block{cont.Offset, cont.Length})
			}
		}
	}
	return nil
}

/*
Version 2 header: "OHDR" version(1) flags(1) [times(16)] [phase change(4)]
chunk size(1, 2, 4 or 8) messages checksum(4). Messages are type(1) size(2)
flags(1) [creation order(2)] body. Continuation blocks start with "OCHK"
and end with a checksum.
*/
func (h *Header) readV2(r *binary.Reader, addr uint64) error {
	hr := r.At(int64(addr) + 4)
	version, err := hr.ReadUint8()
	if err != nil {
		return err
	}
	if version != 2 {
		return fmt.Errorf("%w: version %d at %d", ErrInvalidHeader, version, addr)
	}
	flags, err := hr.ReadUint8()
	if err != nil {
		return err
	}
	if flags&0x20 != 0 {
		hr.Skip(16)
	}
	if flags&0x10 != 0 {
		hr.Skip(4)
	}
	size, err := hr.ReadUintN(1 << (flags & 0x03))
	if err != nil {
		return err
	}
	start := uint64(hr.Pos())
	if err := verify(r, addr, start+size); err != nil {
		return err
	}

	tracked := flags&0x04 != 0
	queue := []block{{start, size}}
	for i := 0; i < len(queue); i++ {
		if i > maxContinuations {
			return fmt.Errorf("%w: too many continuation blocks", ErrInvalidHeader)
		}
		b := queue[i]
		if i > 0 {
			if sig, err := r.At(int64(b.off)).ReadBytes(4); err != nil || string(sig) != "OCHK" {
				return fmt.Errorf("%w: continuation block at %d", ErrInvalidHeader, b.off)
			}
			if err := verify(r, b.off, b.off+b.length-4); err != nil {
				return err
			}
			b = block{b.off + 4, b.length - 8}
		}
		br := r.At(int64(b.off))
		end := int64(b.off + b.length)
		hdrLen := int64(4)
		if tracked {
			hdrLen = 6
		}
		// Trailing space shorter than a message header is a gap.
		for br.Pos()+hdrLen <= end {
			mh, err := br.ReadBytes(int(hdrLen))
			if err != nil {
				return fmt.Errorf("object header at %d: %w", addr, err)
			}
			typ, n, mflags := mh[0], br.ByteOrder().Uint16(mh[1:]), mh[3]
			body, err := br.ReadBytes(int(n))
			if err != nil {
				return fmt.Errorf("object header at %d: %w", addr, err)
			}
			if cont := h.add(message.Type(typ), body, mflags, r); cont != nil {
				queue = append(queue, block{cont.Offset, cont.Length})
			}
		}
	}
	return nil
}

// verify checks the lookup3 checksum stored at end over [from, end).
func verify(r *binary.Reader, from, end uint64) error {
	if end < from {
		return fmt.Errorf("%w: block at %d", ErrInvalidHeader, from)
	}
	data, err := r.At(int64(from)).ReadBytes(int(end - from))
	if err != nil {
		return err
	}
	sum, err := r.At(int64(end)).ReadUint32()
	if err != nil {
		return err
	}
	if !binary.VerifyLookup3(data, sum) {
		return fmt.Errorf("%w: block at %d", ErrChecksumMismatch, from)
	}
	return nil
}

// add decodes one message and returns it when it is a continuation.
func (h *Header) add(typ message.Type, body []byte, flags uint8, r *binary.Reader) *message.Continuation {
	if typ == message.TypeNIL {
		return nil
	}
	msg, err := message.Parse(typ, body, flags, r)
	if err != nil {
		msg = &message.Unknown{Kind: typ, Data: body}
	}
	if cont, ok := msg.(*message.Continuation); ok {
		return cont
	}
	h.Messages = append(h.Messages, msg)
	return nil
}

// Get returns the first message of type typ, or nil.
func (h *Header) Get(typ message.Type) message.Message {
	for _, m := range h.Messages {
		if m.Type() == typ {
			return m
		}
	}
	return nil
}

// All returns every message of type typ.
func (h *Header) All(typ message.Type) []message.Message {
	var out []message.Message
	for _, m := range h.Messages {
		if m.Type() == typ {
			out = append(out, m)
		}
	}
	return out
}

// Dataspace returns the dataspace message, or nil.
func (h *Header) Dataspace() *message.Dataspace {
	m, _ := h.Get(message.TypeDataspace).(*message.Dataspace)
	return m
}

// DataLayout returns the layout message, or nil.
func (h *Header) DataLayout() *message.DataLayout {
	m, _ := h.Get(message.TypeDataLayout).(*message.DataLayout)
	return m
}

// FilterPipeline returns the filter pipeline message, or nil.
func (h *Header) FilterPipeline() *message.FilterPipeline {
	m, _ := h.Get(message.TypeFilterPipeline).(*message.FilterPipeline)
	return m
}
