package object

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-emd/internal/binary"
	"github.com/robert-malhotra/go-emd/internal/message"
)

// ErrMessageTooLarge is returned for a message body over 64 KiB, which a
// compact header cannot hold.
var ErrMessageTooLarge = errors.New("header message too large")

// MaxMessageSize is the largest message body Encode accepts.
const MaxMessageSize = 0xFFFF

// Encode returns a version 2 object header holding msgs, with no
// continuation blocks.
func Encode(msgs []message.Encoder, cfg binary.Config) ([]byte, error) {
	var body binary.Buffer
	bw := binary.NewWriter(&body, cfg)
	for _, m := range msgs {
		raw, err := message.Bytes(m, cfg)
		if err != nil {
			return nil, err
		}
		if len(raw) > MaxMessageSize {
			return nil, fmt.Errorf("%w: type %#x, %d bytes", ErrMessageTooLarge, m.Type(), len(raw))
		}
		bw.WriteUint8(uint8(m.Type()))
		bw.WriteUint16(uint16(len(raw)))
		bw.WriteUint8(0)
		bw.WriteBytes(raw)
	}
	if err := bw.Err(); err != nil {
		return nil, err
	}

	size := uint64(len(body.Bytes()))
	code := sizeCode(size)

	var out binary.Buffer
	w := binary.NewWriter(&out, cfg)
	w.WriteBytes([]byte("OHDR"))
	w.WriteUint8(2)
	w.WriteUint8(code)
	w.WriteUintN(size, 1<<code)
	w.WriteBytes(body.Bytes())
	w.WriteUint32(binary.Lookup3(out.Bytes()))
	if err := w.Err(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// sizeCode returns the flag bits selecting the narrowest chunk size field.
func sizeCode(size uint64) uint8 {
	switch {
	case size <= 0xFF:
		return 0
	case size <= 0xFFFF:
		return 1
	case size <= 0xFFFFFFFF:
		return 2
	}
	return 3
}

// GroupMessages returns the messages of a compact group header.
func GroupMessages(links []*message.Link, attrs []*message.Attribute) []message.Encoder {
	msgs := []message.Encoder{&message.LinkInfo{}, &message.GroupInfo{}}
	for _, l := range links {
		msgs = append(msgs, l)
	}
	for _, a := range attrs {
		msgs = append(msgs, a)
	}
	return msgs
}

// DatasetMessages returns the messages of a dataset header.
func DatasetMessages(space *message.Dataspace, dt *message.Datatype, layout *message.DataLayout, attrs []*message.Attribute) []message.Encoder {
	msgs := []message.Encoder{space, dt, &message.FillValue{}, layout}
	for _, a := range attrs {
		msgs = append(msgs, a)
	}
	return msgs
}
