package message

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/go-emd/internal/binary"
)

// LinkType distinguishes hard, soft and external links.
type LinkType uint8

const (
	LinkHard     LinkType = 0
	LinkSoft     LinkType = 1
	LinkExternal LinkType = 64
)

// Link names one member of a compact group.
type Link struct {
	Name     string
	LinkType LinkType

	Address uint64 // hard
	Target  string // soft: path; external: object path
	File    string // external
}

func (m *Link) Type() Type { return TypeLink }

// NewHardLink links name to the object header at addr.
func NewHardLink(name string, addr uint64) *Link {
	return &Link{Name: name, LinkType: LinkHard, Address: addr}
}

func parseLink(data []byte, cfg binary.Config) (*Link, error) {
	d := newDecoder(data, cfg)
	if v := d.u8(); v != 1 && d.err == nil {
		return nil, fmt.Errorf("link: version %d: %w", v, ErrUnsupported)
	}
	flags := d.u8()
	m := &Link{}
	if flags&0x08 != 0 {
		m.LinkType = LinkType(d.u8())
	}
	if flags&0x04 != 0 {
		d.skip(8) // creation order
	}
	if flags&0x10 != 0 {
		d.u8() // charset
	}
	nameLen := d.uintN(1 << (flags & 0x03))
	if nameLen > uint64(d.remaining()) {
		return nil, fmt.Errorf("link: name length %d: %w", nameLen, ErrTruncated)
	}
	m.Name = string(d.bytes(int(nameLen)))

	switch m.LinkType {
	case LinkHard:
		m.Address = d.offset()
	case LinkSoft:
		m.Target = string(d.bytes(int(d.u16())))
	case LinkExternal:
		raw := d.bytes(int(d.u16()))
		if len(raw) > 0 {
			parts := bytes.SplitN(raw[1:], []byte{0}, 3)
			m.File = string(parts[0])
			if len(parts) > 1 {
				m.Target = string(parts[1])
			}
		}
	}
	if err := d.done("link"); err != nil {
		return nil, err
	}
	return m, nil
}

// Encode writes a version 1 hard or soft link.
func (m *Link) Encode(w *binary.Writer) {
	bits, width := nameLengthBits(len(m.Name))
	flags := bits
	if m.LinkType != LinkHard {
		flags |= 0x08
	}
	w.WriteUint8(1)
	w.WriteUint8(flags)
	if m.LinkType != LinkHard {
		w.WriteUint8(uint8(m.LinkType))
	}
	w.WriteUintN(uint64(len(m.Name)), width)
	w.WriteBytes([]byte(m.Name))
	switch m.LinkType {
	case LinkHard:
		w.WriteOffset(m.Address)
	case LinkSoft:
		w.WriteUint16(uint16(len(m.Target)))
		w.WriteBytes([]byte(m.Target))
	}
}

// LinkInfo marks a group that stores links in its header, or densely in a
// fractal heap when HeapAddr is defined.
type LinkInfo struct {
	HeapAddr      uint64
	NameIndexAddr uint64
	Dense         bool
}

func (m *LinkInfo) Type() Type { return TypeLinkInfo }

func parseLinkInfo(data []byte, cfg binary.Config) (*LinkInfo, error) {
	d := newDecoder(data, cfg)
	d.u8() // version
	flags := d.u8()
	if flags&0x01 != 0 {
		d.skip(8) // max creation index
	}
	m := &LinkInfo{HeapAddr: d.offset(), NameIndexAddr: d.offset()}
	m.Dense = !d.undefined(m.HeapAddr)
	return m, d.done("link info")
}

// Encode writes a link info message for compact storage.
func (m *LinkInfo) Encode(w *binary.Writer) {
	w.WriteUint8(0)
	w.WriteUint8(0)
	w.WriteOffset(w.UndefinedOffset())
	w.WriteOffset(w.UndefinedOffset())
}

// GroupInfo carries group storage hints. Only the default form is written.
type GroupInfo struct{}

func (m *GroupInfo) Type() Type { return TypeGroupInfo }

func (m *GroupInfo) Encode(w *binary.Writer) {
	w.WriteUint8(0)
	w.WriteUint8(0)
}

// AttributeInfo marks an object whose attributes may be stored densely.
type AttributeInfo struct {
	HeapAddr uint64
	Dense    bool
}

func (m *AttributeInfo) Type() Type { return TypeAttributeInfo }

func parseAttributeInfo(data []byte, cfg binary.Config) (*AttributeInfo, error) {
	d := newDecoder(data, cfg)
	d.u8() // version
	flags := d.u8()
	if flags&0x01 != 0 {
		d.skip(2) // max creation index
	}
	m := &AttributeInfo{HeapAddr: d.offset()}
	m.Dense = !d.undefined(m.HeapAddr)
	return m, d.done("attribute info")
}
