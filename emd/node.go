package emd

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/robert-malhotra/go-emd/dtype"
)

// NodeKind is the closed set of node variants.
type NodeKind uint8

const (
	KindGroup NodeKind = iota + 1
	KindDataGroup
	KindDataset
	KindAttribute
)

func (k NodeKind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindDataGroup:
		return "data group"
	case KindDataset:
		return "dataset"
	case KindAttribute:
		return "attribute"
	default:
		return "node kind " + strconv.Itoa(int(k))
	}
}

// Status is a set of node flags.
type Status uint8

const (
	// Dirty marks state that has not been written to the backing store.
	Dirty Status = 1 << iota
)

// Body is the variant payload of a Node: *Group, *DataGroup, *Dataset or
// *Attribute.
type Body interface {
	nodeKind() NodeKind
	attach(n *Node)
}

// Group is the body of a plain group node.
type Group struct{}

func (*Group) nodeKind() NodeKind { return KindGroup }
func (*Group) attach(*Node)       {}

// Node is an element of the model tree. Each node has at most one parent
// and exclusively owns its children.
type Node struct {
	name     string
	status   Status
	parent   *Node
	children []*Node
	body     Body
}

func newNode(name string, body Body) *Node {
	n := &Node{name: name, body: body}
	body.attach(n)
	return n
}

// NewGroup returns a detached group node.
func NewGroup(name string) *Node {
	return newNode(name, &Group{})
}

// NewNode returns a detached node of the given kind with an empty body.
// Datasets start unloaded with no shape.
func NewNode(name string, kind NodeKind) (*Node, error) {
	switch kind {
	case KindGroup:
		return NewGroup(name), nil
	case KindDataGroup:
		return NewDataGroup(name), nil
	case KindDataset:
		return newNode(name, &Dataset{complexDim: -1, descending: true}), nil
	case KindAttribute:
		return newNode(name, &Attribute{}), nil
	}
	return nil, fmt.Errorf("%w: node kind %d", ErrInvalidOperation, kind)
}

// Name returns the node name.
func (n *Node) Name() string { return n.name }

// SetName renames the node and marks it dirty.
func (n *Node) SetName(name string) {
	n.name = name
	n.SetStatus(Dirty, false)
}

// Kind returns the node variant.
func (n *Node) Kind() NodeKind { return n.body.nodeKind() }

// Body returns the variant payload for exhaustive type switches.
func (n *Node) Body() Body { return n.body }

// Dataset returns the dataset body, or nil.
func (n *Node) Dataset() *Dataset {
	d, _ := n.body.(*Dataset)
	return d
}

// DataGroup returns the data group body, or nil.
func (n *Node) DataGroup() *DataGroup {
	g, _ := n.body.(*DataGroup)
	return g
}

// Attribute returns the attribute body, or nil.
func (n *Node) Attribute() *Attribute {
	a, _ := n.body.(*Attribute)
	return a
}

// IsGroup reports whether n is a group or data group.
func (n *Node) IsGroup() bool {
	k := n.Kind()
	return k == KindGroup || k == KindDataGroup
}

// Parent returns the owning node, or nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// Path returns the slash-separated path from the root. The root's path is
// empty; every other node's is its parent's path + "/" + name.
func (n *Node) Path() string {
	if n.parent == nil {
		return ""
	}
	return n.parent.Path() + "/" + n.name
}

// Row returns n's position among its siblings (0 for a root).
func (n *Node) Row() int {
	if n.parent == nil {
		return 0
	}
	return n.parent.IndexOf(n)
}

// IndexOf returns the position of child c, compared by identity, or -1.
func (n *Node) IndexOf(c *Node) int {
	return slices.Index(n.children, c)
}

// NumChildren returns the number of children.
func (n *Node) NumChildren() int { return len(n.children) }

// Children returns a copy of the child list.
func (n *Node) Children() []*Node { return slices.Clone(n.children) }

// Child returns the child at index i, or nil.
func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// ChildByName returns the first child named name, or nil.
func (n *Node) ChildByName(name string) *Node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// ChildAtPath resolves a relative path by repeated single-segment lookup.
// A leading slash is ignored.
func (n *Node) ChildAtPath(path string) *Node {
	cur := n
	for _, seg := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		if cur = cur.ChildByName(seg); cur == nil {
			return nil
		}
	}
	return cur
}

// AddChild appends c. It fails if c is already a child of n, is owned by
// another node, is n or one of its ancestors, or n is an attribute.
func (n *Node) AddChild(c *Node) error {
	return n.InsertChild(len(n.children), c)
}

// InsertChild inserts c at position pos under the same rules as AddChild.
func (n *Node) InsertChild(pos int, c *Node) error {
	if pos < 0 || pos > len(n.children) {
		return fmt.Errorf("insert at %d: %w", pos, ErrIndexOutOfRange)
	}
	if n.Kind() == KindAttribute {
		return fmt.Errorf("%w: attributes have no children", ErrInvalidOperation)
	}
	if slices.Contains(n.children, c) {
		return fmt.Errorf("%w: %q is already a child of %q", ErrInvalidOperation, c.name, n.name)
	}
	if c.parent != nil {
		return fmt.Errorf("%w: %q already has a parent", ErrInvalidOperation, c.name)
	}
	for a := n; a != nil; a = a.parent {
		if a == c {
			return fmt.Errorf("%w: %q would become its own descendant", ErrInvalidOperation, c.name)
		}
	}
	n.children = slices.Insert(n.children, pos, c)
	c.parent = n
	return nil
}

// RemoveChildren detaches count children starting at pos and releases
// their subtrees.
func (n *Node) RemoveChildren(pos, count int) error {
	if pos < 0 || count < 0 || pos+count > len(n.children) {
		return fmt.Errorf("remove [%d,%d): %w", pos, pos+count, ErrIndexOutOfRange)
	}
	for _, c := range n.children[pos : pos+count] {
		c.parent = nil
		c.release()
	}
	n.children = slices.Delete(n.children, pos, pos+count)
	return nil
}

// RemoveChild detaches c if it is a child of n.
func (n *Node) RemoveChild(c *Node) error {
	i := n.IndexOf(c)
	if i < 0 {
		return fmt.Errorf("%w: %q is not a child of %q", ErrInvalidOperation, c.name, n.name)
	}
	return n.RemoveChildren(i, 1)
}

// release drops dataset buffers held by the subtree.
func (n *Node) release() {
	if d := n.Dataset(); d != nil {
		d.buf = dtype.Buffer{}
	}
	for _, c := range n.children {
		c.release()
	}
}

// Status returns the node's flags.
func (n *Node) Status() Status { return n.status }

// IsDirty reports whether the Dirty flag is set.
func (n *Node) IsDirty() bool { return n.status&Dirty != 0 }

// SetStatus sets flags on n and, with cascade, on its whole subtree.
func (n *Node) SetStatus(flags Status, cascade bool) {
	n.status |= flags
	if cascade {
		for _, c := range n.children {
			c.SetStatus(flags, true)
		}
	}
}

// ClearStatus clears flags on n and, with cascade, on its whole subtree.
func (n *Node) ClearStatus(flags Status, cascade bool) {
	n.status &^= flags
	if cascade {
		for _, c := range n.children {
			c.ClearStatus(flags, true)
		}
	}
}

// Attr returns the value of the child attribute named name, or the zero
// Value.
func (n *Node) Attr(name string) dtype.Value {
	c := n.ChildByName(name)
	if c == nil {
		return dtype.Value{}
	}
	if a := c.Attribute(); a != nil {
		return a.value
	}
	return dtype.Value{}
}

// SetAttr creates or replaces the child attribute named name and marks it
// dirty.
func (n *Node) SetAttr(name string, v dtype.Value) (*Node, error) {
	if c := n.ChildByName(name); c != nil {
		if c.Kind() != KindAttribute {
			return nil, fmt.Errorf("%w: %q is a %s", ErrInvalidOperation, name, c.Kind())
		}
		c.body = &Attribute{node: c, kind: v.Kind(), value: v}
		c.SetStatus(Dirty, false)
		return c, nil
	}
	c := NewAttribute(name, v)
	if err := n.AddChild(c); err != nil {
		return nil, err
	}
	c.SetStatus(Dirty, false)
	return c, nil
}

// Display renders the node's value column: a child count for groups, the
// shape for datasets and the value for attributes.
func (n *Node) Display() string {
	switch b := n.body.(type) {
	case *Group, *DataGroup:
		return strconv.Itoa(len(n.children)) + " children"
	case *Dataset:
		return b.space.String()
	case *Attribute:
		return b.value.String()
	}
	return ""
}
