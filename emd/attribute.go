package emd

import (
	"fmt"

	"github.com/robert-malhotra/go-emd/dtype"
)

// Attribute is the body of an attribute node: a typed scalar or array.
type Attribute struct {
	node  *Node
	kind  dtype.Kind
	value dtype.Value
}

func (*Attribute) nodeKind() NodeKind { return KindAttribute }
func (a *Attribute) attach(n *Node)   { a.node = n }

// NewAttribute returns a detached attribute node holding v.
func NewAttribute(name string, v dtype.Value) *Node {
	return newNode(name, &Attribute{kind: v.Kind(), value: v})
}

// Value returns the stored value.
func (a *Attribute) Value() dtype.Value { return a.value }

// Kind returns the declared element kind.
func (a *Attribute) Kind() dtype.Kind { return a.kind }

// IsArray reports whether the attribute holds an array.
func (a *Attribute) IsArray() bool { return a.value.IsArray() }

// SetValue replaces a scalar value, coercing v to the declared kind.
// Array attributes cannot be reassigned.
func (a *Attribute) SetValue(v dtype.Value) error {
	if a.value.IsArray() {
		return ErrArrayAttribute
	}
	if !v.IsValid() || v.IsArray() {
		return fmt.Errorf("%w: attribute values must be valid scalars", ErrInvalidOperation)
	}
	if a.kind.Valid() && v.Kind() != a.kind {
		c := dtype.Convert(v, a.kind)
		if !c.IsValid() {
			return fmt.Errorf("%w: %q is not a valid %s", ErrInvalidOperation, v.String(), a.kind)
		}
		v = c
	}
	a.kind = v.Kind()
	a.value = v
	if a.node != nil {
		a.node.SetStatus(Dirty, false)
	}
	return nil
}
