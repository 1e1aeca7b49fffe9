package schemadoc

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrEmptyName      = errors.New("field name cannot be empty")
	ErrEmptyType      = errors.New("type cannot be empty")
	ErrDuplicateName  = errors.New("a property with this name already exists")
	ErrNoSuchProperty = errors.New("no such property")
	ErrNoSuchItem     = errors.New("no such array item")
	ErrNotObject      = errors.New("schema is not an object schema")
	ErrNotArray       = errors.New("schema is not an array schema")
	ErrCannotMove     = errors.New("cannot move further in this direction")
	ErrUnknownType    = errors.New("unknown type")
)

var rawFalse = json.RawMessage("false")

// Property returns the named child schema.
func (n *Node) Property(name string) (*Node, bool) {
	i := n.propertyIndex(name)
	if i < 0 {
		return nil, false
	}
	return n.Properties[i].Schema, true
}

func (n *Node) propertyIndex(name string) int {
	return slices.IndexFunc(n.Properties, func(p Property) bool { return p.Name == name })
}

// AddProperty appends a new named child. The node must be an object schema.
func (n *Node) AddProperty(name string, child *Node) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if !n.IsObject() {
		return ErrNotObject
	}
	if n.propertyIndex(name) >= 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	if child == nil {
		child = DefaultForType(TypeString)
	}
	if n.Properties == nil {
		n.ImplicitProperties = true
	}
	n.Properties = append(n.Properties, Property{Name: name, Schema: child})
	return nil
}

// RemoveProperty deletes a child and drops it from required.
func (n *Node) RemoveProperty(name string) error {
	i := n.propertyIndex(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNoSuchProperty, name)
	}
	n.Properties = slices.Delete(n.Properties, i, i+1)
	if len(n.Properties) == 0 && n.ImplicitProperties {
		n.Properties, n.ImplicitProperties = nil, false
	}
	n.dropRequired(name)
	return nil
}

func (n *Node) dropRequired(name string) {
	if n.Required == nil {
		return
	}
	n.Required = slices.DeleteFunc(n.Required, func(r string) bool { return r == name })
	if len(n.Required) == 0 && n.ImplicitRequired {
		n.Required, n.ImplicitRequired = nil, false
	}
}

// RenameProperty renames a child in place, keeping its position and its
// required flag.
func (n *Node) RenameProperty(oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return ErrEmptyName
	}
	i := n.propertyIndex(oldName)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNoSuchProperty, oldName)
	}
	if oldName == newName {
		return nil
	}
	if n.propertyIndex(newName) >= 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateName, newName)
	}
	n.Properties[i].Name = newName
	for j, r := range n.Required {
		if r == oldName {
			n.Required[j] = newName
		}
	}
	return nil
}

// IsRequired reports whether name is listed in required.
func (n *Node) IsRequired(name string) bool {
	return slices.Contains(n.Required, name)
}

// SetRequired adds or removes name from required. Only existing properties
// can be marked required.
func (n *Node) SetRequired(name string, required bool) error {
	if n.propertyIndex(name) < 0 {
		return fmt.Errorf("%w: %q", ErrNoSuchProperty, name)
	}
	has := n.IsRequired(name)
	switch {
	case required && !has:
		if n.Required == nil {
			n.ImplicitRequired = true
		}
		n.Required = append(n.Required, name)
	case !required && has:
		n.dropRequired(name)
	}
	return nil
}

// MoveProperty shifts a property by delta positions.
func (n *Node) MoveProperty(name string, delta int) error {
	i := n.propertyIndex(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNoSuchProperty, name)
	}
	j := i + delta
	if j < 0 || j >= len(n.Properties) {
		return ErrCannotMove
	}
	p := n.Properties[i]
	n.Properties = slices.Delete(n.Properties, i, i+1)
	n.Properties = slices.Insert(n.Properties, j, p)
	return nil
}

// AppendItem adds a positional item schema. A single items schema is first
// turned into a one-element tuple, and additionalItems is set to false when
// absent.
func (n *Node) AppendItem(child *Node) error {
	if !n.IsArray() {
		return ErrNotArray
	}
	if child == nil {
		child = DefaultForType(TypeString)
	}
	n.ItemsTuple = true
	n.Items = append(n.Items, child)
	if n.AdditionalItems == nil {
		n.AdditionalItems = rawFalse
	}
	return nil
}

// RemoveItem deletes the item schema at index i.
func (n *Node) RemoveItem(i int) error {
	if i < 0 || i >= len(n.Items) {
		return fmt.Errorf("%w: %d", ErrNoSuchItem, i)
	}
	n.Items = slices.Delete(n.Items, i, i+1)
	return nil
}

// MoveItem shifts the item schema at index i by delta positions.
func (n *Node) MoveItem(i, delta int) error {
	if i < 0 || i >= len(n.Items) {
		return fmt.Errorf("%w: %d", ErrNoSuchItem, i)
	}
	j := i + delta
	if j < 0 || j >= len(n.Items) {
		return ErrCannotMove
	}
	item := n.Items[i]
	n.Items = slices.Delete(n.Items, i, i+1)
	n.Items = slices.Insert(n.Items, j, item)
	return nil
}

// SetTypes replaces the type keyword and applies the structural rules: a
// node that stops being an object loses properties and required, a node that
// stops being an array loses items and additionalItems, and a node that
// becomes one of them gets the empty structure.
func (n *Node) SetTypes(types []string) error {
	cleaned := make([]string, 0, len(types))
	for _, t := range types {
		t = strings.TrimSpace(t)
		if t == "" || slices.Contains(cleaned, t) {
			continue
		}
		if !IsKnownType(t) {
			return fmt.Errorf("%w: %q", ErrUnknownType, t)
		}
		cleaned = append(cleaned, t)
	}
	if len(cleaned) == 0 {
		return ErrEmptyType
	}

	n.Types = cleaned
	n.Boolean = nil
	n.Invalid = nil
	n.DeleteKeyword("type")

	if n.IsObject() {
		if n.Properties == nil {
			n.Properties = []Property{}
		}
		if n.Required == nil {
			n.Required = []string{}
		}
	} else {
		n.Properties, n.ImplicitProperties = nil, false
		n.Required, n.ImplicitRequired = nil, false
		n.DeleteKeyword("properties")
		n.DeleteKeyword("required")
	}

	if n.IsArray() {
		if n.Items == nil {
			n.Items = []*Node{}
			n.ItemsTuple = true
		}
		if n.AdditionalItems == nil {
			n.AdditionalItems = rawFalse
		}
	} else {
		n.Items = nil
		n.ItemsTuple = false
		n.AdditionalItems = nil
		n.DeleteKeyword("items")
		n.DeleteKeyword("additionalItems")
	}
	return nil
}
