// Package schemadoc holds the in-memory JSON Schema (draft-07) document that
// the editor mutates. The tree is typed: object and array structure live in
// explicit fields, everything the editor does not manage is carried verbatim
// in Extra so documents round-trip without losing keywords.
package schemadoc

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/mohae/deepcopy"
)

// Draft07 is the meta-schema URI written into new documents.
const Draft07 = "http://json-schema.org/draft-07/schema#"

// Type names accepted by the editor.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeObject  = "object"
	TypeArray   = "array"
	TypeBoolean = "boolean"
	TypeNull    = "null"
)

// Types lists the type names in the order the editor offers them.
var Types = []string{TypeString, TypeNumber, TypeInteger, TypeObject, TypeArray, TypeBoolean, TypeNull}

// Node is one schema fragment.
//
// A nil Properties, Required or Items slice means the keyword is absent; a
// non-nil empty slice is written out as {} or [].
type Node struct {
	// Boolean is set for the boolean schemas true and false.
	Boolean *bool
	// Invalid holds a fragment that is neither an object nor a boolean.
	// It is written back unchanged so validation can report it.
	Invalid json.RawMessage

	Types       []string
	Title       string
	Description string

	MinLength *int
	MaxLength *int
	Minimum   *float64
	Maximum   *float64
	MinItems  *int
	MaxItems  *int

	Properties           []Property
	Required             []string
	AdditionalProperties json.RawMessage
	// ImplicitProperties and ImplicitRequired are set when an edit created
	// the keyword. Removing its last entry then drops the keyword again.
	ImplicitProperties bool
	ImplicitRequired   bool

	Items []*Node
	// ItemsTuple is true when items is a list of schemas (tuple validation)
	// and false when it was a single schema applying to every element.
	ItemsTuple      bool
	AdditionalItems json.RawMessage

	// Extra keeps every other keyword in document order.
	Extra []Keyword
}

// Property is a named child of an object node.
type Property struct {
	Name   string
	Schema *Node
}

// Keyword is a keyword the model does not interpret.
type Keyword struct {
	Name  string
	Value json.RawMessage
}

// NewNode returns a node with the given types.
func NewNode(types ...string) *Node {
	n := &Node{}
	n.SetTypes(types)
	return n
}

// DefaultForType returns the schema the editor creates for a new child.
func DefaultForType(t string) *Node {
	switch t {
	case TypeObject, TypeArray, TypeString, TypeNumber, TypeInteger, TypeBoolean, TypeNull:
		return NewNode(t)
	default:
		return NewNode(TypeString)
	}
}

// IsKnownType reports whether t is a draft-07 simple type name.
func IsKnownType(t string) bool {
	return slices.Contains(Types, t)
}

// HasType reports whether t is one of the node's types.
func (n *Node) HasType(t string) bool {
	return slices.Contains(n.Types, t)
}

// IsObject reports whether the node's type includes object.
func (n *Node) IsObject() bool { return n.HasType(TypeObject) }

// IsArray reports whether the node's type includes array.
func (n *Node) IsArray() bool { return n.HasType(TypeArray) }

// PrimaryType returns the first declared type, or "".
func (n *Node) PrimaryType() string {
	if len(n.Types) == 0 {
		return ""
	}
	return n.Types[0]
}

// TypeLabel renders the type keyword for display, e.g. "string | null".
func (n *Node) TypeLabel() string {
	if n.Boolean != nil {
		if *n.Boolean {
			return "true"
		}
		return "false"
	}
	return strings.Join(n.Types, " | ")
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	return deepcopy.Copy(n).(*Node)
}

// Keyword returns the raw value of an uninterpreted keyword.
func (n *Node) Keyword(name string) (json.RawMessage, bool) {
	for _, kw := range n.Extra {
		if kw.Name == name {
			return kw.Value, true
		}
	}
	return nil, false
}

// SetKeyword stores an uninterpreted keyword, replacing an existing value in place.
func (n *Node) SetKeyword(name string, value json.RawMessage) {
	for i := range n.Extra {
		if n.Extra[i].Name == name {
			n.Extra[i].Value = value
			return
		}
	}
	n.Extra = append(n.Extra, Keyword{Name: name, Value: value})
}

// DeleteKeyword removes an uninterpreted keyword.
func (n *Node) DeleteKeyword(name string) {
	n.Extra = slices.DeleteFunc(n.Extra, func(kw Keyword) bool { return kw.Name == name })
}

// Walk visits n and every schema below it through properties and items.
func (n *Node) Walk(fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, p := range n.Properties {
		p.Schema.Walk(fn)
	}
	for _, item := range n.Items {
		item.Walk(fn)
	}
}
