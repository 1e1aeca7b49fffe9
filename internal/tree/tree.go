// Package tree projects a schema document into the display tree shown by the
// editor. The schema tree is the source of truth; a projection is thrown
// away and rebuilt (whole or per subtree) after every structural edit.
package tree

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-openapi/jsonpointer"

	"github.com/jackzampolin/schemaocr/internal/schemadoc"
)

// RoleKind tells how a schema is attached to its parent.
type RoleKind int

const (
	RoleRoot RoleKind = iota
	RoleProperty
	RoleArrayItem
)

// Role is a node's position in the schema: the root, a named property of
// Parent, or the item at Index of Parent.
type Role struct {
	Kind   RoleKind
	Parent *schemadoc.Node
	Name   string
	Index  int
}

func (r Role) String() string {
	switch r.Kind {
	case RoleProperty:
		return "property " + strconv.Quote(r.Name)
	case RoleArrayItem:
		return "item " + strconv.Itoa(r.Index)
	default:
		return "root"
	}
}

// Node is one row of the display tree.
type Node struct {
	Label       string
	Marker      string
	TypeLabel   string
	Description string
	Pointer     string
	Role        Role
	Schema      *schemadoc.Node
	Parent      *Node
	Children    []*Node
}

const (
	MarkerRequired = "*"
	MarkerElement  = "E"
)

var ErrNotFound = errors.New("no schema at pointer")

// Build projects the whole document.
func Build(root *schemadoc.Node) *Node {
	n := &Node{
		Label:   "root",
		Marker:  MarkerRequired,
		Pointer: "",
		Role:    Role{Kind: RoleRoot},
		Schema:  root,
	}
	n.refresh()
	Rebuild(n)
	return n
}

// Rebuild re-creates the children of n from its schema.
func Rebuild(n *Node) {
	n.refresh()
	n.Children = nil
	s := n.Schema
	if s == nil {
		return
	}
	for _, p := range s.Properties {
		child := &Node{
			Label:   p.Name,
			Pointer: n.Pointer + "/properties/" + jsonpointer.Escape(p.Name),
			Role:    Role{Kind: RoleProperty, Parent: s, Name: p.Name},
			Schema:  p.Schema,
			Parent:  n,
		}
		if s.IsRequired(p.Name) {
			child.Marker = MarkerRequired
		}
		Rebuild(child)
		n.Children = append(n.Children, child)
	}
	for i, item := range s.Items {
		ptr := n.Pointer + "/items"
		if s.ItemsTuple || len(s.Items) != 1 {
			ptr += "/" + strconv.Itoa(i)
		}
		child := &Node{
			Label:   "[" + strconv.Itoa(i) + "]",
			Marker:  MarkerElement,
			Pointer: ptr,
			Role:    Role{Kind: RoleArrayItem, Parent: s, Index: i},
			Schema:  item,
			Parent:  n,
		}
		Rebuild(child)
		n.Children = append(n.Children, child)
	}
}

func (n *Node) refresh() {
	if n.Schema == nil {
		return
	}
	n.TypeLabel = n.Schema.TypeLabel()
	n.Description = n.Schema.Description
	if n.Role.Kind == RoleProperty {
		n.Label = n.Role.Name
	}
}

// Walk visits n and its descendants depth-first. Returning false from fn
// stops the walk.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// Find returns the display node with the given pointer.
func (n *Node) Find(pointer string) (*Node, error) {
	pointer = normalize(pointer)
	var found *Node
	n.Walk(func(c *Node) bool {
		if c.Pointer == pointer {
			found = c
			return false
		}
		return true
	})
	if found == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, pointer)
	}
	return found, nil
}

func normalize(pointer string) string {
	if pointer == "/" {
		return ""
	}
	return pointer
}

// Resolve walks the schema tree along a JSON pointer and returns the schema
// it names together with its role.
func Resolve(root *schemadoc.Node, pointer string) (*schemadoc.Node, Role, error) {
	pointer = normalize(pointer)
	p, err := jsonpointer.New(pointer)
	if err != nil {
		return nil, Role{}, fmt.Errorf("invalid pointer %q: %w", pointer, err)
	}
	tokens := p.DecodedTokens()
	cur, role := root, Role{Kind: RoleRoot}
	for i := 0; i < len(tokens); i++ {
		switch tokens[i] {
		case "properties":
			if i+1 >= len(tokens) {
				return nil, Role{}, fmt.Errorf("%w: %q", ErrNotFound, pointer)
			}
			name := tokens[i+1]
			child, ok := cur.Property(name)
			if !ok {
				return nil, Role{}, fmt.Errorf("%w: %q", ErrNotFound, pointer)
			}
			role = Role{Kind: RoleProperty, Parent: cur, Name: name}
			cur = child
			i++
		case "items":
			idx := 0
			if i+1 < len(tokens) {
				if n, err := strconv.Atoi(tokens[i+1]); err == nil {
					idx = n
					i++
				}
			}
			if idx < 0 || idx >= len(cur.Items) {
				return nil, Role{}, fmt.Errorf("%w: %q", ErrNotFound, pointer)
			}
			role = Role{Kind: RoleArrayItem, Parent: cur, Index: idx}
			cur = cur.Items[idx]
		default:
			return nil, Role{}, fmt.Errorf("%w: %q", ErrNotFound, pointer)
		}
	}
	return cur, role, nil
}

// ParentPointer returns the pointer of the schema that owns pointer.
func ParentPointer(pointer string) string {
	tokens := Split(pointer)
	last := 0
	for i := 0; i < len(tokens); i++ {
		last = i
		switch tokens[i] {
		case "properties":
			i++
		case "items":
			if i+1 < len(tokens) {
				if _, err := strconv.Atoi(tokens[i+1]); err == nil {
					i++
				}
			}
		}
	}
	if len(tokens) == 0 {
		return ""
	}
	return Join(tokens[:last]...)
}

// Split returns the unescaped tokens of a pointer.
func Split(pointer string) []string {
	p, err := jsonpointer.New(normalize(pointer))
	if err != nil {
		return nil
	}
	return p.DecodedTokens()
}

// Join builds a pointer from unescaped tokens.
func Join(tokens ...string) string {
	var s string
	for _, t := range tokens {
		s += "/" + jsonpointer.Escape(t)
	}
	return s
}
