package editor

import (
	"github.com/jackzampolin/schemaocr/internal/schemadoc"
	"github.com/jackzampolin/schemaocr/internal/tree"
)

// Fields says which form fields may be edited for the selected node.
type Fields struct {
	Name        bool `json:"name" yaml:"name"`
	Required    bool `json:"required" yaml:"required"`
	Types       bool `json:"types" yaml:"types"`
	Title       bool `json:"title" yaml:"title"`
	Description bool `json:"description" yaml:"description"`
	Length      bool `json:"length" yaml:"length"`
	Bounds      bool `json:"bounds" yaml:"bounds"`
	ItemCount   bool `json:"item_count" yaml:"item_count"`
}

// Form is the property panel for one schema node.
type Form struct {
	Pointer     string   `json:"pointer" yaml:"pointer"`
	Role        string   `json:"role" yaml:"role"`
	Name        string   `json:"name,omitempty" yaml:"name,omitempty"`
	Required    bool     `json:"required" yaml:"required"`
	Types       []string `json:"types" yaml:"types"`
	Title       string   `json:"title,omitempty" yaml:"title,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`

	MinLength *int     `json:"min_length,omitempty" yaml:"min_length,omitempty"`
	MaxLength *int     `json:"max_length,omitempty" yaml:"max_length,omitempty"`
	Minimum   *float64 `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum   *float64 `json:"maximum,omitempty" yaml:"maximum,omitempty"`
	MinItems  *int     `json:"min_items,omitempty" yaml:"min_items,omitempty"`
	MaxItems  *int     `json:"max_items,omitempty" yaml:"max_items,omitempty"`

	Fields Fields `json:"fields" yaml:"fields"`
}

// constraintFields maps a type to the constraint widgets it offers.
func constraintFields(t string) (length, bounds, itemCount bool) {
	switch t {
	case schemadoc.TypeString:
		return true, false, false
	case schemadoc.TypeNumber, schemadoc.TypeInteger:
		return false, true, false
	case schemadoc.TypeArray:
		return false, false, true
	}
	return false, false, false
}

func fieldsFor(role tree.Role, primaryType string) Fields {
	f := Fields{Title: true, Description: true}
	switch role.Kind {
	case tree.RoleProperty:
		f.Name, f.Required, f.Types = true, true, true
	case tree.RoleArrayItem:
		f.Types = true
	}
	if role.Kind != tree.RoleRoot {
		f.Length, f.Bounds, f.ItemCount = constraintFields(primaryType)
	}
	return f
}

func formFor(pointer string, n *schemadoc.Node, role tree.Role) Form {
	f := Form{
		Pointer:     pointer,
		Role:        role.String(),
		Types:       append([]string(nil), n.Types...),
		Title:       n.Title,
		Description: n.Description,
		MinLength:   copyPtr(n.MinLength),
		MaxLength:   copyPtr(n.MaxLength),
		Minimum:     copyPtr(n.Minimum),
		Maximum:     copyPtr(n.Maximum),
		MinItems:    copyPtr(n.MinItems),
		MaxItems:    copyPtr(n.MaxItems),
		Fields:      fieldsFor(role, n.PrimaryType()),
	}
	if role.Kind == tree.RoleProperty {
		f.Name = role.Name
		f.Required = role.Parent.IsRequired(role.Name)
	}
	return f
}

// apply writes the form into n. Only fields the form manages are touched so
// keywords like enum or format survive an edit.
func (f *Form) apply(n *schemadoc.Node, role tree.Role) error {
	if fieldsFor(role, n.PrimaryType()).Types {
		if err := n.SetTypes(f.Types); err != nil {
			return err
		}
	}
	n.Title = f.Title
	n.Description = f.Description

	if role.Kind == tree.RoleRoot {
		return nil
	}
	length, bounds, itemCount := constraintFields(n.PrimaryType())
	n.MinLength, n.MaxLength = nil, nil
	n.Minimum, n.Maximum = nil, nil
	n.MinItems, n.MaxItems = nil, nil
	if length {
		n.MinLength, n.MaxLength = copyPtr(f.MinLength), copyPtr(f.MaxLength)
	}
	if bounds {
		n.Minimum, n.Maximum = copyPtr(f.Minimum), copyPtr(f.Maximum)
	}
	if itemCount {
		n.MinItems, n.MaxItems = copyPtr(f.MinItems), copyPtr(f.MaxItems)
	}
	return nil
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// SetTypes changes the form's type union and re-derives which constraint
// fields it offers. Constraint values the new type does not use are dropped
// on commit.
func (f *Form) SetTypes(types []string) error {
	if !f.Fields.Types {
		return ErrTypesLocked
	}
	f.Types = append([]string(nil), types...)
	primary := ""
	if len(types) > 0 {
		primary = types[0]
	}
	f.Fields.Length, f.Fields.Bounds, f.Fields.ItemCount = constraintFields(primary)
	return nil
}
