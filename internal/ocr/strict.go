package ocr

import (
	"bytes"
	"encoding/json"
	"slices"

	"github.com/jackzampolin/schemaocr/internal/schemadoc"
)

var rawNull = json.RawMessage("null")

// StrictOptions tune how an authored schema is tightened for structured output.
type StrictOptions struct {
	// NullableOptional makes every property required and lets the ones that
	// were optional be null instead.
	NullableOptional bool
}

// StrictSchema returns a copy of root prepared for strict structured output:
// every object schema, including those under definitions and $defs, forbids
// additional properties.
func StrictSchema(root *schemadoc.Node, opts StrictOptions) *schemadoc.Node {
	strict := root.Clone()
	tighten(strict, opts)
	// Response formats take the bare schema.
	strict.DeleteKeyword("$schema")
	return strict
}

func tighten(root *schemadoc.Node, opts StrictOptions) {
	root.Walk(func(n *schemadoc.Node) {
		// Definitions that cannot be re-encoded are sent as authored.
		_ = n.EachDefinition(func(def *schemadoc.Node) { tighten(def, opts) })
		if !n.IsObject() {
			return
		}
		n.AdditionalProperties = json.RawMessage("false")
		if !opts.NullableOptional {
			return
		}
		for _, p := range n.Properties {
			if n.IsRequired(p.Name) {
				continue
			}
			n.Required = append(n.Required, p.Name)
			allowNull(p.Schema)
		}
	})
}

// allowNull widens a schema so null passes: null joins the type list and,
// when the values are enumerated, the enum.
func allowNull(n *schemadoc.Node) {
	if len(n.Types) > 0 && !n.HasType(schemadoc.TypeNull) {
		n.Types = append(n.Types, schemadoc.TypeNull)
	}
	raw, ok := n.Keyword("enum")
	if !ok {
		return
	}
	var values []json.RawMessage
	if err := json.Unmarshal(raw, &values); err != nil {
		return
	}
	if slices.ContainsFunc(values, func(v json.RawMessage) bool { return bytes.Equal(bytes.TrimSpace(v), rawNull) }) {
		return
	}
	data, err := json.Marshal(append(values, rawNull))
	if err != nil {
		return
	}
	n.SetKeyword("enum", data)
}
