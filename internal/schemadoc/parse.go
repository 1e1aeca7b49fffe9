package schemadoc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrRootNotObject is returned when a document's root is not a JSON object.
var ErrRootNotObject = errors.New("root of schema must be a JSON object")

// Parse decodes a schema document. Key order is preserved.
func Parse(data []byte) (*Node, error) {
	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return nil, fmt.Errorf("invalid JSON")
	}
	if len(data) == 0 || data[0] != '{' {
		return nil, ErrRootNotObject
	}
	return parseNode(data)
}

func parseNode(raw json.RawMessage) (*Node, error) {
	raw = bytes.TrimSpace(raw)
	switch {
	case bytes.Equal(raw, []byte("true")), bytes.Equal(raw, []byte("false")):
		b := raw[0] == 't'
		return &Node{Boolean: &b}, nil
	case len(raw) == 0 || raw[0] != '{':
		return &Node{Invalid: bytes.Clone(raw)}, nil
	}

	fields, err := orderedObject(raw)
	if err != nil {
		return nil, err
	}

	n := &Node{}
	for pair := fields.Oldest(); pair != nil; pair = pair.Next() {
		ok, err := n.decodeKeyword(pair.Key, pair.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pair.Key, err)
		}
		if !ok {
			n.Extra = append(n.Extra, Keyword{Name: pair.Key, Value: bytes.Clone(pair.Value)})
		}
	}
	return n, nil
}

func orderedObject(raw json.RawMessage) (*orderedmap.OrderedMap[string, json.RawMessage], error) {
	om := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(raw, om); err != nil {
		return nil, fmt.Errorf("failed to decode object: %w", err)
	}
	return om, nil
}

// decodeKeyword interprets the keywords the editor manages. It returns false
// when the value has an unexpected shape, leaving it for Extra.
func (n *Node) decodeKeyword(name string, value json.RawMessage) (bool, error) {
	switch name {
	case "type":
		var single string
		if json.Unmarshal(value, &single) == nil {
			n.Types = []string{single}
			return true, nil
		}
		var list []string
		if json.Unmarshal(value, &list) == nil && len(list) > 0 {
			n.Types = list
			return true, nil
		}
		return false, nil
	case "title":
		return json.Unmarshal(value, &n.Title) == nil, nil
	case "description":
		return json.Unmarshal(value, &n.Description) == nil, nil
	case "minLength":
		return decodeInt(value, &n.MinLength), nil
	case "maxLength":
		return decodeInt(value, &n.MaxLength), nil
	case "minItems":
		return decodeInt(value, &n.MinItems), nil
	case "maxItems":
		return decodeInt(value, &n.MaxItems), nil
	case "minimum":
		return decodeFloat(value, &n.Minimum), nil
	case "maximum":
		return decodeFloat(value, &n.Maximum), nil
	case "required":
		var list []string
		if json.Unmarshal(value, &list) != nil || list == nil {
			return false, nil
		}
		n.Required = list
		return true, nil
	case "additionalProperties":
		n.AdditionalProperties = bytes.Clone(value)
		return true, nil
	case "additionalItems":
		n.AdditionalItems = bytes.Clone(value)
		return true, nil
	case "properties":
		trimmed := bytes.TrimSpace(value)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return false, nil
		}
		fields, err := orderedObject(trimmed)
		if err != nil {
			return false, err
		}
		n.Properties = make([]Property, 0, fields.Len())
		for pair := fields.Oldest(); pair != nil; pair = pair.Next() {
			child, err := parseNode(pair.Value)
			if err != nil {
				return false, fmt.Errorf("%s: %w", pair.Key, err)
			}
			n.Properties = append(n.Properties, Property{Name: pair.Key, Schema: child})
		}
		return true, nil
	case "items":
		trimmed := bytes.TrimSpace(value)
		if len(trimmed) == 0 {
			return false, nil
		}
		if trimmed[0] == '[' {
			var list []json.RawMessage
			if err := json.Unmarshal(trimmed, &list); err != nil {
				return false, err
			}
			n.Items = make([]*Node, 0, len(list))
			for i, raw := range list {
				child, err := parseNode(raw)
				if err != nil {
					return false, fmt.Errorf("%d: %w", i, err)
				}
				n.Items = append(n.Items, child)
			}
			n.ItemsTuple = true
			return true, nil
		}
		if trimmed[0] != '{' && trimmed[0] != 't' && trimmed[0] != 'f' {
			return false, nil
		}
		child, err := parseNode(trimmed)
		if err != nil {
			return false, err
		}
		n.Items = []*Node{child}
		n.ItemsTuple = false
		return true, nil
	}
	return false, nil
}

func decodeInt(value json.RawMessage, dst **int) bool {
	var v int
	if json.Unmarshal(value, &v) != nil {
		return false
	}
	*dst = &v
	return true
}

func decodeFloat(value json.RawMessage, dst **float64) bool {
	var v float64
	if json.Unmarshal(value, &v) != nil {
		return false
	}
	*dst = &v
	return true
}

// definitionKeywords hold named subschemas that are reached through $ref.
var definitionKeywords = []string{"definitions", "$defs"}

// EachDefinition calls fn on every schema under definitions and $defs and
// writes the results back in their original order. A keyword whose value is
// not an object is left alone.
func (n *Node) EachDefinition(fn func(*Node)) error {
	for _, name := range definitionKeywords {
		raw, ok := n.Keyword(name)
		if !ok {
			continue
		}
		fields, err := orderedObject(raw)
		if err != nil {
			continue
		}
		var buf bytes.Buffer
		w := &objectWriter{buf: &buf, first: true}
		buf.WriteByte('{')
		for pair := fields.Oldest(); pair != nil; pair = pair.Next() {
			def, err := parseNode(pair.Value)
			if err != nil {
				return fmt.Errorf("%s/%s: %w", name, pair.Key, err)
			}
			fn(def)
			data, err := def.MarshalJSON()
			if err != nil {
				return fmt.Errorf("%s/%s: %w", name, pair.Key, err)
			}
			w.raw(pair.Key, data)
		}
		if w.err != nil {
			return fmt.Errorf("%s: %w", name, w.err)
		}
		buf.WriteByte('}')
		n.SetKeyword(name, buf.Bytes())
	}
	return nil
}
