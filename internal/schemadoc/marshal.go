package schemadoc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Extra keywords written ahead of the typed fields.
var leadingKeywords = []string{"$schema", "$id"}

// MarshalJSON writes the node with a stable key order and no HTML escaping.
func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Marshal renders a document body with 4-space indentation and a trailing newline.
func Marshal(n *Node) ([]byte, error) {
	var compact bytes.Buffer
	if err := n.encode(&compact); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "    "); err != nil {
		return nil, fmt.Errorf("failed to indent schema: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

type objectWriter struct {
	buf   *bytes.Buffer
	first bool
	err   error
}

func (w *objectWriter) key(name string) {
	if !w.first {
		w.buf.WriteByte(',')
	}
	w.first = false
	if w.err == nil {
		w.err = writeKey(w.buf, name)
	}
}

func (w *objectWriter) value(v any) {
	if w.err != nil {
		return
	}
	w.err = writeValue(w.buf, v)
}

func (w *objectWriter) raw(name string, v json.RawMessage) {
	if v == nil || w.err != nil {
		return
	}
	w.key(name)
	var compact bytes.Buffer
	if err := json.Compact(&compact, v); err != nil {
		w.err = fmt.Errorf("%s: %w", name, err)
		return
	}
	w.buf.Write(compact.Bytes())
}

func (w *objectWriter) field(name string, v any) {
	if w.err != nil {
		return
	}
	w.key(name)
	w.value(v)
}

func writeValue(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// Encode appends a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}

func writeKey(buf *bytes.Buffer, name string) error {
	if err := writeValue(buf, name); err != nil {
		return err
	}
	buf.WriteByte(':')
	return nil
}

func (n *Node) encode(buf *bytes.Buffer) error {
	switch {
	case n == nil:
		buf.WriteString("{}")
		return nil
	case n.Boolean != nil:
		buf.WriteString(strconv.FormatBool(*n.Boolean))
		return nil
	case n.Invalid != nil:
		return json.Compact(buf, n.Invalid)
	}

	w := &objectWriter{buf: buf, first: true}
	buf.WriteByte('{')

	for _, name := range leadingKeywords {
		if v, ok := n.Keyword(name); ok {
			w.raw(name, v)
		}
	}
	if n.Title != "" {
		w.field("title", n.Title)
	}
	if n.Description != "" {
		w.field("description", n.Description)
	}
	switch len(n.Types) {
	case 0:
	case 1:
		w.field("type", n.Types[0])
	default:
		w.field("type", n.Types)
	}
	if n.MinLength != nil {
		w.field("minLength", *n.MinLength)
	}
	if n.MaxLength != nil {
		w.field("maxLength", *n.MaxLength)
	}
	if n.Minimum != nil {
		w.field("minimum", *n.Minimum)
	}
	if n.Maximum != nil {
		w.field("maximum", *n.Maximum)
	}
	if n.MinItems != nil {
		w.field("minItems", *n.MinItems)
	}
	if n.MaxItems != nil {
		w.field("maxItems", *n.MaxItems)
	}

	if n.Properties != nil && w.err == nil {
		w.key("properties")
		buf.WriteByte('{')
		for i, p := range n.Properties {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeKey(buf, p.Name); err != nil {
				return err
			}
			if err := p.Schema.encode(buf); err != nil {
				return fmt.Errorf("properties.%s: %w", p.Name, err)
			}
		}
		buf.WriteByte('}')
	}
	if n.Required != nil {
		w.field("required", n.Required)
	}
	w.raw("additionalProperties", n.AdditionalProperties)

	if n.Items != nil && w.err == nil {
		w.key("items")
		if !n.ItemsTuple && len(n.Items) == 1 {
			if err := n.Items[0].encode(buf); err != nil {
				return fmt.Errorf("items: %w", err)
			}
		} else {
			buf.WriteByte('[')
			for i, item := range n.Items {
				if i > 0 {
					buf.WriteByte(',')
				}
				if err := item.encode(buf); err != nil {
					return fmt.Errorf("items.%d: %w", i, err)
				}
			}
			buf.WriteByte(']')
		}
	}
	w.raw("additionalItems", n.AdditionalItems)

	for _, kw := range n.Extra {
		if kw.Name == "$schema" || kw.Name == "$id" {
			continue
		}
		w.raw(kw.Name, kw.Value)
	}
	if w.err != nil {
		return w.err
	}
	buf.WriteByte('}')
	return nil
}

// Value converts the node into plain Go values (map[string]any and friends),
// the form the validator and the model API consume.
func (n *Node) Value() (any, error) {
	data, err := n.MarshalJSON()
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	return v, nil
}
