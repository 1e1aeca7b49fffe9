package schemadoc

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Document is a schema tree bound to a file.
type Document struct {
	Root *Node
	Path string
}

// New returns the default empty object schema.
func New() *Document {
	root := NewNode(TypeObject)
	root.Extra = []Keyword{{Name: "$schema", Value: json.RawMessage(`"` + Draft07 + `"`)}}
	return &Document{Root: root}
}

// Load reads and parses a schema file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	root, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return &Document{Root: root, Path: path}, nil
}

// Bytes renders the document as it would be saved.
func (d *Document) Bytes() ([]byte, error) {
	return Marshal(d.Root)
}

// Save writes the document to its path.
func (d *Document) Save() error {
	if d.Path == "" {
		return fmt.Errorf("document has no path")
	}
	return d.SaveAs(d.Path)
}

// SaveAs writes the document to path and rebinds it.
func (d *Document) SaveAs(path string) error {
	data, err := d.Bytes()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write schema: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write schema: %w", err)
	}
	d.Path = path
	return nil
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	return &Document{Root: d.Root.Clone(), Path: d.Path}
}

// Value returns the document as plain Go values.
func (d *Document) Value() (any, error) {
	return d.Root.Value()
}
