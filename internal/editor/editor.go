// Package editor is the controller behind the schema editing surfaces. It
// owns the document, its display projection and the current selection, and
// reports every change to subscribers.
package editor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"github.com/jackzampolin/schemaocr/internal/schemadoc"
	"github.com/jackzampolin/schemaocr/internal/tree"
	"github.com/jackzampolin/schemaocr/internal/validate"
)

var (
	ErrDisabled         = errors.New("editor is disabled: the schema could not be opened")
	ErrCannotDeleteRoot = errors.New("cannot delete the root")
	ErrNoObjectAncestor = errors.New("no object schema at or above the selection")
	ErrNoArrayAncestor  = errors.New("no array schema at or above the selection")
	ErrCannotMove       = schemadoc.ErrCannotMove
	ErrTypesLocked      = errors.New("the type of this node cannot be changed")
)

// State is the editor lifecycle state.
type State int

const (
	StateReady State = iota
	StateDisabled
)

func (s State) String() string {
	if s == StateDisabled {
		return "disabled"
	}
	return "ready"
}

// Editor applies edits to one schema document.
//
// An Editor is not safe for concurrent use; it belongs to the goroutine
// running the user interface loop.
type Editor struct {
	doc      *schemadoc.Document
	proj     *tree.Node
	selected string
	state    State
	logger   *slog.Logger

	subs      map[int]func(Event)
	nextSubID int
}

// New returns an editor over doc.
func New(doc *schemadoc.Document, logger *slog.Logger) *Editor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Editor{
		doc:    doc,
		state:  StateReady,
		logger: logger,
		subs:   make(map[int]func(Event)),
	}
	e.proj = tree.Build(doc.Root)
	return e
}

// Open loads the schema at path. A path that does not exist yet starts a new
// document that will be saved there. A file that cannot be read, parsed or
// that is not a valid draft-07 schema yields a disabled editor together with
// the error.
func Open(path string, logger *slog.Logger) (*Editor, error) {
	if path == "" {
		return New(schemadoc.New(), logger), nil
	}
	doc, err := schemadoc.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		d := schemadoc.New()
		d.Path = path
		return New(d, logger), nil
	}
	if err != nil {
		return disabled(logger), fmt.Errorf("failed to open the schema: %w", err)
	}
	e := New(doc, logger)
	report, err := e.ValidateSchema()
	if err != nil {
		return disabled(logger), err
	}
	if !report.Valid {
		return disabled(logger), report.Err()
	}
	return e, nil
}

func disabled(logger *slog.Logger) *Editor {
	e := New(schemadoc.New(), logger)
	e.state = StateDisabled
	return e
}

// State reports whether the editor accepts edits.
func (e *Editor) State() State { return e.state }

// Document returns the document being edited.
func (e *Editor) Document() *schemadoc.Document { return e.doc }

// Projection returns the current display tree.
func (e *Editor) Projection() *tree.Node { return e.proj }

// Selected returns the pointer of the selected node.
func (e *Editor) Selected() string { return e.selected }

// Snapshot returns a deep copy of the schema for use off the editor goroutine.
func (e *Editor) Snapshot() *schemadoc.Node { return e.doc.Root.Clone() }

// Select makes pointer the current node and returns its form.
func (e *Editor) Select(pointer string) (Form, error) {
	n, role, err := tree.Resolve(e.doc.Root, pointer)
	if err != nil {
		return Form{}, err
	}
	if pointer == "/" {
		pointer = ""
	}
	e.selected = pointer
	e.emit(Event{Kind: EventSelected, Pointer: pointer})
	return formFor(pointer, n, role), nil
}

// Form returns the form of the current selection.
func (e *Editor) Form() (Form, error) {
	n, role, err := tree.Resolve(e.doc.Root, e.selected)
	if err != nil {
		return Form{}, err
	}
	return formFor(e.selected, n, role), nil
}

// ValidateSchema checks the document against the draft-07 meta-schema.
func (e *Editor) ValidateSchema() (*validate.Report, error) {
	v, err := e.doc.Value()
	if err != nil {
		return nil, err
	}
	return validate.Schema(v)
}

// ValidateInstance checks the JSON file at path against the document.
func (e *Editor) ValidateInstance(path string) (*validate.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open the data file: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var instance any
	if err := dec.Decode(&instance); err != nil {
		return nil, fmt.Errorf("failed to open the data file: %w", err)
	}
	schema, err := e.doc.Value()
	if err != nil {
		return nil, err
	}
	return validate.Instance(schema, instance)
}

// edit runs fn against the live document. The document is snapshotted first;
// when fn fails, or turns a valid document invalid, the snapshot is restored.
// On success the display subtree at rebuild is re-created and selection moves
// to the pointer fn returns.
func (e *Editor) edit(kind EventKind, rebuild string, fn func() (string, error)) (*validate.Report, error) {
	if e.state == StateDisabled {
		return nil, ErrDisabled
	}
	before, err := e.ValidateSchema()
	if err != nil {
		return nil, err
	}
	snapshot := e.doc.Root.Clone()
	restore := func() {
		e.doc.Root = snapshot
		e.proj = tree.Build(e.doc.Root)
	}

	selected, err := fn()
	if err != nil {
		restore()
		return nil, err
	}
	after, err := e.ValidateSchema()
	if err != nil {
		restore()
		return nil, err
	}
	if before.Valid && !after.Valid {
		restore()
		e.logger.Debug("edit rolled back", "pointer", selected, "errors", len(after.Errors))
		e.emit(Event{Kind: EventValidationFailed, Pointer: e.selected, Report: after})
		return after, after.Err()
	}

	if node, err := e.proj.Find(rebuild); err == nil {
		tree.Rebuild(node)
	} else {
		e.proj = tree.Build(e.doc.Root)
	}
	e.selected = selected
	e.emit(Event{Kind: kind, Pointer: selected})
	if !after.Valid {
		e.emit(Event{Kind: EventValidationFailed, Pointer: selected, Report: after})
	}
	return after, nil
}

// Commit writes form into the node it was built for.
func (e *Editor) Commit(form Form) (*validate.Report, error) {
	pointer := form.Pointer
	return e.edit(EventNodeChanged, tree.ParentPointer(pointer), func() (string, error) {
		n, role, err := tree.Resolve(e.doc.Root, pointer)
		if err != nil {
			return "", err
		}
		if err := form.apply(n, role); err != nil {
			return "", err
		}
		if role.Kind != tree.RoleProperty {
			return pointer, nil
		}
		name := role.Name
		if form.Name != name {
			if err := role.Parent.RenameProperty(name, form.Name); err != nil {
				return "", err
			}
			name = form.Name
			pointer = tree.Join(append(tokensOf(tree.ParentPointer(pointer)), "properties", name)...)
		}
		if err := role.Parent.SetRequired(name, form.Required); err != nil {
			return "", err
		}
		return pointer, nil
	})
}

// AddProperty adds a string property called name to the object schema at
// pointer, or to its nearest object ancestor.
func (e *Editor) AddProperty(pointer, name string) (string, error) {
	target, err := e.ancestor(pointer, (*schemadoc.Node).IsObject, ErrNoObjectAncestor)
	if err != nil {
		return "", err
	}
	var added string
	_, err = e.edit(EventStructureChanged, target, func() (string, error) {
		n, _, err := tree.Resolve(e.doc.Root, target)
		if err != nil {
			return "", err
		}
		if err := n.AddProperty(name, schemadoc.DefaultForType(schemadoc.TypeString)); err != nil {
			return "", err
		}
		added = tree.Join(append(tokensOf(target), "properties", n.Properties[len(n.Properties)-1].Name)...)
		return added, nil
	})
	return added, err
}

// AddArrayItem appends a string item schema to the array schema at pointer,
// or to its nearest array ancestor.
func (e *Editor) AddArrayItem(pointer string) (string, error) {
	target, err := e.ancestor(pointer, (*schemadoc.Node).IsArray, ErrNoArrayAncestor)
	if err != nil {
		return "", err
	}
	var added string
	_, err = e.edit(EventStructureChanged, target, func() (string, error) {
		n, _, err := tree.Resolve(e.doc.Root, target)
		if err != nil {
			return "", err
		}
		if err := n.AppendItem(schemadoc.DefaultForType(schemadoc.TypeString)); err != nil {
			return "", err
		}
		added = tree.Join(append(tokensOf(target), "items", strconv.Itoa(len(n.Items)-1))...)
		return added, nil
	})
	return added, err
}

// Delete removes the node at pointer and selects its parent.
func (e *Editor) Delete(pointer string) error {
	parent := tree.ParentPointer(pointer)
	_, err := e.edit(EventStructureChanged, parent, func() (string, error) {
		_, role, err := tree.Resolve(e.doc.Root, pointer)
		if err != nil {
			return "", err
		}
		switch role.Kind {
		case tree.RoleProperty:
			err = role.Parent.RemoveProperty(role.Name)
		case tree.RoleArrayItem:
			err = role.Parent.RemoveItem(role.Index)
		default:
			err = ErrCannotDeleteRoot
		}
		return parent, err
	})
	return err
}

// MoveUp moves the node at pointer one position towards the start of its
// parent's properties or items and returns its new pointer.
func (e *Editor) MoveUp(pointer string) (string, error) {
	return e.move(pointer, -1)
}

// MoveDown moves the node at pointer one position towards the end.
func (e *Editor) MoveDown(pointer string) (string, error) {
	return e.move(pointer, 1)
}

func (e *Editor) move(pointer string, delta int) (string, error) {
	parent := tree.ParentPointer(pointer)
	var moved string
	_, err := e.edit(EventStructureChanged, parent, func() (string, error) {
		_, role, err := tree.Resolve(e.doc.Root, pointer)
		if err != nil {
			return "", err
		}
		switch role.Kind {
		case tree.RoleProperty:
			if err := role.Parent.MoveProperty(role.Name, delta); err != nil {
				return "", err
			}
			moved = pointer
		case tree.RoleArrayItem:
			if err := role.Parent.MoveItem(role.Index, delta); err != nil {
				return "", err
			}
			moved = tree.Join(append(tokensOf(parent), "items", strconv.Itoa(role.Index+delta))...)
		default:
			return "", ErrCannotMove
		}
		return moved, nil
	})
	return moved, err
}

// Save writes the document to its path. Invalid schemas are not written.
func (e *Editor) Save() error {
	return e.SaveAs(e.doc.Path)
}

// SaveAs writes the document to path and binds it there.
func (e *Editor) SaveAs(path string) error {
	if e.state == StateDisabled {
		return ErrDisabled
	}
	if path == "" {
		return fmt.Errorf("no file path to save to")
	}
	report, err := e.ValidateSchema()
	if err != nil {
		return err
	}
	if !report.Valid {
		e.emit(Event{Kind: EventValidationFailed, Pointer: e.selected, Report: report})
		return report.Err()
	}
	if err := e.doc.SaveAs(path); err != nil {
		return err
	}
	e.logger.Info("schema saved", "path", path)
	e.emit(Event{Kind: EventSaved, Pointer: e.selected, Path: path})
	return nil
}

// ancestor returns pointer or the closest pointer above it whose schema
// satisfies match.
func (e *Editor) ancestor(pointer string, match func(*schemadoc.Node) bool, notFound error) (string, error) {
	if e.state == StateDisabled {
		return "", ErrDisabled
	}
	if pointer == "/" {
		pointer = ""
	}
	for {
		n, _, err := tree.Resolve(e.doc.Root, pointer)
		if err != nil {
			return "", err
		}
		if match(n) {
			return pointer, nil
		}
		if pointer == "" {
			return "", notFound
		}
		pointer = tree.ParentPointer(pointer)
	}
}

func tokensOf(pointer string) []string {
	if pointer == "" || pointer == "/" {
		return nil
	}
	return tree.Split(pointer)
}
