package editor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackzampolin/schemaocr/internal/schemadoc"
	"github.com/jackzampolin/schemaocr/internal/validate"
)

const contactSchema = `{
    "$schema": "http://json-schema.org/draft-07/schema#",
    "type": "object",
    "properties": {
        "name": {"type": "string", "format": "hostname"},
        "phones": {"type": "array", "items": [{"type": "string"}, {"type": "integer"}, {"type": "boolean"}], "additionalItems": false},
        "address": {"type": "object", "properties": {"city": {"type": "string"}}, "required": ["city"]}
    },
    "required": ["name"]
}`

func openSample(t *testing.T) *Editor {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contact.json")
	if err := os.WriteFile(path, []byte(contactSchema), 0o644); err != nil {
		t.Fatal(err)
	}
	e, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return e
}

func recordEvents(e *Editor) *[]Event {
	var events []Event
	e.Subscribe(func(ev Event) { events = append(events, ev) })
	return &events
}

func TestOpenMissingPathStartsNewDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.json")
	e, err := Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if e.State() != StateReady || e.Document().Path != path {
		t.Errorf("state=%v path=%q", e.State(), e.Document().Path)
	}
}

func TestOpenFailuresDisableEditor(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"broken json", `{"type": `},
		{"root not object", `[]`},
		{"invalid schema", `{"type": "text"}`},
		{"empty type list", `{"type": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "s.json")
			os.WriteFile(path, []byte(tt.content), 0o644)
			e, err := Open(path, nil)
			if err == nil {
				t.Fatal("Open() expected error")
			}
			if e.State() != StateDisabled {
				t.Fatalf("state = %v", e.State())
			}
			if _, err := e.AddProperty("", "x"); !errors.Is(err, ErrDisabled) {
				t.Errorf("AddProperty on disabled editor error = %v", err)
			}
			if err := e.Save(); !errors.Is(err, ErrDisabled) {
				t.Errorf("Save on disabled editor error = %v", err)
			}
		})
	}
}

func TestSelectFormEnablement(t *testing.T) {
	e := openSample(t)
	tests := []struct {
		pointer string
		want    Fields
	}{
		{"", Fields{Title: true, Description: true}},
		{"/properties/name", Fields{Name: true, Required: true, Types: true, Title: true, Description: true, Length: true}},
		{"/properties/phones", Fields{Name: true, Required: true, Types: true, Title: true, Description: true, ItemCount: true}},
		{"/properties/phones/items/1", Fields{Types: true, Title: true, Description: true, Bounds: true}},
	}
	for _, tt := range tests {
		form, err := e.Select(tt.pointer)
		if err != nil {
			t.Fatalf("Select(%q) error = %v", tt.pointer, err)
		}
		if form.Fields != tt.want {
			t.Errorf("Select(%q).Fields = %+v, want %+v", tt.pointer, form.Fields, tt.want)
		}
	}
	form, _ := e.Select("/properties/name")
	if form.Name != "name" || !form.Required {
		t.Errorf("form = %+v", form)
	}
}

func TestCommitRenameRequiredAndKeepsUnmanagedKeywords(t *testing.T) {
	e := openSample(t)
	events := recordEvents(e)
	form, _ := e.Select("/properties/name")
	form.Name = "full_name"
	form.Required = false
	form.Description = "Person name"
	max := 40
	form.MaxLength = &max

	report, err := e.Commit(form)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if !report.Valid {
		t.Fatalf("report = %s", report)
	}
	root := e.Document().Root
	if root.Properties[0].Name != "full_name" || root.IsRequired("full_name") || root.IsRequired("name") {
		t.Errorf("properties[0]=%q required=%v", root.Properties[0].Name, root.Required)
	}
	n, _ := root.Property("full_name")
	if _, ok := n.Keyword("format"); !ok {
		t.Error("format keyword dropped by commit")
	}
	if n.MaxLength == nil || *n.MaxLength != 40 {
		t.Errorf("MaxLength = %v", n.MaxLength)
	}
	if e.Selected() != "/properties/full_name" {
		t.Errorf("Selected() = %q", e.Selected())
	}
	if _, err := e.Projection().Find("/properties/full_name"); err != nil {
		t.Errorf("projection not patched: %v", err)
	}
	last := (*events)[len(*events)-1]
	if last.Kind != EventNodeChanged {
		t.Errorf("last event = %v", last.Kind)
	}
}

func TestCommitTypeChangeRemovesStructure(t *testing.T) {
	e := openSample(t)
	form, _ := e.Select("/properties/address")
	form.Types = []string{"string"}
	if _, err := e.Commit(form); err != nil {
		t.Fatal(err)
	}
	n, _ := e.Document().Root.Property("address")
	if n.Properties != nil || n.Required != nil {
		t.Errorf("structure kept after type change: %+v", n)
	}
	if len(e.Projection().Children[2].Children) != 0 {
		t.Error("projection still shows removed children")
	}
}

func TestCommitRollsBackInvalidEdit(t *testing.T) {
	e := openSample(t)
	events := recordEvents(e)
	before, _ := e.Document().Bytes()

	form, _ := e.Select("/properties/name")
	bad := -1
	form.MinLength = &bad
	form.Title = "changed"
	report, err := e.Commit(form)
	if err == nil {
		t.Fatal("Commit() accepted an invalid schema")
	}
	rep, ok := validate.ReportFrom(err)
	if !ok || rep.Valid || report != rep {
		t.Errorf("error does not carry the report: %v", err)
	}

	after, _ := e.Document().Bytes()
	if string(before) != string(after) {
		t.Errorf("document changed after rollback:\n%s", after)
	}
	last := (*events)[len(*events)-1]
	if last.Kind != EventValidationFailed || last.Report == nil {
		t.Errorf("last event = %+v", last)
	}
}

func TestCommitRejectsEmptyTypeAndName(t *testing.T) {
	e := openSample(t)
	form, _ := e.Select("/properties/name")
	form.Types = nil
	if _, err := e.Commit(form); !errors.Is(err, schemadoc.ErrEmptyType) {
		t.Errorf("empty type error = %v", err)
	}
	form, _ = e.Select("/properties/name")
	form.Name = ""
	if _, err := e.Commit(form); !errors.Is(err, schemadoc.ErrEmptyName) {
		t.Errorf("empty name error = %v", err)
	}
	form, _ = e.Select("/properties/name")
	form.Name = "phones"
	if _, err := e.Commit(form); !errors.Is(err, schemadoc.ErrDuplicateName) {
		t.Errorf("duplicate name error = %v", err)
	}
}

func TestAddThenDeletePropertyRestores(t *testing.T) {
	e := openSample(t)
	before, _ := e.Document().Bytes()

	// A string node has no properties; the nearest object ancestor is used.
	ptr, err := e.AddProperty("/properties/address/properties/city", "zip")
	if err != nil {
		t.Fatal(err)
	}
	if ptr != "/properties/address/properties/zip" {
		t.Errorf("added pointer = %q", ptr)
	}
	if _, err := e.AddProperty("/properties/address", "zip"); !errors.Is(err, schemadoc.ErrDuplicateName) {
		t.Errorf("duplicate add error = %v", err)
	}
	if err := e.Delete(ptr); err != nil {
		t.Fatal(err)
	}
	if e.Selected() != "/properties/address" {
		t.Errorf("selection after delete = %q", e.Selected())
	}

	after, _ := e.Document().Bytes()
	if string(before) != string(after) {
		t.Errorf("add+delete changed document:\n%s\n%s", before, after)
	}
}

func TestDeleteRoot(t *testing.T) {
	e := openSample(t)
	if err := e.Delete(""); !errors.Is(err, ErrCannotDeleteRoot) {
		t.Errorf("Delete(root) error = %v", err)
	}
}

func TestAddArrayItem(t *testing.T) {
	e := openSample(t)
	ptr, err := e.AddArrayItem("/properties/phones/items/0")
	if err != nil {
		t.Fatal(err)
	}
	if ptr != "/properties/phones/items/3" {
		t.Errorf("pointer = %q", ptr)
	}
	if _, err := e.AddArrayItem("/properties/address"); !errors.Is(err, ErrNoArrayAncestor) {
		t.Errorf("AddArrayItem without array error = %v", err)
	}
}

func TestMoveUpThenDownRestoresOrder(t *testing.T) {
	e := openSample(t)
	before, _ := e.Document().Bytes()

	up, err := e.MoveUp("/properties/phones/items/2")
	if err != nil {
		t.Fatal(err)
	}
	if up != "/properties/phones/items/1" {
		t.Errorf("MoveUp pointer = %q", up)
	}
	down, err := e.MoveDown(up)
	if err != nil {
		t.Fatal(err)
	}
	if down != "/properties/phones/items/2" {
		t.Errorf("MoveDown pointer = %q", down)
	}
	after, _ := e.Document().Bytes()
	if string(before) != string(after) {
		t.Errorf("order changed:\n%s", after)
	}

	if _, err := e.MoveUp("/properties/phones/items/0"); !errors.Is(err, ErrCannotMove) {
		t.Errorf("MoveUp at start error = %v", err)
	}
	if _, err := e.MoveDown("/properties/address"); !errors.Is(err, ErrCannotMove) {
		t.Errorf("MoveDown at end error = %v", err)
	}
}

func TestValidateInstance(t *testing.T) {
	e := openSample(t)
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(good, []byte(`{"name":"example.com","phones":["555",1,true]}`), 0o644)
	os.WriteFile(bad, []byte(`{"phones":["555","x"]}`), 0o644)

	report, err := e.ValidateInstance(good)
	if err != nil || !report.Valid {
		t.Errorf("good instance: %v %v", report, err)
	}
	report, err = e.ValidateInstance(bad)
	if err != nil {
		t.Fatal(err)
	}
	if report.Valid || len(report.Errors) != 2 {
		t.Fatalf("bad instance report = %s", report)
	}
	if report.Errors[0].Path != `$` || report.Errors[1].Path != `$["phones"][1]` {
		t.Errorf("paths = %q %q", report.Errors[0].Path, report.Errors[1].Path)
	}
	if _, err := e.ValidateInstance(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing data file")
	}
}

func TestSaveReloadsValid(t *testing.T) {
	e := openSample(t)
	events := recordEvents(e)
	e.AddProperty("", "email")
	out := filepath.Join(t.TempDir(), "saved.json")
	if err := e.SaveAs(out); err != nil {
		t.Fatal(err)
	}
	reopened, err := Open(out, nil)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	report, err := reopened.ValidateSchema()
	if err != nil || !report.Valid {
		t.Errorf("reloaded schema invalid: %v %v", report, err)
	}
	if (*events)[len(*events)-1].Kind != EventSaved {
		t.Error("missing saved event")
	}
}

func TestUnsubscribe(t *testing.T) {
	e := openSample(t)
	calls := 0
	unsubscribe := e.Subscribe(func(Event) { calls++ })
	e.Select("")
	unsubscribe()
	e.Select("")
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
