package tree

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/jackzampolin/schemaocr/internal/schemadoc"
)

const sample = `{
    "type": "object",
    "properties": {
        "name": {"type": "string", "description": "Full name"},
        "a/b": {"type": "integer"},
        "tags": {"type": "array", "items": {"type": "string"}},
        "pair": {"type": "array", "items": [{"type": "number"}, {"type": ["string", "null"]}], "additionalItems": false},
        "address": {"type": "object", "properties": {"city": {"type": "string"}}, "required": ["city"]}
    },
    "required": ["name"]
}`

func buildSample(t *testing.T) (*schemadoc.Node, *Node) {
	t.Helper()
	root, err := schemadoc.Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	return root, Build(root)
}

func TestBuildProjection(t *testing.T) {
	_, proj := buildSample(t)

	if proj.Label != "root" || proj.Marker != MarkerRequired {
		t.Errorf("root row = %q %q", proj.Label, proj.Marker)
	}
	if len(proj.Children) != 5 {
		t.Fatalf("root children = %d, want 5", len(proj.Children))
	}

	name := proj.Children[0]
	if name.Marker != MarkerRequired || name.Description != "Full name" || name.Role.Kind != RoleProperty {
		t.Errorf("name row = %+v", name)
	}
	if proj.Children[1].Marker != "" {
		t.Errorf("optional property marked %q", proj.Children[1].Marker)
	}

	pair := proj.Children[3]
	if len(pair.Children) != 2 || pair.Children[1].Marker != MarkerElement {
		t.Fatalf("pair children = %+v", pair.Children)
	}
	if pair.Children[1].TypeLabel != "string | null" {
		t.Errorf("TypeLabel = %q", pair.Children[1].TypeLabel)
	}
}

func TestPointers(t *testing.T) {
	_, proj := buildSample(t)
	want := []string{
		"",
		"/properties/name",
		"/properties/a~1b",
		"/properties/tags",
		"/properties/tags/items",
		"/properties/pair",
		"/properties/pair/items/0",
		"/properties/pair/items/1",
		"/properties/address",
		"/properties/address/properties/city",
	}
	var got []string
	proj.Walk(func(n *Node) bool {
		got = append(got, n.Pointer)
		return true
	})
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("pointers =\n%v\nwant\n%v", got, want)
	}
}

func TestResolve(t *testing.T) {
	root, _ := buildSample(t)
	tests := []struct {
		pointer  string
		wantType string
		wantKind RoleKind
		wantErr  bool
	}{
		{pointer: "", wantType: "object", wantKind: RoleRoot},
		{pointer: "/", wantType: "object", wantKind: RoleRoot},
		{pointer: "/properties/a~1b", wantType: "integer", wantKind: RoleProperty},
		{pointer: "/properties/tags/items", wantType: "string", wantKind: RoleArrayItem},
		{pointer: "/properties/pair/items/1", wantType: "string | null", wantKind: RoleArrayItem},
		{pointer: "/properties/address/properties/city", wantType: "string", wantKind: RoleProperty},
		{pointer: "/properties/missing", wantErr: true},
		{pointer: "/properties/pair/items/9", wantErr: true},
		{pointer: "/definitions/x", wantErr: true},
		{pointer: "properties", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.pointer, func(t *testing.T) {
			n, role, err := Resolve(root, tt.pointer)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Resolve(%q) expected error", tt.pointer)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.pointer, err)
			}
			if n.TypeLabel() != tt.wantType || role.Kind != tt.wantKind {
				t.Errorf("Resolve(%q) = %s/%v", tt.pointer, n.TypeLabel(), role.Kind)
			}
		})
	}
}

func TestParentPointer(t *testing.T) {
	tests := map[string]string{
		"":                                    "",
		"/properties/name":                    "",
		"/properties/tags/items":              "/properties/tags",
		"/properties/pair/items/1":            "/properties/pair",
		"/properties/address/properties/city": "/properties/address",
		"/properties/items":                   "",
		"/properties/items/items":             "/properties/items",
		"/properties/properties/items":        "/properties/properties",
		"/items/0/properties/x":               "/items/0",
	}
	for in, want := range tests {
		if got := ParentPointer(in); got != want {
			t.Errorf("ParentPointer(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFindAndRebuild(t *testing.T) {
	root, proj := buildSample(t)
	addr, err := proj.Find("/properties/address")
	if err != nil {
		t.Fatal(err)
	}

	schema, _ := root.Property("address")
	schema.AddProperty("zip", nil)
	schema.Description = "Postal address"
	Rebuild(addr)

	if len(addr.Children) != 2 || addr.Description != "Postal address" {
		t.Errorf("after Rebuild children=%d description=%q", len(addr.Children), addr.Description)
	}
	if _, err := proj.Find("/properties/address/properties/zip"); err != nil {
		t.Errorf("Find(zip) error = %v", err)
	}
	if _, err := proj.Find("/properties/nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Find(nope) error = %v", err)
	}
	if addr.Children[0].Parent != addr {
		t.Error("Rebuild did not link children to their parent")
	}
}

func TestRender(t *testing.T) {
	_, proj := buildSample(t)
	var buf bytes.Buffer
	if err := Render(&buf, proj, NoSelection); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"root", "name", "Full name", "address", "city", "[1]", "string | null"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render output missing %q:\n%s", want, out)
		}
	}
}
