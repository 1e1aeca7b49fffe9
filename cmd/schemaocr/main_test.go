package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackzampolin/schemaocr/internal/config"
	"github.com/jackzampolin/schemaocr/internal/ocr"
)

// run executes the CLI with a private home directory.
func run(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cfgFile, outputFormat, logLevel = "", "yaml", "error"
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(append([]string{"--home", home, "--env-file", "", "--log-level", "error"}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

const personSchema = `{
    "$schema": "http://json-schema.org/draft-07/schema#",
    "type": "object",
    "properties": {
        "name": {"type": "string"}
    },
    "required": ["name"]
}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSchemaCommands(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(t.TempDir(), "new.json")

	if _, err := run(t, home, "schema", "new", path); err != nil {
		t.Fatalf("schema new: %v", err)
	}
	out, err := run(t, home, "schema", "validate", path)
	if err != nil || !strings.Contains(out, "Schema is valid.") {
		t.Fatalf("schema validate: %v\n%s", err, out)
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	writeFile(t, bad, `{"type": "object", "minLength": -1}`)
	out, err = run(t, home, "schema", "validate", bad)
	if err == nil || !strings.Contains(out, `At schema["minLength"]`) {
		t.Errorf("invalid schema: %v\n%s", err, out)
	}

	person := filepath.Join(t.TempDir(), "person.json")
	writeFile(t, person, personSchema)
	data := filepath.Join(t.TempDir(), "data.json")
	writeFile(t, data, `{"x": 1}`)
	out, err = run(t, home, "schema", "check", person, data)
	if err == nil || !strings.Contains(out, "Data doesn't fit this schema:") {
		t.Errorf("schema check: %v\n%s", err, out)
	}

	out, err = run(t, home, "schema", "strict", person)
	if err != nil || !strings.Contains(out, `"additionalProperties": false`) || strings.Contains(out, "$schema") {
		t.Errorf("schema strict: %v\n%s", err, out)
	}
}

func TestConfigCommands(t *testing.T) {
	home := t.TempDir()
	if _, err := run(t, home, "config", "set", "openai_model", "gpt-test"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	out, err := run(t, home, "-o", "json", "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	var shown config.Config
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("config show output: %v\n%s", err, out)
	}
	if shown.Model != "gpt-test" || shown.MaxRetries != 3 {
		t.Errorf("shown = %+v", shown)
	}
	if _, err := run(t, home, "config", "set", "colour", "red"); err == nil {
		t.Error("expected error for an unknown key")
	}
	out, _ = run(t, home, "config", "path")
	if strings.TrimSpace(out) != filepath.Join(home, "config.json") {
		t.Errorf("config path = %q", out)
	}
}

type stubClient struct{}

func (stubClient) Extract(_ context.Context, req *ocr.Request) (*ocr.Result, error) {
	return &ocr.Result{Data: json.RawMessage(`{"name":"` + filepath.Base(req.Name) + `"}`), Attempts: 1}, nil
}

func (stubClient) ListModels(context.Context) ([]ocr.Model, error) {
	return []ocr.Model{{ID: "gpt-test"}}, nil
}

func TestOCRCommands(t *testing.T) {
	newClient = func(*config.Config, *slog.Logger) ocr.Client { return stubClient{} }
	t.Cleanup(func() { newClient = nil })

	home := t.TempDir()
	dir := t.TempDir()
	person := filepath.Join(dir, "person.json")
	writeFile(t, person, personSchema)
	png := "\x89PNG\r\n\x1a\n" + strings.Repeat("\x00", 32)
	writeFile(t, filepath.Join(dir, "scans", "a.png"), png)
	writeFile(t, filepath.Join(dir, "scans", "b.png"), png)

	ocrOut = ""
	out, err := run(t, home, "ocr", "image", person, filepath.Join(dir, "scans", "a.png"))
	if err != nil || !strings.Contains(out, `"name": "a.png"`) {
		t.Fatalf("ocr image: %v\n%s", err, out)
	}

	results := filepath.Join(dir, "results")
	out, err = run(t, home, "-o", "json", "ocr", "batch", person, filepath.Join(dir, "scans"), "--out", results)
	if err != nil {
		t.Fatalf("ocr batch: %v\n%s", err, out)
	}
	for _, name := range []string{"a.json", "b.json"} {
		if _, err := os.Stat(filepath.Join(results, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	if !strings.Contains(out, "[100%]") {
		t.Errorf("missing progress:\n%s", out)
	}

	empty := filepath.Join(dir, "empty")
	if err := os.MkdirAll(empty, 0o755); err != nil {
		t.Fatal(err)
	}
	out, err = run(t, home, "ocr", "batch", person, empty, "--out", filepath.Join(dir, "none"))
	if err != nil || !strings.Contains(out, ocr.NoPicturesNotice) {
		t.Errorf("empty batch: %v\n%s", err, out)
	}
	if _, err := os.Stat(filepath.Join(dir, "none")); !os.IsNotExist(err) {
		t.Error("empty batch created its output folder")
	}

	t.Setenv("OPENAI_API_KEY", "sk-test")
	out, err = run(t, home, "-o", "json", "config", "models")
	if err != nil || !strings.Contains(out, `"id": "gpt-test"`) {
		t.Errorf("config models: %v\n%s", err, out)
	}
}
