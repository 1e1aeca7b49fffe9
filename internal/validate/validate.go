// Package validate checks schema documents against the draft-07 meta-schema
// and instance data against an authored schema.
package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-openapi/jsonpointer"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const draft07URL = "http://json-schema.org/draft-07/schema"

var (
	metaOnce   sync.Once
	metaSchema *jsonschema.Schema
	metaErr    error
)

func draft07() (*jsonschema.Schema, error) {
	metaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft7
		metaSchema, metaErr = c.Compile(draft07URL)
	})
	return metaSchema, metaErr
}

// Kind distinguishes schema reports from instance reports.
type Kind int

const (
	KindSchema Kind = iota
	KindInstance
)

// Violation is one failed constraint.
type Violation struct {
	// Path locates the failing value, e.g. $["items"][0] or schema["properties"].
	Path    string   `json:"path" yaml:"path"`
	Tokens  []string `json:"-" yaml:"-"`
	Message string   `json:"message" yaml:"message"`
}

// Report is the outcome of a validation run.
type Report struct {
	Kind   Kind        `json:"-" yaml:"-"`
	Valid  bool        `json:"valid" yaml:"valid"`
	Errors []Violation `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func (r *Report) String() string {
	if r.Valid {
		if r.Kind == KindSchema {
			return "Schema is valid."
		}
		return "Data fits this schema."
	}
	var b strings.Builder
	if r.Kind == KindSchema {
		b.WriteString("Schema is invalid:\n")
	} else {
		b.WriteString("Data doesn't fit this schema:\n")
	}
	for _, v := range r.Errors {
		fmt.Fprintf(&b, "At %s, %s.\n", v.Path, v.Message)
	}
	return b.String()
}

// Err returns nil for a valid report and a *Error wrapping it otherwise.
func (r *Report) Err() error {
	if r.Valid {
		return nil
	}
	return &Error{Report: r}
}

// Error carries a failed report through error returns.
type Error struct {
	Report *Report
}

func (e *Error) Error() string {
	return strings.TrimSuffix(e.Report.String(), "\n")
}

// ReportFrom extracts the report from an error chain.
func ReportFrom(err error) (*Report, bool) {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Report, true
	}
	return nil, false
}

// Schema validates doc against the draft-07 meta-schema and reports the
// first structural error.
func Schema(doc any) (*Report, error) {
	meta, err := draft07()
	if err != nil {
		return nil, fmt.Errorf("failed to load draft-07 meta-schema: %w", err)
	}
	doc = normalize(doc)
	report := &Report{Kind: KindSchema, Valid: true}
	verr := meta.Validate(doc)
	if verr == nil {
		return report, nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(verr, &ve) {
		return nil, fmt.Errorf("failed to validate schema: %w", verr)
	}
	report.Valid = false
	leaves := collectLeaves(ve, doc, "schema")
	sortViolations(leaves)
	report.Errors = leaves[:1]
	return report, nil
}

// Compile turns a schema value into a validator. The schema is assumed to be
// draft-07 when it does not declare a dialect.
func Compile(schema any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	if err := c.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	compiled, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return compiled, nil
}

// Instance validates instance against schema and reports every violation
// sorted by location.
func Instance(schema, instance any) (*Report, error) {
	compiled, err := Compile(schema)
	if err != nil {
		return nil, err
	}
	return InstanceWith(compiled, instance)
}

// InstanceWith validates instance against an already compiled schema.
func InstanceWith(compiled *jsonschema.Schema, instance any) (*Report, error) {
	instance = normalize(instance)
	report := &Report{Kind: KindInstance, Valid: true}
	verr := compiled.Validate(instance)
	if verr == nil {
		return report, nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(verr, &ve) {
		return nil, fmt.Errorf("failed to validate data: %w", verr)
	}
	report.Valid = false
	report.Errors = collectLeaves(ve, instance, "$")
	sortViolations(report.Errors)
	return report, nil
}

// normalize round-trips values that are not already plain decoded JSON so
// the validator sees maps, slices and json.Number.
func normalize(v any) any {
	switch v.(type) {
	case map[string]any, []any, string, bool, json.Number, float64, nil:
		return v
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return v
	}
	return out
}

func collectLeaves(ve *jsonschema.ValidationError, doc any, prefix string) []Violation {
	if len(ve.Causes) == 0 {
		tokens := pointerTokens(ve.InstanceLocation)
		return []Violation{{
			Path:    formatPath(prefix, tokens, doc),
			Tokens:  tokens,
			Message: ve.Message,
		}}
	}
	var out []Violation
	for _, c := range ve.Causes {
		out = append(out, collectLeaves(c, doc, prefix)...)
	}
	return out
}

func pointerTokens(location string) []string {
	if location == "" || location == "/" {
		return nil
	}
	p, err := jsonpointer.New(location)
	if err != nil {
		return strings.Split(strings.TrimPrefix(location, "/"), "/")
	}
	return p.DecodedTokens()
}

// formatPath renders tokens as ["key"][0]: a token is an index only where
// the value it selects from is an array.
func formatPath(prefix string, tokens []string, doc any) string {
	var b strings.Builder
	b.WriteString(prefix)
	cur := doc
	for _, tok := range tokens {
		switch v := cur.(type) {
		case []any:
			if i, err := strconv.Atoi(tok); err == nil {
				fmt.Fprintf(&b, "[%d]", i)
				if i >= 0 && i < len(v) {
					cur = v[i]
				} else {
					cur = nil
				}
				continue
			}
			cur = nil
		case map[string]any:
			cur = v[tok]
		default:
			cur = nil
		}
		b.WriteString("[")
		b.WriteString(strconv.Quote(tok))
		b.WriteString("]")
	}
	return b.String()
}

func sortViolations(vs []Violation) {
	sort.SliceStable(vs, func(i, j int) bool {
		return lessTokens(vs[i].Tokens, vs[j].Tokens)
	})
}

func lessTokens(a, b []string) bool {
	for k := 0; k < len(a) && k < len(b); k++ {
		if a[k] == b[k] {
			continue
		}
		ai, aerr := strconv.Atoi(a[k])
		bi, berr := strconv.Atoi(b[k])
		if aerr == nil && berr == nil {
			return ai < bi
		}
		return a[k] < b[k]
	}
	return len(a) < len(b)
}
