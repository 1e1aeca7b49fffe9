package ocr

import (
	"errors"
	"strings"
	"testing"
)

func TestParseStructuredJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{name: "plain object keeps key order", content: `{"z": 1, "a": [1, 2]}`, want: `{"z":1,"a":[1,2]}`},
		{name: "code fence", content: "```json\n{\"total\": 12.5}\n```", want: `{"total":12.5}`},
		{name: "surrounding prose", content: "Here you go: {\"name\": \"Ada\"} hope it helps", want: `{"name":"Ada"}`},
		{name: "non ascii kept", content: `{"city":"Zürich"}`, want: `{"city":"Zürich"}`},
		{name: "empty", content: "   ", wantErr: true},
		{name: "garbage", content: "no json here", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseStructuredJSON(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseStructuredJSON() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}

	if _, err := parseStructuredJSON(""); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("empty content error = %v", err)
	}
}

func TestValidateStructuredJSON(t *testing.T) {
	schema := map[string]any{
		"type":                 "object",
		"properties":           map[string]any{"n": map[string]any{"type": "integer"}},
		"required":             []any{"n"},
		"additionalProperties": false,
	}
	if err := validateStructuredJSON(schema, []byte(`{"n":3}`)); err != nil {
		t.Errorf("valid output rejected: %v", err)
	}
	err := validateStructuredJSON(schema, []byte(`{"n":"3","extra":true}`))
	if err == nil {
		t.Fatal("invalid output accepted")
	}
	if !strings.Contains(err.Error(), "does not match schema") {
		t.Errorf("error = %v", err)
	}
}

func TestStructuredRepairPromptTruncates(t *testing.T) {
	long := strings.Repeat("x", 13000)
	prompt := structuredRepairPrompt(map[string]any{"type": "object"}, long, errors.New("bad"))
	if !strings.Contains(prompt, "...[truncated]") || !strings.Contains(prompt, `{"type":"object"}`) {
		t.Errorf("prompt = %.200s", prompt)
	}
}
