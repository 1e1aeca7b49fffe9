package ocr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackzampolin/schemaocr/internal/validate"
)

// maxRepairAttempts bounds the extra requests made after invalid output.
const maxRepairAttempts = 2

// parseStructuredJSON parses JSON from model output, with lightweight recovery
// for markdown code fences and surrounding text. Key order is kept.
func parseStructuredJSON(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if extracted := extractJSONCandidate(content); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}

	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" || !json.Valid([]byte(candidate)) {
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(candidate)); err != nil {
			return nil, fmt.Errorf("failed to normalize structured output: %w", err)
		}
		return buf.Bytes(), nil
	}

	return nil, fmt.Errorf("failed to parse structured JSON")
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}

	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func extractJSONCandidate(content string) string {
	trimmed := strings.TrimSpace(content)
	objectStart := strings.Index(trimmed, "{")
	arrayStart := strings.Index(trimmed, "[")

	start, closeChar := -1, ""
	switch {
	case objectStart >= 0 && (arrayStart < 0 || objectStart < arrayStart):
		start, closeChar = objectStart, "}"
	case arrayStart >= 0:
		start, closeChar = arrayStart, "]"
	default:
		return ""
	}

	end := strings.LastIndex(trimmed, closeChar)
	if end < start {
		return ""
	}
	return strings.TrimSpace(trimmed[start : end+1])
}

// validateStructuredJSON checks parsed output against the schema the model
// was given.
func validateStructuredJSON(schema any, parsed json.RawMessage) error {
	if schema == nil {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(parsed))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode structured JSON for validation: %w", err)
	}
	report, err := validate.Instance(schema, doc)
	if err != nil {
		return err
	}
	if err := report.Err(); err != nil {
		return fmt.Errorf("structured output does not match schema: %w", err)
	}
	return nil
}

func structuredRepairPrompt(schema any, lastOutput string, issue error) string {
	schemaText, _ := json.Marshal(schema)
	lastOutput = strings.TrimSpace(lastOutput)
	if len(lastOutput) > 12000 {
		lastOutput = lastOutput[:12000] + "\n...[truncated]"
	}

	return fmt.Sprintf(`Return ONLY valid JSON (no markdown, no commentary) that strictly conforms to this schema.

Schema:
%s

Your previous output:
%s

Validation issue:
%v`, schemaText, lastOutput, issue)
}
