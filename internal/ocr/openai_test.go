package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const testImageURL = "data:image/png;base64,iVBORw0KGgo="

var nameSchema = map[string]any{
	"type":                 "object",
	"properties":           map[string]any{"name": map[string]any{"type": "string"}},
	"required":             []any{"name"},
	"additionalProperties": false,
}

func completionBody(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "test-model",
		"choices": []any{map[string]any{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
	return string(body)
}

func newTestClient(url string) *OpenAIClient {
	return NewOpenAIClient(OpenAIConfig{
		APIKey:      "test-key",
		Model:       "test-model",
		BaseURL:     url,
		RepairDelay: time.Millisecond,
	})
}

func TestOpenAIExtractSuccess(t *testing.T) {
	var payload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header: %q", got)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody(`{"name": "Ada", "extra_order": 1}`)))
	}))
	defer server.Close()

	schema := map[string]any{"type": "object", "properties": map[string]any{"name": map[string]any{"type": "string"}}}
	res, err := newTestClient(server.URL).Extract(context.Background(), &Request{
		Name:    "scan.png",
		DataURL: testImageURL,
		Schema:  schema,
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if string(res.Data) != `{"name":"Ada","extra_order":1}` {
		t.Errorf("Data = %s", res.Data)
	}
	if res.Attempts != 1 || res.Usage.TotalTokens != 15 || res.RequestID == "" {
		t.Errorf("result = %+v", res)
	}

	if got, _ := payload["model"].(string); got != "test-model" {
		t.Errorf("model = %q", got)
	}
	if got, _ := payload["reasoning_effort"].(string); got != "minimal" {
		t.Errorf("reasoning_effort = %q", got)
	}
	rf, _ := payload["response_format"].(map[string]any)
	if rf["type"] != "json_schema" {
		t.Fatalf("response_format = %v", rf)
	}
	js, _ := rf["json_schema"].(map[string]any)
	if js["name"] != SchemaName || js["strict"] != true || js["schema"] == nil {
		t.Errorf("json_schema = %v", js)
	}

	messages, _ := payload["messages"].([]any)
	if len(messages) != 1 {
		t.Fatalf("messages = %v", messages)
	}
	content, _ := messages[0].(map[string]any)["content"].([]any)
	if len(content) != 2 {
		t.Fatalf("content parts = %v", content)
	}
	text, _ := content[0].(map[string]any)["text"].(string)
	if text != DefaultPrompt {
		t.Errorf("prompt = %q", text)
	}
	image, _ := content[1].(map[string]any)["image_url"].(map[string]any)
	if image["url"] != testImageURL {
		t.Errorf("image_url = %v", image)
	}
}

func TestOpenAIExtractRepairsInvalidOutput(t *testing.T) {
	calls := 0
	var lastMessages []any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		lastMessages, _ = payload["messages"].([]any)
		w.Header().Set("Content-Type", "application/json")
		if calls == 1 {
			_, _ = w.Write([]byte(completionBody(`{"name": 42}`)))
			return
		}
		_, _ = w.Write([]byte(completionBody("```json\n{\"name\": \"Ada\"}\n```")))
	}))
	defer server.Close()

	res, err := newTestClient(server.URL).Extract(context.Background(), &Request{DataURL: testImageURL, Schema: nameSchema})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Attempts != 2 || calls != 2 {
		t.Errorf("attempts = %d calls = %d", res.Attempts, calls)
	}
	if string(res.Data) != `{"name":"Ada"}` {
		t.Errorf("Data = %s", res.Data)
	}
	if len(lastMessages) != 3 {
		t.Errorf("repair request has %d messages, want 3", len(lastMessages))
	}
	if res.Usage.TotalTokens != 30 {
		t.Errorf("usage not accumulated: %+v", res.Usage)
	}
}

func TestOpenAIExtractGivesUpAfterRepairs(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody(`not json`)))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Extract(context.Background(), &Request{DataURL: testImageURL, Schema: nameSchema})
	var outErr *OutputError
	if !errors.As(err, &outErr) {
		t.Fatalf("error = %v, want OutputError", err)
	}
	if outErr.Attempts != maxRepairAttempts+1 || calls != maxRepairAttempts+1 {
		t.Errorf("attempts = %d calls = %d", outErr.Attempts, calls)
	}
	if outErr.Output != "not json" {
		t.Errorf("Output = %q", outErr.Output)
	}
}

func TestOpenAIErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`, ErrorAuth},
		{"rate limit", http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached","type":"requests"}}`, ErrorRateLimit},
		{"unknown model", http.StatusNotFound, `{"error":{"message":"The model does not exist","code":"model_not_found"}}`, ErrorModel},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"Invalid schema for response_format"}}`, ErrorRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "3")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: server.URL, MaxRetries: 0})
			_, err := client.Extract(context.Background(), &Request{DataURL: testImageURL, Schema: nameSchema})
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want APIError", err)
			}
			if apiErr.Kind != tt.wantKind || apiErr.Status != tt.status {
				t.Errorf("APIError = %+v", apiErr)
			}
			if calls != 1 {
				t.Errorf("API errors must not trigger repair attempts, calls = %d", calls)
			}
			if tt.wantKind == ErrorRateLimit && apiErr.RetryAfter != 3*time.Second {
				t.Errorf("RetryAfter = %v", apiErr.RetryAfter)
			}
		})
	}
}

func TestOpenAIListModelsNewestFirst(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[
			{"id":"old","object":"model","created":100,"owned_by":"system"},
			{"id":"new","object":"model","created":300,"owned_by":"system"},
			{"id":"mid","object":"model","created":200,"owned_by":"openai"}
		]}`))
	}))
	defer server.Close()

	models, err := newTestClient(server.URL).ListModels(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, m := range models {
		ids = append(ids, m.ID)
	}
	if strings.Join(ids, ",") != "new,mid,old" {
		t.Errorf("ids = %v", ids)
	}
}

func TestRunDeliversResultThroughTask(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody(`{"name":"Ada"}`)))
	}))
	defer server.Close()

	task := Start(context.Background(), newTestClient(server.URL), &Request{DataURL: testImageURL, Schema: nameSchema})
	var kinds []EventKind
	var res *Result
	for ev := range task.Events {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == EventResult {
			res = ev.Result
		}
	}
	if len(kinds) != 2 || kinds[0] != EventResult || kinds[1] != EventDone {
		t.Errorf("event kinds = %v", kinds)
	}
	if res == nil || string(res.Data) != `{"name":"Ada"}` {
		t.Errorf("result = %+v", res)
	}
}
