// Package ocr extracts structured data from images with a chat-completion
// model constrained by a JSON schema.
package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultPrompt is sent with every image unless configured otherwise.
const DefaultPrompt = "Perform OCR on this image and return data that strictly conforms to the provided JSON schema."

// SchemaName is the name the response format is registered under.
const SchemaName = "schema_1"

// NoPicturesNotice is shown when a batch folder holds no supported input.
const NoPicturesNotice = "This folder doesn't contain any picture."

var (
	ErrNoPictures   = errors.New("folder contains no pictures")
	ErrNotImage     = errors.New("input is not a supported image")
	ErrEmptyContent = errors.New("model returned an empty response")
)

// Client is a model backend able to run one OCR request.
type Client interface {
	Extract(ctx context.Context, req *Request) (*Result, error)
	ListModels(ctx context.Context) ([]Model, error)
}

// Request is one image to extract.
type Request struct {
	// Name identifies the input in logs and errors.
	Name string
	// DataURL is the image as a data: URL.
	DataURL string
	// Schema is the strict schema sent to the model, as plain JSON values.
	Schema any
	Prompt string
}

// Result is the structured data extracted from one image.
type Result struct {
	RequestID string          `json:"request_id" yaml:"request_id"`
	Model     string          `json:"model" yaml:"model"`
	Data      json.RawMessage `json:"data" yaml:"-"`
	Attempts  int             `json:"attempts" yaml:"attempts"`
	Usage     Usage           `json:"usage" yaml:"usage"`
	Duration  time.Duration   `json:"duration" yaml:"duration"`
}

// Usage is the token accounting reported by the API.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens" yaml:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens" yaml:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens" yaml:"total_tokens"`
}

// Model is an entry of the provider's model list.
type Model struct {
	ID      string    `json:"id" yaml:"id"`
	Created time.Time `json:"created" yaml:"created"`
	OwnedBy string    `json:"owned_by" yaml:"owned_by"`
}

// ErrorKind classifies remote failures for the user.
type ErrorKind string

const (
	ErrorAuth       ErrorKind = "auth"
	ErrorRateLimit  ErrorKind = "rate_limit"
	ErrorModel      ErrorKind = "model"
	ErrorConnection ErrorKind = "connection"
	ErrorServer     ErrorKind = "server"
	ErrorRequest    ErrorKind = "request"
)

// APIError is a remote failure mapped to a user-facing category.
type APIError struct {
	Kind       ErrorKind
	Status     int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *APIError) Error() string {
	prefix := ""
	switch e.Kind {
	case ErrorAuth:
		prefix = "authentication failed"
	case ErrorRateLimit:
		prefix = "rate limited"
	case ErrorModel:
		prefix = "model unavailable"
	case ErrorConnection:
		prefix = "cannot reach the API"
	case ErrorServer:
		prefix = "API server error"
	default:
		prefix = "API request rejected"
	}
	if e.Status != 0 {
		prefix = fmt.Sprintf("%s (status %d)", prefix, e.Status)
	}
	if e.Message != "" {
		return prefix + ": " + e.Message
	}
	return prefix
}

func (e *APIError) Unwrap() error { return e.Err }

// OutputError reports model output that could not be used after every
// repair attempt.
type OutputError struct {
	Attempts int
	Output   string
	Err      error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("unusable structured output after %d attempts: %v", e.Attempts, e.Err)
}

func (e *OutputError) Unwrap() error { return e.Err }
