package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	defaultModel           = "gpt-5-mini"
	defaultReasoningEffort = "minimal"
)

// OpenAIConfig holds configuration for the OpenAI client.
type OpenAIConfig struct {
	APIKey          string
	Model           string
	ReasoningEffort string        // "minimal" (default); "none" omits the parameter
	MaxRetries      int           // Retry attempts for SDK transport
	RepairDelay     time.Duration // Pause before asking the model to repair its output
	Timeout         time.Duration // HTTP timeout
	BaseURL         string        // Optional (tests, proxies)
	HTTPClient      *http.Client  // Optional (tests)
	Logger          *slog.Logger
}

// OpenAIClient implements Client with the official OpenAI SDK.
type OpenAIClient struct {
	model           string
	reasoningEffort string
	repairDelay     time.Duration
	client          openai.Client
	logger          *slog.Logger
}

// NewOpenAIClient creates a new OpenAI OCR client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.ReasoningEffort == "" {
		cfg.ReasoningEffort = defaultReasoningEffort
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}
	if cfg.RepairDelay == 0 {
		cfg.RepairDelay = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		model:           cfg.Model,
		reasoningEffort: cfg.ReasoningEffort,
		repairDelay:     cfg.RepairDelay,
		client:          openai.NewClient(opts...),
		logger:          cfg.Logger,
	}
}

// Model returns the configured model.
func (c *OpenAIClient) Model() string {
	return c.model
}

// ListModels returns the models visible to the API key, newest first.
func (c *OpenAIClient) ListModels(ctx context.Context) ([]Model, error) {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("openai models list failed: %w", mapOpenAIError(err))
	}
	if page == nil {
		return nil, fmt.Errorf("openai models list returned nil response")
	}
	models := make([]Model, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, Model{
			ID:      m.ID,
			Created: time.Unix(m.Created, 0).UTC(),
			OwnedBy: m.OwnedBy,
		})
	}
	sort.SliceStable(models, func(i, j int) bool {
		return models[i].Created.After(models[j].Created)
	})
	return models, nil
}

// Extract sends one image and returns schema-conforming JSON. Output that
// does not parse or validate is sent back to the model with a repair prompt,
// up to maxRepairAttempts times. API errors are not retried here; the SDK
// already retries transport failures.
func (c *OpenAIClient) Extract(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if req.DataURL == "" {
		return nil, fmt.Errorf("image is required")
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		prompt = DefaultPrompt
	}

	start := time.Now()
	result := &Result{RequestID: uuid.New().String(), Model: c.model}
	logger := c.logger.With("request_id", result.RequestID, "input", req.Name, "model", c.model)

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: req.DataURL}),
			}),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   SchemaName,
					Strict: openai.Bool(true),
					Schema: req.Schema,
				},
			},
		},
	}
	if c.reasoningEffort != "none" {
		params.ReasoningEffort = openai.ReasoningEffort(c.reasoningEffort)
	}

	var lastOutput string
	err := retry.Do(
		func() error {
			result.Attempts++
			completion, err := c.client.Chat.Completions.New(ctx, params)
			if err != nil {
				return retry.Unrecoverable(mapOpenAIError(err))
			}
			result.Usage.PromptTokens += completion.Usage.PromptTokens
			result.Usage.CompletionTokens += completion.Usage.CompletionTokens
			result.Usage.TotalTokens += completion.Usage.TotalTokens
			if len(completion.Choices) == 0 {
				return ErrEmptyContent
			}
			msg := completion.Choices[0].Message
			if msg.Refusal != "" {
				return retry.Unrecoverable(&APIError{Kind: ErrorRequest, Message: "model refused: " + msg.Refusal})
			}
			lastOutput = msg.Content

			parsed, err := parseStructuredJSON(msg.Content)
			if err == nil {
				err = validateStructuredJSON(req.Schema, parsed)
			}
			if err != nil {
				logger.Warn("structured output rejected", "attempt", result.Attempts, "error", err)
				params.Messages = append(params.Messages,
					openai.AssistantMessage(msg.Content),
					openai.UserMessage(structuredRepairPrompt(req.Schema, msg.Content, err)),
				)
				return err
			}
			result.Data = parsed
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(maxRepairAttempts+1)),
		retry.Delay(c.repairDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	result.Duration = time.Since(start)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logger.Error("ocr request failed", "error", err)
			return nil, err
		}
		return nil, &OutputError{Attempts: result.Attempts, Output: lastOutput, Err: err}
	}
	logger.Debug("ocr request complete",
		"attempts", result.Attempts,
		"total_tokens", result.Usage.TotalTokens,
		"duration", result.Duration)
	return result, nil
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		out := &APIError{Status: apiErr.StatusCode, Message: apiErr.Message, Err: err}
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			out.Kind = ErrorAuth
		case apiErr.StatusCode == http.StatusTooManyRequests:
			out.Kind = ErrorRateLimit
			if apiErr.Response != nil {
				out.RetryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
			}
		case apiErr.StatusCode == http.StatusNotFound || apiErr.Code == "model_not_found":
			out.Kind = ErrorModel
		case apiErr.StatusCode >= 500:
			out.Kind = ErrorServer
		default:
			out.Kind = ErrorRequest
		}
		return out
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &APIError{Kind: ErrorConnection, Message: netErr.Error(), Err: err}
	}
	return err
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

var _ Client = (*OpenAIClient)(nil)
