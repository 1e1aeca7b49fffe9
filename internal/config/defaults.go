package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// Config keys, as they appear in config.json.
const (
	KeyAPIKey           = "openai_api_key"
	KeyModel            = "openai_model"
	KeyMaxRetries       = "max_retries"
	KeyBaseURL          = "base_url"
	KeyReasoningEffort  = "reasoning_effort"
	KeyTimeoutSeconds   = "timeout_seconds"
	KeyNullableOptional = "nullable_optional"
	KeyPrompt           = "prompt"
)

var (
	// ErrUnknownKey is returned for keys that are not part of the config.
	ErrUnknownKey = errors.New("unknown config key")
	// ErrInvalidValue is returned when a value cannot be converted to the
	// key's type.
	ErrInvalidValue = errors.New("invalid config value")
)

// Entry is one configuration key with its default value.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
}

// DefaultEntries returns the default configuration entries in file order.
func DefaultEntries() []Entry {
	return []Entry{
		{
			Key:         KeyAPIKey,
			Value:       "",
			Description: "OpenAI API key (supports ${ENV_VAR}; falls back to OPENAI_API_KEY)",
		},
		{
			Key:         KeyModel,
			Value:       "gpt-5-mini",
			Description: "Model used for OCR requests",
		},
		{
			Key:         KeyMaxRetries,
			Value:       3,
			Description: "Retry attempts for failed API requests",
		},
		{
			Key:         KeyBaseURL,
			Value:       "",
			Description: "API base URL override (proxies, compatible servers)",
		},
		{
			Key:         KeyReasoningEffort,
			Value:       "minimal",
			Description: `Reasoning effort sent with each request ("none" omits it)`,
		},
		{
			Key:         KeyTimeoutSeconds,
			Value:       300,
			Description: "HTTP timeout in seconds for one request",
		},
		{
			Key:         KeyNullableOptional,
			Value:       false,
			Description: "Send optional properties as required and nullable",
		},
		{
			Key:         KeyPrompt,
			Value:       "",
			Description: "Instruction sent with each image (empty uses the built-in prompt)",
		},
	}
}

// GetDefault returns the default entry for a config key.
// Returns nil if no default exists for the key.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

// Keys lists the known config keys.
func Keys() []string {
	entries := DefaultEntries()
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}

// ParseValue converts a command-line string to the type of key's default.
func ParseValue(key, raw string) (any, error) {
	def := GetDefault(key)
	if def == nil {
		return nil, unknownKey(key)
	}
	var (
		v   any
		err error
	)
	switch def.Value.(type) {
	case int:
		v, err = cast.ToIntE(strings.TrimSpace(raw))
		if err == nil && v.(int) < 0 {
			err = fmt.Errorf("must not be negative")
		}
	case bool:
		v, err = cast.ToBoolE(strings.TrimSpace(raw))
	default:
		v = raw
	}
	if err != nil {
		return nil, fmt.Errorf("%w for %s: %q: %v", ErrInvalidValue, key, raw, err)
	}
	return v, nil
}

func unknownKey(key string) error {
	return fmt.Errorf("%w %q (known keys: %s)", ErrUnknownKey, key, strings.Join(Keys(), ", "))
}
