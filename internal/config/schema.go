package config

import (
	"time"

	"github.com/jackzampolin/schemaocr/internal/ocr"
)

// Config holds schemaocr configuration.
// Stored at: {home}/config.json
type Config struct {
	APIKey          string `mapstructure:"openai_api_key" json:"openai_api_key" yaml:"openai_api_key"`       // supports ${ENV_VAR}
	Model           string `mapstructure:"openai_model" json:"openai_model" yaml:"openai_model"`
	MaxRetries      int    `mapstructure:"max_retries" json:"max_retries" yaml:"max_retries"`
	BaseURL         string `mapstructure:"base_url" json:"base_url" yaml:"base_url"`
	ReasoningEffort string `mapstructure:"reasoning_effort" json:"reasoning_effort" yaml:"reasoning_effort"` // "none" omits it
	TimeoutSeconds  int    `mapstructure:"timeout_seconds" json:"timeout_seconds" yaml:"timeout_seconds"`
	// NullableOptional makes every property required in the strict schema,
	// with null added to the type of the ones that were optional.
	NullableOptional bool   `mapstructure:"nullable_optional" json:"nullable_optional" yaml:"nullable_optional"`
	Prompt           string `mapstructure:"prompt" json:"prompt" yaml:"prompt"` // empty uses ocr.DefaultPrompt
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	cfg := &Config{}
	for _, e := range DefaultEntries() {
		_ = cfg.set(e.Key, e.Value)
	}
	return cfg
}

// OpenAIConfig converts the config into client settings, resolving the API
// key.
func (c *Config) OpenAIConfig() ocr.OpenAIConfig {
	return ocr.OpenAIConfig{
		APIKey:          c.ResolveAPIKey(),
		Model:           c.Model,
		ReasoningEffort: c.ReasoningEffort,
		MaxRetries:      c.MaxRetries,
		Timeout:         time.Duration(c.TimeoutSeconds) * time.Second,
		BaseURL:         c.BaseURL,
	}
}

// StrictOptions returns the strict schema options for OCR requests.
func (c *Config) StrictOptions() ocr.StrictOptions {
	return ocr.StrictOptions{NullableOptional: c.NullableOptional}
}

// EffectivePrompt returns the configured prompt or the default one.
func (c *Config) EffectivePrompt() string {
	if c.Prompt == "" {
		return ocr.DefaultPrompt
	}
	return c.Prompt
}

// set assigns a typed value to the field behind key.
func (c *Config) set(key string, value any) error {
	switch key {
	case KeyAPIKey:
		c.APIKey, _ = value.(string)
	case KeyModel:
		c.Model, _ = value.(string)
	case KeyMaxRetries:
		c.MaxRetries, _ = value.(int)
	case KeyBaseURL:
		c.BaseURL, _ = value.(string)
	case KeyReasoningEffort:
		c.ReasoningEffort, _ = value.(string)
	case KeyTimeoutSeconds:
		c.TimeoutSeconds, _ = value.(int)
	case KeyNullableOptional:
		c.NullableOptional, _ = value.(bool)
	case KeyPrompt:
		c.Prompt, _ = value.(string)
	default:
		return unknownKey(key)
	}
	return nil
}
