// Package svcctx provides service context for dependency injection via context.
// This package is separate from cmd to keep the shell free of cobra.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/schemaocr/internal/config"
	"github.com/jackzampolin/schemaocr/internal/home"
	"github.com/jackzampolin/schemaocr/internal/ocr"
)

// ClientFactory builds an OCR client from the current configuration.
type ClientFactory func(cfg *config.Config, logger *slog.Logger) ocr.Client

// Services holds all core services that flow through context.
type Services struct {
	Config    *config.Manager
	Home      *home.Dir
	Logger    *slog.Logger
	NewClient ClientFactory
}

// Client builds an OCR client for cfg, or for the current configuration
// when cfg is nil.
func (s *Services) Client(cfg *config.Config) ocr.Client {
	if cfg == nil {
		cfg = s.Config.Get()
	}
	if s.NewClient == nil {
		return DefaultClient(cfg, s.Logger)
	}
	return s.NewClient(cfg, s.Logger)
}

// DefaultClient builds the OpenAI-backed client.
func DefaultClient(cfg *config.Config, logger *slog.Logger) ocr.Client {
	oc := cfg.OpenAIConfig()
	oc.Logger = logger
	return ocr.NewOpenAIClient(oc)
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}
