// -- internal/llmclient/factory.go --
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
)

// NewClient is a factory function that creates a single LLMClient for the
// given model configuration.
func NewClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini, "":
		return NewGenAIClient(ctx, cfg, logger)
	case config.ProviderGeminiHTTP:
		return NewGeminiClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s, %s]",
			cfg.Provider, config.ProviderGemini, config.ProviderGeminiHTTP)
	}
}

// NewRouterFromConfig builds the tiered router from the router configuration,
// resolving the fast and powerful model entries.
func NewRouterFromConfig(ctx context.Context, cfg config.LLMRouterConfig, logger *zap.Logger) (*LLMRouter, error) {
	fastCfg, ok := cfg.Models[cfg.DefaultFastModel]
	if !ok {
		return nil, fmt.Errorf("llm.models has no entry for fast model %q", cfg.DefaultFastModel)
	}
	powerfulCfg, ok := cfg.Models[cfg.DefaultPowerfulModel]
	if !ok {
		return nil, fmt.Errorf("llm.models has no entry for powerful model %q", cfg.DefaultPowerfulModel)
	}

	fast, err := NewClient(ctx, fastCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating fast tier client: %w", err)
	}
	powerful, err := NewClient(ctx, powerfulCfg, logger)
	if err != nil {
		_ = fast.Close()
		return nil, fmt.Errorf("creating powerful tier client: %w", err)
	}

	return NewLLMRouter(logger, fast, powerful, cfg.RequestsPerSecond)
}
