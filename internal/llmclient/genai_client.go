// internal/llmclient/genai_client.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
)

// GenAIClient implements schemas.LLMClient on top of the official Google
// GenAI SDK. This is the default provider.
type GenAIClient struct {
	client *genai.Client
	model  string
	cfg    config.LLMModelConfig
	logger *zap.Logger
}

// NewGenAIClient initializes the SDK client for the Gemini API backend.
func NewGenAIClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (*GenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API Key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GenAIClient{
		client: client,
		model:  cfg.Model,
		cfg:    cfg,
		logger: logger.Named("llm_client.genai"),
	}, nil
}

// Generate produces a text completion for the request.
func (c *GenAIClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Options.Temperature)),
	}
	if req.SystemPrompt != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Options.ForceJSONFormat {
		genCfg.ResponseMIMEType = "application/json"
	}
	if req.Options.TopP > 0 {
		genCfg.TopP = genai.Ptr(float32(req.Options.TopP))
	} else if c.cfg.TopP > 0 {
		genCfg.TopP = genai.Ptr(c.cfg.TopP)
	}
	if req.Options.TopK > 0 {
		genCfg.TopK = genai.Ptr(float32(req.Options.TopK))
	} else if c.cfg.TopK > 0 {
		genCfg.TopK = genai.Ptr(float32(c.cfg.TopK))
	}
	if req.Options.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(req.Options.MaxTokens)
	} else if c.cfg.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(c.cfg.MaxTokens)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.UserPrompt), genCfg)
	if err != nil {
		return "", fmt.Errorf("genai generation failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("genai returned an empty completion")
	}

	c.logger.Debug("LLM generation complete (GenAI SDK)",
		zap.String("model", c.model),
		zap.Int("response_chars", len(text)),
	)
	return text, nil
}

// Close satisfies schemas.LLMClient. The SDK holds no connection state that
// requires explicit teardown.
func (c *GenAIClient) Close() error { return nil }
