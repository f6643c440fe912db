package llm

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specials/internal/common"
	"github.com/ternarybob/specials/internal/interfaces"
)

// NewLLMService creates the chat backend for provider, falling back to
// llm.default_provider when provider is empty. Missing credentials surface
// as an error wrapping models.ErrNotConfigured.
func NewLLMService(ctx context.Context, cfg *common.Config, provider common.LLMProvider, logger arbor.ILogger) (interfaces.LLMService, error) {
	if provider == "" {
		provider = cfg.LLM.DefaultProvider
	}

	logger.Debug().Str("provider", string(provider)).Msg("Initializing LLM service")

	switch provider {
	case common.LLMProviderClaude:
		return NewClaudeService(&cfg.Claude, logger)
	case common.LLMProviderGemini:
		return NewGeminiService(ctx, &cfg.Gemini, logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}
