package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/schema"

	"github.com/memory-service/memoryd/pkg/types"
)

// GeminiProvider backs the settings.json "gemini" provider slot. The
// dependency pack carries no dedicated Gemini Eino component, so this uses
// the Volcengine ARK component (an OpenAI-compatible-by-endpoint chat model
// in the same Eino model family) pointed at cfg.BaseURL instead of a
// hand-rolled Gemini client.
type GeminiProvider struct {
	chatModel *ark.ChatModel
	model     string
}

// NewGeminiProvider creates a provider bound to cfg.
func NewGeminiProvider(ctx context.Context, cfg types.ProviderConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider gemini: apiKey not set")
	}
	modelID := cfg.Model
	if modelID == "" {
		return nil, fmt.Errorf("provider gemini: model not set")
	}

	maxTokens := 4096
	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Model:     modelID,
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini chat model: %w", err)
	}

	return &GeminiProvider{chatModel: chatModel, model: modelID}, nil
}

func (p *GeminiProvider) ID() string { return "gemini" }

func (p *GeminiProvider) Generate(ctx context.Context, history []*schema.Message) (*schema.Message, error) {
	msg, err := p.chatModel.Generate(ctx, history, chatModelOptions(0)...)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	return msg, nil
}

// SessionID is empty: this wire shape carries no server-side session id.
func (p *GeminiProvider) SessionID() string { return "" }
