package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"

	"github.com/memory-service/memoryd/pkg/types"
)

// OpenAICompatProvider speaks the OpenAI chat-completions wire shape. It
// backs the "lmstudio" and "openrouter" settings.json providers (both
// configured purely by base URL) and serves as the provider used when the
// extractor's own wire format happens to be OpenAI-compatible.
type OpenAICompatProvider struct {
	id        string
	chatModel *openai.ChatModel
	model     string
	maxTokens int
}

// NewOpenAICompatProvider creates a provider bound to cfg. id is the
// settings.json provider key ("lmstudio", "openrouter", ...).
func NewOpenAICompatProvider(ctx context.Context, id string, cfg types.ProviderConfig) (*OpenAICompatProvider, error) {
	if cfg.APIKey == "" && id != "lmstudio" {
		return nil, fmt.Errorf("provider %s: apiKey not set", id)
	}

	maxTokens := 4096
	modelID := cfg.Model
	if modelID == "" {
		modelID = "gpt-4o-mini"
	}

	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:              cfg.APIKey,
		Model:               modelID,
		BaseURL:             cfg.BaseURL,
		MaxCompletionTokens: &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s chat model: %w", id, err)
	}

	return &OpenAICompatProvider{id: id, chatModel: chatModel, model: modelID, maxTokens: maxTokens}, nil
}

func (p *OpenAICompatProvider) ID() string { return p.id }

func (p *OpenAICompatProvider) Generate(ctx context.Context, history []*schema.Message) (*schema.Message, error) {
	msg, err := p.chatModel.Generate(ctx, history, chatModelOptions(0)...)
	if err != nil {
		return nil, fmt.Errorf("%s generate: %w", p.id, err)
	}
	return msg, nil
}

// SessionID is empty: OpenAI-compatible providers carry no server-side
// session identifier, so the agent synthesizes one.
func (p *OpenAICompatProvider) SessionID() string { return "" }
