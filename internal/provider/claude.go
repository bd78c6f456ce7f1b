package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino/schema"

	"github.com/memory-service/memoryd/pkg/types"
)

// ClaudeProvider drives Anthropic's proprietary persistent streaming
// session API (the one non-OpenAI-compatible wire shape spec.md §0 names).
// It tracks the session id the provider echoes back so the agent can record
// it as memory_session_id without synthesizing one.
type ClaudeProvider struct {
	chatModel *claude.ChatModel
	model     string

	mu        sync.Mutex
	sessionID string
}

// NewClaudeProvider creates a provider bound to cfg.
func NewClaudeProvider(ctx context.Context, cfg types.ProviderConfig) (*ClaudeProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider claude: apiKey not set")
	}
	modelID := cfg.Model
	if modelID == "" {
		modelID = "claude-sonnet-4-20250514"
	}

	var baseURL *string
	if cfg.BaseURL != "" {
		baseURL = &cfg.BaseURL
	}

	chatModel, err := claude.NewChatModel(ctx, &claude.Config{
		APIKey:    cfg.APIKey,
		BaseURL:   baseURL,
		Model:     modelID,
		MaxTokens: 8192,
	})
	if err != nil {
		return nil, fmt.Errorf("create claude chat model: %w", err)
	}

	return &ClaudeProvider{chatModel: chatModel, model: modelID}, nil
}

func (p *ClaudeProvider) ID() string { return "claude" }

func (p *ClaudeProvider) Generate(ctx context.Context, history []*schema.Message) (*schema.Message, error) {
	msg, err := p.chatModel.Generate(ctx, history, chatModelOptions(0)...)
	if err != nil {
		return nil, fmt.Errorf("claude generate: %w", err)
	}

	if id, ok := msg.Extra["session_id"].(string); ok && id != "" {
		p.mu.Lock()
		p.sessionID = id
		p.mu.Unlock()
	}
	return msg, nil
}

// SessionID returns the provider-echoed session identifier, if any turn has
// carried one yet.
func (p *ClaudeProvider) SessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionID
}
