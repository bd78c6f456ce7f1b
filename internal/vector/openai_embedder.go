package vector

import (
	"context"
	"fmt"
	"os"

	einoembedding "github.com/cloudwego/eino-ext/components/embedding/openai"

	"github.com/memory-service/memoryd/pkg/types"
)

// OpenAIEmbedder implements EmbeddingProvider against an OpenAI-compatible
// embeddings endpoint, mirroring the configuration shape the chat providers
// use: explicit APIKey/BaseURL/Model, falling back to OPENAI_API_KEY.
type OpenAIEmbedder struct {
	embedder   *einoembedding.Embedder
	dimensions int
}

// NewOpenAIEmbedder builds an embedder from EmbeddingConfig, defaulting
// dimensions to 1536 (text-embedding-3-small) when unset.
func NewOpenAIEmbedder(ctx context.Context, cfg types.EmbeddingConfig) (*OpenAIEmbedder, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("embedding provider %q: no API key configured", cfg.Provider)
	}

	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}
	dims := cfg.Dimensions
	if dims == 0 {
		dims = 1536
	}

	einoCfg := &einoembedding.EmbeddingConfig{
		APIKey:     apiKey,
		Model:      model,
		Dimensions: &dims,
	}
	if cfg.BaseURL != "" {
		einoCfg.BaseURL = cfg.BaseURL
	}

	e, err := einoembedding.NewEmbedder(ctx, einoCfg)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	return &OpenAIEmbedder{embedder: e, dimensions: dims}, nil
}

// Embed returns the embedding vector for one piece of text.
func (e *OpenAIEmbedder) Embed(text string) ([]float32, error) {
	vecs, err := e.embedder.EmbedStrings(context.Background(), []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embed: no vectors returned")
	}
	out := make([]float32, len(vecs[0]))
	for i, f := range vecs[0] {
		out[i] = float32(f)
	}
	return out, nil
}

// Dimensions returns the configured embedding width.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}
