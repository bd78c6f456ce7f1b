package provider

import (
	"context"
	"fmt"

	"github.com/memory-service/memoryd/pkg/types"
)

// BuildProvider constructs the Provider named by id from settings, looking
// up its per-provider config in settings.Providers.
func BuildProvider(ctx context.Context, id string, settings *types.Settings) (Provider, error) {
	cfg := settings.Providers[id]

	switch id {
	case "claude":
		return NewClaudeProvider(ctx, cfg)
	case "lmstudio", "openrouter":
		return NewOpenAICompatProvider(ctx, id, cfg)
	case "gemini":
		return NewGeminiProvider(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown provider %q", id)
	}
}

// BuildPrimaryAndFallback constructs the primary provider named by
// settings.Provider and, if settings.FallbackProvider is set, the fallback
// provider too. The fallback is nil (not an error) when unconfigured.
func BuildPrimaryAndFallback(ctx context.Context, settings *types.Settings) (primary, fallback Provider, err error) {
	primary, err = BuildProvider(ctx, settings.Provider, settings)
	if err != nil {
		return nil, nil, fmt.Errorf("build primary provider %q: %w", settings.Provider, err)
	}

	if settings.FallbackProvider == "" {
		return primary, nil, nil
	}

	fallback, err = BuildProvider(ctx, settings.FallbackProvider, settings)
	if err != nil {
		return nil, nil, fmt.Errorf("build fallback provider %q: %w", settings.FallbackProvider, err)
	}
	return primary, fallback, nil
}
