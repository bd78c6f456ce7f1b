package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
)

// FailingProvider stands in for a provider that could not be constructed
// (missing API key, bad endpoint config). It fails every Generate call with
// the construction error, so a session that reaches it is marked failed
// through the ordinary error path rather than crashing the worker.
type FailingProvider struct {
	id    string
	cause error
}

// NewFailingProvider wraps cause as a Provider whose every call fails.
func NewFailingProvider(id string, cause error) *FailingProvider {
	return &FailingProvider{id: id, cause: cause}
}

func (p *FailingProvider) ID() string { return p.id }

func (p *FailingProvider) SessionID() string { return "" }

func (p *FailingProvider) Generate(ctx context.Context, history []*schema.Message) (*schema.Message, error) {
	return nil, fmt.Errorf("provider %q unavailable: %w", p.id, p.cause)
}
