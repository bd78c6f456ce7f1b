package vector

import (
	"context"

	"github.com/memory-service/memoryd/pkg/types"
)

// DisabledBackend implements Backend as a no-op, selected when
// settings.json sets vectorBackend to "none". Observations and summaries
// are still captured relationally; only semantic search is unavailable.
type DisabledBackend struct{}

func (DisabledBackend) Initialize(ctx context.Context) error { return nil }

func (DisabledBackend) SyncObservation(ctx context.Context, o *types.Observation) error { return nil }

func (DisabledBackend) SyncSummary(ctx context.Context, s *types.SessionSummary) error { return nil }

func (DisabledBackend) SyncUserPrompt(ctx context.Context, p *types.UserPrompt) error { return nil }

func (DisabledBackend) Query(ctx context.Context, text string, filters types.QueryFilters, topK int) ([]types.QueryResult, error) {
	return nil, nil
}

func (DisabledBackend) EnsureBackfilled(ctx context.Context) error { return nil }

func (DisabledBackend) GetStats(ctx context.Context) (types.BackendStats, error) {
	return types.BackendStats{Backend: "none"}, nil
}

func (DisabledBackend) Close() error { return nil }
