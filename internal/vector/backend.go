// Package vector defines the semantic retrieval backend abstraction and its
// implementations: an embedded SQLite-resident index, a remote
// collection-service driven over stdio JSON-RPC, and a no-op disabled
// backend.
package vector

import (
	"context"

	"github.com/memory-service/memoryd/pkg/types"
)

// Backend indexes and queries vector documents derived from observations,
// summaries, and user prompts. Implementations are free to be a thin shell
// over an external process; callers never assume in-process storage.
type Backend interface {
	// Initialize prepares the backend for use (creating a collection,
	// connecting to a child process, etc). Called once at startup.
	Initialize(ctx context.Context) error

	SyncObservation(ctx context.Context, o *types.Observation) error
	SyncSummary(ctx context.Context, s *types.SessionSummary) error
	SyncUserPrompt(ctx context.Context, p *types.UserPrompt) error

	// Query returns the nearest documents to the embedding of text, subject
	// to filters.
	Query(ctx context.Context, text string, filters types.QueryFilters, topK int) ([]types.QueryResult, error)

	// EnsureBackfilled indexes any rows present in the relational store but
	// absent from the vector index, used after a schema migration or a
	// backend switch.
	EnsureBackfilled(ctx context.Context) error

	GetStats(ctx context.Context) (types.BackendStats, error)

	Close() error
}

// DocumentDeleter is an optional capability: backends that support removing
// a document by id implement it. Callers discover it with a type assertion
// and degrade gracefully when absent.
type DocumentDeleter interface {
	DeleteDocument(ctx context.Context, docID string) error
}

// RemoteAttacher is an optional capability: backends that can attach an
// additional remote index (for federation) implement it.
type RemoteAttacher interface {
	AttachRemote(ctx context.Context, name, url string) error
}

// FederatedQuerier is an optional capability: backends able to fan a query
// out across attached remotes and merge results implement it directly,
// rather than relying on the federation package's generic merge path.
type FederatedQuerier interface {
	QueryFederated(ctx context.Context, text string, filters types.QueryFilters, topK int, remotes []string) ([]types.QueryResult, error)
}
