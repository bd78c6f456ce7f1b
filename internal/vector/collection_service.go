package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/memory-service/memoryd/internal/mcp"
	"github.com/memory-service/memoryd/pkg/types"
)

// CollectionServiceBackend drives an external "collection service" child
// process (e.g. a Chroma sidecar) over JSON-RPC on stdio, using the same
// transport the MCP client uses to talk to tool servers.
type CollectionServiceBackend struct {
	transport  mcp.Transport
	collection string
	disabled   bool
	pid        int
}

// NewCollectionServiceBackend launches command and speaks JSON-RPC to it
// over stdin/stdout, matching the stdio MCP transport framing. Spawning a
// visible child process causes a terminal window to flash on Windows, so
// the backend self-disables there per spec.md §4.B: every operation becomes
// a no-op rather than spawning anything.
//
// When onSpawn is non-nil it is called with the child's PID immediately
// after the process starts, so the caller (the Subprocess Supervisor) can
// register it before any session work runs against the backend.
func NewCollectionServiceBackend(ctx context.Context, command []string, env map[string]string, collection string, onSpawn func(pid int)) (*CollectionServiceBackend, error) {
	if runtime.GOOS == "windows" {
		return &CollectionServiceBackend{collection: collection, disabled: true}, nil
	}

	t, err := mcp.NewStdioTransport(ctx, command, env)
	if err != nil {
		return nil, fmt.Errorf("start collection service: %w", err)
	}
	b := &CollectionServiceBackend{transport: t, collection: collection}
	if st, ok := b.transport.(interface{ Pid() int }); ok {
		b.pid = st.Pid()
		if onSpawn != nil {
			onSpawn(b.pid)
		}
	}
	return b, nil
}

func (b *CollectionServiceBackend) Initialize(ctx context.Context) error {
	if b.disabled {
		return nil
	}
	_, err := b.transport.Send(ctx, "collection.ensure", map[string]any{"collection": b.collection})
	return err
}

func (b *CollectionServiceBackend) SyncObservation(ctx context.Context, o *types.Observation) error {
	if b.disabled {
		return nil
	}
	return b.upsert(ctx, fmt.Sprintf("obs_%d", o.ID), o.Title+"\n"+o.Subtitle+"\n"+o.Narrative, o.MemorySessionID, o.Project, string(types.DocObservation), o.CreatedAtEpoch)
}

func (b *CollectionServiceBackend) SyncSummary(ctx context.Context, s *types.SessionSummary) error {
	if b.disabled {
		return nil
	}
	text := s.Request + "\n" + s.Investigated + "\n" + s.Learned + "\n" + s.Completed
	return b.upsert(ctx, fmt.Sprintf("summary_%d", s.ID), text, s.MemorySessionID, "", string(types.DocSessionSummary), s.CreatedAtEpoch)
}

func (b *CollectionServiceBackend) SyncUserPrompt(ctx context.Context, p *types.UserPrompt) error {
	if b.disabled {
		return nil
	}
	return b.upsert(ctx, fmt.Sprintf("prompt_%d", p.ID), p.PromptText, p.ContentSessionID, "", string(types.DocUserPrompt), p.CreatedAtEpoch)
}

func (b *CollectionServiceBackend) upsert(ctx context.Context, docID, content, memorySessionID, project, docType string, createdAtEpoch int64) error {
	_, err := b.transport.Send(ctx, "collection.upsert", map[string]any{
		"collection":      b.collection,
		"id":              docID,
		"content":         content,
		"memorySessionId": memorySessionID,
		"project":         project,
		"docType":         docType,
		"createdAtEpoch":  createdAtEpoch,
	})
	return err
}

func (b *CollectionServiceBackend) Query(ctx context.Context, text string, filters types.QueryFilters, topK int) ([]types.QueryResult, error) {
	if b.disabled {
		return nil, nil
	}
	raw, err := b.transport.Send(ctx, "collection.query", map[string]any{
		"collection": b.collection,
		"text":       text,
		"topK":       topK,
		"filters":    filters,
	})
	if err != nil {
		return nil, fmt.Errorf("collection service query: %w", err)
	}
	var results []types.QueryResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("decode collection service results: %w", err)
	}
	return results, nil
}

func (b *CollectionServiceBackend) EnsureBackfilled(ctx context.Context) error {
	if b.disabled {
		return nil
	}
	_, err := b.transport.Send(ctx, "collection.backfill", map[string]any{"collection": b.collection})
	return err
}

func (b *CollectionServiceBackend) GetStats(ctx context.Context) (types.BackendStats, error) {
	if b.disabled {
		return types.BackendStats{Backend: "collection-service-disabled"}, nil
	}
	raw, err := b.transport.Send(ctx, "collection.stats", map[string]any{"collection": b.collection})
	if err != nil {
		return types.BackendStats{}, fmt.Errorf("collection service stats: %w", err)
	}
	var stats types.BackendStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return types.BackendStats{}, fmt.Errorf("decode collection service stats: %w", err)
	}
	stats.Backend = "collection-service"
	return stats, nil
}

// DeleteDocument implements DocumentDeleter.
func (b *CollectionServiceBackend) DeleteDocument(ctx context.Context, docID string) error {
	if b.disabled {
		return nil
	}
	_, err := b.transport.Send(ctx, "collection.delete", map[string]any{"collection": b.collection, "id": docID})
	return err
}

// Pid returns the collection service child's process id, or 0 if the
// backend is disabled on this platform.
func (b *CollectionServiceBackend) Pid() int {
	return b.pid
}

func (b *CollectionServiceBackend) Close() error {
	if b.disabled {
		return nil
	}
	return b.transport.Close()
}
