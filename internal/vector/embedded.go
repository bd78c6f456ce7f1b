package vector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/memory-service/memoryd/pkg/types"
)

// EmbeddedBackend stores vector documents in the same SQLite file as the
// relational store and ranks queries by brute-force cosine scan, unless a
// Qdrant client is configured for an ANN-indexed path.
type EmbeddedBackend struct {
	db       *sql.DB
	embedder EmbeddingProvider
	qdrant   *qdrantIndex // nil when no ANN backend is configured
}

// NewEmbeddedBackend wires an EmbeddedBackend against the store's own
// *sql.DB handle and an embedding provider. qdrantURL may be empty, in
// which case queries run a brute-force scan over vector_documents.
func NewEmbeddedBackend(db *sql.DB, embedder EmbeddingProvider, qdrantURL, collection string) (*EmbeddedBackend, error) {
	b := &EmbeddedBackend{db: db, embedder: embedder}
	if qdrantURL != "" {
		idx, err := newQdrantIndex(qdrantURL, collection, embedder.Dimensions())
		if err != nil {
			return nil, fmt.Errorf("configure qdrant backend: %w", err)
		}
		b.qdrant = idx
	}
	return b, nil
}

func (b *EmbeddedBackend) Initialize(ctx context.Context) error {
	if b.qdrant != nil {
		return b.qdrant.ensureCollection(ctx)
	}
	return nil
}

// SyncObservation splits o into its granulated documents (narrative plus
// one per fact) and upserts each independently.
func (b *EmbeddedBackend) SyncObservation(ctx context.Context, o *types.Observation) error {
	meta, _ := json.Marshal(map[string]any{"promptNumber": o.PromptNumber, "type": o.Type})
	for _, g := range granulateObservation(o) {
		if err := b.sync(ctx, g.docID, o.ID, types.DocObservation, g.content, o.MemorySessionID, o.Project, o.CreatedAtEpoch, meta); err != nil {
			return err
		}
	}
	return nil
}

// SyncSummary splits s into one document per non-empty field and upserts
// each independently.
func (b *EmbeddedBackend) SyncSummary(ctx context.Context, s *types.SessionSummary) error {
	meta, _ := json.Marshal(map[string]any{"sessionId": s.SessionID})
	for _, g := range granulateSummary(s) {
		if err := b.sync(ctx, g.docID, s.ID, types.DocSessionSummary, g.content, s.MemorySessionID, "", s.CreatedAtEpoch, meta); err != nil {
			return err
		}
	}
	return nil
}

func (b *EmbeddedBackend) SyncUserPrompt(ctx context.Context, p *types.UserPrompt) error {
	meta, _ := json.Marshal(map[string]any{"promptNumber": p.PromptNumber})
	return b.sync(ctx, fmt.Sprintf("prompt_%d", p.ID), p.ID, types.DocUserPrompt, p.PromptText, p.ContentSessionID, "", p.CreatedAtEpoch, meta)
}

// sync upserts one vector document. The metadata passed to the qdrant ANN
// path (when configured) always carries docType and sqliteId, plus
// memorySessionId and project whenever they are non-empty, in addition to
// whatever doc-specific fields the caller supplied, since
// qdrantIndex.search builds its filter conditions on project, docType and
// memorySessionId (per spec.md §4.B's filter semantics) — a filtered query
// against a point missing them would never match.
func (b *EmbeddedBackend) sync(ctx context.Context, docID string, sqliteID int64, docType types.VectorDocType, content, memorySessionID, project string, createdAtEpoch int64, metadata []byte) error {
	vec, err := b.embedder.Embed(content)
	if err != nil {
		return fmt.Errorf("embed %s: %w", docID, err)
	}
	blob := EncodeEmbedding(vec)

	_, err = b.db.ExecContext(ctx, `
		INSERT INTO vector_documents (id, sqlite_id, doc_type, content, memory_session_id, project, created_at_epoch, metadata, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content, metadata = excluded.metadata, embedding = excluded.embedding
	`, docID, sqliteID, docType, content, memorySessionID, project, createdAtEpoch, string(metadata), blob)
	if err != nil {
		return fmt.Errorf("upsert vector document: %w", err)
	}

	if b.qdrant != nil {
		filterMeta := mergeFilterMetadata(metadata, sqliteID, docType, memorySessionID, project)
		if err := b.qdrant.upsert(ctx, docID, vec, filterMeta); err != nil {
			return fmt.Errorf("qdrant upsert %s: %w", docID, err)
		}
	}
	return nil
}

// mergeFilterMetadata adds the sqliteId and docType keys, and the
// memorySessionId and project keys when non-empty, onto a doc-specific
// metadata blob, so the Qdrant payload carries what qdrantIndex.search
// filters on.
func mergeFilterMetadata(metadata []byte, sqliteID int64, docType types.VectorDocType, memorySessionID, project string) []byte {
	m := map[string]any{}
	_ = json.Unmarshal(metadata, &m)
	m["sqliteId"] = sqliteID
	m["docType"] = string(docType)
	if memorySessionID != "" {
		m["memorySessionId"] = memorySessionID
	}
	if project != "" {
		m["project"] = project
	}
	out, _ := json.Marshal(m)
	return out
}

func (b *EmbeddedBackend) Query(ctx context.Context, text string, filters types.QueryFilters, topK int) ([]types.QueryResult, error) {
	vec, err := b.embedder.Embed(text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	if b.qdrant != nil {
		return b.qdrant.search(ctx, vec, filters, topK)
	}
	return b.bruteForceSearch(ctx, vec, filters, topK)
}

func (b *EmbeddedBackend) bruteForceSearch(ctx context.Context, query []float32, filters types.QueryFilters, topK int) ([]types.QueryResult, error) {
	sqlQuery := `SELECT id, sqlite_id, doc_type, content, metadata, embedding, memory_session_id, project, created_at_epoch FROM vector_documents WHERE 1=1`
	var args []any
	if filters.Project != "" {
		sqlQuery += ` AND project = ?`
		args = append(args, filters.Project)
	}
	if filters.DocType != "" {
		sqlQuery += ` AND doc_type = ?`
		args = append(args, filters.DocType)
	}
	if filters.MemorySessionID != "" {
		sqlQuery += ` AND memory_session_id = ?`
		args = append(args, filters.MemorySessionID)
	}
	if filters.MinEpoch != 0 {
		sqlQuery += ` AND created_at_epoch >= ?`
		args = append(args, filters.MinEpoch)
	}
	if filters.MaxEpoch != 0 {
		sqlQuery += ` AND created_at_epoch <= ?`
		args = append(args, filters.MaxEpoch)
	}

	rows, err := b.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []types.QueryResult
	for rows.Next() {
		var docID, docType, content, metadata, memID, project string
		var sqliteID, createdAt int64
		var embedding []byte
		if err := rows.Scan(&docID, &sqliteID, &docType, &content, &metadata, &embedding, &memID, &project, &createdAt); err != nil {
			return nil, err
		}
		vec, err := DecodeEmbedding(embedding)
		if err != nil {
			return nil, err
		}
		sim := CosineSimilarity(query, vec)
		results = append(results, types.QueryResult{
			DocID:    docID,
			SqliteID: sqliteID,
			DocType:  types.VectorDocType(docType),
			Distance: 1 - sim,
			Metadata: json.RawMessage(metadata),
			Content:  content,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	results = dedupBySqliteID(results)
	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// dedupBySqliteID keeps only the lowest-distance (best-scoring) document
// per owning row, per spec.md §4.B: "deduplicated by sqlite_id (the
// best-scoring document per owning row wins)." An observation with a
// narrative plus two facts granulates into three documents sharing one
// sqlite_id; only the closest of the three should ever reach a caller.
func dedupBySqliteID(results []types.QueryResult) []types.QueryResult {
	best := make(map[int64]types.QueryResult, len(results))
	order := make([]int64, 0, len(results))
	for _, r := range results {
		existing, ok := best[r.SqliteID]
		if !ok {
			order = append(order, r.SqliteID)
			best[r.SqliteID] = r
			continue
		}
		if r.Distance < existing.Distance {
			best[r.SqliteID] = r
		}
	}
	out := make([]types.QueryResult, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	return out
}

func (b *EmbeddedBackend) EnsureBackfilled(ctx context.Context) error {
	rows, err := b.db.QueryContext(ctx, `
		SELECT o.id, o.memory_session_id, o.project, o.type, o.title, o.subtitle, o.narrative, o.prompt_number, o.created_at_epoch
		FROM observations o
		WHERE NOT EXISTS (
			SELECT 1 FROM vector_documents v
			WHERE v.sqlite_id = o.id AND v.doc_type = 'observation'
		)
	`)
	if err != nil {
		return fmt.Errorf("scan unbackfilled observations: %w", err)
	}
	defer rows.Close()

	var toSync []*types.Observation
	for rows.Next() {
		var o types.Observation
		if err := rows.Scan(&o.ID, &o.MemorySessionID, &o.Project, &o.Type, &o.Title, &o.Subtitle, &o.Narrative, &o.PromptNumber, &o.CreatedAtEpoch); err != nil {
			return err
		}
		toSync = append(toSync, &o)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, o := range toSync {
		if err := b.SyncObservation(ctx, o); err != nil {
			return err
		}
	}
	return b.backfillSummaries(ctx)
}

func (b *EmbeddedBackend) backfillSummaries(ctx context.Context) error {
	rows, err := b.db.QueryContext(ctx, `
		SELECT s.id, s.session_id, s.memory_session_id, s.request, s.investigated, s.learned, s.completed, s.next_steps, s.notes, s.created_at_epoch
		FROM session_summaries s
		WHERE NOT EXISTS (
			SELECT 1 FROM vector_documents v
			WHERE v.sqlite_id = s.id AND v.doc_type = 'session_summary'
		)
	`)
	if err != nil {
		return fmt.Errorf("scan unbackfilled summaries: %w", err)
	}
	defer rows.Close()

	var toSync []*types.SessionSummary
	for rows.Next() {
		var s types.SessionSummary
		if err := rows.Scan(&s.ID, &s.SessionID, &s.MemorySessionID, &s.Request, &s.Investigated, &s.Learned, &s.Completed, &s.NextSteps, &s.Notes, &s.CreatedAtEpoch); err != nil {
			return err
		}
		toSync = append(toSync, &s)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, s := range toSync {
		if err := b.SyncSummary(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (b *EmbeddedBackend) GetStats(ctx context.Context) (types.BackendStats, error) {
	var count int
	var lastEpoch sql.NullInt64
	err := b.db.QueryRowContext(ctx, `SELECT COUNT(*), MAX(created_at_epoch) FROM vector_documents`).Scan(&count, &lastEpoch)
	if err != nil {
		return types.BackendStats{}, err
	}
	stats := types.BackendStats{
		Backend:    "sqlite-vec",
		DocCount:   count,
		Dimensions: b.embedder.Dimensions(),
	}
	if b.qdrant != nil {
		stats.Backend = "qdrant"
		stats.Collection = b.qdrant.collection
	}
	if lastEpoch.Valid {
		stats.LastSyncEpoch = lastEpoch.Int64
	}
	return stats, nil
}

// DeleteDocument implements DocumentDeleter.
func (b *EmbeddedBackend) DeleteDocument(ctx context.Context, docID string) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM vector_documents WHERE id = ?`, docID)
	if err != nil {
		return err
	}
	if b.qdrant != nil {
		return b.qdrant.delete(ctx, docID)
	}
	return nil
}

func (b *EmbeddedBackend) Close() error {
	return nil // db is owned by the relational store, not closed here
}
