package vector

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/memory-service/memoryd/pkg/types"
)

// fakeEmbedder deterministically maps text to a tiny vector so similarity
// comparisons in tests are exact rather than approximate.
type fakeEmbedder struct{}

func (fakeEmbedder) Dimensions() int { return 2 }

func (fakeEmbedder) Embed(text string) ([]float32, error) {
	switch text {
	case "apple pie recipe":
		return []float32{1, 0}, nil
	case "banana bread recipe":
		return []float32{0.9, 0.1}, nil
	case "kernel scheduler internals":
		return []float32{-1, 0}, nil
	default:
		return []float32{0, 1}, nil
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(`CREATE TABLE vector_documents (
		id TEXT PRIMARY KEY,
		sqlite_id INTEGER NOT NULL,
		doc_type TEXT NOT NULL,
		content TEXT NOT NULL,
		memory_session_id TEXT NOT NULL,
		project TEXT NOT NULL DEFAULT '',
		created_at_epoch INTEGER NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		embedding BLOB
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE observations (
		id INTEGER PRIMARY KEY,
		memory_session_id TEXT NOT NULL,
		project TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT 'discovery',
		title TEXT NOT NULL,
		subtitle TEXT NOT NULL DEFAULT '',
		narrative TEXT NOT NULL DEFAULT '',
		prompt_number INTEGER NOT NULL DEFAULT 0,
		created_at_epoch INTEGER NOT NULL
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE session_summaries (
		id INTEGER PRIMARY KEY,
		session_id INTEGER NOT NULL,
		memory_session_id TEXT NOT NULL,
		request TEXT NOT NULL DEFAULT '',
		investigated TEXT NOT NULL DEFAULT '',
		learned TEXT NOT NULL DEFAULT '',
		completed TEXT NOT NULL DEFAULT '',
		next_steps TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at_epoch INTEGER NOT NULL
	)`)
	require.NoError(t, err)
	return db
}

func TestEmbeddedBackend_QueryRanksByCosineSimilarity(t *testing.T) {
	db := openTestDB(t)
	b, err := NewEmbeddedBackend(db, fakeEmbedder{}, "", "")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, b.SyncObservation(ctx, &types.Observation{
		ID: 1, MemorySessionID: "mem-1", Project: "memoryd",
		Narrative: "apple pie recipe", CreatedAtEpoch: 1,
	}))
	require.NoError(t, b.SyncObservation(ctx, &types.Observation{
		ID: 2, MemorySessionID: "mem-1", Project: "memoryd",
		Narrative: "kernel scheduler internals", CreatedAtEpoch: 2,
	}))

	results, err := b.Query(ctx, "banana bread recipe", types.QueryFilters{}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "obs_1_narrative", results[0].DocID)
}

func TestEmbeddedBackend_QueryFilterByProject(t *testing.T) {
	db := openTestDB(t)
	b, err := NewEmbeddedBackend(db, fakeEmbedder{}, "", "")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, b.SyncObservation(ctx, &types.Observation{
		ID: 1, MemorySessionID: "mem-1", Project: "alpha",
		Narrative: "apple pie recipe", CreatedAtEpoch: 1,
	}))
	require.NoError(t, b.SyncObservation(ctx, &types.Observation{
		ID: 2, MemorySessionID: "mem-1", Project: "beta",
		Narrative: "apple pie recipe", CreatedAtEpoch: 2,
	}))

	results, err := b.Query(ctx, "apple pie recipe", types.QueryFilters{Project: "beta"}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "obs_2_narrative", results[0].DocID)
}

func TestEmbeddedBackend_SyncIsUpsertByDocID(t *testing.T) {
	db := openTestDB(t)
	b, err := NewEmbeddedBackend(db, fakeEmbedder{}, "", "")
	require.NoError(t, err)
	ctx := context.Background()

	obs := &types.Observation{ID: 1, MemorySessionID: "mem-1", Project: "memoryd", Narrative: "apple pie recipe", CreatedAtEpoch: 1}
	require.NoError(t, b.SyncObservation(ctx, obs))
	obs.Narrative = "banana bread recipe"
	require.NoError(t, b.SyncObservation(ctx, obs))

	stats, err := b.GetStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.DocCount)
}

func TestEmbeddedBackend_EnsureBackfilled_SyncsMissingObservations(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Exec(`INSERT INTO observations (id, memory_session_id, project, title, narrative, created_at_epoch) VALUES (1, 'mem-1', 'memoryd', 'Found it', 'apple pie recipe', 5)`)
	require.NoError(t, err)

	b, err := NewEmbeddedBackend(db, fakeEmbedder{}, "", "")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, b.EnsureBackfilled(ctx))

	stats, err := b.GetStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.DocCount)

	// Idempotent: running again does not duplicate.
	require.NoError(t, b.EnsureBackfilled(ctx))
	stats, err = b.GetStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.DocCount)
}

func TestEmbeddedBackend_EnsureBackfilled_SyncsMissingSummaries(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Exec(`INSERT INTO session_summaries (id, session_id, memory_session_id, request, completed, created_at_epoch) VALUES (1, 1, 'mem-1', 'fix the bug', 'fixed it', 5)`)
	require.NoError(t, err)

	b, err := NewEmbeddedBackend(db, fakeEmbedder{}, "", "")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, b.EnsureBackfilled(ctx))

	stats, err := b.GetStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.DocCount) // request + completed
}

func TestEmbeddedBackend_QueryDedupesBySqliteID(t *testing.T) {
	db := openTestDB(t)
	b, err := NewEmbeddedBackend(db, fakeEmbedder{}, "", "")
	require.NoError(t, err)
	ctx := context.Background()

	// One observation granulates into three documents (narrative + 2
	// facts) sharing sqlite_id 5; per spec.md §4.B/§8 a query must return
	// at most one result per owning row, the best-scoring granule.
	require.NoError(t, b.SyncObservation(ctx, &types.Observation{
		ID: 5, MemorySessionID: "mem-1", Project: "memoryd",
		Narrative:      "kernel scheduler internals",
		Facts:          []string{"apple pie recipe", "banana bread recipe"},
		CreatedAtEpoch: 1,
	}))

	results, err := b.Query(ctx, "apple pie recipe", types.QueryFilters{}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1, "three granules of one observation must dedup to one result")
	require.EqualValues(t, 5, results[0].SqliteID)
	require.Equal(t, "obs_5_fact_0", results[0].DocID)
}

func TestEmbeddedBackend_DeleteDocument(t *testing.T) {
	db := openTestDB(t)
	b, err := NewEmbeddedBackend(db, fakeEmbedder{}, "", "")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, b.SyncObservation(ctx, &types.Observation{ID: 1, MemorySessionID: "mem-1", Narrative: "apple pie recipe", CreatedAtEpoch: 1}))
	require.NoError(t, b.DeleteDocument(ctx, "obs_1_narrative"))

	stats, err := b.GetStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, stats.DocCount)
}
