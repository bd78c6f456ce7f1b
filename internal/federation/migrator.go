package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/memory-service/memoryd/internal/store"
	"github.com/memory-service/memoryd/pkg/types"
)

// RecordOutcome enumerates what happened to one migrated record.
type RecordOutcome string

const (
	RecordImported  RecordOutcome = "imported"
	RecordDuplicate RecordOutcome = "duplicate"
	RecordError     RecordOutcome = "error"
)

// RecordResult reports the outcome for one external record.
type RecordResult struct {
	Index   int           `json:"index"`
	Outcome RecordOutcome `json:"outcome"`
	Title   string        `json:"title,omitempty"`
	Error   string        `json:"error,omitempty"`
	Diff    string        `json:"diff,omitempty"`
}

// BatchResult summarizes one migrateBatch call.
type BatchResult struct {
	Total      int            `json:"total"`
	Imported   int            `json:"imported"`
	Duplicates int            `json:"duplicates"`
	Errors     int            `json:"errors"`
	DurationMs int64          `json:"durationMs"`
	Records    []RecordResult `json:"records"`
}

// Migrator imports batches of externally-shaped records into the relational
// store through an Adapter, optionally continuing past per-record errors and
// optionally rendering a dry-run diff instead of writing.
type Migrator struct {
	st      *store.Store
	adapter *Adapter
}

// NewMigrator builds a Migrator that writes into st using adapter's field
// mapping.
func NewMigrator(st *store.Store, adapter *Adapter) *Migrator {
	return &Migrator{st: st, adapter: adapter}
}

// MigrateOptions configure one migrateBatch call.
type MigrateOptions struct {
	SessionID       int64
	MemorySessionID string
	Project         string
	ContinueOnError bool
	DryRun          bool
}

// MigrateBatch transforms and imports each external record through the
// Migrator's adapter. In dry-run mode nothing is written to the store;
// instead each record's would-be JSON form is diffed against its raw input
// so a caller can review the mapping before committing.
func (m *Migrator) MigrateBatch(ctx context.Context, records []map[string]any, opts MigrateOptions) (*BatchResult, error) {
	start := time.Now()
	result := &BatchResult{Total: len(records), Records: make([]RecordResult, 0, len(records))}

	for i, raw := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		rec := RecordResult{Index: i}
		obs, err := m.adapter.Transform(raw)
		if err != nil {
			rec.Outcome = RecordError
			rec.Error = err.Error()
			result.Errors++
			result.Records = append(result.Records, rec)
			if !opts.ContinueOnError {
				return result, fmt.Errorf("record %d: %w", i, err)
			}
			continue
		}
		rec.Title = obs.Title

		if opts.DryRun {
			rec.Diff = m.renderDiff(raw, obs)
			rec.Outcome = RecordImported
			result.Imported++
			result.Records = append(result.Records, rec)
			continue
		}

		res, err := m.st.ImportObservation(opts.SessionID, opts.MemorySessionID, opts.Project, obs, obs.CreatedAtEpoch)
		if err != nil {
			rec.Outcome = RecordError
			rec.Error = err.Error()
			result.Errors++
			result.Records = append(result.Records, rec)
			if !opts.ContinueOnError {
				return result, fmt.Errorf("record %d: %w", i, err)
			}
			continue
		}
		if res.Imported {
			rec.Outcome = RecordImported
			result.Imported++
		} else {
			rec.Outcome = RecordDuplicate
			result.Duplicates++
		}
		result.Records = append(result.Records, rec)
	}

	result.DurationMs = time.Since(start).Milliseconds()
	return result, nil
}

// renderDiff shows a reviewer what migration would write, as an inline
// character diff (ANSI-coloured insertions and deletions) between the raw
// external JSON and the mapped internal JSON.
func (m *Migrator) renderDiff(raw map[string]any, obs *types.Observation) string {
	rawJSON, _ := json.MarshalIndent(raw, "", "  ")
	mappedJSON, _ := json.MarshalIndent(obs, "", "  ")

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(string(rawJSON), string(mappedJSON), false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.DiffPrettyText(diffs)
}
