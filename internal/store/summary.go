package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/memory-service/memoryd/pkg/types"
)

// StoreSummary inserts a session summary. memory_session_id is UNIQUE, so a
// session may carry at most one summary; a second call for the same
// memory_session_id overwrites the first.
func (s *Store) StoreSummary(sessionID int64, sum *types.SessionSummary) (*types.SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	_, err := s.db.Exec(`
		INSERT INTO session_summaries (
			session_id, memory_session_id, request, investigated, learned, completed, next_steps, notes, created_at_epoch
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(memory_session_id) DO UPDATE SET
			request = excluded.request,
			investigated = excluded.investigated,
			learned = excluded.learned,
			completed = excluded.completed,
			next_steps = excluded.next_steps,
			notes = excluded.notes,
			created_at_epoch = excluded.created_at_epoch
	`,
		sessionID, sum.MemorySessionID, sum.Request, sum.Investigated, sum.Learned, sum.Completed, sum.NextSteps, sum.Notes, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session summary: %w", err)
	}

	return s.getSummaryByMemorySessionID(sum.MemorySessionID)
}

func (s *Store) getSummaryByMemorySessionID(memorySessionID string) (*types.SessionSummary, error) {
	return scanSummary(s.db.QueryRow(`
		SELECT id, session_id, memory_session_id, request, investigated, learned, completed, next_steps, notes, created_at_epoch
		FROM session_summaries WHERE memory_session_id = ?
	`, memorySessionID))
}

func scanSummary(row *sql.Row) (*types.SessionSummary, error) {
	var sum types.SessionSummary
	if err := row.Scan(
		&sum.ID, &sum.SessionID, &sum.MemorySessionID, &sum.Request, &sum.Investigated,
		&sum.Learned, &sum.Completed, &sum.NextSteps, &sum.Notes, &sum.CreatedAtEpoch,
	); err != nil {
		return nil, err
	}
	return &sum, nil
}
