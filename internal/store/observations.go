package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/memory-service/memoryd/pkg/types"
)

// StoreResult reports the outcome of storing one observation.
type StoreResult struct {
	Observation *types.Observation
	Imported    bool // false when the row collided with an existing dedup key
}

// StoreObservations inserts a batch of observations, skipping any that
// collide on the (memory_session_id, title, created_at_epoch) dedup key.
// Colliding rows are returned with Imported=false and Observation pointing
// at the row already on disk.
func (s *Store) StoreObservations(sessionID int64, memorySessionID, project string, obs []*types.Observation) ([]StoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]StoreResult, 0, len(obs))
	for _, o := range obs {
		res, err := s.storeOneObservation(sessionID, memorySessionID, project, o, o.CreatedAtEpoch)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// ImportObservation inserts a single observation with an externally assigned
// timestamp, used by the migration pipeline when replaying another node's
// export. Dedup semantics are identical to StoreObservations.
func (s *Store) ImportObservation(sessionID int64, memorySessionID, project string, o *types.Observation, createdAtEpoch int64) (StoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeOneObservation(sessionID, memorySessionID, project, o, createdAtEpoch)
}

func (s *Store) storeOneObservation(sessionID int64, memorySessionID, project string, o *types.Observation, createdAtEpoch int64) (StoreResult, error) {
	if createdAtEpoch == 0 {
		createdAtEpoch = time.Now().UnixMilli()
	}
	if o.Type == "" {
		o.Type = types.ObsDiscovery
	}

	facts, err := json.Marshal(nonNil(o.Facts))
	if err != nil {
		return StoreResult{}, err
	}
	concepts, err := json.Marshal(nonNil(o.Concepts))
	if err != nil {
		return StoreResult{}, err
	}
	filesRead, err := json.Marshal(nonNil(o.FilesRead))
	if err != nil {
		return StoreResult{}, err
	}
	filesModified, err := json.Marshal(nonNil(o.FilesModified))
	if err != nil {
		return StoreResult{}, err
	}

	res, err := s.db.Exec(`
		INSERT INTO observations (
			session_id, memory_session_id, project, type, title, subtitle, narrative,
			facts, concepts, files_read, files_modified, prompt_number, created_at_epoch
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(memory_session_id, title, created_at_epoch) DO NOTHING
	`,
		sessionID, memorySessionID, project, o.Type, o.Title, o.Subtitle, o.Narrative,
		string(facts), string(concepts), string(filesRead), string(filesModified),
		o.PromptNumber, createdAtEpoch,
	)
	if err != nil {
		return StoreResult{}, fmt.Errorf("insert observation: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return StoreResult{}, err
	}
	if n == 0 {
		existing, err := s.getObservationByDedupKey(memorySessionID, o.Title, createdAtEpoch)
		if err != nil {
			return StoreResult{}, fmt.Errorf("load colliding observation: %w", err)
		}
		return StoreResult{Observation: existing, Imported: false}, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return StoreResult{}, err
	}
	stored := *o
	stored.ID = id
	stored.SessionID = sessionID
	stored.MemorySessionID = memorySessionID
	stored.Project = project
	stored.CreatedAtEpoch = createdAtEpoch
	return StoreResult{Observation: &stored, Imported: true}, nil
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

func (s *Store) getObservationByDedupKey(memorySessionID, title string, createdAtEpoch int64) (*types.Observation, error) {
	return scanObservation(s.db.QueryRow(`
		SELECT id, session_id, memory_session_id, project, type, title, subtitle, narrative,
		       facts, concepts, files_read, files_modified, prompt_number, created_at_epoch
		FROM observations WHERE memory_session_id = ? AND title = ? AND created_at_epoch = ?
	`, memorySessionID, title, createdAtEpoch))
}

// GetObservationsByIDs loads observations in the order their ids are given.
func (s *Store) GetObservationsByIDs(ids []int64) ([]*types.Observation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	out := make([]*types.Observation, 0, len(ids))
	for _, id := range ids {
		o, err := scanObservation(s.db.QueryRow(`
			SELECT id, session_id, memory_session_id, project, type, title, subtitle, narrative,
			       facts, concepts, files_read, files_modified, prompt_number, created_at_epoch
			FROM observations WHERE id = ?
		`, id))
		if err != nil {
			return nil, fmt.Errorf("load observation %d: %w", id, err)
		}
		out = append(out, o)
	}
	return out, nil
}

func scanObservation(row *sql.Row) (*types.Observation, error) {
	var o types.Observation
	var facts, concepts, filesRead, filesModified string
	if err := row.Scan(
		&o.ID, &o.SessionID, &o.MemorySessionID, &o.Project, &o.Type, &o.Title, &o.Subtitle, &o.Narrative,
		&facts, &concepts, &filesRead, &filesModified, &o.PromptNumber, &o.CreatedAtEpoch,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(facts), &o.Facts); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(concepts), &o.Concepts); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(filesRead), &o.FilesRead); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(filesModified), &o.FilesModified); err != nil {
		return nil, err
	}
	return &o, nil
}
