package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/memory-service/memoryd/pkg/types"
)

// ErrMemorySessionIDAlreadySet is returned by UpdateMemorySessionID when the
// session already carries a different memory_session_id.
var ErrMemorySessionIDAlreadySet = errors.New("memory_session_id already set to a different value")

// CreateSession creates a session row, idempotent on content_session_id:
// calling it twice for the same content_session_id returns the existing row.
func (s *Store) CreateSession(contentSessionID, project, userPrompt string) (*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, err := s.getSessionByContentID(contentSessionID); err == nil {
		return existing, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	now := time.Now().UnixMilli()
	res, err := s.db.Exec(
		`INSERT INTO sessions (content_session_id, project, status, started_at, user_prompt)
		 VALUES (?, ?, ?, ?, ?)`,
		contentSessionID, project, types.SessionActive, now, userPrompt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &types.Session{
		ID:               id,
		ContentSessionID: contentSessionID,
		Project:          project,
		Status:           types.SessionActive,
		StartedAt:        now,
		UserPrompt:       userPrompt,
	}, nil
}

func (s *Store) getSessionByContentID(contentSessionID string) (*types.Session, error) {
	return scanSession(s.db.QueryRow(
		`SELECT id, content_session_id, memory_session_id, project, status, started_at, user_prompt
		 FROM sessions WHERE content_session_id = ?`, contentSessionID,
	))
}

// GetSession retrieves a session by its internal id.
func (s *Store) GetSession(id int64) (*types.Session, error) {
	return scanSession(s.db.QueryRow(
		`SELECT id, content_session_id, memory_session_id, project, status, started_at, user_prompt
		 FROM sessions WHERE id = ?`, id,
	))
}

func scanSession(row *sql.Row) (*types.Session, error) {
	var sess types.Session
	var memID sql.NullString
	var status string
	if err := row.Scan(&sess.ID, &sess.ContentSessionID, &memID, &sess.Project, &status, &sess.StartedAt, &sess.UserPrompt); err != nil {
		return nil, err
	}
	if memID.Valid {
		sess.MemorySessionID = &memID.String
	}
	sess.Status = types.SessionStatus(status)
	return &sess, nil
}

// UpdateMemorySessionID assigns memory_session_id, exactly once. Assigning
// the same value again is a no-op; assigning a different value fails.
func (s *Store) UpdateMemorySessionID(sessionDBID int64, memorySessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.GetSession(sessionDBID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if sess.MemorySessionID != nil {
		if *sess.MemorySessionID == memorySessionID {
			return nil
		}
		return ErrMemorySessionIDAlreadySet
	}

	_, err = s.db.Exec(`UPDATE sessions SET memory_session_id = ? WHERE id = ?`, memorySessionID, sessionDBID)
	if err != nil {
		return fmt.Errorf("update memory_session_id: %w", err)
	}
	return nil
}

// MarkSessionCompleted sets status=completed.
func (s *Store) MarkSessionCompleted(sessionDBID int64) error {
	return s.setSessionStatus(sessionDBID, types.SessionCompleted)
}

// MarkSessionFailed sets status=failed.
func (s *Store) MarkSessionFailed(sessionDBID int64) error {
	return s.setSessionStatus(sessionDBID, types.SessionFailed)
}

func (s *Store) setSessionStatus(sessionDBID int64, status types.SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE sessions SET status = ? WHERE id = ?`, status, sessionDBID)
	return err
}

// ListSessions returns sessions for a project, most recent first. An empty
// project lists across all projects.
func (s *Store) ListSessions(project string) ([]*types.Session, error) {
	query := `SELECT id, content_session_id, memory_session_id, project, status, started_at, user_prompt
	          FROM sessions`
	args := []any{}
	if project != "" {
		query += ` WHERE project = ?`
		args = append(args, project)
	}
	query += ` ORDER BY started_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*types.Session
	for rows.Next() {
		var sess types.Session
		var memID sql.NullString
		var status string
		if err := rows.Scan(&sess.ID, &sess.ContentSessionID, &memID, &sess.Project, &status, &sess.StartedAt, &sess.UserPrompt); err != nil {
			return nil, err
		}
		if memID.Valid {
			sess.MemorySessionID = &memID.String
		}
		sess.Status = types.SessionStatus(status)
		out = append(out, &sess)
	}
	return out, rows.Err()
}

// ListProjects returns a rollup summary per project for GET /projects.
func (s *Store) ListProjects() ([]*types.ProjectSummary, error) {
	rows, err := s.db.Query(`
		SELECT s.project,
		       COUNT(DISTINCT s.id) AS session_count,
		       COUNT(o.id) AS observation_count,
		       COALESCE(MAX(s.started_at), 0) AS last_activity
		FROM sessions s
		LEFT JOIN observations o ON o.session_id = s.id
		GROUP BY s.project
		ORDER BY last_activity DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*types.ProjectSummary
	for rows.Next() {
		var p types.ProjectSummary
		if err := rows.Scan(&p.Name, &p.SessionCount, &p.ObservationCount, &p.LastActivity); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
