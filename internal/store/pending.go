package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/memory-service/memoryd/pkg/types"
)

// EnqueueObservationMessage appends an observation-producing hook event to
// the pending queue.
func (s *Store) EnqueueObservationMessage(sessionID int64, toolName string, toolInput, toolResponse []byte, promptNumber int, cwd string) (*types.PendingMessage, error) {
	return s.enqueue(sessionID, types.PendingObservation, toolName, toolInput, toolResponse, promptNumber, cwd, "")
}

// EnqueueSummaryMessage appends a session-summarizing hook event to the
// pending queue.
func (s *Store) EnqueueSummaryMessage(sessionID int64, promptNumber int, cwd, lastAssistantMessage string) (*types.PendingMessage, error) {
	return s.enqueue(sessionID, types.PendingSummarize, "", nil, nil, promptNumber, cwd, lastAssistantMessage)
}

func (s *Store) enqueue(sessionID int64, typ types.PendingMessageType, toolName string, toolInput, toolResponse []byte, promptNumber int, cwd, lastAssistantMessage string) (*types.PendingMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if toolInput == nil {
		toolInput = []byte("{}")
	}
	if toolResponse == nil {
		toolResponse = []byte("{}")
	}

	now := time.Now().UnixMilli()
	res, err := s.db.Exec(`
		INSERT INTO pending_messages (
			session_id, type, tool_name, tool_input, tool_response, prompt_number, cwd, last_assistant_message, enqueued_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sessionID, typ, toolName, string(toolInput), string(toolResponse), promptNumber, cwd, lastAssistantMessage, now)
	if err != nil {
		return nil, fmt.Errorf("insert pending message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &types.PendingMessage{
		ID:                   id,
		SessionID:            sessionID,
		Type:                 typ,
		ToolName:             toolName,
		ToolInput:            toolInput,
		ToolResponse:         toolResponse,
		PromptNumber:         promptNumber,
		Cwd:                  cwd,
		EnqueuedAt:           now,
		LastAssistantMessage: lastAssistantMessage,
	}, nil
}

// IteratePending streams unprocessed, non-in-flight messages for a session
// in enqueued_at order over the returned channel. Each yielded message is
// immediately marked in_flight so a concurrent caller (or a crash-restart
// rescan) will not hand it out twice; the consumer calls MarkProcessed after
// successful handling, or leaves it in_flight for ResetStuckMessages to
// reclaim on worker restart. The channel closes when the context is
// cancelled or no unprocessed rows remain.
func (s *Store) IteratePending(ctx context.Context, sessionID int64) <-chan *types.PendingMessage {
	out := make(chan *types.PendingMessage)
	go func() {
		defer close(out)
		for {
			msg, err := s.claimNextPending(sessionID)
			if err != nil || msg == nil {
				return
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (s *Store) claimNextPending(sessionID int64) (*types.PendingMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`
		SELECT id, session_id, type, tool_name, tool_input, tool_response, prompt_number, cwd, last_assistant_message, enqueued_at, processed_at
		FROM pending_messages
		WHERE session_id = ? AND processed_at IS NULL AND in_flight = 0
		ORDER BY enqueued_at ASC
		LIMIT 1
	`, sessionID)

	msg, err := scanPending(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.db.Exec(`UPDATE pending_messages SET in_flight = 1 WHERE id = ?`, msg.ID); err != nil {
		return nil, fmt.Errorf("mark in_flight: %w", err)
	}
	return msg, nil
}

// MarkProcessed records successful handling of a message, transitioning
// processed_at null -> now exactly once and clearing its in_flight marker.
func (s *Store) MarkProcessed(messageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UnixMilli()
	_, err := s.db.Exec(`
		UPDATE pending_messages SET processed_at = ?, in_flight = 0
		WHERE id = ? AND processed_at IS NULL
	`, now, messageID)
	return err
}

// ResetStuckMessages clears the in_flight marker on every unprocessed row,
// making rows left in flight by a crashed worker resurrectable. Call once
// on worker startup before resuming IteratePending for any session.
func (s *Store) ResetStuckMessages() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`UPDATE pending_messages SET in_flight = 0 WHERE processed_at IS NULL AND in_flight = 1`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CleanupProcessed deletes processed rows older than olderThanEpoch, bounding
// table growth.
func (s *Store) CleanupProcessed(olderThanEpoch int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`DELETE FROM pending_messages WHERE processed_at IS NOT NULL AND processed_at < ?`, olderThanEpoch)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// HasPending reports whether a session has unprocessed, non-in-flight work,
// used by the Session Manager to decide whether a completed generator
// should be restarted.
func (s *Store) HasPending(sessionID int64) (bool, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM pending_messages WHERE session_id = ? AND processed_at IS NULL AND in_flight = 0
	`, sessionID).Scan(&n)
	return n > 0, err
}

func scanPending(row *sql.Row) (*types.PendingMessage, error) {
	var m types.PendingMessage
	var toolInput, toolResponse string
	var processedAt sql.NullInt64
	if err := row.Scan(
		&m.ID, &m.SessionID, &m.Type, &m.ToolName, &toolInput, &toolResponse,
		&m.PromptNumber, &m.Cwd, &m.LastAssistantMessage, &m.EnqueuedAt, &processedAt,
	); err != nil {
		return nil, err
	}
	m.ToolInput = []byte(toolInput)
	m.ToolResponse = []byte(toolResponse)
	if processedAt.Valid {
		m.ProcessedAt = &processedAt.Int64
	}
	return &m, nil
}
