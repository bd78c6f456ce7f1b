package store

import (
	"fmt"
	"time"

	"github.com/memory-service/memoryd/pkg/types"
)

// StoreUserPrompt records one user prompt against a content session id.
func (s *Store) StoreUserPrompt(contentSessionID string, promptNumber int, promptText string) (*types.UserPrompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	res, err := s.db.Exec(`
		INSERT INTO user_prompts (content_session_id, prompt_number, prompt_text, created_at_epoch)
		VALUES (?, ?, ?, ?)
	`, contentSessionID, promptNumber, promptText, now)
	if err != nil {
		return nil, fmt.Errorf("insert user prompt: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &types.UserPrompt{
		ID:               id,
		ContentSessionID: contentSessionID,
		PromptNumber:     promptNumber,
		PromptText:       promptText,
		CreatedAtEpoch:   now,
	}, nil
}

// ListUserPrompts returns prompts for a content session, in order.
func (s *Store) ListUserPrompts(contentSessionID string) ([]*types.UserPrompt, error) {
	rows, err := s.db.Query(`
		SELECT id, content_session_id, prompt_number, prompt_text, created_at_epoch
		FROM user_prompts WHERE content_session_id = ? ORDER BY prompt_number ASC
	`, contentSessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*types.UserPrompt
	for rows.Next() {
		var p types.UserPrompt
		if err := rows.Scan(&p.ID, &p.ContentSessionID, &p.PromptNumber, &p.PromptText, &p.CreatedAtEpoch); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
