package store

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/memory-service/memoryd/pkg/types"
)

// SearchByText runs a LIKE-based substring search over observation titles,
// subtitles, and narratives, then re-ranks hits by edit-distance proximity
// to the query so near-misses (typos, partial words) surface ahead of
// merely-longer matches.
func (s *Store) SearchByText(query, project string, limit int) ([]*types.Observation, error) {
	if limit <= 0 {
		limit = 50
	}
	like := "%" + query + "%"

	sqlQuery := `
		SELECT id, session_id, memory_session_id, project, type, title, subtitle, narrative,
		       facts, concepts, files_read, files_modified, prompt_number, created_at_epoch
		FROM observations
		WHERE (title LIKE ? OR subtitle LIKE ? OR narrative LIKE ?)
	`
	args := []any{like, like, like}
	if project != "" {
		sqlQuery += ` AND project = ?`
		args = append(args, project)
	}
	sqlQuery += ` ORDER BY created_at_epoch DESC LIMIT ?`
	args = append(args, limit*4) // overfetch, then re-rank down to limit

	rows, err := s.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*types.Observation
	for rows.Next() {
		var o types.Observation
		var facts, concepts, filesRead, filesModified string
		if err := rows.Scan(
			&o.ID, &o.SessionID, &o.MemorySessionID, &o.Project, &o.Type, &o.Title, &o.Subtitle, &o.Narrative,
			&facts, &concepts, &filesRead, &filesModified, &o.PromptNumber, &o.CreatedAtEpoch,
		); err != nil {
			return nil, err
		}
		unmarshalObsLists(&o, facts, concepts, filesRead, filesModified)
		matches = append(matches, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	sort.SliceStable(matches, func(i, j int) bool {
		di := matchDistance(q, matches[i])
		dj := matchDistance(q, matches[j])
		return di < dj
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func matchDistance(query string, o *types.Observation) int {
	title := strings.ToLower(o.Title)
	d := levenshtein.ComputeDistance(query, title)
	if sub := strings.ToLower(o.Subtitle); sub != "" {
		if ds := levenshtein.ComputeDistance(query, sub); ds < d {
			d = ds
		}
	}
	return d
}

func unmarshalObsLists(o *types.Observation, facts, concepts, filesRead, filesModified string) {
	_ = json.Unmarshal([]byte(facts), &o.Facts)
	_ = json.Unmarshal([]byte(concepts), &o.Concepts)
	_ = json.Unmarshal([]byte(filesRead), &o.FilesRead)
	_ = json.Unmarshal([]byte(filesModified), &o.FilesModified)
}

// GetTimeline returns up to radius observations before and after the
// anchor observation (inclusive of the anchor), ordered chronologically.
func (s *Store) GetTimeline(anchorID int64, radius int) ([]*types.Observation, error) {
	anchor, err := s.GetObservationsByIDs([]int64{anchorID})
	if err != nil || len(anchor) == 0 {
		return nil, err
	}
	anchorEpoch := anchor[0].CreatedAtEpoch

	before, err := s.queryTimelineSide(anchorEpoch, radius, "created_at_epoch < ?", "DESC")
	if err != nil {
		return nil, err
	}
	after, err := s.queryTimelineSide(anchorEpoch, radius, "created_at_epoch > ?", "ASC")
	if err != nil {
		return nil, err
	}

	reverse(before)
	out := append(before, anchor[0])
	out = append(out, after...)
	return out, nil
}

func (s *Store) queryTimelineSide(anchorEpoch int64, radius int, cmp, order string) ([]*types.Observation, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, memory_session_id, project, type, title, subtitle, narrative,
		       facts, concepts, files_read, files_modified, prompt_number, created_at_epoch
		FROM observations WHERE `+cmp+`
		ORDER BY created_at_epoch `+order+`
		LIMIT ?
	`, anchorEpoch, radius)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*types.Observation
	for rows.Next() {
		var o types.Observation
		var facts, concepts, filesRead, filesModified string
		if err := rows.Scan(
			&o.ID, &o.SessionID, &o.MemorySessionID, &o.Project, &o.Type, &o.Title, &o.Subtitle, &o.Narrative,
			&facts, &concepts, &filesRead, &filesModified, &o.PromptNumber, &o.CreatedAtEpoch,
		); err != nil {
			return nil, err
		}
		unmarshalObsLists(&o, facts, concepts, filesRead, filesModified)
		out = append(out, &o)
	}
	return out, rows.Err()
}

func reverse(os []*types.Observation) {
	for i, j := 0, len(os)-1; i < j; i, j = i+1, j-1 {
		os[i], os[j] = os[j], os[i]
	}
}
