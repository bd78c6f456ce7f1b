package types

import "encoding/json"

// VectorDocType enumerates the owning-row kinds a VectorDocument can be
// derived from.
type VectorDocType string

const (
	DocObservation    VectorDocType = "observation"
	DocSessionSummary VectorDocType = "session_summary"
	DocUserPrompt     VectorDocType = "user_prompt"
)

// VectorDocument is one indexable text fragment derived from an Observation
// or Summary, per the granulation rule: one document per non-empty text
// field, plus one per fact.
type VectorDocument struct {
	ID              string          `json:"id"`
	SqliteID        int64           `json:"sqliteId"`
	DocType         VectorDocType   `json:"docType"`
	Content         string          `json:"content"`
	MemorySessionID string          `json:"memorySessionId"`
	Project         string          `json:"project"`
	CreatedAtEpoch  int64           `json:"createdAtEpoch"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	Vector          []float32       `json:"vector,omitempty"`
	Embedding       []byte          `json:"-"`
}

// QueryFilters narrows a vector query. All provided fields are conjunctive.
type QueryFilters struct {
	Project         string `json:"project,omitempty"`
	DocType         string `json:"docType,omitempty"`
	MemorySessionID string `json:"memorySessionId,omitempty"`
	MinEpoch        int64  `json:"minEpoch,omitempty"`
	MaxEpoch        int64  `json:"maxEpoch,omitempty"`
}

// QueryResult is one hit returned by a Vector Backend query, deduplicated
// by SqliteID so the best-scoring document per owning row wins.
type QueryResult struct {
	DocID    string        `json:"docId"`
	SqliteID int64         `json:"sqliteId"`
	DocType  VectorDocType `json:"docType"`
	Distance float32       `json:"distance"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
	Content  string        `json:"content,omitempty"`
}

// BackendStats describes a Vector Backend's current state for the
// GET /stats endpoint.
type BackendStats struct {
	Backend       string `json:"backend"`
	DocCount      int    `json:"docCount"`
	Collection    string `json:"collection,omitempty"`
	Dimensions    int    `json:"dimensions"`
	LastSyncEpoch int64  `json:"lastSyncEpoch,omitempty"`
}
