package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSession_JSONRoundTrip(t *testing.T) {
	memID := "claude-abc123"
	s := Session{
		ID:               1,
		ContentSessionID: "content-session-456",
		MemorySessionID:  &memID,
		Project:          "memoryd",
		Status:           SessionActive,
		StartedAt:        1700000000000,
		UserPrompt:       "fix the failing test",
	}

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded Session
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, s, decoded)
}

func TestSession_NilMemorySessionID(t *testing.T) {
	s := Session{ID: 1, ContentSessionID: "c1", Status: SessionActive}

	data, err := json.Marshal(s)
	require.NoError(t, err)
	require.NotContains(t, string(data), "memorySessionId")

	var decoded Session
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Nil(t, decoded.MemorySessionID)
}

func TestObservation_JSONRoundTrip(t *testing.T) {
	o := Observation{
		ID:              42,
		SessionID:       1,
		MemorySessionID: "claude-abc123",
		Project:         "memoryd",
		Type:            ObsDiscovery,
		Title:           "Found the race condition",
		Narrative:       "The dedup guard leaked a waiter channel under rapid bursts.",
		Facts:           []string{"guard is a map keyed by session id", "waiters are notified with nil"},
		Concepts:        []string{"concurrency", "dedup"},
		FilesRead:       []string{"internal/sessionmgr/manager.go"},
		PromptNumber:    3,
		CreatedAtEpoch:  1700000000000,
	}

	data, err := json.Marshal(o)
	require.NoError(t, err)

	var decoded Observation
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, o, decoded)
}

func TestPendingMessage_ToolInputRawMessage(t *testing.T) {
	pm := PendingMessage{
		ID:         1,
		SessionID:  1,
		Type:       PendingObservation,
		ToolName:   "Read",
		ToolInput:  json.RawMessage(`{"file_path":"/tmp/a.ts"}`),
		EnqueuedAt: 1700000000000,
	}

	data, err := json.Marshal(pm)
	require.NoError(t, err)

	var decoded PendingMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.JSONEq(t, string(pm.ToolInput), string(decoded.ToolInput))
	require.Nil(t, decoded.ProcessedAt)
}

func TestVectorDocument_GranulationID(t *testing.T) {
	doc := VectorDocument{
		ID:      "obs_42_narrative",
		DocType: DocObservation,
		Content: "some narrative text",
	}

	require.Equal(t, "obs_42_narrative", doc.ID)
	require.Equal(t, DocObservation, doc.DocType)
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	require.Equal(t, "claude", s.Provider)
	require.Equal(t, 3, s.Federation.MaxRemotes)
	require.Equal(t, "golden", s.Federation.DecayStrategy)
	require.Equal(t, 150000, s.Truncation.MaxTokens)
}
