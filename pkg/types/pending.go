package types

import "encoding/json"

// PendingMessageType is the kind of queued hook event.
type PendingMessageType string

const (
	PendingObservation PendingMessageType = "observation"
	PendingSummarize   PendingMessageType = "summarize"
)

// PendingMessage is one queued hook event awaiting processing by a
// session's agent. Messages are consumed in enqueued_at order by the
// single active generator for a session.
type PendingMessage struct {
	ID                    int64              `json:"id"`
	SessionID             int64              `json:"sessionId"`
	Type                  PendingMessageType `json:"type"`
	ToolName              string             `json:"toolName,omitempty"`
	ToolInput             json.RawMessage    `json:"toolInput,omitempty"`
	ToolResponse          json.RawMessage    `json:"toolResponse,omitempty"`
	PromptNumber          int                `json:"promptNumber"`
	Cwd                   string             `json:"cwd,omitempty"`
	EnqueuedAt            int64              `json:"enqueuedAt"`
	ProcessedAt           *int64             `json:"processedAt,omitempty"`
	LastAssistantMessage  string             `json:"lastAssistantMessage,omitempty"`
}
