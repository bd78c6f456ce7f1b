package event

import "github.com/memory-service/memoryd/pkg/types"

// SessionCreatedData is the data for session.created events.
type SessionCreatedData struct {
	Session *types.Session `json:"session"`
}

// SessionCompletedData is the data for session.completed events.
type SessionCompletedData struct {
	SessionID int64 `json:"sessionID"`
}

// SessionFailedData is the data for session.failed events.
type SessionFailedData struct {
	SessionID int64  `json:"sessionID"`
	Reason    string `json:"reason"`
}

// PendingMessageEnqueuedData is the data for pending.enqueued events.
type PendingMessageEnqueuedData struct {
	SessionDBID int64  `json:"sessionDbId"`
	MessageID   int64  `json:"messageId"`
	Type        string `json:"type"` // "observation" | "summarize"
}

// PendingMessageProcessedData is the data for pending.processed events.
type PendingMessageProcessedData struct {
	SessionDBID int64 `json:"sessionDbId"`
	MessageID   int64 `json:"messageId"`
}

// ObservationStoredData is the data for observation.stored events.
type ObservationStoredData struct {
	ID              int64  `json:"id"`
	MemorySessionID string `json:"memorySessionId"`
	Title           string `json:"title"`
	Imported        bool   `json:"imported"`
}

// SummaryStoredData is the data for summary.stored events.
type SummaryStoredData struct {
	ID              int64  `json:"id"`
	MemorySessionID string `json:"memorySessionId"`
}

// VcsBranchUpdatedData is the data for vcs.branch_updated events.
type VcsBranchUpdatedData struct {
	Branch string `json:"branch"`
}

// SubprocessOrphanKilledData is the data for subprocess.orphan_killed events.
type SubprocessOrphanKilledData struct {
	PID int `json:"pid"`
}
