// Package types provides the core data types for the memory worker.
package types

// SessionStatus is the lifecycle state of a Session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// Session is one logical conversation with the host.
type Session struct {
	ID               int64         `json:"id"`
	ContentSessionID string        `json:"contentSessionId"`
	MemorySessionID  *string       `json:"memorySessionId,omitempty"`
	Project          string        `json:"project"`
	Status           SessionStatus `json:"status"`
	StartedAt        int64         `json:"startedAt"`
	UserPrompt       string        `json:"userPrompt"`
}
