package sessionmgr

import (
	"context"
	"sync"

	"github.com/memory-service/memoryd/internal/agent"
	"github.com/memory-service/memoryd/internal/event"
	"github.com/memory-service/memoryd/internal/logging"
	"github.com/memory-service/memoryd/internal/store"
	"github.com/memory-service/memoryd/internal/vector"
	"github.com/memory-service/memoryd/pkg/types"
)

// HookEventType mirrors the hook endpoint's event path segment, per
// spec.md §6 (`POST /hooks/<platform>/<event>`).
type HookEventType string

const (
	HookSessionInit HookEventType = "session-init"
	HookContext     HookEventType = "context"
	HookObservation HookEventType = "observation"
	HookFileEdit    HookEventType = "file-edit"
	HookSummarize   HookEventType = "summarize"
)

// HookEvent is the platform-normalized payload the HTTP layer decodes a
// hook request body into before handing it to the Manager.
type HookEvent struct {
	Type             HookEventType
	ContentSessionID string
	Project          string
	UserPrompt       string // when present, recorded as a searchable User Prompt row
	PromptNumber     int
	Cwd              string

	ToolName             string
	ToolInput            []byte
	ToolResponse         []byte
	LastAssistantMessage string // carried on summarize
}

// AgentFactory builds a fresh Session Agent bound to the Manager's Store and
// Vector Backend, using whatever provider/fallback settings.json currently
// names. A fresh Agent per generator run keeps provider-level session state
// (the Claude persistent streaming session) from leaking across sessions.
type AgentFactory func() *agent.Agent

// Manager is the dedup guard and hook-event router described in spec.md
// §4.D. It is safe for concurrent use.
type Manager struct {
	st        *store.Store
	vec       vector.Backend
	newAgent  AgentFactory
	runnerCtx context.Context

	mu     sync.Mutex
	active map[int64]struct{} // session db id -> generator running

	sweepOnce     sync.Once
	sweepStopOnce sync.Once
	sweepStop     chan struct{}
	sweepDone     chan struct{}
}

// New builds a Manager. runnerCtx should outlive any single HTTP request —
// generators keep running after the hook handler that triggered them has
// already responded, so they must not inherit a request-scoped context.
func New(st *store.Store, vec vector.Backend, runnerCtx context.Context, newAgent AgentFactory) *Manager {
	return &Manager{
		st:        st,
		vec:       vec,
		newAgent:  newAgent,
		runnerCtx: runnerCtx,
		active:    make(map[int64]struct{}),
	}
}

// HandleHookEvent looks up or creates the session, enqueues the derived
// pending message (session-init enqueues none — it only ensures the session
// row exists), and ensures a generator is running. It returns as soon as
// the message is durably queued; it does not wait for the generator.
func (m *Manager) HandleHookEvent(ev HookEvent) (*types.Session, error) {
	session, err := m.st.CreateSession(ev.ContentSessionID, ev.Project, ev.UserPrompt)
	if err != nil {
		return nil, err
	}

	if ev.UserPrompt != "" {
		m.recordUserPrompt(ev.ContentSessionID, ev.PromptNumber, ev.UserPrompt)
	}

	switch ev.Type {
	case HookSessionInit:
		// Nothing to enqueue; the session row alone satisfies this event.
		return session, nil

	case HookSummarize:
		msg, err := m.st.EnqueueSummaryMessage(session.ID, ev.PromptNumber, ev.Cwd, ev.LastAssistantMessage)
		if err != nil {
			return nil, err
		}
		m.publishEnqueued(session.ID, msg)

	default: // context, observation, file-edit all produce an observation turn
		toolName := ev.ToolName
		if toolName == "" {
			toolName = string(ev.Type)
		}
		msg, err := m.st.EnqueueObservationMessage(session.ID, toolName, ev.ToolInput, ev.ToolResponse, ev.PromptNumber, ev.Cwd)
		if err != nil {
			return nil, err
		}
		m.publishEnqueued(session.ID, msg)
	}

	m.ensureGenerator(session)
	return session, nil
}

// recordUserPrompt persists one turn's user input text for searchability,
// per spec.md §3's User Prompt entity, then syncs it into the Vector
// Backend's user_prompt-typed documents. Both the write and the sync are
// best-effort: a failure here never blocks the hook response or the
// observation/summarize path that follows in the same request.
func (m *Manager) recordUserPrompt(contentSessionID string, promptNumber int, promptText string) {
	prompt, err := m.st.StoreUserPrompt(contentSessionID, promptNumber, promptText)
	if err != nil {
		logging.Error().Err(err).Str("contentSessionId", contentSessionID).Msg("store user prompt failed")
		return
	}
	if m.vec == nil {
		return
	}
	if err := m.vec.SyncUserPrompt(m.runnerCtx, prompt); err != nil {
		logging.Warn().Err(err).Str("contentSessionId", contentSessionID).Msg("vector sync of user prompt failed; store write still succeeded")
	}
}

func (m *Manager) publishEnqueued(sessionID int64, msg *types.PendingMessage) {
	event.PublishSync(event.Event{
		Type: event.PendingMessageEnqueued,
		Data: event.PendingMessageEnqueuedData{
			SessionDBID: sessionID,
			MessageID:   msg.ID,
			Type:        string(msg.Type),
		},
	})
}

// ensureGenerator is the dedup guard: under concurrent callers for the same
// session, exactly one of them observes an empty slot and starts a
// generator; the rest return immediately, per spec.md §4.D.
func (m *Manager) ensureGenerator(session *types.Session) {
	m.mu.Lock()
	if _, running := m.active[session.ID]; running {
		m.mu.Unlock()
		return
	}
	m.active[session.ID] = struct{}{}
	m.mu.Unlock()

	go m.runGenerator(session)
}

// runGenerator drains the pending queue with a fresh Agent per pass,
// restarting as long as more work arrived while the previous pass was
// finishing. It always clears the active slot before returning, so a
// subsequent HandleHookEvent call can restart it.
func (m *Manager) runGenerator(session *types.Session) {
	defer func() {
		m.mu.Lock()
		delete(m.active, session.ID)
		m.mu.Unlock()
	}()

	for {
		ag := m.newAgent()
		messages := m.st.IteratePending(m.runnerCtx, session.ID)
		if err := ag.StartSession(m.runnerCtx, session, messages); err != nil {
			logging.Error().Err(err).Int64("sessionId", session.ID).Msg("session agent run failed")
			return
		}

		hasPending, err := m.st.HasPending(session.ID)
		if err != nil {
			logging.Error().Err(err).Int64("sessionId", session.ID).Msg("check pending after generator run failed")
			return
		}
		if !hasPending {
			return
		}
	}
}

// IsActive reports whether a generator is currently running for a session,
// for diagnostics (GET /stats) and the stall sweep.
func (m *Manager) IsActive(sessionID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[sessionID]
	return ok
}

// MarkProcessed, CleanupProcessed and ResetStuckMessages expose the
// PendingMessageStore operations named in spec.md §4.D as thin wrappers so
// callers (the HTTP layer, a maintenance CLI) go through the Manager rather
// than reaching into the Store directly.
func (m *Manager) MarkProcessed(messageID int64) error {
	return m.st.MarkProcessed(messageID)
}

func (m *Manager) CleanupProcessed(olderThanEpoch int64) (int64, error) {
	return m.st.CleanupProcessed(olderThanEpoch)
}

func (m *Manager) ResetStuckMessages() (int64, error) {
	return m.st.ResetStuckMessages()
}
