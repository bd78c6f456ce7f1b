package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/schema"

	"github.com/memory-service/memoryd/internal/event"
	"github.com/memory-service/memoryd/internal/logging"
	"github.com/memory-service/memoryd/internal/provider"
	"github.com/memory-service/memoryd/internal/store"
	"github.com/memory-service/memoryd/internal/vector"
	"github.com/memory-service/memoryd/pkg/types"
)

// State is a Session Agent lifecycle state, per spec.md §4.C.
type State string

const (
	StateInitializing State = "initializing"
	StateRunningInit   State = "running_init"
	StateDraining      State = "draining"
	StateSummarizing   State = "summarizing"
	StateDone          State = "done"
	StateAborted       State = "aborted"
	StateFailed        State = "failed"
)

// Agent drives one session's extractor conversation to completion. It is
// built fresh per generator run by the Session Manager (internal/sessionmgr)
// rather than reused, so provider.Provider implementations that track
// per-conversation state (the Claude persistent streaming session) never
// leak across unrelated sessions.
type Agent struct {
	store      *store.Store
	vec        vector.Backend
	primary    provider.Provider
	fallback   provider.Provider
	current    provider.Provider
	truncation types.TruncationConfig

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
}

// New builds an Agent bound to a single session run. fallback may be nil.
func New(st *store.Store, vec vector.Backend, primary, fallback provider.Provider, truncation types.TruncationConfig) *Agent {
	if truncation.MaxContextMessages <= 0 {
		truncation.MaxContextMessages = types.DefaultSettings().Truncation.MaxContextMessages
	}
	return &Agent{
		store:      st,
		vec:        vec,
		primary:    primary,
		fallback:   fallback,
		current:    primary,
		truncation: truncation,
		state:      StateInitializing,
	}
}

// State returns the agent's current lifecycle state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Agent) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// Cancel aborts the in-flight LLM call and stops the message loop at the
// next boundary, per spec.md §5's cancellation model.
func (a *Agent) Cancel() {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// StartSession runs the state machine to completion, consuming messages
// from the channel in order until it closes (natural completion) or the
// agent is cancelled. It returns when the session reaches Done, Aborted, or
// Failed.
func (a *Agent) StartSession(ctx context.Context, session *types.Session, messages <-chan *types.PendingMessage) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()

	a.setState(StateInitializing)
	history := []*schema.Message{a.systemMessage(session)}

	a.setState(StateRunningInit)
	history, memorySessionID, err := a.runInit(runCtx, session, history)
	if err != nil {
		return a.fail(session, err)
	}

	a.setState(StateDraining)
	for {
		select {
		case <-runCtx.Done():
			a.setState(StateAborted)
			return runCtx.Err()

		case msg, ok := <-messages:
			if !ok {
				a.setState(StateDone)
				a.clearCancelOnNaturalCompletion()
				if err := a.store.MarkSessionCompleted(session.ID); err != nil {
					return err
				}
				event.PublishSync(event.Event{
					Type: event.SessionCompleted,
					Data: event.SessionCompletedData{SessionID: session.ID},
				})
				return nil
			}

			if msg.Type == types.PendingSummarize {
				a.setState(StateSummarizing)
				history, err = a.processSummary(runCtx, session, memorySessionID, msg, history)
			} else {
				history, err = a.processObservation(runCtx, session, memorySessionID, msg, history)
			}
			if err != nil {
				return a.fail(session, err)
			}

			if err := a.store.MarkProcessed(msg.ID); err != nil {
				return a.fail(session, err)
			}
			event.PublishSync(event.Event{
				Type: event.PendingMessageProcessed,
				Data: event.PendingMessageProcessedData{SessionDBID: session.ID, MessageID: msg.ID},
			})

			history = truncateHistory(history, a.truncation.MaxContextMessages, a.truncation.MaxTokens)
		}
	}
}

// runInit posts the system-message-only history, establishes
// memory_session_id (from the provider's echoed session id, or synthesized
// as "<provider>-<content_session_id>"), and persists it before any
// Observation is written, per spec.md §5's ordering guarantee.
func (a *Agent) runInit(ctx context.Context, session *types.Session, history []*schema.Message) ([]*schema.Message, string, error) {
	reply, err := a.generate(ctx, history)
	if err != nil {
		return history, "", err
	}
	history = append(history, reply)

	memorySessionID := a.current.SessionID()
	if memorySessionID == "" {
		memorySessionID = fmt.Sprintf("%s-%s", a.current.ID(), session.ContentSessionID)
	}
	if err := a.store.UpdateMemorySessionID(session.ID, memorySessionID); err != nil && !errors.Is(err, store.ErrMemorySessionIDAlreadySet) {
		return history, "", fmt.Errorf("persist memory_session_id: %w", err)
	}
	return history, memorySessionID, nil
}

// generate posts history to the current provider, retrying a transient
// connectivity error against the same provider with exponential backoff; if
// retries are exhausted and a fallback is configured, the session hands off
// to it for the rest of its lifetime. A 4xx or other non-transient error is
// returned as-is without retrying, per spec.md §4.C/§7.
func (a *Agent) generate(ctx context.Context, history []*schema.Message) (*schema.Message, error) {
	msg, err := a.generateWithRetry(ctx, a.current, history)
	if err == nil {
		return msg, nil
	}
	if provider.ClassifyError(err) == provider.ErrTransient && a.fallback != nil && a.current != a.fallback {
		logging.Warn().Err(err).Str("provider", a.current.ID()).Msg("transient provider error exhausted retries; handing off to fallback")
		a.current = a.fallback
		return a.generateWithRetry(ctx, a.current, history)
	}
	return nil, err
}

// generateWithRetry calls p.Generate, retrying only transient connectivity
// failures with jittered exponential backoff; a 4xx or other non-transient
// error aborts the retry loop immediately.
func (a *Agent) generateWithRetry(ctx context.Context, p provider.Provider, history []*schema.Message) (*schema.Message, error) {
	var msg *schema.Message
	operation := func() error {
		var genErr error
		msg, genErr = p.Generate(ctx, history)
		if genErr != nil && provider.ClassifyError(genErr) != provider.ErrTransient {
			return backoff.Permanent(genErr)
		}
		return genErr
	}
	if err := backoff.Retry(operation, newRetryBackoff(ctx)); err != nil {
		if perr, ok := err.(*backoff.PermanentError); ok {
			return nil, perr.Unwrap()
		}
		return nil, err
	}
	return msg, nil
}

func (a *Agent) fail(session *types.Session, cause error) error {
	a.setState(StateFailed)
	if err := a.store.MarkSessionFailed(session.ID); err != nil {
		logging.Error().Err(err).Int64("sessionId", session.ID).Msg("failed to mark session failed")
	}
	event.PublishSync(event.Event{
		Type: event.SessionFailed,
		Data: event.SessionFailedData{SessionID: session.ID, Reason: cause.Error()},
	})
	return cause
}

// clearCancelOnNaturalCompletion drops the cancel func so a stale
// already-cancelled token can never be observed by a subsequent run; the
// next StartSession call installs a fresh one regardless.
func (a *Agent) clearCancelOnNaturalCompletion() {
	a.mu.Lock()
	a.cancel = nil
	a.mu.Unlock()
}

// processObservation posts an observation-extraction turn, parses the
// reply, and writes every parsed Observation through the Store before
// syncing it to the Vector Backend, per spec.md §4.C step 4's ordering
// (the Store assigns the id the vector document is keyed on).
func (a *Agent) processObservation(ctx context.Context, session *types.Session, memorySessionID string, msg *types.PendingMessage, history []*schema.Message) ([]*schema.Message, error) {
	history = append(history, userMessage(buildObservationPrompt(msg)))
	reply, err := a.generate(ctx, history)
	if err != nil {
		return history, err
	}
	history = append(history, reply)

	observations := parseObservations(reply.Content)
	if msg.ToolName == "Bash" {
		enrichObservationsFromBash(observations, msg)
	}
	if len(observations) == 0 {
		return history, nil
	}

	results, err := a.store.StoreObservations(session.ID, memorySessionID, session.Project, observations)
	if err != nil {
		return history, fmt.Errorf("store observations: %w", err)
	}
	for _, res := range results {
		if !res.Imported {
			continue
		}
		if err := a.vec.SyncObservation(ctx, res.Observation); err != nil {
			logging.Warn().Err(err).Int64("observationId", res.Observation.ID).Msg("vector sync failed")
		}
		event.PublishSync(event.Event{
			Type: event.ObservationStored,
			Data: event.ObservationStoredData{
				ID:              res.Observation.ID,
				MemorySessionID: memorySessionID,
				Title:           res.Observation.Title,
				Imported:        res.Imported,
			},
		})
	}
	return history, nil
}

// processSummary posts the session-stop summary turn, parses the reply,
// and writes the result through the Store and Vector Backend. A reply that
// carries no <summary> element leaves the session with no summary row,
// which is a valid outcome per spec.md §4.C.
func (a *Agent) processSummary(ctx context.Context, session *types.Session, memorySessionID string, msg *types.PendingMessage, history []*schema.Message) ([]*schema.Message, error) {
	history = append(history, userMessage(buildSummaryPrompt(session, msg)))
	reply, err := a.generate(ctx, history)
	if err != nil {
		return history, err
	}
	history = append(history, reply)

	summary := parseSummary(reply.Content)
	if summary == nil {
		return history, nil
	}
	summary.MemorySessionID = memorySessionID

	stored, err := a.store.StoreSummary(session.ID, summary)
	if err != nil {
		return history, fmt.Errorf("store summary: %w", err)
	}
	if err := a.vec.SyncSummary(ctx, stored); err != nil {
		logging.Warn().Err(err).Int64("summaryId", stored.ID).Msg("vector sync failed")
	}
	event.PublishSync(event.Event{
		Type: event.SummaryStored,
		Data: event.SummaryStoredData{ID: stored.ID, MemorySessionID: memorySessionID},
	})
	return history, nil
}

// enrichObservationsFromBash backfills file_modified on every parsed
// observation whose list the extractor's own reply left empty, from the
// shell command itself. It never overwrites a non-empty list.
func enrichObservationsFromBash(observations []*types.Observation, msg *types.PendingMessage) {
	if len(observations) == 0 {
		return
	}
	var command struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(msg.ToolInput, &command); err != nil || command.Command == "" {
		return
	}
	paths := enrichFromBashCommand(command.Command, msg.Cwd)
	if len(paths) == 0 {
		return
	}
	for _, o := range observations {
		if len(o.FilesModified) == 0 {
			o.FilesModified = paths
		}
	}
}

func (a *Agent) systemMessage(session *types.Session) *schema.Message {
	content := fmt.Sprintf(`You are the memory extraction agent for project %q.
Content session: %s
Opening prompt: %s

You will be shown a sequence of tool invocations made during this session.
For each one, respond with zero or more <observation> elements, each with
type, title, subtitle, narrative, fact, concept, file_read, file_modified
children. When asked to summarize, respond with one <summary> element with
request, investigated, learned, completed, next_steps, notes children.`,
		session.Project, session.ContentSessionID, session.UserPrompt)
	return &schema.Message{Role: schema.System, Content: content}
}

func userMessage(content string) *schema.Message {
	return &schema.Message{Role: schema.User, Content: content}
}
