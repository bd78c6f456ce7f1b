package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/memory-service/memoryd/internal/sessionmgr"
)

// hookRequest is the JSON body a coding assistant's hook script posts to
// POST /hooks/{platform}/{event}.
type hookRequest struct {
	ContentSessionID      string          `json:"contentSessionId"`
	Project               string          `json:"project"`
	UserPrompt            string          `json:"userPrompt,omitempty"`
	PromptNumber          int             `json:"promptNumber,omitempty"`
	Cwd                   string          `json:"cwd,omitempty"`
	ToolName              string          `json:"toolName,omitempty"`
	ToolInput             json.RawMessage `json:"toolInput,omitempty"`
	ToolResponse          json.RawMessage `json:"toolResponse,omitempty"`
	LastAssistantMessage  string          `json:"lastAssistantMessage,omitempty"`
}

var validHookEvents = map[string]sessionmgr.HookEventType{
	"session-init": sessionmgr.HookSessionInit,
	"context":      sessionmgr.HookContext,
	"observation":  sessionmgr.HookObservation,
	"file-edit":    sessionmgr.HookFileEdit,
	"summarize":    sessionmgr.HookSummarize,
}

// handleHook decodes one hook event and routes it to the Session Manager,
// per spec.md §4.D/§6. The platform path segment is accepted but not
// interpreted here: every platform produces the same normalized HookEvent.
func (s *Server) handleHook(w http.ResponseWriter, r *http.Request) {
	eventSeg := chi.URLParam(r, "event")
	eventType, ok := validHookEvents[eventSeg]
	if !ok {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "unknown hook event: "+eventSeg)
		return
	}

	var body hookRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body: "+err.Error())
		return
	}
	if body.ContentSessionID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "contentSessionId is required")
		return
	}

	session, err := s.mgr.HandleHookEvent(sessionmgr.HookEvent{
		Type:                  eventType,
		ContentSessionID:      body.ContentSessionID,
		Project:               body.Project,
		UserPrompt:            body.UserPrompt,
		PromptNumber:          body.PromptNumber,
		Cwd:                   body.Cwd,
		ToolName:              body.ToolName,
		ToolInput:             body.ToolInput,
		ToolResponse:          body.ToolResponse,
		LastAssistantMessage:  body.LastAssistantMessage,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, session)
}
