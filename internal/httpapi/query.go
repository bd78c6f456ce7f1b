package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/memory-service/memoryd/pkg/types"
)

// handleSemanticSearch serves GET /search?q=&project=&docType=&limit=, the
// worker's semantic-search read path: it embeds q and ranks candidates by
// vector distance through the configured Vector Backend, per spec.md
// §4.B's Query contract, rather than the SQL/Levenshtein text match
// handleSearchObservations performs.
func (s *Server) handleSemanticSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "q is required")
		return
	}

	limit := 10
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	results, err := s.vec.Query(r.Context(), query, types.QueryFilters{
		Project: q.Get("project"),
		DocType: q.Get("docType"),
	}, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// handleSearchObservations serves GET /observations?q=&project=&limit=.
func (s *Server) handleSearchObservations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 50
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	obs, err := s.st.SearchByText(q.Get("q"), q.Get("project"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, obs)
}

// handleGetObservationsByIDs serves GET /observations/{ids}, a
// comma-separated list of observation ids, in the order given.
func (s *Server) handleGetObservationsByIDs(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "ids")
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid observation id: "+p)
			return
		}
		ids = append(ids, id)
	}

	obs, err := s.st.GetObservationsByIDs(ids)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, obs)
}

// handleTimeline serves GET /timeline?anchor=&radius=.
func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	anchor, err := strconv.ParseInt(q.Get("anchor"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "anchor must be an observation id")
		return
	}
	radius := 10
	if raw := q.Get("radius"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			radius = n
		}
	}

	obs, err := s.st.GetTimeline(anchor, radius)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, obs)
}

// handleListProjects serves GET /projects.
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.st.ListProjects()
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// handleListSessions serves GET /sessions?project=.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.st.ListSessions(r.URL.Query().Get("project"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// statsResponse is the GET /stats payload: vector backend health plus the
// supervisor's current child-process count.
type statsResponse struct {
	Backend        any `json:"backend"`
	SupervisedPIDs int `json:"supervisedPids"`
}

// handleStats serves GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	backendStats, err := s.vec.GetStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	resp := statsResponse{
		Backend:        backendStats,
		SupervisedPIDs: len(s.sup.SnapshotChildPids()),
	}
	writeJSON(w, http.StatusOK, resp)
}
