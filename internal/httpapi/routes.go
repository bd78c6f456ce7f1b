package httpapi

import "github.com/go-chi/chi/v5"

// setupRoutes wires the hook ingestion surface and the read/administrative
// endpoints named in spec.md §6, following the teacher's nested
// r.Route(...) layout.
func (s *Server) setupRoutes() {
	r := s.router

	r.Route("/hooks", func(r chi.Router) {
		r.Post("/{platform}/{event}", s.handleHook)
	})

	r.Get("/search", s.handleSemanticSearch)
	r.Get("/observations", s.handleSearchObservations)
	r.Get("/observations/{ids}", s.handleGetObservationsByIDs)
	r.Get("/timeline", s.handleTimeline)
	r.Get("/projects", s.handleListProjects)
	r.Get("/sessions", s.handleListSessions)
	r.Get("/stats", s.handleStats)
	r.Get("/logs", s.handleLogs)

	r.Route("/settings", func(r chi.Router) {
		r.Get("/", s.handleGetSettings)
		r.Put("/", s.handlePutSettings)
	})
}
