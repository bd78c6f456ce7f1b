package httpapi

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/memory-service/memoryd/internal/config"
)

// handleGetSettings serves GET /settings.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	writeJSON(w, http.StatusOK, s.settings)
}

// handlePutSettings serves PUT /settings, replacing the in-memory settings
// and persisting them to disk.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var incoming = *s.settings // start from the current settings, then overlay
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body: "+err.Error())
		return
	}

	s.settingsMu.Lock()
	s.settings = &incoming
	err := config.Save(s.settings, s.paths)
	s.settingsMu.Unlock()

	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeSuccess(w)
}

// logEntry is one tailed log line's worker-assigned metadata for GET /logs.
type logEntry struct {
	File string `json:"file"`
	Line string `json:"line"`
}

// handleLogs serves GET /logs?lines=, tailing the most recent log file
// under the worker's logs directory (internal/logging writes one per run).
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	n := 200
	if raw := r.URL.Query().Get("lines"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			n = parsed
		}
	}
	entries, err := tailLatestLog(s.paths.LogsDir(), n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func tailLatestLog(dir string, maxLines int) ([]logEntry, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, f := range files {
		if !f.IsDir() {
			names = append(names, f.Name())
		}
	}
	if len(names) == 0 {
		return nil, nil
	}
	sort.Strings(names)
	latest := names[len(names)-1]

	data, err := os.ReadFile(filepath.Join(dir, latest))
	if err != nil {
		return nil, err
	}

	lines := splitLines(string(data))
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}

	out := make([]logEntry, len(lines))
	for i, l := range lines {
		out[i] = logEntry{File: latest, Line: l}
	}
	return out, nil
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
