package api

import (
	"net/http"

	"github.com/dgallion1/patgest/internal/extract"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	ext := s.orchestrator.Extractor()
	stats := extract.StatsOf(ext)
	if stats == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"model": ext.Model(),
		"stats": stats.Snapshot(),
	})
}
