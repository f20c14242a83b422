package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/patgest/internal/store"
)

// requireStore writes a 503 when the service runs without a run store.
func (s *Server) requireStore(w http.ResponseWriter) (*store.Store, bool) {
	if s.store == nil {
		jsonError(w, "run store disabled", http.StatusServiceUnavailable)
		return nil, false
	}
	return s.store, true
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	st, ok := s.requireStore(w)
	if !ok {
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	runs, err := st.ListRuns(r.Context(), limit)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	st, ok := s.requireStore(w)
	if !ok {
		return
	}
	run, err := st.Run(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleRunRecords(w http.ResponseWriter, r *http.Request) {
	st, ok := s.requireStore(w)
	if !ok {
		return
	}
	id := chi.URLParam(r, "jobID")
	if _, err := st.Run(r.Context(), id); err != nil {
		storeError(w, err)
		return
	}
	recs, err := st.Records(r.Context(), id, r.URL.Query().Get("valid") == "true")
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run_id": id, "records": recs})
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	st, ok := s.requireStore(w)
	if !ok {
		return
	}
	id := chi.URLParam(r, "jobID")
	if err := st.DeleteRun(r.Context(), id); err != nil {
		storeError(w, err)
		return
	}
	s.log.Info("run deleted", "run_id", id)
	w.WriteHeader(http.StatusNoContent)
}
