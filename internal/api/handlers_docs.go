package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/patgest/internal/pathstore"
)

func (s *Server) requirePathstore(w http.ResponseWriter, r *http.Request) (*pathstore.Client, string, bool) {
	ps := s.orchestrator.PathstoreClient()
	if ps == nil {
		jsonError(w, "pathstore publishing disabled", http.StatusServiceUnavailable)
		return nil, "", false
	}
	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		jsonError(w, "run_id query parameter is required", http.StatusBadRequest)
		return nil, "", false
	}
	return ps, runID, true
}

// handleListDocuments lists the published document metas of a run.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	ps, runID, ok := s.requirePathstore(w, r)
	if !ok {
		return
	}

	children, err := ps.ListChildren(r.Context(), s.orchestrator.Layout().Documents(runID), 1000)
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusBadGateway)
		return
	}

	docs := []map[string]any{}
	for _, child := range children {
		if pathstore.LastSegment(child.Key) != "meta" {
			continue
		}
		docs = append(docs, map[string]any{
			"key":   child.Key,
			"value": child.Value,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "documents": docs})
}

// handleDeleteDocument deletes a published document and every measurement
// its manifest points to.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	ps, runID, ok := s.requirePathstore(w, r)
	if !ok {
		return
	}
	docID := chi.URLParam(r, "docID")
	ctx := r.Context()
	layout := s.orchestrator.Layout()

	entries, err := ps.ListChildren(ctx, layout.Manifest(runID, docID), 10000)
	if err != nil {
		jsonError(w, "failed to read manifest: "+err.Error(), http.StatusBadGateway)
		return
	}

	deleted, missing := 0, 0
	for _, entry := range entries {
		path := manifestPath(entry.Value)
		if path == "" {
			continue
		}
		if err := ps.DeleteNode(ctx, path, false); err != nil {
			missing++
			continue
		}
		deleted++
	}

	docDeleted := ps.DeleteNode(ctx, layout.Document(runID, docID), true) == nil

	s.log.Info("document deleted", "run_id", runID, "doc_id", docID, "measurements", deleted, "missing", missing)
	writeJSON(w, http.StatusOK, map[string]any{
		"measurements_deleted": deleted,
		"missing_measurements": missing,
		"document_deleted":     docDeleted,
	})
}

func manifestPath(value any) string {
	m, ok := value.(map[string]any)
	if !ok {
		return ""
	}
	path, _ := m["path"].(string)
	return strings.TrimSpace(path)
}
