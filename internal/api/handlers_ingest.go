package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/patgest/internal/parser"
	"github.com/dgallion1/patgest/internal/pipeline"
	"github.com/dgallion1/patgest/internal/report"
	"github.com/dgallion1/patgest/internal/store"
)

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	// Extra 1MB for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	opts, err := s.jobOptions(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := s.readUpload(file)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, errTooLarge) {
			code = http.StatusRequestEntityTooLarge
		}
		jsonError(w, err.Error(), code)
		return
	}

	job := pipeline.NewJob(filename, data, opts)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, submitted(job))
}

func (s *Server) handleBatchIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	opts, err := s.jobOptions(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	results := make([]map[string]any, 0, len(files))
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		if !parser.IsSupportedExtension(filename) {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)),
			})
			continue
		}

		data, err := s.readPart(fh)
		if err != nil {
			results = append(results, map[string]any{"filename": filename, "error": err.Error()})
			continue
		}

		job := pipeline.NewJob(filename, data, opts)
		if err := s.orchestrator.Submit(job); err != nil {
			results = append(results, map[string]any{"filename": filename, "error": err.Error()})
			continue
		}
		results = append(results, submitted(job))
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": results})
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

// handleResults returns the result structure of a finished job. Jobs evicted
// from memory are served from the run store. ?valid=true returns only the
// validated view.
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	res, _, ok := s.results(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("valid") == "true" {
		writeJSON(w, http.StatusOK, res.ValidOnly())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleReport renders the run summary as HTML, or Markdown with
// ?format=md.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	res, opts, ok := s.results(w, r)
	if !ok {
		return
	}
	if n, err := strconv.Atoi(r.URL.Query().Get("top")); err == nil && n > 0 {
		opts.TopProperties = n
	}

	if r.URL.Query().Get("format") == "md" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		io.WriteString(w, report.Markdown(res, opts))
		return
	}
	page, err := report.HTML(res, opts)
	if err != nil {
		jsonError(w, "render report: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

// results looks the job up in memory first, then in the run store, and
// writes the error response itself when neither has it.
func (s *Server) results(w http.ResponseWriter, r *http.Request) (pipeline.Results, report.Options, bool) {
	id := chi.URLParam(r, "jobID")
	if job := s.orchestrator.GetJob(id); job != nil {
		snap := job.Snapshot()
		if snap.Status == pipeline.StatusDupSkipped {
			jsonError(w, "duplicate of run "+snap.DuplicateOf, http.StatusConflict)
			return pipeline.Results{}, report.Options{}, false
		}
		res, done := job.Results()
		if !done {
			jsonError(w, fmt.Sprintf("job is %s", snap.Status), http.StatusConflict)
			return pipeline.Results{}, report.Options{}, false
		}
		return res, report.Options{
			Title:  snap.Filename,
			Status: snap.Status,
			Run: &pipeline.RunInfo{
				ID:          snap.ID,
				Filename:    snap.Filename,
				ContentHash: snap.ContentHash,
				Model:       s.orchestrator.Extractor().Model(),
				CreatedAt:   snap.CreatedAt,
			},
		}, true
	}

	if s.store == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return pipeline.Results{}, report.Options{}, false
	}
	run, err := s.store.Run(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return pipeline.Results{}, report.Options{}, false
	}
	res, err := s.store.Results(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return pipeline.Results{}, report.Options{}, false
	}
	return res, report.Options{Title: run.Filename, Status: run.Status, Run: &run.RunInfo}, true
}

func submitted(job *pipeline.Job) map[string]any {
	snap := job.Snapshot()
	return map[string]any{
		"filename": snap.Filename,
		"job_id":   snap.ID,
		"status":   snap.Status,
		"poll_url": fmt.Sprintf("/api/ingest/%s/status", snap.ID),
	}
}

// jobOptions reads the optional per-upload overrides from the form.
func (s *Server) jobOptions(r *http.Request) (pipeline.JobOptions, error) {
	var opts pipeline.JobOptions
	if v := r.FormValue("section"); v != "" {
		k, err := s.cfg.SectionOverride(v)
		if err != nil {
			return opts, err
		}
		opts.Section = k
	}
	for _, f := range []struct {
		name string
		dst  *int
	}{
		{"chunk_size", &opts.MaxChars},
		{"sample", &opts.Sample},
	} {
		v := r.FormValue(f.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("invalid %s: %q", f.name, v)
		}
		*f.dst = n
	}
	if v := r.FormValue("seed"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return opts, fmt.Errorf("invalid seed: %q", v)
		}
		opts.Seed = n
	}
	opts.Force = r.FormValue("force") == "true"
	return opts, nil
}

var errTooLarge = errors.New("file exceeds max size")

func (s *Server) readUpload(f io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, errors.New("failed to read file")
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%w (%d bytes)", errTooLarge, s.cfg.MaxUploadBytes)
	}
	return data, nil
}

func (s *Server) readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, errors.New("failed to open file")
	}
	defer f.Close()
	return s.readUpload(f)
}

func storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	jsonError(w, err.Error(), http.StatusInternalServerError)
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
