package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/patgest/internal/corpus"
	"github.com/dgallion1/patgest/internal/extract"
	"github.com/dgallion1/patgest/internal/metrics"
	"github.com/dgallion1/patgest/internal/pathstore"
	"github.com/dgallion1/patgest/internal/patent"
)

// RunInfo identifies one extraction run in persistent storage.
type RunInfo struct {
	ID          string             `json:"id"`
	Filename    string             `json:"filename"`
	ContentHash string             `json:"content_hash"`
	Section     patent.SectionKind `json:"data_section"`
	Model       string             `json:"model"`
	CreatedAt   time.Time          `json:"created_at"`
}

// RunStore persists runs and their per-document results.
type RunStore interface {
	BeginRun(ctx context.Context, run RunInfo) error
	SaveDocument(ctx context.Context, runID string, position int, d DocumentResult) error
	FinishRun(ctx context.Context, runID string, status JobStatus, s Summary) error
	// FindRun returns a completed run over the same content and section.
	FindRun(ctx context.Context, contentHash string, section patent.SectionKind) (string, bool, error)
}

// WorkerConfig holds the defaults a job's options are resolved against.
type WorkerConfig struct {
	Corpus             corpus.Options
	Run                RunConfig
	Sample             int
	Seed               uint64
	Layout             pathstore.Layout
	MaxConcurrentStore int
}

// Worker processes a single extraction job. The pathstore client and the
// run store are optional.
type Worker struct {
	ext       extract.Extractor
	pathstore *pathstore.Client
	store     RunStore
	metrics   *metrics.Metrics
	log       *slog.Logger
	cfg       WorkerConfig
}

func NewWorker(ext extract.Extractor, ps *pathstore.Client, store RunStore, m *metrics.Metrics, log *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.MaxConcurrentStore <= 0 {
		cfg.MaxConcurrentStore = 1
	}
	return &Worker{
		ext:       ext,
		pathstore: ps,
		store:     store,
		metrics:   m,
		log:       log,
		cfg:       cfg,
	}
}

type jobPlan struct {
	run    RunConfig
	sample int
	seed   uint64
	force  bool
}

func (w *Worker) plan(opts JobOptions) jobPlan {
	p := jobPlan{run: w.cfg.Run, sample: w.cfg.Sample, seed: w.cfg.Seed, force: opts.Force}
	if opts.Section != "" {
		p.run.Section = opts.Section
	}
	if opts.MaxChars > 0 {
		p.run.MaxChars = opts.MaxChars
	}
	if opts.Sample > 0 {
		p.sample = opts.Sample
	}
	if opts.Seed != 0 {
		p.seed = opts.Seed
	}
	p.run = p.run.withDefaults()
	return p
}

// Process runs the full pipeline for a job: parse, sample, extract, persist.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)
	plan := w.plan(job.Options)
	status := w.process(ctx, job, plan, log)
	w.metrics.JobFinished(string(status))
}

func (w *Worker) process(ctx context.Context, job *Job, plan jobPlan, log *slog.Logger) JobStatus {
	fail := func(phase string, err error) JobStatus {
		log.Error("job failed", "phase", phase, "error", err)
		job.AddError(fmt.Sprintf("%s: %s", phase, err))
		job.SetStatus(StatusFailed, phase)
		return StatusFailed
	}

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	data := job.FileData()
	hash := ContentHashHex(data)
	job.SetContentHash(hash)

	docs, stats, err := w.parse(ctx, job.Filename, data)
	if err != nil {
		return fail("parsing", err)
	}
	job.SetParsed(stats.Blocks, stats.Retained, stats.Dropped)
	w.metrics.Documents(stats.Retained, stats.Dropped)
	if len(docs) == 0 {
		return fail("parsing", fmt.Errorf("no documents with text in %d blocks", stats.Blocks))
	}

	// Phase 1.5: Dedup check
	if w.store != nil && !plan.force {
		runID, found, err := w.store.FindRun(ctx, hash, plan.run.Section)
		switch {
		case err != nil:
			log.Warn("dedup check failed, proceeding", "error", err)
		case found:
			log.Info("duplicate upload, skipping", "existing_run", runID)
			job.SetDuplicateOf(runID)
			job.SetStatus(StatusDupSkipped, "dedup")
			return StatusDupSkipped
		}
	}

	if plan.sample > 0 && plan.sample < len(docs) {
		docs = corpus.Sample(docs, plan.sample, plan.seed)
		log.Info("sampled documents", "sample", len(docs), "seed", plan.seed)
	}

	// Phase 2: Extract, persisting each document as it finishes.
	job.SetStatus(StatusExtracting, "extracting")
	run := RunInfo{
		ID:          job.ID,
		Filename:    job.Filename,
		ContentHash: hash,
		Section:     plan.run.Section,
		Model:       w.ext.Model(),
		CreatedAt:   job.CreatedAt,
	}
	// Local writes outlive cancellation so partial runs stay consistent.
	storeCtx := context.WithoutCancel(ctx)
	persist := w.store != nil
	if persist {
		if err := w.store.BeginRun(storeCtx, run); err != nil {
			log.Error("run store unavailable", "error", err)
			job.AddError(fmt.Sprintf("store: %s", err))
			persist = false
		}
	}

	hadErrors := false
	position := 0
	runner := NewRunner(w.ext, plan.run, log, w.metrics)
	res, runErr := runner.Run(ctx, docs, func(d DocumentResult) {
		job.AddDocument(d)
		if persist {
			if err := w.store.SaveDocument(storeCtx, job.ID, position, d); err != nil {
				log.Error("save document failed", "doc_id", docID(d), "error", err)
				job.AddError(fmt.Sprintf("store %s: %s", docID(d), err))
				hadErrors = true
			}
		}
		if w.pathstore != nil {
			stored, err := w.publishDocument(ctx, job.ID, docKey(d, position), d)
			job.AddStored(stored)
			if err != nil {
				log.Error("publish document failed", "doc_id", docID(d), "error", err)
				job.AddError(fmt.Sprintf("publish %s: %s", docID(d), err))
				hadErrors = true
			}
		}
		position++
	})
	res.Dropped = stats.Dropped
	summary := res.Summary()

	var final JobStatus
	switch {
	case runErr != nil && len(res.Patents) == 0:
		job.AddError(fmt.Sprintf("extracting: %s", runErr))
		final = StatusFailed
	case runErr != nil:
		job.AddError(fmt.Sprintf("extracting: %s", runErr))
		final = StatusPartial
	case summary.Evaluated > 0 && summary.ModelErrors == summary.Evaluated:
		job.AddError("every model call failed")
		final = StatusFailed
	case hadErrors || summary.ModelErrors > 0:
		final = StatusPartial
	default:
		final = StatusCompleted
	}

	// Phase 3: Store run metadata.
	job.SetStatus(StatusStoring, "storing")
	job.SetResults(res)
	if w.pathstore != nil {
		if err := w.publishRun(storeCtx, run, final, summary); err != nil {
			log.Error("publish run failed", "error", err)
			job.AddError(fmt.Sprintf("publish run: %s", err))
			if final == StatusCompleted {
				final = StatusPartial
			}
		}
	}
	if persist {
		if err := w.store.FinishRun(storeCtx, job.ID, final, summary); err != nil {
			log.Error("finish run failed", "error", err)
			job.AddError(fmt.Sprintf("store: %s", err))
		}
	}

	log.Info("job finished",
		"status", final,
		"documents", summary.Documents,
		"dropped", summary.Dropped,
		"chunks", summary.Chunks,
		"evaluated", summary.Evaluated,
		"raw_records", summary.RawRecords,
		"valid_records", summary.ValidRecords,
	)
	job.SetStatus(final, "done")
	return final
}

// parse turns an upload into documents. XML files are split as a bulk
// corpus; other formats are a single document.
func (w *Worker) parse(ctx context.Context, filename string, data []byte) ([]patent.Document, corpus.Stats, error) {
	return corpus.ParseFile(ctx, bytes.NewReader(data), filename, w.cfg.Corpus)
}

// publishDocument writes each validated record as a measurement node, a
// manifest entry under the document and a link from the document to the
// measurement. It returns how many measurements were written.
func (w *Worker) publishDocument(ctx context.Context, runID, id string, d DocumentResult) (int, error) {
	layout := w.cfg.Layout
	source := "patgest:" + runID

	type storeResult struct {
		ok   bool
		err  error
		path string
	}
	var total int
	for _, c := range d.Elements {
		total += len(c.ValidatedRecords)
	}
	if err := w.pathstore.PutNode(ctx, layout.DocumentMeta(runID, id), pathstore.NodeRequest{
		Value: map[string]any{
			"doc_id":        d.DocID,
			"data_section":  d.DataSection,
			"chunks":        len(d.Elements),
			"valid_records": total,
		},
		MemoryType: "metacognitive",
		Salience:   0.3,
		Source:     source,
	}); err != nil {
		return 0, fmt.Errorf("document meta: %w", err)
	}

	results := make(chan storeResult, total)
	sem := make(chan struct{}, w.cfg.MaxConcurrentStore)

	for ci, c := range d.Elements {
		for _, rec := range c.ValidatedRecords {
			sem <- struct{}{}
			go func(chunk int, rec extract.Record) {
				defer func() { <-sem }()
				path, err := w.storeRecord(ctx, runID, id, chunk, rec)
				if err != nil {
					results <- storeResult{err: err, path: path}
					return
				}
				ulid := pathstore.LastSegment(path)
				manifest := layout.Manifest(runID, id) + "/" + ulid
				if err := w.pathstore.PutNode(ctx, manifest, pathstore.NodeRequest{
					Value:      map[string]any{"path": path, "chunk": chunk},
					MemoryType: "metacognitive",
					Salience:   0.1,
					Source:     source,
				}); err != nil {
					w.log.Warn("manifest write failed", "path", manifest, "error", err)
				}
				if err := w.pathstore.PutLink(ctx, pathstore.LinkRequest{
					From:    layout.DocumentMeta(runID, id),
					To:      path,
					Weight:  1,
					Summary: rec.Property,
				}); err != nil {
					w.log.Warn("link write failed", "path", path, "error", err)
				}
				results <- storeResult{ok: true, path: path}
			}(ci, rec)
		}
	}

	stored := 0
	var firstErr error
	for range total {
		r := <-results
		if r.ok {
			stored++
			continue
		}
		w.log.Error("store failed", "path", r.path, "error", r.err)
		if firstErr == nil {
			firstErr = r.err
		}
	}

	return stored, firstErr
}

// storeRecord writes one measurement node and returns its path.
func (w *Worker) storeRecord(ctx context.Context, runID, docID string, chunk int, rec extract.Record) (string, error) {
	element := extract.Slugify(rec.Element)
	if element == "" {
		element = "general"
	}
	property := extract.Slugify(rec.Property)
	if property == "" {
		property = "general"
	}
	path := w.cfg.Layout.Measurement(element, property, generateULID())

	err := w.pathstore.PutNode(ctx, path, pathstore.NodeRequest{
		Value: map[string]any{
			"element":  rec.Element,
			"property": rec.Property,
			"value":    rec.Value,
			"unit":     rec.Unit,
			"source": map[string]any{
				"type":   "patent",
				"doc_id": docID,
				"run_id": runID,
				"chunk":  chunk,
			},
		},
		MemoryType: "semantic",
		Salience:   0.5,
		Source:     "patgest:" + runID,
	})
	return path, err
}

// publishRun writes the run summary and the content hash index.
func (w *Worker) publishRun(ctx context.Context, run RunInfo, status JobStatus, s Summary) error {
	source := "patgest:" + run.ID
	err := w.pathstore.PutNode(ctx, w.cfg.Layout.RunMeta(run.ID), pathstore.NodeRequest{
		Value: map[string]any{
			"filename":     run.Filename,
			"content_hash": run.ContentHash,
			"data_section": run.Section,
			"model":        run.Model,
			"status":       status,
			"summary":      s,
			"created_at":   run.CreatedAt.Format(time.RFC3339),
		},
		MemoryType: "metacognitive",
		Salience:   0.5,
		Source:     source,
	})
	if err != nil {
		return fmt.Errorf("run meta: %w", err)
	}

	hashPath := w.cfg.Layout.ByHash(run.ContentHash) + "/" + pathstore.Segment(run.ID)
	if err := w.pathstore.PutNode(ctx, hashPath, pathstore.NodeRequest{
		Value: map[string]any{
			"filename":   run.Filename,
			"created_at": run.CreatedAt.Format(time.RFC3339),
		},
		MemoryType: "metacognitive",
		Salience:   0.1,
		Source:     source,
	}); err != nil {
		w.log.Warn("hash index write failed", "path", hashPath, "error", err)
	}
	return nil
}

// docKey names a document in the pathstore layout; documents without an id
// fall back to their position in the run.
func docKey(d DocumentResult, position int) string {
	if d.DocID == nil || *d.DocID == "" {
		return fmt.Sprintf("doc-%d", position)
	}
	return *d.DocID
}

func docID(d DocumentResult) string {
	if d.DocID == nil || *d.DocID == "" {
		return "unknown"
	}
	return *d.DocID
}
