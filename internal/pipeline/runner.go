package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/dgallion1/patgest/internal/chunker"
	"github.com/dgallion1/patgest/internal/extract"
	"github.com/dgallion1/patgest/internal/metrics"
	"github.com/dgallion1/patgest/internal/patent"
)

// RunConfig controls one extraction run.
type RunConfig struct {
	Section    patent.SectionKind
	MaxChars   int
	Cooldown   time.Duration // Minimum delay between model calls.
	Filter     chunker.Filter
	Validator  *extract.Validator
	MaxRetries int

	// Limiter, when set, is shared with other runners and replaces the
	// per-runner Cooldown limiter.
	Limiter *rate.Limiter
}

func (c RunConfig) withDefaults() RunConfig {
	if c.Section == "" {
		c.Section = patent.SectionBriefSummary
	}
	if c.MaxChars <= 0 {
		c.MaxChars = chunker.DefaultMaxChars
	}
	if c.Filter == nil {
		c.Filter = chunker.HasDigit
	}
	if c.Validator == nil {
		c.Validator = extract.NewValidator(nil)
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = MaxRetries
	}
	return c
}

// Runner chunks documents, sends candidate chunks to the extractor one at a
// time and validates what comes back.
type Runner struct {
	ext     extract.Extractor
	cfg     RunConfig
	limiter *rate.Limiter
	log     *slog.Logger
	metrics *metrics.Metrics
	backoff func(attempt int) time.Duration
}

func NewRunner(ext extract.Extractor, cfg RunConfig, log *slog.Logger, m *metrics.Metrics) *Runner {
	cfg = cfg.withDefaults()
	if cfg.Limiter == nil {
		cfg.Limiter = NewCooldownLimiter(cfg.Cooldown)
	}
	return &Runner{
		ext:     ext,
		cfg:     cfg,
		limiter: cfg.Limiter,
		log:     log,
		metrics: m,
		backoff: Backoff,
	}
}

// NewCooldownLimiter allows one model call per cooldown. A zero cooldown
// never waits.
func NewCooldownLimiter(cooldown time.Duration) *rate.Limiter {
	if cooldown <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(cooldown), 1)
}

// Config returns the effective configuration.
func (r *Runner) Config() RunConfig {
	return r.cfg
}

// Run processes docs in order. onDoc, if set, is called after each finished
// document. On cancellation the documents finished so far are returned with
// the context error; a partly processed document is discarded.
func (r *Runner) Run(ctx context.Context, docs []patent.Document, onDoc func(DocumentResult)) (Results, error) {
	res := Results{Patents: make([]DocumentResult, 0, len(docs))}
	r.log.Info("extraction started",
		"documents", len(docs),
		"section", r.cfg.Section,
		"max_chars", r.cfg.MaxChars,
		"model", r.ext.Model(),
	)
	for i := range docs {
		dr, err := r.Document(ctx, &docs[i])
		if err != nil {
			return res, err
		}
		res.Patents = append(res.Patents, dr)
		if onDoc != nil {
			onDoc(dr)
		}
	}

	s := res.Summary()
	r.log.Info("extraction finished",
		"documents", s.Documents,
		"chunks", s.Chunks,
		"evaluated", s.Evaluated,
		"raw_records", s.RawRecords,
		"valid_records", s.ValidRecords,
		"model_errors", s.ModelErrors,
	)
	return res, nil
}

// Document processes the configured section of one document.
func (r *Runner) Document(ctx context.Context, doc *patent.Document) (DocumentResult, error) {
	dr := DocumentResult{DocID: doc.ID, DataSection: r.cfg.Section, Elements: []ChunkResult{}}
	log := r.log.With("doc_id", doc.DocID())

	for c := range chunker.SegmentDocument(doc, r.cfg.Section, r.cfg.MaxChars) {
		if err := ctx.Err(); err != nil {
			return DocumentResult{}, err
		}
		cr, err := r.Chunk(ctx, c.Text)
		if err != nil {
			return DocumentResult{}, err
		}
		if cr.Unparsed != nil {
			log.Warn("model response has unparsed content", "chunk", c.Index, "raw", extract.Truncate(string(cr.Unparsed), 200))
		}
		if cr.Error != "" {
			log.Error("extraction failed", "chunk", c.Index, "error", cr.Error)
		}
		dr.Elements = append(dr.Elements, cr)
	}
	log.Debug("document processed", "chunks", len(dr.Elements))
	return dr, nil
}

// Chunk filters, extracts and validates one chunk. Model failures are kept
// on the result; only cancellation is returned as an error.
func (r *Runner) Chunk(ctx context.Context, text string) (ChunkResult, error) {
	cr := ChunkResult{
		Text:             text,
		Skipped:          true,
		RawRecords:       []extract.Record{},
		ValidatedRecords: []extract.Record{},
	}
	if !r.cfg.Filter(text) {
		r.metrics.Chunk(false)
		return cr, nil
	}
	cr.Skipped = false
	r.metrics.Chunk(true)

	resp, err := r.extract(ctx, text)
	switch {
	case err != nil && ctx.Err() != nil:
		return ChunkResult{}, ctx.Err()
	case err != nil:
		cr.Error = err.Error()
	case !resp.Parsed:
		cr.Unparsed = resp.Raw
	default:
		cr.RawRecords = resp.Records
		cr.ValidatedRecords = r.cfg.Validator.Validate(resp.Records)
		if len(resp.Undecodable) > 0 {
			cr.Unparsed, _ = json.Marshal(resp.Undecodable)
		}
	}
	r.metrics.Records(len(cr.RawRecords), len(cr.ValidatedRecords))
	return cr, nil
}

// extract calls the model, waiting on the limiter before every attempt and
// backing off between retryable failures.
func (r *Runner) extract(ctx context.Context, text string) (extract.Response, error) {
	var lastErr error
	for attempt := range r.cfg.MaxRetries {
		if err := r.limiter.Wait(ctx); err != nil {
			return extract.Response{}, err
		}
		r.log.Debug("model call", "attempt", attempt, "chars", len(text), "est_tokens", chunker.EstimateTokens(text))
		start := time.Now()
		resp, err := r.ext.Extract(ctx, text)
		r.metrics.ModelCall(callOutcome(resp, err), time.Since(start))
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !IsRetryable(err) || errors.Is(err, context.Canceled) {
			break
		}
		r.log.Warn("retryable extraction error", "attempt", attempt, "error", err)
		select {
		case <-time.After(retryDelay(err, r.backoff(attempt))):
		case <-ctx.Done():
			return extract.Response{}, ctx.Err()
		}
	}
	return extract.Response{}, lastErr
}

func callOutcome(resp extract.Response, err error) string {
	switch {
	case err != nil:
		return "error"
	case !resp.Parsed:
		return "unparsed"
	}
	return "ok"
}
