package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/patgest/internal/chunker"
	"github.com/dgallion1/patgest/internal/config"
	"github.com/dgallion1/patgest/internal/corpus"
	"github.com/dgallion1/patgest/internal/extract"
	"github.com/dgallion1/patgest/internal/metrics"
	"github.com/dgallion1/patgest/internal/pathstore"
)

// Orchestrator manages the extraction job queue and its workers.
type Orchestrator struct {
	jobs    *JobStore
	queue   chan *Job
	ext     extract.Extractor
	ps      *pathstore.Client
	store   RunStore
	metrics *metrics.Metrics
	log     *slog.Logger
	cfg     config.Config
	workCfg WorkerConfig

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator wires the pipeline. ps and store may be nil.
func NewOrchestrator(cfg config.Config, ext extract.Extractor, ps *pathstore.Client, store RunStore, m *metrics.Metrics, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:    NewJobStore(cfg.JobTTL),
		queue:   make(chan *Job, cfg.MaxQueueSize),
		ext:     ext,
		ps:      ps,
		store:   store,
		metrics: m,
		log:     log,
		cfg:     cfg,
		workCfg: WorkerConfigFrom(cfg, log),
	}
}

// WorkerConfigFrom derives worker defaults from the service configuration.
// All workers share one cooldown limiter so the model sees at most one call
// per cooldown overall.
func WorkerConfigFrom(cfg config.Config, log *slog.Logger) WorkerConfig {
	return WorkerConfig{
		Corpus: corpus.Options{
			Marker:      cfg.Marker,
			Kinds:       cfg.Sections,
			Concurrency: cfg.ParseConcurrency,
			KeepEmpty:   cfg.KeepEmpty,
			PDFFallback: cfg.PDFFallbackPdftotext,
			Logger:      log,
		},
		Run: RunConfig{
			Section:   cfg.DataSection,
			MaxChars:  cfg.ChunkSize,
			Cooldown:  cfg.Cooldown,
			Filter:    chunker.Candidates(cfg.MinTokens),
			Validator: extract.NewValidator(cfg.UnitBlacklist),
			Limiter:   NewCooldownLimiter(cfg.Cooldown),
		},
		Sample:             cfg.Sample,
		Seed:               cfg.Seed,
		Layout:             pathstore.Layout{Prefix: cfg.PathstorePrefix},
		MaxConcurrentStore: cfg.MaxConcurrentStore,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.ext, o.ps, o.store, o.metrics, o.log, o.workCfg)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.metrics.QueueDepth(len(o.queue))
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop cancels running jobs and waits for the workers to exit.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		o.metrics.QueueDepth(len(o.queue))
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		o.metrics.JobFinished(string(StatusFailed))
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// PathstoreClient returns the pathstore client for direct use by API
// handlers, or nil when remote persistence is disabled.
func (o *Orchestrator) PathstoreClient() *pathstore.Client {
	return o.ps
}

// Layout returns the pathstore key layout runs are published under.
func (o *Orchestrator) Layout() pathstore.Layout {
	return o.workCfg.Layout
}

// Extractor returns the model client jobs use.
func (o *Orchestrator) Extractor() extract.Extractor {
	return o.ext
}
