package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/patgest/internal/patent"
)

// JobStatus represents the state of an extraction job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusParsing    JobStatus = "parsing"
	StatusExtracting JobStatus = "extracting"
	StatusStoring    JobStatus = "storing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusPartial    JobStatus = "partial"
	StatusDupSkipped JobStatus = "duplicate_skipped"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusPartial, StatusDupSkipped:
		return true
	}
	return false
}

// JobOptions are per-upload overrides of the configured run settings. Zero
// values fall back to the orchestrator defaults.
type JobOptions struct {
	Section  patent.SectionKind `json:"section,omitempty"`
	MaxChars int                `json:"chunk_size,omitempty"`
	Sample   int                `json:"sample,omitempty"`
	Seed     uint64             `json:"seed,omitempty"`
	Force    bool               `json:"force,omitempty"`
}

// Job tracks one uploaded corpus (or single document) through extraction.
type Job struct {
	mu sync.Mutex

	ID       string     `json:"job_id"`
	Filename string     `json:"filename"`
	Options  JobOptions `json:"options"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	DuplicateOf string    `json:"duplicate_of,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	results  *Results
	errors   []string
}

// Progress tracks processing progress.
type Progress struct {
	Blocks             int      `json:"blocks"`
	Documents          int      `json:"documents"`
	Dropped            int      `json:"dropped"`
	DocumentsProcessed int      `json:"documents_processed"`
	Chunks             int      `json:"chunks"`
	Evaluated          int      `json:"evaluated"`
	RawRecords         int      `json:"raw_records"`
	ValidRecords       int      `json:"valid_records"`
	RecordsStored      int      `json:"records_stored"`
	Errors             []string `json:"errors"`
}

// NewJob returns a queued job with a fresh id.
func NewJob(filename string, data []byte, opts JobOptions) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Filename:  filename,
		Options:   opts,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
		fileData:  data,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs that have finished.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := job.Status.Done() && now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetParsed records the outcome of corpus parsing.
func (j *Job) SetParsed(blocks, documents, dropped int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Blocks = blocks
	j.Progress.Documents = documents
	j.Progress.Dropped = dropped
	j.UpdatedAt = time.Now()
}

// AddDocument folds one finished document into the progress counters.
func (j *Job) AddDocument(d DocumentResult) {
	var s Summary
	s.Add(d)

	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.DocumentsProcessed++
	j.Progress.Chunks += s.Chunks
	j.Progress.Evaluated += s.Evaluated
	j.Progress.RawRecords += s.RawRecords
	j.Progress.ValidRecords += s.ValidRecords
	j.UpdatedAt = time.Now()
}

// AddStored records how many validated records reached remote storage.
func (j *Job) AddStored(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.RecordsStored += n
	j.UpdatedAt = time.Now()
}

// SetContentHash records the hash of the uploaded bytes.
func (j *Job) SetContentHash(h string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ContentHash = h
}

// SetDuplicateOf marks the job as a repeat of an earlier completed run.
func (j *Job) SetDuplicateOf(runID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.DuplicateOf = runID
	j.UpdatedAt = time.Now()
}

// SetFileData sets the raw file bytes for processing.
func (j *Job) SetFileData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// SetResults stores the finished results and releases the upload.
func (j *Job) SetResults(r Results) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.results = &r
	j.fileData = nil
	j.UpdatedAt = time.Now()
}

// Results returns the finished results, or false while the job is running.
func (j *Job) Results() (Results, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.results == nil {
		return Results{}, false
	}
	return *j.results, true
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string     `json:"job_id"`
	Filename    string     `json:"filename"`
	Options     JobOptions `json:"options"`
	Status      JobStatus  `json:"status"`
	Phase       string     `json:"phase"`
	Progress    Progress   `json:"progress"`
	ContentHash string     `json:"content_hash,omitempty"`
	DuplicateOf string     `json:"duplicate_of,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	p := j.Progress
	p.Errors = append([]string{}, j.Progress.Errors...)
	return JobSnapshot{
		ID:          j.ID,
		Filename:    j.Filename,
		Options:     j.Options,
		Status:      j.Status,
		Phase:       j.Phase,
		Progress:    p,
		ContentHash: j.ContentHash,
		DuplicateOf: j.DuplicateOf,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
