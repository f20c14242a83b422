// Package store keeps extraction runs, per-document results and records in
// a local SQLite database.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/dgallion1/patgest/internal/extract"
	"github.com/dgallion1/patgest/internal/patent"
	"github.com/dgallion1/patgest/internal/pipeline"
)

//go:embed schema.sql
var schema string

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// Store is a SQLite-backed pipeline.RunStore.
type Store struct {
	db   *sql.DB
	path string
}

var _ pipeline.RunStore = (*Store)(nil)

// Open opens (creating if needed) the database at path. ":memory:" opens a
// private in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data directory: %w", err)
			}
		}
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	} else {
		dsn += "?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time; also keeps an in-memory database on a single
	// connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.path
}

// Run is a stored run with its final state.
type Run struct {
	pipeline.RunInfo
	Status     pipeline.JobStatus `json:"status"`
	Summary    pipeline.Summary   `json:"summary"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
}

func (s *Store) BeginRun(ctx context.Context, run pipeline.RunInfo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, filename, content_hash, data_section, model, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Filename, run.ContentHash, string(run.Section), run.Model,
		string(pipeline.StatusExtracting), run.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// SaveDocument stores one document result and its raw and validated records
// in a single transaction.
func (s *Store) SaveDocument(ctx context.Context, runID string, position int, d pipeline.DocumentResult) error {
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (run_id, position, doc_id, result) VALUES (?, ?, ?, ?)`,
		runID, position, d.DocID, string(body),
	); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM records WHERE run_id = ? AND position = ?`, runID, position,
	); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (run_id, position, chunk, kind, element, property, value, unit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare records: %w", err)
	}
	defer stmt.Close()

	insert := func(chunk int, kind string, recs []extract.Record) error {
		for _, r := range recs {
			if _, err := stmt.ExecContext(ctx, runID, position, chunk, kind, r.Element, r.Property, r.Value, r.Unit); err != nil {
				return fmt.Errorf("insert record: %w", err)
			}
		}
		return nil
	}
	for i, c := range d.Elements {
		if err := insert(i, "raw", c.RawRecords); err != nil {
			return err
		}
		if err := insert(i, "valid", c.ValidatedRecords); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) FinishRun(ctx context.Context, runID string, status pipeline.JobStatus, summary pipeline.Summary) error {
	body, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, summary = ?, finished_at = ? WHERE id = ?`,
		string(status), string(body), time.Now().UnixMilli(), runID,
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrNotFound)
	}
	return nil
}

// FindRun returns the most recent completed run over the same content and
// section.
func (s *Store) FindRun(ctx context.Context, contentHash string, section patent.SectionKind) (string, bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM runs
		WHERE content_hash = ? AND data_section = ? AND status = ?
		ORDER BY created_at DESC LIMIT 1`,
		contentHash, string(section), string(pipeline.StatusCompleted),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find run: %w", err)
	}
	return id, true, nil
}

const runColumns = `id, filename, content_hash, data_section, model, status, summary, created_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		r        Run
		section  string
		status   string
		summary  string
		created  int64
		finished sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.Filename, &r.ContentHash, &section, &r.Model, &status, &summary, &created, &finished); err != nil {
		return Run{}, err
	}
	r.Section = patent.SectionKind(section)
	r.Status = pipeline.JobStatus(status)
	r.CreatedAt = time.UnixMilli(created)
	if finished.Valid {
		t := time.UnixMilli(finished.Int64)
		r.FinishedAt = &t
	}
	if err := json.Unmarshal([]byte(summary), &r.Summary); err != nil {
		return Run{}, fmt.Errorf("decode summary: %w", err)
	}
	return r, nil
}

// Run returns one run by id.
func (s *Store) Run(ctx context.Context, id string) (Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Results rebuilds a run's results in document order.
func (s *Store) Results(ctx context.Context, runID string) (pipeline.Results, error) {
	run, err := s.Run(ctx, runID)
	if err != nil {
		return pipeline.Results{}, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT result FROM documents WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return pipeline.Results{}, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	res := pipeline.Results{Patents: []pipeline.DocumentResult{}, Dropped: run.Summary.Dropped}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return pipeline.Results{}, fmt.Errorf("scan document: %w", err)
		}
		var d pipeline.DocumentResult
		if err := json.Unmarshal([]byte(body), &d); err != nil {
			return pipeline.Results{}, fmt.Errorf("decode document: %w", err)
		}
		res.Patents = append(res.Patents, d)
	}
	return res, rows.Err()
}

// RecordRow is one stored record with where it came from.
type RecordRow struct {
	DocID  *string        `json:"doc_id"`
	Chunk  int            `json:"chunk"`
	Valid  bool           `json:"valid"`
	Record extract.Record `json:"record"`
}

// Records lists a run's records in document and chunk order, optionally
// only the validated ones.
func (s *Store) Records(ctx context.Context, runID string, validOnly bool) ([]RecordRow, error) {
	q := `
		SELECT d.doc_id, r.chunk, r.kind, r.element, r.property, r.value, r.unit
		FROM records r
		JOIN documents d ON d.run_id = r.run_id AND d.position = r.position
		WHERE r.run_id = ?`
	if validOnly {
		q += ` AND r.kind = 'valid'`
	}
	q += ` ORDER BY r.position, r.chunk, r.rowid`

	rows, err := s.db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	out := []RecordRow{}
	for rows.Next() {
		var (
			rr          RecordRow
			docID       sql.NullString
			kind        string
			value, unit sql.NullString
		)
		if err := rows.Scan(&docID, &rr.Chunk, &kind, &rr.Record.Element, &rr.Record.Property, &value, &unit); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rr.DocID = nullable(docID)
		rr.Record.Value = nullable(value)
		rr.Record.Unit = nullable(unit)
		rr.Valid = kind == "valid"
		out = append(out, rr)
	}
	return out, rows.Err()
}

// DeleteRun removes a run with its documents and records.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete run %s: %w", runID, ErrNotFound)
	}
	return nil
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
