package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dgallion1/patgest/internal/chunker"
	"github.com/dgallion1/patgest/internal/corpus"
	"github.com/dgallion1/patgest/internal/extract"
	"github.com/dgallion1/patgest/internal/pipeline"
	"github.com/dgallion1/patgest/internal/store"
)

type extractOptions struct {
	out       string
	validOut  string
	section   string
	chunkSize int
	sample    int
	seed      uint64
}

func newExtractCommand(a *app) *cobra.Command {
	var o extractOptions
	cmd := &cobra.Command{
		Use:   "extract <parsed.json>",
		Short: "Extract measurement records from a parsed corpus",
		Long: `Chunk the selected section of every document, send chunks that contain a
digit to the model and validate the returned records. Writes the raw results
and, with --valid-out, the validated-only view.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runExtract(cmd, args[0], o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.out, "output", "o", "results.json", "Raw results file")
	f.StringVar(&o.validOut, "valid-out", "", "Validated-only results file")
	f.StringVar(&o.section, "section", "", "Section to extract from: abstract, BRFSUM or DETDESC (default DATA_SECTION)")
	f.IntVar(&o.chunkSize, "chunk-size", 0, "Maximum chunk length in characters (default CHUNK_SIZE)")
	f.IntVar(&o.sample, "sample", 0, "Extract from this many randomly chosen documents")
	f.Uint64Var(&o.seed, "seed", 0, "Sampling seed (default SAMPLE_SEED)")
	return cmd
}

func (a *app) runExtract(cmd *cobra.Command, path string, o extractOptions) error {
	cfg := a.cfg
	if o.section != "" {
		k, err := cfg.SectionOverride(o.section)
		if err != nil {
			return err
		}
		cfg.DataSection = k
	}
	if o.chunkSize > 0 {
		cfg.ChunkSize = o.chunkSize
	}
	if o.sample > 0 {
		cfg.Sample = o.sample
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = o.seed
	}
	if err := cfg.ValidateModel(); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read corpus: %w", err)
	}
	c, err := corpus.Load(path)
	if err != nil {
		return err
	}
	docs := corpus.Sample(c.Patents, cfg.Sample, cfg.Seed)

	ext, err := extract.New(cfg.ModelProvider, cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.LocalModelURL)
	if err != nil {
		return err
	}
	defer ext.Close()

	runner := pipeline.NewRunner(ext, pipeline.RunConfig{
		Section:   cfg.DataSection,
		MaxChars:  cfg.ChunkSize,
		Cooldown:  cfg.Cooldown,
		Filter:    chunker.Candidates(cfg.MinTokens),
		Validator: extract.NewValidator(cfg.UnitBlacklist),
	}, a.log, nil)

	rec, err := a.openRecorder(cmd.Context(), pipeline.RunInfo{
		ID:          uuid.NewString(),
		Filename:    path,
		ContentHash: pipeline.ContentHashHex(data),
		Section:     runner.Config().Section,
		Model:       ext.Model(),
		CreatedAt:   time.Now(),
	})
	if err != nil {
		return err
	}
	defer rec.close()

	a.log.Info("extracting", "documents", len(docs), "section", runner.Config().Section, "model", ext.Model())
	res, runErr := runner.Run(cmd.Context(), docs, func(d pipeline.DocumentResult) {
		rec.save(d)
		a.log.Debug("document done", "doc_id", docLabel(d), "chunks", len(d.Elements))
	})

	status := pipeline.StatusCompleted
	if runErr != nil {
		status = pipeline.StatusPartial
	}
	summary := res.Summary()
	rec.finish(status, summary)

	if err := corpus.Save(o.out, res); err != nil {
		return err
	}
	if o.validOut != "" {
		if err := corpus.Save(o.validOut, res.ValidOnly()); err != nil {
			return err
		}
	}

	printSummary(cmd, summary)
	if runErr != nil {
		return fmt.Errorf("extraction stopped after %d documents: %w", len(res.Patents), runErr)
	}
	return nil
}

func printSummary(cmd *cobra.Command, s pipeline.Summary) {
	cmd.Printf("Documents analysed: %d\n", s.Documents)
	cmd.Printf("Chunks produced:    %d\n", s.Chunks)
	cmd.Printf("Chunks evaluated:   %d\n", s.Evaluated)
	cmd.Printf("Raw records:        %d\n", s.RawRecords)
	cmd.Printf("Validated records:  %d\n", s.ValidRecords)
	if s.ModelErrors > 0 {
		cmd.Printf("Model errors:       %d\n", s.ModelErrors)
	}
}

func docLabel(d pipeline.DocumentResult) string {
	if d.DocID == nil {
		return ""
	}
	return *d.DocID
}

// recorder mirrors a CLI run into the SQLite store when --db is set. Store
// failures are logged and do not stop extraction.
type recorder struct {
	a     *app
	st    *store.Store
	ctx   context.Context
	runID string
	pos   int
}

func (a *app) openRecorder(ctx context.Context, run pipeline.RunInfo) (*recorder, error) {
	r := &recorder{a: a, ctx: context.WithoutCancel(ctx), runID: run.ID}
	if a.dbPath == "" {
		return r, nil
	}
	st, err := store.Open(a.dbPath)
	if err != nil {
		return nil, err
	}
	if err := st.BeginRun(r.ctx, run); err != nil {
		st.Close()
		return nil, err
	}
	r.st = st
	return r, nil
}

func (r *recorder) save(d pipeline.DocumentResult) {
	if r.st == nil {
		return
	}
	if err := r.st.SaveDocument(r.ctx, r.runID, r.pos, d); err != nil {
		r.a.log.Warn("store document failed", "run_id", r.runID, "error", err)
	}
	r.pos++
}

func (r *recorder) finish(status pipeline.JobStatus, s pipeline.Summary) {
	if r.st == nil {
		return
	}
	if err := r.st.FinishRun(r.ctx, r.runID, status, s); err != nil {
		r.a.log.Warn("finish run failed", "run_id", r.runID, "error", err)
		return
	}
	r.a.log.Info("run recorded", "run_id", r.runID, "db", r.st.Path())
}

func (r *recorder) close() {
	if r.st != nil {
		r.st.Close()
	}
}
