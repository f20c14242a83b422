package corpus

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/patgest/internal/parser"
	"github.com/dgallion1/patgest/internal/patent"
)

// Options controls how a corpus is parsed.
type Options struct {
	Marker      string               // Boundary marker; DefaultMarker when empty.
	Kinds       []patent.SectionKind // Recognized sections; patent.DefaultSections when empty.
	Concurrency int                  // Parallel parsers; GOMAXPROCS when < 1.
	KeepEmpty   bool                 // Retain documents without any text.
	PDFFallback bool                 // Let single PDF documents fall back to pdftotext.
	Logger      *slog.Logger
}

func (o Options) marker() string {
	if o.Marker == "" {
		return DefaultMarker
	}
	return o.Marker
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Stats counts what happened to the blocks of one parse run.
type Stats struct {
	Blocks   int `json:"blocks"`
	Retained int `json:"retained"`
	Empty    int `json:"empty"`   // Documents without any text.
	Dropped  int `json:"dropped"` // Empty documents left out of the corpus.
}

// ParseAll parses blocks in parallel and returns the retained documents in
// block order. Documents with neither abstract nor section text are dropped
// and counted unless opts.KeepEmpty is set.
func ParseAll(ctx context.Context, blocks []Block, opts Options) ([]patent.Document, Stats, error) {
	p := parser.NewPatentParser(opts.Kinds...)
	log := opts.logger()

	limit := opts.Concurrency
	if limit < 1 {
		limit = runtime.GOMAXPROCS(0)
	}

	docs := make([]patent.Document, len(blocks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, b := range blocks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			docs[i] = p.Parse(b)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Stats{}, fmt.Errorf("parse corpus: %w", err)
	}

	stats := Stats{Blocks: len(blocks)}
	kept := docs[:0]
	for i, d := range docs {
		if !d.HasText() {
			stats.Empty++
			log.Debug("document has no text", "block", i, "doc_id", d.DocID(), "kept", opts.KeepEmpty)
			if !opts.KeepEmpty {
				stats.Dropped++
				continue
			}
		}
		kept = append(kept, d)
	}
	stats.Retained = len(kept)

	log.Info("corpus parsed",
		"blocks", stats.Blocks,
		"retained", stats.Retained,
		"dropped", stats.Dropped,
	)
	return kept, stats, nil
}

// ParseReader splits r on the configured marker and parses every block.
func ParseReader(ctx context.Context, r io.Reader, opts Options) (patent.Corpus, Stats, error) {
	seq, scanErr := Blocks(r, opts.marker())
	var blocks []Block
	for b := range seq {
		blocks = append(blocks, b)
	}
	if err := scanErr(); err != nil {
		return patent.Corpus{}, Stats{}, fmt.Errorf("split corpus: %w", err)
	}
	docs, stats, err := ParseAll(ctx, blocks, opts)
	if err != nil {
		return patent.Corpus{}, stats, err
	}
	return patent.Corpus{Patents: docs}, stats, nil
}

// ParseFile parses an upload by name: .xml files are a bulk corpus, other
// supported formats a single document.
func ParseFile(ctx context.Context, r io.Reader, filename string, opts Options) ([]patent.Document, Stats, error) {
	if parser.IsCorpusFile(filename) {
		c, stats, err := ParseReader(ctx, r, opts)
		return c.Patents, stats, err
	}

	p := parser.NewPatentParser(opts.Kinds...)
	p.PDFFallback = opts.PDFFallback
	doc, err := p.ParseSource(r, filename)
	if err != nil {
		return nil, Stats{}, err
	}
	stats := Stats{Blocks: 1}
	if !doc.HasText() {
		stats.Empty = 1
		if !opts.KeepEmpty {
			stats.Dropped = 1
			opts.logger().Debug("dropped empty document", "file", filename)
			return nil, stats, nil
		}
	}
	stats.Retained = 1
	return []patent.Document{doc}, stats, nil
}
