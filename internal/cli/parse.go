package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/patgest/internal/corpus"
	"github.com/dgallion1/patgest/internal/patent"
)

func newParseCommand(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "parse <corpus>",
		Short: "Parse a corpus into abstract and description sections",
		Long: `Parse a bulk XML grant file into a JSON corpus. Other supported formats
(txt, md, html, pdf, docx) are parsed as a single document whose headings
select the sections.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.ValidateCorpus(); err != nil {
				return err
			}
			c, stats, err := a.parseFile(cmd, args[0])
			if err != nil {
				return err
			}
			if err := corpus.Save(out, c); err != nil {
				return err
			}
			cmd.Printf("Parsed %d blocks: %d documents kept, %d empty, %d dropped\n",
				stats.Blocks, stats.Retained, stats.Empty, stats.Dropped)
			cmd.Printf("Wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "parsed.json", "Output JSON file")
	return cmd
}

func (a *app) parseFile(cmd *cobra.Command, path string) (patent.Corpus, corpus.Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return patent.Corpus{}, corpus.Stats{}, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	docs, stats, err := corpus.ParseFile(cmd.Context(), f, path, a.corpusOptions())
	if err != nil {
		return patent.Corpus{}, stats, err
	}
	if docs == nil {
		docs = []patent.Document{}
	}
	return patent.Corpus{Patents: docs}, stats, nil
}

func (a *app) corpusOptions() corpus.Options {
	return corpus.Options{
		Marker:      a.cfg.Marker,
		Kinds:       a.cfg.Sections,
		Concurrency: a.cfg.ParseConcurrency,
		KeepEmpty:   a.cfg.KeepEmpty,
		PDFFallback: a.cfg.PDFFallbackPdftotext,
		Logger:      a.log,
	}
}
