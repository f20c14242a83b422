package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/patgest/internal/corpus"
)

func newSplitCommand(a *app) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "split <corpus.xml>",
		Short: "Write every document of a bulk corpus to its own XML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open corpus: %w", err)
			}
			defer f.Close()

			blocks, scanErr := corpus.Blocks(f, a.cfg.Marker)
			n, err := corpus.WriteBlocks(outDir, blocks)
			if err != nil {
				return err
			}
			if err := scanErr(); err != nil {
				return fmt.Errorf("split %s: %w", args[0], err)
			}
			a.log.Debug("split corpus", "file", args[0], "documents", n, "out_dir", outDir)
			cmd.Printf("Wrote %d documents to %s\n", n, outDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out-dir", "patents", "Directory for the per-document files")
	return cmd
}
