package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/patgest/internal/pipeline"
	"github.com/dgallion1/patgest/internal/report"
)

func newReportCommand(a *app) *cobra.Command {
	var (
		html bool
		out  string
		top  int
	)
	cmd := &cobra.Command{
		Use:   "report <results.json>",
		Short: "Summarize a raw results file as Markdown or HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read results: %w", err)
			}
			var res pipeline.Results
			if err := json.Unmarshal(data, &res); err != nil {
				return fmt.Errorf("decode results %s: %w", args[0], err)
			}

			opts := report.Options{Title: filepath.Base(args[0]), TopProperties: top}
			var body []byte
			if html {
				if body, err = report.HTML(res, opts); err != nil {
					return err
				}
			} else {
				body = []byte(report.Markdown(res, opts))
			}

			if out == "" {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			if err := os.WriteFile(out, body, 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			a.log.Debug("report written", "path", out, "bytes", len(body))
			return nil
		},
	}
	cmd.Flags().BoolVar(&html, "html", false, "Render HTML instead of Markdown")
	cmd.Flags().StringVarP(&out, "output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().IntVar(&top, "top", 10, "Rows in the most frequent properties table")
	return cmd
}
