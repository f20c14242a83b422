// Package cli is the patgest command line: split, parse, extract and report
// over local files.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dgallion1/patgest/internal/config"
)

// Version is set at build time.
var Version = "dev"

// app carries the global flags and what PersistentPreRunE derives from
// them.
type app struct {
	verbose bool
	dbPath  string
	envFile string

	cfg config.Config
	log *slog.Logger
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "patgest",
		Short:         "Extract material measurements from patent grant corpora",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.ErrOrStderr())
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Log debug output to stderr")
	pf.StringVar(&a.dbPath, "db", "", "Record runs in this SQLite database")
	pf.StringVar(&a.envFile, "env-file", "", "Load settings from this env file before the environment")

	root.AddCommand(
		newSplitCommand(a),
		newParseCommand(a),
		newExtractCommand(a),
		newReportCommand(a),
	)
	return root
}

func (a *app) init(stderr io.Writer) error {
	if a.envFile != "" {
		if err := config.LoadEnvFile(a.envFile); err != nil {
			return err
		}
	}
	a.cfg = config.Load()

	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	a.log = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		os.Exit(1)
	}
}
