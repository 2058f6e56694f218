package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/agentic-research/sitegraph/internal/content"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importCmd = &cobra.Command{
	Use:   "import [fixture.json] [output.db]",
	Short: "Build a SQLite content store from a JSON fixture",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, output := args[0], args[1]

		f, err := content.LoadFixture(source)
		if err != nil {
			return err
		}

		_ = os.Remove(output) // Overwrite
		w, err := content.NewSQLiteWriter(output)
		if err != nil {
			return err
		}
		defer func() { _ = w.Close() }()

		start := time.Now()
		if err := w.WriteFixture(f); err != nil {
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
		log.Info("imported content",
			zap.String("source", source),
			zap.String("output", output),
			zap.Int("records", w.Count()),
			zap.Duration("took", time.Since(start)))
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d records to %s\n", w.Count(), output)
		return err
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
