package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/scenex/internal/ingest"
)

var buildCmd = &cobra.Command{
	Use:   "build [scene.json|scene.db] [output.db]",
	Short: "Build a SQLite scene database from a scene file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := args[0]
		output := args[1]

		_, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		_ = os.Remove(output) // Overwrite
		writer, err := ingest.NewSQLiteWriter(output)
		if err != nil {
			return err
		}
		defer func() { _ = writer.Close() }()

		engine := ingest.NewEngine(writer, logger)

		start := time.Now()
		fmt.Fprintf(cmd.OutOrStdout(), "Building %s from %s...\n", output, source)
		if err := engine.Ingest(source); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Done in %v.\n", time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}
