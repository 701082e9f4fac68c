package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agentic-research/scenex/api"
	"github.com/agentic-research/scenex/internal/config"
	"github.com/agentic-research/scenex/internal/export"
	"github.com/agentic-research/scenex/internal/fetch"
	"github.com/agentic-research/scenex/internal/ingest"
	"github.com/agentic-research/scenex/internal/pipeline"
	"github.com/agentic-research/scenex/internal/scheduler"
	"github.com/agentic-research/scenex/internal/telemetry"
)

var (
	exportFormat      string
	exportMode        string
	exportOut         string
	exportBatchSize   int
	exportMaxColumns  int
	exportMaxRows     int
	exportTimeout     time.Duration
	exportRetries     int
	exportRPS         float64
	exportMetricsFile string
)

var exportCmd = &cobra.Command{
	Use:   "export [scene.json|scene.db]",
	Short: "Export every node's properties into a JSON document or an XLSX workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		applyExportFlags(cmd, cfg)

		format, err := api.ParseFormat(cfg.Export.Format)
		if err != nil {
			return err
		}
		mode, err := api.ParseMode(cfg.Export.Mode)
		if err != nil {
			return err
		}

		scene, err := ingest.Open(args[0])
		if err != nil {
			return err
		}
		defer func() { _ = scene.Close() }()

		if err := os.MkdirAll(cfg.Export.OutputDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		metrics := telemetry.NewCollector("scenex", logger)

		res, err := pipeline.Run(cmd.Context(), scene, pipeline.Options{
			Format: format,
			Mode:   mode,
			Policy: cfg.Policy,
			Overrides: api.Tier{
				BatchSize:           exportBatchSize,
				MaxColumns:          exportMaxColumns,
				MaxRowsPerPartition: exportMaxRows,
			},
			Fetch: fetch.Config{
				Timeout:           cfg.Fetch.Timeout,
				MaxAttempts:       cfg.Fetch.MaxAttempts,
				RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
			},
			MaxProperties:    cfg.Export.MaxProperties,
			ProgressEvery:    cfg.Export.ProgressEvery,
			MaxArtifactBytes: cfg.Export.MaxArtifactBytes,
			Store:            export.NewOSStore(cfg.Export.OutputDir),
			SourceName:       args[0],
			OnProgress:       logProgress(logger),
			Logger:           logger,
			Metrics:          metrics,
		})

		if cfg.Export.MetricsFile != "" {
			if werr := metrics.WriteTextfile(cfg.Export.MetricsFile); werr != nil {
				logger.Warn("metrics not written", zap.Error(werr))
			}
		}
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if res.Empty() {
			fmt.Fprintf(out, "Nothing to export: none of %d nodes carried properties.\n", res.Summary.TotalNodes)
			return nil
		}
		fmt.Fprintf(out, "Exported %d of %d nodes (%d%%) in %v to %s\n",
			res.Summary.TotalObjects, res.Summary.TotalNodes, res.Summary.SuccessRatePercent,
			time.Duration(res.Summary.ElapsedMs)*time.Millisecond, res.Path)
		return nil
	},
}

func applyExportFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Export.Format = exportFormat
	}
	if flags.Changed("mode") {
		cfg.Export.Mode = exportMode
	}
	if flags.Changed("out") {
		cfg.Export.OutputDir = exportOut
	}
	if flags.Changed("timeout") {
		cfg.Fetch.Timeout = exportTimeout
	}
	if flags.Changed("retries") {
		cfg.Fetch.MaxAttempts = exportRetries + 1
	}
	if flags.Changed("rps") {
		cfg.Fetch.RequestsPerSecond = exportRPS
	}
	if flags.Changed("metrics-file") {
		cfg.Export.MetricsFile = exportMetricsFile
	}
}

func logProgress(logger *zap.Logger) func(scheduler.Progress) {
	return func(p scheduler.Progress) {
		logger.Info("progress",
			zap.Int("processed", p.Processed),
			zap.Int("total", p.Total),
			zap.Int("valid", p.Valid),
			zap.Int("percent", p.Percent),
			zap.Float64("nodes_per_sec", p.Throughput),
			zap.Int("eta_sec", p.EstimatedSecondsRemaining))
	}
}

func init() {
	f := exportCmd.Flags()
	f.StringVarP(&exportFormat, "format", "f", "", "Artifact format: xlsx or json")
	f.StringVarP(&exportMode, "mode", "m", "", "Column mode: rich or minimal")
	f.StringVarP(&exportOut, "out", "o", "", "Output directory")
	f.IntVar(&exportBatchSize, "batch-size", 0, "Override the tier's batch size")
	f.IntVar(&exportMaxColumns, "max-columns", 0, "Override the tier's column limit")
	f.IntVar(&exportMaxRows, "max-rows", 0, "Override the tier's rows per sheet")
	f.DurationVar(&exportTimeout, "timeout", 0, "Per-node property request timeout")
	f.IntVar(&exportRetries, "retries", 0, "Retries per failed property request")
	f.Float64Var(&exportRPS, "rps", 0, "Property requests per second (0 = unpaced)")
	f.StringVar(&exportMetricsFile, "metrics-file", "", "Write Prometheus metrics to this file")
	rootCmd.AddCommand(exportCmd)
}
