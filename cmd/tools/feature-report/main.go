package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"lendee-scoring/internal/bootstrap"
	"lendee-scoring/internal/common/config"
	"lendee-scoring/internal/common/logger"
	"lendee-scoring/internal/lendee"
)

var version = "dev"

type options struct {
	configFile string
	sourceDir  string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "feature-report",
		Short:        "Inspect the lendee feature table and scores",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (defaults to configs/config.yaml lookup)")
	root.PersistentFlags().StringVarP(&opts.sourceDir, "dir", "d", "", "read CSV sources from this directory instead of the configured driver")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level")

	root.AddCommand(featuresCmd(opts))
	root.AddCommand(exportCmd(opts))
	root.AddCommand(scoreCmd(opts))
	return root
}

func featuresCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "features",
		Short: "Print the per-lendee feature table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, err := loadFeatures(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if limit > 0 && len(rows) > limit {
				rows = rows[:limit]
			}
			return renderFeatures(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most this many lendees")
	return cmd
}

func exportCmd(opts *options) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the feature table to a Parquet or CSV file",
		Long: `Write the feature table, including each lendee's score, to a file.

The format follows the file extension: .parquet or .csv.

Examples:
  feature-report export --output lendee_features.parquet
  feature-report export -d ./data -o features.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, err := loadFeatures(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if err := exportFeatures(output, rows); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d lendees to %s\n", len(rows), output)
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "lendee_features.parquet", "output file")
	return cmd
}

func scoreCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score [lendee-id...]",
		Short: "Print scores for every lendee, or only the given ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, closeFn, err := buildPipeline(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeFn()

			var scores lendee.Scores
			if len(args) > 0 {
				scores, err = pipeline.ScoreSubset(cmd.Context(), args)
			} else {
				scores, err = pipeline.ScoreAll(cmd.Context())
			}
			if err != nil {
				return err
			}
			return renderScores(cmd.OutOrStdout(), scores)
		},
	}
	return cmd
}

func loadConfig(opts *options) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configFile != "" {
		cfg, err = config.LoadFromFile(opts.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if opts.sourceDir != "" {
		cfg.Sources.Driver = config.SourceDriverCSV
		cfg.Sources.Dir = opts.sourceDir
	}
	// the report never publishes snapshots
	cfg.Snapshot = config.SnapshotConfig{}
	return cfg, nil
}

func buildPipeline(ctx context.Context, opts *options) (*lendee.Pipeline, func(), error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, err
	}
	log := logger.NewStructured(opts.logLevel, "console")

	deps, err := bootstrap.Connect(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	pipeline, err := bootstrap.Pipeline(cfg, deps, log)
	if err != nil {
		deps.Close()
		return nil, nil, err
	}
	return pipeline, deps.Close, nil
}

func loadFeatures(ctx context.Context, opts *options) ([]lendee.FeatureRow, error) {
	pipeline, closeFn, err := buildPipeline(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return pipeline.Features(ctx)
}

func exportFeatures(path string, rows []lendee.FeatureRow) error {
	var write func(*os.File) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		write = func(f *os.File) error { return lendee.WriteFeaturesParquet(f, rows) }
	case ".csv":
		write = func(f *os.File) error { return lendee.WriteFeaturesCSV(f, rows) }
	default:
		return fmt.Errorf("unsupported export format %q: use .parquet or .csv", filepath.Ext(path))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
