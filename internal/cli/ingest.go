package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	kafkaadapter "github.com/couchcryptid/weather-yield-etl/internal/adapter/kafka"
	"github.com/couchcryptid/weather-yield-etl/internal/pipeline"
)

type IngestWeatherCmd struct{}

func NewIngestWeatherCmd() *IngestWeatherCmd {
	return &IngestWeatherCmd{}
}

func (c *IngestWeatherCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest-weather",
		Short: "Load a directory of station files as one ingestion run",
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, err := cmd.Flags().GetString("data-dir")
			if err != nil {
				return fmt.Errorf("failed to get data-dir flag: %w", err)
			}
			batchSize, err := cmd.Flags().GetInt("batch-size")
			if err != nil {
				return fmt.Errorf("failed to get batch-size flag: %w", err)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if dataDir == "" {
				dataDir = a.cfg.DataDir
			}
			if batchSize <= 0 {
				batchSize = a.cfg.BatchSize
			}

			opts := []pipeline.WeatherOption{pipeline.WithRunLock(a.cfg.RunLock)}
			if a.cfg.PublishEnabled() {
				publisher := kafkaadapter.NewRunPublisher(a.cfg, a.logger)
				defer func() {
					if err := publisher.Close(); err != nil {
						a.logger.Error("kafka publisher close error", "error", err)
					}
				}()
				opts = append(opts, pipeline.WithPublisher(publisher))
			}

			ing := pipeline.NewWeatherIngester(a.store, a.clock, a.logger, a.metrics, opts...)
			counts, err := ing.Ingest(ctx, dataDir, batchSize)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed=%d raw_inserted=%d curated_upserted=%d conflicts=%d\n",
				counts.Processed, counts.RawInserted, counts.CuratedUpserted, counts.Conflicts)
			return nil
		},
	}

	cmd.Flags().String("data-dir", "", "Directory of <station>.txt files (default DATA_DIR)")
	cmd.Flags().Int("batch-size", 0, "Raw rows per insert transaction (default BATCH_SIZE)")

	return cmd
}

type IngestYieldCmd struct{}

func NewIngestYieldCmd() *IngestYieldCmd {
	return &IngestYieldCmd{}
}

func (c *IngestYieldCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest-yield",
		Short: "Load the crop yield file, keeping years already stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := cmd.Flags().GetString("file")
			if err != nil {
				return fmt.Errorf("failed to get file flag: %w", err)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if file == "" {
				file = a.cfg.YieldFile
			}
			counts, err := pipeline.NewYieldIngester(a.store, a.clock, a.logger, a.metrics).Ingest(ctx, file)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed=%d inserted=%d\n", counts.Processed, counts.Inserted)
			return nil
		},
	}

	cmd.Flags().String("file", "", "Path to the yield file (default YIELD_FILE)")

	return cmd
}

type ComputeStatsCmd struct{}

func NewComputeStatsCmd() *ComputeStatsCmd {
	return &ComputeStatsCmd{}
}

func (c *ComputeStatsCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "compute-stats",
		Short: "Recompute per-station yearly statistics from curated observations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := pipeline.NewStatsAggregator(a.store, a.clock, a.logger, a.metrics).Compute(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stats_rows_upserted=%d\n", n)
			return nil
		},
	}
}
