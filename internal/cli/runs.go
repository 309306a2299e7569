package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/weather-yield-etl/internal/domain"
	"github.com/couchcryptid/weather-yield-etl/internal/storage"
)

type RunsCmd struct{}

func NewRunsCmd() *RunsCmd {
	return &RunsCmd{}
}

func (c *RunsCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent ingestion runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return fmt.Errorf("failed to get limit flag: %w", err)
			}
			dataset, err := cmd.Flags().GetString("dataset")
			if err != nil {
				return fmt.Errorf("failed to get dataset flag: %w", err)
			}
			if limit <= 0 {
				return fmt.Errorf("invalid limit: %d", limit)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			runs, total, err := a.store.ListRuns(ctx, storage.RunFilter{Dataset: dataset}, storage.Page{Number: 1, Size: limit})
			if err != nil {
				return err
			}
			renderRuns(cmd.OutOrStdout(), runs)
			fmt.Fprintf(cmd.OutOrStdout(), "showing %d of %d runs\n", len(runs), total)
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "Number of runs to show, newest first")
	cmd.Flags().String("dataset", "", "Only show runs of this dataset")

	return cmd
}

func renderRuns(w io.Writer, runs []domain.IngestionRun) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader([]string{
		"ID", "Dataset", "Started", "Finished", "Status",
		"Processed", "Raw Inserted", "Curated Upserted", "Conflicts",
	})
	for _, run := range runs {
		finished, status := "-", "abandoned/in-progress"
		if run.Finished() {
			finished = run.FinishedAt.UTC().Format(time.RFC3339)
			status = run.Status()
		}
		table.Append([]string{
			strconv.FormatInt(run.ID, 10),
			run.Dataset,
			run.StartedAt.UTC().Format(time.RFC3339),
			finished,
			status,
			strconv.FormatInt(run.Processed, 10),
			strconv.FormatInt(run.RawInserted, 10),
			strconv.FormatInt(run.CuratedUpserted, 10),
			strconv.FormatInt(run.Conflicts, 10),
		})
	}
	table.Render()
}
