package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"kasikai/internal/ingest"
)

func newRunsCommand(configFlag *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent ingestion runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFlag)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			ledgerPath := filepath.Join(cfg.Paths.DataDir, "runs.db")
			if _, err := os.Stat(ledgerPath); err != nil {
				fmt.Fprintln(out, "No runs recorded yet.")
				return nil
			}
			ledger, err := ingest.OpenLedger(ledgerPath)
			if err != nil {
				return fmt.Errorf("open run ledger: %w", err)
			}
			defer ledger.Close()

			runs, err := ledger.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("read run history: %w", err)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet.")
				return nil
			}

			rows := make([][]string, len(runs))
			for i, run := range runs {
				elapsed := run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond)
				rows[i] = []string{
					run.StartedAt.Local().Format("2006-01-02 15:04:05"),
					run.Source,
					run.Status,
					strconv.Itoa(run.FilesProcessed),
					strconv.Itoa(run.RowsIn),
					strconv.Itoa(run.RecordsWritten),
					elapsed.String(),
				}
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Started", "Source", "Status", "Files", "Rows", "Written", "Elapsed"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	return cmd
}
