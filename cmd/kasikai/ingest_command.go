package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"kasikai/internal/booking"
	"kasikai/internal/ingest"
	"kasikai/internal/logging"
)

func newIngestCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Process inbox CSV files once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFlag)
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}

			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			ledger, err := ingest.OpenLedger(filepath.Join(cfg.Paths.DataDir, "runs.db"))
			if err != nil {
				return fmt.Errorf("open run ledger: %w", err)
			}
			defer ledger.Close()

			runner := ingest.NewRunner(cfg, logger, ledger)
			run, err := runner.Run(cmd.Context(), "cli")
			if err != nil {
				return fmt.Errorf("ingestion failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s finished with status %s\n", run.ID, run.Status)
			fmt.Fprintf(out, "  files processed: %d (failed: %d, purged: %d)\n",
				run.FilesProcessed, run.FilesFailed, run.PurgedFiles)
			fmt.Fprintf(out, "  rows in: %d, records out: %d, written: %d\n",
				run.RowsIn, run.RecordsOut, run.RecordsWritten)
			if len(run.Skips) > 0 {
				reasons := make([]string, 0, len(run.Skips))
				for reason := range run.Skips {
					reasons = append(reasons, string(reason))
				}
				sort.Strings(reasons)
				fmt.Fprintln(out, "  skipped rows:")
				for _, reason := range reasons {
					fmt.Fprintf(out, "    %s: %d\n", reason, run.Skips[booking.SkipReason(reason)])
				}
			}
			return nil
		},
	}
}
