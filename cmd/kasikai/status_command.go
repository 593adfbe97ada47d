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

const (
	ansiBlue  = "\x1b[34m"
	ansiReset = "\x1b[0m"
)

func newStatusCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pipeline paths and the most recent run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFlag)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			heading := "kasikai status"
			if isTerminal(out) {
				heading = ansiBlue + heading + ansiReset
			}
			fmt.Fprintln(out, heading)

			fmt.Fprintln(out, renderTable(
				[]string{"Path", "Location"},
				[][]string{
					{"Inbox", cfg.Paths.InboxDir},
					{"Processed", cfg.Paths.ProcessedDir},
					{"Output", cfg.OutputCSVPath()},
					{"Booking config", cfg.Paths.BookingConfig},
					{"Bind", cfg.Paths.APIBind},
				},
				nil,
			))

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

			last, err := ledger.LastRun(cmd.Context())
			if err != nil {
				return fmt.Errorf("read last run: %w", err)
			}
			if last == nil {
				fmt.Fprintln(out, "No runs recorded yet.")
				return nil
			}

			fmt.Fprintln(out, renderTable(
				[]string{"Last run", "Value"},
				[][]string{
					{"ID", last.ID},
					{"Source", last.Source},
					{"Status", last.Status},
					{"Started", last.StartedAt.Local().Format(time.RFC3339)},
					{"Files processed", strconv.Itoa(last.FilesProcessed)},
					{"Records written", strconv.Itoa(last.RecordsWritten)},
				},
				nil,
			))
			if last.Error != "" {
				fmt.Fprintf(out, "Last error: %s\n", last.Error)
			}
			return nil
		},
	}
}
