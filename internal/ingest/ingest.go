package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"kasikai/internal/booking"
	"kasikai/internal/config"
	"kasikai/internal/csvio"
	"kasikai/internal/fileutil"
	"kasikai/internal/logging"
	"kasikai/internal/roomcfg"
)

// Runner executes the ingestion pipeline. Runs are serialized; a trigger
// arriving while a run is active waits for it to finish.
type Runner struct {
	cfg    *config.Config
	logger *slog.Logger
	ledger *Ledger

	mu  sync.Mutex
	now func() time.Time
}

// NewRunner builds a pipeline runner. The ledger may be nil, in which case
// runs are not recorded.
func NewRunner(cfg *config.Config, logger *slog.Logger, ledger *Ledger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "ingest"),
		ledger: ledger,
		now:    time.Now,
	}
}

// Run executes one full pipeline pass. source labels what triggered the run
// (startup, watcher, upload, cli). The returned run reflects the outcome even
// when an error is returned.
func (r *Runner) Run(ctx context.Context, source string) (*Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := &Run{
		ID:        uuid.NewString(),
		Source:    source,
		StartedAt: r.now(),
	}
	logger := r.logger.With(logging.String(logging.FieldRunID, run.ID))
	logger.Info("starting ingestion run", logging.String("source", source))

	err := r.execute(ctx, logger, run)
	run.FinishedAt = r.now()
	if err != nil {
		run.Status = RunStatusFailed
		run.Error = err.Error()
		logger.Error("ingestion run failed", logging.Error(err))
	} else {
		logger.Info("ingestion run finished",
			logging.String("status", run.Status),
			logging.Int("files_processed", run.FilesProcessed),
			logging.Int("records_written", run.RecordsWritten),
			logging.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)),
		)
	}

	r.record(ctx, logger, run)
	return run, err
}

func (r *Runner) execute(ctx context.Context, logger *slog.Logger, run *Run) error {
	if err := r.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	if r.cfg.Ingest.PurgeProcessed {
		run.PurgedFiles = r.purgeProcessed(logger)
	}

	// The booking config reloads every run so roster and split-rule edits
	// take effect without a restart.
	roomConfig, _ := roomcfg.Load(r.cfg.Paths.BookingConfig, logger)

	files, err := r.scanInbox()
	if err != nil {
		return fmt.Errorf("scan inbox: %w", err)
	}
	if len(files) == 0 {
		logger.Info("no csv files to process")
		run.Status = RunStatusEmpty
		return nil
	}

	merger := booking.NewMerger(booking.NewNormalizer(roomConfig))
	var consumed []string
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		table, err := csvio.ReadFile(path)
		if err != nil {
			run.FilesFailed++
			logger.Error("failed to read csv, leaving file in inbox",
				logging.String(logging.FieldFile, filepath.Base(path)),
				logging.Error(fmt.Errorf("%w: %w", ErrReadFile, err)),
			)
			continue
		}
		rows := make([]booking.Row, len(table.Rows))
		for i, row := range table.Rows {
			rows[i] = booking.Row(row)
		}
		stats := merger.AddTable(table.Columns, rows)
		consumed = append(consumed, path)
		logger.Info("file loaded",
			logging.String(logging.FieldFile, filepath.Base(path)),
			logging.String("encoding", table.Encoding),
			logging.Int("rows", stats.RowsIn),
			logging.Int("records", stats.RecordsOut),
		)
	}

	stats := merger.Stats()
	run.FilesProcessed = len(consumed)
	run.RowsIn = stats.RowsIn
	run.RecordsOut = stats.RecordsOut
	run.Skips = stats.Skips

	if len(consumed) == 0 {
		run.Status = RunStatusEmpty
		return nil
	}

	records := merger.Records()
	if len(records) == 0 {
		logger.Info("no bookings survived normalization, keeping previous output")
	} else {
		outputRows := make([]map[string]string, len(records))
		for i, record := range records {
			outputRows[i] = map[string]string(record.Fields)
		}
		outputPath := r.cfg.OutputCSVPath()
		if err := csvio.WriteFile(outputPath, merger.Columns(), outputRows); err != nil {
			return fmt.Errorf("%w: %w", ErrWriteOutput, err)
		}
		run.RecordsWritten = len(records)
		logger.Info("canonical output replaced",
			logging.String("path", outputPath),
			logging.Int("records", len(records)),
		)
	}

	// A relocation failure only affects that file: it stays in the inbox for
	// the next run, the remaining files still move.
	for _, path := range consumed {
		dst := filepath.Join(r.cfg.Paths.ProcessedDir, filepath.Base(path))
		if err := fileutil.MoveFile(path, dst); err != nil {
			run.FilesUnrelocated++
			logger.Error("failed to relocate file, leaving it in inbox",
				logging.String(logging.FieldFile, filepath.Base(path)),
				logging.Error(fmt.Errorf("%w: %w", ErrRelocate, err)),
			)
			continue
		}
	}
	logger.Info("inbox files relocated",
		logging.Int("count", len(consumed)-run.FilesUnrelocated))

	run.Status = RunStatusOK
	return nil
}

// scanInbox lists inbox CSV files sorted by modification time ascending, so
// later exports win key collisions during the merge. Name breaks ties to keep
// the order deterministic.
func (r *Runner) scanInbox() ([]string, error) {
	entries, err := os.ReadDir(r.cfg.Paths.InboxDir)
	if err != nil {
		return nil, err
	}

	type inboxFile struct {
		path    string
		modTime time.Time
	}
	files := make([]inboxFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), ".csv") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, inboxFile{
			path:    filepath.Join(r.cfg.Paths.InboxDir, name),
			modTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if !files[i].modTime.Equal(files[j].modTime) {
			return files[i].modTime.Before(files[j].modTime)
		}
		return files[i].path < files[j].path
	})

	paths := make([]string, len(files))
	for i, file := range files {
		paths[i] = file.path
	}
	return paths, nil
}

// purgeProcessed removes processed files last modified before today. The
// processed area is a same-day audit trail, not an archive.
func (r *Runner) purgeProcessed(logger *slog.Logger) int {
	entries, err := os.ReadDir(r.cfg.Paths.ProcessedDir)
	if err != nil {
		return 0
	}

	now := r.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	purged := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(midnight) {
			continue
		}
		path := filepath.Join(r.cfg.Paths.ProcessedDir, entry.Name())
		if err := os.Remove(path); err != nil {
			logger.Warn("failed to purge processed file",
				logging.String(logging.FieldFile, entry.Name()),
				logging.Error(err),
			)
			continue
		}
		purged++
	}
	if purged > 0 {
		logger.Info("purged stale processed files", logging.Int("count", purged))
	}
	return purged
}

func (r *Runner) record(ctx context.Context, logger *slog.Logger, run *Run) {
	if r.ledger == nil {
		return
	}
	// Use a detached context so a cancelled run still gets recorded.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.ledger.RecordRun(recordCtx, run); err != nil {
		logger.Error("failed to record run in ledger", logging.Error(err))
	}
}
