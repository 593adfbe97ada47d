package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"kasikai/internal/booking"
	"kasikai/internal/config"
	"kasikai/internal/csvio"
)

const testHeader = "利用日時(予約内容),会議室(予約内容),合計金額(予約内容),取消日(予約内容),事業所名\n"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Paths: config.Paths{
			InboxDir:      filepath.Join(dir, "inbox"),
			ProcessedDir:  filepath.Join(dir, "processed"),
			DataDir:       filepath.Join(dir, "data"),
			LogDir:        filepath.Join(dir, "logs"),
			BookingConfig: filepath.Join(dir, "rooms.json"),
		},
		Ingest: config.Ingest{DebounceSeconds: 5, PurgeProcessed: true},
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func writeInboxFile(t *testing.T, cfg *config.Config, name, content string) string {
	t.Helper()
	path := filepath.Join(cfg.Paths.InboxDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunProcessesInbox(t *testing.T) {
	cfg := testConfig(t)
	runner := NewRunner(cfg, nil, nil)

	content := testHeader +
		"2025年1月21日 午前,中会議室,\"3,000\",,テスト株式会社\n" +
		"2025年1月22日 午後,小会議室,\"5,000\",2025年1月10日,取消済株式会社\n"
	writeInboxFile(t, cfg, "export.csv", content)

	run, err := runner.Run(context.Background(), "test")
	if err != nil {
		t.Fatal(err)
	}

	if run.Status != RunStatusOK {
		t.Errorf("status = %q, want %q", run.Status, RunStatusOK)
	}
	if run.FilesProcessed != 1 || run.RowsIn != 2 || run.RecordsWritten != 1 {
		t.Errorf("unexpected counters: %+v", run)
	}
	if run.Skips[booking.SkipCancelled] != 1 {
		t.Errorf("skip counts = %v", run.Skips)
	}

	table, err := csvio.ReadFile(cfg.OutputCSVPath())
	if err != nil {
		t.Fatalf("read canonical output: %v", err)
	}
	if table.Encoding != "utf-8-sig" {
		t.Errorf("output encoding = %q, want utf-8-sig", table.Encoding)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("output rows = %d, want 1", len(table.Rows))
	}
	if got := table.Rows[0]["事業所名"]; got != "テスト株式会社" {
		t.Errorf("surviving company = %q", got)
	}
	for _, column := range table.Columns {
		switch column {
		case "id", "roomId", "date", "slot", "isSpecial":
			t.Errorf("bookkeeping column %q leaked into output", column)
		}
	}

	entries, err := os.ReadDir(cfg.Paths.InboxDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("inbox not emptied: %d entries remain", len(entries))
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.ProcessedDir, "export.csv")); err != nil {
		t.Errorf("processed copy missing: %v", err)
	}
}

func TestRunLaterFileWinsCollision(t *testing.T) {
	cfg := testConfig(t)
	runner := NewRunner(cfg, nil, nil)

	older := writeInboxFile(t, cfg, "b_old.csv",
		testHeader+"2025年1月21日 午前,中会議室,\"3,000\",,旧データ株式会社\n")
	newer := writeInboxFile(t, cfg, "a_new.csv",
		testHeader+"2025年1月21日 午前,中会議室,\"3,000\",,新データ株式会社\n")

	base := time.Now().Add(-time.Hour)
	if err := os.Chtimes(older, base, base); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(newer, base.Add(time.Minute), base.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}

	run, err := runner.Run(context.Background(), "test")
	if err != nil {
		t.Fatal(err)
	}
	if run.RecordsWritten != 1 {
		t.Fatalf("records written = %d, want 1", run.RecordsWritten)
	}

	table, err := csvio.ReadFile(cfg.OutputCSVPath())
	if err != nil {
		t.Fatal(err)
	}
	if got := table.Rows[0]["事業所名"]; got != "新データ株式会社" {
		t.Errorf("surviving company = %q, want the newer file's value", got)
	}
}

func TestRunRelocationFailureLeavesFileForRetry(t *testing.T) {
	cfg := testConfig(t)
	runner := NewRunner(cfg, nil, nil)

	blocked := writeInboxFile(t, cfg, "blocked.csv",
		testHeader+"2025年1月21日 午前,中会議室,\"3,000\",,第一株式会社\n")
	writeInboxFile(t, cfg, "movable.csv",
		testHeader+"2025年1月22日 午後,小会議室,\"5,000\",,第二株式会社\n")

	// A non-empty directory squatting on the destination name makes the
	// rename for that one file fail.
	squatter := filepath.Join(cfg.Paths.ProcessedDir, "blocked.csv")
	if err := os.MkdirAll(squatter, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(squatter, "occupant"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	run, err := runner.Run(context.Background(), "test")
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != RunStatusOK {
		t.Errorf("status = %q, want %q", run.Status, RunStatusOK)
	}
	if run.FilesUnrelocated != 1 {
		t.Errorf("files unrelocated = %d, want 1", run.FilesUnrelocated)
	}
	if run.RecordsWritten != 2 {
		t.Errorf("records written = %d, want 2", run.RecordsWritten)
	}

	if _, err := os.Stat(blocked); err != nil {
		t.Errorf("blocked file should stay in inbox for retry: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.ProcessedDir, "movable.csv")); err != nil {
		t.Errorf("sibling file not relocated: %v", err)
	}
	if _, err := os.Stat(cfg.OutputCSVPath()); err != nil {
		t.Errorf("canonical output missing: %v", err)
	}
}

func TestRunEmptyInbox(t *testing.T) {
	cfg := testConfig(t)
	runner := NewRunner(cfg, nil, nil)

	run, err := runner.Run(context.Background(), "test")
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != RunStatusEmpty {
		t.Errorf("status = %q, want %q", run.Status, RunStatusEmpty)
	}
	if _, err := os.Stat(cfg.OutputCSVPath()); !os.IsNotExist(err) {
		t.Error("empty run should not create output")
	}
}

func TestRunUnreadableFileStaysInInbox(t *testing.T) {
	cfg := testConfig(t)
	runner := NewRunner(cfg, nil, nil)

	path := filepath.Join(cfg.Paths.InboxDir, "broken.csv")
	if err := os.WriteFile(path, []byte{0xFF, 0xFF, 0xFF}, 0o644); err != nil {
		t.Fatal(err)
	}

	run, err := runner.Run(context.Background(), "test")
	if err != nil {
		t.Fatal(err)
	}
	if run.FilesFailed != 1 {
		t.Errorf("files failed = %d, want 1", run.FilesFailed)
	}
	if run.Status != RunStatusEmpty {
		t.Errorf("status = %q, want %q", run.Status, RunStatusEmpty)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("unreadable file should stay in inbox: %v", err)
	}
}

func TestRunPurgesStaleProcessedFiles(t *testing.T) {
	cfg := testConfig(t)
	runner := NewRunner(cfg, nil, nil)

	stale := filepath.Join(cfg.Paths.ProcessedDir, "yesterday.csv")
	fresh := filepath.Join(cfg.Paths.ProcessedDir, "today.csv")
	for _, path := range []string{stale, fresh} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	old := time.Now().AddDate(0, 0, -2)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	run, err := runner.Run(context.Background(), "test")
	if err != nil {
		t.Fatal(err)
	}
	if run.PurgedFiles != 1 {
		t.Errorf("purged = %d, want 1", run.PurgedFiles)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale processed file not removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh processed file removed: %v", err)
	}
}

func TestRunPurgeDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ingest.PurgeProcessed = false
	runner := NewRunner(cfg, nil, nil)

	stale := filepath.Join(cfg.Paths.ProcessedDir, "yesterday.csv")
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().AddDate(0, 0, -2)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	if _, err := runner.Run(context.Background(), "test"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(stale); err != nil {
		t.Errorf("file purged despite retention disabled: %v", err)
	}
}

func TestRunRecordsToLedger(t *testing.T) {
	cfg := testConfig(t)
	ledger, err := OpenLedger(filepath.Join(cfg.Paths.DataDir, "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer ledger.Close()

	runner := NewRunner(cfg, nil, ledger)
	writeInboxFile(t, cfg, "export.csv",
		testHeader+"2025年1月21日 午前,中会議室,0,,無料利用株式会社\n")

	run, err := runner.Run(context.Background(), "watcher")
	if err != nil {
		t.Fatal(err)
	}

	last, err := ledger.LastRun(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if last == nil {
		t.Fatal("no run recorded")
	}
	if last.ID != run.ID || last.Source != "watcher" || last.Status != RunStatusOK {
		t.Errorf("recorded run mismatch: %+v", last)
	}
	if last.RecordsWritten != 1 {
		t.Errorf("records written = %d, want 1", last.RecordsWritten)
	}
}
