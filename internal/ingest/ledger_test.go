package ingest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"kasikai/internal/booking"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	ledger, err := OpenLedger(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ledger.Close() })
	return ledger
}

func TestLedgerRecordAndRecall(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	started := time.Date(2025, 1, 21, 9, 0, 0, 0, time.UTC)
	run := &Run{
		ID:             "run-1",
		Source:         "startup",
		Status:         RunStatusOK,
		StartedAt:      started,
		FinishedAt:     started.Add(2 * time.Second),
		FilesProcessed: 3,
		RowsIn:         40,
		RecordsOut:     55,
		RecordsWritten: 55,
		Skips: map[booking.SkipReason]int{
			booking.SkipCancelled:   4,
			booking.SkipUnknownRoom: 1,
		},
	}
	if err := ledger.RecordRun(ctx, run); err != nil {
		t.Fatal(err)
	}

	got, err := ledger.LastRun(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected a recorded run")
	}
	if got.ID != "run-1" || got.Source != "startup" || got.Status != RunStatusOK {
		t.Errorf("run mismatch: %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("started_at = %v, want %v", got.StartedAt, started)
	}
	if got.FilesProcessed != 3 || got.RecordsWritten != 55 {
		t.Errorf("counters mismatch: %+v", got)
	}
	if got.Skips[booking.SkipCancelled] != 4 || got.Skips[booking.SkipUnknownRoom] != 1 {
		t.Errorf("skips = %v", got.Skips)
	}
}

func TestLedgerRecentRunsOrder(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 21, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		run := &Run{
			ID:         id,
			Source:     "watcher",
			Status:     RunStatusEmpty,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + time.Second),
		}
		if err := ledger.RecordRun(ctx, run); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := ledger.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Errorf("unexpected order: %s, %s", runs[0].ID, runs[1].ID)
	}
}

func TestLedgerRecentRunsSubsecondOrder(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 21, 9, 0, 0, 0, time.UTC)
	earlier := &Run{
		ID:         "run-whole-second",
		Source:     "watcher",
		Status:     RunStatusEmpty,
		StartedAt:  base,
		FinishedAt: base.Add(time.Second),
	}
	later := &Run{
		ID:         "run-half-second",
		Source:     "watcher",
		Status:     RunStatusEmpty,
		StartedAt:  base.Add(500 * time.Millisecond),
		FinishedAt: base.Add(time.Second),
	}
	for _, run := range []*Run{earlier, later} {
		if err := ledger.RecordRun(ctx, run); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := ledger.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != "run-half-second" || runs[1].ID != "run-whole-second" {
		t.Errorf("unexpected order: %s, %s", runs[0].ID, runs[1].ID)
	}
}

func TestLedgerEmpty(t *testing.T) {
	ledger := openTestLedger(t)

	last, err := ledger.LastRun(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if last != nil {
		t.Errorf("expected nil, got %+v", last)
	}
}

func TestLedgerReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runs.db")

	ledger, err := OpenLedger(path)
	if err != nil {
		t.Fatal(err)
	}
	run := &Run{
		ID:         "run-1",
		Source:     "cli",
		Status:     RunStatusOK,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	}
	if err := ledger.RecordRun(context.Background(), run); err != nil {
		t.Fatal(err)
	}
	if err := ledger.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenLedger(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	last, err := reopened.LastRun(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if last == nil || last.ID != "run-1" {
		t.Errorf("run not persisted across reopen: %+v", last)
	}
}
