package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestWatcherTriggersAfterQuietPeriod(t *testing.T) {
	dir := t.TempDir()

	var triggers atomic.Int32
	w, err := New(dir, 100*time.Millisecond, func(context.Context) {
		triggers.Add(1)
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "export.csv"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, 2*time.Second, func() bool { return triggers.Load() == 1 }) {
		t.Fatalf("expected 1 trigger, got %d", triggers.Load())
	}
}

func TestWatcherBatchesRapidEvents(t *testing.T) {
	dir := t.TempDir()

	var triggers atomic.Int32
	w, err := New(dir, 200*time.Millisecond, func(context.Context) {
		triggers.Add(1)
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for i := 0; i < 5; i++ {
		name := filepath.Join(dir, "export"+string(rune('a'+i))+".csv")
		if err := os.WriteFile(name, []byte("data"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	if !waitFor(t, 2*time.Second, func() bool { return triggers.Load() >= 1 }) {
		t.Fatal("watcher never triggered")
	}
	// Allow a full extra quiet period to catch spurious double triggers.
	time.Sleep(400 * time.Millisecond)
	if got := triggers.Load(); got != 1 {
		t.Fatalf("expected 1 batched trigger, got %d", got)
	}
}

func TestWatcherIgnoresNonCSV(t *testing.T) {
	dir := t.TempDir()

	var triggers atomic.Int32
	w, err := New(dir, 100*time.Millisecond, func(context.Context) {
		triggers.Add(1)
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".partial.csv"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(300 * time.Millisecond)
	if got := triggers.Load(); got != 0 {
		t.Fatalf("expected no triggers for non-csv files, got %d", got)
	}
}

func TestWatcherStopCancelsPendingTrigger(t *testing.T) {
	dir := t.TempDir()

	var triggers atomic.Int32
	w, err := New(dir, 200*time.Millisecond, func(context.Context) {
		triggers.Add(1)
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "export.csv"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	w.Stop()

	time.Sleep(400 * time.Millisecond)
	if got := triggers.Load(); got != 0 {
		t.Fatalf("expected no trigger after stop, got %d", got)
	}
}

func TestWatcherValidation(t *testing.T) {
	if _, err := New("", time.Second, func(context.Context) {}, nil); err == nil {
		t.Error("expected error for empty directory")
	}
	if _, err := New(t.TempDir(), time.Second, nil, nil); err == nil {
		t.Error("expected error for nil trigger")
	}
}

func TestWatcherStartTwice(t *testing.T) {
	w, err := New(t.TempDir(), time.Second, func(context.Context) {}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := w.Start(context.Background()); err == nil {
		t.Error("expected error on second start")
	}
}
