// Package watcher observes the inbox directory for CSV changes and triggers
// the ingestion pipeline after a quiet period, so multi-file drops are
// processed as one batch.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"kasikai/internal/logging"
)

// TriggerFunc runs one ingestion pass. The watcher calls it from its own
// goroutine after the debounce interval elapses without further CSV events.
type TriggerFunc func(ctx context.Context)

// Watcher debounces inbox filesystem events into pipeline triggers.
type Watcher struct {
	dir      string
	debounce time.Duration
	trigger  TriggerFunc
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a watcher over dir with the given quiet period.
func New(dir string, debounce time.Duration, trigger TriggerFunc, logger *slog.Logger) (*Watcher, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("watch directory not configured")
	}
	if trigger == nil {
		return nil, errors.New("trigger function required")
	}
	if debounce <= 0 {
		debounce = 5 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		trigger:  trigger,
		logger:   logging.NewComponentLogger(logger, "watcher"),
	}, nil
}

// Start begins watching. It returns once the filesystem watch is registered.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return errors.New("watcher already running")
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create filesystem watcher: %w", err)
	}
	if err := fsWatcher.Add(w.dir); err != nil {
		_ = fsWatcher.Close()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.ctx = runCtx
	w.cancel = cancel
	w.running = true

	w.logger.Info("watching inbox",
		logging.String("dir", w.dir),
		logging.Duration("debounce", w.debounce),
	)

	w.wg.Add(1)
	go w.loop(fsWatcher)
	return nil
}

// Stop halts the watcher and waits for the event loop to exit. A pending
// debounce timer is discarded without firing.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

func (w *Watcher) loop(fsWatcher *fsnotify.Watcher) {
	defer w.wg.Done()
	defer fsWatcher.Close()

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-fsWatcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			// Any further CSV activity restarts the quiet period, so a
			// drop of several files produces a single run.
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			timerC = timer.C
			w.logger.Debug("csv change detected, debounce timer reset",
				logging.String(logging.FieldFile, filepath.Base(event.Name)),
				logging.String("op", event.Op.String()),
			)

		case <-timerC:
			timer = nil
			timerC = nil
			w.logger.Info("quiet period elapsed, triggering ingestion")
			w.trigger(w.ctx)

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem watch error", logging.Error(err))
		}
	}
}

// relevant reports whether the event concerns a CSV file. Hidden files are
// ignored so partially written uploads do not trigger runs.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), ".csv")
}
