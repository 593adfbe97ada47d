package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"kasikai/internal/config"
	"kasikai/internal/ingest"
	"kasikai/internal/logging"
	"kasikai/internal/server"
	"kasikai/internal/watcher"
)

// Daemon coordinates the background services and enforces single-instance
// execution via a file lock.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	ledger *ingest.Ledger
	runner *ingest.Runner
	watch  *watcher.Watcher
	srv    *server.Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	ledger, err := ingest.OpenLedger(filepath.Join(cfg.Paths.DataDir, "runs.db"))
	if err != nil {
		return nil, fmt.Errorf("open run ledger: %w", err)
	}

	runner := ingest.NewRunner(cfg, logger, ledger)

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		ledger:   ledger,
		runner:   runner,
		lockPath: filepath.Join(cfg.Paths.LogDir, "kasikaid.lock"),
	}
	d.lock = flock.New(d.lockPath)

	debounce := time.Duration(cfg.Ingest.DebounceSeconds) * time.Second
	watch, err := watcher.New(cfg.Paths.InboxDir, debounce, func(ctx context.Context) {
		_, _ = runner.Run(ctx, "watcher")
	}, logger)
	if err != nil {
		_ = ledger.Close()
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	d.watch = watch

	srv, err := server.New(cfg, logger, runner, ledger)
	if err != nil {
		_ = ledger.Close()
		return nil, fmt.Errorf("create server: %w", err)
	}
	d.srv = srv

	return d, nil
}

// Runner exposes the ingestion runner for one-shot invocations.
func (d *Daemon) Runner() *ingest.Runner {
	return d.runner
}

// Ledger exposes the run history store.
func (d *Daemon) Ledger() *ingest.Ledger {
	return d.ledger
}

// LockPath returns the single-instance lock file path.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

// Start acquires the instance lock, performs an initial ingestion pass over
// whatever is already sitting in the inbox, and brings up the watcher and
// dashboard server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another kasikai daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	// Files dropped while the daemon was down would otherwise wait for the
	// next filesystem event.
	if _, err := d.runner.Run(d.ctx, "startup"); err != nil {
		d.logger.Error("initial ingestion pass failed", logging.Error(err))
	}

	if err := d.watch.Start(d.ctx); err != nil {
		d.teardown()
		return fmt.Errorf("start watcher: %w", err)
	}
	if err := d.srv.Start(d.ctx); err != nil {
		d.watch.Stop()
		d.teardown()
		return fmt.Errorf("start server: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background services and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.watch.Stop()
	d.srv.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and releases held resources.
func (d *Daemon) Close() error {
	d.Stop()
	if d.ledger != nil {
		return d.ledger.Close()
	}
	return nil
}

// Running reports whether the daemon services are active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// ServerAddr returns the dashboard bind address once started.
func (d *Daemon) ServerAddr() string {
	if d.srv == nil {
		return ""
	}
	return d.srv.Addr()
}

func (d *Daemon) teardown() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.ctx = nil
	_ = d.lock.Unlock()
}
