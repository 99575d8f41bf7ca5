package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/api"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/assets"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/config"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/deps"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/ingest"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/jobs"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/logging"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/notify"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/pipeline"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/storage"
)

// shutdownGrace bounds how long Stop waits for in-flight jobs to settle.
const shutdownGrace = 30 * time.Second

// Daemon owns the background services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *jobs.Store
	backend  storage.Backend
	assets   *assets.Service
	ingest   *ingest.Service
	notifier notify.Service
	runner   *pipeline.Runner
	api      *api.Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	sweep   sync.WaitGroup
}

// New constructs a daemon with initialized dependencies. The job store is
// opened by the caller so it can be shared with maintenance commands.
func New(cfg *config.Config, store *jobs.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, and logger")
	}

	backend, err := storage.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init storage backend: %w", err)
	}
	assetSvc := assets.NewService(cfg, backend, logger)
	ingestSvc := ingest.NewService(cfg, assetSvc, logger)
	notifier := notify.NewService(cfg)
	runner := pipeline.NewRunner(cfg, store, backend, assetSvc, ingestSvc, notifier, logger)
	apiServer, err := api.New(cfg, store, backend, assetSvc, ingestSvc, runner, logger)
	if err != nil {
		return nil, fmt.Errorf("init api server: %w", err)
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		backend:  backend,
		assets:   assetSvc,
		ingest:   ingestSvc,
		notifier: notifier,
		runner:   runner,
		api:      apiServer,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, sweeps jobs orphaned by a previous process,
// and brings up the API server and the asset cleanup loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another studio daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	fail := func(err error) error {
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	if missing := deps.MissingRequired(deps.CheckBinaries(deps.Requirements(d.cfg))); len(missing) > 0 {
		d.logger.Warn("required tools unavailable",
			logging.String("tools", strings.Join(missing, ", ")))
	}

	recovered, err := d.store.RecoverOrphaned(runCtx)
	if err != nil {
		return fail(fmt.Errorf("recover orphaned jobs: %w", err))
	}
	if recovered > 0 {
		d.logger.Info("failed jobs orphaned by previous run", logging.Int64("count", recovered))
	}

	if err := d.api.Start(runCtx); err != nil {
		return fail(fmt.Errorf("start api server: %w", err))
	}

	if interval := d.cfg.CleanupInterval(); interval > 0 {
		d.sweep.Add(1)
		go d.cleanupLoop(runCtx, interval)
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("studio daemon started",
		logging.String("addr", d.api.Addr()),
		logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts down the API server, waits for in-flight jobs, and releases the
// daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := d.runner.Shutdown(shutdownCtx); err != nil {
		d.logger.Warn("jobs still running at shutdown", logging.Error(err))
	}
	d.sweep.Wait()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("studio daemon stopped")
}

// Close stops the daemon and closes the job store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Addr returns the API listener address once Start has succeeded.
func (d *Daemon) Addr() string {
	return d.api.Addr()
}

// Running reports whether Start has completed and Stop has not.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

func (d *Daemon) cleanupLoop(ctx context.Context, interval time.Duration) {
	defer d.sweep.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := d.assets.CleanupExpired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				d.logger.Warn("asset cleanup sweep failed", logging.Error(err))
				continue
			}
			if removed > 0 {
				d.logger.Info("expired assets removed", logging.Int("count", removed))
				if err := d.notifier.NotifyCleanup(ctx, removed); err != nil {
					d.logger.Warn("cleanup notification failed", logging.Error(err))
				}
			}
		}
	}
}
