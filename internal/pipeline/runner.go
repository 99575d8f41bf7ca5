package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/assets"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/config"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/ingest"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/jobs"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/logging"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/notify"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/render"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/services"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/storage"
)

// Stage names reported while render-type jobs run. Ingestion stages come
// from the ingest package.
const (
	StageResolve  = "resolve"
	StageRender   = "render"
	StageStore    = "store"
	StageWaveform = "waveform"
)

// Runner executes submitted jobs on per-job goroutines.
type Runner struct {
	cfg      *config.Config
	store    *jobs.Store
	backend  storage.Backend
	assets   *assets.Service
	ingest   *ingest.Service
	renderer *render.Renderer
	notifier notify.Service
	logger   *slog.Logger

	wg     sync.WaitGroup
	active atomic.Int64
}

// NewRunner wires a runner against the job store and the services its
// handlers need. A nil notifier falls back to the configured one.
func NewRunner(
	cfg *config.Config,
	store *jobs.Store,
	backend storage.Backend,
	assetSvc *assets.Service,
	ingestSvc *ingest.Service,
	notifier notify.Service,
	logger *slog.Logger,
) *Runner {
	if notifier == nil {
		notifier = notify.NewService(cfg)
	}
	return &Runner{
		cfg:      cfg,
		store:    store,
		backend:  backend,
		assets:   assetSvc,
		ingest:   ingestSvc,
		renderer: render.New(cfg),
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Submit launches the job's handler on a fresh goroutine. Render jobs stay
// pending for the external worker; everything terminal is ignored.
func (r *Runner) Submit(job *jobs.Job) {
	if job == nil || job.Done() {
		return
	}
	if job.Type == jobs.TypeRender {
		r.logger.Debug("render job left for external worker",
			logging.String(logging.FieldJobID, job.ID))
		return
	}

	r.wg.Add(1)
	r.active.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.active.Add(-1)
		r.run(job)
	}()
}

// Active returns the number of jobs currently executing in-process.
func (r *Runner) Active() int {
	return int(r.active.Load())
}

// Shutdown waits for in-flight job goroutines to drain, returning the
// context's error when the deadline passes first. Jobs still running keep
// their own cancellation signals; closing the job store fires them all, so
// stragglers abort shortly after and the startup recovery sweep repairs
// their rows.
func (r *Runner) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) run(job *jobs.Job) {
	ctx := r.store.Signal(job.ID)
	if ctx == nil {
		// The signal was released before this goroutine observed it, so a
		// terminal row already tells the story.
		return
	}
	ctx = services.WithJobID(ctx, job.ID)
	if job.AssetID != "" {
		ctx = services.WithAssetID(ctx, job.AssetID)
	}
	logger := logging.WithContext(ctx, r.logger).With(
		logging.String(logging.FieldJobType, string(job.Type)),
	)

	started, err := r.store.Start(ctx, job.ID)
	if err != nil {
		// Cancelled while queued, or picked up twice.
		logger.Debug("job did not start", logging.Error(err))
		return
	}

	logger.Info("job started")
	begin := time.Now()
	result, execErr := r.execute(ctx, started)
	if execErr != nil {
		r.finishFailure(ctx, logger, started, execErr)
		return
	}
	r.finishSuccess(ctx, logger, started, result, time.Since(begin))
}

func (r *Runner) execute(ctx context.Context, job *jobs.Job) (any, error) {
	switch job.Type {
	case jobs.TypeIngest:
		return r.runIngest(ctx, job)
	case jobs.TypePreview:
		return r.runPreview(ctx, job)
	case jobs.TypeSave:
		return r.runSave(ctx, job)
	default:
		return nil, services.Wrap(services.ErrValidation, "pipeline", "execute",
			fmt.Sprintf("no handler for job type %q", job.Type), nil)
	}
}

func (r *Runner) finishFailure(ctx context.Context, logger *slog.Logger, job *jobs.Job, execErr error) {
	if services.IsAbort(execErr) {
		// Cancel persisted the terminal row before firing the signal; the
		// abort is an outcome, not a failure.
		logger.Info("job aborted")
		return
	}

	code := services.Code(execErr)
	message := services.Message(execErr)
	logger.Error("job failed",
		logging.String("error_code", code),
		logging.Error(execErr),
	)

	finishCtx := context.WithoutCancel(ctx)
	if _, err := r.store.Fail(finishCtx, job.ID, code, message); err != nil {
		logger.Error("failed to persist job failure", logging.Error(err))
		return
	}
	if err := r.notifier.NotifyJobFailed(finishCtx, string(job.Type), job.ID, message); err != nil {
		logger.Warn("failure notification not delivered", logging.Error(err))
	}
}

func (r *Runner) finishSuccess(ctx context.Context, logger *slog.Logger, job *jobs.Job, result any, runtime time.Duration) {
	finishCtx := context.WithoutCancel(ctx)
	updated, err := r.store.Complete(finishCtx, job.ID, result)
	if err != nil {
		logger.Error("failed to persist job completion", logging.Error(err))
		return
	}
	if updated.Status != jobs.StatusComplete {
		// A cancellation landed between the handler finishing and the
		// terminal write; the cancelled row stands.
		logger.Info("job finished after cancellation",
			logging.String("status", string(updated.Status)))
		return
	}

	logger.Info("job completed", logging.Duration("job_runtime", runtime))
	r.notifySuccess(finishCtx, logger, job, result)
}

func (r *Runner) notifySuccess(ctx context.Context, logger *slog.Logger, job *jobs.Job, result any) {
	var err error
	if res, ok := result.(*ingest.Result); ok {
		err = r.notifier.NotifyIngestCompleted(ctx, res.AssetID, res.Duration)
	} else {
		err = r.notifier.NotifyJobCompleted(ctx, string(job.Type), job.ID)
	}
	if err != nil {
		logger.Warn("completion notification not delivered", logging.Error(err))
	}
}

// reportProgress persists a stage label and progress value. The store drops
// patches racing a terminal transition, so a late report cannot resurrect a
// cancelled job.
func (r *Runner) reportProgress(ctx context.Context, jobID, stage string, percent float64) {
	patch := jobs.Patch{Progress: &percent, Stage: &stage}
	if _, err := r.store.Update(ctx, jobID, patch); err != nil && ctx.Err() == nil {
		r.logger.Debug("progress update dropped",
			logging.String(logging.FieldJobID, jobID),
			logging.Error(err),
		)
	}
}

// workDir creates a fresh temp directory for one render under staging.
func (r *Runner) workDir(pattern string) (string, error) {
	if err := os.MkdirAll(r.cfg.Paths.StagingDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrStorage, "pipeline", "workdir", "create staging dir", err)
	}
	dir, err := os.MkdirTemp(r.cfg.Paths.StagingDir, pattern)
	if err != nil {
		return "", services.Wrap(services.ErrStorage, "pipeline", "workdir", "create work dir", err)
	}
	return dir, nil
}

// putFile streams a rendered file into the storage backend.
func (r *Runner) putFile(ctx context.Context, key, srcPath, contentType string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return services.Wrap(services.ErrStorage, "pipeline", "store", "open rendered output", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return services.Wrap(services.ErrStorage, "pipeline", "store", "stat rendered output", err)
	}
	if err := r.backend.Put(ctx, key, f, info.Size(), contentType); err != nil {
		return services.Wrap(services.ErrStorage, "pipeline", "store", fmt.Sprintf("store %s", key), err)
	}
	return nil
}
