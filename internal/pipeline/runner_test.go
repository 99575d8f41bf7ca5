package pipeline_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/assets"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/config"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/ingest"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/jobs"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/logging"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/pipeline"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/recipe"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/storage"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/testsupport"
)

const renderedProbeJSON = `{
  "streams": [
    {"index": 0, "codec_type": "audio", "codec_name": "mp3", "sample_rate": "48000", "channels": 2, "duration": "6.5", "bit_rate": "160000"}
  ],
  "format": {"format_name": "mp3", "duration": "6.5", "size": "104000", "bit_rate": "160000"}
}`

// renderStubScript covers every role ffmpeg plays for the handlers: PCM
// decode to stdout when the output argument is "-", an encoded file
// otherwise.
const renderStubScript = `
for last; do :; done
if [ "$last" = "-" ]; then
  head -c 16000 /dev/zero
else
  printf 'rendered audio' > "$last"
fi
`

// slowRenderStubScript blocks until killed, standing in for a long render.
const slowRenderStubScript = "exec sleep 30\n"

type stubNotifier struct {
	jobCompletes    []string
	jobFailures     []string
	ingestCompletes []string
}

func (s *stubNotifier) NotifyJobCompleted(_ context.Context, jobType, _ string) error {
	s.jobCompletes = append(s.jobCompletes, jobType)
	return nil
}

func (s *stubNotifier) NotifyJobFailed(_ context.Context, jobType, _, _ string) error {
	s.jobFailures = append(s.jobFailures, jobType)
	return nil
}

func (s *stubNotifier) NotifyIngestCompleted(_ context.Context, assetID string, _ float64) error {
	s.ingestCompletes = append(s.ingestCompletes, assetID)
	return nil
}

func (s *stubNotifier) NotifyCleanup(context.Context, int) error { return nil }
func (s *stubNotifier) TestNotification(context.Context) error   { return nil }

type runnerEnv struct {
	cfg      *config.Config
	store    *jobs.Store
	backend  storage.Backend
	assets   *assets.Service
	ingest   *ingest.Service
	notifier *stubNotifier
	runner   *pipeline.Runner
}

// newRunnerEnv wires a runner against stub binaries. The stubs must be in
// place before construction because the renderer snapshots its binary path.
func newRunnerEnv(t *testing.T, ffmpegScript, probeJSON string) *runnerEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Render.FFmpeg = writeToolStub(t, "ffmpeg", ffmpegScript)
	cfg.Render.FFprobe = writeToolStub(t, "ffprobe", "cat <<'EOF'\n"+probeJSON+"\nEOF\n")

	store := testsupport.MustOpenStore(t, cfg)
	backend := testsupport.NewBackend(t, cfg)
	assetSvc := assets.NewService(cfg, backend, logging.NewNop())
	ingestSvc := ingest.NewService(cfg, assetSvc, logging.NewNop())
	notifier := &stubNotifier{}
	runner := pipeline.NewRunner(cfg, store, backend, assetSvc, ingestSvc, notifier, logging.NewNop())
	return &runnerEnv{
		cfg:      cfg,
		store:    store,
		backend:  backend,
		assets:   assetSvc,
		ingest:   ingestSvc,
		notifier: notifier,
		runner:   runner,
	}
}

func writeToolStub(t *testing.T, name, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write %s stub: %v", name, err)
	}
	return path
}

func seedAsset(t *testing.T, svc *assets.Service) *assets.Asset {
	t.Helper()
	dir := t.TempDir()
	original := filepath.Join(dir, "original.mp3")
	prepared := filepath.Join(dir, "prepared.m4a")
	testsupport.WriteFile(t, original, 2048)
	testsupport.WriteFile(t, prepared, 1024)

	asset, err := svc.Create(context.Background(), assets.CreateInput{
		OriginalPath: original,
		OriginalExt:  "mp3",
		PreparedPath: prepared,
		PreparedExt:  "m4a",
		Audio:        assets.AudioInfo{Duration: 30, Format: "mp4", SampleRate: 44100, Channels: 2},
		Provenance:   assets.Provenance{SourceType: assets.SourceAudioFile, OriginalFilename: "take.mp3"},
	})
	if err != nil {
		t.Fatalf("seed asset: %v", err)
	}
	return asset
}

func previewRecipe(assetID string) recipe.Recipe {
	return recipe.Recipe{
		AssetID: assetID,
		Clips: []recipe.Clip{
			{SourceAssetID: assetID, StartTime: 0, EndTime: 4},
			{SourceAssetID: assetID, StartTime: 10, EndTime: 12.5},
		},
		Format: recipe.FormatMP3,
	}
}

func waitForTerminal(t *testing.T, store *jobs.Store, id string) *jobs.Job {
	t.Helper()
	deadline := time.After(15 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("job %s never reached a terminal status", id)
		default:
		}
		job, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID returned error: %v", err)
		}
		if job != nil && job.Done() {
			return job
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func waitForStage(t *testing.T, store *jobs.Store, id, stage string) {
	t.Helper()
	deadline := time.After(15 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("job %s never reached stage %s", id, stage)
		default:
		}
		job, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID returned error: %v", err)
		}
		if job != nil && job.Stage == stage {
			return
		}
		if job != nil && job.Done() {
			t.Fatalf("job %s finished as %s before stage %s", id, job.Status, stage)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func drainRunner(t *testing.T, runner *pipeline.Runner) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := runner.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
}

func TestSubmitRunsIngestJobToCompletion(t *testing.T) {
	env := newRunnerEnv(t, renderStubScript, renderedProbeJSON)

	ctx := context.Background()
	spooled, _, err := env.ingest.SpoolUpload(ctx, strings.NewReader(strings.Repeat("mp3data", 512)), "take.mp3")
	if err != nil {
		t.Fatalf("SpoolUpload returned error: %v", err)
	}
	req := ingest.Request{SourceType: assets.SourceAudioFile, Filename: "take.mp3", UploadPath: spooled}

	job, err := env.store.Create(ctx, jobs.TypeIngest, "", req)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	env.runner.Submit(job)

	final := waitForTerminal(t, env.store, job.ID)
	drainRunner(t, env.runner)

	if final.Status != jobs.StatusComplete {
		t.Fatalf("expected complete, got %s (%s: %s)", final.Status, final.ErrorCode, final.ErrorMessage)
	}
	if final.Progress != 100 {
		t.Fatalf("expected progress 100, got %v", final.Progress)
	}

	var result ingest.Result
	if err := json.Unmarshal([]byte(final.ResultJSON), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.AssetID == "" {
		t.Fatal("expected result to carry an asset id")
	}
	if final.AssetID != result.AssetID {
		t.Fatalf("expected job row patched with asset id %s, got %q", result.AssetID, final.AssetID)
	}

	asset, err := env.assets.Get(ctx, result.AssetID)
	if err != nil || asset == nil {
		t.Fatalf("expected ingested asset (asset=%+v err=%v)", asset, err)
	}

	if len(env.notifier.ingestCompletes) != 1 || env.notifier.ingestCompletes[0] != result.AssetID {
		t.Fatalf("expected one ingest notification for %s, got %v", result.AssetID, env.notifier.ingestCompletes)
	}
	if len(env.notifier.jobCompletes) != 0 {
		t.Fatalf("ingest success should use the ingest notification, got %v", env.notifier.jobCompletes)
	}
}

func TestSubmitRunsPreviewJobToCompletion(t *testing.T) {
	env := newRunnerEnv(t, renderStubScript, renderedProbeJSON)
	asset := seedAsset(t, env.assets)
	rec := previewRecipe(asset.AssetID)
	hash, err := recipe.Hash(rec)
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	ctx := context.Background()
	job, err := env.store.Create(ctx, jobs.TypePreview, asset.AssetID, rec)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	env.runner.Submit(job)

	final := waitForTerminal(t, env.store, job.ID)
	drainRunner(t, env.runner)

	if final.Status != jobs.StatusComplete {
		t.Fatalf("expected complete, got %s (%s: %s)", final.Status, final.ErrorCode, final.ErrorMessage)
	}

	var result pipeline.PreviewResult
	if err := json.Unmarshal([]byte(final.ResultJSON), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	wantKey := assets.PreviewKey(asset.AssetID, hash)
	if result.PreviewKey != wantKey {
		t.Fatalf("expected preview key %s, got %s", wantKey, result.PreviewKey)
	}
	if result.Cached {
		t.Fatal("a rendered preview must not report cached")
	}

	info, err := env.backend.Stat(ctx, wantKey)
	if err != nil {
		t.Fatalf("expected stored preview object: %v", err)
	}
	if info.Size == 0 {
		t.Fatal("stored preview is empty")
	}

	if len(env.notifier.jobCompletes) != 1 || env.notifier.jobCompletes[0] != "preview" {
		t.Fatalf("expected one preview completion notification, got %v", env.notifier.jobCompletes)
	}
	assertNoWorkDirsLeft(t, env.cfg)
}

func TestSubmitRunsSaveJobToCompletion(t *testing.T) {
	env := newRunnerEnv(t, renderStubScript, renderedProbeJSON)
	asset := seedAsset(t, env.assets)
	rec := previewRecipe(asset.AssetID)

	ctx := context.Background()
	job, err := env.store.Create(ctx, jobs.TypeSave, asset.AssetID, rec)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	env.runner.Submit(job)

	final := waitForTerminal(t, env.store, job.ID)
	drainRunner(t, env.runner)

	if final.Status != jobs.StatusComplete {
		t.Fatalf("expected complete, got %s (%s: %s)", final.Status, final.ErrorCode, final.ErrorMessage)
	}

	var result pipeline.SaveResult
	if err := json.Unmarshal([]byte(final.ResultJSON), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.AssetID != asset.AssetID || result.Format != "mp3" {
		t.Fatalf("unexpected save result: %+v", result)
	}

	objects, err := env.assets.Objects(ctx, asset.AssetID)
	if err != nil {
		t.Fatalf("Objects returned error: %v", err)
	}
	names := make(map[string]bool, len(objects))
	for _, obj := range objects {
		names[filepath.Base(obj.Key)] = true
	}
	for _, want := range []string{"prepared.mp3", "edits.json", "peaks.json", "metadata.json"} {
		if !names[want] {
			t.Fatalf("expected object %s after save, have %v", want, names)
		}
	}
	if names["prepared.m4a"] {
		t.Fatal("stale prepared object survived the save")
	}

	updated, err := env.assets.Get(ctx, asset.AssetID)
	if err != nil || updated == nil {
		t.Fatalf("expected saved asset (asset=%+v err=%v)", updated, err)
	}
	if updated.Audio.Duration != 6.5 || updated.Audio.SampleRate != 48000 || updated.Audio.BitRate != 160000 {
		t.Fatalf("expected audio info refreshed from the rendered file, got %+v", updated.Audio)
	}

	saved, err := env.assets.LoadRecipe(ctx, asset.AssetID)
	if err != nil {
		t.Fatalf("LoadRecipe returned error: %v", err)
	}
	if saved == nil || len(saved.Clips) != len(rec.Clips) || saved.Format != rec.Format {
		t.Fatalf("unexpected saved recipe: %+v", saved)
	}
	assertNoWorkDirsLeft(t, env.cfg)
}

func TestPreviewFailsOnInvalidRecipe(t *testing.T) {
	env := newRunnerEnv(t, renderStubScript, renderedProbeJSON)
	asset := seedAsset(t, env.assets)
	rec := previewRecipe(asset.AssetID)
	rec.Clips[1].EndTime = 99 // beyond the 30s source

	ctx := context.Background()
	job, err := env.store.Create(ctx, jobs.TypePreview, asset.AssetID, rec)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	env.runner.Submit(job)

	final := waitForTerminal(t, env.store, job.ID)
	drainRunner(t, env.runner)

	if final.Status != jobs.StatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if final.ErrorCode != "validation" {
		t.Fatalf("expected validation error code, got %q", final.ErrorCode)
	}
	if !strings.Contains(final.ErrorMessage, "exceeds source duration") {
		t.Fatalf("expected bounds detail in message, got %q", final.ErrorMessage)
	}
	if strings.Contains(final.ErrorMessage, "validation:") {
		t.Fatalf("expected the marker stripped from the message, got %q", final.ErrorMessage)
	}
	if len(env.notifier.jobFailures) != 1 {
		t.Fatalf("expected one failure notification, got %v", env.notifier.jobFailures)
	}
}

func TestPreviewFailsWhenSourceAssetMissing(t *testing.T) {
	env := newRunnerEnv(t, renderStubScript, renderedProbeJSON)
	rec := previewRecipe("ghost-asset")

	ctx := context.Background()
	job, err := env.store.Create(ctx, jobs.TypePreview, rec.AssetID, rec)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	env.runner.Submit(job)

	final := waitForTerminal(t, env.store, job.ID)
	drainRunner(t, env.runner)

	if final.Status != jobs.StatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if final.ErrorCode != "not_found" {
		t.Fatalf("expected not_found error code, got %q", final.ErrorCode)
	}
}

func TestCancelDuringRenderLeavesCancelledStatus(t *testing.T) {
	env := newRunnerEnv(t, slowRenderStubScript, renderedProbeJSON)
	asset := seedAsset(t, env.assets)

	ctx := context.Background()
	job, err := env.store.Create(ctx, jobs.TypePreview, asset.AssetID, previewRecipe(asset.AssetID))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	env.runner.Submit(job)

	waitForStage(t, env.store, job.ID, pipeline.StageRender)
	if _, err := env.store.Cancel(ctx, job.ID); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}

	final := waitForTerminal(t, env.store, job.ID)
	drainRunner(t, env.runner)

	if final.Status != jobs.StatusCancelled {
		t.Fatalf("expected cancelled, got %s (%s: %s)", final.Status, final.ErrorCode, final.ErrorMessage)
	}
	if len(env.notifier.jobFailures) != 0 {
		t.Fatalf("a cancelled job must not notify failure, got %v", env.notifier.jobFailures)
	}
}

func TestSubmitLeavesRenderJobsPending(t *testing.T) {
	env := newRunnerEnv(t, renderStubScript, renderedProbeJSON)

	ctx := context.Background()
	job, err := env.store.Create(ctx, jobs.TypeRender, "", nil)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	env.runner.Submit(job)

	if env.runner.Active() != 0 {
		t.Fatalf("render submission must not occupy the runner, active=%d", env.runner.Active())
	}
	current, err := env.store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if current.Status != jobs.StatusPending {
		t.Fatalf("expected render job left pending, got %s", current.Status)
	}
}

func TestShutdownWaitsForInFlightJobs(t *testing.T) {
	env := newRunnerEnv(t, slowRenderStubScript, renderedProbeJSON)
	asset := seedAsset(t, env.assets)

	ctx := context.Background()
	job, err := env.store.Create(ctx, jobs.TypePreview, asset.AssetID, previewRecipe(asset.AssetID))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	env.runner.Submit(job)
	waitForStage(t, env.store, job.ID, pipeline.StageRender)

	shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := env.runner.Shutdown(shortCtx); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline error while a render is in flight, got %v", err)
	}

	if _, err := env.store.Cancel(ctx, job.ID); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	waitForTerminal(t, env.store, job.ID)
	drainRunner(t, env.runner)
}

func TestSubmitSkipsJobCancelledBeforeStart(t *testing.T) {
	env := newRunnerEnv(t, renderStubScript, renderedProbeJSON)

	ctx := context.Background()
	job, err := env.store.Create(ctx, jobs.TypeIngest, "", ingest.Request{SourceType: assets.SourceAudioFile})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := env.store.Cancel(ctx, job.ID); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}

	// The submitted snapshot still says pending; the released signal tells
	// the goroutine the row is already terminal.
	env.runner.Submit(job)
	drainRunner(t, env.runner)

	final, err := env.store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if final.Status != jobs.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", final.Status)
	}
	if final.StartedAt != nil {
		t.Fatal("a job cancelled before start must not record a start time")
	}
}

func assertNoWorkDirsLeft(t *testing.T, cfg *config.Config) {
	t.Helper()
	entries, err := os.ReadDir(cfg.Paths.StagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		t.Fatalf("read staging dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "preview-") || strings.HasPrefix(entry.Name(), "save-") {
			t.Fatalf("expected staging cleaned, found %s", entry.Name())
		}
	}
}
