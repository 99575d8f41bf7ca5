package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/assets"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/jobs"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/recipe"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/render"
)

// PreviewResult is the job result of a preview render. Cached is true when
// submission found the preview already stored and no render ran.
type PreviewResult struct {
	PreviewKey string `json:"previewKey"`
	Cached     bool   `json:"cached"`
}

// runPreview renders a fast MP3 of the recipe and stores it under the
// deterministic cache key. Identical recipes racing each other both render,
// but they write the same bytes to the same key, so the result is never
// corrupt.
func (r *Runner) runPreview(ctx context.Context, job *jobs.Job) (any, error) {
	rec, err := decodeRecipe(job.MetadataJSON)
	if err != nil {
		return nil, err
	}
	hash, err := recipe.Hash(*rec)
	if err != nil {
		return nil, err
	}

	durations, err := r.sourceDurations(ctx, rec)
	if err != nil {
		return nil, err
	}
	if err := recipe.Validate(*rec, durations); err != nil {
		return nil, err
	}

	r.reportProgress(ctx, job.ID, StageResolve, 10)
	paths, cleanup, err := r.resolveSources(ctx, rec)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	r.reportProgress(ctx, job.ID, StageRender, 30)
	tempDir, err := r.workDir("preview-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tempDir)

	outPath := filepath.Join(tempDir, recipe.PreviewObjectName(hash))
	if err := r.renderer.Render(ctx, *rec, paths, outPath, render.Options{Preview: true}); err != nil {
		return nil, err
	}

	r.reportProgress(ctx, job.ID, StageStore, 80)
	key := assets.PreviewKey(rec.AssetID, hash)
	if err := r.putFile(ctx, key, outPath, "audio/mpeg"); err != nil {
		return nil, err
	}
	return &PreviewResult{PreviewKey: key, Cached: false}, nil
}
