package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/assets"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/jobs"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/media/ffprobe"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/recipe"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/render"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/services"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/waveform"
)

// SaveResult is the job result of a completed save.
type SaveResult struct {
	AssetID string `json:"assetId"`
	Format  string `json:"format"`
}

// runSave renders the recipe at final fidelity and commits it: the rendered
// file becomes the asset's prepared audio, the recipe its edits.json, and
// the waveform peaks are regenerated from the new audio. The asset is not
// touched until the render and its probe have succeeded.
func (r *Runner) runSave(ctx context.Context, job *jobs.Job) (any, error) {
	rec, err := decodeRecipe(job.MetadataJSON)
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

	r.reportProgress(ctx, job.ID, StageRender, 25)
	tempDir, err := r.workDir("save-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tempDir)

	ext := rec.Format.Extension()
	outPath := filepath.Join(tempDir, "final."+ext)
	opts := render.Options{TwoPassNormalize: rec.Normalize}
	if err := r.renderer.Render(ctx, *rec, paths, outPath, opts); err != nil {
		return nil, err
	}

	// The saved audio replaces the prepared object future recipes clip
	// from, so its metadata must reflect the rendered file, not the
	// ingested one.
	probe, err := ffprobe.Inspect(ctx, r.cfg.FFprobeBinary(), outPath)
	if err != nil {
		if ctx.Err() != nil {
			return nil, services.Wrap(services.ErrAborted, "pipeline", "save", "probe aborted", ctx.Err())
		}
		return nil, services.Wrap(services.ErrRender, "pipeline", "save", "probe rendered output", err)
	}
	stream, ok := probe.PrimaryAudio()
	if !ok {
		return nil, services.Wrap(services.ErrRender, "pipeline", "save", "rendered output has no audio stream", nil)
	}

	r.reportProgress(ctx, job.ID, StageStore, 70)
	if err := r.assets.ReplacePrepared(ctx, rec.AssetID, outPath, ext); err != nil {
		return nil, err
	}
	info := assets.AudioInfo{
		Duration:   probe.DurationSeconds(),
		Format:     probe.ContainerFormat(),
		SampleRate: probe.SampleRateHz(),
		Channels:   stream.Channels,
		BitRate:    probe.BitRate(),
	}
	if _, err := r.assets.UpdateMetadata(ctx, rec.AssetID, assets.MetadataPatch{Audio: &info}); err != nil {
		return nil, err
	}
	if err := r.assets.SaveRecipe(ctx, rec.AssetID, *rec); err != nil {
		return nil, err
	}

	r.reportProgress(ctx, job.ID, StageWaveform, 85)
	peaks, err := waveform.Extract(ctx, r.cfg.FFmpegBinary(), outPath, waveform.DefaultResolutions)
	if err != nil {
		return nil, err
	}
	if err := r.assets.WritePeaks(ctx, rec.AssetID, peaks); err != nil {
		return nil, err
	}

	return &SaveResult{AssetID: rec.AssetID, Format: string(rec.Format)}, nil
}
