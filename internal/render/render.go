package render

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/config"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/recipe"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/services"
)

var commandContext = exec.CommandContext

// Options selects the output encoding for a single render.
type Options struct {
	// Preview renders a fast stereo MP3 regardless of the recipe format.
	Preview bool
	// TwoPassNormalize measures loudness first and applies a linear loudnorm
	// correction on the encode pass.
	TwoPassNormalize bool
}

// Renderer executes ffmpeg renders using the loudness and encoding targets
// from configuration.
type Renderer struct {
	binary         string
	loudnessTarget float64
	loudnessPeak   float64
	loudnessRange  float64
	aacBitrate     string
	previewQuality int
}

// New builds a renderer from the render section of the configuration.
func New(cfg *config.Config) *Renderer {
	return &Renderer{
		binary:         cfg.FFmpegBinary(),
		loudnessTarget: cfg.Render.LoudnessTarget,
		loudnessPeak:   cfg.Render.LoudnessPeak,
		loudnessRange:  cfg.Render.LoudnessRange,
		aacBitrate:     cfg.Render.AACBitrate,
		previewQuality: cfg.Render.PreviewQuality,
	}
}

// Render assembles the recipe's clips into outputPath. assetPaths maps each
// referenced source asset ID to a readable audio file. The recipe is expected
// to have passed validation already. Failures report ErrRender carrying the
// tail of ffmpeg's stderr; cancellation reports ErrAborted instead.
func (r *Renderer) Render(ctx context.Context, rec recipe.Recipe, assetPaths map[string]string, outputPath string, opts Options) error {
	p, err := buildPlan(rec, assetPaths)
	if err != nil {
		return err
	}

	var correction string
	if opts.TwoPassNormalize {
		m, err := r.measure(ctx, p)
		if err != nil {
			return err
		}
		correction = r.correctionFilter(m)
	}

	args := []string{"-y", "-hide_banner", "-nostdin", "-loglevel", "error"}
	args = append(args, p.inputArgs()...)
	args = append(args, "-filter_complex", p.filter(correction), "-map", "[out]")
	args = append(args, r.encodeArgs(rec.Format, opts.Preview)...)
	args = append(args, outputPath)

	tail := newTailWriter(stderrTailLimit)
	cmd := commandContext(ctx, r.binary, args...) //nolint:gosec
	cmd.Stderr = tail
	if err := cmd.Run(); err != nil {
		return classify(ctx, "encode", tail, err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return services.Wrap(services.ErrRender, "render", "encode", "output file missing", err)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrRender, "render", "encode", "ffmpeg produced an empty output", nil)
	}
	return nil
}

// measure runs the first loudnorm pass over the filtergraph, discarding the
// audio and keeping only the printed stats.
func (r *Renderer) measure(ctx context.Context, p *plan) (*measurement, error) {
	// No -loglevel here: loudnorm prints its stats at info level.
	args := []string{"-y", "-hide_banner", "-nostdin"}
	args = append(args, p.inputArgs()...)
	args = append(args, "-filter_complex", p.filter(r.measureFilter()), "-map", "[out]", "-f", "null", "-")

	tail := newTailWriter(stderrTailLimit)
	cmd := commandContext(ctx, r.binary, args...) //nolint:gosec
	cmd.Stderr = tail
	if err := cmd.Run(); err != nil {
		return nil, classify(ctx, "measure", tail, err)
	}
	return parseMeasurement(tail.String())
}

// encodeArgs selects the codec flags for the requested output.
func (r *Renderer) encodeArgs(format recipe.Format, preview bool) []string {
	if preview {
		return []string{"-codec:a", "libmp3lame", "-q:a", strconv.Itoa(r.previewQuality)}
	}
	switch format {
	case recipe.FormatWAV:
		return []string{"-codec:a", "pcm_s16le"}
	case recipe.FormatAAC:
		return []string{"-codec:a", "aac", "-b:a", r.aacBitrate}
	default:
		return []string{"-codec:a", "libmp3lame", "-q:a", "0"}
	}
}

// classify separates cooperative cancellation from genuine render failures.
func classify(ctx context.Context, operation string, tail *tailWriter, err error) error {
	if ctx.Err() != nil {
		return services.Wrap(services.ErrAborted, "render", operation, "render aborted", ctx.Err())
	}
	detail := strings.TrimSpace(tail.String())
	if detail == "" {
		detail = err.Error()
	}
	return services.Wrap(services.ErrRender, "render", operation, fmt.Sprintf("ffmpeg failed: %s", detail), err)
}
