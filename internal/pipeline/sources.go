package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/recipe"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/services"
)

// decodeRecipe parses the recipe a render-type job carries as its metadata.
func decodeRecipe(metadataJSON string) (*recipe.Recipe, error) {
	var rec recipe.Recipe
	if err := json.Unmarshal([]byte(metadataJSON), &rec); err != nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "recipe", "decode recipe", err)
	}
	return &rec, nil
}

// sourceDurations loads the live duration of every source asset the recipe
// references, for bounds validation.
func (r *Runner) sourceDurations(ctx context.Context, rec *recipe.Recipe) (map[string]float64, error) {
	ids := rec.SourceAssetIDs()
	durations := make(map[string]float64, len(ids))
	for _, id := range ids {
		asset, err := r.assets.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if asset == nil {
			return nil, services.Wrap(services.ErrNotFound, "pipeline", "render",
				fmt.Sprintf("source asset %s not found", id), nil)
		}
		durations[id] = asset.Audio.Duration
	}
	return durations, nil
}

// resolveSources materializes a local path for every source asset. The
// returned cleanup removes any staged copies and is safe to call once the
// render no longer reads them.
func (r *Runner) resolveSources(ctx context.Context, rec *recipe.Recipe) (map[string]string, func(), error) {
	ids := rec.SourceAssetIDs()
	paths := make(map[string]string, len(ids))
	cleanups := make([]func(), 0, len(ids))
	cleanup := func() {
		for _, fn := range cleanups {
			fn()
		}
	}
	for _, id := range ids {
		path, fn, err := r.assets.ResolveAssetPath(ctx, id)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, fn)
		paths[id] = path
	}
	return paths, cleanup, nil
}
