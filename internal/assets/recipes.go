package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/recipe"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/services"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/storage"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/waveform"
)

// SaveRecipe persists the recipe as the asset's edits.json in canonical form.
func (s *Service) SaveRecipe(ctx context.Context, id string, rec recipe.Recipe) error {
	payload, err := recipe.CanonicalJSON(rec)
	if err != nil {
		return services.Wrap(services.ErrStorage, "assets", "recipe", "encode recipe", err)
	}
	if err := s.backend.Put(ctx, EditsKey(id), bytes.NewReader(payload), int64(len(payload)), "application/json"); err != nil {
		return services.Wrap(services.ErrStorage, "assets", "recipe", "write edits.json", err)
	}
	return nil
}

// LoadRecipe reads the asset's saved recipe. (nil, nil) when none was saved.
func (s *Service) LoadRecipe(ctx context.Context, id string) (*recipe.Recipe, error) {
	rc, err := s.backend.Get(ctx, EditsKey(id))
	if err != nil {
		if storage.IsNotExist(err) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrStorage, "assets", "recipe", "read edits.json", err)
	}
	defer rc.Close()

	var rec recipe.Recipe
	if err := json.NewDecoder(rc).Decode(&rec); err != nil {
		return nil, services.Wrap(services.ErrStorage, "assets", "recipe", fmt.Sprintf("decode edits.json for asset %s", id), err)
	}
	return &rec, nil
}

// ReplacePrepared swaps the render-ready audio for the asset and bumps
// updatedAt. The new object is written before stale prepared objects are
// removed so a crash always leaves at least one prepared file behind.
func (s *Service) ReplacePrepared(ctx context.Context, id, srcPath, ext string) error {
	asset, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if asset == nil {
		return services.Wrap(services.ErrNotFound, "assets", "replace", fmt.Sprintf("asset %s not found", id), nil)
	}

	newKey := PreparedKey(id, ext)
	if err := s.putFile(ctx, newKey, srcPath); err != nil {
		return services.Wrap(services.ErrStorage, "assets", "replace", "store prepared audio", err)
	}

	objects, err := s.Objects(ctx, id)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		if obj.Key == newKey || !strings.HasPrefix(path.Base(obj.Key), "prepared.") {
			continue
		}
		if err := s.backend.Delete(ctx, obj.Key); err != nil {
			return services.Wrap(services.ErrStorage, "assets", "replace", fmt.Sprintf("remove stale %s", obj.Key), err)
		}
	}

	asset.UpdatedAt = time.Now().UTC()
	return s.writeMetadata(ctx, asset)
}

// WritePeaks stores the waveform peaks document for the asset.
func (s *Service) WritePeaks(ctx context.Context, id string, peaks *waveform.Peaks) error {
	payload, err := json.Marshal(peaks)
	if err != nil {
		return services.Wrap(services.ErrStorage, "assets", "peaks", "encode waveform peaks", err)
	}
	if err := s.backend.Put(ctx, PeaksKey(id), bytes.NewReader(payload), int64(len(payload)), "application/json"); err != nil {
		return services.Wrap(services.ErrStorage, "assets", "peaks", "write peaks.json", err)
	}
	return nil
}
