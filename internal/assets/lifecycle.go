package assets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/logging"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/services"
)

// Delete removes every object under the asset's prefix without checking for
// dependents.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.backend.DeletePrefix(ctx, Prefix(id)); err != nil {
		return services.Wrap(services.ErrStorage, "assets", "delete", fmt.Sprintf("delete asset %s", id), err)
	}
	logging.WithContext(ctx, s.logger).Info("asset deleted", logging.String(logging.FieldAssetID, id))
	return nil
}

// DeleteSafe deletes the asset unless another asset's saved recipe still
// sources clips from it. force skips the reference check.
func (s *Service) DeleteSafe(ctx context.Context, id string, force bool) error {
	asset, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if asset == nil {
		return services.Wrap(services.ErrNotFound, "assets", "delete", fmt.Sprintf("asset %s not found", id), nil)
	}

	if !force {
		refs, err := s.References(ctx, id)
		if err != nil {
			return err
		}
		if len(refs) > 0 {
			return services.Wrap(services.ErrReferencedAsset, "assets", "delete",
				fmt.Sprintf("asset %s is referenced by %s", id, strings.Join(refs, ", ")), nil)
		}
	}
	return s.Delete(ctx, id)
}

// References returns the ids of assets whose saved recipes use id as a clip
// source. The scan reads every other asset's edits.json; catalog size is
// bounded by the storage quota, so the batch cost stays small.
func (s *Service) References(ctx context.Context, id string) ([]string, error) {
	ids, err := s.listAssetIDs(ctx)
	if err != nil {
		return nil, err
	}

	var dependents []string
	for _, owner := range ids {
		if owner == id {
			continue
		}
		rec, err := s.LoadRecipe(ctx, owner)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue
		}
		for _, clip := range rec.Clips {
			if strings.TrimSpace(clip.SourceAssetID) == id {
				dependents = append(dependents, owner)
				break
			}
		}
	}
	return dependents, nil
}

// CleanupExpired deletes unreferenced assets whose updatedAt is older than
// the configured TTL and reports how many were removed. A zero TTL disables
// the sweep.
func (s *Service) CleanupExpired(ctx context.Context) (int, error) {
	ttl := s.cfg.AssetTTL()
	if ttl <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-ttl)

	ids, err := s.listAssetIDs(ctx)
	if err != nil {
		return 0, err
	}
	referenced, err := s.referencedSet(ctx, ids)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range ids {
		if _, ok := referenced[id]; ok {
			continue
		}
		asset, err := s.Get(ctx, id)
		if err != nil {
			return removed, err
		}
		if asset == nil {
			// Objects without metadata are debris from an interrupted create;
			// Create already removes them best-effort.
			continue
		}
		if asset.UpdatedAt.After(cutoff) {
			continue
		}
		if err := s.Delete(ctx, id); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("expired assets removed", logging.Int("count", removed))
	}
	return removed, nil
}

// referencedSet collects every asset id that some other asset's recipe uses
// as a clip source.
func (s *Service) referencedSet(ctx context.Context, ids []string) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	for _, owner := range ids {
		rec, err := s.LoadRecipe(ctx, owner)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue
		}
		for _, clip := range rec.Clips {
			src := strings.TrimSpace(clip.SourceAssetID)
			if src != "" && src != owner {
				set[src] = struct{}{}
			}
		}
	}
	return set, nil
}

func (s *Service) listAssetIDs(ctx context.Context) ([]string, error) {
	objects, err := s.backend.List(ctx, rootPrefix)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "assets", "list", "list stored assets", err)
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, obj := range objects {
		id := assetIDFromKey(obj.Key)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// DiskUsage sums the sizes of every stored asset object.
func (s *Service) DiskUsage(ctx context.Context) (int64, error) {
	objects, err := s.backend.List(ctx, rootPrefix)
	if err != nil {
		return 0, services.Wrap(services.ErrStorage, "assets", "usage", "list stored assets", err)
	}
	var total int64
	for _, obj := range objects {
		total += obj.Size
	}
	return total, nil
}

// CheckQuota reports whether current usage is within the configured quota.
// The answer is advisory under concurrent writes, which is acceptable for a
// single-owner daemon. A zero or negative quota disables the check.
func (s *Service) CheckQuota(ctx context.Context) (bool, error) {
	quota := s.cfg.QuotaBytes()
	if quota <= 0 {
		return true, nil
	}
	usage, err := s.DiskUsage(ctx)
	if err != nil {
		return false, err
	}
	return usage < quota, nil
}
