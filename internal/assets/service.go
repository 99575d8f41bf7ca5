package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/config"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/logging"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/services"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/storage"
)

// Service implements asset lifecycle operations over a storage backend.
type Service struct {
	cfg     *config.Config
	backend storage.Backend
	logger  *slog.Logger
}

// NewService builds the asset service.
func NewService(cfg *config.Config, backend storage.Backend, logger *slog.Logger) *Service {
	return &Service{cfg: cfg, backend: backend, logger: logging.NewComponentLogger(logger, "assets")}
}

// Create registers a new asset from materialized audio files. metadata.json
// is written last so a crash never leaves a registered asset without its
// bytes; on failure the partially written prefix is removed best-effort.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Asset, error) {
	originalExt := normalizeExt(in.OriginalExt)
	preparedExt := normalizeExt(in.PreparedExt)
	if in.OriginalPath == "" || originalExt == "" {
		return nil, services.Wrap(services.ErrValidation, "assets", "create", "original audio file and extension are required", nil)
	}
	if in.PreparedPath == "" || preparedExt == "" {
		return nil, services.Wrap(services.ErrValidation, "assets", "create", "prepared audio file and extension are required", nil)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	asset := &Asset{
		AssetID:    id,
		Audio:      in.Audio,
		Provenance: in.Provenance,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.putFile(ctx, OriginalKey(id, originalExt), in.OriginalPath); err != nil {
		s.discardPrefix(ctx, id)
		return nil, services.Wrap(services.ErrStorage, "assets", "create", "store original audio", err)
	}
	if err := s.putFile(ctx, PreparedKey(id, preparedExt), in.PreparedPath); err != nil {
		s.discardPrefix(ctx, id)
		return nil, services.Wrap(services.ErrStorage, "assets", "create", "store prepared audio", err)
	}
	if err := s.writeMetadata(ctx, asset); err != nil {
		s.discardPrefix(ctx, id)
		return nil, err
	}

	logging.WithContext(ctx, s.logger).Info("asset created",
		logging.String(logging.FieldAssetID, id),
		logging.String("source_type", in.Provenance.SourceType),
		logging.Float64("duration_seconds", in.Audio.Duration),
	)
	return asset, nil
}

// Get reads an asset record. A missing asset returns (nil, nil).
func (s *Service) Get(ctx context.Context, id string) (*Asset, error) {
	rc, err := s.backend.Get(ctx, MetadataKey(id))
	if err != nil {
		if storage.IsNotExist(err) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrStorage, "assets", "get", "read asset metadata", err)
	}
	defer rc.Close()

	var asset Asset
	if err := json.NewDecoder(rc).Decode(&asset); err != nil {
		return nil, services.Wrap(services.ErrStorage, "assets", "get", fmt.Sprintf("decode metadata for asset %s", id), err)
	}
	return &asset, nil
}

// UpdateMetadata merges the patch into the asset record and bumps updatedAt.
func (s *Service) UpdateMetadata(ctx context.Context, id string, patch MetadataPatch) (*Asset, error) {
	asset, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, services.Wrap(services.ErrNotFound, "assets", "update", fmt.Sprintf("asset %s not found", id), nil)
	}

	if patch.Audio != nil {
		asset.Audio = *patch.Audio
	}
	if patch.Provenance != nil {
		asset.Provenance = *patch.Provenance
	}
	asset.UpdatedAt = time.Now().UTC()
	if err := s.writeMetadata(ctx, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// List reads every stored asset record, newest first. Prefixes without a
// metadata object are debris from an interrupted create and are skipped.
func (s *Service) List(ctx context.Context) ([]*Asset, error) {
	ids, err := s.listAssetIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Asset, 0, len(ids))
	for _, id := range ids {
		asset, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if asset == nil {
			continue
		}
		out = append(out, asset)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Objects lists the stored objects for one asset, metadata included.
func (s *Service) Objects(ctx context.Context, id string) ([]storage.ObjectInfo, error) {
	objects, err := s.backend.List(ctx, Prefix(id))
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "assets", "list", fmt.Sprintf("list objects for asset %s", id), err)
	}
	return objects, nil
}

func (s *Service) writeMetadata(ctx context.Context, asset *Asset) error {
	payload, err := json.Marshal(asset)
	if err != nil {
		return services.Wrap(services.ErrStorage, "assets", "metadata", "encode asset metadata", err)
	}
	if err := s.backend.Put(ctx, MetadataKey(asset.AssetID), bytes.NewReader(payload), int64(len(payload)), "application/json"); err != nil {
		return services.Wrap(services.ErrStorage, "assets", "metadata", "write asset metadata", err)
	}
	return nil
}

func (s *Service) putFile(ctx context.Context, key, srcPath string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	return s.backend.Put(ctx, key, f, info.Size(), ContentTypeForKey(key))
}

// discardPrefix removes a partially written asset. It runs detached from the
// caller's context so cleanup still happens after a cancellation.
func (s *Service) discardPrefix(ctx context.Context, id string) {
	if err := s.backend.DeletePrefix(context.WithoutCancel(ctx), Prefix(id)); err != nil {
		s.logger.Warn("failed to clean up partial asset",
			logging.String(logging.FieldAssetID, id),
			logging.Error(err),
		)
	}
}
