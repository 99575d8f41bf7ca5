package assets

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/services"
)

// filePather is implemented by backends that can expose objects as local
// files without copying.
type filePather interface {
	FilePath(key string) (string, error)
}

// ResolveAssetPath materializes the asset's prepared audio as a local file
// path for tools that need direct file access. On a local backend the stored
// file is used in place; otherwise the object is downloaded to the staging
// directory. The returned cleanup func removes any temporary copy and is
// safe to call either way.
func (s *Service) ResolveAssetPath(ctx context.Context, id string) (string, func(), error) {
	key, err := s.preparedObjectKey(ctx, id)
	if err != nil {
		return "", nil, err
	}
	if fp, ok := s.backend.(filePather); ok {
		if local, err := fp.FilePath(key); err == nil {
			return local, func() {}, nil
		}
	}
	return s.downloadToStaging(ctx, key)
}

// ResolveToTempFile always downloads the prepared audio to a fresh staging
// file, for callers that move or rewrite it.
func (s *Service) ResolveToTempFile(ctx context.Context, id string) (string, func(), error) {
	key, err := s.preparedObjectKey(ctx, id)
	if err != nil {
		return "", nil, err
	}
	return s.downloadToStaging(ctx, key)
}

func (s *Service) preparedObjectKey(ctx context.Context, id string) (string, error) {
	objects, err := s.Objects(ctx, id)
	if err != nil {
		return "", err
	}
	for _, obj := range objects {
		if strings.HasPrefix(path.Base(obj.Key), "prepared.") {
			return obj.Key, nil
		}
	}
	return "", services.Wrap(services.ErrNotFound, "assets", "resolve", fmt.Sprintf("asset %s has no prepared audio", id), nil)
}

func (s *Service) downloadToStaging(ctx context.Context, key string) (string, func(), error) {
	rc, err := s.backend.Get(ctx, key)
	if err != nil {
		return "", nil, services.Wrap(services.ErrStorage, "assets", "resolve", fmt.Sprintf("open %s", key), err)
	}
	defer rc.Close()

	if err := os.MkdirAll(s.cfg.Paths.StagingDir, 0o755); err != nil {
		return "", nil, services.Wrap(services.ErrStorage, "assets", "resolve", "create staging directory", err)
	}
	tmp, err := os.CreateTemp(s.cfg.Paths.StagingDir, "resolve-*"+path.Ext(key))
	if err != nil {
		return "", nil, services.Wrap(services.ErrStorage, "assets", "resolve", "create staging file", err)
	}
	cleanup := func() { os.Remove(tmp.Name()) }

	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		cleanup()
		return "", nil, services.Wrap(services.ErrStorage, "assets", "resolve", fmt.Sprintf("download %s", key), err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, services.Wrap(services.ErrStorage, "assets", "resolve", "finalize staging file", err)
	}
	return tmp.Name(), cleanup, nil
}
