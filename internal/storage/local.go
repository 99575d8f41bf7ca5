package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Local stores objects as files under a root directory. Writes land in a
// temp file first and are renamed into place, so readers never observe a
// partially written object.
type Local struct {
	root   string
	signer *URLSigner
}

// NewLocal creates the root directory if needed and returns a Local backend.
func NewLocal(root string, signer *URLSigner) (*Local, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage: local root not set")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Local{root: root, signer: signer}, nil
}

// Root returns the backing directory.
func (l *Local) Root() string { return l.root }

// Signer returns the URL signer so the daemon's file handlers can verify
// signed requests.
func (l *Local) Signer() *URLSigner { return l.signer }

// FilePath returns the filesystem path behind key so tools that need direct
// file access can skip the copy. The object may not exist yet.
func (l *Local) FilePath(key string) (string, error) {
	return l.path(key)
}

func (l *Local) path(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(l.root, filepath.FromSlash(key)), nil
}

// Put implements Backend.
func (l *Local) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	path, err := l.path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	tmpPath := tmp.Name()
	written, err := io.Copy(tmp, body)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write object %s: %w", key, err)
	}
	if size >= 0 && written != size {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write object %s: size mismatch (wrote %d, expected %d)", key, written, size)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync object %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close object %s: %w", key, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod object %s: %w", key, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("finalize object %s: %w", key, err)
	}
	return nil
}

// Get implements Backend.
func (l *Local) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := l.path(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, key)
		}
		return nil, fmt.Errorf("open object %s: %w", key, err)
	}
	return file, nil
}

// Stat implements Backend.
func (l *Local) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	path, err := l.path(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ObjectInfo{}, fmt.Errorf("%w: %s", ErrNotExist, key)
		}
		return ObjectInfo{}, fmt.Errorf("stat object %s: %w", key, err)
	}
	if info.IsDir() {
		return ObjectInfo{}, fmt.Errorf("%w: %s", ErrNotExist, key)
	}
	return ObjectInfo{Key: key, Size: info.Size(), ModTime: info.ModTime().UTC()}, nil
}

// Exists implements Backend.
func (l *Local) Exists(ctx context.Context, key string) (bool, error) {
	_, err := l.Stat(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List implements Backend.
func (l *Local) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := validatePrefix(prefix); err != nil {
		return nil, err
	}

	// Walk the deepest directory the prefix pins down and filter the rest.
	walkRoot := l.root
	if idx := strings.LastIndex(prefix, "/"); idx >= 0 {
		walkRoot = filepath.Join(l.root, filepath.FromSlash(prefix[:idx]))
	}

	var objects []ObjectInfo
	err := filepath.WalkDir(walkRoot, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrNotExist) {
				return nil
			}
			return walkErr
		}
		if entry.IsDir() {
			return nil
		}
		if strings.HasPrefix(entry.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		objects = append(objects, ObjectInfo{Key: key, Size: info.Size(), ModTime: info.ModTime().UTC()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list objects under %q: %w", prefix, err)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// Delete implements Backend. Deleting a missing object succeeds.
func (l *Local) Delete(ctx context.Context, key string) error {
	path, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	l.pruneEmptyParents(filepath.Dir(path))
	return nil
}

// DeletePrefix implements Backend.
func (l *Local) DeletePrefix(ctx context.Context, prefix string) error {
	if err := validatePrefix(prefix); err != nil {
		return err
	}
	trimmed := strings.TrimSuffix(prefix, "/")
	if trimmed == "" {
		return errors.New("storage: refusing to delete entire store")
	}
	path := filepath.Join(l.root, filepath.FromSlash(trimmed))
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat prefix %q: %w", prefix, err)
	}
	if info.IsDir() {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("delete prefix %q: %w", prefix, err)
		}
		l.pruneEmptyParents(filepath.Dir(path))
		return nil
	}

	// Prefix names part of a file name rather than a directory.
	objects, err := l.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		if err := l.Delete(ctx, obj.Key); err != nil {
			return err
		}
	}
	return nil
}

// pruneEmptyParents removes now-empty directories between path and the root
// so deleted assets do not leave husks behind.
func (l *Local) pruneEmptyParents(dir string) {
	for dir != l.root && strings.HasPrefix(dir, l.root) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// SignedDownloadURL implements Backend.
func (l *Local) SignedDownloadURL(key string, ttl time.Duration) (string, error) {
	if l.signer == nil {
		return "", errors.New("storage: url signer not configured")
	}
	return l.signer.SignedURL(http.MethodGet, key, ttl)
}

// SignedUploadURL implements Backend.
func (l *Local) SignedUploadURL(key string, ttl time.Duration) (string, error) {
	if l.signer == nil {
		return "", errors.New("storage: url signer not configured")
	}
	return l.signer.SignedURL(http.MethodPut, key, ttl)
}
