package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/config"
)

// ErrNotExist reports that the requested object is not in the store.
var ErrNotExist = errors.New("storage: object does not exist")

// IsNotExist reports whether err indicates a missing object.
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Backend abstracts the object store holding asset bytes.
type Backend interface {
	// Put stores body under key, replacing any existing object. size must
	// match the number of bytes body yields.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	// Get opens the object for reading. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	Exists(ctx context.Context, key string) (bool, error)
	// List returns every object whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	// SignedDownloadURL returns a URL that grants a GET on key until ttl
	// elapses. SignedUploadURL does the same for a PUT.
	SignedDownloadURL(key string, ttl time.Duration) (string, error)
	SignedUploadURL(key string, ttl time.Duration) (string, error)
}

// NewFromConfig builds the backend selected by storage.backend.
func NewFromConfig(cfg *config.Config) (Backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendLocal:
		signer := NewURLSigner(cfg.Storage.Signing.Secret, cfg.Storage.Signing.PublicBaseURL)
		return NewLocal(cfg.Storage.LocalRoot, signer)
	case config.BackendS3:
		return NewS3(S3Options{
			Endpoint:        cfg.Storage.S3.Endpoint,
			Region:          cfg.Storage.S3.Region,
			Bucket:          cfg.Storage.S3.Bucket,
			AccessKeyID:     cfg.Storage.S3.AccessKeyID,
			SecretAccessKey: cfg.Storage.S3.SecretAccessKey,
			ForcePathStyle:  cfg.Storage.S3.ForcePathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// ValidateKey rejects keys that could escape the store or confuse URL
// signing. Valid keys are clean slash-separated relative paths.
func ValidateKey(key string) error {
	if key == "" {
		return errors.New("storage: empty key")
	}
	if strings.HasPrefix(key, "/") {
		return fmt.Errorf("storage: key %q must be relative", key)
	}
	if strings.Contains(key, "\\") {
		return fmt.Errorf("storage: key %q contains backslash", key)
	}
	for _, segment := range strings.Split(key, "/") {
		switch segment {
		case "", ".", "..":
			return fmt.Errorf("storage: key %q contains invalid path segment", key)
		}
	}
	for _, r := range key {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("storage: key %q contains control character", key)
		}
	}
	return nil
}

func validatePrefix(prefix string) error {
	if prefix == "" {
		return nil
	}
	trimmed := strings.TrimSuffix(prefix, "/")
	if trimmed == "" {
		return nil
	}
	return ValidateKey(trimmed)
}
