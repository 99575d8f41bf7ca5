package testsupport

import (
	"testing"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/config"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/storage"
)

// NewBackend builds the storage backend selected by the test config after
// ensuring its directories exist.
func NewBackend(t testing.TB, cfg *config.Config) storage.Backend {
	t.Helper()

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	backend, err := storage.NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("storage.NewFromConfig: %v", err)
	}
	return backend
}
