package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Storage.LocalRoot = filepath.Join(base, "objects")
	cfgVal.Storage.Signing.Secret = "test-signing-secret"
	cfgVal.API.Bind = "127.0.0.1:0"
	cfgVal.API.CallbackSecret = "test-callback-secret"
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithQuotaGB overrides the asset storage quota on the test config.
func WithQuotaGB(quota float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Assets.QuotaGB = quota
	}
}

// WithMaxSourceMiB overrides the per-source size cap on the test config.
func WithMaxSourceMiB(limit int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Assets.MaxSourceMiB = limit
	}
}

// WithAssetTTLHours overrides the asset expiry window on the test config.
// Zero disables the TTL sweep.
func WithAssetTTLHours(hours int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Assets.TTLHours = hours
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default studio external
// binaries are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe", "yt-dlp"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
