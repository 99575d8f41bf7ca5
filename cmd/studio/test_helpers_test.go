package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/assets"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/config"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/daemon"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/jobs"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/logging"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *jobs.Store
	assets     *assets.Service
	daemon     *daemon.Daemon
	baseURL    string
	configPath string
}

// setupCLITestEnv boots a real daemon on a loopback port and returns the
// address CLI invocations should target. Jobs seeded through env.store are
// created after the daemon's orphan sweep, so they stay pending.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	homeDir := t.TempDir()
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	configPath := filepath.Join(homeDir, ".config", "ethereal-studio", "config.toml")
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenStore(t, cfg)

	d, err := daemon.New(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	t.Cleanup(d.Stop)

	assetSvc := assets.NewService(cfg, testsupport.NewBackend(t, cfg), logging.NewNop())

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		assets:     assetSvc,
		daemon:     d,
		baseURL:    "http://" + d.Addr(),
		configPath: configPath,
	}
}

func seedCLIAsset(t *testing.T, env *cliTestEnv) *assets.Asset {
	t.Helper()
	dir := t.TempDir()
	original := filepath.Join(dir, "original.mp3")
	prepared := filepath.Join(dir, "prepared.m4a")
	testsupport.WriteFile(t, original, 2048)
	testsupport.WriteFile(t, prepared, 1024)

	asset, err := env.assets.Create(context.Background(), assets.CreateInput{
		OriginalPath: original,
		OriginalExt:  "mp3",
		PreparedPath: prepared,
		PreparedExt:  "m4a",
		Audio:        assets.AudioInfo{Duration: 30, Format: "mp4", SampleRate: 44100, Channels: 2},
		Provenance:   assets.Provenance{SourceType: assets.SourceAudioFile, OriginalFilename: "take.mp3"},
	})
	if err != nil {
		t.Fatalf("seed asset: %v", err)
	}
	return asset
}

func runCLI(t *testing.T, args []string, addr, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if addr != "" {
		flags = append(flags, "--addr", addr)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	raw, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
