package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/config"
)

func TestLoadDefaultConfigUsesEnvSecretAndExpandsPaths(t *testing.T) {
	t.Setenv("STUDIO_SIGNING_SECRET", "test-secret")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "ethereal-studio")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.StagingDir != filepath.Join(wantData, "staging") {
		t.Fatalf("unexpected staging dir: %q", cfg.Paths.StagingDir)
	}
	if cfg.Storage.Backend != config.BackendLocal {
		t.Fatalf("unexpected storage backend: %q", cfg.Storage.Backend)
	}
	if cfg.Storage.LocalRoot != filepath.Join(wantData, "storage") {
		t.Fatalf("unexpected storage root: %q", cfg.Storage.LocalRoot)
	}
	if cfg.Storage.Signing.Secret != "test-secret" {
		t.Fatalf("expected signing secret from env, got %q", cfg.Storage.Signing.Secret)
	}
	if cfg.API.Bind != "127.0.0.1:7910" {
		t.Fatalf("unexpected api bind: %q", cfg.API.Bind)
	}
	if cfg.Assets.QuotaGB != 10 {
		t.Fatalf("unexpected quota: %v", cfg.Assets.QuotaGB)
	}
	if cfg.Render.LoudnessTarget != -14 {
		t.Fatalf("unexpected loudness target: %v", cfg.Render.LoudnessTarget)
	}
	if cfg.Notifications.NtfyTopic != "" {
		t.Fatalf("expected notifications disabled by default, got topic %q", cfg.Notifications.NtfyTopic)
	}
	if len(cfg.Ingest.YouTubeHosts) == 0 {
		t.Fatal("expected default YouTube hosts")
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "jobs.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.StagingDir, cfg.Paths.LogDir, cfg.Storage.LocalRoot} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "studio.toml")

	type payload struct {
		Storage struct {
			Backend string `toml:"backend"`
			Signing struct {
				Secret      string `toml:"secret"`
				DownloadTTL int    `toml:"download_ttl"`
			} `toml:"signing"`
		} `toml:"storage"`
		Assets struct {
			QuotaGB  float64 `toml:"quota_gb"`
			TTLHours int     `toml:"ttl_hours"`
		} `toml:"assets"`
		Render struct {
			LoudnessTarget float64 `toml:"loudness_target"`
			AACBitrate     string  `toml:"aac_bitrate"`
		} `toml:"render"`
	}
	custom := payload{}
	custom.Storage.Backend = "local"
	custom.Storage.Signing.Secret = "file-secret"
	custom.Storage.Signing.DownloadTTL = 120
	custom.Assets.QuotaGB = 2.5
	custom.Assets.TTLHours = 48
	custom.Render.LoudnessTarget = -16
	custom.Render.AACBitrate = "256k"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Storage.Signing.Secret != "file-secret" {
		t.Fatalf("expected signing secret from file, got %q", cfg.Storage.Signing.Secret)
	}
	if cfg.Storage.Signing.DownloadTTL != 120 {
		t.Fatalf("expected download TTL 120, got %d", cfg.Storage.Signing.DownloadTTL)
	}
	if cfg.Assets.QuotaGB != 2.5 {
		t.Fatalf("expected quota 2.5, got %v", cfg.Assets.QuotaGB)
	}
	if cfg.Assets.TTLHours != 48 {
		t.Fatalf("expected TTL 48h, got %d", cfg.Assets.TTLHours)
	}
	if cfg.Render.LoudnessTarget != -16 {
		t.Fatalf("expected loudness -16, got %v", cfg.Render.LoudnessTarget)
	}
	if cfg.Render.AACBitrate != "256k" {
		t.Fatalf("expected bitrate 256k, got %q", cfg.Render.AACBitrate)
	}
	if cfg.Assets.MaxSourceMiB != config.Default().Assets.MaxSourceMiB {
		t.Fatalf("expected default source cap, got %d", cfg.Assets.MaxSourceMiB)
	}
}

func TestLoadKeepsExplicitZeroLimits(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "studio.toml")

	type payload struct {
		Storage struct {
			Signing struct {
				Secret string `toml:"secret"`
			} `toml:"signing"`
		} `toml:"storage"`
		Assets struct {
			QuotaGB      float64 `toml:"quota_gb"`
			TTLHours     int     `toml:"ttl_hours"`
			MaxSourceMiB int64   `toml:"max_source_mib"`
		} `toml:"assets"`
	}
	custom := payload{}
	custom.Storage.Signing.Secret = "sig"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Assets.QuotaGB != 0 {
		t.Fatalf("expected quota check disabled, got %v", cfg.Assets.QuotaGB)
	}
	if cfg.Assets.TTLHours != 0 {
		t.Fatalf("expected expiry disabled, got %d", cfg.Assets.TTLHours)
	}
	if cfg.Assets.MaxSourceMiB != 0 {
		t.Fatalf("expected source cap removed, got %d", cfg.Assets.MaxSourceMiB)
	}
	if cfg.AssetTTL() != 0 {
		t.Fatalf("expected zero TTL, got %v", cfg.AssetTTL())
	}
	if cfg.MaxSourceBytes() != 0 {
		t.Fatalf("expected zero source cap, got %d", cfg.MaxSourceBytes())
	}
}

func TestEnvFallbacksFillEmptySecrets(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "studio.toml")

	type payload struct {
		Storage struct {
			Backend string `toml:"backend"`
			S3      struct {
				Endpoint string `toml:"endpoint"`
				Bucket   string `toml:"bucket"`
			} `toml:"s3"`
			Signing struct {
				Secret string `toml:"secret"`
			} `toml:"signing"`
		} `toml:"storage"`
	}
	custom := payload{}
	custom.Storage.Backend = "s3"
	custom.Storage.S3.Endpoint = "https://accountid.r2.cloudflarestorage.com"
	custom.Storage.S3.Bucket = "studio-assets"
	custom.Storage.Signing.Secret = "sig"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	t.Setenv("STUDIO_S3_ACCESS_KEY_ID", "env-access")
	t.Setenv("STUDIO_S3_SECRET_ACCESS_KEY", "env-secret")
	t.Setenv("STUDIO_CALLBACK_SECRET", "env-callback")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Storage.S3.AccessKeyID != "env-access" {
		t.Errorf("expected access key from env, got %q", cfg.Storage.S3.AccessKeyID)
	}
	if cfg.Storage.S3.SecretAccessKey != "env-secret" {
		t.Errorf("expected secret key from env, got %q", cfg.Storage.S3.SecretAccessKey)
	}
	if cfg.API.CallbackSecret != "env-callback" {
		t.Errorf("expected callback secret from env, got %q", cfg.API.CallbackSecret)
	}
}

func TestLoadNormalizesYouTubeHosts(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "studio.toml")

	type payload struct {
		Storage struct {
			Signing struct {
				Secret string `toml:"secret"`
			} `toml:"signing"`
		} `toml:"storage"`
		Ingest struct {
			YouTubeHosts []string `toml:"youtube_hosts"`
		} `toml:"ingest"`
	}
	custom := payload{}
	custom.Storage.Signing.Secret = "sig"
	custom.Ingest.YouTubeHosts = []string{"YouTube.com", " youtu.be ", "youtube.com", ""}
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	want := []string{"youtube.com", "youtu.be"}
	if len(cfg.Ingest.YouTubeHosts) != len(want) {
		t.Fatalf("expected %d hosts, got %v", len(want), cfg.Ingest.YouTubeHosts)
	}
	for i, host := range want {
		if cfg.Ingest.YouTubeHosts[i] != host {
			t.Fatalf("host %d: got %q want %q", i, cfg.Ingest.YouTubeHosts[i], host)
		}
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[storage.signing]") {
		t.Fatalf("sample config missing signing section: %s", contents)
	}

	// Validate it decodes
	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}

	if runtime.GOOS != "windows" {
		if !strings.Contains(cfg.Paths.StagingDir, "ethereal-studio") {
			t.Fatalf("expected staging dir to contain ethereal-studio, got %q", cfg.Paths.StagingDir)
		}
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Signing.Secret = "sig"
	cfg.Storage.Backend = "ftp"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown backend")
	}

	cfg = config.Default()
	cfg.Storage.Signing.Secret = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing signing secret")
	}

	cfg = config.Default()
	cfg.Storage.Signing.Secret = "sig"
	cfg.Storage.Backend = config.BackendS3
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for s3 backend without bucket")
	}

	cfg = config.Default()
	cfg.Storage.Signing.Secret = "sig"
	cfg.Assets.QuotaGB = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative quota")
	}

	cfg = config.Default()
	cfg.Storage.Signing.Secret = "sig"
	cfg.Render.LoudnessTarget = 3
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for positive loudness target")
	}

	cfg = config.Default()
	cfg.Storage.Signing.Secret = "sig"
	cfg.Ingest.RequestTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive ingest timeout")
	}

	cfg = config.Default()
	cfg.Storage.Signing.Secret = "sig"
	cfg.Render.PreviewQuality = 12
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for preview quality out of range")
	}
}

func TestHelperConversions(t *testing.T) {
	cfg := config.Default()
	cfg.Assets.QuotaGB = 1
	if got := cfg.QuotaBytes(); got != 1<<30 {
		t.Fatalf("QuotaBytes: got %d want %d", got, int64(1)<<30)
	}
	cfg.Assets.MaxSourceMiB = 3
	if got := cfg.MaxSourceBytes(); got != 3<<20 {
		t.Fatalf("MaxSourceBytes: got %d want %d", got, int64(3)<<20)
	}
	cfg.Render.FFmpeg = "  "
	if got := cfg.FFmpegBinary(); got != "ffmpeg" {
		t.Fatalf("FFmpegBinary fallback: got %q", got)
	}
	cfg.Render.YtDlp = "/opt/yt-dlp"
	if got := cfg.YtDlpBinary(); got != "/opt/yt-dlp" {
		t.Fatalf("YtDlpBinary: got %q", got)
	}
}
