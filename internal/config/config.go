package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
}

// Storage selects and configures the byte-storage backend.
type Storage struct {
	Backend   string  `toml:"backend"`
	LocalRoot string  `toml:"local_root"`
	S3        S3      `toml:"s3"`
	Signing   Signing `toml:"signing"`
}

// S3 contains credentials and addressing for an S3-compatible object store.
type S3 struct {
	Endpoint        string `toml:"endpoint"`
	Region          string `toml:"region"`
	Bucket          string `toml:"bucket"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	ForcePathStyle  bool   `toml:"force_path_style"`
}

// Signing configures signed download/upload URLs. The local backend serves
// signed URLs through the daemon; the S3 backend presigns directly.
type Signing struct {
	Secret        string `toml:"secret"`
	PublicBaseURL string `toml:"public_base_url"`
	DownloadTTL   int    `toml:"download_ttl"`
	UploadTTL     int    `toml:"upload_ttl"`
}

// Assets contains quota, expiry, and ingestion cap settings.
type Assets struct {
	QuotaGB            float64 `toml:"quota_gb"`
	TTLHours           int     `toml:"ttl_hours"`
	MaxSourceMiB       int64   `toml:"max_source_mib"`
	MaxDurationSeconds float64 `toml:"max_duration_seconds"`
	CleanupInterval    int     `toml:"cleanup_interval"`
}

// Ingest contains source-fetching configuration.
type Ingest struct {
	YouTubeHosts   []string `toml:"youtube_hosts"`
	YtDlpFormat    string   `toml:"ytdlp_format"`
	RequestTimeout int      `toml:"request_timeout"`
	MaxRedirects   int      `toml:"max_redirects"`
}

// Render contains external tool paths and encoding targets.
type Render struct {
	FFmpeg         string  `toml:"ffmpeg"`
	FFprobe        string  `toml:"ffprobe"`
	YtDlp          string  `toml:"ytdlp"`
	LoudnessTarget float64 `toml:"loudness_target"`
	LoudnessPeak   float64 `toml:"loudness_peak"`
	LoudnessRange  float64 `toml:"loudness_range"`
	AACBitrate     string  `toml:"aac_bitrate"`
	PreviewQuality int     `toml:"preview_quality"`
}

// API contains the daemon HTTP listener configuration.
type API struct {
	Bind           string `toml:"bind"`
	CallbackSecret string `toml:"callback_secret"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobComplete    bool   `toml:"job_complete"`
	JobFailed      bool   `toml:"job_failed"`
	IngestComplete bool   `toml:"ingest_complete"`
	Cleanup        bool   `toml:"cleanup"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the studio pipeline.
//
// Configuration sections by subsystem:
//   - Paths: data, staging, and log directories
//   - Storage: backend selection (local filesystem or S3-compatible) plus URL signing
//   - Assets: storage quota, TTL expiry, and ingestion caps
//   - Ingest: YouTube host allow-list, yt-dlp format, HTTP fetch limits
//   - Render: ffmpeg/ffprobe/yt-dlp paths and loudness/encoding targets
//   - API: daemon bind address and worker callback secret
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Storage       Storage       `toml:"storage"`
	Assets        Assets        `toml:"assets"`
	Ingest        Ingest        `toml:"ingest"`
	Render        Render        `toml:"render"`
	API           API           `toml:"api"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/ethereal-studio/config.toml")
}

// ResolvePath reports the configuration file Load would read for the given
// path override and whether it exists. An empty path follows the default
// search order.
func ResolvePath(path string) (string, bool, error) {
	return resolveConfigPath(path)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("studio.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.StagingDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Storage.Backend == BackendLocal && strings.TrimSpace(c.Storage.LocalRoot) != "" {
		if err := os.MkdirAll(c.Storage.LocalRoot, 0o755); err != nil {
			return fmt.Errorf("create storage root %q: %w", c.Storage.LocalRoot, err)
		}
	}
	return nil
}

// Storage backend identifiers accepted by storage.backend.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// DatabasePath returns the job database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "jobs.db")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "studiod.lock")
}

// FFmpegBinary returns the ffmpeg executable to run.
func (c *Config) FFmpegBinary() string {
	if v := strings.TrimSpace(c.Render.FFmpeg); v != "" {
		return v
	}
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable used for media probing.
func (c *Config) FFprobeBinary() string {
	if v := strings.TrimSpace(c.Render.FFprobe); v != "" {
		return v
	}
	return "ffprobe"
}

// YtDlpBinary returns the yt-dlp executable used for YouTube ingestion.
func (c *Config) YtDlpBinary() string {
	if v := strings.TrimSpace(c.Render.YtDlp); v != "" {
		return v
	}
	return "yt-dlp"
}

// QuotaBytes converts the configured quota to bytes; zero disables the check.
func (c *Config) QuotaBytes() int64 {
	return int64(c.Assets.QuotaGB * 1024 * 1024 * 1024)
}

// MaxSourceBytes is the per-source ingestion byte cap; zero removes the cap.
func (c *Config) MaxSourceBytes() int64 {
	return c.Assets.MaxSourceMiB * 1024 * 1024
}

// AssetTTL is the age after which unreferenced assets expire; zero disables
// expiry.
func (c *Config) AssetTTL() time.Duration {
	return time.Duration(c.Assets.TTLHours) * time.Hour
}

// CleanupInterval is the period of the TTL sweep; zero disables the loop.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.Assets.CleanupInterval) * time.Minute
}

// IngestTimeout bounds a single URL fetch.
func (c *Config) IngestTimeout() time.Duration {
	return time.Duration(c.Ingest.RequestTimeout) * time.Second
}

// DownloadURLTTL is the default lifetime for signed download URLs.
func (c *Config) DownloadURLTTL() time.Duration {
	return time.Duration(c.Storage.Signing.DownloadTTL) * time.Second
}

// UploadURLTTL is the default lifetime for signed upload URLs.
func (c *Config) UploadURLTTL() time.Duration {
	return time.Duration(c.Storage.Signing.UploadTTL) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
