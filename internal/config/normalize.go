package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeAssets()
	c.normalizeIngest()
	c.normalizeRender()
	c.normalizeAPI()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStorage() error {
	var err error
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendLocal
	}
	if strings.TrimSpace(c.Storage.LocalRoot) == "" {
		c.Storage.LocalRoot = defaultLocalRoot
	}
	if c.Storage.LocalRoot, err = expandPath(c.Storage.LocalRoot); err != nil {
		return fmt.Errorf("storage.local_root: %w", err)
	}

	c.Storage.S3.Endpoint = strings.TrimSpace(c.Storage.S3.Endpoint)
	c.Storage.S3.Region = strings.TrimSpace(c.Storage.S3.Region)
	if c.Storage.S3.Region == "" {
		c.Storage.S3.Region = "auto"
	}
	c.Storage.S3.Bucket = strings.TrimSpace(c.Storage.S3.Bucket)
	c.Storage.S3.AccessKeyID = strings.TrimSpace(c.Storage.S3.AccessKeyID)
	if c.Storage.S3.AccessKeyID == "" {
		if value, ok := os.LookupEnv("STUDIO_S3_ACCESS_KEY_ID"); ok {
			c.Storage.S3.AccessKeyID = strings.TrimSpace(value)
		}
	}
	c.Storage.S3.SecretAccessKey = strings.TrimSpace(c.Storage.S3.SecretAccessKey)
	if c.Storage.S3.SecretAccessKey == "" {
		if value, ok := os.LookupEnv("STUDIO_S3_SECRET_ACCESS_KEY"); ok {
			c.Storage.S3.SecretAccessKey = strings.TrimSpace(value)
		}
	}

	c.Storage.Signing.Secret = strings.TrimSpace(c.Storage.Signing.Secret)
	if c.Storage.Signing.Secret == "" {
		if value, ok := os.LookupEnv("STUDIO_SIGNING_SECRET"); ok {
			c.Storage.Signing.Secret = strings.TrimSpace(value)
		}
	}
	c.Storage.Signing.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.Signing.PublicBaseURL), "/")
	if c.Storage.Signing.PublicBaseURL == "" {
		c.Storage.Signing.PublicBaseURL = defaultPublicBaseURL
	}
	if c.Storage.Signing.DownloadTTL <= 0 {
		c.Storage.Signing.DownloadTTL = defaultDownloadTTL
	}
	if c.Storage.Signing.UploadTTL <= 0 {
		c.Storage.Signing.UploadTTL = defaultUploadTTL
	}
	return nil
}

// Zero is a meaningful value for every assets limit (quota, TTL, caps all
// read zero as "disabled"), so only negatives are clamped.
func (c *Config) normalizeAssets() {
	if c.Assets.QuotaGB < 0 {
		c.Assets.QuotaGB = 0
	}
	if c.Assets.TTLHours < 0 {
		c.Assets.TTLHours = 0
	}
	if c.Assets.MaxSourceMiB < 0 {
		c.Assets.MaxSourceMiB = 0
	}
	if c.Assets.MaxDurationSeconds < 0 {
		c.Assets.MaxDurationSeconds = 0
	}
	if c.Assets.CleanupInterval < 0 {
		c.Assets.CleanupInterval = 0
	}
}

func (c *Config) normalizeIngest() {
	hosts := make([]string, 0, len(c.Ingest.YouTubeHosts))
	seen := make(map[string]struct{}, len(c.Ingest.YouTubeHosts))
	for _, host := range c.Ingest.YouTubeHosts {
		normalized := strings.ToLower(strings.TrimSpace(host))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		hosts = append(hosts, normalized)
	}
	if len(hosts) == 0 {
		hosts = Default().Ingest.YouTubeHosts
	}
	c.Ingest.YouTubeHosts = hosts

	c.Ingest.YtDlpFormat = strings.TrimSpace(c.Ingest.YtDlpFormat)
	if c.Ingest.YtDlpFormat == "" {
		c.Ingest.YtDlpFormat = defaultYtDlpFormat
	}
	if c.Ingest.RequestTimeout <= 0 {
		c.Ingest.RequestTimeout = defaultIngestTimeout
	}
	if c.Ingest.MaxRedirects < 0 {
		c.Ingest.MaxRedirects = defaultMaxRedirects
	}
}

func (c *Config) normalizeRender() {
	c.Render.FFmpeg = strings.TrimSpace(c.Render.FFmpeg)
	if c.Render.FFmpeg == "" {
		c.Render.FFmpeg = "ffmpeg"
	}
	c.Render.FFprobe = strings.TrimSpace(c.Render.FFprobe)
	if c.Render.FFprobe == "" {
		c.Render.FFprobe = "ffprobe"
	}
	c.Render.YtDlp = strings.TrimSpace(c.Render.YtDlp)
	if c.Render.YtDlp == "" {
		c.Render.YtDlp = "yt-dlp"
	}
	if c.Render.LoudnessTarget == 0 {
		c.Render.LoudnessTarget = defaultLoudnessTarget
	}
	if c.Render.LoudnessPeak == 0 {
		c.Render.LoudnessPeak = defaultLoudnessPeak
	}
	if c.Render.LoudnessRange <= 0 {
		c.Render.LoudnessRange = defaultLoudnessRange
	}
	c.Render.AACBitrate = strings.TrimSpace(c.Render.AACBitrate)
	if c.Render.AACBitrate == "" {
		c.Render.AACBitrate = defaultAACBitrate
	}
	if c.Render.PreviewQuality < 0 {
		c.Render.PreviewQuality = 0
	}
	if c.Render.PreviewQuality > 9 {
		c.Render.PreviewQuality = 9
	}
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.CallbackSecret = strings.TrimSpace(c.API.CallbackSecret)
	if c.API.CallbackSecret == "" {
		if value, ok := os.LookupEnv("STUDIO_CALLBACK_SECRET"); ok {
			c.API.CallbackSecret = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = 10
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
