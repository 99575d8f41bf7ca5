package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateAssets(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case BackendLocal:
		if strings.TrimSpace(c.Storage.LocalRoot) == "" {
			return errors.New("storage.local_root must be set when storage.backend is \"local\"")
		}
		if strings.TrimSpace(c.Storage.Signing.Secret) == "" {
			defaultPath, err := DefaultConfigPath()
			if err != nil {
				defaultPath = "~/.config/ethereal-studio/config.toml"
			}
			return fmt.Errorf("storage.signing.secret is required. Set STUDIO_SIGNING_SECRET env var or edit %s (create with 'studio config init')", defaultPath)
		}
	case BackendS3:
		if strings.TrimSpace(c.Storage.S3.Endpoint) == "" {
			return errors.New("storage.s3.endpoint must be set when storage.backend is \"s3\"")
		}
		if strings.TrimSpace(c.Storage.S3.Bucket) == "" {
			return errors.New("storage.s3.bucket must be set when storage.backend is \"s3\"")
		}
		if strings.TrimSpace(c.Storage.S3.AccessKeyID) == "" {
			return errors.New("storage.s3.access_key_id must be set when storage.backend is \"s3\" (or set STUDIO_S3_ACCESS_KEY_ID)")
		}
		if strings.TrimSpace(c.Storage.S3.SecretAccessKey) == "" {
			return errors.New("storage.s3.secret_access_key must be set when storage.backend is \"s3\" (or set STUDIO_S3_SECRET_ACCESS_KEY)")
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q", BackendLocal, BackendS3)
	}
	if strings.TrimSpace(c.Storage.Signing.PublicBaseURL) == "" {
		return errors.New("storage.signing.public_base_url must be set")
	}
	return nil
}

func (c *Config) validateAssets() error {
	if c.Assets.QuotaGB < 0 {
		return errors.New("assets.quota_gb must be >= 0")
	}
	if c.Assets.TTLHours < 0 {
		return errors.New("assets.ttl_hours must be >= 0")
	}
	if c.Assets.MaxSourceMiB < 0 {
		return errors.New("assets.max_source_mib must be >= 0")
	}
	if c.Assets.MaxDurationSeconds < 0 {
		return errors.New("assets.max_duration_seconds must be >= 0")
	}
	if c.Assets.CleanupInterval < 0 {
		return errors.New("assets.cleanup_interval must be >= 0")
	}
	return nil
}

func (c *Config) validateIngest() error {
	if len(c.Ingest.YouTubeHosts) == 0 {
		return errors.New("ingest.youtube_hosts must include at least one host")
	}
	if c.Ingest.MaxRedirects < 0 || c.Ingest.MaxRedirects > 20 {
		return errors.New("ingest.max_redirects must be between 0 and 20")
	}
	return ensurePositiveMap(map[string]int{
		"ingest.request_timeout": c.Ingest.RequestTimeout,
	})
}

func (c *Config) validateRender() error {
	if c.Render.LoudnessTarget < -70 || c.Render.LoudnessTarget > -5 {
		return errors.New("render.loudness_target must be between -70 and -5 LUFS")
	}
	if c.Render.LoudnessPeak < -9 || c.Render.LoudnessPeak > 0 {
		return errors.New("render.loudness_peak must be between -9 and 0 dBTP")
	}
	if c.Render.LoudnessRange < 1 || c.Render.LoudnessRange > 50 {
		return errors.New("render.loudness_range must be between 1 and 50 LU")
	}
	if c.Render.PreviewQuality < 0 || c.Render.PreviewQuality > 9 {
		return errors.New("render.preview_quality must be between 0 and 9")
	}
	if strings.TrimSpace(c.Render.AACBitrate) == "" {
		return errors.New("render.aac_bitrate must be set")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if strings.TrimSpace(c.API.Bind) == "" {
		return errors.New("api.bind must be set")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	return ensurePositiveMap(map[string]int{
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
