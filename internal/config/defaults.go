package config

const (
	defaultDataDir        = "~/.local/share/ethereal-studio"
	defaultStagingDir     = "~/.local/share/ethereal-studio/staging"
	defaultLogDir         = "~/.local/share/ethereal-studio/logs"
	defaultLocalRoot      = "~/.local/share/ethereal-studio/storage"
	defaultAPIBind        = "127.0.0.1:7910"
	defaultPublicBaseURL  = "http://127.0.0.1:7910"
	defaultDownloadTTL    = 900
	defaultUploadTTL      = 3600
	defaultQuotaGB        = 10
	defaultTTLHours       = 720
	defaultMaxSourceMiB   = 512
	defaultMaxDuration    = 7200
	defaultCleanupMinutes = 60
	defaultYtDlpFormat    = "bestaudio[ext=m4a]/bestaudio/best"
	defaultIngestTimeout  = 120
	defaultMaxRedirects   = 5
	defaultLoudnessTarget = -14
	defaultLoudnessPeak   = -1
	defaultLoudnessRange  = 11
	defaultAACBitrate     = "192k"
	defaultPreviewQuality = 5
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
		},
		Storage: Storage{
			Backend:   BackendLocal,
			LocalRoot: defaultLocalRoot,
			S3: S3{
				Region:         "auto",
				ForcePathStyle: true,
			},
			Signing: Signing{
				PublicBaseURL: defaultPublicBaseURL,
				DownloadTTL:   defaultDownloadTTL,
				UploadTTL:     defaultUploadTTL,
			},
		},
		Assets: Assets{
			QuotaGB:            defaultQuotaGB,
			TTLHours:           defaultTTLHours,
			MaxSourceMiB:       defaultMaxSourceMiB,
			MaxDurationSeconds: defaultMaxDuration,
			CleanupInterval:    defaultCleanupMinutes,
		},
		Ingest: Ingest{
			YouTubeHosts: []string{
				"youtube.com",
				"www.youtube.com",
				"m.youtube.com",
				"music.youtube.com",
				"youtu.be",
			},
			YtDlpFormat:    defaultYtDlpFormat,
			RequestTimeout: defaultIngestTimeout,
			MaxRedirects:   defaultMaxRedirects,
		},
		Render: Render{
			FFmpeg:         "ffmpeg",
			FFprobe:        "ffprobe",
			YtDlp:          "yt-dlp",
			LoudnessTarget: defaultLoudnessTarget,
			LoudnessPeak:   defaultLoudnessPeak,
			LoudnessRange:  defaultLoudnessRange,
			AACBitrate:     defaultAACBitrate,
			PreviewQuality: defaultPreviewQuality,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			JobComplete:    true,
			JobFailed:      true,
			IngestComplete: true,
			Cleanup:        false,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
