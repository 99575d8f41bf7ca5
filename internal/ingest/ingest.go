package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/assets"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/config"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/logging"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/media/ffprobe"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/services"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/waveform"
)

// Stage names reported while an ingestion job runs.
const (
	StageFetch    = "fetch"
	StageProbe    = "probe"
	StageStore    = "store"
	StageWaveform = "waveform"
)

// ProgressFunc receives coarse progress while an ingestion runs. The
// percent values are monotonically non-decreasing.
type ProgressFunc func(stage string, percent int)

// Request describes one ingestion source.
type Request struct {
	SourceType     string `json:"sourceType"`
	URL            string `json:"url,omitempty"`
	RightsAttested bool   `json:"rightsAttested,omitempty"`
	Filename       string `json:"filename,omitempty"`
	UploadPath     string `json:"uploadPath,omitempty"`
}

// Result is the job result of a completed ingestion.
type Result struct {
	AssetID  string  `json:"assetId"`
	Duration float64 `json:"duration"`
}

// Service turns ingestion requests into stored assets.
type Service struct {
	cfg    *config.Config
	assets *assets.Service
	client *http.Client
	logger *slog.Logger
}

// NewService wires an ingestion service against the asset store.
func NewService(cfg *config.Config, assetSvc *assets.Service, logger *slog.Logger) *Service {
	return &Service{
		cfg:    cfg,
		assets: assetSvc,
		client: newHTTPClient(cfg.IngestTimeout(), cfg.Ingest.MaxRedirects),
		logger: logging.NewComponentLogger(logger, "ingest"),
	}
}

// Validate runs every check that can fail before a job or temp file exists:
// the storage quota and the source-specific rules. Callers invoke it
// synchronously so a rejected request never creates a job.
func (s *Service) Validate(ctx context.Context, req Request) error {
	ok, err := s.assets.CheckQuota(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return services.Wrap(services.ErrQuotaExceeded, "ingest", "validate", "storage quota exceeded", nil)
	}

	switch req.SourceType {
	case assets.SourceYouTube:
		return s.validateYouTube(req)
	case assets.SourceURL:
		parsed, parseErr := parseSourceURL(req.URL)
		if parseErr != nil {
			return parseErr
		}
		return guardHost(ctx, parsed.Hostname())
	case assets.SourceAudioFile, assets.SourceVideoFile:
		if strings.TrimSpace(req.UploadPath) == "" {
			return services.Wrap(services.ErrValidation, "ingest", "validate", "upload has not been spooled", nil)
		}
		if _, statErr := os.Stat(req.UploadPath); statErr != nil {
			return services.Wrap(services.ErrValidation, "ingest", "validate", "spooled upload is missing", statErr)
		}
		return nil
	default:
		return services.Wrap(services.ErrValidation, "ingest", "validate", fmt.Sprintf("unknown source type %q", req.SourceType), nil)
	}
}

// Run executes one ingestion to completion: fetch or demux the source,
// probe it, store the asset, and extract waveform peaks. The temp working
// directory (and any spooled upload) is removed on every exit path.
func (s *Service) Run(ctx context.Context, req Request, progress ProgressFunc) (*Result, error) {
	logger := logging.WithContext(ctx, s.logger)

	if err := os.MkdirAll(s.cfg.Paths.StagingDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrStorage, "ingest", "run", "create staging dir", err)
	}
	tempDir, err := os.MkdirTemp(s.cfg.Paths.StagingDir, "ingest-*")
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "ingest", "run", "create work dir", err)
	}
	defer os.RemoveAll(tempDir)
	if req.UploadPath != "" {
		defer os.Remove(req.UploadPath)
	}

	report(progress, StageFetch, 10)
	audioPath, err := s.materialize(ctx, req, tempDir)
	if err != nil {
		return nil, err
	}
	report(progress, StageFetch, 40)

	report(progress, StageProbe, 50)
	probe, err := ffprobe.Inspect(ctx, s.cfg.FFprobeBinary(), audioPath)
	if err != nil {
		if ctx.Err() != nil {
			return nil, services.Wrap(services.ErrAborted, "ingest", "probe", "probe aborted", ctx.Err())
		}
		return nil, services.Wrap(services.ErrValidation, "ingest", "probe", "source is not readable media", err)
	}
	audioStream, ok := probe.PrimaryAudio()
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "ingest", "probe", "source contains no audio stream", nil)
	}
	duration := probe.DurationSeconds()
	if maxDuration := s.cfg.Assets.MaxDurationSeconds; maxDuration > 0 && duration > maxDuration {
		return nil, services.Wrap(services.ErrValidation, "ingest", "probe",
			fmt.Sprintf("duration %.1fs exceeds the %.0fs cap", duration, maxDuration), nil)
	}

	report(progress, StageStore, 70)
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(audioPath)), ".")
	asset, err := s.assets.Create(ctx, assets.CreateInput{
		OriginalPath: audioPath,
		OriginalExt:  ext,
		PreparedPath: audioPath,
		PreparedExt:  ext,
		Audio: assets.AudioInfo{
			Duration:   duration,
			Format:     probe.ContainerFormat(),
			SampleRate: probe.SampleRateHz(),
			Channels:   audioStream.Channels,
			BitRate:    probe.BitRate(),
		},
		Provenance: s.provenance(req),
	})
	if err != nil {
		return nil, err
	}

	report(progress, StageWaveform, 85)
	peaks, err := waveform.Extract(ctx, s.cfg.FFmpegBinary(), audioPath, waveform.DefaultResolutions)
	if err != nil {
		s.rollback(ctx, asset.AssetID)
		return nil, err
	}
	if err := s.assets.WritePeaks(ctx, asset.AssetID, peaks); err != nil {
		s.rollback(ctx, asset.AssetID)
		return nil, err
	}

	logger.Info("ingestion complete",
		logging.String(logging.FieldAssetID, asset.AssetID),
		logging.String("source_type", req.SourceType),
		logging.Float64("duration_seconds", duration),
	)
	return &Result{AssetID: asset.AssetID, Duration: duration}, nil
}

// materialize produces the local audio file for the requested source.
func (s *Service) materialize(ctx context.Context, req Request, tempDir string) (string, error) {
	switch req.SourceType {
	case assets.SourceYouTube:
		if err := s.validateYouTube(req); err != nil {
			return "", err
		}
		return s.runYtDlp(ctx, req.URL, tempDir)
	case assets.SourceURL:
		return s.fetchURL(ctx, req.URL, tempDir)
	case assets.SourceAudioFile:
		if _, err := os.Stat(req.UploadPath); err != nil {
			return "", services.Wrap(services.ErrValidation, "ingest", "run", "spooled upload is missing", err)
		}
		return req.UploadPath, nil
	case assets.SourceVideoFile:
		if _, err := os.Stat(req.UploadPath); err != nil {
			return "", services.Wrap(services.ErrValidation, "ingest", "run", "spooled upload is missing", err)
		}
		return s.extractAudio(ctx, req.UploadPath, tempDir)
	default:
		return "", services.Wrap(services.ErrValidation, "ingest", "run", fmt.Sprintf("unknown source type %q", req.SourceType), nil)
	}
}

func (s *Service) provenance(req Request) assets.Provenance {
	prov := assets.Provenance{SourceType: req.SourceType}
	switch req.SourceType {
	case assets.SourceYouTube:
		prov.SourceURL = req.URL
		prov.VideoID = youtubeVideoID(req.URL)
		if req.RightsAttested {
			now := time.Now().UTC()
			prov.RightsAttestedAt = &now
		}
	case assets.SourceURL:
		prov.SourceURL = req.URL
	case assets.SourceAudioFile, assets.SourceVideoFile:
		prov.OriginalFilename = SanitizeFilename(req.Filename)
	}
	return prov
}

// rollback removes a created asset after a later ingestion step failed, so
// a failed job never leaves a half-registered asset. Runs detached from the
// caller's context so cancellation does not skip it.
func (s *Service) rollback(ctx context.Context, assetID string) {
	cleanupCtx := context.WithoutCancel(ctx)
	if err := s.assets.Delete(cleanupCtx, assetID); err != nil {
		logging.WithContext(ctx, s.logger).Warn("rollback of partial asset failed",
			logging.String(logging.FieldAssetID, assetID),
			logging.Error(err),
		)
	}
}

func report(progress ProgressFunc, stage string, percent int) {
	if progress != nil {
		progress(stage, percent)
	}
}
