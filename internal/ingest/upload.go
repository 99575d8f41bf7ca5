package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/media/ffprobe"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/services"
)

const spoolChunkSize = 256 * 1024

// SpoolUpload streams an upload body to a temp file under the staging
// directory, one chunk at a time, checking cancellation and the size cap
// between chunks. The caller owns the returned cleanup until the path is
// handed to an ingestion job, which removes it with the rest of its temp
// state.
func (s *Service) SpoolUpload(ctx context.Context, body io.Reader, filename string) (string, func(), error) {
	if err := os.MkdirAll(s.cfg.Paths.StagingDir, 0o755); err != nil {
		return "", nil, services.Wrap(services.ErrStorage, "ingest", "spool", "create staging dir", err)
	}
	safe := SanitizeFilename(filename)
	tmp, err := os.CreateTemp(s.cfg.Paths.StagingDir, "upload-*."+extensionOf(safe, "bin"))
	if err != nil {
		return "", nil, services.Wrap(services.ErrStorage, "ingest", "spool", "create spool file", err)
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	limit := s.cfg.MaxSourceBytes()
	var written int64
	buf := make([]byte, spoolChunkSize)
	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			tmp.Close()
			cleanup()
			return "", nil, services.Wrap(services.ErrAborted, "ingest", "spool", "upload aborted", ctxErr)
		}
		n, readErr := body.Read(buf)
		if n > 0 {
			written += int64(n)
			if limit > 0 && written > limit {
				tmp.Close()
				cleanup()
				return "", nil, services.Wrap(services.ErrValidation, "ingest", "spool",
					fmt.Sprintf("upload exceeds the %d MiB cap", s.cfg.Assets.MaxSourceMiB), nil)
			}
			if _, writeErr := tmp.Write(buf[:n]); writeErr != nil {
				tmp.Close()
				cleanup()
				return "", nil, services.Wrap(services.ErrStorage, "ingest", "spool", "write spool file", writeErr)
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			tmp.Close()
			cleanup()
			return "", nil, services.Wrap(services.ErrValidation, "ingest", "spool", "read upload stream", readErr)
		}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, services.Wrap(services.ErrStorage, "ingest", "spool", "finish spool file", err)
	}
	return tmp.Name(), cleanup, nil
}

// extractAudio demuxes the best audio track out of an uploaded video.
// AAC-family tracks are stream-copied; anything else is transcoded to AAC
// at the configured bitrate so the result always lands in an m4a container.
func (s *Service) extractAudio(ctx context.Context, videoPath, destDir string) (string, error) {
	probe, err := ffprobe.Inspect(ctx, s.cfg.FFprobeBinary(), videoPath)
	if err != nil {
		if ctx.Err() != nil {
			return "", services.Wrap(services.ErrAborted, "ingest", "demux", "demux aborted", ctx.Err())
		}
		return "", services.Wrap(services.ErrValidation, "ingest", "demux", "probe uploaded video", err)
	}
	audio, ok := probe.PrimaryAudio()
	if !ok {
		return "", services.Wrap(services.ErrValidation, "ingest", "demux", "video contains no audio stream", nil)
	}

	codecArgs := []string{"-c:a", "aac", "-b:a", s.cfg.Render.AACBitrate}
	switch strings.ToLower(audio.CodecName) {
	case "aac", "alac":
		codecArgs = []string{"-c:a", "copy"}
	}

	dest := filepath.Join(destDir, "extracted.m4a")
	args := []string{"-y", "-hide_banner", "-nostdin", "-loglevel", "error", "-i", videoPath, "-vn"}
	args = append(args, codecArgs...)
	args = append(args, dest)

	var stderr bytes.Buffer
	cmd := commandContext(ctx, s.cfg.FFmpegBinary(), args...) //nolint:gosec
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", services.Wrap(services.ErrAborted, "ingest", "demux", "demux aborted", ctx.Err())
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return "", services.Wrap(services.ErrExternalTool, "ingest", "demux", fmt.Sprintf("ffmpeg failed: %s", detail), nil)
	}
	if info, statErr := os.Stat(dest); statErr != nil || info.Size() == 0 {
		return "", services.Wrap(services.ErrExternalTool, "ingest", "demux", "ffmpeg produced no audio", nil)
	}
	return dest, nil
}
