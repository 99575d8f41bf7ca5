package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/services"
)

var commandContext = exec.CommandContext

// validateYouTube checks the URL against the configured host allow-list and
// requires an explicit rights attestation before any work starts.
func (s *Service) validateYouTube(req Request) error {
	raw := strings.TrimSpace(req.URL)
	if raw == "" {
		return services.Wrap(services.ErrValidation, "ingest", "validate", "url is required", nil)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return services.Wrap(services.ErrValidation, "ingest", "validate", fmt.Sprintf("invalid url %q", raw), err)
	}
	if !strings.EqualFold(parsed.Scheme, "https") {
		return services.Wrap(services.ErrValidation, "ingest", "validate", "youtube sources require https", nil)
	}
	if !s.youtubeHostAllowed(parsed.Hostname()) {
		return services.Wrap(services.ErrValidation, "ingest", "validate", fmt.Sprintf("host %q is not an allowed youtube domain", parsed.Hostname()), nil)
	}
	if !req.RightsAttested {
		return services.Wrap(services.ErrValidation, "ingest", "validate", "rights attestation is required for youtube sources", nil)
	}
	return nil
}

func (s *Service) youtubeHostAllowed(host string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return false
	}
	allowed := func(candidate string) bool {
		for _, entry := range s.cfg.Ingest.YouTubeHosts {
			if strings.EqualFold(strings.TrimSpace(entry), candidate) {
				return true
			}
		}
		return false
	}
	if allowed(host) {
		return true
	}
	// A config listing only the bare domain still admits its common mobile
	// and music subdomains.
	for _, prefix := range []string{"www.", "m.", "music."} {
		if strings.HasPrefix(host, prefix) && allowed(host[len(prefix):]) {
			return true
		}
	}
	return false
}

// youtubeVideoID extracts the video id for provenance, empty when the URL
// shape is unrecognized.
func youtubeVideoID(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	if strings.EqualFold(parsed.Hostname(), "youtu.be") {
		segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
		if len(segments) > 0 {
			return segments[0]
		}
		return ""
	}
	if id := parsed.Query().Get("v"); id != "" {
		return id
	}
	for _, prefix := range []string{"/shorts/", "/embed/", "/live/"} {
		if rest, ok := strings.CutPrefix(parsed.Path, prefix); ok {
			if idx := strings.IndexByte(rest, '/'); idx >= 0 {
				rest = rest[:idx]
			}
			return rest
		}
	}
	return ""
}

// runYtDlp downloads the audio track into destDir and returns the file path.
func (s *Service) runYtDlp(ctx context.Context, rawURL, destDir string) (string, error) {
	args := []string{
		"--no-playlist",
		"--no-progress",
		"-f", s.cfg.Ingest.YtDlpFormat,
		"-o", filepath.Join(destDir, "source.%(ext)s"),
	}
	if limit := s.cfg.MaxSourceBytes(); limit > 0 {
		args = append(args, "--max-filesize", strconv.FormatInt(limit, 10))
	}
	args = append(args, "--", rawURL)

	var stderr bytes.Buffer
	cmd := commandContext(ctx, s.cfg.YtDlpBinary(), args...) //nolint:gosec
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", services.Wrap(services.ErrAborted, "ingest", "download", "download aborted", ctx.Err())
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return "", services.Wrap(services.ErrExternalTool, "ingest", "download", fmt.Sprintf("yt-dlp failed: %s", detail), nil)
	}

	// yt-dlp exits zero when --max-filesize skips the download, so a missing
	// output file is the only signal for that case.
	entries, err := os.ReadDir(destDir)
	if err != nil {
		return "", services.Wrap(services.ErrStorage, "ingest", "download", "scan download dir", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), "source.") {
			return filepath.Join(destDir, entry.Name()), nil
		}
	}
	return "", services.Wrap(services.ErrValidation, "ingest", "download",
		fmt.Sprintf("yt-dlp produced no file (source may exceed the %d MiB cap)", s.cfg.Assets.MaxSourceMiB), nil)
}
