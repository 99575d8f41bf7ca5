package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/services"
)

var errSourceTooLarge = errors.New("source exceeds the configured size cap")

// cappedReader counts bytes off the wire and fails once the cap is crossed,
// regardless of what Content-Length claimed. Cancellation is checked per
// read so abort latency is bounded by the chunk size.
type cappedReader struct {
	ctx       context.Context
	r         io.Reader
	remaining int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return n, errSourceTooLarge
	}
	return n, err
}

// fetchURL streams a direct download into destDir and returns the file path.
func (s *Service) fetchURL(ctx context.Context, rawURL, destDir string) (string, error) {
	parsed, err := parseSourceURL(rawURL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "ingest", "fetch", "build request", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", services.Wrap(services.ErrAborted, "ingest", "fetch", "fetch aborted", ctx.Err())
		}
		var redirectErr *url.Error
		if errors.As(err, &redirectErr) && redirectErr.Err != nil {
			// Surface guard violations from CheckRedirect as-is.
			if errors.Is(redirectErr.Err, services.ErrValidation) {
				return "", redirectErr.Err
			}
		}
		return "", services.Wrap(services.ErrValidation, "ingest", "fetch", fmt.Sprintf("fetch %s", parsed.Redacted()), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", services.Wrap(services.ErrValidation, "ingest", "fetch", fmt.Sprintf("fetch %s: status %d", parsed.Redacted(), resp.StatusCode), nil)
	}

	limit := s.cfg.MaxSourceBytes()
	if limit > 0 && resp.ContentLength > limit {
		return "", services.Wrap(services.ErrValidation, "ingest", "fetch",
			fmt.Sprintf("declared size %d exceeds the %d MiB cap", resp.ContentLength, s.cfg.Assets.MaxSourceMiB), nil)
	}

	dest := filepath.Join(destDir, "source."+urlExtension(parsed, resp.Header.Get("Content-Type")))
	out, err := os.Create(dest)
	if err != nil {
		return "", services.Wrap(services.ErrStorage, "ingest", "fetch", "create download file", err)
	}

	reader := &cappedReader{ctx: ctx, r: resp.Body, remaining: limit}
	if limit <= 0 {
		reader.remaining = int64(1) << 62
	}
	_, copyErr := io.Copy(out, reader)
	closeErr := out.Close()
	if copyErr != nil {
		_ = os.Remove(dest)
		switch {
		case errors.Is(copyErr, errSourceTooLarge):
			return "", services.Wrap(services.ErrValidation, "ingest", "fetch",
				fmt.Sprintf("source exceeds the %d MiB cap", s.cfg.Assets.MaxSourceMiB), nil)
		case ctx.Err() != nil:
			return "", services.Wrap(services.ErrAborted, "ingest", "fetch", "fetch aborted", ctx.Err())
		default:
			return "", services.Wrap(services.ErrValidation, "ingest", "fetch", fmt.Sprintf("read %s", parsed.Redacted()), copyErr)
		}
	}
	if closeErr != nil {
		_ = os.Remove(dest)
		return "", services.Wrap(services.ErrStorage, "ingest", "fetch", "finish download file", closeErr)
	}
	return dest, nil
}

// urlExtension picks a filename extension for a downloaded source, from the
// URL path first and the response content type second.
func urlExtension(u *url.URL, contentType string) string {
	if ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), "."); ext != "" {
		return ext
	}
	if idx := strings.IndexByte(contentType, ';'); idx >= 0 {
		contentType = contentType[:idx]
	}
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/mp4", "audio/m4a", "audio/aac":
		return "m4a"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav"
	case "audio/ogg", "application/ogg":
		return "ogg"
	case "audio/flac", "audio/x-flac":
		return "flac"
	case "audio/webm", "video/webm":
		return "webm"
	}
	return "mp3"
}
