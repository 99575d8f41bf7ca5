package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/assets"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/logging"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/storage"
)

// handleFiles serves the signed URLs minted by the local backend: GET
// streams an object out, PUT streams one in. Every request carries exp and
// sig query parameters bound to the method and key.
func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	local, ok := s.backend.(*storage.Local)
	if !ok {
		s.writeError(w, http.StatusNotFound, "not_found", "file serving requires the local storage backend")
		return
	}
	key := strings.TrimPrefix(r.URL.Path, "/files/")
	if key == "" {
		s.writeError(w, http.StatusNotFound, "not_found", "object not found")
		return
	}

	query := r.URL.Query()
	err := local.Signer().Verify(r.Method, key, query.Get("exp"), query.Get("sig"), time.Now())
	switch {
	case errors.Is(err, storage.ErrSignatureExpired):
		s.writeError(w, http.StatusForbidden, "expired", "signed url has expired")
		return
	case err != nil:
		s.writeError(w, http.StatusForbidden, "forbidden", "invalid signature")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.serveFileDownload(w, r, local, key)
	case http.MethodPut:
		s.serveFileUpload(w, r, local, key)
	default:
		s.methodNotAllowed(w)
	}
}

func (s *Server) serveFileDownload(w http.ResponseWriter, r *http.Request, local *storage.Local, key string) {
	info, err := local.Stat(r.Context(), key)
	if err != nil {
		if storage.IsNotExist(err) {
			s.writeError(w, http.StatusNotFound, "not_found", "object "+key+" not found")
			return
		}
		s.writeServiceError(w, err)
		return
	}
	rc, err := local.Get(r.Context(), key)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", assets.ContentTypeForKey(key))
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.log().Debug("file download interrupted",
			logging.String("key", key),
			logging.Error(err))
	}
}

func (s *Server) serveFileUpload(w http.ResponseWriter, r *http.Request, local *storage.Local, key string) {
	body := io.Reader(r.Body)
	if limit := s.cfg.MaxSourceBytes(); limit > 0 {
		body = http.MaxBytesReader(w, r.Body, limit)
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = assets.ContentTypeForKey(key)
	}
	if err := local.Put(r.Context(), key, body, r.ContentLength, contentType); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "quota_exceeded",
				"upload exceeds the configured size cap")
			return
		}
		s.writeServiceError(w, err)
		return
	}
	s.log().Info("signed upload stored", logging.String("key", key))
	w.WriteHeader(http.StatusNoContent)
}
