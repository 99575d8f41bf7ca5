package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/ingest"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/jobs"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/logging"
)

const youtubeWatchURL = "https://www.youtube.com/watch?v="

// handleIngest accepts an ingestion submission. URL-backed sources arrive as
// JSON; file sources arrive as multipart form data with the media in a "file"
// part. Validation runs synchronously, the fetch and probe run in the job.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w)
		return
	}
	contentType := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Type")))
	if strings.HasPrefix(contentType, "multipart/form-data") {
		s.handleIngestUpload(w, r)
		return
	}

	var body IngestRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeServiceError(w, err)
		return
	}
	req := ingest.Request{
		SourceType:     body.SourceType,
		URL:            body.URL,
		RightsAttested: body.RightsAttested,
		Filename:       body.Filename,
	}
	if req.URL == "" && body.VideoID != "" {
		req.URL = youtubeWatchURL + body.VideoID
	}
	s.submitIngest(w, r, req, nil)
}

func (s *Server) handleIngestUpload(w http.ResponseWriter, r *http.Request) {
	reader, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "validation", "invalid multipart payload")
		return
	}

	var req ingest.Request
	var cleanup func()
	for {
		part, partErr := reader.NextPart()
		if errors.Is(partErr, io.EOF) {
			break
		}
		if partErr != nil {
			if cleanup != nil {
				cleanup()
			}
			s.writeError(w, http.StatusBadRequest, "validation", "read multipart data: "+partErr.Error())
			return
		}
		name := part.FormName()
		if name == "" {
			_ = part.Close()
			continue
		}
		if name == "file" {
			if cleanup != nil {
				_ = part.Close()
				continue
			}
			filename := part.FileName()
			path, release, spoolErr := s.ingest.SpoolUpload(r.Context(), part, filename)
			_ = part.Close()
			if spoolErr != nil {
				s.writeServiceError(w, spoolErr)
				return
			}
			req.UploadPath = path
			cleanup = release
			if req.Filename == "" {
				req.Filename = filename
			}
			continue
		}
		payload, readErr := io.ReadAll(part)
		_ = part.Close()
		if readErr != nil {
			if cleanup != nil {
				cleanup()
			}
			s.writeError(w, http.StatusBadRequest, "validation", "read form field: "+readErr.Error())
			return
		}
		value := strings.TrimSpace(string(payload))
		switch name {
		case "sourceType":
			req.SourceType = value
		case "filename":
			if value != "" {
				req.Filename = value
			}
		case "rightsAttested":
			if parsed, parseErr := strconv.ParseBool(value); parseErr == nil {
				req.RightsAttested = parsed
			}
		}
	}

	s.submitIngest(w, r, req, cleanup)
}

// submitIngest validates the request, creates the job, and hands it to the
// runner. Once the job exists the spooled upload belongs to it; until then a
// failure releases the spool through cleanup.
func (s *Server) submitIngest(w http.ResponseWriter, r *http.Request, req ingest.Request, cleanup func()) {
	if err := s.ingest.Validate(r.Context(), req); err != nil {
		if cleanup != nil {
			cleanup()
		}
		s.writeServiceError(w, err)
		return
	}
	job, err := s.store.Create(r.Context(), jobs.TypeIngest, "", req)
	if err != nil {
		if cleanup != nil {
			cleanup()
		}
		s.writeServiceError(w, err)
		return
	}
	s.runner.Submit(job)
	s.log().Info("ingest job submitted",
		logging.String("job_id", job.ID),
		logging.String("source_type", req.SourceType))
	s.writeJSON(w, http.StatusAccepted, SubmitResponse{JobID: job.ID, Status: string(job.Status)})
}
