package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/assets"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/jobs"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/logging"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/recipe"
)

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}
	var statuses []jobs.Status
	for _, value := range r.URL.Query()["status"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		statuses = append(statuses, jobs.Status(trimmed))
	}

	list, err := s.store.List(r.Context(), statuses...)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, JobListResponse{Jobs: FromJobs(list)})
}

// handleJobItem serves GET /api/jobs/{id} and POST /api/jobs/{id}/cancel.
func (s *Server) handleJobItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if rest == "" {
		s.writeError(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	if id, ok := strings.CutSuffix(rest, "/cancel"); ok && !strings.Contains(id, "/") {
		s.handleJobCancel(w, r, id)
		return
	}
	if strings.Contains(rest, "/") {
		s.writeError(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}

	job, err := s.store.GetByID(r.Context(), rest)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "not_found", "job "+rest+" not found")
		return
	}

	view := FromJob(job)
	if job.Status == jobs.StatusPending {
		if pos, posErr := s.store.QueuePosition(r.Context(), job.ID); posErr == nil {
			view.QueuePosition = &pos
		}
	}
	if url := s.resultDownloadURL(job); url != "" {
		view.DownloadURL = url
	}
	s.writeJSON(w, http.StatusOK, JobResponse{Job: view})
}

func (s *Server) handleJobCancel(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w)
		return
	}
	job, err := s.store.Cancel(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.log().Info("job cancelled via api", logging.String("job_id", id))
	s.writeJSON(w, http.StatusAccepted, JobResponse{Job: FromJob(job)})
}

// handleJobCallback is the completion webhook for out-of-process render
// workers. The callback secret is compared constant-time; an empty configured
// secret disables the check.
func (s *Server) handleJobCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w)
		return
	}
	if secret := s.cfg.API.CallbackSecret; secret != "" {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "unauthorized", "invalid callback credentials")
			return
		}
	}

	var req CallbackRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, err)
		return
	}
	if req.JobID == "" {
		s.writeError(w, http.StatusBadRequest, "validation", "jobId is required")
		return
	}

	job, err := s.store.GetByID(r.Context(), req.JobID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "not_found", "job "+req.JobID+" not found")
		return
	}

	var updated *jobs.Job
	switch req.Status {
	case string(jobs.StatusComplete):
		var result any
		if len(req.Result) > 0 {
			result = req.Result
		}
		updated, err = s.store.Complete(r.Context(), req.JobID, result)
	case string(jobs.StatusFailed):
		code, message := "render", "worker reported failure"
		if req.Error != nil {
			if req.Error.Code != "" {
				code = req.Error.Code
			}
			if req.Error.Message != "" {
				message = req.Error.Message
			}
		}
		updated, err = s.store.Fail(r.Context(), req.JobID, code, message)
	default:
		s.writeError(w, http.StatusBadRequest, "validation",
			"status must be complete or failed, got "+strconv.Quote(req.Status))
		return
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.log().Info("worker callback applied",
		logging.String("job_id", req.JobID),
		logging.String("status", req.Status))
	s.writeJSON(w, http.StatusOK, JobResponse{Job: FromJob(updated)})
}

// resultDownloadURL signs a download link when a complete job's result points
// at a stored object. Non-complete jobs and results without keys yield "".
func (s *Server) resultDownloadURL(job *jobs.Job) string {
	if job == nil || job.Status != jobs.StatusComplete || job.ResultJSON == "" || s.backend == nil {
		return ""
	}
	var keys struct {
		PreviewKey string `json:"previewKey"`
		OutputKey  string `json:"outputKey"`
		AssetID    string `json:"assetId"`
		Format     string `json:"format"`
	}
	if err := json.Unmarshal([]byte(job.ResultJSON), &keys); err != nil {
		return ""
	}
	key := keys.PreviewKey
	if key == "" {
		key = keys.OutputKey
	}
	if key == "" && job.Type == jobs.TypeSave && keys.AssetID != "" {
		// The result carries the recipe format; the stored object uses the
		// container extension (aac renders land in m4a).
		if format, ok := recipe.ParseFormat(keys.Format); ok {
			key = assets.PreparedKey(keys.AssetID, format.Extension())
		}
	}
	if key == "" {
		return ""
	}
	url, err := s.backend.SignedDownloadURL(key, s.cfg.DownloadURLTTL())
	if err != nil {
		s.log().Warn("failed to sign download url",
			logging.String("job_id", job.ID),
			logging.Error(err))
		return ""
	}
	return url
}
