package api

import (
	"net/http"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/assets"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/jobs"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/logging"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/pipeline"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/recipe"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/services"
)

// handleRenderSubmit serves POST /api/assets/{id}/preview and /save. The
// recipe is validated against live asset durations before a job exists, so
// malformed submissions never enter the queue.
func (s *Server) handleRenderSubmit(w http.ResponseWriter, r *http.Request, assetID string, jobType jobs.Type) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w)
		return
	}

	var rec recipe.Recipe
	if err := decodeJSON(r, &rec); err != nil {
		s.writeServiceError(w, err)
		return
	}
	if rec.AssetID == "" {
		rec.AssetID = assetID
	}
	if rec.AssetID != assetID {
		s.writeError(w, http.StatusBadRequest, "validation",
			"recipe assetId "+rec.AssetID+" does not match the request path")
		return
	}

	durations, err := s.sourceDurations(r, rec)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if err := recipe.Validate(rec, durations); err != nil {
		s.writeServiceError(w, err)
		return
	}

	if jobType == jobs.TypePreview {
		if done := s.answerFromPreviewCache(w, r, rec); done {
			return
		}
	}

	job, err := s.store.Create(r.Context(), jobType, rec.AssetID, rec)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.runner.Submit(job)
	s.log().Info("render job submitted",
		logging.String("job_id", job.ID),
		logging.String("job_type", string(jobType)),
		logging.String("asset_id", rec.AssetID))
	s.writeJSON(w, http.StatusAccepted, SubmitResponse{JobID: job.ID, Status: string(job.Status)})
}

// sourceDurations loads every asset the recipe references and maps it to its
// probed duration for validation.
func (s *Server) sourceDurations(r *http.Request, rec recipe.Recipe) (map[string]float64, error) {
	durations := make(map[string]float64)
	for _, id := range rec.SourceAssetIDs() {
		asset, err := s.assets.Get(r.Context(), id)
		if err != nil {
			return nil, err
		}
		if asset == nil {
			return nil, services.Wrap(services.ErrNotFound, "api", "render", "asset "+id+" not found", nil)
		}
		durations[id] = asset.Audio.Duration
	}
	return durations, nil
}

// answerFromPreviewCache checks the deterministic preview key and, on a hit,
// records an immediately completed job so the client polls the same shape
// either way. Returns true when the response has been written.
func (s *Server) answerFromPreviewCache(w http.ResponseWriter, r *http.Request, rec recipe.Recipe) bool {
	hash, err := recipe.Hash(rec)
	if err != nil {
		return false
	}
	key := assets.PreviewKey(rec.AssetID, hash)
	exists, err := s.backend.Exists(r.Context(), key)
	if err != nil || !exists {
		return false
	}

	job, err := s.store.Create(r.Context(), jobs.TypePreview, rec.AssetID, rec)
	if err != nil {
		s.writeServiceError(w, err)
		return true
	}
	if _, err := s.store.Complete(r.Context(), job.ID, &pipeline.PreviewResult{PreviewKey: key, Cached: true}); err != nil {
		s.writeServiceError(w, err)
		return true
	}
	s.log().Info("preview served from cache",
		logging.String("job_id", job.ID),
		logging.String("asset_id", rec.AssetID))
	s.writeJSON(w, http.StatusOK, SubmitResponse{
		JobID:  job.ID,
		Status: string(jobs.StatusComplete),
		Cached: true,
	})
	return true
}
