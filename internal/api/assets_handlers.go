package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/assets"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/jobs"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/logging"
)

func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}
	list, err := s.assets.List(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, AssetListResponse{Assets: FromAssets(list)})
}

// handleAssetItem serves GET/DELETE /api/assets/{id} and the render
// submission subresources /preview and /save.
func (s *Server) handleAssetItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/assets/")
	if rest == "" {
		s.writeError(w, http.StatusNotFound, "not_found", "asset not found")
		return
	}
	if id, ok := strings.CutSuffix(rest, "/preview"); ok && !strings.Contains(id, "/") {
		s.handleRenderSubmit(w, r, id, jobs.TypePreview)
		return
	}
	if id, ok := strings.CutSuffix(rest, "/save"); ok && !strings.Contains(id, "/") {
		s.handleRenderSubmit(w, r, id, jobs.TypeSave)
		return
	}
	if strings.Contains(rest, "/") {
		s.writeError(w, http.StatusNotFound, "not_found", "asset not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleAssetGet(w, r, rest)
	case http.MethodDelete:
		s.handleAssetDelete(w, r, rest)
	default:
		s.methodNotAllowed(w)
	}
}

func (s *Server) handleAssetGet(w http.ResponseWriter, r *http.Request, id string) {
	asset, err := s.assets.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if asset == nil {
		s.writeError(w, http.StatusNotFound, "not_found", "asset "+id+" not found")
		return
	}

	objects, err := s.assets.Objects(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	views := make([]AssetObject, 0, len(objects))
	prefix := assets.Prefix(id)
	for _, info := range objects {
		views = append(views, AssetObject{
			Name: strings.TrimPrefix(info.Key, prefix),
			Size: info.Size,
		})
	}
	s.writeJSON(w, http.StatusOK, AssetResponse{Asset: FromAsset(asset), Objects: views})
}

// handleAssetDelete removes an asset. Without force it refuses while jobs
// are in flight for the asset and while other recipes reference it.
func (s *Server) handleAssetDelete(w http.ResponseWriter, r *http.Request, id string) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	if !force {
		active, err := s.store.ActiveByAsset(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		if len(active) > 0 {
			s.writeError(w, http.StatusConflict, "conflict",
				fmt.Sprintf("asset %s has %d active jobs", id, len(active)))
			return
		}
	}

	if err := s.assets.DeleteSafe(r.Context(), id, force); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.log().Info("asset deleted",
		logging.String("asset_id", id),
		logging.Bool("force", force))
	s.writeJSON(w, http.StatusOK, DeleteResponse{Deleted: true, AssetID: id})
}
