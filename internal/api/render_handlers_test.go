package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/assets"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/jobs"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/recipe"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/testsupport"
)

func seedTestAsset(t *testing.T, env *serverEnv) *assets.Asset {
	t.Helper()
	dir := t.TempDir()
	original := filepath.Join(dir, "original.mp3")
	prepared := filepath.Join(dir, "prepared.m4a")
	testsupport.WriteFile(t, original, 2048)
	testsupport.WriteFile(t, prepared, 1024)

	asset, err := env.assets.Create(context.Background(), assets.CreateInput{
		OriginalPath: original,
		OriginalExt:  "mp3",
		PreparedPath: prepared,
		PreparedExt:  "m4a",
		Audio:        assets.AudioInfo{Duration: 30, Format: "mp4", SampleRate: 44100, Channels: 2},
		Provenance:   assets.Provenance{SourceType: assets.SourceAudioFile, OriginalFilename: "take.mp3"},
	})
	if err != nil {
		t.Fatalf("seed asset: %v", err)
	}
	return asset
}

func recipeBody(t *testing.T, rec recipe.Recipe) *bytes.Reader {
	t.Helper()
	raw, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal recipe: %v", err)
	}
	return bytes.NewReader(raw)
}

func trimRecipe(assetID string) recipe.Recipe {
	return recipe.Recipe{
		AssetID: assetID,
		Clips: []recipe.Clip{
			{SourceAssetID: assetID, StartTime: 0, EndTime: 4},
			{SourceAssetID: assetID, StartTime: 10, EndTime: 12.5},
		},
		Format: recipe.FormatMP3,
	}
}

func TestPreviewSubmissionCreatesJob(t *testing.T) {
	env := newServerEnv(t)
	asset := seedTestAsset(t, env)

	w := env.do(t, http.MethodPost, "/api/assets/"+asset.AssetID+"/preview", recipeBody(t, trimRecipe(asset.AssetID)))
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp SubmitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	if resp.Cached {
		t.Fatal("fresh recipe should not report cached")
	}
	job, err := env.store.GetByID(context.Background(), resp.JobID)
	if err != nil || job == nil {
		t.Fatalf("submitted job missing: %v", err)
	}
	if job.Type != jobs.TypePreview || job.AssetID != asset.AssetID {
		t.Fatalf("unexpected job row: %+v", job)
	}
}

func TestPreviewRecipeValidationFailsFast(t *testing.T) {
	env := newServerEnv(t)
	asset := seedTestAsset(t, env)

	rec := trimRecipe(asset.AssetID)
	rec.Clips[1].EndTime = 99

	w := env.do(t, http.MethodPost, "/api/assets/"+asset.AssetID+"/preview", recipeBody(t, rec))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeErrorBody(t, w)
	if body.Code != "validation" || !strings.Contains(body.Message, "exceeds source duration") {
		t.Fatalf("unexpected error %+v", body)
	}

	list, err := env.store.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("rejected submission should create no jobs, found %d", len(list))
	}
}

func TestPreviewUnknownAssetRejected(t *testing.T) {
	env := newServerEnv(t)

	w := env.do(t, http.MethodPost, "/api/assets/ghost/preview", recipeBody(t, trimRecipe("ghost")))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
	if body := decodeErrorBody(t, w); body.Code != "not_found" {
		t.Fatalf("unexpected error %+v", body)
	}
}

func TestPreviewAssetIDMismatchRejected(t *testing.T) {
	env := newServerEnv(t)
	asset := seedTestAsset(t, env)

	w := env.do(t, http.MethodPost, "/api/assets/"+asset.AssetID+"/preview", recipeBody(t, trimRecipe("someone-else")))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if body := decodeErrorBody(t, w); !strings.Contains(body.Message, "does not match") {
		t.Fatalf("unexpected error %+v", body)
	}
}

func TestPreviewCacheHitCompletesWithoutRunning(t *testing.T) {
	env := newServerEnv(t)
	asset := seedTestAsset(t, env)
	ctx := context.Background()

	rec := trimRecipe(asset.AssetID)
	hash, err := recipe.Hash(rec)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	key := assets.PreviewKey(asset.AssetID, hash)
	payload := []byte("cached preview bytes")
	if err := env.backend.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), "audio/mpeg"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	w := env.do(t, http.MethodPost, "/api/assets/"+asset.AssetID+"/preview", recipeBody(t, rec))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for a cache hit, got %d: %s", w.Code, w.Body.String())
	}

	var resp SubmitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	if !resp.Cached || resp.Status != string(jobs.StatusComplete) {
		t.Fatalf("unexpected response %+v", resp)
	}

	job, err := env.store.GetByID(ctx, resp.JobID)
	if err != nil || job == nil {
		t.Fatalf("cache-hit job missing: %v", err)
	}
	if job.Status != jobs.StatusComplete {
		t.Fatalf("expected complete, got %s", job.Status)
	}
	if job.StartedAt != nil {
		t.Fatal("cache hit should never start the job")
	}
	if !strings.Contains(job.ResultJSON, `"cached":true`) {
		t.Fatalf("unexpected result %q", job.ResultJSON)
	}
}

func TestSaveSubmissionCreatesJob(t *testing.T) {
	env := newServerEnv(t)
	asset := seedTestAsset(t, env)

	rec := trimRecipe(asset.AssetID)
	rec.Normalize = true

	w := env.do(t, http.MethodPost, "/api/assets/"+asset.AssetID+"/save", recipeBody(t, rec))
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp SubmitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	job, err := env.store.GetByID(context.Background(), resp.JobID)
	if err != nil || job == nil {
		t.Fatalf("submitted job missing: %v", err)
	}
	if job.Type != jobs.TypeSave {
		t.Fatalf("unexpected job type %s", job.Type)
	}
}
