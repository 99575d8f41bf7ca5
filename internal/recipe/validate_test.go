package recipe_test

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/recipe"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/services"
)

func validRecipe() recipe.Recipe {
	return recipe.Recipe{
		AssetID: "asset-main",
		Clips: []recipe.Clip{
			{SourceAssetID: "asset-main", StartTime: 0, EndTime: 10},
			{SourceAssetID: "asset-other", StartTime: 5.5, EndTime: 30},
		},
		Format: recipe.FormatMP3,
	}
}

func testDurations() map[string]float64 {
	return map[string]float64{
		"asset-main":  120,
		"asset-other": 30,
	}
}

func TestValidateAcceptsInBoundsClips(t *testing.T) {
	if err := recipe.Validate(validRecipe(), testDurations()); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestValidateAcceptsClipEndingExactlyAtDuration(t *testing.T) {
	r := validRecipe()
	r.Clips = []recipe.Clip{{SourceAssetID: "asset-other", StartTime: 0, EndTime: 30}}
	if err := recipe.Validate(r, testDurations()); err != nil {
		t.Fatalf("Validate failed for end == duration: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*recipe.Recipe)
		mention string
	}{
		{
			name:    "empty clips",
			mutate:  func(r *recipe.Recipe) { r.Clips = nil },
			mention: "no clips",
		},
		{
			name:    "unsupported format",
			mutate:  func(r *recipe.Recipe) { r.Format = "flac" },
			mention: "format",
		},
		{
			name:    "missing source id",
			mutate:  func(r *recipe.Recipe) { r.Clips[1].SourceAssetID = "" },
			mention: "clip 1",
		},
		{
			name:    "unknown source",
			mutate:  func(r *recipe.Recipe) { r.Clips[0].SourceAssetID = "asset-ghost" },
			mention: "unknown source asset",
		},
		{
			name:    "negative start",
			mutate:  func(r *recipe.Recipe) { r.Clips[0].StartTime = -0.5 },
			mention: "negative",
		},
		{
			name:    "zero length clip",
			mutate:  func(r *recipe.Recipe) { r.Clips[0].StartTime = 10 },
			mention: "not before",
		},
		{
			name:    "start after end",
			mutate:  func(r *recipe.Recipe) { r.Clips[0].StartTime = 11 },
			mention: "not before",
		},
		{
			name:    "end past duration",
			mutate:  func(r *recipe.Recipe) { r.Clips[1].EndTime = 30.001 },
			mention: "exceeds source duration",
		},
		{
			name:    "nan start",
			mutate:  func(r *recipe.Recipe) { r.Clips[0].StartTime = math.NaN() },
			mention: "finite",
		},
		{
			name:    "infinite end",
			mutate:  func(r *recipe.Recipe) { r.Clips[0].EndTime = math.Inf(1) },
			mention: "finite",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := validRecipe()
			tc.mutate(&r)
			err := recipe.Validate(r, testDurations())
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation marker, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.mention) {
				t.Fatalf("expected message mentioning %q, got %q", tc.mention, err.Error())
			}
		})
	}
}

func TestSourceAssetIDsDeduplicates(t *testing.T) {
	r := recipe.Recipe{
		Clips: []recipe.Clip{
			{SourceAssetID: "b", StartTime: 0, EndTime: 1},
			{SourceAssetID: "a", StartTime: 0, EndTime: 1},
			{SourceAssetID: "b", StartTime: 1, EndTime: 2},
		},
	}
	ids := r.SourceAssetIDs()
	if len(ids) != 2 || ids[0] != "b" || ids[1] != "a" {
		t.Fatalf("expected first-appearance order b,a got %v", ids)
	}
}

func TestTotalDuration(t *testing.T) {
	r := validRecipe()
	if got := r.TotalDuration(); got != 34.5 {
		t.Fatalf("expected total duration 34.5, got %v", got)
	}
}
