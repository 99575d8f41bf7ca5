package render

import (
	"errors"
	"strings"
	"testing"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/recipe"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/services"
)

func TestBuildPlanOrdersDistinctInputs(t *testing.T) {
	rec := recipe.Recipe{
		AssetID: "asset-main",
		Clips: []recipe.Clip{
			{SourceAssetID: "asset-main", StartTime: 0, EndTime: 2.5},
			{SourceAssetID: "asset-other", StartTime: 1, EndTime: 3},
			{SourceAssetID: "asset-main", StartTime: 10, EndTime: 12},
		},
		Format: recipe.FormatMP3,
	}
	paths := map[string]string{
		"asset-main":  "/data/assets/asset-main/prepared.m4a",
		"asset-other": "/data/assets/asset-other/prepared.m4a",
	}

	p, err := buildPlan(rec, paths)
	if err != nil {
		t.Fatalf("buildPlan returned error: %v", err)
	}
	if len(p.inputs) != 2 {
		t.Fatalf("expected 2 distinct inputs, got %d: %v", len(p.inputs), p.inputs)
	}
	if p.inputs[0] != paths["asset-main"] || p.inputs[1] != paths["asset-other"] {
		t.Fatalf("inputs out of first-appearance order: %v", p.inputs)
	}

	filter := p.filter("")
	for _, want := range []string{
		"[0:a]atrim=start=0:end=2.5",
		"[1:a]atrim=start=1:end=3",
		"[0:a]atrim=start=10:end=12",
		"asetpts=PTS-STARTPTS",
		"aformat=sample_rates=44100:channel_layouts=stereo",
		"[c0][c1][c2]concat=n=3:v=0:a=1[out]",
	} {
		if !strings.Contains(filter, want) {
			t.Fatalf("filtergraph missing %q:\n%s", want, filter)
		}
	}
}

func TestBuildPlanRejectsMissingSourcePath(t *testing.T) {
	rec := recipe.Recipe{
		AssetID: "asset-main",
		Clips: []recipe.Clip{
			{SourceAssetID: "asset-main", StartTime: 0, EndTime: 1},
			{SourceAssetID: "asset-gone", StartTime: 0, EndTime: 1},
		},
		Format: recipe.FormatMP3,
	}
	paths := map[string]string{"asset-main": "/data/assets/asset-main/prepared.m4a"}

	_, err := buildPlan(rec, paths)
	if !errors.Is(err, services.ErrRender) {
		t.Fatalf("expected render error, got %v", err)
	}
	if !strings.Contains(err.Error(), "asset-gone") {
		t.Fatalf("expected error to name the missing asset: %v", err)
	}
}

func TestBuildPlanRejectsEmptyRecipe(t *testing.T) {
	_, err := buildPlan(recipe.Recipe{AssetID: "asset-main", Format: recipe.FormatMP3}, nil)
	if !errors.Is(err, services.ErrRender) {
		t.Fatalf("expected render error, got %v", err)
	}
	if !strings.Contains(err.Error(), "no clips") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestFilterAppendsAfterConcat(t *testing.T) {
	rec := recipe.Recipe{
		AssetID: "asset-main",
		Clips:   []recipe.Clip{{SourceAssetID: "asset-main", StartTime: 0, EndTime: 5}},
		Format:  recipe.FormatMP3,
	}
	p, err := buildPlan(rec, map[string]string{"asset-main": "/data/a/prepared.m4a"})
	if err != nil {
		t.Fatalf("buildPlan returned error: %v", err)
	}

	plain := p.filter("")
	if !strings.HasSuffix(plain, "concat=n=1:v=0:a=1[out]") {
		t.Fatalf("unexpected plain filter: %s", plain)
	}
	extended := p.filter("loudnorm=I=-14")
	if !strings.HasSuffix(extended, "concat=n=1:v=0:a=1,loudnorm=I=-14[out]") {
		t.Fatalf("unexpected extended filter: %s", extended)
	}
}

func TestFormatSeconds(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{1.5, "1.5"},
		{30.25, "30.25"},
		{0.001, "0.001"},
		{120, "120"},
	}
	for _, tc := range cases {
		if got := formatSeconds(tc.in); got != tc.want {
			t.Fatalf("formatSeconds(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
