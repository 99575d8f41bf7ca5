package main

import (
	"context"
	"testing"
)

func TestAssetsListReportsEmptyCatalog(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"assets", "list"}, env.baseURL, env.configPath)
	if err != nil {
		t.Fatalf("assets list: %v", err)
	}
	requireContains(t, out, "No assets")
}

func TestAssetsListShowsCatalog(t *testing.T) {
	env := setupCLITestEnv(t)
	asset := seedCLIAsset(t, env)

	out, _, err := runCLI(t, []string{"assets", "list"}, env.baseURL, env.configPath)
	if err != nil {
		t.Fatalf("assets list: %v", err)
	}
	requireContains(t, out, asset.AssetID)
	requireContains(t, out, "0:30")
	requireContains(t, out, "audio_file")
}

func TestAssetsShowDisplaysObjects(t *testing.T) {
	env := setupCLITestEnv(t)
	asset := seedCLIAsset(t, env)

	out, _, err := runCLI(t, []string{"assets", "show", asset.AssetID}, env.baseURL, env.configPath)
	if err != nil {
		t.Fatalf("assets show: %v", err)
	}
	requireContains(t, out, asset.AssetID)
	requireContains(t, out, "44100 Hz")
	requireContains(t, out, "take.mp3")
	requireContains(t, out, "prepared.m4a")
	requireContains(t, out, "metadata.json")
}

func TestAssetsShowUnknownAssetFails(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"assets", "show", "missing-asset"}, env.baseURL, env.configPath)
	if err == nil {
		t.Fatal("expected error for unknown asset")
	}
	requireContains(t, err.Error(), "not found")
}

func TestAssetsDeleteRemovesAsset(t *testing.T) {
	env := setupCLITestEnv(t)
	asset := seedCLIAsset(t, env)

	out, _, err := runCLI(t, []string{"assets", "delete", asset.AssetID}, env.baseURL, env.configPath)
	if err != nil {
		t.Fatalf("assets delete: %v", err)
	}
	requireContains(t, out, "deleted")

	remaining, err := env.assets.Get(context.Background(), asset.AssetID)
	if err != nil {
		t.Fatalf("reload asset: %v", err)
	}
	if remaining != nil {
		t.Fatalf("expected asset to be gone, got %+v", remaining)
	}
}
