package assets

import (
	"path"
	"strings"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/recipe"
)

const rootPrefix = "assets/"

// Prefix returns the storage key prefix holding every object of one asset.
func Prefix(assetID string) string {
	return rootPrefix + assetID + "/"
}

// MetadataKey returns the key of the asset record.
func MetadataKey(assetID string) string { return Prefix(assetID) + "metadata.json" }

// EditsKey returns the key of the saved recipe.
func EditsKey(assetID string) string { return Prefix(assetID) + "edits.json" }

// PeaksKey returns the key of the waveform peaks document.
func PeaksKey(assetID string) string { return Prefix(assetID) + "peaks.json" }

// OriginalKey returns the key of the ingested audio with the given extension.
func OriginalKey(assetID, ext string) string {
	return Prefix(assetID) + "original." + normalizeExt(ext)
}

// PreparedKey returns the key of the render-ready audio with the given
// extension.
func PreparedKey(assetID, ext string) string {
	return Prefix(assetID) + "prepared." + normalizeExt(ext)
}

// PreviewKey returns the cached preview key for a recipe hash.
func PreviewKey(assetID, recipeHash string) string {
	return Prefix(assetID) + recipe.PreviewObjectName(recipeHash)
}

// assetIDFromKey extracts the asset id from a key under the assets prefix.
func assetIDFromKey(key string) string {
	rest := strings.TrimPrefix(key, rootPrefix)
	if rest == key {
		return ""
	}
	if idx := strings.IndexByte(rest, '/'); idx > 0 {
		return rest[:idx]
	}
	return ""
}

// normalizeExt lowers an extension and strips any leading dot.
func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// ContentTypeForKey maps stored object names onto MIME types.
func ContentTypeForKey(key string) string {
	switch normalizeExt(path.Ext(key)) {
	case "mp3":
		return "audio/mpeg"
	case "m4a", "mp4", "aac":
		return "audio/mp4"
	case "wav":
		return "audio/wav"
	case "ogg", "opus":
		return "audio/ogg"
	case "flac":
		return "audio/flac"
	case "webm":
		return "audio/webm"
	case "json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
