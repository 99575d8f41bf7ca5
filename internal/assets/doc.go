// Package assets manages the lifecycle of stored audio assets. Every asset
// lives under the storage prefix assets/{assetId}/ as a set of role-tagged
// objects (original, prepared, metadata.json, peaks.json, edits.json, cached
// previews). The original audio is immutable once probed; edits only add or
// replace the prepared audio and its derived documents.
//
// Deletion is reference-safe: a saved recipe may source clips from another
// asset, so deletes and the TTL sweep scan every edits.json before removing
// anything a dependent still needs.
package assets
