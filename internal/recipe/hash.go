package recipe

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// hashLength is the number of hex characters of the SHA-256 digest used as
// the preview cache key.
const hashLength = 16

// CanonicalJSON returns the stable serialization hashed for preview caching.
// Field order is fixed by the struct definition and ids/format are
// normalized, so two equivalent submissions produce identical bytes.
func CanonicalJSON(r Recipe) ([]byte, error) {
	data, err := json.Marshal(r.normalized())
	if err != nil {
		return nil, fmt.Errorf("marshal recipe: %w", err)
	}
	return data, nil
}

// Hash returns the first 16 hex characters of the SHA-256 of the recipe's
// canonical JSON.
func Hash(r Recipe) (string, error) {
	data, err := CanonicalJSON(r)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:hashLength], nil
}

// PreviewObjectName returns the per-asset object name for a cached preview
// render of the recipe with the given hash.
func PreviewObjectName(hash string) string {
	return "preview_" + hash + ".mp3"
}
