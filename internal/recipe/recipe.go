package recipe

import "strings"

// Format is a rendered output encoding.
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatWAV Format = "wav"
	FormatAAC Format = "aac"
)

// ValidFormat reports whether f is a supported output format.
func ValidFormat(f Format) bool {
	switch f {
	case FormatMP3, FormatWAV, FormatAAC:
		return true
	default:
		return false
	}
}

// ParseFormat converts a string into a known Format.
func ParseFormat(value string) (Format, bool) {
	normalized := Format(strings.ToLower(strings.TrimSpace(value)))
	return normalized, ValidFormat(normalized)
}

// Extension returns the container file extension for the format. AAC output
// is written into an m4a container.
func (f Format) Extension() string {
	if f == FormatAAC {
		return "m4a"
	}
	return string(f)
}

// Clip selects a time-bounded span of one source asset's prepared audio.
type Clip struct {
	SourceAssetID string  `json:"sourceAssetId"`
	StartTime     float64 `json:"startTime"`
	EndTime       float64 `json:"endTime"`
}

// Duration returns the clip length in seconds.
func (c Clip) Duration() float64 {
	return c.EndTime - c.StartTime
}

// Recipe is a declarative description of one rendered output: the asset being
// edited, the ordered clips to concatenate, the output format, and whether to
// apply loudness normalization.
type Recipe struct {
	AssetID   string `json:"assetId"`
	Clips     []Clip `json:"clips"`
	Format    Format `json:"format"`
	Normalize bool   `json:"normalize"`
}

// TotalDuration returns the summed clip durations in seconds.
func (r Recipe) TotalDuration() float64 {
	total := 0.0
	for _, clip := range r.Clips {
		total += clip.Duration()
	}
	return total
}

// SourceAssetIDs returns the distinct source asset ids in first-appearance
// order. Callers use it to resolve durations and local paths before
// validation and rendering.
func (r Recipe) SourceAssetIDs() []string {
	seen := make(map[string]struct{}, len(r.Clips))
	var ids []string
	for _, clip := range r.Clips {
		id := strings.TrimSpace(clip.SourceAssetID)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// normalized returns a copy with whitespace trimmed from ids and the format
// lowercased, so equivalent submissions canonicalize and hash identically.
func (r Recipe) normalized() Recipe {
	out := Recipe{
		AssetID:   strings.TrimSpace(r.AssetID),
		Format:    Format(strings.ToLower(strings.TrimSpace(string(r.Format)))),
		Normalize: r.Normalize,
	}
	out.Clips = make([]Clip, len(r.Clips))
	for i, clip := range r.Clips {
		out.Clips[i] = Clip{
			SourceAssetID: strings.TrimSpace(clip.SourceAssetID),
			StartTime:     clip.StartTime,
			EndTime:       clip.EndTime,
		}
	}
	return out
}
