package assets

import "time"

// Source types recorded in asset provenance.
const (
	SourceYouTube   = "youtube"
	SourceURL       = "url"
	SourceVideoFile = "video_file"
	SourceAudioFile = "audio_file"
)

// AudioInfo captures the probed properties of an asset's audio.
type AudioInfo struct {
	Duration   float64 `json:"duration"`
	Format     string  `json:"format,omitempty"`
	SampleRate int     `json:"sampleRate,omitempty"`
	Channels   int     `json:"channels,omitempty"`
	BitRate    int64   `json:"bitRate,omitempty"`
}

// Provenance records where an asset's audio came from.
type Provenance struct {
	SourceType       string     `json:"sourceType"`
	SourceURL        string     `json:"sourceUrl,omitempty"`
	VideoID          string     `json:"videoId,omitempty"`
	OriginalFilename string     `json:"originalFilename,omitempty"`
	RightsAttestedAt *time.Time `json:"rightsAttestedAt,omitempty"`
}

// Asset is the record stored at assets/{assetId}/metadata.json.
type Asset struct {
	AssetID    string     `json:"assetId"`
	Audio      AudioInfo  `json:"audio"`
	Provenance Provenance `json:"provenance"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// MetadataPatch updates sections of an asset record. Nil sections are left
// untouched.
type MetadataPatch struct {
	Audio      *AudioInfo
	Provenance *Provenance
}

// CreateInput carries the materialized audio files and metadata for a new
// asset. Both files must exist on the local filesystem; Create streams them
// into storage.
type CreateInput struct {
	OriginalPath string
	OriginalExt  string
	PreparedPath string
	PreparedExt  string
	Audio        AudioInfo
	Provenance   Provenance
}
