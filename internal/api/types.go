package api

import (
	"encoding/json"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/assets"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// JobView is the polling representation of a job. Exactly one of Result and
// Error is set once the job is terminal.
type JobView struct {
	JobID         string          `json:"jobId"`
	Type          string          `json:"type"`
	Status        string          `json:"status"`
	Progress      float64         `json:"progress"`
	Stage         string          `json:"stage,omitempty"`
	AssetID       string          `json:"assetId,omitempty"`
	QueuePosition *int            `json:"queuePosition,omitempty"`
	Result        json.RawMessage `json:"result,omitempty"`
	Error         *JobError       `json:"error,omitempty"`
	DownloadURL   string          `json:"downloadUrl,omitempty"`
	CreatedAt     string          `json:"createdAt,omitempty"`
	UpdatedAt     string          `json:"updatedAt,omitempty"`
	StartedAt     string          `json:"startedAt,omitempty"`
	FinishedAt    string          `json:"finishedAt,omitempty"`
}

// JobError carries a failed job's classification and detail.
type JobError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job JobView `json:"job"`
}

// SubmitResponse acknowledges an accepted submission. Cached is set when a
// preview request was answered from the render cache without running a job.
type SubmitResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
	Cached bool   `json:"cached,omitempty"`
}

// CallbackRequest is the worker completion webhook body.
type CallbackRequest struct {
	JobID  string          `json:"jobId"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *JobError       `json:"error,omitempty"`
}

// IngestRequest is the JSON submission body for URL-backed sources. File
// sources arrive as multipart form data instead. VideoID is an alias for the
// canonical YouTube watch URL.
type IngestRequest struct {
	SourceType     string `json:"sourceType"`
	URL            string `json:"url,omitempty"`
	VideoID        string `json:"videoId,omitempty"`
	RightsAttested bool   `json:"rightsAttested,omitempty"`
	Filename       string `json:"filename,omitempty"`
}

// AssetView is the catalog representation of a stored asset.
type AssetView struct {
	AssetID    string            `json:"assetId"`
	Audio      assets.AudioInfo  `json:"audio"`
	Provenance assets.Provenance `json:"provenance"`
	CreatedAt  string            `json:"createdAt,omitempty"`
	UpdatedAt  string            `json:"updatedAt,omitempty"`
}

// AssetObject describes one stored object under an asset's prefix.
type AssetObject struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// AssetListResponse wraps the asset catalog.
type AssetListResponse struct {
	Assets []AssetView `json:"assets"`
}

// AssetResponse wraps a single asset with its stored objects.
type AssetResponse struct {
	Asset   AssetView     `json:"asset"`
	Objects []AssetObject `json:"objects,omitempty"`
}

// DeleteResponse reports the outcome of an asset deletion.
type DeleteResponse struct {
	Deleted bool   `json:"deleted"`
	AssetID string `json:"assetId"`
}

// DependencyStatus captures availability of one external tool.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
	Version     string `json:"version,omitempty"`
}

// JobCounts aggregates the job table by status.
type JobCounts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Complete   int `json:"complete"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	StoreDBPath  string             `json:"storeDbPath"`
	LockFilePath string             `json:"lockFilePath"`
	StorageKind  string             `json:"storageKind"`
	Jobs         JobCounts          `json:"jobs"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// StatusResponse wraps the daemon status payload.
type StatusResponse struct {
	Status DaemonStatus `json:"status"`
}

// ErrorBody is the error envelope carried by non-2xx responses.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}
