package api

import (
	"encoding/json"
	"time"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/assets"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/deps"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/jobs"
)

// FromJob converts a job row to its polling representation. Queue position
// and download URL depend on request-time state and are filled by handlers.
func FromJob(job *jobs.Job) JobView {
	if job == nil {
		return JobView{}
	}
	view := JobView{
		JobID:    job.ID,
		Type:     string(job.Type),
		Status:   string(job.Status),
		Progress: job.Progress,
		Stage:    job.Stage,
		AssetID:  job.AssetID,
	}
	switch job.Status {
	case jobs.StatusComplete:
		if job.ResultJSON != "" {
			view.Result = json.RawMessage(job.ResultJSON)
		}
	case jobs.StatusFailed, jobs.StatusCancelled:
		view.Error = &JobError{Code: job.ErrorCode, Message: job.ErrorMessage}
	}
	view.CreatedAt = formatTime(job.CreatedAt)
	view.UpdatedAt = formatTime(job.UpdatedAt)
	if job.StartedAt != nil {
		view.StartedAt = formatTime(*job.StartedAt)
	}
	if job.FinishedAt != nil {
		view.FinishedAt = formatTime(*job.FinishedAt)
	}
	return view
}

// FromJobs converts a slice of job rows into API DTOs.
func FromJobs(items []*jobs.Job) []JobView {
	if len(items) == 0 {
		return nil
	}
	out := make([]JobView, 0, len(items))
	for _, item := range items {
		out = append(out, FromJob(item))
	}
	return out
}

// FromAsset converts an asset record to its catalog representation.
func FromAsset(asset *assets.Asset) AssetView {
	if asset == nil {
		return AssetView{}
	}
	return AssetView{
		AssetID:    asset.AssetID,
		Audio:      asset.Audio,
		Provenance: asset.Provenance,
		CreatedAt:  formatTime(asset.CreatedAt),
		UpdatedAt:  formatTime(asset.UpdatedAt),
	}
}

// FromAssets converts a slice of asset records into API DTOs.
func FromAssets(items []*assets.Asset) []AssetView {
	if len(items) == 0 {
		return nil
	}
	out := make([]AssetView, 0, len(items))
	for _, item := range items {
		out = append(out, FromAsset(item))
	}
	return out
}

// FromDependencies converts preflight results into API DTOs.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]DependencyStatus, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, DependencyStatus{
			Name:        status.Name,
			Command:     status.Command,
			Description: status.Description,
			Optional:    status.Optional,
			Available:   status.Available,
			Detail:      status.Detail,
		})
	}
	return out
}

// FromJobCounts converts a store health summary into the status payload.
func FromJobCounts(health jobs.HealthSummary) JobCounts {
	return JobCounts{
		Total:      health.Total,
		Pending:    health.Pending,
		Processing: health.Processing,
		Complete:   health.Complete,
		Failed:     health.Failed,
		Cancelled:  health.Cancelled,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
