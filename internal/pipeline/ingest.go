package pipeline

import (
	"context"
	"encoding/json"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/ingest"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/jobs"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/logging"
	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/services"
)

// runIngest decodes the stored request and executes the ingestion. The job
// row is patched with the asset id as soon as one exists so polling clients
// can link the two before the result lands.
func (r *Runner) runIngest(ctx context.Context, job *jobs.Job) (any, error) {
	var req ingest.Request
	if err := json.Unmarshal([]byte(job.MetadataJSON), &req); err != nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "ingest", "decode ingest request", err)
	}

	result, err := r.ingest.Run(ctx, req, func(stage string, percent int) {
		r.reportProgress(ctx, job.ID, stage, float64(percent))
	})
	if err != nil {
		return nil, err
	}

	if _, err := r.store.Update(ctx, job.ID, jobs.Patch{AssetID: &result.AssetID}); err != nil {
		// Non-fatal: the result JSON still carries the asset id.
		r.logger.Debug("asset id patch dropped",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err),
		)
	}
	return result, nil
}
