package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/services"
)

// Create inserts a new pending job and registers its cancellation signal.
// metadata carries the type-specific request and is stored as JSON; nil means
// no metadata.
func (s *Store) Create(ctx context.Context, jobType Type, assetID string, metadata any) (*Job, error) {
	if !ValidType(jobType) {
		return nil, services.Wrap(services.ErrValidation, "jobs", "create", fmt.Sprintf("unknown job type %q", jobType), nil)
	}

	metadataJSON := ""
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal job metadata: %w", err)
		}
		metadataJSON = string(raw)
	}

	id := uuid.NewString()
	timestamp := formatTime(time.Now())

	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            id, type, status, asset_id, metadata_json, progress, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		jobType,
		StatusPending,
		nullableString(assetID),
		nullableString(metadataJSON),
		0.0,
		timestamp,
		timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	s.signals.register(id)
	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier, nil when no such job exists.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs filtered by status set (or all jobs when no status is
// provided), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at`

	ctx = ensureContext(ctx)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobList []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobList = append(jobList, job)
	}
	return jobList, rows.Err()
}

// ActiveByAsset returns the pending and processing jobs that reference an
// asset, oldest first. Asset deletion refuses while any exist.
func (s *Store) ActiveByAsset(ctx context.Context, assetID string) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+jobColumns+` FROM jobs WHERE asset_id = ? AND status IN (?, ?) ORDER BY created_at`,
		assetID, StatusPending, StatusProcessing,
	)
	if err != nil {
		return nil, fmt.Errorf("jobs by asset: %w", err)
	}
	defer rows.Close()

	var jobList []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobList = append(jobList, job)
	}
	return jobList, rows.Err()
}

// Patch is a partial update of a live job's mutable fields. Nil fields are
// left unchanged. Status is deliberately absent: state changes go through
// Start, Complete, Fail, and Cancel so their guards cannot be bypassed.
type Patch struct {
	Progress   *float64
	Stage      *string
	AssetID    *string
	ResultJSON *string
}

// Update applies a patch to a pending or processing job and bumps updatedAt.
// Unknown ids surface a not-found error; patches racing a terminal transition
// are dropped and the terminal row returned unchanged.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (*Job, error) {
	sets := []string{"updated_at = ?"}
	args := []any{formatTime(time.Now())}
	if patch.Progress != nil {
		sets = append(sets, "progress = ?")
		args = append(args, clampProgress(*patch.Progress))
	}
	if patch.Stage != nil {
		sets = append(sets, "stage = ?")
		args = append(args, nullableString(*patch.Stage))
	}
	if patch.AssetID != nil {
		sets = append(sets, "asset_id = ?")
		args = append(args, nullableString(*patch.AssetID))
	}
	if patch.ResultJSON != nil {
		sets = append(sets, "result_json = ?")
		args = append(args, nullableString(*patch.ResultJSON))
	}

	args = append(args, id, StatusPending, StatusProcessing)
	query := `UPDATE jobs SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND status IN (?, ?)`

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		job, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if job == nil {
			return nil, services.Wrap(services.ErrNotFound, "jobs", "update", "job "+id+" not found", nil)
		}
		return job, nil
	}
	return s.GetByID(ctx, id)
}

// QueuePosition counts the pending jobs created strictly before the given
// job. Zero means next in line; the value is only meaningful while the job
// itself is pending.
func (s *Store) QueuePosition(ctx context.Context, id string) (int, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if job == nil {
		return 0, services.Wrap(services.ErrNotFound, "jobs", "queue position", "job "+id+" not found", nil)
	}
	if job.Status != StatusPending {
		return 0, nil
	}

	var count int
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT COUNT(1) FROM jobs WHERE status = ? AND created_at < ?`,
		StatusPending, formatTime(job.CreatedAt),
	)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("queue position: %w", err)
	}
	return count, nil
}

// ClearTerminal removes complete, failed, and cancelled jobs. Rows still
// pending or processing are never touched; their goroutines and signals
// stay valid.
func (s *Store) ClearTerminal(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM jobs WHERE status IN (?, ?, ?)`,
		StatusComplete, StatusFailed, StatusCancelled,
	)
	if err != nil {
		return 0, fmt.Errorf("clear terminal jobs: %w", err)
	}
	return res.RowsAffected()
}

func clampProgress(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}
