package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonchyatt/ethereal-flame-studio-sub004/internal/services"
)

// Start moves a pending job into processing and records the start time.
// A job that is no longer pending (cancelled while queued, or already picked
// up) surfaces a conflict so the caller skips it.
func (s *Store) Start(ctx context.Context, id string) (*Job, error) {
	now := formatTime(time.Now())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, started_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		StatusProcessing, now, now, id, StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("start job: %w", err)
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
			return nil, services.Wrap(services.ErrNotFound, "jobs", "start", "job "+id+" not found", nil)
		}
		return nil, services.Wrap(services.ErrConflict, "jobs", "start", fmt.Sprintf("job %s is %s, not pending", id, job.Status), nil)
	}
	return s.GetByID(ctx, id)
}

// Complete marks a job complete with progress 100 and stores its result as
// JSON. Completing a job that already reached a terminal state is a safe
// no-op: a late worker result cannot overwrite a cancellation or failure.
func (s *Store) Complete(ctx context.Context, id string, result any) (*Job, error) {
	resultJSON := ""
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("marshal job result: %w", err)
		}
		resultJSON = string(raw)
	}

	now := formatTime(time.Now())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, progress = 100, stage = NULL, result_json = ?,
             error_code = NULL, error_message = NULL, finished_at = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusComplete,
		nullableString(resultJSON),
		now,
		now,
		id,
		StatusPending,
		StatusProcessing,
	)
	if err != nil {
		return nil, fmt.Errorf("complete job: %w", err)
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
			return nil, services.Wrap(services.ErrNotFound, "jobs", "complete", "job "+id+" not found", nil)
		}
		s.signals.release(id)
		return job, nil
	}
	s.signals.release(id)
	return s.GetByID(ctx, id)
}

// Fail records a failure code and message and releases the cancellation
// signal. A job already cancelled or complete keeps its state; the late
// failure is dropped.
func (s *Store) Fail(ctx context.Context, id, code, message string) (*Job, error) {
	if code == "" {
		code = "internal"
	}
	now := formatTime(time.Now())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, error_code = ?, error_message = ?, result_json = NULL,
             finished_at = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusFailed,
		code,
		nullableString(message),
		now,
		now,
		id,
		StatusPending,
		StatusProcessing,
	)
	if err != nil {
		return nil, fmt.Errorf("fail job: %w", err)
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
			return nil, services.Wrap(services.ErrNotFound, "jobs", "fail", "job "+id+" not found", nil)
		}
		s.signals.release(id)
		return job, nil
	}
	s.signals.release(id)
	return s.GetByID(ctx, id)
}

// Cancel moves a pending or processing job to cancelled, then fires its
// cancellation signal. The row is persisted before the signal fires so a
// failure handler racing the abort observes the terminal state and drops its
// write. Cancelling a terminal job returns a conflict and changes nothing.
func (s *Store) Cancel(ctx context.Context, id string) (*Job, error) {
	now := formatTime(time.Now())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, error_code = ?, error_message = ?, result_json = NULL,
             finished_at = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusCancelled,
		"cancelled",
		"job cancelled",
		now,
		now,
		id,
		StatusPending,
		StatusProcessing,
	)
	if err != nil {
		return nil, fmt.Errorf("cancel job: %w", err)
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
			return nil, services.Wrap(services.ErrNotFound, "jobs", "cancel", "job "+id+" not found", nil)
		}
		return nil, services.Wrap(services.ErrConflict, "jobs", "cancel", fmt.Sprintf("job %s already %s", id, job.Status), nil)
	}
	s.signals.release(id)
	return s.GetByID(ctx, id)
}

// RecoverOrphaned fails every job left pending or processing by a previous
// process. Their in-process work and signals are gone, so the rows would
// otherwise sit in flight forever. The daemon runs this once at startup
// before accepting work.
func (s *Store) RecoverOrphaned(ctx context.Context) (int64, error) {
	now := formatTime(time.Now())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, error_code = ?, error_message = ?, finished_at = ?, updated_at = ?
         WHERE status IN (?, ?)`,
		StatusFailed,
		"interrupted",
		"interrupted by daemon restart",
		now,
		now,
		StatusPending,
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("recover orphaned jobs: %w", err)
	}
	return res.RowsAffected()
}
