package jobs

import (
	"database/sql"
	"errors"
	"time"
)

const jobColumns = "id, type, status, asset_id, metadata_json, result_json, error_code, error_message, progress, stage, created_at, updated_at, started_at, finished_at"

// timeLayout is RFC 3339 with fixed-width nanoseconds so stored timestamps
// compare chronologically as strings. SQL ordering and the queue-position
// count rely on that.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           string
		typeStr      string
		statusStr    string
		assetID      sql.NullString
		metadata     sql.NullString
		result       sql.NullString
		errorCode    sql.NullString
		errorMessage sql.NullString
		progress     sql.NullFloat64
		stage        sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
		startedRaw   sql.NullString
		finishedRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&typeStr,
		&statusStr,
		&assetID,
		&metadata,
		&result,
		&errorCode,
		&errorMessage,
		&progress,
		&stage,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:           id,
		Type:         Type(typeStr),
		Status:       Status(statusStr),
		AssetID:      assetID.String,
		MetadataJSON: metadata.String,
		ResultJSON:   result.String,
		ErrorCode:    errorCode.String,
		ErrorMessage: errorMessage.String,
		Progress:     progress.Float64,
		Stage:        stage.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			job.FinishedAt = &finished
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
