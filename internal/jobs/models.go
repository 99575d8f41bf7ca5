package jobs

import (
	"strings"
	"time"
)

// Type classifies what work a job performs.
type Type string

const (
	TypeIngest  Type = "ingest"
	TypePreview Type = "preview"
	TypeSave    Type = "save"
	TypeRender  Type = "render"
)

// ValidType reports whether t is a known job type.
func ValidType(t Type) bool {
	switch t {
	case TypeIngest, TypePreview, TypeSave, TypeRender:
		return true
	default:
		return false
	}
}

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusComplete, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// ActiveStatuses are the states a live job can be in.
var ActiveStatuses = []Status{StatusPending, StatusProcessing}

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusComplete,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ParseType converts a string into a known Type.
func ParseType(value string) (Type, bool) {
	normalized := Type(strings.ToLower(strings.TrimSpace(value)))
	return normalized, ValidType(normalized)
}

// DatabaseHealth captures diagnostic information about the job database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}

// HealthSummary describes aggregated job counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Complete   int
	Failed     int
	Cancelled  int
}

// Job is one unit of pipeline work. MetadataJSON carries the type-specific
// request (ingest source, preview recipe, render parameters) and ResultJSON
// the type-specific outcome; both are opaque to the store.
type Job struct {
	ID           string
	Type         Type
	Status       Status
	AssetID      string
	MetadataJSON string
	ResultJSON   string
	ErrorCode    string
	ErrorMessage string
	Progress     float64
	Stage        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

// Done reports whether the job reached a terminal state.
func (j *Job) Done() bool {
	return j.Status.Terminal()
}

// Runtime returns how long the job has been (or was) executing, zero if it
// never started.
func (j *Job) Runtime(now time.Time) time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	end := now
	if j.FinishedAt != nil {
		end = *j.FinishedAt
	}
	if end.Before(*j.StartedAt) {
		return 0
	}
	return end.Sub(*j.StartedAt)
}
