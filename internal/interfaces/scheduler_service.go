package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/specials/internal/models"
)

// JobHandler is the body of a scheduled job. store is empty for a run
// covering every store the job knows.
type JobHandler func(ctx context.Context, store string) (models.RunOutcome, error)

// JobDefinition registers one job with the scheduler
type JobDefinition struct {
	ID          string
	Name        string
	Kind        string   // groups jobs sharing a body, e.g. both catalogue_update runs
	Schedule    string   // standard five-field cron expression
	Description string
	Stores      []string // store slugs a manual trigger may name
	// Ready returns an error wrapping models.ErrNotConfigured when the job's
	// source cannot run. Nil means always ready.
	Ready       func() error
	Handler     JobHandler
}

// JobStatus represents the current status of a scheduled job
type JobStatus struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Kind        string         `json:"kind"`
	Schedule    string         `json:"schedule"`
	Description string         `json:"description,omitempty"`
	NextRun     *time.Time     `json:"next_run,omitempty"`
	IsRunning   bool           `json:"is_running"`
	LastRun     *models.JobRun `json:"last_run,omitempty"`
}

// SchedulerStatus is the observability snapshot of the scheduler
type SchedulerStatus struct {
	Running        bool                     `json:"running"`
	Jobs           []JobStatus              `json:"jobs"`
	LastRunPerKind map[string]models.JobRun `json:"last_run_per_kind"`
}

// SchedulerService manages cron-based scheduling of ingestion jobs
type SchedulerService interface {
	// Start begins firing cron triggers. Calling it while running is a no-op.
	Start() error

	// Stop cancels future triggers; a run in progress completes.
	Stop() error

	// IsRunning returns true if scheduler is active
	IsRunning() bool

	// RegisterJob adds a job. Job ids are unique.
	RegisterJob(job JobDefinition) error

	// TriggerManually runs a job now in the caller's goroutine. It fails with
	// models.ErrAlreadyRunning while the same job id is in flight.
	TriggerManually(ctx context.Context, jobID, store string) (*models.JobRun, error)

	// GetJobStatus returns the status of a specific job
	GetJobStatus(jobID string) (*JobStatus, error)

	// Status returns the status of every job
	Status() SchedulerStatus
}
