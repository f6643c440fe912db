package models

import "time"

// JobRun status values
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusPartial   = "partial" // at least one store failed
	RunStatusFailed    = "failed"
)

// StoreOutcome is the result of one store within a run: either a success
// with counts, or a failure with a message.
type StoreOutcome struct {
	Success   bool   `json:"success"`
	ItemCount int    `json:"item_count"`
	Created   int    `json:"created,omitempty"`
	Updated   int    `json:"updated,omitempty"`
	Unchanged int    `json:"unchanged,omitempty"`
	Skipped   int    `json:"skipped,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// StoreSuccess builds a successful outcome.
func StoreSuccess(items int) StoreOutcome {
	return StoreOutcome{Success: true, ItemCount: items}
}

// StoreFailure builds a failed outcome from an error.
func StoreFailure(err error) StoreOutcome {
	return StoreOutcome{Success: false, Error: err.Error(), ErrorKind: ErrorKind(err)}
}

// RunOutcome is what a job body reports back to the scheduler.
type RunOutcome struct {
	Stores         map[string]StoreOutcome `json:"stores"`
	ExpiredCleared int                     `json:"expired_cleared,omitempty"`
}

// NewRunOutcome returns an outcome with an empty store map.
func NewRunOutcome() RunOutcome {
	return RunOutcome{Stores: make(map[string]StoreOutcome)}
}

// Failures returns the number of failed stores.
func (o RunOutcome) Failures() int {
	n := 0
	for _, s := range o.Stores {
		if !s.Success {
			n++
		}
	}
	return n
}

// JobRun is the Run Tracker record of one execution of a job id.
// A published JobRun is never mutated; a new value supersedes it.
type JobRun struct {
	JobID      string                  `json:"job_id"`
	Kind       string                  `json:"kind"`
	Manual     bool                    `json:"manual"`
	Store      string                  `json:"store,omitempty"` // store filter of a manual run
	Status     string                  `json:"status"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt *time.Time              `json:"finished_at,omitempty"`
	Duration   time.Duration           `json:"duration"`
	Stores     map[string]StoreOutcome `json:"stores"`
	Expired    int                     `json:"expired_cleared,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// Running reports whether the run is still in progress.
func (r JobRun) Running() bool {
	return r.Status == RunStatusRunning
}

// Clone returns a deep copy so callers cannot reach shared state.
func (r JobRun) Clone() JobRun {
	c := r
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		c.FinishedAt = &t
	}
	if r.Stores != nil {
		c.Stores = make(map[string]StoreOutcome, len(r.Stores))
		for k, v := range r.Stores {
			c.Stores[k] = v
		}
	}
	return c
}
