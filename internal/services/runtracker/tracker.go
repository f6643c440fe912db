// Package runtracker keeps the latest run of every job id and enforces
// single-flight execution per job id.
package runtracker

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/specials/internal/models"
)

type snapshot map[string]models.JobRun

// Tracker holds the most recent JobRun per job id. Writers serialize on a
// mutex and publish a fresh copy of the whole map; readers load the current
// copy without locking and can never see a half-written run.
type Tracker struct {
	mu      sync.Mutex
	running map[string]bool
	prior   map[string]*models.JobRun // run visible when the in-flight run started
	runs    atomic.Pointer[snapshot]
	now     func() time.Time
}

// New creates an empty Tracker
func New() *Tracker {
	t := &Tracker{
		running: make(map[string]bool),
		prior:   make(map[string]*models.JobRun),
		now:     time.Now,
	}
	empty := snapshot{}
	t.runs.Store(&empty)
	return t
}

// Start marks jobID as running and publishes a running JobRun. It fails with
// models.ErrAlreadyRunning while a run of the same id is in progress.
func (t *Tracker) Start(jobID, kind string, manual bool, store string) (models.JobRun, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running[jobID] {
		return models.JobRun{}, fmt.Errorf("%w: %s", models.ErrAlreadyRunning, jobID)
	}
	t.running[jobID] = true
	if last, ok := (*t.runs.Load())[jobID]; ok {
		prev := last.Clone()
		t.prior[jobID] = &prev
	} else {
		delete(t.prior, jobID)
	}

	run := models.JobRun{
		JobID:     jobID,
		Kind:      kind,
		Manual:    manual,
		Store:     store,
		Status:    models.RunStatusRunning,
		StartedAt: t.now(),
		Stores:    map[string]models.StoreOutcome{},
	}
	t.publish(run)
	return run.Clone(), nil
}

// Finish completes the run started for jobID with the job body's outcome and
// replaces the stored record. runErr is a failure of the job as a whole.
func (t *Tracker) Finish(run models.JobRun, outcome models.RunOutcome, runErr error) models.JobRun {
	t.mu.Lock()
	defer t.mu.Unlock()

	finished := t.now()
	run.FinishedAt = &finished
	run.Duration = finished.Sub(run.StartedAt)
	run.Stores = make(map[string]models.StoreOutcome, len(outcome.Stores))
	for store, o := range outcome.Stores {
		run.Stores[store] = o
	}
	run.Expired = outcome.ExpiredCleared

	switch {
	case runErr != nil:
		run.Status = models.RunStatusFailed
		run.Error = runErr.Error()
	case outcome.Failures() == 0:
		run.Status = models.RunStatusCompleted
	case outcome.Failures() == len(outcome.Stores):
		run.Status = models.RunStatusFailed
	default:
		run.Status = models.RunStatusPartial
	}

	delete(t.running, run.JobID)
	delete(t.prior, run.JobID)
	t.publish(run)
	return run.Clone()
}

// Abandon releases jobID without publishing a run, restoring the run that
// was visible when Start succeeded. Used when a run turns out not to be needed.
func (t *Tracker) Abandon(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running[jobID] {
		return
	}
	delete(t.running, jobID)

	next := t.copyCurrent()
	if previous, ok := t.prior[jobID]; ok {
		next[jobID] = *previous
		delete(t.prior, jobID)
	} else {
		delete(next, jobID)
	}
	t.runs.Store(&next)
}

// IsRunning reports whether jobID has a run in progress
func (t *Tracker) IsRunning(jobID string) bool {
	run, ok := t.Last(jobID)
	return ok && run.Running()
}

// Last returns the latest run of jobID
func (t *Tracker) Last(jobID string) (models.JobRun, bool) {
	runs := *t.runs.Load()
	run, ok := runs[jobID]
	if !ok {
		return models.JobRun{}, false
	}
	return run.Clone(), true
}

// Status returns a copy of the latest run of every job id
func (t *Tracker) Status() map[string]models.JobRun {
	runs := *t.runs.Load()
	out := make(map[string]models.JobRun, len(runs))
	for id, run := range runs {
		out[id] = run.Clone()
	}
	return out
}

// LastPerKind returns, per job kind, the most recently started run
func (t *Tracker) LastPerKind() map[string]models.JobRun {
	runs := *t.runs.Load()
	out := make(map[string]models.JobRun)
	for _, run := range runs {
		if prev, ok := out[run.Kind]; ok && !run.StartedAt.After(prev.StartedAt) {
			continue
		}
		out[run.Kind] = run.Clone()
	}
	return out
}

// publish must be called with mu held
func (t *Tracker) publish(run models.JobRun) {
	next := t.copyCurrent()
	next[run.JobID] = run
	t.runs.Store(&next)
}

func (t *Tracker) copyCurrent() snapshot {
	current := *t.runs.Load()
	next := make(snapshot, len(current)+1)
	for id, r := range current {
		next[id] = r
	}
	return next
}
