package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specials/internal/common"
	"github.com/ternarybob/specials/internal/interfaces"
	"github.com/ternarybob/specials/internal/models"
	"github.com/ternarybob/specials/internal/services/runtracker"
)

// fireWindow groups cron triggers of the same instant into one batch that
// runs sequentially in registration order
const fireWindow = time.Second

// jobEntry represents a registered job with its cron entry
type jobEntry struct {
	def    interfaces.JobDefinition
	cronID cron.EntryID
}

// Service implements SchedulerService interface
type Service struct {
	cron     *cron.Cron
	tracker  *runtracker.Tracker
	logger   arbor.ILogger
	location *time.Location
	mu       sync.Mutex // Protects running
	jobMu    sync.Mutex // Protects jobs and order
	jobs     map[string]*jobEntry
	order    []string
	running  bool
	pendMu   sync.Mutex // Protects pending
	pending  []string
	window   time.Duration
}

var _ interfaces.SchedulerService = (*Service)(nil)

// NewService creates a new scheduler service evaluating cron expressions in location
func NewService(tracker *runtracker.Tracker, location *time.Location, logger arbor.ILogger) *Service {
	if location == nil {
		location = time.Local
	}
	return &Service{
		cron:     cron.New(cron.WithLocation(location)),
		tracker:  tracker,
		logger:   logger,
		location: location,
		jobs:     make(map[string]*jobEntry),
		window:   fireWindow,
	}
}

// Start begins firing cron triggers. Calling it while running is a no-op.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Debug().Msg("Scheduler already running")
		return nil
	}

	s.cron.Start()
	s.running = true

	s.jobMu.Lock()
	count := len(s.jobs)
	s.jobMu.Unlock()

	s.logger.Info().
		Int("jobs", count).
		Str("timezone", s.location.String()).
		Msg("Scheduler started")
	return nil
}

// Stop cancels future triggers. A job body already executing runs to completion.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	drained := s.cron.Stop()
	s.running = false

	common.SafeGo(s.logger, "scheduler.drain", func() {
		<-drained.Done()
		s.logger.Debug().Msg("Scheduled jobs in flight finished")
	})

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning returns true if scheduler is active
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RegisterJob registers a new job with the scheduler
func (s *Service) RegisterJob(def interfaces.JobDefinition) error {
	if def.ID == "" {
		return fmt.Errorf("job id is required")
	}
	if def.Handler == nil {
		return fmt.Errorf("job %s has no handler", def.ID)
	}
	if err := common.ValidateJobSchedule(def.Schedule); err != nil {
		return fmt.Errorf("invalid schedule for job %s: %w", def.ID, err)
	}
	if def.Kind == "" {
		def.Kind = def.ID
	}
	if def.Name == "" {
		def.Name = def.ID
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if _, exists := s.jobs[def.ID]; exists {
		return fmt.Errorf("job %s already registered", def.ID)
	}

	id := def.ID
	cronID, err := s.cron.AddFunc(def.Schedule, func() {
		s.fire(id)
	})
	if err != nil {
		return fmt.Errorf("failed to add job to cron: %w", err)
	}

	s.jobs[id] = &jobEntry{def: def, cronID: cronID}
	s.order = append(s.order, id)

	s.logger.Info().
		Str("job_id", id).
		Str("job_kind", def.Kind).
		Str("schedule", def.Schedule).
		Msg("Job registered")

	return nil
}

// TriggerManually runs a job now in the caller's goroutine, bypassing the
// cron gate but not single-flight. A store outside the job's store list
// fails with models.ErrUnknownStore and an unconfigured source with
// models.ErrNotConfigured; neither records a run.
func (s *Service) TriggerManually(ctx context.Context, jobID, store string) (*models.JobRun, error) {
	def, err := s.definition(jobID)
	if err != nil {
		return nil, err
	}

	if store != "" && !containsStore(def.Stores, store) {
		return nil, fmt.Errorf("%w: %s is not covered by job %s", models.ErrUnknownStore, store, jobID)
	}

	if def.Ready != nil {
		if err := def.Ready(); err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Manual trigger refused, source not configured")
			return nil, err
		}
	}

	s.logger.Info().Str("job_id", jobID).Str("store", store).Msg("Manual job trigger requested")
	return s.execute(ctx, def, store, true)
}

// GetJobStatus returns the status of a specific job
func (s *Service) GetJobStatus(jobID string) (*interfaces.JobStatus, error) {
	s.jobMu.Lock()
	entry, exists := s.jobs[jobID]
	s.jobMu.Unlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s", models.ErrJobNotFound, jobID)
	}

	// Get next run time from cron
	var nextRun *time.Time
	if s.IsRunning() {
		if next := s.cron.Entry(entry.cronID).Next; !next.IsZero() {
			nextRun = &next
		}
	}

	status := &interfaces.JobStatus{
		ID:          entry.def.ID,
		Name:        entry.def.Name,
		Kind:        entry.def.Kind,
		Schedule:    entry.def.Schedule,
		Description: entry.def.Description,
		NextRun:     nextRun,
		IsRunning:   s.tracker.IsRunning(jobID),
	}
	if last, ok := s.tracker.Last(jobID); ok {
		status.LastRun = &last
	}
	return status, nil
}

// Status returns every job in registration order plus the last run per kind
func (s *Service) Status() interfaces.SchedulerStatus {
	s.jobMu.Lock()
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	s.jobMu.Unlock()

	jobs := make([]interfaces.JobStatus, 0, len(ids))
	for _, id := range ids {
		if status, err := s.GetJobStatus(id); err == nil {
			jobs = append(jobs, *status)
		}
	}

	return interfaces.SchedulerStatus{
		Running:        s.IsRunning(),
		Jobs:           jobs,
		LastRunPerKind: s.tracker.LastPerKind(),
	}
}

// fire is the cron callback. The first trigger of a batch waits for the
// others of the same instant, then runs the batch one job after another in
// registration order, so a later job sees the rows written by an earlier one.
func (s *Service) fire(jobID string) {
	s.pendMu.Lock()
	s.pending = append(s.pending, jobID)
	first := len(s.pending) == 1
	s.pendMu.Unlock()
	if !first {
		return
	}

	time.Sleep(s.window)

	s.pendMu.Lock()
	batch := s.pending
	s.pending = nil
	s.pendMu.Unlock()

	position := s.positions()
	sort.SliceStable(batch, func(i, j int) bool {
		return position[batch[i]] < position[batch[j]]
	})
	for _, id := range batch {
		s.runScheduled(id)
	}
}

func (s *Service) positions() map[string]int {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	out := make(map[string]int, len(s.order))
	for i, id := range s.order {
		out[id] = i
	}
	return out
}

// runScheduled runs one scheduled trigger. Unconfigured sources and overlapping
// runs are logged and skipped.
func (s *Service) runScheduled(jobID string) {
	def, err := s.definition(jobID)
	if err != nil {
		s.logger.Warn().Str("job_id", jobID).Msg("Job not found")
		return
	}

	if def.Ready != nil {
		if err := def.Ready(); err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Source not configured, scheduled run skipped")
			return
		}
	}

	if _, err := s.execute(context.Background(), def, "", false); err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Scheduled run skipped")
	}
}

// execute wraps job execution with single-flight, panic recovery and run tracking
func (s *Service) execute(ctx context.Context, def interfaces.JobDefinition, store string, manual bool) (*models.JobRun, error) {
	run, err := s.tracker.Start(def.ID, def.Kind, manual, store)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("job_id", def.ID).
		Str("job_kind", def.Kind).
		Bool("manual", manual).
		Msg("Job execution started")

	outcome, runErr := s.invoke(ctx, def, store)

	// A body discovering late that its source cannot run leaves no record
	if errors.Is(runErr, models.ErrNotConfigured) {
		s.tracker.Abandon(def.ID)
		s.logger.Warn().Err(runErr).Str("job_id", def.ID).Msg("Source not configured, run discarded")
		return nil, runErr
	}

	done := s.tracker.Finish(run, outcome, runErr)

	event := s.logger.Info()
	if done.Status != models.RunStatusCompleted {
		event = s.logger.Warn()
	}
	event.
		Str("job_id", def.ID).
		Str("status", done.Status).
		Int("stores", len(done.Stores)).
		Int("failures", outcome.Failures()).
		Dur("duration", done.Duration).
		Msg("Job execution finished")

	return &done, nil
}

func (s *Service) invoke(ctx context.Context, def interfaces.JobDefinition, store string) (outcome models.RunOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("job_id", def.ID).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", common.GetStackTrace()).
				Msg("PANIC RECOVERED in job execution")
			outcome = models.NewRunOutcome()
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return def.Handler(ctx, store)
}

func (s *Service) definition(jobID string) (interfaces.JobDefinition, error) {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	entry, exists := s.jobs[jobID]
	if !exists {
		return interfaces.JobDefinition{}, fmt.Errorf("%w: %s", models.ErrJobNotFound, jobID)
	}
	return entry.def, nil
}

func containsStore(stores []string, store string) bool {
	for _, s := range stores {
		if s == store {
			return true
		}
	}
	return false
}
