package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specials/internal/interfaces"
	"github.com/ternarybob/specials/internal/models"
	"github.com/ternarybob/specials/internal/services/runtracker"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	loc, err := time.LoadLocation("Australia/Sydney")
	require.NoError(t, err)
	s := NewService(runtracker.New(), loc, arbor.NewLogger())
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func okHandler(stores ...string) interfaces.JobHandler {
	return func(ctx context.Context, store string) (models.RunOutcome, error) {
		outcome := models.NewRunOutcome()
		for _, s := range stores {
			if store == "" || store == s {
				outcome.Stores[s] = models.StoreSuccess(1)
			}
		}
		return outcome, nil
	}
}

func TestRegisterJob_Validation(t *testing.T) {
	s := newTestService(t)

	require.NoError(t, s.RegisterJob(interfaces.JobDefinition{ID: "salefinder_scrape", Schedule: "30 5 * * 3", Handler: okHandler()}))

	tests := []struct {
		name string
		def  interfaces.JobDefinition
	}{
		{name: "duplicate id", def: interfaces.JobDefinition{ID: "salefinder_scrape", Schedule: "30 5 * * 3", Handler: okHandler()}},
		{name: "missing id", def: interfaces.JobDefinition{Schedule: "30 5 * * 3", Handler: okHandler()}},
		{name: "missing handler", def: interfaces.JobDefinition{ID: "x", Schedule: "30 5 * * 3"}},
		{name: "invalid schedule", def: interfaces.JobDefinition{ID: "y", Schedule: "every wednesday", Handler: okHandler()}},
		{name: "too frequent", def: interfaces.JobDefinition{ID: "z", Schedule: "* * * * *", Handler: okHandler()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, s.RegisterJob(tt.def))
		})
	}
}

func TestStartStop_Idempotent(t *testing.T) {
	s := newTestService(t)
	require.NoError(t, s.RegisterJob(interfaces.JobDefinition{ID: "catalogue_update", Schedule: "0 6 * * 3", Handler: okHandler()}))

	assert.False(t, s.IsRunning())
	require.NoError(t, s.Start())
	require.NoError(t, s.Start(), "second start is a no-op")
	assert.True(t, s.IsRunning())

	status, err := s.GetJobStatus("catalogue_update")
	require.NoError(t, err)
	require.NotNil(t, status.NextRun)
	next := status.NextRun.In(s.location)
	assert.Equal(t, time.Wednesday, next.Weekday())
	assert.Equal(t, 6, next.Hour())

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())

	status, err = s.GetJobStatus("catalogue_update")
	require.NoError(t, err)
	assert.Nil(t, status.NextRun)
}

func TestTriggerManually_SecondConcurrentCallIsRejected(t *testing.T) {
	s := newTestService(t)

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, s.RegisterJob(interfaces.JobDefinition{
		ID:       "specials_scrape",
		Kind:     "ai_extract",
		Schedule: "0 5 * * 3",
		Handler: func(ctx context.Context, store string) (models.RunOutcome, error) {
			close(started)
			<-release
			return models.NewRunOutcome(), nil
		},
	}))

	var (
		wg       sync.WaitGroup
		firstRun *models.JobRun
		firstErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		firstRun, firstErr = s.TriggerManually(context.Background(), "specials_scrape", "")
	}()

	<-started
	_, err := s.TriggerManually(context.Background(), "specials_scrape", "")
	assert.True(t, errors.Is(err, models.ErrAlreadyRunning))

	status, err := s.GetJobStatus("specials_scrape")
	require.NoError(t, err)
	assert.True(t, status.IsRunning)

	close(release)
	wg.Wait()

	require.NoError(t, firstErr)
	require.NotNil(t, firstRun)
	assert.Equal(t, models.RunStatusCompleted, firstRun.Status)
	assert.True(t, firstRun.Manual)
}

func TestTriggerManually_DifferentJobsRunIndependently(t *testing.T) {
	s := newTestService(t)

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, s.RegisterJob(interfaces.JobDefinition{
		ID: "slow", Schedule: "0 5 * * 3",
		Handler: func(ctx context.Context, store string) (models.RunOutcome, error) {
			close(started)
			<-release
			return models.NewRunOutcome(), nil
		},
	}))
	require.NoError(t, s.RegisterJob(interfaces.JobDefinition{ID: "fast", Schedule: "0 6 * * 3", Handler: okHandler("coles")}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.TriggerManually(context.Background(), "slow", "")
	}()
	<-started

	run, err := s.TriggerManually(context.Background(), "fast", "")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)

	close(release)
	<-done
}

func TestTriggerManually_ErrorsRecordNothing(t *testing.T) {
	s := newTestService(t)
	notConfigured := fmt.Errorf("claude api key missing: %w", models.ErrNotConfigured)

	require.NoError(t, s.RegisterJob(interfaces.JobDefinition{
		ID: "salefinder_scrape", Schedule: "30 5 * * 3",
		Stores:  []string{"woolworths", "coles"},
		Handler: okHandler("woolworths", "coles"),
	}))
	require.NoError(t, s.RegisterJob(interfaces.JobDefinition{
		ID: "specials_scrape", Schedule: "0 5 * * 3",
		Ready:   func() error { return notConfigured },
		Handler: okHandler("coles"),
	}))
	require.NoError(t, s.RegisterJob(interfaces.JobDefinition{
		ID: "late_check", Schedule: "0 7 * * 3",
		Handler: func(ctx context.Context, store string) (models.RunOutcome, error) {
			return models.RunOutcome{}, notConfigured
		},
	}))

	tests := []struct {
		name  string
		jobID string
		store string
		want  error
	}{
		{name: "unknown job", jobID: "nope", want: models.ErrJobNotFound},
		{name: "unknown store", jobID: "salefinder_scrape", store: "aldi", want: models.ErrUnknownStore},
		{name: "not configured", jobID: "specials_scrape", want: models.ErrNotConfigured},
		{name: "not configured inside body", jobID: "late_check", want: models.ErrNotConfigured},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run, err := s.TriggerManually(context.Background(), tt.jobID, tt.store)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, run)
		})
	}

	assert.Empty(t, s.Status().LastRunPerKind)
}

func TestTriggerManually_StoreFilter(t *testing.T) {
	s := newTestService(t)
	require.NoError(t, s.RegisterJob(interfaces.JobDefinition{
		ID: "salefinder_scrape", Schedule: "30 5 * * 3",
		Stores:  []string{"woolworths", "coles", "iga"},
		Handler: okHandler("woolworths", "coles", "iga"),
	}))

	run, err := s.TriggerManually(context.Background(), "salefinder_scrape", "coles")
	require.NoError(t, err)
	assert.Equal(t, "coles", run.Store)
	assert.Len(t, run.Stores, 1)
	assert.Contains(t, run.Stores, "coles")
}

func TestTriggerManually_PartialOutcome(t *testing.T) {
	s := newTestService(t)
	require.NoError(t, s.RegisterJob(interfaces.JobDefinition{
		ID: "salefinder_scrape", Schedule: "30 5 * * 3",
		Handler: func(ctx context.Context, store string) (models.RunOutcome, error) {
			outcome := models.NewRunOutcome()
			outcome.Stores["woolworths"] = models.StoreFailure(fmt.Errorf("status 503: %w", models.ErrNetwork))
			outcome.Stores["coles"] = models.StoreSuccess(12)
			outcome.Stores["iga"] = models.StoreSuccess(7)
			return outcome, nil
		},
	}))

	run, err := s.TriggerManually(context.Background(), "salefinder_scrape", "")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPartial, run.Status)
	assert.False(t, run.Stores["woolworths"].Success)
	assert.Equal(t, "network", run.Stores["woolworths"].ErrorKind)
	assert.Equal(t, 12, run.Stores["coles"].ItemCount)
}

func TestTriggerManually_RecoversPanic(t *testing.T) {
	s := newTestService(t)
	require.NoError(t, s.RegisterJob(interfaces.JobDefinition{
		ID: "image_repair", Schedule: "45 5 * * 3",
		Handler: func(ctx context.Context, store string) (models.RunOutcome, error) {
			panic("nil map")
		},
	}))

	run, err := s.TriggerManually(context.Background(), "image_repair", "")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "panic: nil map")

	_, err = s.TriggerManually(context.Background(), "image_repair", "")
	assert.NoError(t, err, "a panicking run releases the job id")
}

func TestRunScheduled(t *testing.T) {
	s := newTestService(t)
	ready := fmt.Errorf("no feeds: %w", models.ErrNotConfigured)
	require.NoError(t, s.RegisterJob(interfaces.JobDefinition{
		ID: "fresh_foods_import", Kind: "fresh_foods", Schedule: "0 6 * * *",
		Ready:   func() error { return ready },
		Handler: okHandler("coles"),
	}))

	s.runScheduled("fresh_foods_import")
	status, err := s.GetJobStatus("fresh_foods_import")
	require.NoError(t, err)
	assert.Nil(t, status.LastRun, "unconfigured source records nothing")

	ready = nil
	s.runScheduled("fresh_foods_import")
	status, err = s.GetJobStatus("fresh_foods_import")
	require.NoError(t, err)
	require.NotNil(t, status.LastRun)
	assert.False(t, status.LastRun.Manual)
	assert.Equal(t, models.RunStatusCompleted, status.LastRun.Status)
}

func TestStatus_JobsInRegistrationOrder(t *testing.T) {
	s := newTestService(t)
	for _, def := range []interfaces.JobDefinition{
		{ID: "specials_scrape", Kind: "ai_extract", Schedule: "0 5 * * 3"},
		{ID: "catalogue_update", Kind: "catalogue", Schedule: "0 6 * * 3"},
		{ID: "catalogue_update_saturday", Kind: "catalogue", Schedule: "0 6 * * 6"},
	} {
		def.Handler = okHandler("coles")
		require.NoError(t, s.RegisterJob(def))
	}

	_, err := s.TriggerManually(context.Background(), "catalogue_update_saturday", "")
	require.NoError(t, err)

	status := s.Status()
	require.Len(t, status.Jobs, 3)
	assert.Equal(t, "specials_scrape", status.Jobs[0].ID)
	assert.Equal(t, "catalogue_update_saturday", status.Jobs[2].ID)
	assert.Equal(t, "catalogue_update_saturday", status.LastRunPerKind["catalogue"].JobID)
}

func TestFire_SameInstantRunsInRegistrationOrder(t *testing.T) {
	s := newTestService(t)
	s.window = 50 * time.Millisecond

	var (
		mu    sync.Mutex
		order []string
	)
	recording := func(id string) interfaces.JobHandler {
		return func(ctx context.Context, store string) (models.RunOutcome, error) {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			return okHandler("coles")(ctx, store)
		}
	}
	for _, id := range []string{"catalogue_update", "fresh_foods_import"} {
		require.NoError(t, s.RegisterJob(interfaces.JobDefinition{
			ID: id, Schedule: "0 6 * * *", Handler: recording(id),
		}))
	}

	var wg sync.WaitGroup
	for _, id := range []string{"fresh_foods_import", "catalogue_update"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			s.fire(id)
		}(id)
	}
	wg.Wait()

	assert.Equal(t, []string{"catalogue_update", "fresh_foods_import"}, order)
	for _, id := range []string{"catalogue_update", "fresh_foods_import"} {
		status, err := s.GetJobStatus(id)
		require.NoError(t, err)
		require.NotNil(t, status.LastRun, id)
		assert.Equal(t, models.RunStatusCompleted, status.LastRun.Status)
	}
}

func TestFire_SeparateInstantsRunIndependently(t *testing.T) {
	s := newTestService(t)
	s.window = time.Millisecond
	require.NoError(t, s.RegisterJob(interfaces.JobDefinition{
		ID: "image_repair", Schedule: "45 5 * * 3", Handler: okHandler("coles"),
	}))

	s.fire("image_repair")
	s.fire("image_repair")

	status, err := s.GetJobStatus("image_repair")
	require.NoError(t, err)
	require.NotNil(t, status.LastRun)
	assert.Equal(t, models.RunStatusCompleted, status.LastRun.Status)
	assert.Empty(t, s.pending)
}
