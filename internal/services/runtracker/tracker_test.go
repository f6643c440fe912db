package runtracker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/specials/internal/models"
)

func TestStart_SingleFlightPerJobID(t *testing.T) {
	tr := New()

	_, err := tr.Start("salefinder_scrape", "salefinder", false, "")
	require.NoError(t, err)

	_, err = tr.Start("salefinder_scrape", "salefinder", true, "")
	assert.True(t, errors.Is(err, models.ErrAlreadyRunning))

	_, err = tr.Start("image_repair", "image_repair", false, "")
	assert.NoError(t, err, "different job ids run independently")
}

func TestStart_ConcurrentCallersOnlyOneWins(t *testing.T) {
	tr := New()

	const callers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		refused int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tr.Start("catalogue_update", "catalogue", true, "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if errors.Is(err, models.ErrAlreadyRunning) {
				refused++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, callers-1, refused)
}

func TestFinish_StatusFromOutcome(t *testing.T) {
	tests := []struct {
		name   string
		stores map[string]models.StoreOutcome
		runErr error
		want   string
	}{
		{
			name:   "all stores succeed",
			stores: map[string]models.StoreOutcome{"coles": models.StoreSuccess(3), "iga": models.StoreSuccess(1)},
			want:   models.RunStatusCompleted,
		},
		{
			name:   "one store fails",
			stores: map[string]models.StoreOutcome{"coles": models.StoreSuccess(3), "iga": models.StoreFailure(models.ErrNetwork)},
			want:   models.RunStatusPartial,
		},
		{
			name:   "every store fails",
			stores: map[string]models.StoreOutcome{"iga": models.StoreFailure(models.ErrParse)},
			want:   models.RunStatusFailed,
		},
		{
			name:   "job error",
			stores: map[string]models.StoreOutcome{},
			runErr: errors.New("panic: boom"),
			want:   models.RunStatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New()
			run, err := tr.Start("job", "kind", false, "")
			require.NoError(t, err)

			outcome := models.NewRunOutcome()
			for k, v := range tt.stores {
				outcome.Stores[k] = v
			}
			done := tr.Finish(run, outcome, tt.runErr)

			assert.Equal(t, tt.want, done.Status)
			assert.False(t, tr.IsRunning("job"))
			require.NotNil(t, done.FinishedAt)
			assert.Len(t, done.Stores, len(tt.stores))
		})
	}
}

func TestFinish_SupersedesPreviousRun(t *testing.T) {
	tr := New()
	clock := time.Date(2026, 10, 14, 5, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return clock }

	run, err := tr.Start("specials_scrape", "ai_extract", false, "")
	require.NoError(t, err)
	clock = clock.Add(90 * time.Second)
	first := tr.Finish(run, models.NewRunOutcome(), nil)
	assert.Equal(t, 90*time.Second, first.Duration)

	run, err = tr.Start("specials_scrape", "ai_extract", true, "coles")
	require.NoError(t, err)
	tr.Finish(run, models.NewRunOutcome(), nil)

	last, ok := tr.Last("specials_scrape")
	require.True(t, ok)
	assert.True(t, last.Manual)
	assert.Equal(t, "coles", last.Store)
	assert.Len(t, tr.Status(), 1)
}

func TestStatus_ReturnsCopies(t *testing.T) {
	tr := New()
	run, err := tr.Start("job", "kind", false, "")
	require.NoError(t, err)
	outcome := models.NewRunOutcome()
	outcome.Stores["coles"] = models.StoreSuccess(1)
	tr.Finish(run, outcome, nil)

	status := tr.Status()
	r := status["job"]
	r.Stores["coles"] = models.StoreFailure(models.ErrNetwork)

	again, _ := tr.Last("job")
	assert.True(t, again.Stores["coles"].Success)
}

func TestLastPerKind(t *testing.T) {
	tr := New()
	clock := time.Date(2026, 10, 14, 6, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return clock }

	run, _ := tr.Start("catalogue_update", "catalogue", false, "")
	tr.Finish(run, models.NewRunOutcome(), nil)

	clock = clock.Add(72 * time.Hour)
	run, _ = tr.Start("catalogue_update_saturday", "catalogue", false, "")
	tr.Finish(run, models.NewRunOutcome(), nil)

	perKind := tr.LastPerKind()
	require.Contains(t, perKind, "catalogue")
	assert.Equal(t, "catalogue_update_saturday", perKind["catalogue"].JobID)
}

func TestAbandon_RestoresPreviousRun(t *testing.T) {
	tr := New()
	run, _ := tr.Start("job", "kind", false, "")
	tr.Finish(run, models.NewRunOutcome(), nil)

	_, err := tr.Start("job", "kind", true, "")
	require.NoError(t, err)
	tr.Abandon("job")

	last, ok := tr.Last("job")
	require.True(t, ok)
	assert.Equal(t, models.RunStatusCompleted, last.Status)
	assert.False(t, tr.IsRunning("job"))

	_, err = tr.Start("fresh", "kind", false, "")
	require.NoError(t, err)
	tr.Abandon("fresh")
	_, ok = tr.Last("fresh")
	assert.False(t, ok)
}

func TestConcurrentReadersDuringWrites(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					for _, run := range tr.Status() {
						if !run.Running() {
							assert.NotNil(t, run.FinishedAt)
						}
					}
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		run, err := tr.Start("job", "kind", false, "")
		require.NoError(t, err)
		tr.Finish(run, models.NewRunOutcome(), nil)
	}
	close(stop)
	wg.Wait()
}

func TestAbandon_IgnoresRunReadBeforeStart(t *testing.T) {
	tr := New()

	first, err := tr.Start("salefinder_scrape", "salefinder", false, "")
	require.NoError(t, err)
	stale, _ := tr.Last("salefinder_scrape")
	require.True(t, stale.Running())

	outcome := models.NewRunOutcome()
	outcome.Stores["coles"] = models.StoreSuccess(2)
	done := tr.Finish(first, outcome, nil)

	_, err = tr.Start("salefinder_scrape", "salefinder", true, "coles")
	require.NoError(t, err)
	tr.Abandon("salefinder_scrape")

	last, ok := tr.Last("salefinder_scrape")
	require.True(t, ok)
	assert.Equal(t, models.RunStatusCompleted, last.Status)
	assert.Equal(t, done.StartedAt, last.StartedAt)
	assert.False(t, tr.IsRunning("salefinder_scrape"))

	_, err = tr.Start("salefinder_scrape", "salefinder", false, "")
	assert.NoError(t, err, "abandoned run releases the job id")
}

func TestAbandon_WithoutRunInFlightIsNoop(t *testing.T) {
	tr := New()

	run, err := tr.Start("image_repair", "image_repair", false, "")
	require.NoError(t, err)
	outcome := models.NewRunOutcome()
	outcome.Stores["iga"] = models.StoreSuccess(1)
	tr.Finish(run, outcome, nil)

	tr.Abandon("image_repair")

	last, ok := tr.Last("image_repair")
	require.True(t, ok)
	assert.Equal(t, models.RunStatusCompleted, last.Status)
}
