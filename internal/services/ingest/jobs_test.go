package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specials/internal/common"
	"github.com/ternarybob/specials/internal/models"
	"github.com/ternarybob/specials/internal/services/runtracker"
	"github.com/ternarybob/specials/internal/services/scheduler"
	"github.com/ternarybob/specials/internal/services/sources"
)

type fakeDiscoverer struct {
	fakeSource
}

func (f *fakeDiscoverer) Discover(ctx context.Context, slug string) ([]models.CatalogueRef, error) {
	return []models.CatalogueRef{{ID: "58001", StoreSlug: slug, Name: "Weekly"}}, nil
}

func (f *fakeDiscoverer) FetchCatalogue(ctx context.Context, ref models.CatalogueRef) ([]models.RawItem, error) {
	return f.items[ref.StoreSlug], nil
}

func TestJobs_OrderAndOverrides(t *testing.T) {
	cat := newCatalogue(t)
	registry := sources.NewRegistry()
	require.NoError(t, registry.Register(&fakeSource{name: "ai_extract", stores: []string{"coles"}}))
	require.NoError(t, registry.Register(&fakeSource{name: "salefinder", stores: []string{"woolworths"}}))
	require.NoError(t, registry.Register(&fakeSource{name: "catalogue", stores: []string{"aldi", "iga"}}))
	require.NoError(t, registry.RegisterEveryday(&fakeEveryday{stores: []string{"coles"}}))
	svc := NewService(cat, registry, nil, &common.SchedulerConfig{}, arbor.NewLogger())

	jobs := svc.Jobs(map[string]string{JobFreshFoodsImport: "30 7 * * *"})

	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID)
		require.NoError(t, common.ValidateJobSchedule(j.Schedule), j.ID)
	}
	assert.Equal(t, []string{
		JobSpecialsScrape,
		JobSaleFinderScrape,
		JobCatalogueUpdate,
		JobCatalogueUpdateSaturday,
		JobFreshFoodsImport,
	}, ids, "image repair is omitted when not wired")

	assert.Equal(t, "0 5 * * 3", jobs[0].Schedule)
	assert.Equal(t, KindCatalogue, jobs[2].Kind)
	assert.Equal(t, KindCatalogue, jobs[3].Kind)
	assert.Equal(t, "0 6 * * 6", jobs[3].Schedule)
	assert.Equal(t, []string{"aldi", "iga"}, jobs[3].Stores)
	assert.Equal(t, "30 7 * * *", jobs[4].Schedule)
}

func newTriggers(t *testing.T, adapters ...*fakeSource) (*Triggers, *scheduler.Service) {
	t.Helper()
	cat := newCatalogue(t)
	registry := sources.NewRegistry()
	for _, a := range adapters {
		require.NoError(t, registry.Register(a))
	}
	svc := NewService(cat, registry, nil, &common.SchedulerConfig{StoreTimeout: "5s"}, arbor.NewLogger())

	sched := scheduler.NewService(runtracker.New(), time.UTC, arbor.NewLogger())
	for _, def := range svc.Jobs(nil) {
		require.NoError(t, sched.RegisterJob(def))
	}
	return NewTriggers(sched, registry), sched
}

func TestTriggerSource(t *testing.T) {
	triggers, sched := newTriggers(t, threeStoreSource())

	runs, err := triggers.TriggerSource(context.Background(), "salefinder", "coles")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, JobSaleFinderScrape, runs[0].JobID)
	assert.True(t, runs[0].Manual)
	assert.Equal(t, models.RunStatusCompleted, runs[0].Status)
	assert.Equal(t, 2, runs[0].Stores["coles"].ItemCount)

	runs, err = triggers.TriggerSource(context.Background(), "salefinder", "")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPartial, runs[0].Status, "woolworths fails, coles and aldi succeed")

	status := sched.Status()
	assert.Equal(t, models.RunStatusPartial, status.LastRunPerKind["salefinder"].Status)
}

func TestTriggerSource_Both(t *testing.T) {
	disabled := &fakeSource{name: "ai_extract", stores: []string{"coles"}, configured: models.ErrNotConfigured}
	triggers, _ := newTriggers(t, threeStoreSource(), disabled)

	runs, err := triggers.TriggerSource(context.Background(), SourceBoth, "coles")
	require.NoError(t, err)
	require.Len(t, runs, 1, "the unconfigured source is left out")
	assert.Equal(t, JobSaleFinderScrape, runs[0].JobID)
	assert.Empty(t, disabled.fetched)

	_, err = triggers.TriggerSource(context.Background(), SourceBoth, "iga")
	assert.True(t, errors.Is(err, models.ErrUnknownStore))
}

func TestTriggerSource_UnknownSource(t *testing.T) {
	triggers, _ := newTriggers(t, threeStoreSource())
	_, err := triggers.TriggerSource(context.Background(), "firecrawl", "")
	assert.True(t, errors.Is(err, models.ErrNotSupported))
}

func TestListCatalogues(t *testing.T) {
	discoverer := &fakeDiscoverer{fakeSource{name: "salefinder", stores: []string{"woolworths"}}}
	triggers, _ := newTriggers(t, &discoverer.fakeSource)
	_, err := triggers.ListCatalogues(context.Background(), "woolworths")
	assert.True(t, errors.Is(err, models.ErrNotSupported), "plain adapters have no listing")

	cat := newCatalogue(t)
	registry := sources.NewRegistry()
	require.NoError(t, registry.Register(discoverer))
	svc := NewService(cat, registry, nil, &common.SchedulerConfig{}, arbor.NewLogger())
	sched := scheduler.NewService(runtracker.New(), time.UTC, arbor.NewLogger())
	for _, def := range svc.Jobs(nil) {
		require.NoError(t, sched.RegisterJob(def))
	}
	triggers = NewTriggers(sched, registry)

	refs, err := triggers.ListCatalogues(context.Background(), "woolworths")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "58001", refs[0].ID)

	_, err = triggers.ListCatalogues(context.Background(), "aldi")
	assert.True(t, errors.Is(err, models.ErrNotSupported))

	disabled := &fakeDiscoverer{fakeSource{name: "leaflets", stores: []string{"iga"}, configured: models.ErrNotConfigured}}
	require.NoError(t, registry.Register(disabled))
	_, err = triggers.ListCatalogues(context.Background(), "iga")
	assert.True(t, errors.Is(err, models.ErrNotConfigured), "only sources covering the store are consulted")

	refs, err = triggers.ListCatalogues(context.Background(), "woolworths")
	require.NoError(t, err)
	assert.Len(t, refs, 1, "a disabled source for another store does not block listing")
}
