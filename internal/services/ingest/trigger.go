package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/specials/internal/interfaces"
	"github.com/ternarybob/specials/internal/models"
	"github.com/ternarybob/specials/internal/services/sources"
	"github.com/ternarybob/specials/internal/services/sources/aiextract"
	"github.com/ternarybob/specials/internal/services/sources/salefinder"
)

// SourceBoth triggers the SaleFinder and AI extraction scrapes in turn
const SourceBoth = "both"

// Triggers is the manual trigger surface. Every run goes through the
// scheduler so single-flight per job id holds for manual runs too.
type Triggers struct {
	scheduler interfaces.SchedulerService
	registry  *sources.Registry
}

// NewTriggers creates the manual trigger surface
func NewTriggers(scheduler interfaces.SchedulerService, registry *sources.Registry) *Triggers {
	return &Triggers{scheduler: scheduler, registry: registry}
}

// TriggerManualUpdate runs the Wednesday catalogue sweep now
func (t *Triggers) TriggerManualUpdate(ctx context.Context, store string) (*models.JobRun, error) {
	return t.scheduler.TriggerManually(ctx, JobCatalogueUpdate, store)
}

// TriggerJob runs any registered job now
func (t *Triggers) TriggerJob(ctx context.Context, jobID, store string) (*models.JobRun, error) {
	return t.scheduler.TriggerManually(ctx, jobID, store)
}

// TriggerSource runs the scrape job of a source now. source is
// "salefinder", "ai_extract", "catalogue" or "both". For "both" each scrape
// runs in turn; a source that is not configured or does not cover store is
// left out, and the call fails only when no scrape ran.
func (t *Triggers) TriggerSource(ctx context.Context, source, store string) ([]*models.JobRun, error) {
	if source != SourceBoth {
		jobID, err := JobForSource(source)
		if err != nil {
			return nil, err
		}
		run, err := t.scheduler.TriggerManually(ctx, jobID, store)
		if err != nil {
			return nil, err
		}
		return []*models.JobRun{run}, nil
	}

	var (
		runs []*models.JobRun
		errs []error
	)
	for _, name := range []string{salefinder.SourceName, aiextract.SourceName} {
		jobID, _ := JobForSource(name)
		run, err := t.scheduler.TriggerManually(ctx, jobID, store)
		if err != nil {
			if errors.Is(err, models.ErrNotConfigured) || errors.Is(err, models.ErrUnknownStore) || errors.Is(err, models.ErrJobNotFound) {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				continue
			}
			return runs, err
		}
		runs = append(runs, run)
	}
	if len(runs) == 0 {
		return nil, errors.Join(errs...)
	}
	return runs, nil
}

// ListCatalogues lists the browsable catalogues of a store across every
// source that offers discovery
func (t *Triggers) ListCatalogues(ctx context.Context, store string) ([]models.CatalogueRef, error) {
	var (
		refs  []models.CatalogueRef
		found bool
	)
	for _, adapter := range t.registry.ForStore(store) {
		discoverer, ok := adapter.(interfaces.CatalogueDiscoverer)
		if !ok {
			continue
		}
		if err := adapter.Configured(); err != nil {
			return nil, err
		}
		found = true

		list, err := discoverer.Discover(ctx, store)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", adapter.Name(), err)
		}
		refs = append(refs, list...)
	}
	if !found {
		return nil, fmt.Errorf("%w: no source lists catalogues for %s", models.ErrNotSupported, store)
	}
	return refs, nil
}
