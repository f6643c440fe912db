package ingest

import (
	"context"
	"fmt"

	"github.com/ternarybob/specials/internal/interfaces"
	"github.com/ternarybob/specials/internal/models"
	"github.com/ternarybob/specials/internal/services/imagerepair"
	"github.com/ternarybob/specials/internal/services/sources/aiextract"
	"github.com/ternarybob/specials/internal/services/sources/cataloguefeed"
	"github.com/ternarybob/specials/internal/services/sources/freshfoods"
	"github.com/ternarybob/specials/internal/services/sources/salefinder"
)

// Job ids
const (
	JobSpecialsScrape          = "specials_scrape"
	JobSaleFinderScrape        = "salefinder_scrape"
	JobImageRepair             = "image_repair"
	JobCatalogueUpdate         = "catalogue_update"
	JobCatalogueUpdateSaturday = "catalogue_update_saturday"
	JobFreshFoodsImport        = "fresh_foods_import"
)

// KindCatalogue groups both weekly catalogue sweeps
const KindCatalogue = "catalogue"

// jobOrder is the order jobs fire on a Wednesday; later jobs rely on rows
// written by earlier ones
var jobOrder = []string{
	JobSpecialsScrape,
	JobSaleFinderScrape,
	JobImageRepair,
	JobCatalogueUpdate,
	JobCatalogueUpdateSaturday,
	JobFreshFoodsImport,
}

// DefaultSchedules holds the standing cron expressions
var DefaultSchedules = map[string]string{
	JobSpecialsScrape:          "0 5 * * 3",
	JobSaleFinderScrape:        "30 5 * * 3",
	JobImageRepair:             "45 5 * * 3",
	JobCatalogueUpdate:         "0 6 * * 3",
	JobCatalogueUpdateSaturday: "0 6 * * 6",
	JobFreshFoodsImport:        "0 6 * * *",
}

// Jobs returns the standing job definitions. overrides replaces the cron
// expression of a job id. Jobs whose source is not registered are omitted.
// Definitions come back in firing order.
func (s *Service) Jobs(overrides map[string]string) []interfaces.JobDefinition {
	schedule := func(id string) string {
		if cron, ok := overrides[id]; ok && cron != "" {
			return cron
		}
		return DefaultSchedules[id]
	}

	defs := make(map[string]interfaces.JobDefinition, len(jobOrder))

	promotional := []struct {
		id, kind, source, description string
	}{
		{JobSpecialsScrape, aiextract.SourceName, aiextract.SourceName, "Extract weekly specials from store pages with an LLM"},
		{JobSaleFinderScrape, salefinder.SourceName, salefinder.SourceName, "Scrape SaleFinder catalogues"},
		{JobCatalogueUpdate, KindCatalogue, cataloguefeed.SourceName, "Parse catalogue feeds for the Wednesday cycle"},
		{JobCatalogueUpdateSaturday, KindCatalogue, cataloguefeed.SourceName, "Parse catalogue feeds for the Saturday cycle"},
	}
	for _, p := range promotional {
		adapter, err := s.registry.Source(p.source)
		if err != nil {
			s.logger.Debug().Str("job_id", p.id).Str("source", p.source).Msg("Source not registered, job omitted")
			continue
		}
		source := p.source
		defs[p.id] = interfaces.JobDefinition{
			ID:          p.id,
			Name:        p.id,
			Kind:        p.kind,
			Schedule:    schedule(p.id),
			Description: p.description,
			Stores:      adapter.Stores(),
			Ready:       adapter.Configured,
			Handler: func(ctx context.Context, store string) (models.RunOutcome, error) {
				return s.RunSource(ctx, source, store)
			},
		}
	}

	if s.images != nil {
		defs[JobImageRepair] = interfaces.JobDefinition{
			ID:          JobImageRepair,
			Name:        JobImageRepair,
			Kind:        imagerepair.SourceName,
			Schedule:    schedule(JobImageRepair),
			Description: "Patch missing special images from store search",
			Stores:      s.images.Stores(),
			Ready:       s.images.Configured,
			Handler:     s.RunImageRepair,
		}
	}

	if source, err := s.registry.Everyday(freshfoods.SourceName); err == nil {
		defs[JobFreshFoodsImport] = interfaces.JobDefinition{
			ID:          JobFreshFoodsImport,
			Name:        JobFreshFoodsImport,
			Kind:        freshfoods.SourceName,
			Schedule:    schedule(JobFreshFoodsImport),
			Description: "Import everyday produce and meat prices",
			Stores:      source.Stores(),
			Ready:       source.Configured,
			Handler: func(ctx context.Context, store string) (models.RunOutcome, error) {
				return s.RunEveryday(ctx, freshfoods.SourceName, store)
			},
		}
	}

	jobs := make([]interfaces.JobDefinition, 0, len(defs))
	for _, id := range jobOrder {
		if def, ok := defs[id]; ok {
			jobs = append(jobs, def)
		}
	}
	return jobs
}

// JobForSource maps a promotional source name to its scrape job id
func JobForSource(source string) (string, error) {
	switch source {
	case aiextract.SourceName:
		return JobSpecialsScrape, nil
	case salefinder.SourceName:
		return JobSaleFinderScrape, nil
	case cataloguefeed.SourceName:
		return JobCatalogueUpdate, nil
	}
	return "", fmt.Errorf("%w: no scrape job for source %s", models.ErrNotSupported, source)
}
