// Package ingest holds the job bodies: per-store isolated
// fetch -> normalize -> reconcile pipelines fanned out over a bounded pool.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/specials/internal/common"
	"github.com/ternarybob/specials/internal/interfaces"
	"github.com/ternarybob/specials/internal/models"
	"github.com/ternarybob/specials/internal/services/catalogue"
	"github.com/ternarybob/specials/internal/services/imagerepair"
	"github.com/ternarybob/specials/internal/services/sources"
)

const (
	defaultStoreTimeout     = 2 * time.Minute
	defaultStoreConcurrency = 2
)

// storeFunc processes one store and reports its outcome. It never fails the run.
type storeFunc func(ctx context.Context, slug string) models.StoreOutcome

// Service runs ingestion jobs against the catalogue
type Service struct {
	catalogue    *catalogue.Service
	registry     *sources.Registry
	images       *imagerepair.Service
	logger       arbor.ILogger
	storeTimeout time.Duration
	concurrency  int
}

// NewService creates the ingestion job runner. images may be nil when the
// image repair sweep is not wired.
func NewService(cat *catalogue.Service, registry *sources.Registry, images *imagerepair.Service, config *common.SchedulerConfig, logger arbor.ILogger) *Service {
	concurrency := config.StoreConcurrency
	if concurrency <= 0 {
		concurrency = defaultStoreConcurrency
	}
	return &Service{
		catalogue:    cat,
		registry:     registry,
		images:       images,
		logger:       logger,
		storeTimeout: common.ParseDurationOr(config.StoreTimeout, defaultStoreTimeout),
		concurrency:  concurrency,
	}
}

// RunSource is the body of a promotional scrape job. Expired specials are
// swept first, then every store the source covers (or only store, when set)
// is fetched, normalized and reconciled in isolation.
func (s *Service) RunSource(ctx context.Context, sourceName, store string) (models.RunOutcome, error) {
	outcome := models.NewRunOutcome()

	adapter, err := s.registry.Source(sourceName)
	if err != nil {
		return outcome, err
	}
	if err := adapter.Configured(); err != nil {
		return outcome, err
	}

	slugs, err := selectStores(adapter.Stores(), store)
	if err != nil {
		return outcome, err
	}

	mapping, err := s.catalogue.Stores(ctx)
	if err != nil {
		return outcome, fmt.Errorf("load store mapping: %w", err)
	}

	expired, err := s.catalogue.ExpireToday(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("source", sourceName).Msg("Expiry sweep failed, continuing with scrape")
	}
	outcome.ExpiredCleared = expired

	outcome.Stores = s.fanOut(ctx, sourceName, slugs, func(ctx context.Context, slug string) models.StoreOutcome {
		return s.scrapeStore(ctx, adapter, mapping, slug)
	})
	return outcome, nil
}

func (s *Service) scrapeStore(ctx context.Context, adapter interfaces.SourceAdapter, mapping models.StoreMapping, slug string) models.StoreOutcome {
	store, ok := mapping.Lookup(slug)
	if !ok {
		return models.StoreFailure(fmt.Errorf("%w: %s is not seeded", models.ErrUnknownStore, slug))
	}

	items, err := adapter.Fetch(ctx, slug)
	if err != nil {
		return models.StoreFailure(err)
	}

	records := s.catalogue.Normalizer().NormalizeAll(items, store)
	result, err := s.catalogue.Reconcile(ctx, store.ID, records)
	if err != nil {
		return models.StoreFailure(fmt.Errorf("reconcile: %w", err))
	}

	outcome := models.StoreSuccess(len(items))
	outcome.Created = result.Created
	outcome.Updated = result.Updated
	outcome.Unchanged = result.Unchanged
	outcome.Skipped = result.Skipped
	return outcome
}

// RunEveryday is the body of an everyday price import job
func (s *Service) RunEveryday(ctx context.Context, sourceName, store string) (models.RunOutcome, error) {
	outcome := models.NewRunOutcome()

	source, err := s.registry.Everyday(sourceName)
	if err != nil {
		return outcome, err
	}
	if err := source.Configured(); err != nil {
		return outcome, err
	}

	slugs, err := selectStores(source.Stores(), store)
	if err != nil {
		return outcome, err
	}

	mapping, err := s.catalogue.Stores(ctx)
	if err != nil {
		return outcome, fmt.Errorf("load store mapping: %w", err)
	}

	outcome.Stores = s.fanOut(ctx, sourceName, slugs, func(ctx context.Context, slug string) models.StoreOutcome {
		st, ok := mapping.Lookup(slug)
		if !ok {
			return models.StoreFailure(fmt.Errorf("%w: %s is not seeded", models.ErrUnknownStore, slug))
		}

		items, err := source.FetchEveryday(ctx, slug)
		if err != nil {
			return models.StoreFailure(err)
		}

		result, err := s.catalogue.ReconcileEveryday(ctx, st.ID, items)
		if err != nil {
			return models.StoreFailure(fmt.Errorf("reconcile: %w", err))
		}

		o := models.StoreSuccess(len(items))
		o.Created = result.CreatedProducts
		o.Updated = result.UpdatedPrices
		o.Skipped = result.Skipped
		return o
	})
	return outcome, nil
}

// RunImageRepair is the body of the image repair sweep
func (s *Service) RunImageRepair(ctx context.Context, store string) (models.RunOutcome, error) {
	outcome := models.NewRunOutcome()
	if s.images == nil {
		return outcome, fmt.Errorf("image repair: %w", models.ErrNotConfigured)
	}
	if err := s.images.Configured(); err != nil {
		return outcome, err
	}

	slugs, err := selectStores(s.images.Stores(), store)
	if err != nil {
		return outcome, err
	}

	outcome.Stores = s.fanOut(ctx, imagerepair.SourceName, slugs, func(ctx context.Context, slug string) models.StoreOutcome {
		result, err := s.images.RepairStore(ctx, slug)
		if err != nil {
			return models.StoreFailure(err)
		}
		o := models.StoreSuccess(result.Fixed)
		o.Updated = result.Fixed
		o.Skipped = result.NotFound + result.Errors
		return o
	})
	return outcome, nil
}

// fanOut runs fn for every slug with bounded concurrency and a per-store
// timeout. The returned map holds exactly one outcome per slug.
func (s *Service) fanOut(ctx context.Context, source string, slugs []string, fn storeFunc) map[string]models.StoreOutcome {
	var (
		mu       sync.Mutex
		outcomes = make(map[string]models.StoreOutcome, len(slugs))
	)

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for _, slug := range slugs {
		g.Go(func() error {
			start := time.Now()
			outcome := s.runStore(ctx, slug, fn)

			mu.Lock()
			outcomes[slug] = outcome
			mu.Unlock()

			if outcome.Success {
				s.logger.Info().
					Str("source", source).
					Str("store", slug).
					Int("items", outcome.ItemCount).
					Int("created", outcome.Created).
					Int("updated", outcome.Updated).
					Int("skipped", outcome.Skipped).
					Dur("duration", time.Since(start)).
					Msg("Store ingested")
			} else {
				s.logger.Error().
					Str("source", source).
					Str("store", slug).
					Str("error_kind", outcome.ErrorKind).
					Str("error", outcome.Error).
					Dur("duration", time.Since(start)).
					Msg("Store ingestion failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// runStore bounds one store by the store timeout and turns a panic into a
// failed outcome
func (s *Service) runStore(ctx context.Context, slug string, fn storeFunc) (outcome models.StoreOutcome) {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("store", slug).Str("stack", common.GetStackTrace()).Msg(fmt.Sprintf("Store panicked: %v", r))
			outcome = models.StoreFailure(fmt.Errorf("panic: %v", r))
		}
	}()

	outcome = fn(storeCtx, slug)
	if !outcome.Success && errors.Is(storeCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		outcome = models.StoreFailure(fmt.Errorf("timed out after %s: %w", s.storeTimeout, context.DeadlineExceeded))
	}
	return outcome
}

// selectStores narrows a source's stores to one slug when requested
func selectStores(covered []string, store string) ([]string, error) {
	if store == "" {
		return covered, nil
	}
	if !sources.Covers(covered, store) {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownStore, store)
	}
	return []string{store}, nil
}
