// Package catalogue reconciles normalized records against the persistent
// catalogue: promotional specials by (store, name, window) key and the
// everyday Product/StoreProduct/Price tables by case-folded name.
package catalogue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specials/internal/interfaces"
	"github.com/ternarybob/specials/internal/models"
	"github.com/ternarybob/specials/internal/services/normalizer"
)

// ReconcileResult counts what one promotional batch did to the catalogue
type ReconcileResult struct {
	Created    int `json:"created"`
	Updated    int `json:"updated"`
	Unchanged  int `json:"unchanged"`
	Skipped    int `json:"skipped"`    // unknown store or invalid record
	Duplicates int `json:"duplicates"` // repeated keys inside the batch, last one kept
}

// Add accumulates another result into r
func (r *ReconcileResult) Add(o ReconcileResult) {
	r.Created += o.Created
	r.Updated += o.Updated
	r.Unchanged += o.Unchanged
	r.Skipped += o.Skipped
	r.Duplicates += o.Duplicates
}

// Written is the number of records stored by the batch
func (r ReconcileResult) Written() int {
	return r.Created + r.Updated + r.Unchanged
}

// Service is the Catalogue Reconciler
type Service struct {
	storage    interfaces.CatalogueStorage
	normalizer *normalizer.Normalizer
	logger     arbor.ILogger
	now        func() time.Time
}

// NewService creates a new catalogue service
func NewService(storage interfaces.CatalogueStorage, norm *normalizer.Normalizer, logger arbor.ILogger) *Service {
	return &Service{
		storage:    storage,
		normalizer: norm,
		logger:     logger,
		now:        time.Now,
	}
}

// Normalizer returns the normalizer whose calendar defines "today"
func (s *Service) Normalizer() *normalizer.Normalizer {
	return s.normalizer
}

// SeedStores inserts missing stores and logs how many were added
func (s *Service) SeedStores(ctx context.Context, stores []models.Store) (int, error) {
	added, err := s.storage.SeedStores(ctx, stores)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to seed stores")
		return 0, err
	}
	if added > 0 {
		s.logger.Info().Int("added", added).Msg("Seeded stores")
	}
	return added, nil
}

// Stores returns the current store mapping keyed by slug
func (s *Service) Stores(ctx context.Context) (models.StoreMapping, error) {
	stores, err := s.storage.ListStores(ctx)
	if err != nil {
		return nil, err
	}
	return models.NewStoreMapping(stores), nil
}

// Store resolves a slug, failing with models.ErrUnknownStore
func (s *Service) Store(ctx context.Context, slug string) (models.Store, error) {
	st, err := s.storage.GetStoreBySlug(ctx, slug)
	if err != nil {
		return models.Store{}, err
	}
	return *st, nil
}

// Reconcile upserts one store's batch in a single transaction. Records for
// another store or failing validation are skipped; a storage failure aborts
// the whole batch and nothing from it is applied.
func (s *Service) Reconcile(ctx context.Context, storeID int64, records []models.SpecialRecord) (ReconcileResult, error) {
	var result ReconcileResult

	batch := make([]models.SpecialRecord, 0, len(records))
	index := make(map[string]int, len(records))
	for _, rec := range records {
		if rec.StoreID != storeID {
			result.Skipped++
			continue
		}
		if err := rec.Validate(); err != nil {
			s.logger.Warn().Err(err).Int64("store_id", storeID).Msg("Skipping invalid special")
			result.Skipped++
			continue
		}
		rec.ID = rec.Key().ID()
		if i, ok := index[rec.ID]; ok {
			batch[i] = rec
			result.Duplicates++
			continue
		}
		index[rec.ID] = len(batch)
		batch = append(batch, rec)
	}

	var counts ReconcileResult
	err := s.storage.Update(ctx, func(tx interfaces.CatalogueTx) error {
		counts = ReconcileResult{}
		now := s.now().UTC()
		for i := range batch {
			rec := batch[i]
			existing, err := tx.GetSpecial(rec.ID)
			if err != nil {
				return err
			}

			switch {
			case existing == nil:
				rec.CreatedAt = now
				rec.UpdatedAt = now
				counts.Created++
			case existing.SameContent(&rec):
				// Unchanged rows only move their scrape time forward
				counts.Unchanged++
				if !rec.ScrapedAt.After(existing.ScrapedAt) {
					continue
				}
				touched := *existing
				touched.ScrapedAt = rec.ScrapedAt
				if err := tx.PutSpecial(&touched); err != nil {
					return err
				}
				continue
			default:
				rec.CreatedAt = existing.CreatedAt
				rec.UpdatedAt = now
				counts.Updated++
			}

			if err := tx.PutSpecial(&rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("store_id", storeID).Int("items", len(batch)).Msg("Store batch aborted")
		return ReconcileResult{Skipped: result.Skipped}, fmt.Errorf("reconcile store %d: %w", storeID, err)
	}

	result.Created = counts.Created
	result.Updated = counts.Updated
	result.Unchanged = counts.Unchanged

	s.logger.Debug().
		Int64("store_id", storeID).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("unchanged", result.Unchanged).
		Int("skipped", result.Skipped).
		Msg("Reconciled specials")

	return result, nil
}

// ReconcileBatch groups records by store slug and reconciles each store in
// its own transaction. Unknown slugs are skipped and counted. Store failures
// do not stop the other stores; they are joined into the returned error.
func (s *Service) ReconcileBatch(ctx context.Context, records []models.SpecialRecord) (ReconcileResult, error) {
	var result ReconcileResult

	mapping, err := s.Stores(ctx)
	if err != nil {
		return result, err
	}

	groups := make(map[int64][]models.SpecialRecord)
	var order []int64
	for _, rec := range records {
		st, ok := mapping.Lookup(rec.StoreSlug)
		if !ok {
			s.logger.Warn().Str("store", rec.StoreSlug).Str("name", rec.Name).Msg("Skipping special for unknown store")
			result.Skipped++
			continue
		}
		rec.StoreID = st.ID
		if _, seen := groups[st.ID]; !seen {
			order = append(order, st.ID)
		}
		groups[st.ID] = append(groups[st.ID], rec)
	}

	var errs []error
	for _, storeID := range order {
		r, err := s.Reconcile(ctx, storeID, groups[storeID])
		result.Add(r)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return result, errors.Join(errs...)
}

// ExpireSpecials deletes specials whose window ended before asOf's date
func (s *Service) ExpireSpecials(ctx context.Context, asOf time.Time) (int, error) {
	deleted, err := s.storage.ExpireSpecials(ctx, asOf)
	if err != nil {
		s.logger.Error().Err(err).Msg("Expiry sweep failed")
		return 0, err
	}
	s.logger.Info().Int("deleted", deleted).Str("as_of", models.FormatDate(models.DateOf(asOf))).Msg("Expired specials removed")
	return deleted, nil
}

// ExpireToday runs the expiry sweep for the normalizer's current date
func (s *Service) ExpireToday(ctx context.Context) (int, error) {
	return s.ExpireSpecials(ctx, s.normalizer.Today())
}

// ListSpecials returns stored specials matching filter
func (s *Service) ListSpecials(ctx context.Context, filter interfaces.SpecialFilter) ([]models.SpecialRecord, error) {
	return s.storage.ListSpecials(ctx, filter)
}
