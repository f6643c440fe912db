package catalogue

import (
	"context"
	"sort"

	"github.com/ternarybob/specials/internal/interfaces"
	"github.com/ternarybob/specials/internal/models"
	"github.com/ternarybob/specials/internal/services/extractor"
)

// topBrandLimit bounds BackfillStats.TopBrands
const topBrandLimit = 20

// BrandCount is one row of the backfill brand histogram
type BrandCount struct {
	Brand string `json:"brand"`
	Count int    `json:"count"`
}

// BackfillStats reports what a brand/size backfill found
type BackfillStats struct {
	Total           int          `json:"total"`
	BrandExtracted  int          `json:"brand_extracted"`
	BrandAlreadySet int          `json:"brand_already_set"`
	BrandNotFound   int          `json:"brand_not_found"`
	SizeExtracted   int          `json:"size_extracted"`
	SizeAlreadySet  int          `json:"size_already_set"`
	TopBrands       []BrandCount `json:"top_brands,omitempty"`
	DryRun          bool         `json:"dry_run"`
}

// Backfill fills missing brand and size on every stored special using the
// extractor. With dryRun nothing is written. Brand and size are not part of
// the record key, so ids are stable.
func (s *Service) Backfill(ctx context.Context, dryRun bool) (BackfillStats, error) {
	stats := BackfillStats{DryRun: dryRun}

	records, err := s.storage.ListSpecials(ctx, interfaces.SpecialFilter{})
	if err != nil {
		return stats, err
	}
	stats.Total = len(records)

	brands := make(map[string]int)
	var changed []models.SpecialRecord
	for _, rec := range records {
		dirty := false

		if rec.Brand != "" {
			stats.BrandAlreadySet++
		} else if brand := extractor.ExtractBrand(rec.Name); brand != "" {
			stats.BrandExtracted++
			brands[brand]++
			rec.Brand = brand
			dirty = true
		} else {
			stats.BrandNotFound++
		}

		if rec.Size != "" {
			stats.SizeAlreadySet++
		} else if size := extractor.ExtractSize(rec.Name); size != "" {
			stats.SizeExtracted++
			rec.Size = size
			dirty = true
		}

		if dirty {
			changed = append(changed, rec)
		}
	}
	stats.TopBrands = topBrands(brands, topBrandLimit)

	if dryRun || len(changed) == 0 {
		return stats, nil
	}

	err = s.storage.Update(ctx, func(tx interfaces.CatalogueTx) error {
		now := s.now().UTC()
		for i := range changed {
			changed[i].UpdatedAt = now
			if err := tx.PutSpecial(&changed[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Brand backfill failed")
		return stats, err
	}

	s.logger.Info().
		Int("total", stats.Total).
		Int("brand_extracted", stats.BrandExtracted).
		Int("size_extracted", stats.SizeExtracted).
		Msg("Brand backfill complete")

	return stats, nil
}

// PatchImages sets image_url on the given special ids in one transaction
// and returns how many rows changed. Ids that no longer exist are ignored.
func (s *Service) PatchImages(ctx context.Context, images map[string]string) (int, error) {
	if len(images) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(images))
	for id := range images {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var patched int
	err := s.storage.Update(ctx, func(tx interfaces.CatalogueTx) error {
		patched = 0
		now := s.now().UTC()
		for _, id := range ids {
			rec, err := tx.GetSpecial(id)
			if err != nil {
				return err
			}
			if rec == nil || rec.ImageURL == images[id] {
				continue
			}
			rec.ImageURL = images[id]
			rec.UpdatedAt = now
			if err := tx.PutSpecial(rec); err != nil {
				return err
			}
			patched++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return patched, nil
}

// StoreSummary is the per-store view printed by the status command
type StoreSummary struct {
	Slug          string `json:"slug"`
	Active        int    `json:"active"`
	MissingImages int    `json:"missing_images"`
}

// Summary counts active specials and those without an image per store
func (s *Service) Summary(ctx context.Context) ([]StoreSummary, error) {
	stores, err := s.storage.ListStores(ctx)
	if err != nil {
		return nil, err
	}

	today := s.normalizer.Today()
	summaries := make([]StoreSummary, 0, len(stores))
	for _, st := range stores {
		active, err := s.storage.ListSpecials(ctx, interfaces.SpecialFilter{StoreID: st.ID, ActiveOn: &today})
		if err != nil {
			return nil, err
		}
		missing, err := s.storage.ListSpecials(ctx, interfaces.SpecialFilter{StoreID: st.ID, ActiveOn: &today, MissingImage: true})
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, StoreSummary{Slug: st.Slug, Active: len(active), MissingImages: len(missing)})
	}
	return summaries, nil
}

func topBrands(counts map[string]int, limit int) []BrandCount {
	out := make([]BrandCount, 0, len(counts))
	for b, c := range counts {
		out = append(out, BrandCount{Brand: b, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Brand < out[j].Brand
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
