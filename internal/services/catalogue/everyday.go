package catalogue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/ternarybob/specials/internal/interfaces"
	"github.com/ternarybob/specials/internal/models"
	"github.com/ternarybob/specials/internal/services/normalizer"
)

var (
	productNamespace      = uuid.MustParse("2b0f6c1e-93a4-4c52-8d7e-5a61f0c9b4d3")
	storeProductNamespace = uuid.MustParse("c47e8a20-1f3b-4e0d-b6a9-0e2d7c5f8a14")
	priceNamespace        = uuid.MustParse("e91d3b57-6a0c-4f28-9c4e-7b18a2d6f035")
)

// EverydayResult counts what one everyday import did to the catalogue
type EverydayResult struct {
	CreatedProducts      int `json:"created_products"`
	CreatedStoreProducts int `json:"created_store_products"`
	CreatedPrices        int `json:"created_prices"`
	UpdatedPrices        int `json:"updated_prices"`
	Skipped              int `json:"skipped"`
}

// Add accumulates another result into r
func (r *EverydayResult) Add(o EverydayResult) {
	r.CreatedProducts += o.CreatedProducts
	r.CreatedStoreProducts += o.CreatedStoreProducts
	r.CreatedPrices += o.CreatedPrices
	r.UpdatedPrices += o.UpdatedPrices
	r.Skipped += o.Skipped
}

// NameKey is the product identity: the cleaned, case-folded name
func NameKey(name string) string {
	return cases.Fold().String(normalizer.CleanName(name))
}

// ReconcileEveryday applies one store's everyday prices in a single
// transaction. Products match on NameKey across the whole catalogue, the
// StoreProduct on (product, store), and an existing Price is overwritten in
// place: last write wins, no history.
func (s *Service) ReconcileEveryday(ctx context.Context, storeID int64, items []models.EverydayItem) (EverydayResult, error) {
	var result EverydayResult

	batch := make([]models.EverydayItem, 0, len(items))
	for _, item := range items {
		item = s.normalizer.NormalizeEveryday(item)
		if item.Name == "" || item.Price < 0 {
			result.Skipped++
			continue
		}
		batch = append(batch, item)
	}

	var counts EverydayResult
	err := s.storage.Update(ctx, func(tx interfaces.CatalogueTx) error {
		counts = EverydayResult{}
		now := s.now().UTC()

		for _, item := range batch {
			key := NameKey(item.Name)
			product, err := tx.FindProductByNameKey(key)
			if err != nil {
				return err
			}
			if product == nil {
				product = &models.Product{
					ID:        uuid.NewSHA1(productNamespace, []byte(key)).String(),
					Name:      item.Name,
					NameKey:   key,
					Brand:     item.Brand,
					Size:      item.Size,
					Barcode:   item.Barcode,
					Category:  item.Category,
					ImageURL:  item.ImageURL,
					CreatedAt: now,
				}
				if err := tx.PutProduct(product); err != nil {
					return err
				}
				counts.CreatedProducts++
			}

			sp, err := tx.GetStoreProduct(product.ID, storeID)
			if err != nil {
				return err
			}
			if sp == nil {
				sp = &models.StoreProduct{
					ID:        uuid.NewSHA1(storeProductNamespace, []byte(product.ID+"|"+strconv.FormatInt(storeID, 10))).String(),
					ProductID: product.ID,
					StoreID:   storeID,
					ImageURL:  item.ImageURL,
					CreatedAt: now,
				}
				if err := tx.PutStoreProduct(sp); err != nil {
					return err
				}
				counts.CreatedStoreProducts++
			}

			price, err := tx.GetPriceByStoreProduct(sp.ID)
			if err != nil {
				return err
			}
			if price == nil {
				price = &models.Price{
					ID:             uuid.NewSHA1(priceNamespace, []byte(sp.ID)).String(),
					StoreProductID: sp.ID,
				}
				counts.CreatedPrices++
			} else {
				counts.UpdatedPrices++
			}
			price.Price = item.Price
			price.UnitPrice = item.UnitPrice
			price.IsSpecial = item.IsSpecial
			price.Source = item.Source
			price.UpdatedAt = now
			if err := tx.PutPrice(price); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("store_id", storeID).Int("items", len(batch)).Msg("Everyday batch aborted")
		return EverydayResult{Skipped: result.Skipped}, fmt.Errorf("reconcile everyday store %d: %w", storeID, err)
	}

	counts.Skipped = result.Skipped
	s.logger.Debug().
		Int64("store_id", storeID).
		Int("created_products", counts.CreatedProducts).
		Int("created_prices", counts.CreatedPrices).
		Int("updated_prices", counts.UpdatedPrices).
		Int("skipped", counts.Skipped).
		Msg("Reconciled everyday prices")

	return counts, nil
}

// ImportEveryday groups items by store slug and reconciles each store.
// Unknown slugs are skipped and counted.
func (s *Service) ImportEveryday(ctx context.Context, items []models.EverydayItem) (EverydayResult, error) {
	var result EverydayResult

	mapping, err := s.Stores(ctx)
	if err != nil {
		return result, err
	}

	groups := make(map[int64][]models.EverydayItem)
	var order []int64
	for _, item := range items {
		st, ok := mapping.Lookup(strings.TrimSpace(item.StoreSlug))
		if !ok {
			s.logger.Warn().Str("store", item.StoreSlug).Str("name", item.Name).Msg("Skipping everyday price for unknown store")
			result.Skipped++
			continue
		}
		if _, seen := groups[st.ID]; !seen {
			order = append(order, st.ID)
		}
		groups[st.ID] = append(groups[st.ID], item)
	}

	var errs []error
	for _, storeID := range order {
		r, err := s.ReconcileEveryday(ctx, storeID, groups[storeID])
		result.Add(r)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return result, errors.Join(errs...)
}
