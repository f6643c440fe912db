package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/specials/internal/interfaces"
	"github.com/ternarybob/specials/internal/models"
)

// maxConflictRetries bounds re-runs of a transaction that lost a write
// conflict against a concurrent store batch.
const maxConflictRetries = 3

// CatalogueStorage implements interfaces.CatalogueStorage on badgerhold
type CatalogueStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCatalogueStorage creates a new CatalogueStorage instance
func NewCatalogueStorage(db *BadgerDB, logger arbor.ILogger) *CatalogueStorage {
	return &CatalogueStorage{
		db:     db,
		logger: logger,
	}
}

var _ interfaces.CatalogueStorage = (*CatalogueStorage)(nil)

// SeedStores inserts stores whose id and slug are both unused
func (s *CatalogueStorage) SeedStores(ctx context.Context, stores []models.Store) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	existing, err := s.ListStores(ctx)
	if err != nil {
		return 0, err
	}
	ids := make(map[int64]bool, len(existing))
	slugs := make(map[string]bool, len(existing))
	for _, st := range existing {
		ids[st.ID] = true
		slugs[st.Slug] = true
	}

	added := 0
	now := time.Now().UTC()
	for _, st := range stores {
		if ids[st.ID] || slugs[st.Slug] {
			continue
		}
		st.CreatedAt = now
		if err := s.db.Store().Insert(st.ID, &st); err != nil {
			return added, fmt.Errorf("failed to seed store %s: %w", st.Slug, err)
		}
		ids[st.ID] = true
		slugs[st.Slug] = true
		added++
	}
	return added, nil
}

func (s *CatalogueStorage) ListStores(ctx context.Context) ([]models.Store, error) {
	var stores []models.Store
	if err := s.db.Store().Find(&stores, nil); err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	sort.Slice(stores, func(i, j int) bool { return stores[i].ID < stores[j].ID })
	return stores, nil
}

func (s *CatalogueStorage) GetStoreBySlug(ctx context.Context, slug string) (*models.Store, error) {
	var stores []models.Store
	if err := s.db.Store().Find(&stores, badgerhold.Where("Slug").Eq(slug).Index("Slug")); err != nil {
		return nil, fmt.Errorf("failed to get store: %w", err)
	}
	if len(stores) == 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownStore, slug)
	}
	return &stores[0], nil
}

// Update runs fn inside one badger read-write transaction. A transaction
// that loses a write conflict is retried from scratch.
func (s *CatalogueStorage) Update(ctx context.Context, fn func(tx interfaces.CatalogueTx) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = s.db.Store().Badger().Update(func(txn *badger.Txn) error {
			return fn(&catalogueTx{store: s.db.Store(), txn: txn})
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.logger.Debug().Int("attempt", attempt+1).Msg("Catalogue transaction conflict, retrying")
	}
	return err
}

func (s *CatalogueStorage) ListSpecials(ctx context.Context, filter interfaces.SpecialFilter) ([]models.SpecialRecord, error) {
	var query *badgerhold.Query
	if filter.StoreID != 0 {
		query = badgerhold.Where("StoreID").Eq(filter.StoreID).Index("StoreID")
	}

	var records []models.SpecialRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list specials: %w", err)
	}

	stores, err := s.ListStores(ctx)
	if err != nil {
		return nil, err
	}
	slugs := make(map[int64]string, len(stores))
	for _, st := range stores {
		slugs[st.ID] = st.Slug
	}

	out := records[:0]
	for _, rec := range records {
		if filter.ActiveOn != nil && !rec.IsActive(*filter.ActiveOn) {
			continue
		}
		if filter.MissingImage && rec.ImageURL != "" {
			continue
		}
		rec.StoreSlug = slugs[rec.StoreID]
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].StoreID != out[j].StoreID {
			return out[i].StoreID < out[j].StoreID
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ValidFrom.Before(out[j].ValidFrom)
	})
	return out, nil
}

// ExpireSpecials deletes records whose valid_to is before asOf's calendar date
func (s *CatalogueStorage) ExpireSpecials(ctx context.Context, asOf time.Time) (int, error) {
	today := models.DateOf(asOf)
	deleted := 0

	err := s.Update(ctx, func(tx interfaces.CatalogueTx) error {
		deleted = 0
		t := tx.(*catalogueTx)

		var records []models.SpecialRecord
		if err := t.store.TxFind(t.txn, &records, nil); err != nil {
			return err
		}
		for _, rec := range records {
			if !rec.ValidTo.Before(today) {
				continue
			}
			if err := t.store.TxDelete(t.txn, rec.ID, models.SpecialRecord{}); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to expire specials: %w", err)
	}

	return deleted, nil
}

func (s *CatalogueStorage) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := s.db.Store().Find(&products, nil); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].NameKey < products[j].NameKey })
	return products, nil
}

func (s *CatalogueStorage) ListStoreProducts(ctx context.Context) ([]models.StoreProduct, error) {
	var storeProducts []models.StoreProduct
	if err := s.db.Store().Find(&storeProducts, nil); err != nil {
		return nil, fmt.Errorf("failed to list store products: %w", err)
	}
	sort.Slice(storeProducts, func(i, j int) bool { return storeProducts[i].ID < storeProducts[j].ID })
	return storeProducts, nil
}

func (s *CatalogueStorage) ListPrices(ctx context.Context) ([]models.Price, error) {
	var prices []models.Price
	if err := s.db.Store().Find(&prices, nil); err != nil {
		return nil, fmt.Errorf("failed to list prices: %w", err)
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].StoreProductID < prices[j].StoreProductID })
	return prices, nil
}

// Close closes the underlying database
func (s *CatalogueStorage) Close() error {
	return s.db.Close()
}

// catalogueTx binds badgerhold Tx* calls to one badger transaction
type catalogueTx struct {
	store *badgerhold.Store
	txn   *badger.Txn
}

func (t *catalogueTx) GetSpecial(id string) (*models.SpecialRecord, error) {
	var rec models.SpecialRecord
	if err := t.store.TxGet(t.txn, id, &rec); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get special %s: %w", id, err)
	}
	return &rec, nil
}

func (t *catalogueTx) PutSpecial(rec *models.SpecialRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("special ID is required")
	}
	if err := t.store.TxUpsert(t.txn, rec.ID, rec); err != nil {
		return fmt.Errorf("failed to save special: %w", err)
	}
	return nil
}

func (t *catalogueTx) FindProductByNameKey(nameKey string) (*models.Product, error) {
	var products []models.Product
	query := badgerhold.Where("NameKey").Eq(nameKey).Index("NameKey").Limit(1)
	if err := t.store.TxFind(t.txn, &products, query); err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	if len(products) == 0 {
		return nil, nil
	}
	return &products[0], nil
}

func (t *catalogueTx) PutProduct(p *models.Product) error {
	if err := t.store.TxUpsert(t.txn, p.ID, p); err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

func (t *catalogueTx) GetStoreProduct(productID string, storeID int64) (*models.StoreProduct, error) {
	var storeProducts []models.StoreProduct
	query := badgerhold.Where("ProductID").Eq(productID).Index("ProductID").And("StoreID").Eq(storeID).Limit(1)
	if err := t.store.TxFind(t.txn, &storeProducts, query); err != nil {
		return nil, fmt.Errorf("failed to find store product: %w", err)
	}
	if len(storeProducts) == 0 {
		return nil, nil
	}
	return &storeProducts[0], nil
}

func (t *catalogueTx) PutStoreProduct(sp *models.StoreProduct) error {
	if err := t.store.TxUpsert(t.txn, sp.ID, sp); err != nil {
		return fmt.Errorf("failed to save store product: %w", err)
	}
	return nil
}

func (t *catalogueTx) GetPriceByStoreProduct(storeProductID string) (*models.Price, error) {
	var prices []models.Price
	query := badgerhold.Where("StoreProductID").Eq(storeProductID).Index("StoreProductID").Limit(1)
	if err := t.store.TxFind(t.txn, &prices, query); err != nil {
		return nil, fmt.Errorf("failed to find price: %w", err)
	}
	if len(prices) == 0 {
		return nil, nil
	}
	return &prices[0], nil
}

func (t *catalogueTx) PutPrice(p *models.Price) error {
	if err := t.store.TxUpsert(t.txn, p.ID, p); err != nil {
		return fmt.Errorf("failed to save price: %w", err)
	}
	return nil
}
