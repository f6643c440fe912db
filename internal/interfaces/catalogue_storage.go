package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/specials/internal/models"
)

// SpecialFilter narrows ListSpecials. Zero values mean "any".
type SpecialFilter struct {
	StoreID      int64
	ActiveOn     *time.Time // only records with valid_to >= this date
	MissingImage bool       // only records without an image URL
}

// CatalogueStorage is the persistent catalogue: stores, promotional
// specials and the everyday Product/StoreProduct/Price tables.
type CatalogueStorage interface {
	// SeedStores inserts stores whose id or slug is not present yet and
	// returns how many were added.
	SeedStores(ctx context.Context, stores []models.Store) (int, error)
	ListStores(ctx context.Context) ([]models.Store, error)
	// GetStoreBySlug returns models.ErrUnknownStore when the slug is absent.
	GetStoreBySlug(ctx context.Context, slug string) (*models.Store, error)

	// Update runs fn in a single transaction. Returning an error from fn
	// discards every write made through tx.
	Update(ctx context.Context, fn func(tx CatalogueTx) error) error

	ListSpecials(ctx context.Context, filter SpecialFilter) ([]models.SpecialRecord, error)
	// ExpireSpecials deletes records with valid_to strictly before asOf's date.
	ExpireSpecials(ctx context.Context, asOf time.Time) (int, error)

	ListProducts(ctx context.Context) ([]models.Product, error)
	ListStoreProducts(ctx context.Context) ([]models.StoreProduct, error)
	ListPrices(ctx context.Context) ([]models.Price, error)

	Close() error
}

// CatalogueTx is the write view of one CatalogueStorage.Update call.
// Getters return (nil, nil) when the row does not exist.
type CatalogueTx interface {
	GetSpecial(id string) (*models.SpecialRecord, error)
	PutSpecial(rec *models.SpecialRecord) error

	FindProductByNameKey(nameKey string) (*models.Product, error)
	PutProduct(p *models.Product) error

	GetStoreProduct(productID string, storeID int64) (*models.StoreProduct, error)
	PutStoreProduct(sp *models.StoreProduct) error

	GetPriceByStoreProduct(storeProductID string) (*models.Price, error)
	PutPrice(p *models.Price) error
}
