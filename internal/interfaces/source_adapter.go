package interfaces

import (
	"context"

	"github.com/ternarybob/specials/internal/models"
)

// SourceAdapter translates one external specials provider into raw items.
// Calling it with a slug outside Stores() fails with models.ErrUnknownStore.
type SourceAdapter interface {
	// Name is the stable source tag recorded on every item, e.g. "salefinder".
	Name() string

	// Stores lists the store slugs this adapter can fetch.
	Stores() []string

	// Configured returns nil when the source can run, or an error wrapping
	// models.ErrNotConfigured when a credential or setting is missing.
	Configured() error

	// Fetch returns the current specials of a store. Failures wrap
	// models.ErrNetwork or models.ErrParse.
	Fetch(ctx context.Context, storeSlug string) ([]models.RawItem, error)
}

// CatalogueDiscoverer is implemented by sources with a browsable catalogue
// listing. Sources without one answer models.ErrNotSupported.
type CatalogueDiscoverer interface {
	Discover(ctx context.Context, storeSlug string) ([]models.CatalogueRef, error)
	FetchCatalogue(ctx context.Context, ref models.CatalogueRef) ([]models.RawItem, error)
}

// EverydaySource produces non-promotional prices for the product catalogue.
type EverydaySource interface {
	Name() string
	Stores() []string
	Configured() error
	FetchEveryday(ctx context.Context, storeSlug string) ([]models.EverydayItem, error)
}
