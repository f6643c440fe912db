package models

import "time"

// RawItem is an unvalidated item as returned by a source adapter.
// It is never persisted; the normalizer turns it into a SpecialRecord.
type RawItem struct {
	Name            string     `json:"name"`
	Price           float64    `json:"price"`
	WasPrice        *float64   `json:"was_price,omitempty"`
	DiscountPercent *int       `json:"discount_percent,omitempty"`
	Brand           string     `json:"brand,omitempty"`
	Size            string     `json:"size,omitempty"`
	Category        string     `json:"category,omitempty"`
	ImageURL        string     `json:"image_url,omitempty"`
	ProductURL      string     `json:"product_url,omitempty"`
	ValidFrom       *time.Time `json:"valid_from,omitempty"`
	ValidTo         *time.Time `json:"valid_to,omitempty"`
	Source          string     `json:"source,omitempty"`
}

// CatalogueRef points at one browsable promotional catalogue of a store.
type CatalogueRef struct {
	ID        string     `json:"id"`
	StoreSlug string     `json:"store_slug"`
	Name      string     `json:"name,omitempty"`
	URL       string     `json:"url,omitempty"`
	ValidFrom *time.Time `json:"valid_from,omitempty"`
	ValidTo   *time.Time `json:"valid_to,omitempty"`
}
