package models

import "time"

// EverydayItem is a non-promotional price observation for one store.
type EverydayItem struct {
	Name      string  `json:"name"`
	StoreSlug string  `json:"store_slug"`
	Price     float64 `json:"price"`
	Brand     string  `json:"brand,omitempty"`
	Size      string  `json:"size,omitempty"`
	Barcode   string  `json:"barcode,omitempty"`
	ImageURL  string  `json:"image_url,omitempty"`
	Category  string  `json:"category,omitempty"`
	UnitPrice string  `json:"unit_price,omitempty"`
	IsSpecial bool    `json:"is_special,omitempty"`
	Source    string  `json:"source,omitempty"`
}

// Product is a store-agnostic catalogue entry. NameKey is the case-folded
// name used for identity.
type Product struct {
	ID        string    `json:"id" db:"id" badgerhold:"key"`
	Name      string    `json:"name" db:"name"`
	NameKey   string    `json:"name_key" db:"name_key" badgerhold:"index"`
	Brand     string    `json:"brand,omitempty" db:"brand"`
	Size      string    `json:"size,omitempty" db:"size"`
	Barcode   string    `json:"barcode,omitempty" db:"barcode"`
	Category  string    `json:"category,omitempty" db:"category"`
	ImageURL  string    `json:"image_url,omitempty" db:"image_url"`
	CreatedAt time.Time `json:"created_at" db:"-"`
}

// StoreProduct binds a product to a store; at most one per (product, store).
type StoreProduct struct {
	ID        string    `json:"id" db:"id" badgerhold:"key"`
	ProductID string    `json:"product_id" db:"product_id" badgerhold:"index"`
	StoreID   int64     `json:"store_id" db:"store_id" badgerhold:"index"`
	ImageURL  string    `json:"image_url,omitempty" db:"image_url"`
	CreatedAt time.Time `json:"created_at" db:"-"`
}

// Price is the current everyday price of a store product. It is overwritten
// in place on every import; no history is kept.
type Price struct {
	ID             string    `json:"id" db:"id" badgerhold:"key"`
	StoreProductID string    `json:"store_product_id" db:"store_product_id" badgerhold:"index"`
	Price          float64   `json:"price" db:"price"`
	UnitPrice      string    `json:"unit_price,omitempty" db:"unit_price"`
	IsSpecial      bool      `json:"is_special" db:"is_special"`
	Source         string    `json:"source" db:"source"`
	UpdatedAt      time.Time `json:"updated_at" db:"-"`
}
