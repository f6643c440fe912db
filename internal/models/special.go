package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxNameLength bounds product names; longer names are truncated silently.
const MaxNameLength = 255

// DefaultValidity is the promotion window applied when a source provides none.
const DefaultValidity = 7 * 24 * time.Hour

// specialNamespace seeds name-based record ids so the same promotion always
// maps to the same key.
var specialNamespace = uuid.MustParse("8f0c5a8e-4d7b-4f6e-9a55-3b1f5f1de7a2")

// SpecialRecord is a canonical, persisted promotional price.
type SpecialRecord struct {
	ID              string    `json:"id" db:"id" badgerhold:"key"`
	StoreID         int64     `json:"store_id" db:"store_id" badgerhold:"index"`
	StoreSlug       string    `json:"store_slug" db:"-"`
	Name            string    `json:"name" db:"name"`
	Brand           string    `json:"brand,omitempty" db:"brand"`
	Size            string    `json:"size,omitempty" db:"size"`
	Category        string    `json:"category,omitempty" db:"category"`
	Price           float64   `json:"price" db:"price"`
	WasPrice        *float64  `json:"was_price,omitempty" db:"was_price"`
	DiscountPercent *int      `json:"discount_percent,omitempty" db:"discount_percent"`
	ImageURL        string    `json:"image_url,omitempty" db:"image_url"`
	ProductURL      string    `json:"product_url,omitempty" db:"product_url"`
	ValidFrom       time.Time `json:"valid_from" db:"-"` // calendar date, midnight UTC
	ValidTo         time.Time `json:"valid_to" db:"-"`   // calendar date, midnight UTC, inclusive
	Source          string    `json:"source,omitempty" db:"source"`
	ScrapedAt       time.Time `json:"scraped_at" db:"-"`
	CreatedAt       time.Time `json:"created_at" db:"-"`
	UpdatedAt       time.Time `json:"updated_at" db:"-"`
}

// SpecialKey is the dedup identity of a promotion.
type SpecialKey struct {
	StoreID   int64
	Name      string
	ValidFrom time.Time
	ValidTo   time.Time
}

// String renders the key in its canonical form.
func (k SpecialKey) String() string {
	return fmt.Sprintf("%d|%s|%s|%s", k.StoreID, strings.ToLower(k.Name), FormatDate(k.ValidFrom), FormatDate(k.ValidTo))
}

// ID returns the deterministic record id derived from the key.
func (k SpecialKey) ID() string {
	return uuid.NewSHA1(specialNamespace, []byte(k.String())).String()
}

// Key returns the dedup identity of the record.
func (r *SpecialRecord) Key() SpecialKey {
	return SpecialKey{StoreID: r.StoreID, Name: r.Name, ValidFrom: r.ValidFrom, ValidTo: r.ValidTo}
}

// Validate checks the record invariants.
func (r *SpecialRecord) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("special has empty name")
	}
	if r.Price < 0 {
		return fmt.Errorf("special %q has negative price %.2f", r.Name, r.Price)
	}
	if r.ValidTo.Before(r.ValidFrom) {
		return fmt.Errorf("special %q valid_to %s before valid_from %s", r.Name, FormatDate(r.ValidTo), FormatDate(r.ValidFrom))
	}
	return nil
}

// IsActive reports whether the promotion is still valid on the given day.
func (r *SpecialRecord) IsActive(today time.Time) bool {
	return !r.ValidTo.Before(DateOf(today))
}

// SameContent reports whether two records carry identical catalogue data,
// ignoring bookkeeping timestamps.
func (r *SpecialRecord) SameContent(o *SpecialRecord) bool {
	return r.Name == o.Name &&
		r.Brand == o.Brand &&
		r.Size == o.Size &&
		r.Category == o.Category &&
		r.Price == o.Price &&
		floatPtrEqual(r.WasPrice, o.WasPrice) &&
		intPtrEqual(r.DiscountPercent, o.DiscountPercent) &&
		r.ImageURL == o.ImageURL &&
		r.ProductURL == o.ProductURL &&
		r.Source == o.Source
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
