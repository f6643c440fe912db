package models

import "time"

// Store is a retailer whose specials and everyday prices are tracked.
// Slug is the stable external key referenced by every source and import.
type Store struct {
	ID          int64     `json:"id" db:"id" badgerhold:"key"`
	Name        string    `json:"name" db:"name"`
	Slug        string    `json:"slug" db:"slug" badgerhold:"index"`
	LogoURL     string    `json:"logo_url,omitempty" db:"logo_url"`
	WebsiteURL  string    `json:"website_url,omitempty" db:"website_url"`
	SpecialsDay string    `json:"specials_day,omitempty" db:"specials_day"` // weekday the promotion cycle starts, e.g. "wednesday"
	CreatedAt   time.Time `json:"created_at" db:"-"`
}

// DefaultStores returns the stores seeded into an empty catalogue.
func DefaultStores() []Store {
	return []Store{
		{ID: 1, Name: "Woolworths", Slug: "woolworths", LogoURL: "https://www.woolworths.com.au/static/wowlogo/logo.svg", WebsiteURL: "https://www.woolworths.com.au", SpecialsDay: "wednesday"},
		{ID: 2, Name: "Coles", Slug: "coles", LogoURL: "https://www.coles.com.au/content/dam/coles/coles-logo.svg", WebsiteURL: "https://www.coles.com.au", SpecialsDay: "wednesday"},
		{ID: 3, Name: "ALDI", Slug: "aldi", LogoURL: "https://www.aldi.com.au/static/aldi/logo.svg", WebsiteURL: "https://www.aldi.com.au", SpecialsDay: "wednesday"},
		{ID: 4, Name: "IGA", Slug: "iga", LogoURL: "https://www.iga.com.au/sites/default/files/IGA_Logo.png", WebsiteURL: "https://www.iga.com.au", SpecialsDay: "wednesday"},
	}
}

// StoreMapping resolves slugs to stores for a single batch.
type StoreMapping map[string]Store

// NewStoreMapping indexes stores by slug.
func NewStoreMapping(stores []Store) StoreMapping {
	m := make(StoreMapping, len(stores))
	for _, s := range stores {
		m[s.Slug] = s
	}
	return m
}

// Lookup returns the store for slug, if known.
func (m StoreMapping) Lookup(slug string) (Store, bool) {
	s, ok := m[slug]
	return s, ok
}

// ByID returns the store with the given id, if known.
func (m StoreMapping) ByID(id int64) (Store, bool) {
	for _, s := range m {
		if s.ID == id {
			return s, true
		}
	}
	return Store{}, false
}
