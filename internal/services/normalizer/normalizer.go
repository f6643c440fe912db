// Package normalizer converts raw source items into canonical catalogue records.
package normalizer

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/ternarybob/specials/internal/models"
	"github.com/ternarybob/specials/internal/services/extractor"
)

// Normalizer turns RawItems into SpecialRecords. It never mutates its input.
type Normalizer struct {
	now      func() time.Time
	location *time.Location
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock overrides the time source used for scraped-at and default windows.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// WithLocation sets the location whose calendar defines "today".
func WithLocation(loc *time.Location) Option {
	return func(n *Normalizer) {
		if loc != nil {
			n.location = loc
		}
	}
}

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{now: time.Now, location: time.Local}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Today returns the current calendar date in the configured location.
func (n *Normalizer) Today() time.Time {
	return models.DateOf(n.now().In(n.location))
}

// Normalize converts a raw item for the given store into a canonical record.
// Brand and size fall back to extraction from the name, the name is truncated
// to models.MaxNameLength runes, and the validity window defaults to
// [today, today+7d].
func (n *Normalizer) Normalize(raw models.RawItem, store models.Store) models.SpecialRecord {
	name := CleanName(raw.Name)

	brand := strings.TrimSpace(raw.Brand)
	if brand == "" {
		brand = extractor.ExtractBrand(name)
	}
	size := strings.TrimSpace(raw.Size)
	if size == "" {
		size = extractor.ExtractSize(name)
	}

	from, to := n.window(raw.ValidFrom, raw.ValidTo)

	rec := models.SpecialRecord{
		StoreID:         store.ID,
		StoreSlug:       store.Slug,
		Name:            name,
		Brand:           brand,
		Size:            size,
		Category:        strings.TrimSpace(raw.Category),
		Price:           roundCents(raw.Price),
		WasPrice:        copyFloat(raw.WasPrice),
		DiscountPercent: copyInt(raw.DiscountPercent),
		ImageURL:        strings.TrimSpace(raw.ImageURL),
		ProductURL:      strings.TrimSpace(raw.ProductURL),
		ValidFrom:       from,
		ValidTo:         to,
		Source:          raw.Source,
		ScrapedAt:       n.now().UTC(),
	}
	if rec.DiscountPercent == nil {
		rec.DiscountPercent = deriveDiscount(rec.Price, rec.WasPrice)
	}
	rec.ID = rec.Key().ID()
	return rec
}

// NormalizeAll converts a batch for one store.
func (n *Normalizer) NormalizeAll(items []models.RawItem, store models.Store) []models.SpecialRecord {
	out := make([]models.SpecialRecord, 0, len(items))
	for _, it := range items {
		out = append(out, n.Normalize(it, store))
	}
	return out
}

// NormalizeEveryday cleans an everyday item, filling brand and size from the
// name when the source did not provide them.
func (n *Normalizer) NormalizeEveryday(item models.EverydayItem) models.EverydayItem {
	out := item
	out.Name = CleanName(item.Name)
	out.StoreSlug = strings.TrimSpace(item.StoreSlug)
	out.Price = roundCents(item.Price)
	if strings.TrimSpace(out.Brand) == "" {
		out.Brand = extractor.ExtractBrand(out.Name)
	}
	if strings.TrimSpace(out.Size) == "" {
		out.Size = extractor.ExtractSize(out.Name)
	}
	return out
}

// window resolves the validity window. A lone valid_from gets the default
// length; a lone valid_to starts today (or on valid_to if that is earlier);
// an inverted window collapses onto valid_from.
func (n *Normalizer) window(from, to *time.Time) (time.Time, time.Time) {
	today := n.Today()
	defaultDays := int(models.DefaultValidity / (24 * time.Hour))

	switch {
	case from == nil && to == nil:
		return today, today.AddDate(0, 0, defaultDays)
	case from != nil && to == nil:
		f := models.DateOf(*from)
		return f, f.AddDate(0, 0, defaultDays)
	case from == nil && to != nil:
		t := models.DateOf(*to)
		if t.Before(today) {
			return t, t
		}
		return today, t
	}

	f, t := models.DateOf(*from), models.DateOf(*to)
	if t.Before(f) {
		t = f
	}
	return f, t
}

// CleanName applies NFC normalisation, collapses whitespace and truncates to
// models.MaxNameLength runes.
func CleanName(name string) string {
	name = norm.NFC.String(name)
	name = strings.Join(strings.Fields(name), " ")
	if utf8.RuneCountInString(name) <= models.MaxNameLength {
		return name
	}
	runes := []rune(name)
	return strings.TrimSpace(string(runes[:models.MaxNameLength]))
}

func deriveDiscount(price float64, was *float64) *int {
	if was == nil || *was <= 0 || *was <= price {
		return nil
	}
	pct := int(math.Round((*was - price) / *was * 100))
	return &pct
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := roundCents(*v)
	return &c
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
