// Package importer loads bulk specials and everyday prices from CSV, JSON or
// YAML files through the same normalize -> reconcile path as the scrapers.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specials/internal/models"
	"github.com/ternarybob/specials/internal/services/catalogue"
)

// RowError describes a row rejected by validation
type RowError struct {
	Row   int    `json:"row"`
	Name  string `json:"name"`
	Error string `json:"error"`
}

// Result summarises an import
type Result struct {
	Rows     int                       `json:"rows"`
	Invalid  []RowError                `json:"invalid,omitempty"`
	Specials catalogue.ReconcileResult `json:"specials"`
	Everyday catalogue.EverydayResult  `json:"everyday"`
}

// Service runs bulk imports
type Service struct {
	catalogue *catalogue.Service
	validate  *validator.Validate
	logger    arbor.ILogger
}

// NewService creates an importer
func NewService(cat *catalogue.Service, logger arbor.ILogger) *Service {
	return &Service{
		catalogue: cat,
		validate:  validator.New(),
		logger:    logger,
	}
}

// ImportSpecials decodes rows and upserts them as specials. Invalid rows and
// rows naming an unknown store are skipped and counted; one store failing
// does not stop the others.
func (s *Service) ImportSpecials(ctx context.Context, r io.Reader, format Format) (Result, error) {
	rows, result, err := s.load(r, format)
	if err != nil {
		return result, err
	}

	mapping, err := s.catalogue.Stores(ctx)
	if err != nil {
		return result, err
	}

	norm := s.catalogue.Normalizer()
	records := make([]models.SpecialRecord, 0, len(rows))
	for _, row := range rows {
		slug := strings.ToLower(strings.TrimSpace(row.StoreSlug))
		store, ok := mapping.Lookup(slug)
		if !ok {
			// ReconcileBatch counts rows for unknown slugs as skipped
			store = models.Store{Slug: slug}
		}
		records = append(records, norm.Normalize(row.RawItem(), store))
	}

	result.Specials, err = s.catalogue.ReconcileBatch(ctx, records)
	result.Specials.Skipped += len(result.Invalid)

	s.logger.Info().
		Int("rows", result.Rows).
		Int("created", result.Specials.Created).
		Int("updated", result.Specials.Updated).
		Int("unchanged", result.Specials.Unchanged).
		Int("skipped", result.Specials.Skipped).
		Msg("Specials import complete")

	return result, err
}

// ImportEveryday decodes rows and upserts them as everyday prices
func (s *Service) ImportEveryday(ctx context.Context, r io.Reader, format Format) (Result, error) {
	rows, result, err := s.load(r, format)
	if err != nil {
		return result, err
	}

	items := make([]models.EverydayItem, 0, len(rows))
	for _, row := range rows {
		item := row.EverydayItem()
		item.StoreSlug = strings.ToLower(strings.TrimSpace(item.StoreSlug))
		items = append(items, item)
	}

	result.Everyday, err = s.catalogue.ImportEveryday(ctx, items)
	result.Everyday.Skipped += len(result.Invalid)

	s.logger.Info().
		Int("rows", result.Rows).
		Int("created_products", result.Everyday.CreatedProducts).
		Int("created_prices", result.Everyday.CreatedPrices).
		Int("updated_prices", result.Everyday.UpdatedPrices).
		Int("skipped", result.Everyday.Skipped).
		Msg("Everyday import complete")

	return result, err
}

// load decodes and validates rows, returning only the valid ones
func (s *Service) load(r io.Reader, format Format) ([]models.ImportRecord, Result, error) {
	var result Result

	rows, err := Decode(r, format)
	if err != nil {
		return nil, result, err
	}
	result.Rows = len(rows)

	valid := make([]models.ImportRecord, 0, len(rows))
	for i, row := range rows {
		if err := s.validate.Struct(row); err != nil {
			result.Invalid = append(result.Invalid, RowError{Row: i + 1, Name: row.Name, Error: describe(err)})
			continue
		}
		valid = append(valid, row)
	}

	if len(result.Invalid) > 0 {
		s.logger.Warn().Int("invalid", len(result.Invalid)).Int("rows", result.Rows).Msg("Import rows failed validation")
	}
	return valid, result, nil
}

// describe flattens validator errors into "field: rule" pairs
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
