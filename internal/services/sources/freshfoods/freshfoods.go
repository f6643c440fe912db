// Package freshfoods reads everyday produce and meat prices from JSON feeds.
package freshfoods

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specials/internal/common"
	"github.com/ternarybob/specials/internal/httpclient"
	"github.com/ternarybob/specials/internal/interfaces"
	"github.com/ternarybob/specials/internal/models"
	"github.com/ternarybob/specials/internal/services/sources"
)

// SourceName is the tag recorded on every price
const SourceName = "fresh_foods"

type feedResponse struct {
	Items []models.EverydayItem `json:"items"`
}

// Source implements EverydaySource
type Source struct {
	config *common.FreshFoodsConfig
	client *httpclient.Client
	logger arbor.ILogger
}

var _ interfaces.EverydaySource = (*Source)(nil)

// NewSource creates a fresh foods price source
func NewSource(config *common.FreshFoodsConfig, client *httpclient.Client, logger arbor.ILogger) *Source {
	return &Source{
		config: config,
		client: client,
		logger: logger,
	}
}

// Name returns "fresh_foods"
func (s *Source) Name() string {
	return SourceName
}

// Stores lists the slugs with a configured feed
func (s *Source) Stores() []string {
	return sources.SortedStores(s.config.Feeds)
}

// Configured reports whether the source can run
func (s *Source) Configured() error {
	if !s.config.Enabled || len(s.config.Feeds) == 0 {
		return fmt.Errorf("fresh foods feeds: %w", models.ErrNotConfigured)
	}
	return nil
}

// FetchEveryday returns the current everyday prices of a store. Every item
// is stamped with the store slug and source regardless of the feed content.
func (s *Source) FetchEveryday(ctx context.Context, storeSlug string) ([]models.EverydayItem, error) {
	feedURL, ok := s.config.Feeds[storeSlug]
	if !ok {
		return nil, fmt.Errorf("%w: no fresh foods feed for %s", models.ErrUnknownStore, storeSlug)
	}

	var resp feedResponse
	if err := s.client.GetJSON(ctx, feedURL, nil, &resp); err != nil {
		return nil, err
	}

	items := make([]models.EverydayItem, 0, len(resp.Items))
	for _, item := range resp.Items {
		item.Name = strings.TrimSpace(item.Name)
		item.StoreSlug = storeSlug
		if item.Source == "" {
			item.Source = SourceName
		}
		items = append(items, item)
	}

	s.logger.Debug().Str("store", storeSlug).Int("items", len(items)).Msg("Fresh foods feed fetched")
	return items, nil
}
