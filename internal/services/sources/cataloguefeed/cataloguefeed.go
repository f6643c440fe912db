// Package cataloguefeed reads paged JSON catalogue feeds published by
// retailers and aggregators.
package cataloguefeed

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specials/internal/common"
	"github.com/ternarybob/specials/internal/httpclient"
	"github.com/ternarybob/specials/internal/interfaces"
	"github.com/ternarybob/specials/internal/models"
	"github.com/ternarybob/specials/internal/services/sources"
)

// SourceName is the tag recorded on every item
const SourceName = "catalogue"

const (
	defaultPageSize = 100
	defaultMaxPages = 50
)

type feedItem struct {
	Name            string   `json:"name"`
	Price           float64  `json:"price"`
	WasPrice        *float64 `json:"was_price"`
	DiscountPercent *int     `json:"discount_percent"`
	Brand           string   `json:"brand"`
	Size            string   `json:"size"`
	Category        string   `json:"category"`
	ImageURL        string   `json:"image_url"`
	ProductURL      string   `json:"product_url"`
	ValidFrom       string   `json:"valid_from"`
	ValidTo         string   `json:"valid_to"`
}

type feedPage struct {
	Items      []feedItem `json:"items"`
	Page       int        `json:"page"`
	TotalPages int        `json:"total_pages"`
}

// Adapter implements SourceAdapter for paged JSON feeds
type Adapter struct {
	config *common.CatalogueConfig
	client *httpclient.Client
	logger arbor.ILogger
}

var _ interfaces.SourceAdapter = (*Adapter)(nil)

// NewAdapter creates a catalogue feed adapter
func NewAdapter(config *common.CatalogueConfig, client *httpclient.Client, logger arbor.ILogger) *Adapter {
	return &Adapter{
		config: config,
		client: client,
		logger: logger,
	}
}

// Name returns "catalogue"
func (a *Adapter) Name() string {
	return SourceName
}

// Stores lists the slugs with a configured feed
func (a *Adapter) Stores() []string {
	return sources.SortedStores(a.config.Feeds)
}

// Configured reports whether the source can run
func (a *Adapter) Configured() error {
	if !a.config.Enabled {
		return fmt.Errorf("catalogue feeds disabled: %w", models.ErrNotConfigured)
	}
	if len(a.config.Feeds) == 0 {
		return fmt.Errorf("no catalogue feeds: %w", models.ErrNotConfigured)
	}
	return nil
}

// Fetch walks every page of a store's feed
func (a *Adapter) Fetch(ctx context.Context, storeSlug string) ([]models.RawItem, error) {
	feedURL, ok := a.config.Feeds[storeSlug]
	if !ok {
		return nil, fmt.Errorf("%w: no catalogue feed for %s", models.ErrUnknownStore, storeSlug)
	}

	pageSize := a.config.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	maxPages := a.config.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	var items []models.RawItem
	for page := 1; page <= maxPages; page++ {
		var resp feedPage
		params := url.Values{
			"page":     {strconv.Itoa(page)},
			"pageSize": {strconv.Itoa(pageSize)},
		}
		if err := a.client.GetJSON(ctx, feedURL, params, &resp); err != nil {
			return nil, fmt.Errorf("feed page %d: %w", page, err)
		}

		for _, fi := range resp.Items {
			items = append(items, toRawItem(fi))
		}

		if len(resp.Items) == 0 || page >= resp.TotalPages {
			break
		}
		if page == maxPages {
			a.logger.Warn().
				Str("store", storeSlug).
				Int("max_pages", maxPages).
				Int("total_pages", resp.TotalPages).
				Msg("Catalogue feed truncated at page limit")
		}
	}

	return items, nil
}

// Discover is not offered by flat feeds
func (a *Adapter) Discover(ctx context.Context, storeSlug string) ([]models.CatalogueRef, error) {
	return nil, fmt.Errorf("catalogue feed discovery: %w", models.ErrNotSupported)
}

func toRawItem(fi feedItem) models.RawItem {
	return models.RawItem{
		Name:            strings.TrimSpace(fi.Name),
		Price:           fi.Price,
		WasPrice:        fi.WasPrice,
		DiscountPercent: fi.DiscountPercent,
		Brand:           fi.Brand,
		Size:            fi.Size,
		Category:        fi.Category,
		ImageURL:        fi.ImageURL,
		ProductURL:      fi.ProductURL,
		ValidFrom:       parseDate(fi.ValidFrom),
		ValidTo:         parseDate(fi.ValidTo),
		Source:          SourceName,
	}
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		d := models.DateOf(t)
		return &d
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return nil
	}
	return &d
}
