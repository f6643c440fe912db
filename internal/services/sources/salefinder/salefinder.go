// Package salefinder reads weekly catalogues from the SaleFinder embed API.
// Every endpoint answers JSON (optionally JSONP-wrapped) whose "content"
// field carries an HTML fragment.
package salefinder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specials/internal/common"
	"github.com/ternarybob/specials/internal/httpclient"
	"github.com/ternarybob/specials/internal/interfaces"
	"github.com/ternarybob/specials/internal/models"
	"github.com/ternarybob/specials/internal/services/sources"
)

// SourceName is the tag recorded on every item
const SourceName = "salefinder"

// Adapter implements SourceAdapter and CatalogueDiscoverer for SaleFinder
type Adapter struct {
	config *common.SaleFinderConfig
	client *httpclient.Client
	logger arbor.ILogger
}

var (
	_ interfaces.SourceAdapter       = (*Adapter)(nil)
	_ interfaces.CatalogueDiscoverer = (*Adapter)(nil)
)

// NewAdapter creates a new SaleFinder adapter
func NewAdapter(config *common.SaleFinderConfig, client *httpclient.Client, logger arbor.ILogger) *Adapter {
	return &Adapter{
		config: config,
		client: client,
		logger: logger,
	}
}

// Name returns "salefinder"
func (a *Adapter) Name() string {
	return SourceName
}

// Stores lists the slugs with a configured retailer id
func (a *Adapter) Stores() []string {
	return sources.SortedStores(a.config.Retailers)
}

// Configured reports whether the source can run
func (a *Adapter) Configured() error {
	switch {
	case !a.config.Enabled:
		return fmt.Errorf("salefinder disabled: %w", models.ErrNotConfigured)
	case a.config.BaseURL == "":
		return fmt.Errorf("salefinder base_url missing: %w", models.ErrNotConfigured)
	case len(a.config.Retailers) == 0:
		return fmt.Errorf("salefinder has no retailers: %w", models.ErrNotConfigured)
	}
	return nil
}

// Fetch returns the items of every current catalogue of a store. One failed
// catalogue fails the store so a partial batch is never reconciled.
func (a *Adapter) Fetch(ctx context.Context, storeSlug string) ([]models.RawItem, error) {
	refs, err := a.Discover(ctx, storeSlug)
	if err != nil {
		return nil, err
	}

	var items []models.RawItem
	for _, ref := range refs {
		catalogueItems, err := a.FetchCatalogue(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("catalogue %s: %w", ref.ID, err)
		}
		items = append(items, catalogueItems...)
	}

	a.logger.Debug().
		Str("source", SourceName).
		Str("store", storeSlug).
		Int("catalogues", len(refs)).
		Int("items", len(items)).
		Msg("SaleFinder fetch complete")

	return items, nil
}

// Discover lists the current catalogues of a store
func (a *Adapter) Discover(ctx context.Context, storeSlug string) ([]models.CatalogueRef, error) {
	retailerID, ok := a.config.Retailers[storeSlug]
	if !ok {
		return nil, fmt.Errorf("%w: salefinder does not cover %s", models.ErrUnknownStore, storeSlug)
	}

	doc, err := a.content(ctx, fmt.Sprintf("/catalogues/view/%s/", url.PathEscape(retailerID)), url.Values{
		"locationId": {a.config.LocationID},
		"format":     {"json"},
	})
	if err != nil {
		return nil, err
	}

	return parseCatalogueList(doc, storeSlug, a.config.BaseURL), nil
}

// FetchCatalogue returns the items of one catalogue
func (a *Adapter) FetchCatalogue(ctx context.Context, ref models.CatalogueRef) ([]models.RawItem, error) {
	if _, ok := a.config.Retailers[ref.StoreSlug]; !ok {
		return nil, fmt.Errorf("%w: salefinder does not cover %s", models.ErrUnknownStore, ref.StoreSlug)
	}

	doc, err := a.content(ctx, fmt.Sprintf("/productlist/view/%s/", url.PathEscape(ref.ID)), url.Values{
		"locationId": {a.config.LocationID},
		"saleGroup":  {"0"},
		"format":     {"json"},
	})
	if err != nil {
		return nil, err
	}

	items, skipped := parseProductList(doc, a.config.BaseURL)
	for i := range items {
		items[i].ValidFrom = ref.ValidFrom
		items[i].ValidTo = ref.ValidTo
	}
	if skipped > 0 {
		a.logger.Debug().Str("catalogue", ref.ID).Int("skipped", skipped).Msg("SaleFinder items without a price skipped")
	}
	return items, nil
}

// content fetches an endpoint and parses its HTML "content" field
func (a *Adapter) content(ctx context.Context, path string, params url.Values) (*goquery.Document, error) {
	body, err := a.client.Get(ctx, strings.TrimRight(a.config.BaseURL, "/")+path, params, map[string]string{"Accept": "application/json, text/javascript"})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(stripJSONP(body), &payload); err != nil {
		return nil, fmt.Errorf("salefinder payload: %v: %w", err, models.ErrParse)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(payload.Content))
	if err != nil {
		return nil, fmt.Errorf("salefinder content: %v: %w", err, models.ErrParse)
	}
	return doc, nil
}

// stripJSONP unwraps callback({...}) into {...}
func stripJSONP(body []byte) []byte {
	s := strings.TrimSpace(string(body))
	if strings.HasPrefix(s, "{") {
		return []byte(s)
	}
	start := strings.Index(s, "(")
	end := strings.LastIndex(s, ")")
	if start < 0 || end <= start {
		return []byte(s)
	}
	return []byte(s[start+1 : end])
}

func parseCatalogueList(doc *goquery.Document, storeSlug, baseURL string) []models.CatalogueRef {
	var refs []models.CatalogueRef
	seen := map[string]bool{}

	doc.Find("[data-saleid]").Each(func(_ int, sel *goquery.Selection) {
		id := strings.TrimSpace(sel.AttrOr("data-saleid", ""))
		if id == "" || seen[id] {
			return
		}
		seen[id] = true

		name := strings.TrimSpace(sel.Find(".sale-name").First().Text())
		if name == "" {
			name = strings.TrimSpace(sel.AttrOr("title", ""))
		}

		ref := models.CatalogueRef{
			ID:        id,
			StoreSlug: storeSlug,
			Name:      name,
			URL:       absoluteURL(baseURL, sel.AttrOr("href", sel.Find("a").First().AttrOr("href", ""))),
		}
		if d, ok := parseDate(sel.AttrOr("data-start", "")); ok {
			ref.ValidFrom = &d
		}
		if d, ok := parseDate(sel.AttrOr("data-end", "")); ok {
			ref.ValidTo = &d
		}
		refs = append(refs, ref)
	})

	return refs
}

func parseProductList(doc *goquery.Document, baseURL string) ([]models.RawItem, int) {
	var (
		items   []models.RawItem
		skipped int
	)

	doc.Find(".sf-item").Each(func(_ int, sel *goquery.Selection) {
		name := strings.TrimSpace(sel.Find(".sf-item-heading").First().Text())
		if name == "" {
			skipped++
			return
		}

		price, ok := sources.ParsePrice(sel.Find(".sf-pricedisplay").First().Text())
		if !ok {
			skipped++
			return
		}

		item := models.RawItem{
			Name:       name,
			Price:      price,
			Category:   strings.TrimSpace(sel.AttrOr("data-category", "")),
			ProductURL: absoluteURL(baseURL, sel.Find("a.sf-item-link").First().AttrOr("href", "")),
			Source:     SourceName,
		}

		if was, ok := sources.ParsePrice(sel.Find(".sf-regprice").First().Text()); ok && was > price {
			item.WasPrice = &was
		}

		img := sel.Find("img.sf-item-image").First()
		if src := img.AttrOr("data-src", ""); src != "" {
			item.ImageURL = absoluteURL(baseURL, src)
		} else {
			item.ImageURL = absoluteURL(baseURL, img.AttrOr("src", ""))
		}

		items = append(items, item)
	})

	return items, skipped
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if len(s) > len(models.DateLayout) {
		s = s[:len(models.DateLayout)]
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func absoluteURL(baseURL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "//") {
		return "https:" + ref
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}
