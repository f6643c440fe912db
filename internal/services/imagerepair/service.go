// Package imagerepair fills in missing special images by searching the
// store's own product search API for the special's name. Specials the search
// cannot place fall back to the og:image of their product page.
package imagerepair

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/specials/internal/common"
	"github.com/ternarybob/specials/internal/httpclient"
	"github.com/ternarybob/specials/internal/interfaces"
	"github.com/ternarybob/specials/internal/models"
	"github.com/ternarybob/specials/internal/services/catalogue"
	"github.com/ternarybob/specials/internal/services/sources"
)

// SourceName identifies the sweep in logs and job definitions
const SourceName = "image_repair"

const (
	queryWords   = 5
	matchWords   = 3
	searchTake   = "10"
	defaultDelay = 300 * time.Millisecond
)

var (
	varietyPattern = regexp.MustCompile(`(?i)\b(selected\s+varieties|selected\s+variety|various)\b`)
	placeholders   = []string{"placeholder", "no-image", "noimage", "image-coming-soon", "default.png"}
	pageImageMeta  = []string{`meta[property="og:image"]`, `meta[name="twitter:image"]`, `link[rel="image_src"]`}
)

type searchImage struct {
	Default string `json:"default"`
	Cell    string `json:"cell"`
}

type searchItem struct {
	Name    string      `json:"name"`
	Barcode string      `json:"barcode"`
	Image   searchImage `json:"image"`
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

// Result summarises one store's sweep
type Result struct {
	Candidates int `json:"candidates"`
	Fixed      int `json:"fixed"`
	Partial    int `json:"partial"`   // fixed from the first hit rather than a name match
	FromPage   int `json:"from_page"` // fixed from the product page after the search found nothing
	NotFound   int `json:"not_found"`
	Errors     int `json:"errors"`
}

// Service repairs missing images
type Service struct {
	catalogue *catalogue.Service
	client    *httpclient.Client
	config    *common.ImageRepairConfig
	limiter   *rate.Limiter
	logger    arbor.ILogger
}

// NewService creates the image repair sweep
func NewService(cat *catalogue.Service, client *httpclient.Client, config *common.ImageRepairConfig, logger arbor.ILogger) *Service {
	delay := common.ParseDurationOr(config.Delay, defaultDelay)
	return &Service{
		catalogue: cat,
		client:    client,
		config:    config,
		limiter:   rate.NewLimiter(rate.Every(delay), 1),
		logger:    logger,
	}
}

// Name returns "image_repair"
func (s *Service) Name() string {
	return SourceName
}

// Stores lists the slugs with a configured search endpoint
func (s *Service) Stores() []string {
	return sources.SortedStores(s.config.SearchURLs)
}

// Configured reports whether the sweep can run
func (s *Service) Configured() error {
	if !s.config.Enabled || len(s.config.SearchURLs) == 0 {
		return fmt.Errorf("image repair: %w", models.ErrNotConfigured)
	}
	return nil
}

// RepairStore searches an image for every active special of a store whose
// image is missing and patches the ones found in one transaction. The store
// fails only when every search failed.
func (s *Service) RepairStore(ctx context.Context, storeSlug string) (Result, error) {
	var result Result

	searchURL, ok := s.config.SearchURLs[storeSlug]
	if !ok {
		return result, fmt.Errorf("%w: no image search for %s", models.ErrUnknownStore, storeSlug)
	}

	store, err := s.catalogue.Store(ctx, storeSlug)
	if err != nil {
		return result, err
	}

	today := s.catalogue.Normalizer().Today()
	specials, err := s.catalogue.ListSpecials(ctx, interfaces.SpecialFilter{StoreID: store.ID, ActiveOn: &today})
	if err != nil {
		return result, err
	}

	images := make(map[string]string)
	var lastErr error
	for _, special := range specials {
		if !NeedsImage(special.ImageURL) {
			continue
		}
		if s.config.MaxItems > 0 && result.Candidates >= s.config.MaxItems {
			break
		}
		result.Candidates++

		imageURL, exact, err := s.search(ctx, searchURL, special.Name)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			s.logger.Warn().Err(err).Str("store", storeSlug).Str("special", special.Name).Msg("Image search failed")
			result.Errors++
			lastErr = err
			continue
		}
		if imageURL == "" && special.ProductURL != "" {
			imageURL = s.pageImage(ctx, special.ProductURL)
			if imageURL != "" {
				result.FromPage++
				exact = true
			}
		}
		if imageURL == "" {
			result.NotFound++
			continue
		}
		if !exact {
			result.Partial++
		}
		images[special.ID] = imageURL
	}

	if result.Candidates > 0 && result.Errors == result.Candidates {
		return Result{Candidates: result.Candidates, Errors: result.Errors}, fmt.Errorf("every image search failed: %w", lastErr)
	}

	fixed, err := s.catalogue.PatchImages(ctx, images)
	if err != nil {
		return Result{Candidates: result.Candidates}, err
	}
	result.Fixed = fixed

	s.logger.Info().
		Str("store", storeSlug).
		Int("candidates", result.Candidates).
		Int("fixed", result.Fixed).
		Int("partial", result.Partial).
		Int("from_page", result.FromPage).
		Int("not_found", result.NotFound).
		Int("errors", result.Errors).
		Msg("Image repair complete")

	return result, nil
}

func (s *Service) search(ctx context.Context, searchURL, name string) (string, bool, error) {
	query := SearchQuery(name)
	if query == "" {
		return "", false, nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return "", false, err
	}

	var resp searchResponse
	if err := s.client.GetJSON(ctx, searchURL, url.Values{"q": {query}, "take": {searchTake}}, &resp); err != nil {
		return "", false, err
	}

	item, exact, ok := bestMatch(name, resp.Items)
	if !ok {
		return "", false, nil
	}
	return item.imageURL(), exact, nil
}

// pageImage reads the share image of a product page. Failures count as not
// found, so they never fail the store.
func (s *Service) pageImage(ctx context.Context, productURL string) string {
	if err := s.limiter.Wait(ctx); err != nil {
		return ""
	}

	doc, err := s.client.GetDocument(ctx, productURL, nil)
	if err != nil {
		s.logger.Debug().Err(err).Str("url", productURL).Msg("Product page fetch failed")
		return ""
	}

	for _, selector := range pageImageMeta {
		sel := doc.Find(selector).First()
		value, ok := sel.Attr("content")
		if !ok {
			value, _ = sel.Attr("href")
		}
		value = strings.TrimSpace(value)
		if value == "" || NeedsImage(value) {
			continue
		}
		return resolveURL(productURL, value)
	}
	return ""
}

// resolveURL makes ref absolute against the page it was found on
func resolveURL(pageURL, ref string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

func (i searchItem) imageURL() string {
	if i.Image.Default != "" {
		return i.Image.Default
	}
	return i.Image.Cell
}

// NeedsImage reports whether an image URL is empty or a known placeholder
func NeedsImage(imageURL string) bool {
	u := strings.ToLower(strings.TrimSpace(imageURL))
	if u == "" {
		return true
	}
	for _, p := range placeholders {
		if strings.Contains(u, p) {
			return true
		}
	}
	return false
}

// SearchQuery drops variety qualifiers and keeps the leading words of a name
func SearchQuery(name string) string {
	words := strings.Fields(varietyPattern.ReplaceAllString(name, " "))
	if len(words) > queryWords {
		words = words[:queryWords]
	}
	return strings.Join(words, " ")
}

// bestMatch picks the search hit for a special. A barcoded hit whose first
// three words equal the special's, or whose name contains or is contained in
// the special's, is an exact match. Otherwise the first hit with an image is
// returned as a partial match.
func bestMatch(name string, items []searchItem) (searchItem, bool, bool) {
	target := strings.ToLower(strings.TrimSpace(name))
	targetLead := leadingWords(target, matchWords)

	for _, item := range items {
		if item.Barcode == "" || item.imageURL() == "" {
			continue
		}
		candidate := strings.ToLower(strings.TrimSpace(item.Name))
		if candidate == "" {
			continue
		}
		if leadingWords(candidate, matchWords) == targetLead ||
			strings.Contains(target, candidate) || strings.Contains(candidate, target) {
			return item, true, true
		}
	}

	for _, item := range items {
		if item.imageURL() != "" {
			return item, false, true
		}
	}
	return searchItem{}, false, false
}

func leadingWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
