// Package aiextract turns a store's specials web page into raw items by
// converting it to markdown and asking an LLM to list the offers as JSON.
package aiextract

import (
	"context"
	"fmt"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specials/internal/common"
	"github.com/ternarybob/specials/internal/interfaces"
	"github.com/ternarybob/specials/internal/models"
	"github.com/ternarybob/specials/internal/services/sources"
)

// SourceName is the tag recorded on every item
const SourceName = "ai_extract"

const defaultMaxContentChars = 60000

const systemPrompt = `You extract grocery specials from a supermarket web page rendered as markdown.
Return ONLY a JSON object of the form {"items": [...]} with one entry per product on special.
Each entry has:
  "name" (string, product name including size as shown),
  "price" (number, the current special price in dollars),
  "was_price" (number or null, the regular price if shown),
  "discount_percent" (integer or null),
  "brand" (string or null),
  "size" (string or null, e.g. "500g"),
  "category" (string or null),
  "image_url" (string or null),
  "product_url" (string or null),
  "valid_from" and "valid_to" (YYYY-MM-DD or null).
Skip navigation, recipes and anything without a price. Do not invent products.`

// Adapter implements SourceAdapter over an LLM
type Adapter struct {
	config  *common.AIExtractConfig
	llm     interfaces.LLMService
	fetcher PageFetcher
	logger  arbor.ILogger
}

var _ interfaces.SourceAdapter = (*Adapter)(nil)

// NewAdapter creates an AI extraction adapter. llm may be nil when no
// provider key is available; the adapter then reports ErrNotConfigured.
func NewAdapter(config *common.AIExtractConfig, llm interfaces.LLMService, fetcher PageFetcher, logger arbor.ILogger) *Adapter {
	return &Adapter{
		config:  config,
		llm:     llm,
		fetcher: fetcher,
		logger:  logger,
	}
}

// Name returns "ai_extract"
func (a *Adapter) Name() string {
	return SourceName
}

// Stores lists the slugs with a configured specials page
func (a *Adapter) Stores() []string {
	return sources.SortedStores(a.config.Pages)
}

// Configured reports whether the source can run
func (a *Adapter) Configured() error {
	switch {
	case !a.config.Enabled:
		return fmt.Errorf("ai extraction disabled: %w", models.ErrNotConfigured)
	case a.llm == nil:
		return fmt.Errorf("ai extraction has no LLM provider: %w", models.ErrNotConfigured)
	case len(a.config.Pages) == 0:
		return fmt.Errorf("ai extraction has no pages: %w", models.ErrNotConfigured)
	}
	return nil
}

// Fetch extracts the specials listed on a store's page
func (a *Adapter) Fetch(ctx context.Context, storeSlug string) ([]models.RawItem, error) {
	pageURL, ok := a.config.Pages[storeSlug]
	if !ok {
		return nil, fmt.Errorf("%w: ai extraction does not cover %s", models.ErrUnknownStore, storeSlug)
	}
	if err := a.Configured(); err != nil {
		return nil, err
	}

	html, err := a.fetcher.FetchPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	content, err := a.toMarkdown(html, pageURL)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	response, err := a.llm.Chat(ctx, []interfaces.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("Store: %s\nPage: %s\n\n%s", storeSlug, pageURL, content)},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s extraction: %v: %w", a.llm.Provider(), err, models.ErrNetwork)
	}

	items, dropped, err := ParseResponse(response)
	if err != nil {
		return nil, err
	}

	a.logger.Info().
		Str("source", SourceName).
		Str("store", storeSlug).
		Str("provider", a.llm.Provider()).
		Int("markdown_length", len(content)).
		Int("items", len(items)).
		Int("dropped", dropped).
		Dur("duration", time.Since(start)).
		Msg("Specials extracted from page")

	return items, nil
}

func (a *Adapter) toMarkdown(html, pageURL string) (string, error) {
	converter := md.NewConverter(baseURL(pageURL), true, nil)
	converter.Remove("script", "style", "noscript", "svg", "iframe")

	content, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("markdown conversion: %v: %w", err, models.ErrParse)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("page %s has no content: %w", pageURL, models.ErrParse)
	}

	limit := a.config.MaxContentChars
	if limit <= 0 {
		limit = defaultMaxContentChars
	}
	if len(content) > limit {
		content = truncateUTF8(content, limit)
	}
	return content, nil
}

// baseURL returns scheme://host of a page so relative links resolve
func baseURL(pageURL string) string {
	schemeEnd := strings.Index(pageURL, "://")
	if schemeEnd < 0 {
		return ""
	}
	if slash := strings.Index(pageURL[schemeEnd+3:], "/"); slash >= 0 {
		return pageURL[:schemeEnd+3+slash]
	}
	return pageURL
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune
func truncateUTF8(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && (s[n]&0xC0) == 0x80 {
		n--
	}
	return s[:n]
}
