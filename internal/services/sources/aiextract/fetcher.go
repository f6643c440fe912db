package aiextract

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specials/internal/httpclient"
	"github.com/ternarybob/specials/internal/models"
)

// PageFetcher returns the HTML of a specials page
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) (string, error)
}

// HTTPFetcher downloads pages through the shared rate-limited client
type HTTPFetcher struct {
	client *httpclient.Client
}

// NewHTTPFetcher creates a fetcher for server-rendered pages
func NewHTTPFetcher(client *httpclient.Client) *HTTPFetcher {
	return &HTTPFetcher{client: client}
}

// FetchPage downloads a page
func (f *HTTPFetcher) FetchPage(ctx context.Context, pageURL string) (string, error) {
	body, err := f.client.Get(ctx, pageURL, nil, map[string]string{"Accept": "text/html,application/xhtml+xml"})
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// ChromeRenderer renders pages in headless Chrome so client-side specials
// grids are present in the HTML
type ChromeRenderer struct {
	userAgent string
	wait      time.Duration
	timeout   time.Duration
	logger    arbor.ILogger
}

// NewChromeRenderer creates a renderer. A browser is started per page.
func NewChromeRenderer(userAgent string, wait, timeout time.Duration, logger arbor.ILogger) *ChromeRenderer {
	return &ChromeRenderer{
		userAgent: userAgent,
		wait:      wait,
		timeout:   timeout,
		logger:    logger,
	}
}

func (r *ChromeRenderer) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Headless,
		chromedp.DisableGPU,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.WindowSize(1920, 1080),
	}
	if r.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(r.userAgent))
	}
	return opts
}

// FetchPage navigates to the page, waits for scripts to settle and returns
// the rendered document
func (r *ChromeRenderer) FetchPage(ctx context.Context, pageURL string) (string, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, r.allocatorOptions()...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(s string, i ...interface{}) {
		r.logger.Trace().Msg(fmt.Sprintf(s, i...))
	}))
	defer browserCancel()

	pageCtx, pageCancel := context.WithTimeout(browserCtx, r.timeout)
	defer pageCancel()

	start := time.Now()
	var html string
	err := chromedp.Run(pageCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(r.wait),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("render %s: %v: %w", pageURL, err, models.ErrNetwork)
	}

	r.logger.Debug().
		Str("url", pageURL).
		Int("html_length", len(html)).
		Dur("duration", time.Since(start)).
		Msg("Page rendered")

	return html, nil
}
