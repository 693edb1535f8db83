package evidence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserConfig configures the headless Chrome fetcher.
type BrowserConfig struct {
	Timeout   time.Duration
	ExecPath  string // CHROME_PATH for Docker/cloud images
	UserAgent string
}

// BrowserFetcher renders pages in headless Chrome so script-built markup is
// visible to the features. The browser does not expose the redirect chain,
// so Redirects is 1 when the final location differs from the input URL.
type BrowserFetcher struct {
	cfg BrowserConfig
}

// NewBrowserFetcher creates a chromedp-backed fetcher.
func NewBrowserFetcher(cfg BrowserConfig) *BrowserFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultFetchConfig().UserAgent
	}
	return &BrowserFetcher{cfg: cfg}
}

// Fetch implements Fetcher. A fresh browser is started per call; the
// extractor never shares state between URLs.
func (b *BrowserFetcher) Fetch(ctx context.Context, rawURL string) (*HTTPResult, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.UserAgent(b.cfg.UserAgent),
	)
	if b.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var htmlContent, location string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body"),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &htmlContent),
	)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", rawURL, err)
	}

	result := &HTTPResult{
		// chromedp does not surface the main document status; a rendered body implies success.
		Status:    200,
		FinalURL:  location,
		Redirects: renderedRedirects(rawURL, location),
	}
	result.Document, _ = parseDocument([]byte(htmlContent), "text/html; charset=utf-8")
	return result, nil
}

// renderedRedirects reports 1 when the browser settled somewhere other than
// rawURL, ignoring a trailing slash. An unknown location counts as none.
func renderedRedirects(rawURL, location string) int {
	if location == "" || strings.TrimSuffix(location, "/") == strings.TrimSuffix(rawURL, "/") {
		return 0
	}
	return 1
}
