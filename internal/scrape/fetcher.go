package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// ErrFetchFailure wraps navigation and timeout errors from the page runtime.
// A fetch failure is not retried within one orchestrator pass.
var ErrFetchFailure = errors.New("scrape: page fetch failed")

const (
	defaultSettleDelay       = 1500 * time.Millisecond
	defaultNavigationTimeout = 30 * time.Second
)

// PageFetcher retrieves the HTML document behind a product URL.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// BrowserFetcherConfig configures the headless browser fetcher.
type BrowserFetcherConfig struct {
	// SettleDelay is the fixed wait applied after the initial document parse
	// so client-side scripts can populate the page.
	SettleDelay time.Duration
	// NavigationTimeout bounds one navigate-and-serialize round trip.
	NavigationTimeout time.Duration
}

// BrowserFetcher renders a page in an isolated headless browser instance per
// call. There is no instance pooling and no retry.
type BrowserFetcher struct {
	settleDelay       time.Duration
	navigationTimeout time.Duration
}

// NewBrowserFetcher constructs a BrowserFetcher with sane defaults.
func NewBrowserFetcher(cfg BrowserFetcherConfig) *BrowserFetcher {
	settle := cfg.SettleDelay
	if settle <= 0 {
		settle = defaultSettleDelay
	}
	timeout := cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = defaultNavigationTimeout
	}
	return &BrowserFetcher{settleDelay: settle, navigationTimeout: timeout}
}

// Fetch navigates to the URL in a fresh browser context, waits for the
// document plus the settle delay, and returns the serialized DOM. The
// browser is torn down before returning on every path.
func (f *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, f.navigationTimeout)
	defer cancelRun()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(f.settleDelay),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrFetchFailure, pageURL, err)
	}
	return html, nil
}
