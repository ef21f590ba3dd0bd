package scrape

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// HTTPFetcher retrieves pages over plain HTTP for retailers whose product
// pages render server-side. It satisfies the same contract as the browser
// fetcher and is substantially cheaper per call.
type HTTPFetcher struct {
	client *resty.Client
}

// NewHTTPFetcher constructs an HTTPFetcher with the given request timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = defaultNavigationTimeout
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", browserUserAgent)
	return &HTTPFetcher{client: client}
}

// Fetch returns the response body for the URL or a fetch failure.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	resp, err := f.client.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrFetchFailure, pageURL, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: %s: status %s", ErrFetchFailure, pageURL, resp.Status())
	}
	return resp.String(), nil
}
