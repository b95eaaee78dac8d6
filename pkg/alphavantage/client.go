package alphavantage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"marketdash/internal/market"
)

const (
	DefaultBaseURL = "https://www.alphavantage.co"

	// the full listing CSV is several megabytes
	maxBodyBytes = 32 << 20
)

// Client fetches raw listing and search payloads from Alpha Vantage.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	observe    func(op string, err error, elapsed time.Duration)
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if apiKey == "" {
		apiKey = "demo"
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetObserver installs a hook used for metrics.
func (c *Client) SetObserver(o func(op string, err error, elapsed time.Duration)) {
	c.observe = o
}

// ListingStatus downloads the LISTING_STATUS CSV.
func (c *Client) ListingStatus(ctx context.Context) ([]byte, error) {
	q := url.Values{}
	q.Set("function", "LISTING_STATUS")
	return c.query(ctx, "listing", q)
}

// SymbolSearch runs SYMBOL_SEARCH for keywords.
func (c *Client) SymbolSearch(ctx context.Context, keywords string) ([]byte, error) {
	q := url.Values{}
	q.Set("function", "SYMBOL_SEARCH")
	q.Set("keywords", keywords)
	return c.query(ctx, "search", q)
}

func (c *Client) query(ctx context.Context, op string, q url.Values) (body []byte, err error) {
	start := time.Now()
	defer func() {
		if c.observe != nil {
			c.observe(op, err, time.Since(start))
		}
	}()

	q.Set("apikey", c.apiKey)
	endpoint := c.baseURL + "/query?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, market.Unavailable("alphavantage "+op, fmt.Errorf("creating request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, market.Unavailable("alphavantage "+op, err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, market.Unavailable("alphavantage "+op, fmt.Errorf("read body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, market.Unavailable("alphavantage "+op, fmt.Errorf("status %d", resp.StatusCode))
	}
	return body, nil
}
