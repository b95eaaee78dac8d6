package yahoo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"marketdash/internal/market"
)

const (
	DefaultBaseURL   = "https://query1.finance.yahoo.com"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	maxBodyBytes = 8 << 20
)

// Observer is notified after every upstream call.
type Observer func(op string, err error, elapsed time.Duration)

// RESTClient fetches raw chart and search payloads. Decoding is left to the
// normalizer so that every upstream shape is handled in one place.
type RESTClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	observe    Observer
}

func NewRESTClient(baseURL, userAgent string, timeout time.Duration) *RESTClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &RESTClient{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetObserver installs a hook used for metrics.
func (c *RESTClient) SetObserver(o Observer) {
	c.observe = o
}

// Chart returns the intraday chart payload for symbol at the given interval.
func (c *RESTClient) Chart(ctx context.Context, symbol string, interval IntervalMeta) ([]byte, error) {
	q := url.Values{}
	q.Set("interval", interval.APIValue)
	q.Set("range", interval.Range)
	q.Set("includePrePost", "false")
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), q.Encode())
	return c.get(ctx, "chart", endpoint)
}

// Snapshot returns the one-day chart payload; only its meta block is used.
func (c *RESTClient) Snapshot(ctx context.Context, symbol string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=1d", c.baseURL, url.PathEscape(symbol))
	return c.get(ctx, "snapshot", endpoint)
}

// Search returns the symbol-search payload for query.
func (c *RESTClient) Search(ctx context.Context, query string, count int) ([]byte, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("quotesCount", strconv.Itoa(count))
	q.Set("newsCount", "0")
	q.Set("enableFuzzyQuery", "true")
	endpoint := c.baseURL + "/v1/finance/search?" + q.Encode()
	return c.get(ctx, "search", endpoint)
}

func (c *RESTClient) get(ctx context.Context, op, endpoint string) (body []byte, err error) {
	start := time.Now()
	defer func() {
		if c.observe != nil {
			c.observe(op, err, time.Since(start))
		}
	}()

	// Construct the GET request with context for timeout/cancel support
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, market.Unavailable("yahoo "+op, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, market.Unavailable("yahoo "+op, err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, market.Unavailable("yahoo "+op, fmt.Errorf("read body: %w", err))
	}

	// Check HTTP status code
	if resp.StatusCode != http.StatusOK {
		return nil, market.Unavailable("yahoo "+op, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200)))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
