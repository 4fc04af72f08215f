// Package alphavantage provides a client for the Alpha Vantage API
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/kmorwood/sieve/internal/clients"
	"github.com/kmorwood/sieve/internal/common"
	"github.com/kmorwood/sieve/internal/models"
)

const (
	DefaultBaseURL   = "https://www.alphavantage.co"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 5 // requests per second, HTTP smoothing only
)

// Client implements the MarketDataProvider interface for Alpha Vantage.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// WithHTTPClient replaces the HTTP client (used by tests).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new Alpha Vantage client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:     common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name identifies the vendor.
func (c *Client) Name() string { return "alphavantage" }

// dailyResponse is the TIME_SERIES_DAILY payload. Bar fields arrive as
// strings keyed by "1. open" style names.
type dailyResponse struct {
	TimeSeries map[string]map[string]string `json:"Time Series (Daily)"`
	Note       string                       `json:"Note"`
	ErrorMsg   string                       `json:"Error Message"`
}

// FetchBars retrieves daily bars, most-recent-first, trimmed to the
// timeframe's bar budget.
func (c *Client) FetchBars(ctx context.Context, symbol string, tf models.Timeframe) ([]models.Bar, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY")
	params.Set("symbol", symbol)
	params.Set("outputsize", outputSize(tf))
	params.Set("apikey", c.apiKey)

	reqURL := fmt.Sprintf("%s/query?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("symbol", symbol).Msg("Alpha Vantage API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &clients.APIError{
			Provider:   c.Name(),
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}

	var payload dailyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if payload.ErrorMsg != "" {
		return nil, &clients.APIError{Provider: c.Name(), StatusCode: resp.StatusCode, Message: payload.ErrorMsg}
	}
	if payload.Note != "" {
		// Vendor-side throttle response arrives as HTTP 200 with a note.
		return nil, &clients.APIError{Provider: c.Name(), StatusCode: http.StatusTooManyRequests, Message: payload.Note}
	}

	bars, err := parseDailySeries(payload.TimeSeries)
	if err != nil {
		return nil, err
	}

	return clients.TrimBars(bars, tf), nil
}

func outputSize(tf models.Timeframe) string {
	switch tf {
	case models.Timeframe1D, models.Timeframe5D, models.Timeframe1M, models.Timeframe3M:
		return "compact"
	default:
		return "full"
	}
}

// parseDailySeries converts the date-keyed map to bars, newest first.
func parseDailySeries(series map[string]map[string]string) ([]models.Bar, error) {
	if len(series) == 0 {
		return nil, nil
	}

	dates := make([]string, 0, len(series))
	for d := range series {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	bars := make([]models.Bar, 0, len(dates))
	for _, d := range dates {
		date, err := time.Parse("2006-01-02", d)
		if err != nil {
			continue
		}
		fields := series[d]
		bar := models.Bar{
			Date:   date,
			Open:   parseFloat(fields["1. open"]),
			High:   parseFloat(fields["2. high"]),
			Low:    parseFloat(fields["3. low"]),
			Close:  parseFloat(fields["4. close"]),
			Volume: parseInt(fields["5. volume"]),
		}
		bars = append(bars, bar)
	}

	return bars, nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
