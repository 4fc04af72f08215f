// Package finnhub provides a client for the Finnhub stock candle API
package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/kmorwood/sieve/internal/clients"
	"github.com/kmorwood/sieve/internal/common"
	"github.com/kmorwood/sieve/internal/models"
)

const (
	DefaultBaseURL   = "https://finnhub.io/api/v1"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 10
)

// Client implements the MarketDataProvider interface for Finnhub.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	now        func() time.Time
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

// NewClient creates a new Finnhub client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:     common.NewSilentLogger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name identifies the vendor.
func (c *Client) Name() string { return "finnhub" }

// candleResponse is the /stock/candle payload: parallel arrays plus a
// status flag ("ok" or "no_data").
type candleResponse struct {
	Close     []float64 `json:"c"`
	High      []float64 `json:"h"`
	Low       []float64 `json:"l"`
	Open      []float64 `json:"o"`
	Volume    []float64 `json:"v"`
	Timestamp []int64   `json:"t"`
	Status    string    `json:"s"`
}

// FetchBars retrieves daily candles, most-recent-first.
func (c *Client) FetchBars(ctx context.Context, symbol string, tf models.Timeframe) ([]models.Bar, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	to := c.now()
	from := fromTime(to, tf)

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("resolution", "D")
	params.Set("from", strconv.FormatInt(from.Unix(), 10))
	params.Set("to", strconv.FormatInt(to.Unix(), 10))
	params.Set("token", c.apiKey)

	reqURL := fmt.Sprintf("%s/stock/candle?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("symbol", symbol).Str("timeframe", string(tf)).Msg("Finnhub API request")

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

	var payload candleResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if payload.Status != "ok" {
		return nil, nil // no_data: empty payload, caller advances the chain
	}

	n := len(payload.Timestamp)
	bars := make([]models.Bar, 0, n)
	// Finnhub orders oldest-first; reverse to most-recent-first.
	for i := n - 1; i >= 0; i-- {
		if i >= len(payload.Close) || i >= len(payload.Open) ||
			i >= len(payload.High) || i >= len(payload.Low) {
			continue
		}
		bar := models.Bar{
			Date:  time.Unix(payload.Timestamp[i], 0).UTC(),
			Open:  payload.Open[i],
			High:  payload.High[i],
			Low:   payload.Low[i],
			Close: payload.Close[i],
		}
		if i < len(payload.Volume) {
			bar.Volume = int64(payload.Volume[i])
		}
		bars = append(bars, bar)
	}

	return clients.TrimBars(bars, tf), nil
}

// fromTime returns the query start for a timeframe, padded with calendar
// slack so weekends and holidays don't starve the bar budget.
func fromTime(to time.Time, tf models.Timeframe) time.Time {
	switch tf {
	case models.Timeframe1D:
		return to.AddDate(0, 0, -5)
	case models.Timeframe5D:
		return to.AddDate(0, 0, -10)
	case models.Timeframe1M:
		return to.AddDate(0, -1, -5)
	case models.Timeframe3M:
		return to.AddDate(0, -3, -5)
	case models.Timeframe6M:
		return to.AddDate(0, -6, -5)
	case models.TimeframeYTD:
		return time.Date(to.Year(), 1, 1, 0, 0, 0, 0, to.Location())
	case models.Timeframe1Y:
		return to.AddDate(-1, 0, -5)
	case models.Timeframe5Y:
		return to.AddDate(-5, 0, -5)
	default: // All
		return to.AddDate(-20, 0, 0)
	}
}
