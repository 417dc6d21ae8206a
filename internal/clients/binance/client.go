// Package binance provides a client for the Binance public market data API
package binance

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

	"github.com/bobmcallan/koru/internal/common"
	"github.com/bobmcallan/koru/internal/interfaces"
	"github.com/bobmcallan/koru/internal/models"
)

// flexFloat64 handles JSON values that may be either a number or a string.
// The Binance ticker endpoints return numeric fields as strings.
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

const (
	DefaultBaseURL   = "https://api.binance.com"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 10 // requests per second
)

// Client implements the TickerClient interface
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new Binance client. The market data endpoints are
// public; no API key is required.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Binance API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// ticker24h is the wire shape of one /api/v3/ticker/24hr row.
type ticker24h struct {
	Symbol             string      `json:"symbol"`
	LastPrice          flexFloat64 `json:"lastPrice"`
	PriceChangePercent flexFloat64 `json:"priceChangePercent"`
	HighPrice          flexFloat64 `json:"highPrice"`
	LowPrice           flexFloat64 `json:"lowPrice"`
	Volume             flexFloat64 `json:"volume"`
}

// Get24hTickers fetches 24h ticker statistics for the given trading pairs.
func (c *Client) Get24hTickers(ctx context.Context, pairs []string) ([]*models.ExchangeTicker, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	// The endpoint takes a JSON array of symbols as a query parameter.
	symbolsJSON, err := json.Marshal(pairs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode symbols: %w", err)
	}
	params := url.Values{}
	params.Set("symbols", string(symbolsJSON))

	reqURL := fmt.Sprintf("%s/api/v3/ticker/24hr?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Int("pairs", len(pairs)).Msg("Binance ticker request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   "/api/v3/ticker/24hr",
		}
	}

	var rows []ticker24h
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode ticker response: %w", err)
	}

	tickers := make([]*models.ExchangeTicker, 0, len(rows))
	for _, row := range rows {
		tickers = append(tickers, &models.ExchangeTicker{
			Pair:         row.Symbol,
			LastPrice:    float64(row.LastPrice),
			ChangePct24h: float64(row.PriceChangePercent),
			High24h:      float64(row.HighPrice),
			Low24h:       float64(row.LowPrice),
			Volume:       float64(row.Volume),
		})
	}
	return tickers, nil
}

// Ensure Client implements TickerClient
var _ interfaces.TickerClient = (*Client)(nil)
