package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultBaseURL   = "https://api.poketrace.com/v1"
	defaultUserAgent = "cardwatcher/1.0"
	maxResponseBytes = 1 << 20

	DefaultHistoryTier   = "NEAR_MINT"
	DefaultHistoryPeriod = "30d"
)

// ClientOptions parameterise the PokeTrace client.
type ClientOptions struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	UserAgent  string
}

// Client reads card prices from the PokeTrace REST API.
type Client struct {
	opts    ClientOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs a PokeTrace client.
func NewClient(opts ClientOptions, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "poketrace_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchCard retrieves a card with its current prices.
func (c *Client) FetchCard(ctx context.Context, id string) (Card, error) {
	if strings.TrimSpace(id) == "" {
		return Card{}, fmt.Errorf("%w: empty card id", ErrFetch)
	}

	var res struct {
		Data Card `json:"data"`
	}
	if err := c.get(ctx, "/cards/"+url.PathEscape(id), &res); err != nil {
		return Card{}, err
	}
	if res.Data.ID == "" {
		res.Data.ID = id
	}
	return res.Data, nil
}

// SearchCards lists cards matching query in the given market.
func (c *Client) SearchCards(ctx context.Context, query string, limit int, market Market) ([]CardListItem, error) {
	if limit <= 0 {
		limit = 5
	}
	if market == "" {
		market = MarketUS
	}

	params := url.Values{}
	params.Set("search", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("market", string(market))

	var res struct {
		Data []CardListItem `json:"data"`
	}
	if err := c.get(ctx, "/cards?"+params.Encode(), &res); err != nil {
		return nil, err
	}
	return res.Data, nil
}

// PriceHistory lists the recorded prices of one tier of a card over period
// (for example "7d", "30d" or "90d"), oldest first.
func (c *Client) PriceHistory(ctx context.Context, id, tier, period string) ([]HistoryEntry, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: empty card id", ErrFetch)
	}
	if tier == "" {
		tier = DefaultHistoryTier
	}
	if period == "" {
		period = DefaultHistoryPeriod
	}

	params := url.Values{}
	params.Set("period", period)

	var res struct {
		Data []HistoryEntry `json:"data"`
	}
	path := "/cards/" + url.PathEscape(id) + "/prices/" + url.PathEscape(tier) + "/history?" + params.Encode()
	if err := c.get(ctx, path, &res); err != nil {
		return nil, err
	}
	return res.Data, nil
}

// get performs a GET, retrying HTTP 429 responses up to MaxRetries times
// while honouring Retry-After.
func (c *Client) get(ctx context.Context, path string, out any) error {
	endpoint := c.baseURL + path

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("%w: create request: %w", ErrFetch, err)
		}
		req.Header.Set("Accept", "application/json")
		if c.opts.APIKey != "" {
			req.Header.Set("X-API-Key", c.opts.APIKey)
		}
		if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
			req.Header.Set("User-Agent", ua)
		} else {
			req.Header.Set("User-Agent", defaultUserAgent)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFetch, err)
		}
		payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("%w: read body: %w", ErrFetch, err)
		}
		if len(payload) > maxResponseBytes {
			return fmt.Errorf("%w: response body exceeds %d bytes", ErrFetch, maxResponseBytes)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			if attempt >= c.opts.MaxRetries {
				return fmt.Errorf("%w: rate limit exceeded after %d retries", ErrFetch, attempt)
			}
			wait := retryAfter(resp.Header.Get("Retry-After"))
			c.logger.Warn().Str("path", path).Dur("wait", wait).Int("attempt", attempt+1).Msg("rate limited, backing off")
			if err := sleep(ctx, wait); err != nil {
				return fmt.Errorf("%w: %w", ErrFetch, err)
			}
			continue
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: %w: %s", ErrFetch, ErrNotFound, path)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return parseHTTPError(resp.StatusCode, payload)
		}

		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("%w: decode response: %w", ErrFetch, err)
		}
		return nil
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("%w: poketrace api error (%d): %s", ErrFetch, status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("%w: poketrace api error (%d): %s", ErrFetch, status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("%w: poketrace api error (%d): %s", ErrFetch, status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("%w: poketrace api error (%d)", ErrFetch, status)
}

func retryAfter(header string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || seconds < 0 {
		return time.Second
	}
	return time.Duration(seconds) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var (
	_ PriceSource    = (*Client)(nil)
	_ CardSearcher   = (*Client)(nil)
	_ PriceHistorian = (*Client)(nil)
)
