package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/investrun/internal/market"
	"github.com/sawpanic/investrun/internal/net/circuit"
	netclient "github.com/sawpanic/investrun/internal/net/client"
	"github.com/sawpanic/investrun/internal/net/ratelimit"
)

// ProviderName identifies Yahoo Finance in breakers, metrics and logs.
const ProviderName = "yahoo"

// ErrNoData is returned when Yahoo has no bars for the symbol and range.
var ErrNoData = errors.New("no data returned")

// Config holds Yahoo Finance client settings.
type Config struct {
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
	Burst          int           `yaml:"burst"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
	UserAgent      string        `yaml:"user_agent"`
}

// DefaultConfig returns the public chart API settings.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "https://query1.finance.yahoo.com",
		RequestTimeout: 15 * time.Second,
		RateLimitRPS:   2,
		Burst:          2,
		MaxRetries:     3,
		RetryBackoff:   time.Second,
	}
}

// Client downloads daily history from the Yahoo Finance chart API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *ratelimit.Limiter
}

// NewClient creates a client. breakers may be nil; when set it should hold a
// breaker registered under ProviderName.
func NewClient(config Config, breakers *circuit.Manager) *Client {
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = def.RequestTimeout
	}
	if config.RateLimitRPS == 0 {
		config.RateLimitRPS = def.RateLimitRPS
	}
	if config.Burst == 0 {
		config.Burst = def.Burst
	}
	if config.RetryBackoff == 0 {
		config.RetryBackoff = def.RetryBackoff
	}

	limiter := ratelimit.NewLimiter(config.RateLimitRPS, config.Burst)
	transport := netclient.NewWrapper(netclient.WrapperConfig{
		Provider:     ProviderName,
		UserAgent:    config.UserAgent,
		RateLimiter:  limiter,
		Breakers:     breakers,
		MaxRetries:   config.MaxRetries,
		RetryBackoff: config.RetryBackoff,
	}, nil)

	return &Client{
		httpClient: &http.Client{Timeout: config.RequestTimeout, Transport: transport},
		baseURL:    config.BaseURL,
		limiter:    limiter,
	}
}

// RateLimits reports the token bucket of every host contacted so far.
func (c *Client) RateLimits() map[string]ratelimit.HostStats {
	return c.limiter.Stats()
}

// Name implements data.Source.
func (c *Client) Name() string { return ProviderName }

// Fetch downloads daily bars for symbol from start through end.
func (c *Client) Fetch(ctx context.Context, symbol string, start, end market.Date) (*market.Series, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s", c.baseURL, url.PathEscape(symbol))
	q := url.Values{}
	q.Set("period1", fmt.Sprintf("%d", start.Time().Unix()))
	q.Set("period2", fmt.Sprintf("%d", end.Time().Unix()))
	q.Set("interval", "1d")
	q.Set("events", "history")
	q.Set("includeAdjustedClose", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	log.Debug().Str("symbol", symbol).Str("start", start.String()).Str("end", end.String()).Msg("Requesting Yahoo chart")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var payload chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode chart response: %w", err)
	}

	return parseChart(symbol, &payload)
}

func parseChart(symbol string, payload *chartResponse) (*market.Series, error) {
	if e := payload.Chart.Error; e != nil {
		return nil, fmt.Errorf("%s: %s: %s", symbol, e.Code, e.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoData)
	}

	r := payload.Chart.Result[0]
	if len(r.Timestamp) == 0 || len(r.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoData)
	}
	quote := r.Indicators.Quote[0]
	zone := time.FixedZone(r.Meta.ExchangeTimezoneName, r.Meta.GMTOffset)

	series := &market.Series{Symbol: symbol, Bars: make([]market.Bar, 0, len(r.Timestamp))}
	for i, ts := range r.Timestamp {
		open := at(quote.Open, i)
		if open == nil {
			// halted or placeholder rows carry no prices
			continue
		}
		bar := market.Bar{
			Date: market.DateOf(time.Unix(ts, 0).In(zone)),
			Open: *open,
		}
		if v := at(quote.High, i); v != nil {
			bar.High = *v
		}
		if v := at(quote.Low, i); v != nil {
			bar.Low = *v
		}
		if v := at(quote.Close, i); v != nil {
			bar.Close = *v
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			bar.Volume = *quote.Volume[i]
		}
		series.Bars = append(series.Bars, bar)
	}

	if len(series.Bars) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoData)
	}
	return series, nil
}

func at(vals []*float64, i int) *float64 {
	if i >= len(vals) {
		return nil
	}
	return vals[i]
}
